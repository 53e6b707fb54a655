// Package category turns algorithm scores, triggered CAPs and the needs
// profile into per-category floor and recommended budgets, and filters each
// category's service catalog by eligibility.
package category

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/needs"
)

// LevelMultiplier scales a CAP adjustment by the CAP's action level.
// Unknown levels scale to zero.
var LevelMultiplier = map[string]float64{
	"IMPROVE":    1.0,
	"PREVENT":    0.7,
	"FACILITATE": 0.5,
	"MAINTAIN":   0.3,
}

const notTriggered = "NOT_TRIGGERED"

// Baseline boost for a booster CAP without an explicit adjustment.
const (
	baselineFloorAdd       = 1.0
	baselineRecommendedAdd = 2.0
)

// Floor is the resolved budget for one category.
type Floor struct {
	Category      string              `json:"category"`
	Floor         float64             `json:"floor"`
	Recommended   float64             `json:"recommended"`
	Unit          string              `json:"unit"`
	TriggeredCAPs []string            `json:"triggered_caps,omitempty"`
	CAPBoosts     map[string]CAPBoost `json:"cap_boosts,omitempty"`
}

// CAPBoost records what one CAP added to a category.
type CAPBoost struct {
	FloorAdd       float64 `json:"floor_add"`
	RecommendedAdd float64 `json:"recommended_add"`
	Level          string  `json:"level"`
}

// Floors maps category name to its resolved budget.
type Floors map[string]*Floor

// Names returns the category names in sorted order.
func (f Floors) Names() []string {
	names := make([]string, 0, len(f))
	for n := range f {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// TotalRecommended sums the recommended amounts of every category.
func (f Floors) TotalRecommended() float64 {
	total := 0.0
	for _, fl := range f {
		total += fl.Recommended
	}
	return total
}

// Resolver maps clinical inputs to category budgets.
type Resolver struct {
	cfg    *Config
	logger zerolog.Logger
}

// NewResolver creates a resolver over a validated category config.
func NewResolver(cfg *Config, logger zerolog.Logger) *Resolver {
	return &Resolver{cfg: cfg, logger: logger.With().Str("component", "category").Logger()}
}

// Config returns the category config the resolver reads.
func (r *Resolver) Config() *Config { return r.cfg }

// ResolveToCategories computes a Floor for every configured category. caps
// maps CAP name to level; NOT_TRIGGERED entries are ignored.
func (r *Resolver) ResolveToCategories(scores map[string]int, caps map[string]string, profile needs.Profile) Floors {
	floors := make(Floors, len(r.cfg.Categories))

	for _, name := range r.cfg.Names() {
		def := r.cfg.Categories[name]
		fl := &Floor{Category: name, Unit: def.Unit, CAPBoosts: map[string]CAPBoost{}}
		for _, driver := range def.AlgorithmDrivers {
			score, ok := scores[driver]
			if !ok {
				continue
			}
			pair, ok := closestFloor(def.FloorMappings[driver], score)
			if !ok {
				r.logger.Debug().Str("category", name).Str("driver", driver).Int("score", score).Msg("no floor mapping for driver")
				continue
			}
			fl.Floor = math.Max(fl.Floor, pair.Floor)
			fl.Recommended = math.Max(fl.Recommended, pair.Recommended)
		}
		floors[name] = fl
	}

	r.applyCAPs(floors, caps)
	applyProfileBoosts(floors, profile)

	for _, fl := range floors {
		if fl.Recommended < fl.Floor {
			fl.Recommended = fl.Floor
		}
		sort.Strings(fl.TriggeredCAPs)
	}
	return floors
}

func (r *Resolver) applyCAPs(floors Floors, caps map[string]string) {
	names := make([]string, 0, len(caps))
	for name, level := range caps {
		if level != notTriggered && level != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, capName := range names {
		level := caps[capName]
		mult := LevelMultiplier[level]
		for _, catName := range r.cfg.Names() {
			def := r.cfg.Categories[catName]
			fl := floors[catName]

			if adj, ok := def.CAPAdjustments[capName]; ok {
				boost := CAPBoost{
					FloorAdd:       adj.FloorAdd * mult,
					RecommendedAdd: adj.RecommendedAdd * mult,
					Level:          level,
				}
				fl.Floor += boost.FloorAdd
				fl.Recommended += boost.RecommendedAdd
				fl.CAPBoosts[capName] = boost
				fl.TriggeredCAPs = append(fl.TriggeredCAPs, capName)
				continue
			}

			if !contains(def.CAPBoosters, capName) {
				continue
			}
			if _, done := fl.CAPBoosts[capName]; done {
				continue
			}
			fl.Floor += baselineFloorAdd
			fl.Recommended += baselineRecommendedAdd
			fl.CAPBoosts[capName] = CAPBoost{FloorAdd: baselineFloorAdd, RecommendedAdd: baselineRecommendedAdd, Level: level}
			fl.TriggeredCAPs = append(fl.TriggeredCAPs, capName)
		}
	}
}

func applyProfileBoosts(floors Floors, p needs.Profile) {
	add := func(category string, floor, recommended float64) {
		if fl, ok := floors[category]; ok {
			fl.Floor += floor
			fl.Recommended += recommended
		}
	}

	if p.CognitiveComplexity >= 3 {
		boost := float64(p.CognitiveComplexity-2) * 2
		add(PersonalSupport, boost, boost)
		add(RiskMgmtAndComplexity, 1, 2)
	}
	if p.FallsRiskLevel >= 2 {
		add(RiskMgmtAndComplexity, 0.5*float64(p.FallsRiskLevel), float64(p.FallsRiskLevel))
	}
	if p.LivesAlone {
		add(RiskMgmtAndComplexity, 0.5, 1)
		add(SocialSupport, 1, 2)
	}
	if p.CaregiverStressLevel >= 3 {
		add(SocialSupport, 1, 2)
	}
	if p.PainScore >= 2 {
		add(ClinicalMonitoring, 1, 2)
	}
}

// closestFloor returns the pair for score, or the pair of the nearest score
// key. Equal distances resolve to the smaller key.
func closestFloor(table map[int]FloorPair, score int) (FloorPair, bool) {
	if len(table) == 0 {
		return FloorPair{}, false
	}
	if pair, ok := table[score]; ok {
		return pair, true
	}
	keys := make([]int, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	best := keys[0]
	bestDiff := abs(best - score)
	for _, k := range keys[1:] {
		if d := abs(k - score); d < bestDiff {
			best, bestDiff = k, d
		}
	}
	return table[best], true
}

// GetEligibleServices returns the services of category the profile and CAPs
// qualify for. An unknown category yields an empty map.
func (r *Resolver) GetEligibleServices(category string, profile needs.Profile, caps map[string]string) map[string]ServiceDef {
	out := map[string]ServiceDef{}
	def := r.cfg.Get(category)
	if def == nil {
		return out
	}
	for code, svc := range def.Services {
		if Eligible(svc, profile, caps) {
			out[code] = svc
		}
	}
	return out
}

// Eligible applies the gates svc declares: technology readiness, at least one
// required CAP triggered, and extensive clinical services.
func Eligible(svc ServiceDef, profile needs.Profile, caps map[string]string) bool {
	if svc.RequiresTech && !profile.TechReady() {
		return false
	}
	if len(svc.RequiresCAPs) > 0 {
		found := false
		for _, c := range svc.RequiresCAPs {
			if lvl, ok := caps[c]; ok && lvl != notTriggered {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if svc.RequiresClinical && !profile.RequiresExtensiveServices {
		return false
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}
