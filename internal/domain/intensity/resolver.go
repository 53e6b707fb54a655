// Package intensity is a coarse alternative to category composition: it maps
// algorithm scores straight to service amounts through fixed lookup tables,
// then layers CAP recommendations and axis multipliers on top.
package intensity

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/protocol"
)

// Units of a resolved amount.
const (
	UnitHours  = "hours"
	UnitVisits = "visits"
)

// Algorithms the score tables are keyed by.
const (
	PersonalSupport = "personal_support"
	Rehabilitation  = "rehabilitation"
	ChessCA         = "chess_ca"
)

// ScoreTable maps an algorithm score to a weekly amount.
type ScoreTable map[int]float64

// Lookup returns the amount for score, or for the nearest score key when
// there is no exact entry. Ties go to the smaller key.
func (t ScoreTable) Lookup(score int) (float64, bool) {
	if len(t) == 0 {
		return 0, false
	}
	if v, ok := t[score]; ok {
		return v, true
	}
	keys := make([]int, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	best, bestDiff := keys[0], distance(keys[0], score)
	for _, k := range keys[1:] {
		if d := distance(k, score); d < bestDiff {
			best, bestDiff = k, d
		}
	}
	return t[best], true
}

// Default score tables.
var (
	PersonalSupportHours = ScoreTable{0: 0, 1: 3.5, 2: 7, 3: 10.5, 4: 14, 5: 21, 6: 28}
	RehabVisits          = ScoreTable{0: 0, 1: 2, 2: 3, 3: 4, 4: 5, 5: 6}
	NursingVisits        = ScoreTable{0: 0, 1: 1, 2: 2, 3: 3, 4: 5, 5: 7}
)

// Baseline amounts for a service a CAP recommends that the plan lacks.
var baselineIntensity = map[string]float64{
	"low":    1,
	"medium": 2,
	"high":   4,
}

// PriorityWeight scales CAP recommendations by priority.
var PriorityWeight = map[string]float64{
	"core":        2,
	"recommended": 1,
	"optional":    0.5,
}

// Per-weight uplift applied to a recommended service already in the plan.
const existingUplift = 0.15

// AxisMultipliers scale service amounts per care axis.
var AxisMultipliers = map[string]map[string]float64{
	"balanced":             {},
	"recovery_rehab":       {"PT": 1.3, "OT": 1.3, "SLP": 1.2},
	"safety_stability":     {"PSW": 1.1, "NUR": 1.1, "PERS": 1.2},
	"tech_enabled":         {"RPM": 1.5, "TEL": 1.5, "PSW": 0.9, "NUR": 0.9},
	"caregiver_relief":     {"PSW": 1.2, "RES": 1.5, "ADP": 1.3},
	"community_integrated": {"ADP": 1.5, "SW": 1.2},
}

// Service is one resolved service amount.
type Service struct {
	ServiceCode string   `json:"service_code"`
	Amount      float64  `json:"amount"`
	Unit        string   `json:"unit"`
	Sources     []string `json:"sources"`
}

// Plan maps service code to its resolved amount.
type Plan map[string]*Service

// Codes returns the plan's service codes sorted.
func (p Plan) Codes() []string {
	out := make([]string, 0, len(p))
	for c := range p {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (p Plan) add(code string, amount float64, unit, source string) {
	if amount <= 0 {
		return
	}
	if s, ok := p[code]; ok {
		s.Amount += amount
		s.Sources = append(s.Sources, source)
		return
	}
	p[code] = &Service{ServiceCode: code, Amount: amount, Unit: unit, Sources: []string{source}}
}

// Resolver produces intensity plans.
type Resolver struct {
	personalSupport ScoreTable
	rehab           ScoreTable
	nursing         ScoreTable
	logger          zerolog.Logger
}

// NewResolver creates a resolver over the default tables.
func NewResolver(logger zerolog.Logger) *Resolver {
	return &Resolver{
		personalSupport: PersonalSupportHours,
		rehab:           RehabVisits,
		nursing:         NursingVisits,
		logger:          logger.With().Str("component", "intensity").Logger(),
	}
}

// FromScores maps personal_support to PSW hours, rehabilitation to PT and OT
// visits split evenly, and chess_ca to NUR visits. Missing scores add nothing.
func (r *Resolver) FromScores(scores map[string]int) Plan {
	plan := Plan{}
	if s, ok := scores[PersonalSupport]; ok {
		if v, ok := r.personalSupport.Lookup(s); ok {
			plan.add("PSW", v, UnitHours, PersonalSupport)
		}
	}
	if s, ok := scores[Rehabilitation]; ok {
		if v, ok := r.rehab.Lookup(s); ok {
			plan.add("PT", v/2, UnitVisits, Rehabilitation)
			plan.add("OT", v/2, UnitVisits, Rehabilitation)
		}
	}
	if s, ok := scores[ChessCA]; ok {
		if v, ok := r.nursing.Lookup(s); ok {
			plan.add("NUR", v, UnitVisits, ChessCA)
		}
	}
	return plan
}

// ApplyRecommendations folds one CAP's service recommendations into plan. A
// service already present grows by 15% per unit of priority weight; a new
// one starts at its intensity baseline times the weight.
func (r *Resolver) ApplyRecommendations(plan Plan, capName string, recs []protocol.ServiceRecommendation) {
	for _, rec := range recs {
		weight, ok := PriorityWeight[rec.Priority]
		if !ok {
			r.logger.Debug().Str("cap", capName).Str("priority", rec.Priority).Msg("unknown recommendation priority")
			continue
		}
		if s, ok := plan[rec.ServiceCode]; ok {
			s.Amount *= 1 + existingUplift*weight
			s.Sources = append(s.Sources, capName)
			continue
		}
		base, ok := baselineIntensity[rec.Intensity]
		if !ok {
			base = baselineIntensity["medium"]
		}
		plan.add(rec.ServiceCode, base*weight, UnitVisits, capName)
	}
}

// ApplyAxis scales plan amounts by the axis multiplier table. Unknown axes
// leave the plan unchanged.
func ApplyAxis(plan Plan, axis string) {
	for code, m := range AxisMultipliers[axis] {
		if s, ok := plan[code]; ok {
			s.Amount *= m
		}
	}
}

// Resolve runs the whole strategy: score tables, every triggered CAP's
// recommendations in name order, then the axis multipliers.
func (r *Resolver) Resolve(scores map[string]int, caps map[string]*protocol.Result, axis string) Plan {
	plan := r.FromScores(scores)
	names := make([]string, 0, len(caps))
	for n, res := range caps {
		if res.Triggered() {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	for _, n := range names {
		r.ApplyRecommendations(plan, n, caps[n].Recommendations)
	}
	ApplyAxis(plan, axis)
	return plan
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
