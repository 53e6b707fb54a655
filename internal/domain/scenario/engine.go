// Package scenario composes a weekly service plan from category budgets
// under a care axis: axis templates weight the categories, substitution rules
// spread each category over its services, and CAP packages add services
// across categories.
package scenario

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/category"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/needs"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/servicecatalog"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/platform/rulecond"
)

// DefaultMinTotalBudget is used when every category recommends nothing.
const DefaultMinTotalBudget = 20.0

const notTriggered = "NOT_TRIGGERED"

// Engine composes service plans. It is safe for concurrent use; all loaded
// configuration is read-only.
type Engine struct {
	axes      *AxisConfig
	rules     *SubstitutionRules
	resolver  *category.Resolver
	catalog   *servicecatalog.Catalog
	minBudget float64
	logger    zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithCatalog prices allocations and overrides visit durations from the
// service catalog.
func WithCatalog(c *servicecatalog.Catalog) Option {
	return func(e *Engine) { e.catalog = c }
}

// WithMinTotalBudget sets the budget used when floors sum to nothing.
func WithMinTotalBudget(v float64) Option {
	return func(e *Engine) {
		if v > 0 {
			e.minBudget = v
		}
	}
}

// NewEngine creates a composition engine.
func NewEngine(axes *AxisConfig, rules *SubstitutionRules, resolver *category.Resolver, logger zerolog.Logger, opts ...Option) *Engine {
	if axes == nil {
		axes = &AxisConfig{}
	}
	if rules == nil {
		rules = &SubstitutionRules{}
	}
	e := &Engine{
		axes:      axes,
		rules:     rules,
		resolver:  resolver,
		minBudget: DefaultMinTotalBudget,
		logger:    logger.With().Str("component", "scenario").Logger(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Axes returns the loaded axis templates.
func (e *Engine) Axes() *AxisConfig { return e.axes }

// Composition is a composed plan and how it was reached.
type Composition struct {
	Requested   Axis         `json:"requested_axis"`
	Axis        Axis         `json:"axis,omitempty"`
	FellBack    bool         `json:"fell_back,omitempty"`
	Default     bool         `json:"default,omitempty"`
	TotalBudget float64      `json:"total_budget"`
	Services    []Allocation `json:"services"`
}

// ComposeForAxis returns the consolidated service allocations for axis.
func (e *Engine) ComposeForAxis(ctx context.Context, axis Axis, floors category.Floors, caps map[string]string, profile needs.Profile) []Allocation {
	return e.Compose(ctx, axis, floors, caps, profile).Services
}

// Compose runs the full composition. An axis whose template is missing or
// whose requirements the profile fails falls back to balanced; without a
// balanced template the minimal default plan is produced.
func (e *Engine) Compose(ctx context.Context, axis Axis, floors category.Floors, caps map[string]string, profile needs.Profile) *Composition {
	caps = triggered(caps)
	comp := &Composition{Requested: axis}
	log := e.logger.With().Str("axis", string(axis)).Logger()

	tmpl := e.axes.Get(axis)
	switch {
	case tmpl == nil:
		log.Warn().Msg("no template for axis, falling back to balanced")
		tmpl = e.axes.Get(Balanced)
		comp.FellBack = true
	case !tmpl.Requirements.Met(profile):
		log.Info().Msg("profile does not meet axis requirements, falling back to balanced")
		tmpl = e.axes.Get(Balanced)
		comp.FellBack = true
	}
	if tmpl == nil {
		log.Warn().Msg("no balanced template, using default composition")
		comp.Default = true
		comp.Services = e.ComposeDefault(ctx, floors)
		return comp
	}
	comp.Axis = tmpl.Axis

	p := e.newPricer(ctx)
	budget := floors.TotalRecommended()
	if budget <= 0 {
		budget = e.minBudget
	}
	comp.TotalBudget = budget
	env := rulecond.Env{CAPs: caps, Lookup: profile.Lookup}

	var allocs []Allocation
	for _, cat := range sortedMix(tmpl.TargetMix) {
		ratio := tmpl.TargetMix[cat]
		if ratio <= 0 {
			continue
		}
		floor, unit := 0.0, e.unitOf(cat)
		if fl := floors[cat]; fl != nil {
			floor, unit = fl.Floor, fl.Unit
		}
		target := math.Max(floor, budget*ratio)
		eligible := e.rankServices(tmpl, cat, profile, caps)
		shares := e.allocateCategory(tmpl, cat, target, floor, eligible, env)
		log.Debug().Str("category", cat).Float64("target", target).Int("services", len(shares.order)).Msg("category allocated")
		allocs = append(allocs, e.toAllocations(p, cat, unit, shares, eligible)...)
	}

	allocs = e.applyPackages(p, tmpl, allocs, env)

	kept := allocs[:0]
	for _, a := range allocs {
		if !tmpl.Excludes(a.ServiceCode) {
			kept = append(kept, a)
		}
	}
	comp.Services = Consolidate(kept)
	return comp
}

// ComposeDefault builds the minimal plan straight from category floors:
// PSW from personal_support, NUR from clinical_monitoring and PT/OT split
// from rehab_support. A category with no floor uses its recommended amount.
func (e *Engine) ComposeDefault(ctx context.Context, floors category.Floors) []Allocation {
	p := e.newPricer(ctx)
	var out []Allocation
	add := func(code, cat string, freq int) {
		if freq <= 0 {
			return
		}
		out = append(out, p.allocation(code, cat, freq, p.duration(code, 0), SourceDefault,
			fmt.Sprintf("Default allocation from %s", cat)))
	}
	visits := func(code, cat string) int {
		fl := floors[cat]
		if fl == nil {
			return 0
		}
		amount := fl.Floor
		if amount <= 0 {
			amount = fl.Recommended
		}
		return toFrequency(code, fl.Unit, amount, p.duration(code, 0))
	}

	add("PSW", category.PersonalSupport, visits("PSW", category.PersonalSupport))
	add("NUR", category.ClinicalMonitoring, visits("NUR", category.ClinicalMonitoring))
	rehab := visits("PT", category.RehabSupport)
	add("PT", category.RehabSupport, (rehab+1)/2)
	add("OT", category.RehabSupport, rehab/2)
	return out
}

// rankServices returns the category's eligible services minus axis
// exclusions, ordered primary, secondary, tertiary, then unranked.
func (e *Engine) rankServices(tmpl *AxisTemplate, cat string, profile needs.Profile, caps map[string]string) []category.ServiceDef {
	if e.resolver == nil {
		return nil
	}
	eligible := e.resolver.GetEligibleServices(cat, profile, caps)
	out := make([]category.ServiceDef, 0, len(eligible))
	for code, svc := range eligible {
		if tmpl.Tier(code) < 0 {
			continue
		}
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := tmpl.Tier(out[i].Code), tmpl.Tier(out[j].Code)
		if ti != tj {
			return ti < tj
		}
		return out[i].Code < out[j].Code
	})
	return out
}

type share struct {
	code      string
	amount    float64
	source    Source
	rationale []string
}

type shares struct {
	order []string
	by    map[string]*share
}

func (s *shares) add(code string, amount float64, source Source, rationale string) {
	if amount <= 0 {
		return
	}
	if s.by == nil {
		s.by = map[string]*share{}
	}
	sh, ok := s.by[code]
	if !ok {
		sh = &share{code: code, source: source}
		s.by[code] = sh
		s.order = append(s.order, code)
	}
	sh.amount += amount
	if rationale != "" {
		sh.rationale = append(sh.rationale, rationale)
	}
}

func (s *shares) total() float64 {
	t := 0.0
	for _, sh := range s.by {
		t += sh.amount
	}
	return t
}

// allocateCategory spreads target over the eligible services in category
// units: hard floor service first, then substitutions, then an even split
// of the rest across primary services.
func (e *Engine) allocateCategory(tmpl *AxisTemplate, cat string, target, floor float64, eligible []category.ServiceDef, env rulecond.Env) *shares {
	out := &shares{}
	isEligible := func(code string) bool {
		for _, s := range eligible {
			if s.Code == code {
				return true
			}
		}
		return false
	}
	remaining := target
	cr := e.rules.For(cat)

	if cr != nil && cr.HardFloorService != "" && isEligible(cr.HardFloorService) {
		amt := math.Min(math.Max(floor, target*cr.HardFloorRatio), remaining)
		out.add(cr.HardFloorService, amt, SourceFloor, fmt.Sprintf("Clinical floor for %s", cat))
		remaining -= amt
	}

	if cr != nil {
		prefs := tmpl.SubstitutionPreferences[cat]
		for _, r := range cr.Rules {
			if remaining <= 0 {
				break
			}
			if !prefs.Endorses(r.Substitute) || !isEligible(r.Substitute) {
				continue
			}
			if !r.cond.Eval(env) {
				continue
			}
			amt := math.Min(remaining, target*r.MaxRatio)
			if amt <= 0 {
				continue
			}
			remaining -= amt
			why := r.Rationale
			if why == "" {
				why = fmt.Sprintf("Substitutes within %s", cat)
			}
			if prefs.Favours(r.Substitute) {
				why += fmt.Sprintf(" (favoured by %s axis)", tmpl.Axis)
			}
			out.add(r.Substitute, amt*r.Conversion, SourceSubstitution, why)
		}
	}

	if remaining > 0 {
		var primaries []string
		for _, s := range eligible {
			if s.IsPrimary || tmpl.Tier(s.Code) == 0 {
				primaries = append(primaries, s.Code)
			}
		}
		if len(primaries) == 0 && cr != nil && isEligible(cr.HardFloorService) {
			primaries = []string{cr.HardFloorService}
		}
		if len(primaries) == 0 {
			e.logger.Debug().Str("category", cat).Float64("remaining", remaining).Msg("no primary service for remaining capacity")
			return out
		}
		each := remaining / float64(len(primaries))
		for _, code := range primaries {
			out.add(code, each, SourcePrimary, fmt.Sprintf("Primary %s service under %s axis", cat, tmpl.Axis))
		}
	}
	return out
}

func (e *Engine) toAllocations(p *pricer, cat, unit string, s *shares, eligible []category.ServiceDef) []Allocation {
	avg := map[string]int{}
	for _, svc := range eligible {
		avg[svc.Code] = svc.AvgVisitMinutes
	}
	out := make([]Allocation, 0, len(s.order))
	for _, code := range s.order {
		sh := s.by[code]
		dur := p.duration(code, avg[code])
		freq := toFrequency(code, unit, sh.amount, dur)
		if freq <= 0 {
			continue
		}
		out = append(out, p.allocation(code, cat, freq, dur, sh.source, strings.Join(sh.rationale, "; ")))
	}
	return out
}

// applyPackages adds the services of every triggered CAP package. Packages
// whose CAPs the axis does not prioritise contribute at half intensity.
func (e *Engine) applyPackages(p *pricer, tmpl *AxisTemplate, allocs []Allocation, env rulecond.Env) []Allocation {
	present := make(map[string]bool, len(allocs))
	for _, a := range allocs {
		present[a.ServiceCode] = true
	}
	for _, name := range e.rules.PackageNames() {
		pkg := e.rules.Packages[name]
		if !pkg.trigger.Eval(env) {
			continue
		}
		scale, note := 0.5, " (reduced intensity)"
		if tmpl.Prioritizes(pkg.RelevantCAPs()) {
			scale, note = 1, ""
		}
		for _, cat := range pkg.Categories() {
			entries := pkg.Adds[cat]
			codes := make([]string, 0, len(entries))
			for c := range entries {
				codes = append(codes, c)
			}
			sort.Strings(codes)
			for _, code := range codes {
				entry := entries[code]
				why := entry.Rationale
				if why == "" {
					why = fmt.Sprintf("%s package", name)
				}
				why += note

				if base, ok := strings.CutSuffix(code, BoostSuffix); ok {
					i := indexOf(allocs, base)
					if i < 0 {
						e.logger.Debug().Str("package", name).Str("service_code", base).Msg("boost target not allocated")
						continue
					}
					allocs[i].addVisits(ceil(entry.FrequencyAdd*scale), entry.FrequencyPeriod)
					if !strings.Contains(allocs[i].Rationale, why) {
						allocs[i].Rationale = joinRationale(allocs[i].Rationale, why)
					}
					continue
				}
				if present[code] {
					continue
				}
				freq := ceil(entry.Frequency * scale)
				if freq <= 0 {
					continue
				}
				dur := entry.DurationMinutes
				if dur <= 0 {
					dur = p.duration(code, e.avgVisitMinutes(cat, code))
				}
				a := p.allocation(code, cat, freq, dur, SourceCAPPackage, why)
				if entry.FrequencyPeriod != "" {
					a.FrequencyPeriod = entry.FrequencyPeriod
				}
				allocs = append(allocs, a)
				present[code] = true
			}
		}
	}
	return allocs
}

func (e *Engine) unitOf(cat string) string {
	if e.resolver != nil {
		if def := e.resolver.Config().Get(cat); def != nil {
			return def.Unit
		}
	}
	return category.UnitHours
}

func (e *Engine) avgVisitMinutes(cat, code string) int {
	if e.resolver == nil {
		return 0
	}
	if def := e.resolver.Config().Get(cat); def != nil {
		return def.Services[code].AvgVisitMinutes
	}
	return 0
}

// pricer memoises catalog quotes for one composition.
type pricer struct {
	ctx     context.Context
	catalog *servicecatalog.Catalog
	quotes  map[string]*servicecatalog.Quote
	logger  zerolog.Logger
}

func (e *Engine) newPricer(ctx context.Context) *pricer {
	return &pricer{ctx: ctx, catalog: e.catalog, quotes: map[string]*servicecatalog.Quote{}, logger: e.logger}
}

func (p *pricer) quote(code string) *servicecatalog.Quote {
	if p.catalog == nil {
		return nil
	}
	if q, ok := p.quotes[code]; ok {
		return q
	}
	q, err := p.catalog.Quote(p.ctx, code)
	if err != nil {
		p.logger.Debug().Err(err).Str("service_code", code).Msg("no catalog entry, using defaults")
		q = nil
	}
	p.quotes[code] = q
	return q
}

// duration resolves visit minutes: catalog, then the category's configured
// average, then the code table.
func (p *pricer) duration(code string, avg int) int {
	if q := p.quote(code); q != nil && q.DurationMinutes > 0 {
		return q.DurationMinutes
	}
	if avg > 0 {
		return avg
	}
	return DefaultVisitMinutes(code)
}

func (p *pricer) allocation(code, cat string, freq, dur int, source Source, rationale string) Allocation {
	a := Allocation{
		ServiceCode:     code,
		Frequency:       freq,
		FrequencyPeriod: PerWeek,
		DurationMinutes: dur,
		Rationale:       rationale,
		Category:        cat,
		Source:          source,
	}
	if q := p.quote(code); q != nil {
		a.ServiceType = q.ServiceType
		a.CostPerVisit = q.CostPerVisit
	}
	return a
}

func triggered(caps map[string]string) map[string]string {
	out := make(map[string]string, len(caps))
	for name, level := range caps {
		if level != "" && level != notTriggered {
			out[name] = level
		}
	}
	return out
}

func sortedMix(mix map[string]float64) []string {
	out := make([]string, 0, len(mix))
	for c := range mix {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func indexOf(allocs []Allocation, code string) int {
	for i, a := range allocs {
		if a.ServiceCode == code {
			return i
		}
	}
	return -1
}

func joinRationale(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}
