package category

import (
	"sort"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/needs"
)

const testConfig = `
categories:
  personal_support:
    unit: hours
    algorithm_drivers: [personal_support, maple]
    floor_mappings:
      personal_support:
        0: {floor: 0, recommended: 2}
        2: {floor: 4, recommended: 6}
        4: {floor: 8, recommended: 12}
      maple:
        5: {floor: 10, recommended: 10}
    cap_boosters: [adl]
    cap_adjustments:
      adl: {floor_add: 2, recommended_add: 4}
    services:
      PSW: {name: Personal Support Worker, is_primary: true, avg_visit_minutes: 60}
      HMK: {name: Homemaking}
  clinical_monitoring:
    unit: visits
    algorithm_drivers: [chess_ca]
    floor_mappings:
      chess_ca:
        1: {floor: 1, recommended: 2}
        3: {floor: 3, recommended: 5}
    cap_boosters: [pain, falls]
    services:
      NUR: {name: Nursing, is_primary: true}
      RPM: {name: Remote Monitoring, requires_tech: true}
      WND: {name: Wound Care, requires_caps: [pressure_ulcer, pain]}
      IVT: {name: Infusion Therapy, requires_clinical: true}
  risk_mgmt_and_complexity:
    unit: units
    cap_boosters: [falls]
    cap_adjustments:
      falls: {floor_add: 1, recommended_add: 1}
  social_support:
    unit: hours
`

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	cfg, err := ParseConfig([]byte(testConfig))
	require.NoError(t, err)
	return NewResolver(cfg, zerolog.Nop())
}

func TestResolve_DriverMappings(t *testing.T) {
	r := newTestResolver(t)
	floors := r.ResolveToCategories(map[string]int{"personal_support": 2, "chess_ca": 3}, nil, needs.Profile{})

	require.Len(t, floors, 4)
	ps := floors[PersonalSupport]
	assert.Equal(t, 4.0, ps.Floor)
	assert.Equal(t, 6.0, ps.Recommended)
	assert.Equal(t, UnitHours, ps.Unit)

	cm := floors[ClinicalMonitoring]
	assert.Equal(t, 3.0, cm.Floor)
	assert.Equal(t, 5.0, cm.Recommended)
	assert.Equal(t, UnitVisits, cm.Unit)

	assert.Zero(t, floors[SocialSupport].Floor)
}

func TestResolve_MultipleDriversTakeMax(t *testing.T) {
	r := newTestResolver(t)
	floors := r.ResolveToCategories(map[string]int{"personal_support": 4, "maple": 5}, nil, needs.Profile{})

	ps := floors[PersonalSupport]
	assert.Equal(t, 10.0, ps.Floor, "floors are maximized, not summed")
	assert.Equal(t, 12.0, ps.Recommended)
}

func TestClosestFloor(t *testing.T) {
	table := map[int]FloorPair{0: {Floor: 0}, 2: {Floor: 2}, 4: {Floor: 4}, 10: {Floor: 10}}

	tests := []struct {
		score int
		want  float64
	}{
		{2, 2},
		{3, 2}, // equidistant from 2 and 4: smaller key wins
		{1, 0}, // equidistant from 0 and 2
		{7, 4}, // equidistant from 4 and 10
		{8, 10},
		{-5, 0},
		{99, 10},
	}
	for _, tt := range tests {
		got, ok := closestFloor(table, tt.score)
		require.True(t, ok)
		assert.Equal(t, tt.want, got.Floor, "score %d", tt.score)
	}

	_, ok := closestFloor(nil, 1)
	assert.False(t, ok)
}

func TestResolve_CAPAdjustmentsScaleByLevel(t *testing.T) {
	r := newTestResolver(t)

	improve := r.ResolveToCategories(nil, map[string]string{"adl": "IMPROVE"}, needs.Profile{})
	assert.Equal(t, 2.0, improve[PersonalSupport].Floor)
	assert.Equal(t, 4.0, improve[PersonalSupport].Recommended)
	assert.Equal(t, []string{"adl"}, improve[PersonalSupport].TriggeredCAPs)

	prevent := r.ResolveToCategories(nil, map[string]string{"adl": "PREVENT"}, needs.Profile{})
	assert.InDelta(t, 1.4, prevent[PersonalSupport].Floor, 1e-9)
	assert.InDelta(t, 2.8, prevent[PersonalSupport].Recommended, 1e-9)
	assert.Equal(t, CAPBoost{FloorAdd: 1.4, RecommendedAdd: 2.8, Level: "PREVENT"}, roundBoost(prevent[PersonalSupport].CAPBoosts["adl"]))

	maintain := r.ResolveToCategories(nil, map[string]string{"adl": "MAINTAIN"}, needs.Profile{})
	assert.InDelta(t, 0.6, maintain[PersonalSupport].Floor, 1e-9)

	unknown := r.ResolveToCategories(nil, map[string]string{"adl": "WHATEVER"}, needs.Profile{})
	assert.Zero(t, unknown[PersonalSupport].Floor)

	none := r.ResolveToCategories(nil, map[string]string{"adl": "NOT_TRIGGERED"}, needs.Profile{})
	assert.Empty(t, none[PersonalSupport].TriggeredCAPs)
}

func roundBoost(b CAPBoost) CAPBoost {
	round := func(f float64) float64 { return float64(int(f*1000+0.5)) / 1000 }
	return CAPBoost{FloorAdd: round(b.FloorAdd), RecommendedAdd: round(b.RecommendedAdd), Level: b.Level}
}

func TestResolve_BaselineBoostWithoutDoubleCounting(t *testing.T) {
	r := newTestResolver(t)
	floors := r.ResolveToCategories(nil, map[string]string{"pain": "FACILITATE", "falls": "PREVENT"}, needs.Profile{})

	cm := floors[ClinicalMonitoring]
	// Two booster CAPs without explicit adjustments: flat +1/+2 each, unscaled.
	assert.Equal(t, 2.0, cm.Floor)
	assert.Equal(t, 4.0, cm.Recommended)
	assert.Equal(t, []string{"falls", "pain"}, cm.TriggeredCAPs)

	// falls has an explicit adjustment here, so no baseline boost on top.
	risk := floors[RiskMgmtAndComplexity]
	assert.InDelta(t, 0.7, risk.Floor, 1e-9)
	assert.InDelta(t, 0.7, risk.Recommended, 1e-9)
	assert.Equal(t, []string{"falls"}, risk.TriggeredCAPs)
}

func TestResolve_ProfileBoosts(t *testing.T) {
	r := newTestResolver(t)
	p := needs.Profile{
		CognitiveComplexity:  4,
		FallsRiskLevel:       2,
		LivesAlone:           true,
		CaregiverStressLevel: 3,
		PainScore:            2,
	}
	floors := r.ResolveToCategories(nil, nil, p)

	assert.Equal(t, 4.0, floors[PersonalSupport].Floor)
	assert.Equal(t, 4.0, floors[PersonalSupport].Recommended)

	// cognition +1/+2, falls +1/+2, living alone +0.5/+1
	assert.Equal(t, 2.5, floors[RiskMgmtAndComplexity].Floor)
	assert.Equal(t, 5.0, floors[RiskMgmtAndComplexity].Recommended)

	// living alone +1/+2, caregiver stress +1/+2
	assert.Equal(t, 2.0, floors[SocialSupport].Floor)
	assert.Equal(t, 4.0, floors[SocialSupport].Recommended)

	assert.Equal(t, 1.0, floors[ClinicalMonitoring].Floor)
	assert.Equal(t, 2.0, floors[ClinicalMonitoring].Recommended)
}

func TestResolve_RecommendedNeverBelowFloor(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
categories:
  personal_support:
    algorithm_drivers: [x]
    floor_mappings:
      x:
        1: {floor: 6, recommended: 2}
    cap_adjustments:
      adl: {floor_add: 5, recommended_add: 0}
  social_support: {}
`))
	require.NoError(t, err)
	r := NewResolver(cfg, zerolog.Nop())

	profiles := []needs.Profile{{}, {CognitiveComplexity: 5, LivesAlone: true}, {FallsRiskLevel: 4, CaregiverStressLevel: 5}}
	capSets := []map[string]string{nil, {"adl": "IMPROVE"}, {"adl": "FACILITATE", "other": "PREVENT"}}
	for _, p := range profiles {
		for _, caps := range capSets {
			for _, score := range []int{0, 1, 9} {
				floors := r.ResolveToCategories(map[string]int{"x": score}, caps, p)
				for name, fl := range floors {
					assert.GreaterOrEqual(t, fl.Recommended, fl.Floor, name)
				}
			}
		}
	}
}

func TestGetEligibleServices(t *testing.T) {
	r := newTestResolver(t)

	codes := func(m map[string]ServiceDef) []string {
		var out []string
		for c := range m {
			out = append(out, c)
		}
		sort.Strings(out)
		return out
	}

	base := r.GetEligibleServices(ClinicalMonitoring, needs.Profile{}, nil)
	assert.Equal(t, []string{"NUR"}, codes(base))

	tech := r.GetEligibleServices(ClinicalMonitoring, needs.Profile{TechnologyReadiness: 2, HasInternet: true}, nil)
	assert.Equal(t, []string{"NUR", "RPM"}, codes(tech))

	noInternet := r.GetEligibleServices(ClinicalMonitoring, needs.Profile{TechnologyReadiness: 3}, nil)
	assert.Equal(t, []string{"NUR"}, codes(noInternet))

	withCAP := r.GetEligibleServices(ClinicalMonitoring, needs.Profile{}, map[string]string{"pain": "PREVENT"})
	assert.Equal(t, []string{"NUR", "WND"}, codes(withCAP))

	notTriggered := r.GetEligibleServices(ClinicalMonitoring, needs.Profile{}, map[string]string{"pain": "NOT_TRIGGERED"})
	assert.Equal(t, []string{"NUR"}, codes(notTriggered))

	clinical := r.GetEligibleServices(ClinicalMonitoring, needs.Profile{RequiresExtensiveServices: true}, nil)
	assert.Equal(t, []string{"IVT", "NUR"}, codes(clinical))

	assert.Empty(t, r.GetEligibleServices("no_such_category", needs.Profile{}, nil))
	assert.Equal(t, "PSW", r.GetEligibleServices(PersonalSupport, needs.Profile{}, nil)["PSW"].Code)
}

func TestParseConfig_Errors(t *testing.T) {
	_, err := ParseConfig([]byte("categories: {}"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = ParseConfig([]byte("categories:\n  a: {unit: furlongs}\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = ParseConfig([]byte("categories: ["))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
