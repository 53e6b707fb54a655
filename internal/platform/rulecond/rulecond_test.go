package rulecond

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfty27/Connected-Capacity-sub005/internal/platform/expr"
)

func profile(fields map[string]float64) func(string) expr.Value {
	return func(name string) expr.Value {
		if v, ok := fields[name]; ok {
			return expr.Number(v)
		}
		return expr.Zero
	}
}

func TestParse_Empty(t *testing.T) {
	e, err := Parse("   ")
	require.NoError(t, err)
	assert.True(t, e.Eval(Env{}))
}

func TestParse_CAPTriggered(t *testing.T) {
	e, err := Parse("cap_triggered:falls")
	require.NoError(t, err)

	assert.True(t, e.Eval(Env{CAPs: map[string]string{"falls": "PREVENT"}}))
	assert.False(t, e.Eval(Env{CAPs: map[string]string{"pain": "IMPROVE"}}))
	assert.Equal(t, []string{"falls"}, e.CAPs())
}

func TestParse_CAPNameContainingKeyword(t *testing.T) {
	e, err := Parse("cap_triggered:OR_risk AND cap_triggered:falls")
	require.NoError(t, err)

	assert.Equal(t, []string{"OR_risk", "falls"}, e.CAPs())
	assert.True(t, e.Eval(Env{CAPs: map[string]string{"OR_risk": "IMPROVE", "falls": "PREVENT"}}))
	assert.False(t, e.Eval(Env{CAPs: map[string]string{"OR_risk": "IMPROVE"}}))
}

func TestParse_CAPLevelIn(t *testing.T) {
	e, err := Parse("cap_level:adl IN [IMPROVE, PREVENT]")
	require.NoError(t, err)

	assert.True(t, e.Eval(Env{CAPs: map[string]string{"adl": "PREVENT"}}))
	assert.False(t, e.Eval(Env{CAPs: map[string]string{"adl": "FACILITATE"}}))
	assert.False(t, e.Eval(Env{CAPs: map[string]string{"falls": "IMPROVE"}}))

	anyCAP, err := Parse("cap_level IN ['improve']")
	require.NoError(t, err)
	assert.True(t, anyCAP.Eval(Env{CAPs: map[string]string{"falls": "IMPROVE"}}))
	assert.False(t, anyCAP.Eval(Env{CAPs: map[string]string{"falls": "PREVENT"}}))
	assert.Empty(t, anyCAP.CAPs())
}

func TestParse_ProfileComparisons(t *testing.T) {
	tests := []struct {
		src    string
		fields map[string]float64
		want   bool
	}{
		{"technologyReadiness >= 2", map[string]float64{"technologyReadiness": 2}, true},
		{"technologyReadiness>=2", map[string]float64{"technologyReadiness": 1}, false},
		{"cognitiveComplexity < 3", nil, true},
		{"hasInternet == true", map[string]float64{"hasInternet": 1}, true},
		{"livesAlone", map[string]float64{"livesAlone": 1}, true},
		{"livesAlone", nil, false},
		{"painScore != 0", map[string]float64{"painScore": 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := Parse(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Eval(Env{Lookup: profile(tt.fields)}))
		})
	}
}

func TestParse_Precedence(t *testing.T) {
	// AND binds tighter than OR.
	e, err := Parse("cap_triggered:a OR cap_triggered:b AND cap_triggered:c")
	require.NoError(t, err)
	assert.True(t, e.Eval(Env{CAPs: map[string]string{"a": "IMPROVE"}}))
	assert.False(t, e.Eval(Env{CAPs: map[string]string{"b": "IMPROVE"}}))

	grouped, err := Parse("(cap_triggered:a OR cap_triggered:b) AND cap_triggered:c")
	require.NoError(t, err)
	assert.False(t, grouped.Eval(Env{CAPs: map[string]string{"a": "IMPROVE"}}))
	assert.True(t, grouped.Eval(Env{CAPs: map[string]string{"b": "IMPROVE", "c": "PREVENT"}}))
}

func TestParse_NestedMixed(t *testing.T) {
	e, err := Parse("cap_triggered:falls OR (fallsRiskLevel >= 2 AND NOT livesAlone)")
	require.NoError(t, err)

	assert.True(t, e.Eval(Env{CAPs: map[string]string{"falls": "PREVENT"}}))
	assert.True(t, e.Eval(Env{Lookup: profile(map[string]float64{"fallsRiskLevel": 3})}))
	assert.False(t, e.Eval(Env{Lookup: profile(map[string]float64{"fallsRiskLevel": 3, "livesAlone": 1})}))
	assert.Equal(t, []string{"falls"}, e.CAPs())
}

func TestParse_Errors(t *testing.T) {
	bad := []string{
		"cap_triggered:",
		"(cap_triggered:a",
		"cap_level:adl [IMPROVE]",
		"cap_level IN []",
		"cap_level IN [IMPROVE",
		"painScore >=",
		"painScore => 2",
		"cap_triggered:a cap_triggered:b",
		"AND",
	}
	for _, src := range bad {
		t.Run(src, func(t *testing.T) {
			_, err := Parse(src)
			assert.Error(t, err)
		})
	}
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("(") })
	assert.NotPanics(t, func() { MustParse("cap_triggered:x") })
}
