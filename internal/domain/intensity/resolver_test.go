package intensity

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/protocol"
)

func TestScoreTable_Lookup(t *testing.T) {
	tbl := ScoreTable{0: 0, 2: 10, 4: 20}
	tests := []struct {
		score int
		want  float64
	}{
		{2, 10},
		{4, 20},
		{3, 10},
		{9, 20},
		{-3, 0},
	}
	for _, tt := range tests {
		got, ok := tbl.Lookup(tt.score)
		require.True(t, ok)
		assert.Equal(t, tt.want, got, "score %d", tt.score)
	}
	_, ok := ScoreTable{}.Lookup(1)
	assert.False(t, ok)
}

func TestFromScores(t *testing.T) {
	r := NewResolver(zerolog.Nop())
	plan := r.FromScores(map[string]int{PersonalSupport: 2, Rehabilitation: 3, ChessCA: 4, "maple": 5})

	assert.Equal(t, []string{"NUR", "OT", "PSW", "PT"}, plan.Codes())
	assert.Equal(t, 7.0, plan["PSW"].Amount)
	assert.Equal(t, UnitHours, plan["PSW"].Unit)
	assert.Equal(t, 2.0, plan["PT"].Amount)
	assert.Equal(t, plan["PT"].Amount, plan["OT"].Amount)
	assert.Equal(t, 5.0, plan["NUR"].Amount)

	assert.Empty(t, r.FromScores(map[string]int{PersonalSupport: 0}), "zero amounts are dropped")
}

func TestApplyRecommendations(t *testing.T) {
	r := NewResolver(zerolog.Nop())
	plan := Plan{}
	plan.add("PSW", 10, UnitHours, PersonalSupport)

	r.ApplyRecommendations(plan, "falls", []protocol.ServiceRecommendation{
		{ServiceCode: "PSW", Priority: "core"},
		{ServiceCode: "PT", Priority: "recommended", Intensity: "high"},
		{ServiceCode: "PERS", Priority: "optional", Intensity: "low"},
		{ServiceCode: "XYZ", Priority: "urgent"},
	})

	assert.InDelta(t, 13.0, plan["PSW"].Amount, 1e-9)
	assert.Equal(t, []string{PersonalSupport, "falls"}, plan["PSW"].Sources)
	assert.Equal(t, 4.0, plan["PT"].Amount)
	assert.Equal(t, 0.5, plan["PERS"].Amount)
	assert.NotContains(t, plan, "XYZ")
}

func TestResolve_AxisMultipliers(t *testing.T) {
	r := NewResolver(zerolog.Nop())
	caps := map[string]*protocol.Result{
		"falls": {CAPName: "falls", Level: protocol.LevelImprove, Recommendations: []protocol.ServiceRecommendation{
			{ServiceCode: "SLP", Priority: "recommended", Intensity: "medium"},
		}},
		"pain": {CAPName: "pain", Level: protocol.LevelNotTriggered, Recommendations: []protocol.ServiceRecommendation{
			{ServiceCode: "NUR", Priority: "core", Intensity: "high"},
		}},
	}
	scores := map[string]int{Rehabilitation: 5}

	plain := r.Resolve(scores, caps, "balanced")
	rehab := r.Resolve(scores, caps, "recovery_rehab")

	assert.InDelta(t, plain["PT"].Amount*1.3, rehab["PT"].Amount, 1e-9)
	assert.InDelta(t, plain["OT"].Amount*1.3, rehab["OT"].Amount, 1e-9)
	assert.InDelta(t, 2.4, rehab["SLP"].Amount, 1e-9)
	assert.NotContains(t, plain, "NUR", "untriggered CAPs contribute nothing")

	unknown := r.Resolve(scores, caps, "nonexistent")
	assert.Equal(t, plain["PT"].Amount, unknown["PT"].Amount)
}
