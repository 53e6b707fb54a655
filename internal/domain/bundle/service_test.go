package bundle

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfty27/Connected-Capacity-sub005/definitions"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/algorithm"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/category"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/needs"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/scenario"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/servicecatalog"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/platform/defstore"
)

func newEmbeddedService(t *testing.T, opts Options) *Service {
	t.Helper()
	s, err := Load(defstore.NewFSSource(definitions.FS()), opts, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func fallsRequest() Request {
	return Request{
		Items: map[string]interface{}{
			"adl_hierarchy":    3,
			"iadl_performance": 2,
			"cps_score":        2,
			"falls_count":      2,
			"rehab_potential":  1,
			"adl_decline":      1,
			"gait_unsteady":    0,
			"pain_intensity":   1,
		},
		Profile: needs.Profile{FallsRiskLevel: 2, ADLSupportLevel: 3},
	}
}

func TestPreload_EmbeddedDefinitions(t *testing.T) {
	s := newEmbeddedService(t, Options{})
	require.NoError(t, s.Preload(context.Background()))

	names, err := s.Algorithms().Available()
	require.NoError(t, err)
	assert.Equal(t, []string{"chess_ca", "cps", "maple", "personal_support", "rehabilitation"}, names)
	for _, n := range names {
		def, err := s.Algorithms().Load(n)
		require.NoError(t, err)
		assert.Empty(t, algorithm.Lint(def), n)
	}

	caps, err := s.CAPs().Available()
	require.NoError(t, err)
	assert.Len(t, caps, 7)
}

func TestPreload_BrokenDefinition(t *testing.T) {
	fsys := fstest.MapFS{
		"categories.yaml":        {Data: []byte("categories:\n  personal_support: {unit: hours}\n")},
		"axes.yaml":              {Data: []byte("axes: {}\n")},
		"algorithms/bad.json":    {Data: []byte(`{"name": "bad"`)},
		"caps/functional/x.yaml": {Data: []byte("name: x\nversion: '1'\ntriggers: [{level: IMPROVE, conditions: {default: true}}]\n")},
	}
	s, err := Load(defstore.NewFSSource(fsys), Options{}, zerolog.Nop())
	require.NoError(t, err)
	err = s.Preload(context.Background())
	assert.ErrorIs(t, err, algorithm.ErrInvalidDefinition)
}

func TestLoad_MissingConfig(t *testing.T) {
	_, err := Load(defstore.NewFSSource(fstest.MapFS{}), Options{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestBuild_Balanced(t *testing.T) {
	s := newEmbeddedService(t, Options{})
	b, err := s.Build(context.Background(), fallsRequest())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, b.ID)
	assert.Equal(t, scenario.Balanced, b.Axis)
	assert.False(t, b.FellBack)
	assert.Equal(t, map[string]int{
		"chess_ca": 1, "cps": 0, "maple": 4, "personal_support": 4, "rehabilitation": 3,
	}, b.Scores)
	assert.Equal(t, map[string]string{"falls": "IMPROVE", "adl": "IMPROVE", "pain": "PREVENT"}, b.TriggeredCAPs)

	for name, fl := range b.Floors {
		assert.GreaterOrEqual(t, fl.Recommended, fl.Floor, name)
	}
	ps := b.Floors[category.PersonalSupport]
	require.NotNil(t, ps)
	assert.Equal(t, 12.0, ps.Floor)
	assert.Equal(t, 17.0, ps.Recommended)

	psw := b.Service("PSW")
	require.NotNil(t, psw)
	assert.Equal(t, 15, psw.Frequency, "13 allocated plus falls package boost")
	assert.GreaterOrEqual(t, psw.WeeklyHours(), ps.Floor)

	assert.Equal(t, 6, b.Service("NUR").Frequency)
	assert.Equal(t, 4, b.Service("SEC").Frequency)
	assert.Nil(t, b.Service("RPM"), "remote monitoring needs technology readiness")
	assert.Nil(t, b.Service("BSO"))

	seen := map[string]bool{}
	for _, a := range b.Services {
		assert.False(t, seen[a.ServiceCode], "duplicate %s", a.ServiceCode)
		seen[a.ServiceCode] = true
	}
	assert.Greater(t, b.WeeklyHours, 0.0)
	assert.Zero(t, b.WeeklyCost, "no catalog configured")
}

func TestBuild_WithCatalogAndOverrides(t *testing.T) {
	mem, err := servicecatalog.LoadMemory(defstore.NewFSSource(definitions.FS()))
	require.NoError(t, err)
	s := newEmbeddedService(t, Options{
		Catalog:     servicecatalog.NewCatalog(mem, mem, zerolog.Nop()),
		DefaultAxis: scenario.SafetyStability,
	})

	req := fallsRequest()
	req.Scores = map[string]int{"personal_support": 6}
	b, err := s.Build(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, scenario.SafetyStability, b.Axis)
	assert.Equal(t, 6, b.Scores["personal_support"])
	assert.Equal(t, 23.0, b.Floors[category.PersonalSupport].Floor, "21 from the override plus adl adjustment")
	assert.Greater(t, b.WeeklyCost, 0.0)

	psw := b.Service("PSW")
	require.NotNil(t, psw)
	require.NotNil(t, psw.ServiceType)
	assert.Equal(t, "Personal Support Worker", psw.ServiceType.Name)
	assert.Greater(t, psw.CostPerVisit, 0.0)
}

func TestCompareAxes(t *testing.T) {
	s := newEmbeddedService(t, Options{})
	axes := []scenario.Axis{scenario.TechEnabled, scenario.Balanced, scenario.RecoveryRehab, scenario.CaregiverRelief}

	bundles, err := s.CompareAxes(context.Background(), fallsRequest(), axes)
	require.NoError(t, err)
	require.Len(t, bundles, len(axes))

	for i, b := range bundles {
		assert.Equal(t, axes[i], b.RequestedAxis)
	}
	assert.Equal(t, scenario.Balanced, bundles[0].Axis, "no internet means no tech axis")
	assert.True(t, bundles[0].FellBack)
	assert.Equal(t, scenario.RecoveryRehab, bundles[2].Axis)
	assert.NotEqual(t, bundles[1].ID, bundles[2].ID)

	// the rehab axis shifts budget toward therapy
	rehabPT := bundles[2].Service("PT").Frequency
	balancedPT := bundles[1].Service("PT").Frequency
	assert.Greater(t, rehabPT, balancedPT)
}

func TestCompareAxes_Cancelled(t *testing.T) {
	s := newEmbeddedService(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.CompareAxes(ctx, fallsRequest(), []scenario.Axis{scenario.Balanced})
	assert.ErrorIs(t, err, context.Canceled)
}
