package servicecatalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogYAML = `
services:
  PSW:
    name: Personal Support Worker
    category: personal_support
    default_duration_minutes: 60
    default_cost: 38.5
    rates:
      - {amount: 40.0, effective_from: "2024-01-01", effective_to: "2025-01-01"}
      - {amount: 42.5, effective_from: "2025-01-01"}
  NUR:
    name: Nursing Visit
    category: clinical_monitoring
    default_duration_minutes: 45
    default_cost: 95
  OLD:
    name: Retired
    inactive: true
`

func date(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestParseMemory(t *testing.T) {
	m, err := ParseMemory([]byte(catalogYAML))
	require.NoError(t, err)
	ctx := context.Background()

	psw, err := m.GetByCode(ctx, "PSW")
	require.NoError(t, err)
	assert.Equal(t, "Personal Support Worker", psw.Name)
	assert.Equal(t, 60, psw.DefaultDurationMinutes)
	assert.Equal(t, IDForCode("PSW"), psw.ID)

	_, err = m.GetByCode(ctx, "OLD")
	assert.ErrorIs(t, err, ErrServiceTypeNotFound, "inactive types are hidden")
	_, err = m.GetByCode(ctx, "XYZ")
	assert.ErrorIs(t, err, ErrServiceTypeNotFound)

	all, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "NUR", all[0].Code)
}

func TestParseMemory_Errors(t *testing.T) {
	_, err := ParseMemory([]byte("services:\n  X: {default_cost: -1}\n"))
	assert.Error(t, err)
	_, err = ParseMemory([]byte("services:\n  X: {rates: [{amount: 1, effective_from: yesterday}]}\n"))
	assert.Error(t, err)
	_, err = ParseMemory([]byte("services:\n  X: {rates: [{amount: 1, effective_from: '2024-02-01', effective_to: '2024-01-01'}]}\n"))
	assert.Error(t, err)
}

func TestMemory_CurrentRate(t *testing.T) {
	m, err := ParseMemory([]byte(catalogYAML))
	require.NoError(t, err)
	ctx := context.Background()
	id := IDForCode("PSW")

	r, err := m.CurrentRate(ctx, id, date("2024-06-01"))
	require.NoError(t, err)
	assert.Equal(t, 40.0, r.Amount)

	r, err = m.CurrentRate(ctx, id, date("2025-01-01"))
	require.NoError(t, err)
	assert.Equal(t, 42.5, r.Amount, "effective_to is exclusive")

	_, err = m.CurrentRate(ctx, id, date("2023-12-31"))
	assert.ErrorIs(t, err, ErrRateNotFound)

	_, err = m.CurrentRate(ctx, IDForCode("NUR"), date("2024-06-01"))
	assert.ErrorIs(t, err, ErrRateNotFound)

	assert.Len(t, m.RatesFor(id), 2)
}

type failingRates struct{ err error }

func (f failingRates) CurrentRate(context.Context, uuid.UUID, time.Time) (*Rate, error) {
	return nil, f.err
}

func TestCostFor(t *testing.T) {
	m, err := ParseMemory([]byte(catalogYAML))
	require.NoError(t, err)
	ctx := context.Background()
	psw, _ := m.GetByCode(ctx, "PSW")
	nur, _ := m.GetByCode(ctx, "NUR")

	cost, fromRate, err := CostFor(ctx, m, psw, date("2025-03-01"))
	require.NoError(t, err)
	assert.True(t, fromRate)
	assert.Equal(t, 42.5, cost)

	cost, fromRate, err = CostFor(ctx, m, nur, date("2025-03-01"))
	require.NoError(t, err)
	assert.False(t, fromRate)
	assert.Equal(t, 95.0, cost)

	cost, _, err = CostFor(ctx, nil, nur, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 95.0, cost)

	boom := errors.New("connection reset")
	cost, _, err = CostFor(ctx, failingRates{err: boom}, nur, time.Now())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 95.0, cost)
}

func TestCatalog_Quote(t *testing.T) {
	m, err := ParseMemory([]byte(catalogYAML))
	require.NoError(t, err)
	c := NewCatalog(m, failingRates{err: errors.New("down")}, zerolog.Nop())

	q, err := c.Quote(context.Background(), "NUR")
	require.NoError(t, err)
	assert.Equal(t, 45, q.DurationMinutes)
	assert.Equal(t, 95.0, q.CostPerVisit)
	assert.False(t, q.FromRate)

	_, err = c.Quote(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrServiceTypeNotFound)

	withRates := NewCatalog(m, m, zerolog.Nop())
	withRates.now = func() time.Time { return date("2024-03-01") }
	q, err = withRates.Quote(context.Background(), "PSW")
	require.NoError(t, err)
	assert.Equal(t, 40.0, q.CostPerVisit)
	assert.True(t, q.FromRate)
}

func TestSeed(t *testing.T) {
	src, err := ParseMemory([]byte(catalogYAML))
	require.NoError(t, err)
	dst := NewMemory()

	n, err := Seed(context.Background(), src, dst)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	r, err := dst.CurrentRate(context.Background(), IDForCode("PSW"), date("2025-06-01"))
	require.NoError(t, err)
	assert.Equal(t, 42.5, r.Amount)
}

// renumberingWriter mimics a store that keeps an existing row's ID.
type renumberingWriter struct {
	*Memory
	ids map[string]uuid.UUID
}

func (w *renumberingWriter) UpsertServiceType(ctx context.Context, st *ServiceType) error {
	st.ID = w.ids[st.Code]
	return w.Memory.UpsertServiceType(ctx, st)
}

func TestSeed_RemapsRatesToStoredID(t *testing.T) {
	src, err := ParseMemory([]byte(catalogYAML))
	require.NoError(t, err)
	stored := uuid.New()
	dst := &renumberingWriter{Memory: NewMemory(), ids: map[string]uuid.UUID{"PSW": stored}}

	_, err = Seed(context.Background(), src, dst)
	require.NoError(t, err)

	r, err := dst.CurrentRate(context.Background(), stored, date("2025-06-01"))
	require.NoError(t, err)
	assert.Equal(t, 42.5, r.Amount)

	orig, err := src.GetByCode(context.Background(), "PSW")
	require.NoError(t, err)
	assert.Equal(t, IDForCode("PSW"), orig.ID, "source catalog is not modified")
}

func TestRate_Covers(t *testing.T) {
	to := date("2024-02-01")
	r := &Rate{EffectiveFrom: date("2024-01-01"), EffectiveTo: &to}
	assert.True(t, r.Covers(date("2024-01-01")))
	assert.True(t, r.Covers(date("2024-01-31")))
	assert.False(t, r.Covers(date("2024-02-01")))
	assert.False(t, r.Covers(date("2023-12-31")))
}
