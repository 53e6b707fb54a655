// Package servicecatalog resolves service types and billing rates for the
// services a composition allocates.
package servicecatalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// CostFor returns the per-visit cost of st at t: the current rate when one
// exists, else the service type's static cost. Only repository failures
// other than a missing rate are returned as errors.
func CostFor(ctx context.Context, rates RateRepository, st *ServiceType, at time.Time) (float64, bool, error) {
	if rates == nil {
		return st.DefaultCost, false, nil
	}
	rate, err := rates.CurrentRate(ctx, st.ID, at)
	if err != nil {
		if errors.Is(err, ErrRateNotFound) {
			return st.DefaultCost, false, nil
		}
		return st.DefaultCost, false, fmt.Errorf("rate for %s: %w", st.Code, err)
	}
	return rate.Amount, true, nil
}

// Catalog combines a registry and a rate repository into per-code quotes.
type Catalog struct {
	registry Registry
	rates    RateRepository
	now      func() time.Time
	logger   zerolog.Logger
}

// NewCatalog creates a catalog. rates may be nil, in which case static costs
// are used.
func NewCatalog(registry Registry, rates RateRepository, logger zerolog.Logger) *Catalog {
	return &Catalog{
		registry: registry,
		rates:    rates,
		now:      time.Now,
		logger:   logger.With().Str("component", "servicecatalog").Logger(),
	}
}

// Registry returns the underlying registry.
func (c *Catalog) Registry() Registry { return c.registry }

// Quote resolves the service type, visit duration and cost for code. A
// missing service type wraps ErrServiceTypeNotFound; a rate lookup failure
// is logged and the static cost used.
func (c *Catalog) Quote(ctx context.Context, code string) (*Quote, error) {
	st, err := c.registry.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	cost, fromRate, err := CostFor(ctx, c.rates, st, c.now())
	if err != nil {
		c.logger.Warn().Err(err).Str("service_code", code).Msg("rate lookup failed, using default cost")
	}
	return &Quote{
		ServiceType:     st,
		DurationMinutes: st.DefaultDurationMinutes,
		CostPerVisit:    cost,
		FromRate:        fromRate,
	}, nil
}

// Seed copies every service type and rate from a memory catalog into w.
func Seed(ctx context.Context, src *Memory, w Writer) (int, error) {
	types, err := src.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, st := range types {
		// The writer may keep an existing row's ID for the same code.
		target := *st
		if err := w.UpsertServiceType(ctx, &target); err != nil {
			return n, fmt.Errorf("seeding %s: %w", st.Code, err)
		}
		for _, r := range src.RatesFor(st.ID) {
			rate := *r
			rate.ServiceTypeID = target.ID
			if err := w.AddRate(ctx, &rate); err != nil {
				return n, fmt.Errorf("seeding rate for %s: %w", st.Code, err)
			}
		}
		n++
	}
	return n, nil
}
