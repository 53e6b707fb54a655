// Package bundle runs the whole pipeline for a patient: algorithm scores,
// CAP triggers, category budgets and an axis composition, producing a priced
// care bundle.
package bundle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/algorithm"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/category"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/needs"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/protocol"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/scenario"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/servicecatalog"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/platform/defstore"
)

// Service composes bundles.
type Service struct {
	algorithms  *algorithm.Engine
	caps        *protocol.Engine
	resolver    *category.Resolver
	composer    *scenario.Engine
	defaultAxis scenario.Axis
	now         func() time.Time
	logger      zerolog.Logger
}

// NewService wires the engines together. An empty defaultAxis means balanced.
func NewService(algorithms *algorithm.Engine, caps *protocol.Engine, resolver *category.Resolver,
	composer *scenario.Engine, defaultAxis scenario.Axis, logger zerolog.Logger) *Service {
	if defaultAxis == "" {
		defaultAxis = scenario.Balanced
	}
	return &Service{
		algorithms:  algorithms,
		caps:        caps,
		resolver:    resolver,
		composer:    composer,
		defaultAxis: defaultAxis,
		now:         time.Now,
		logger:      logger.With().Str("component", "bundle").Logger(),
	}
}

// Options tune a Service built by Load.
type Options struct {
	Catalog        *servicecatalog.Catalog
	DefaultAxis    scenario.Axis
	MinTotalBudget float64
}

// Load builds a Service over a definitions source. Category, axis and
// substitution documents are read eagerly; algorithms and CAPs lazily.
func Load(src defstore.Source, opts Options, logger zerolog.Logger) (*Service, error) {
	cats, err := category.LoadConfig(src)
	if err != nil {
		return nil, err
	}
	axes, err := scenario.LoadAxes(src)
	if err != nil {
		return nil, err
	}
	rules, err := scenario.LoadSubstitutions(src)
	if err != nil {
		return nil, err
	}
	resolver := category.NewResolver(cats, logger)
	scenarioOpts := []scenario.Option{scenario.WithMinTotalBudget(opts.MinTotalBudget)}
	if opts.Catalog != nil {
		scenarioOpts = append(scenarioOpts, scenario.WithCatalog(opts.Catalog))
	}
	return NewService(
		algorithm.NewEngine(src, logger),
		protocol.NewEngine(src, logger),
		resolver,
		scenario.NewEngine(axes, rules, resolver, logger, scenarioOpts...),
		opts.DefaultAxis,
		logger,
	), nil
}

// Algorithms returns the decision tree engine.
func (s *Service) Algorithms() *algorithm.Engine { return s.algorithms }

// CAPs returns the CAP trigger engine.
func (s *Service) CAPs() *protocol.Engine { return s.caps }

// Composer returns the scenario engine.
func (s *Service) Composer() *scenario.Engine { return s.composer }

// Preload loads every algorithm and CAP definition concurrently so the first
// request pays no load cost and broken definitions surface at startup.
func (s *Service) Preload(ctx context.Context) error {
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		names, err := s.algorithms.Available()
		if err != nil {
			return fmt.Errorf("listing algorithms: %w", err)
		}
		for _, n := range names {
			if _, err := s.algorithms.Load(n); err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(s.caps.LoadAll)
	return g.Wait()
}

// Assess computes scores, CAP results and category budgets for req.
func (s *Service) Assess(ctx context.Context, req Request) (*Assessment, error) {
	names, err := s.algorithms.Available()
	if err != nil {
		return nil, fmt.Errorf("listing algorithms: %w", err)
	}
	scores, err := s.algorithms.EvaluateMany(names, req.Items)
	if err != nil {
		return nil, err
	}
	for name, score := range req.Scores {
		scores[name] = score
	}

	results := s.caps.EvaluateAll(capInput(req.Items, scores, req.Profile))
	levels := protocol.Levels(results)
	floors := s.resolver.ResolveToCategories(scores, levels, req.Profile)

	s.logger.Debug().Int("scores", len(scores)).Int("caps", len(levels)).Msg("assessment complete")
	return &Assessment{
		Scores:        scores,
		CAPResults:    results,
		TriggeredCAPs: levels,
		Floors:        floors,
		Profile:       req.Profile,
	}, nil
}

// Build assesses req and composes a bundle for req.Axis, or the default
// axis when unset.
func (s *Service) Build(ctx context.Context, req Request) (*Bundle, error) {
	a, err := s.Assess(ctx, req)
	if err != nil {
		return nil, err
	}
	axis := req.Axis
	if axis == "" {
		axis = s.defaultAxis
	}
	return s.Compose(ctx, a, axis), nil
}

// CompareAxes composes one bundle per axis from a single assessment. Axes
// run concurrently; bundles come back in the order requested.
func (s *Service) CompareAxes(ctx context.Context, req Request, axes []scenario.Axis) ([]*Bundle, error) {
	a, err := s.Assess(ctx, req)
	if err != nil {
		return nil, err
	}
	bundles := make([]*Bundle, len(axes))
	g, gctx := errgroup.WithContext(ctx)
	for i, axis := range axes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			bundles[i] = s.Compose(gctx, a, axis)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bundles, nil
}

// Compose builds the bundle for one axis from an assessment.
func (s *Service) Compose(ctx context.Context, a *Assessment, axis scenario.Axis) *Bundle {
	comp := s.composer.Compose(ctx, axis, a.Floors, a.TriggeredCAPs, a.Profile)
	hours, cost := scenario.Totals(comp.Services)
	b := &Bundle{
		ID:            uuid.New(),
		RequestedAxis: axis,
		Axis:          comp.Axis,
		FellBack:      comp.FellBack,
		Default:       comp.Default,
		Scores:        a.Scores,
		TriggeredCAPs: a.TriggeredCAPs,
		Floors:        a.Floors,
		TotalBudget:   comp.TotalBudget,
		Services:      comp.Services,
		WeeklyHours:   hours,
		WeeklyCost:    cost,
		CreatedAt:     s.now().UTC(),
	}
	s.logger.Info().
		Str("bundle_id", b.ID.String()).
		Str("axis", string(b.Axis)).
		Bool("fell_back", b.FellBack).
		Int("services", len(b.Services)).
		Float64("weekly_hours", b.WeeklyHours).
		Msg("bundle composed")
	return b
}

// capInput is what CAP conditions see: the assessment items, every
// algorithm score under its name, and the profile fields.
func capInput(items map[string]interface{}, scores map[string]int, p needs.Profile) map[string]interface{} {
	out := make(map[string]interface{}, len(items)+len(scores)+len(needs.FieldNames))
	for _, f := range needs.FieldNames {
		out[f] = p.Lookup(f).Interface()
	}
	for k, v := range items {
		out[k] = v
	}
	for name, score := range scores {
		out[name] = score
	}
	return out
}
