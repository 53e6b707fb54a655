package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wolfty27/Connected-Capacity-sub005/definitions"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/config"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/algorithm"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/bundle"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/intensity"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/needs"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/protocol"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/scenario"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/servicecatalog"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/platform/db"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/platform/defstore"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/platform/expr"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "bundle-engine",
		Short:         "Care bundle composition engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(evaluateCmd())
	rootCmd.AddCommand(capsCmd())
	rootCmd.AddCommand(composeCmd())
	rootCmd.AddCommand(intensityCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(catalogCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// app holds what every subcommand needs: configuration, a logger and the
// definitions source. The pool is opened on first use.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	src    defstore.Source
	pool   *pgxpool.Pool
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	logger := zerolog.New(out).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	if lvl, err := cfg.Level(); err == nil {
		logger = logger.Level(lvl)
	}
	return logger
}

func setup() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	// Results go to stdout; logs stay on stderr so output can be piped.
	logger := newLogger(cfg, os.Stderr)

	src, err := definitionsSource(cfg)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, src: src}, nil
}

func definitionsSource(cfg *config.Config) (defstore.Source, error) {
	if cfg.DefinitionsDir == "" {
		return defstore.NewFSSource(definitions.FS()), nil
	}
	return defstore.NewDirSource(cfg.DefinitionsDir)
}

func (a *app) connect(ctx context.Context) (*pgxpool.Pool, error) {
	if a.pool != nil {
		return a.pool, nil
	}
	if !a.cfg.HasDatabase() {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	pool, err := db.NewPool(ctx, a.cfg.DatabaseURL, a.cfg.DBSchema, a.cfg.DBMaxConns, a.cfg.DBMinConns)
	if err != nil {
		return nil, err
	}
	a.logger.Info().Str("schema", a.cfg.DBSchema).Msg("connected to database")
	a.pool = pool
	return pool, nil
}

func (a *app) close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// catalog prices services from Postgres when a database is configured and
// from the definitions' services.yaml otherwise.
func (a *app) catalog(ctx context.Context) (*servicecatalog.Catalog, error) {
	if a.cfg.HasDatabase() {
		pool, err := a.connect(ctx)
		if err != nil {
			return nil, err
		}
		store := servicecatalog.NewPGStore(pool)
		return servicecatalog.NewCatalog(store, store, a.logger), nil
	}
	mem, err := servicecatalog.LoadMemory(a.src)
	if err != nil {
		return nil, err
	}
	return servicecatalog.NewCatalog(mem, mem, a.logger), nil
}

func (a *app) service(ctx context.Context, priced bool) (*bundle.Service, error) {
	opts := bundle.Options{
		DefaultAxis:    a.cfg.Axis(),
		MinTotalBudget: a.cfg.MinTotalBudget,
	}
	if priced {
		cat, err := a.catalog(ctx)
		if err != nil {
			return nil, err
		}
		opts.Catalog = cat
	}
	return bundle.Load(a.src, opts, a.logger)
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and check every definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			strict, _ := cmd.Flags().GetBool("strict")

			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			svc, err := a.service(cmd.Context(), false)
			if err != nil {
				return err
			}
			if err := svc.Preload(cmd.Context()); err != nil {
				return err
			}

			names, err := svc.Algorithms().Available()
			if err != nil {
				return err
			}
			warnings := 0
			for _, name := range names {
				def, err := svc.Algorithms().Load(name)
				if err != nil {
					return err
				}
				for _, w := range algorithm.Lint(def) {
					a.logger.Warn().Str("algorithm", name).Msg(w)
					warnings++
				}
			}
			caps, err := svc.CAPs().Available()
			if err != nil {
				return err
			}

			fmt.Printf("%d algorithm(s), %d CAP(s), %d axis template(s) loaded.\n",
				len(names), len(caps), len(svc.Composer().Axes().Names()))
			if warnings > 0 {
				fmt.Printf("%d expression warning(s).\n", warnings)
				if strict {
					return fmt.Errorf("validation failed with %d warning(s)", warnings)
				}
			}
			return nil
		},
	}
	cmd.Flags().Bool("strict", false, "Fail on expression warnings")
	return cmd
}

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate <algorithm>",
		Short: "Score one decision-tree algorithm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemsPath, _ := cmd.Flags().GetString("items")
			trace, _ := cmd.Flags().GetBool("trace")

			a, err := setup()
			if err != nil {
				return err
			}
			var items map[string]interface{}
			if err := readJSON(itemsPath, &items); err != nil {
				return err
			}

			engine := algorithm.NewEngine(a.src, a.logger)
			def, err := engine.Load(args[0])
			if err != nil {
				return err
			}
			meta, err := engine.Meta(args[0])
			if err != nil {
				return err
			}
			score, steps := algorithm.Run(def, expr.VarsFromMap(itemsVars(items)))

			out := map[string]interface{}{
				"algorithm": meta.Name,
				"version":   meta.Version,
				"score":     score.Interface(),
			}
			if trace {
				out["steps"] = steps
			}
			return writeJSON(os.Stdout, out)
		},
	}
	cmd.Flags().String("items", "-", "JSON file of assessment items (- for stdin)")
	cmd.Flags().Bool("trace", false, "Include the branch decisions taken")
	return cmd
}

func capsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "caps",
		Short: "Score algorithms and evaluate CAP triggers for a request",
		RunE: func(cmd *cobra.Command, args []string) error {
			reqPath, _ := cmd.Flags().GetString("request")

			a, err := setup()
			if err != nil {
				return err
			}
			var req bundle.Request
			if err := readJSON(reqPath, &req); err != nil {
				return err
			}
			svc, err := a.service(cmd.Context(), false)
			if err != nil {
				return err
			}
			as, err := svc.Assess(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(os.Stdout, struct {
				Scores  map[string]int              `json:"scores"`
				Results map[string]*protocol.Result `json:"results"`
			}{as.Scores, as.CAPResults})
		},
	}
	cmd.Flags().String("request", "-", "JSON request file (- for stdin)")
	return cmd
}

func composeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Compose a priced care bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			reqPath, _ := cmd.Flags().GetString("request")
			axisFlag, _ := cmd.Flags().GetString("axis")
			compare, _ := cmd.Flags().GetString("compare")

			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			var req bundle.Request
			if err := readJSON(reqPath, &req); err != nil {
				return err
			}
			if axisFlag != "" {
				axis, err := scenario.ParseAxis(axisFlag)
				if err != nil {
					return err
				}
				req.Axis = axis
			}

			svc, err := a.service(cmd.Context(), true)
			if err != nil {
				return err
			}

			if compare == "" {
				b, err := svc.Build(cmd.Context(), req)
				if err != nil {
					return err
				}
				return writeJSON(os.Stdout, b)
			}
			axes, err := parseAxes(compare)
			if err != nil {
				return err
			}
			bundles, err := svc.CompareAxes(cmd.Context(), req, axes)
			if err != nil {
				return err
			}
			return writeJSON(os.Stdout, bundles)
		},
	}
	cmd.Flags().String("request", "-", "JSON request file (- for stdin)")
	cmd.Flags().String("axis", "", "Scenario axis (overrides the request and DEFAULT_AXIS)")
	cmd.Flags().String("compare", "", "Comma-separated axes to compose side by side")
	return cmd
}

func intensityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "intensity",
		Short: "Resolve per-service amounts from scores and CAP recommendations",
		RunE: func(cmd *cobra.Command, args []string) error {
			reqPath, _ := cmd.Flags().GetString("request")
			axisFlag, _ := cmd.Flags().GetString("axis")

			a, err := setup()
			if err != nil {
				return err
			}
			var req bundle.Request
			if err := readJSON(reqPath, &req); err != nil {
				return err
			}
			axis := a.cfg.Axis()
			if axisFlag != "" {
				if axis, err = scenario.ParseAxis(axisFlag); err != nil {
					return err
				}
			}

			svc, err := a.service(cmd.Context(), false)
			if err != nil {
				return err
			}
			as, err := svc.Assess(cmd.Context(), req)
			if err != nil {
				return err
			}
			plan := intensity.NewResolver(a.logger).Resolve(as.Scores, as.CAPResults, string(axis))
			return writeJSON(os.Stdout, plan)
		},
	}
	cmd.Flags().String("request", "-", "JSON request file (- for stdin)")
	cmd.Flags().String("axis", "", "Axis multipliers to apply")
	return cmd
}

func parseAxes(list string) ([]scenario.Axis, error) {
	var axes []scenario.Axis
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		axis, err := scenario.ParseAxis(part)
		if err != nil {
			return nil, err
		}
		axes = append(axes, axis)
	}
	if len(axes) == 0 {
		return nil, fmt.Errorf("--compare needs at least one axis")
	}
	return axes, nil
}

// itemsVars merges profile field defaults under the raw items so tree
// conditions on profile fields read 0 rather than missing.
func itemsVars(items map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(items)+len(needs.FieldNames))
	var p needs.Profile
	for _, f := range needs.FieldNames {
		out[f] = p.Lookup(f).Interface()
	}
	for k, v := range items {
		out[k] = v
	}
	return out
}

func readJSON(path string, v interface{}) error {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
