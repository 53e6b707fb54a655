// Package algorithm loads InterRAI-derived algorithm definitions (computed
// input formulas plus a binary decision tree) and evaluates them against
// assessment items.
package algorithm

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/wolfty27/Connected-Capacity-sub005/internal/platform/defstore"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/platform/expr"
)

var (
	ErrDefinitionNotFound = errors.New("algorithm definition not found")
	ErrInvalidDefinition  = errors.New("invalid algorithm definition")
)

// Dir is the directory algorithm documents are read from.
const Dir = "algorithms"

// Engine loads algorithms by name and evaluates them. Loaded definitions are
// cached for the lifetime of the engine.
type Engine struct {
	src    defstore.Source
	cache  *defstore.Cache[*Definition]
	logger zerolog.Logger
}

// NewEngine creates an engine reading <Dir>/<name>.json from src.
func NewEngine(src defstore.Source, logger zerolog.Logger) *Engine {
	return &Engine{
		src:    src,
		cache:  defstore.NewCache[*Definition](),
		logger: logger.With().Str("component", "algorithm").Logger(),
	}
}

// Load returns the named definition, reading and validating it on first use.
func (e *Engine) Load(name string) (*Definition, error) {
	return e.cache.Get(name, func() (*Definition, error) {
		data, err := e.src.ReadFile(Dir + "/" + name + ".json")
		if err != nil {
			if errors.Is(err, defstore.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrDefinitionNotFound, name)
			}
			return nil, fmt.Errorf("loading algorithm %s: %w", name, err)
		}
		def, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("loading algorithm %s: %w", name, err)
		}
		for _, w := range Lint(def) {
			e.logger.Warn().Str("algorithm", name).Msg(w)
		}
		e.logger.Debug().Str("algorithm", name).Str("version", def.Version).Msg("algorithm loaded")
		return def, nil
	})
}

// Register adds a definition obtained elsewhere after validating it.
func (e *Engine) Register(def *Definition) error {
	if err := Validate(def); err != nil {
		return err
	}
	e.cache.Put(def.Name, def)
	return nil
}

// Evaluate computes the named algorithm's score for the given items.
func (e *Engine) Evaluate(name string, input map[string]interface{}) (expr.Value, error) {
	def, err := e.Load(name)
	if err != nil {
		return expr.Zero, err
	}
	v, _ := Run(def, expr.VarsFromMap(input))
	return v, nil
}

// Score is Evaluate truncated to an integer; boolean results map to 0/1.
func (e *Engine) Score(name string, input map[string]interface{}) (int, error) {
	v, err := e.Evaluate(name, input)
	if err != nil {
		return 0, err
	}
	return v.Int(), nil
}

// EvaluateMany scores several algorithms against the same items. A missing
// or broken definition fails the whole call.
func (e *Engine) EvaluateMany(names []string, input map[string]interface{}) (map[string]int, error) {
	vars := expr.VarsFromMap(input)
	scores := make(map[string]int, len(names))
	for _, name := range names {
		def, err := e.Load(name)
		if err != nil {
			return nil, err
		}
		v, _ := Run(def, vars)
		scores[name] = v.Int()
	}
	return scores, nil
}

// Meta returns the introspection view of the named algorithm.
func (e *Engine) Meta(name string) (*Meta, error) {
	def, err := e.Load(name)
	if err != nil {
		return nil, err
	}
	computed := make([]string, len(def.ComputedInputs))
	for i, ci := range def.ComputedInputs {
		computed[i] = ci.Name
	}
	return &Meta{
		Name:               def.Name,
		Version:            def.Version,
		VerificationStatus: def.VerificationStatus,
		OutputRange:        def.OutputRange,
		OutputType:         def.OutputType,
		ItemsUsed:          def.ItemsUsed,
		ComputedInputs:     computed,
		Depth:              def.Depth(),
		Leaves:             len(def.Leaves()),
	}, nil
}

// Available lists the algorithm names present in the source plus any
// registered directly.
func (e *Engine) Available() ([]string, error) {
	names, err := e.src.List(Dir, ".json")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	for _, n := range e.cache.Names() {
		if !seen[n] {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Step records one branch decision during traversal.
type Step struct {
	Condition string `json:"condition"`
	Result    bool   `json:"result"`
}

// Run evaluates def against vars: computed inputs in declaration order, then
// a single root-to-leaf walk. It returns the leaf value and the decisions
// taken on the way.
func Run(def *Definition, vars expr.Vars) (expr.Value, []Step) {
	ctx := make(expr.Vars, len(vars)+len(def.ComputedInputs))
	for k, v := range vars {
		ctx[k] = v
	}
	for _, ci := range def.ComputedInputs {
		ctx[ci.Name] = ci.Program().Eval(ctx)
	}

	var steps []Step
	node := def.Tree
	for {
		switch n := node.(type) {
		case *Leaf:
			return n.Return, steps
		case *Branch:
			ok := n.Program().Eval(ctx).Truthy()
			steps = append(steps, Step{Condition: n.Condition, Result: ok})
			if ok {
				node = n.True
			} else {
				node = n.False
			}
		default:
			// Validate rules this out for loaded definitions.
			return expr.Zero, steps
		}
	}
}

// Validate checks required fields and that every path ends in a leaf.
func Validate(def *Definition) error {
	if def == nil {
		return fmt.Errorf("%w: nil definition", ErrInvalidDefinition)
	}
	var missing []string
	if def.Name == "" {
		missing = append(missing, "name")
	}
	if def.Version == "" {
		missing = append(missing, "version")
	}
	if def.Tree == nil {
		missing = append(missing, "tree")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields %v", ErrInvalidDefinition, missing)
	}
	if def.OutputRange[0] > def.OutputRange[1] {
		return fmt.Errorf("%w: output_range min %v exceeds max %v", ErrInvalidDefinition, def.OutputRange[0], def.OutputRange[1])
	}
	for _, ci := range def.ComputedInputs {
		if ci.Name == "" {
			return fmt.Errorf("%w: computed input with empty name", ErrInvalidDefinition)
		}
	}
	return validateNode(def.Tree, "tree")
}

func validateNode(n Node, path string) error {
	switch node := n.(type) {
	case *Leaf:
		if node == nil {
			return fmt.Errorf("%w: %s: nil leaf", ErrInvalidDefinition, path)
		}
		if k := node.Return.Kind(); k != expr.KindNumber && k != expr.KindBool {
			return fmt.Errorf("%w: %s.return must be a number or boolean", ErrInvalidDefinition, path)
		}
		return nil
	case *Branch:
		if node == nil {
			return fmt.Errorf("%w: %s: nil branch", ErrInvalidDefinition, path)
		}
		if node.Condition == "" {
			return fmt.Errorf("%w: %s: branch missing \"condition\"", ErrInvalidDefinition, path)
		}
		if node.True == nil {
			return fmt.Errorf("%w: %s: branch missing \"true_branch\"", ErrInvalidDefinition, path)
		}
		if node.False == nil {
			return fmt.Errorf("%w: %s: branch missing \"false_branch\"", ErrInvalidDefinition, path)
		}
		if err := validateNode(node.True, path+".true_branch"); err != nil {
			return err
		}
		return validateNode(node.False, path+".false_branch")
	default:
		return fmt.Errorf("%w: %s: missing node", ErrInvalidDefinition, path)
	}
}

// Lint reports malformed expressions and, when items_used is declared,
// identifiers that are neither declared items nor computed inputs. Such
// identifiers still evaluate as 0 at runtime; Lint only surfaces them.
func Lint(def *Definition) []string {
	known := make(map[string]bool)
	for _, it := range def.ItemsUsed {
		known[it] = true
	}
	checkIdents := len(def.ItemsUsed) > 0

	var warnings []string
	check := func(where string, p *expr.Program) {
		for _, d := range p.Diagnostics() {
			warnings = append(warnings, fmt.Sprintf("%s: malformed expression: %s", where, d))
		}
		if !checkIdents {
			return
		}
		for _, id := range p.Identifiers() {
			if !known[id] {
				warnings = append(warnings, fmt.Sprintf("%s: identifier %q is not a declared item or computed input", where, id))
			}
		}
	}

	for _, ci := range def.ComputedInputs {
		check("computed_inputs."+ci.Name, ci.Program())
		known[ci.Name] = true
	}

	var rec func(Node, string)
	rec = func(n Node, path string) {
		b, ok := n.(*Branch)
		if !ok {
			return
		}
		check(path+".condition", b.Program())
		rec(b.True, path+".true_branch")
		rec(b.False, path+".false_branch")
	}
	rec(def.Tree, "tree")
	return warnings
}
