// Package protocol evaluates Clinical Assessment Protocol (CAP) trigger
// definitions against a profile derived from assessment data.
package protocol

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/wolfty27/Connected-Capacity-sub005/internal/platform/defstore"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/platform/expr"
)

var (
	ErrDefinitionNotFound = errors.New("CAP definition not found")
	ErrInvalidDefinition  = errors.New("invalid CAP definition")
)

// Dir is the root directory of CAP documents.
const Dir = "caps"

// Subdirs are searched in order before the root directory.
var Subdirs = []string{"functional", "cognitive", "social", "clinical"}

var extensions = []string{".yaml", ".yml"}

// Engine loads and evaluates CAP definitions.
type Engine struct {
	src    defstore.Source
	cache  *defstore.Cache[*Definition]
	logger zerolog.Logger
}

// NewEngine creates a CAP engine reading from src.
func NewEngine(src defstore.Source, logger zerolog.Logger) *Engine {
	return &Engine{
		src:    src,
		cache:  defstore.NewCache[*Definition](),
		logger: logger.With().Str("component", "protocol").Logger(),
	}
}

// Locate returns the document path for name, checking each subdirectory and
// then the root.
func (e *Engine) Locate(name string) (string, bool) {
	dirs := make([]string, 0, len(Subdirs)+1)
	for _, sub := range Subdirs {
		dirs = append(dirs, Dir+"/"+sub)
	}
	dirs = append(dirs, Dir)
	for _, dir := range dirs {
		for _, ext := range extensions {
			path := dir + "/" + name + ext
			if defstore.Exists(e.src, path) {
				return path, true
			}
		}
	}
	return "", false
}

// Load returns the named CAP, reading and validating it on first use.
func (e *Engine) Load(name string) (*Definition, error) {
	return e.cache.Get(name, func() (*Definition, error) {
		path, ok := e.Locate(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrDefinitionNotFound, name)
		}
		data, err := e.src.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading CAP %s: %w", path, err)
		}
		def, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("loading CAP %s: %w", path, err)
		}
		e.logger.Debug().Str("cap", def.Name).Str("path", path).Msg("CAP loaded")
		return def, nil
	})
}

// Parse decodes and validates a YAML CAP definition.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: parsing YAML: %v", ErrInvalidDefinition, err)
	}
	if err := Validate(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// Register adds a definition directly, bypassing the source.
func (e *Engine) Register(def *Definition) error {
	if err := Validate(def); err != nil {
		return err
	}
	e.cache.Put(def.Name, def)
	return nil
}

// Available lists every discoverable CAP name, sorted and de-duplicated.
func (e *Engine) Available() ([]string, error) {
	seen := make(map[string]bool)
	var names []string
	add := func(list []string) {
		for _, n := range list {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	for _, sub := range Subdirs {
		list, err := e.src.List(Dir+"/"+sub, extensions...)
		if err != nil {
			return nil, err
		}
		add(list)
	}
	list, err := e.src.List(Dir, extensions...)
	if err != nil {
		return nil, err
	}
	add(list)
	add(e.cache.Names())
	sort.Strings(names)
	return names, nil
}

// LoadAll loads every available CAP and returns the joined load errors.
func (e *Engine) LoadAll() error {
	names, err := e.Available()
	if err != nil {
		return err
	}
	var errs []error
	for _, name := range names {
		if _, err := e.Load(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Evaluate runs the named CAP's triggers in order against data. When nothing
// matches, a NOT_TRIGGERED result is returned.
func (e *Engine) Evaluate(name string, data map[string]interface{}) (*Result, error) {
	def, err := e.Load(name)
	if err != nil {
		return nil, err
	}
	return EvaluateDefinition(def, expr.VarsFromMap(data)), nil
}

// EvaluateDefinition is Evaluate for an already loaded definition.
func EvaluateDefinition(def *Definition, vars expr.Vars) *Result {
	for _, t := range def.Triggers {
		if !t.Conditions.Match(vars) {
			continue
		}
		return &Result{
			CAPName:         def.Name,
			Category:        def.Category,
			Level:           t.Level,
			Description:     t.Description,
			Recommendations: t.ServiceRecommendations,
			Guidelines:      t.CareGuidelines,
		}
	}
	return &Result{
		CAPName:  def.Name,
		Category: def.Category,
		Level:    LevelNotTriggered,
	}
}

// EvaluateAll evaluates every available CAP and returns the triggered ones
// keyed by name. A CAP that fails to load is logged and skipped.
func (e *Engine) EvaluateAll(data map[string]interface{}) map[string]*Result {
	out := make(map[string]*Result)
	names, err := e.Available()
	if err != nil {
		e.logger.Error().Err(err).Msg("listing CAP definitions")
		return out
	}
	vars := expr.VarsFromMap(data)
	for _, name := range names {
		res, err := e.evaluateIsolated(name, vars)
		if err != nil {
			e.logger.Error().Err(err).Str("cap", name).Msg("CAP evaluation failed")
			continue
		}
		if res.Triggered() {
			out[name] = res
		}
	}
	if len(out) > 0 {
		e.logger.Debug().Str("triggered", strings.Join(sortedKeys(out), ",")).Msg("CAPs evaluated")
	}
	return out
}

func (e *Engine) evaluateIsolated(name string, vars expr.Vars) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluating CAP %s: %v", name, r)
		}
	}()
	def, err := e.Load(name)
	if err != nil {
		return nil, err
	}
	return EvaluateDefinition(def, vars), nil
}

func sortedKeys(m map[string]*Result) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
