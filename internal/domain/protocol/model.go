package protocol

import (
	"fmt"

	"github.com/wolfty27/Connected-Capacity-sub005/internal/platform/expr"
)

// Level is the action level a triggered CAP asks for.
type Level string

const (
	LevelImprove      Level = "IMPROVE"
	LevelPrevent      Level = "PREVENT"
	LevelFacilitate   Level = "FACILITATE"
	LevelNotTriggered Level = "NOT_TRIGGERED"
)

// Valid reports whether l is one of the four known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelImprove, LevelPrevent, LevelFacilitate, LevelNotTriggered:
		return true
	}
	return false
}

// Definition is a Clinical Assessment Protocol: an ordered list of triggers,
// the first matching one deciding the outcome.
type Definition struct {
	Name                  string    `yaml:"name"`
	Version               string    `yaml:"version"`
	Category              string    `yaml:"category"`
	Description           string    `yaml:"description"`
	ApplicableInstruments []string  `yaml:"applicable_instruments"`
	Triggers              []Trigger `yaml:"triggers"`
}

// Trigger pairs a condition group with the level it yields.
type Trigger struct {
	Level                  Level                   `yaml:"level"`
	Conditions             Group                   `yaml:"conditions"`
	Description            string                  `yaml:"description"`
	ServiceRecommendations []ServiceRecommendation `yaml:"service_recommendations"`
	CareGuidelines         []string                `yaml:"care_guidelines"`
}

// Group combines conditions. Every non-empty subgroup must match; a group
// with no subgroups never matches unless Default is set.
type Group struct {
	All      []Condition `yaml:"all"`
	Any      []Condition `yaml:"any"`
	MinCount *MinCount   `yaml:"min_count"`
	Default  bool        `yaml:"default"`
}

// MinCount requires at least Count of From to hold.
type MinCount struct {
	Count int         `yaml:"count"`
	From  []Condition `yaml:"from"`
}

// Condition compares one profile field with a literal.
type Condition struct {
	Field    string      `yaml:"field"`
	Operator string      `yaml:"operator"`
	Value    interface{} `yaml:"value"`
}

// ServiceRecommendation is a service a triggered CAP suggests.
type ServiceRecommendation struct {
	ServiceCode string `yaml:"service_code" json:"service_code"`
	Priority    string `yaml:"priority" json:"priority"`
	Intensity   string `yaml:"intensity" json:"intensity"`
	Rationale   string `yaml:"rationale,omitempty" json:"rationale,omitempty"`
}

// Result is the outcome of evaluating one CAP.
type Result struct {
	CAPName         string                  `json:"cap_name"`
	Category        string                  `json:"category,omitempty"`
	Level           Level                   `json:"level"`
	Description     string                  `json:"description,omitempty"`
	Recommendations []ServiceRecommendation `json:"recommendations,omitempty"`
	Guidelines      []string                `json:"guidelines,omitempty"`
}

// Triggered reports whether the CAP fired.
func (r *Result) Triggered() bool {
	return r != nil && r.Level != LevelNotTriggered
}

// Levels flattens results into CAP name to level for triggered CAPs only.
func Levels(results map[string]*Result) map[string]string {
	out := make(map[string]string, len(results))
	for name, r := range results {
		if r.Triggered() {
			out[name] = string(r.Level)
		}
	}
	return out
}

// Match evaluates the condition against vars. Absent fields read as 0.
func (c Condition) Match(vars expr.Vars) bool {
	return expr.Compare(c.Operator, vars.Lookup(c.Field), expr.FromAny(c.Value))
}

// Match evaluates the group. Default groups always match.
func (g Group) Match(vars expr.Vars) bool {
	if g.Default {
		return true
	}
	hasMin := g.MinCount != nil && (g.MinCount.Count > 0 || len(g.MinCount.From) > 0)
	if len(g.All) == 0 && len(g.Any) == 0 && !hasMin {
		return false
	}

	for _, c := range g.All {
		if !c.Match(vars) {
			return false
		}
	}

	if len(g.Any) > 0 {
		matched := false
		for _, c := range g.Any {
			if c.Match(vars) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if hasMin {
		n := 0
		for _, c := range g.MinCount.From {
			if c.Match(vars) {
				n++
			}
		}
		if n < g.MinCount.Count {
			return false
		}
	}
	return true
}

// Validate checks required fields, levels and operators.
func Validate(def *Definition) error {
	if def == nil {
		return fmt.Errorf("%w: nil definition", ErrInvalidDefinition)
	}
	if def.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidDefinition)
	}
	if def.Version == "" {
		return fmt.Errorf("%w: %s: missing version", ErrInvalidDefinition, def.Name)
	}
	if len(def.Triggers) == 0 {
		return fmt.Errorf("%w: %s: no triggers", ErrInvalidDefinition, def.Name)
	}
	for i, t := range def.Triggers {
		if !t.Level.Valid() {
			return fmt.Errorf("%w: %s: trigger %d: unknown level %q", ErrInvalidDefinition, def.Name, i, t.Level)
		}
		if err := validateGroup(t.Conditions); err != nil {
			return fmt.Errorf("%w: %s: trigger %d: %v", ErrInvalidDefinition, def.Name, i, err)
		}
	}
	return nil
}

func validateGroup(g Group) error {
	check := func(where string, cs []Condition) error {
		for j, c := range cs {
			if c.Field == "" {
				return fmt.Errorf("%s[%d]: missing field", where, j)
			}
			if !expr.IsComparisonOperator(c.Operator) {
				return fmt.Errorf("%s[%d]: unknown operator %q", where, j, c.Operator)
			}
		}
		return nil
	}
	if err := check("all", g.All); err != nil {
		return err
	}
	if err := check("any", g.Any); err != nil {
		return err
	}
	if g.MinCount != nil {
		if g.MinCount.Count < 0 {
			return fmt.Errorf("min_count: negative count %d", g.MinCount.Count)
		}
		if err := check("min_count.from", g.MinCount.From); err != nil {
			return err
		}
	}
	return nil
}
