package scenario

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wolfty27/Connected-Capacity-sub005/internal/platform/defstore"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/platform/rulecond"
)

// SubstitutionsFile is the definitions document holding substitution rules
// and CAP packages.
const SubstitutionsFile = "substitutions.yaml"

// BoostSuffix marks a package entry that raises the frequency of an already
// allocated service instead of adding one.
const BoostSuffix = "_BOOST"

// SubstitutionRules is the parsed substitutions document.
type SubstitutionRules struct {
	WithinCategory map[string]*CategoryRules `yaml:"within_category"`
	Packages       map[string]*Package       `yaml:"packages"`
}

// CategoryRules controls how a category's target allocation is spread over
// its services.
type CategoryRules struct {
	HardFloorService string  `yaml:"hard_floor_service"`
	HardFloorRatio   float64 `yaml:"hard_floor_ratio"`
	Rules            []*Rule `yaml:"rules"`
}

// Rule moves up to MaxRatio of a category's target onto Substitute when its
// conditions hold. Conversion turns category units into substitute units and
// defaults to 1.
type Rule struct {
	Substitute string  `yaml:"substitute"`
	MaxRatio   float64 `yaml:"max_ratio"`
	Conditions string  `yaml:"conditions"`
	Conversion float64 `yaml:"conversion"`
	Rationale  string  `yaml:"rationale"`

	cond rulecond.Expr
}

// Condition returns the compiled conditions.
func (r *Rule) Condition() rulecond.Expr { return r.cond }

// Package is a set of services added across categories when a CAP-driven
// trigger condition holds.
type Package struct {
	Name             string                             `yaml:"-"`
	Description      string                             `yaml:"description"`
	TriggerCondition string                             `yaml:"trigger_condition"`
	CAPs             []string                           `yaml:"caps"`
	Adds             map[string]map[string]PackageEntry `yaml:"adds"`

	trigger rulecond.Expr
}

// Trigger returns the compiled trigger condition.
func (p *Package) Trigger() rulecond.Expr { return p.trigger }

// RelevantCAPs are the CAPs whose priority decides the package's intensity:
// the explicit caps list, else the CAPs named by the trigger.
func (p *Package) RelevantCAPs() []string {
	if len(p.CAPs) > 0 {
		return p.CAPs
	}
	return p.trigger.CAPs()
}

// PackageEntry is one service a package adds, or for a boost code, the
// frequency added to the base service.
type PackageEntry struct {
	Frequency       float64 `yaml:"frequency"`
	FrequencyPeriod string  `yaml:"frequency_period"`
	FrequencyAdd    float64 `yaml:"frequency_add"`
	DurationMinutes int     `yaml:"duration_minutes"`
	Rationale       string  `yaml:"rationale"`
}

// Categories returns the categories a package adds to, sorted.
func (p *Package) Categories() []string {
	out := make([]string, 0, len(p.Adds))
	for c := range p.Adds {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// PackageNames returns configured package names, sorted.
func (s *SubstitutionRules) PackageNames() []string {
	out := make([]string, 0, len(s.Packages))
	for n := range s.Packages {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// For returns the rules of a category, or nil.
func (s *SubstitutionRules) For(category string) *CategoryRules {
	if s == nil {
		return nil
	}
	return s.WithinCategory[category]
}

// LoadSubstitutions reads substitutions.yaml from src. A missing document
// yields an empty rule set.
func LoadSubstitutions(src defstore.Source) (*SubstitutionRules, error) {
	if !defstore.Exists(src, SubstitutionsFile) {
		return &SubstitutionRules{}, nil
	}
	data, err := src.ReadFile(SubstitutionsFile)
	if err != nil {
		return nil, fmt.Errorf("loading substitution rules: %w", err)
	}
	return ParseSubstitutions(data)
}

// ParseSubstitutions decodes a substitutions document and compiles every
// condition in it.
func ParseSubstitutions(data []byte) (*SubstitutionRules, error) {
	var s SubstitutionRules
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, SubstitutionsFile, err)
	}
	for cat, cr := range s.WithinCategory {
		if cr == nil {
			return nil, fmt.Errorf("%w: %s: empty rules", ErrInvalidConfig, cat)
		}
		if cr.HardFloorRatio < 0 || cr.HardFloorRatio > 1 {
			return nil, fmt.Errorf("%w: %s: hard_floor_ratio %.2f outside [0,1]", ErrInvalidConfig, cat, cr.HardFloorRatio)
		}
		for i, r := range cr.Rules {
			if r == nil || r.Substitute == "" {
				return nil, fmt.Errorf("%w: %s rule %d: missing substitute", ErrInvalidConfig, cat, i)
			}
			if r.MaxRatio < 0 || r.MaxRatio > 1 {
				return nil, fmt.Errorf("%w: %s rule %s: max_ratio %.2f outside [0,1]", ErrInvalidConfig, cat, r.Substitute, r.MaxRatio)
			}
			if r.Conversion == 0 {
				r.Conversion = 1
			}
			cond, err := rulecond.Parse(r.Conditions)
			if err != nil {
				return nil, fmt.Errorf("%w: %s rule %s: %v", ErrInvalidConfig, cat, r.Substitute, err)
			}
			r.cond = cond
		}
	}
	for name, p := range s.Packages {
		if p == nil {
			return nil, fmt.Errorf("%w: package %s: empty", ErrInvalidConfig, name)
		}
		p.Name = name
		if strings.TrimSpace(p.TriggerCondition) == "" {
			return nil, fmt.Errorf("%w: package %s: missing trigger_condition", ErrInvalidConfig, name)
		}
		trig, err := rulecond.Parse(p.TriggerCondition)
		if err != nil {
			return nil, fmt.Errorf("%w: package %s: %v", ErrInvalidConfig, name, err)
		}
		p.trigger = trig
		for cat, entries := range p.Adds {
			for code, e := range entries {
				if e.Frequency < 0 || e.FrequencyAdd < 0 {
					return nil, fmt.Errorf("%w: package %s: %s/%s: negative frequency", ErrInvalidConfig, name, cat, code)
				}
			}
		}
	}
	return &s, nil
}
