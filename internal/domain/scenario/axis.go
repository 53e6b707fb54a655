package scenario

import (
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/needs"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/platform/defstore"
)

// Axis names a care philosophy that biases service selection.
type Axis string

const (
	Balanced            Axis = "balanced"
	RecoveryRehab       Axis = "recovery_rehab"
	SafetyStability     Axis = "safety_stability"
	TechEnabled         Axis = "tech_enabled"
	CaregiverRelief     Axis = "caregiver_relief"
	CommunityIntegrated Axis = "community_integrated"
)

// KnownAxes lists the built-in axes in display order.
var KnownAxes = []Axis{Balanced, RecoveryRehab, SafetyStability, TechEnabled, CaregiverRelief, CommunityIntegrated}

// ParseAxis validates a built-in axis name.
func ParseAxis(s string) (Axis, error) {
	for _, a := range KnownAxes {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAxis, s)
}

var (
	ErrUnknownAxis   = errors.New("unknown axis")
	ErrInvalidConfig = errors.New("invalid scenario config")
)

// AxesFile is the definitions document holding axis templates.
const AxesFile = "axes.yaml"

// AxisTemplate is the preference profile of one axis. TargetMix ratios are
// proportional shares of the total budget and need not sum to 1.
type AxisTemplate struct {
	Axis                    Axis                   `yaml:"-" json:"axis"`
	Label                   string                 `yaml:"label" json:"label"`
	Description             string                 `yaml:"description" json:"description,omitempty"`
	TargetMix               map[string]float64     `yaml:"target_mix" json:"target_mix"`
	PrimaryServices         []string               `yaml:"primary_services" json:"primary_services,omitempty"`
	SecondaryServices       []string               `yaml:"secondary_services" json:"secondary_services,omitempty"`
	TertiaryServices        []string               `yaml:"tertiary_services" json:"tertiary_services,omitempty"`
	ExcludedServices        []string               `yaml:"excluded_services" json:"excluded_services,omitempty"`
	Requirements            Requirements           `yaml:"requirements" json:"requirements"`
	SubstitutionPreferences map[string]Preferences `yaml:"substitution_preferences" json:"substitution_preferences,omitempty"`
	CAPPriorities           []string               `yaml:"cap_priorities" json:"cap_priorities,omitempty"`
}

// Requirements gate an axis on the profile. Zero values impose nothing.
type Requirements struct {
	MinTechReadiness       int  `yaml:"min_tech_readiness" json:"min_tech_readiness,omitempty"`
	RequiresInternet       bool `yaml:"requires_internet" json:"requires_internet,omitempty"`
	MaxCognitiveComplexity *int `yaml:"max_cognitive_complexity" json:"max_cognitive_complexity,omitempty"`
}

// Met reports whether the profile satisfies every requirement.
func (r Requirements) Met(p needs.Profile) bool {
	if p.TechnologyReadiness < r.MinTechReadiness {
		return false
	}
	if r.RequiresInternet && !p.HasInternet {
		return false
	}
	if r.MaxCognitiveComplexity != nil && p.CognitiveComplexity > *r.MaxCognitiveComplexity {
		return false
	}
	return true
}

// Tier ranks a service under the template: 0 primary, 1 secondary,
// 2 tertiary, 3 unranked, -1 excluded.
func (t *AxisTemplate) Tier(code string) int {
	switch {
	case contains(t.ExcludedServices, code):
		return -1
	case contains(t.PrimaryServices, code):
		return 0
	case contains(t.SecondaryServices, code):
		return 1
	case contains(t.TertiaryServices, code):
		return 2
	default:
		return 3
	}
}

// Excludes reports whether the axis never allocates code.
func (t *AxisTemplate) Excludes(code string) bool {
	return contains(t.ExcludedServices, code)
}

// Prioritizes reports whether any of caps is one of the axis's priority CAPs.
func (t *AxisTemplate) Prioritizes(caps []string) bool {
	for _, c := range caps {
		if contains(t.CAPPriorities, c) {
			return true
		}
	}
	return false
}

// AxisConfig holds every loaded axis template.
type AxisConfig struct {
	Axes map[Axis]*AxisTemplate `yaml:"axes"`
}

// Get returns the template for axis, or nil.
func (c *AxisConfig) Get(axis Axis) *AxisTemplate {
	if c == nil {
		return nil
	}
	return c.Axes[axis]
}

// Names returns the configured axes sorted by name.
func (c *AxisConfig) Names() []Axis {
	out := make([]Axis, 0, len(c.Axes))
	for a := range c.Axes {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// LoadAxes reads axes.yaml from src.
func LoadAxes(src defstore.Source) (*AxisConfig, error) {
	data, err := src.ReadFile(AxesFile)
	if err != nil {
		return nil, fmt.Errorf("loading axis templates: %w", err)
	}
	return ParseAxes(data)
}

// ParseAxes decodes and validates an axes document.
func ParseAxes(data []byte) (*AxisConfig, error) {
	var cfg AxisConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, AxesFile, err)
	}
	for axis, t := range cfg.Axes {
		if t == nil {
			return nil, fmt.Errorf("%w: axis %s: empty template", ErrInvalidConfig, axis)
		}
		t.Axis = axis
		for cat, ratio := range t.TargetMix {
			if ratio < 0 {
				return nil, fmt.Errorf("%w: axis %s: negative ratio for %s", ErrInvalidConfig, axis, cat)
			}
		}
	}
	return &cfg, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
