package category

import (
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/wolfty27/Connected-Capacity-sub005/internal/platform/defstore"
)

// ConfigFile is the document holding every category definition.
const ConfigFile = "categories.yaml"

// Well-known categories targeted by the profile boosts and the default
// composition path.
const (
	PersonalSupport       = "personal_support"
	ClinicalMonitoring    = "clinical_monitoring"
	RehabSupport          = "rehab_support"
	RiskMgmtAndComplexity = "risk_mgmt_and_complexity"
	SocialSupport         = "social_support"
)

// Units a category budget is expressed in.
const (
	UnitHours  = "hours"
	UnitVisits = "visits"
	UnitUnits  = "units"
)

var ErrInvalidConfig = errors.New("invalid category config")

// Config is the parsed categories document.
type Config struct {
	Categories map[string]*Definition `yaml:"categories"`
}

// Definition configures one budget category.
type Definition struct {
	Name             string                       `yaml:"-"`
	Label            string                       `yaml:"label"`
	Unit             string                       `yaml:"unit"`
	AlgorithmDrivers []string                     `yaml:"algorithm_drivers"`
	FloorMappings    map[string]map[int]FloorPair `yaml:"floor_mappings"`
	CAPBoosters      []string                     `yaml:"cap_boosters"`
	CAPAdjustments   map[string]Adjustment        `yaml:"cap_adjustments"`
	Services         map[string]ServiceDef        `yaml:"services"`
}

// FloorPair is the floor and recommended amount for one score.
type FloorPair struct {
	Floor       float64 `yaml:"floor" json:"floor"`
	Recommended float64 `yaml:"recommended" json:"recommended"`
}

// Adjustment is a CAP-driven change to a category, before level scaling.
type Adjustment struct {
	FloorAdd       float64 `yaml:"floor_add"`
	RecommendedAdd float64 `yaml:"recommended_add"`
}

// ServiceDef is a service offered within a category and its eligibility
// gates.
type ServiceDef struct {
	Code             string   `yaml:"-" json:"service_code"`
	Name             string   `yaml:"name" json:"name"`
	IsPrimary        bool     `yaml:"is_primary" json:"is_primary"`
	AvgVisitMinutes  int      `yaml:"avg_visit_minutes" json:"avg_visit_minutes,omitempty"`
	RequiresTech     bool     `yaml:"requires_tech" json:"requires_tech,omitempty"`
	RequiresCAPs     []string `yaml:"requires_caps" json:"requires_caps,omitempty"`
	RequiresClinical bool     `yaml:"requires_clinical" json:"requires_clinical,omitempty"`
}

// Names returns the configured category names in sorted order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Categories))
	for n := range c.Categories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns the named category, or nil.
func (c *Config) Get(name string) *Definition {
	if c == nil {
		return nil
	}
	return c.Categories[name]
}

// LoadConfig reads and validates categories.yaml from src.
func LoadConfig(src defstore.Source) (*Config, error) {
	data, err := src.ReadFile(ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("loading category config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates a categories document.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing YAML: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks units and mappings, and fills the derived name fields.
func (c *Config) Validate() error {
	if len(c.Categories) == 0 {
		return fmt.Errorf("%w: no categories", ErrInvalidConfig)
	}
	for name, def := range c.Categories {
		if def == nil {
			return fmt.Errorf("%w: %s: empty definition", ErrInvalidConfig, name)
		}
		def.Name = name
		switch def.Unit {
		case UnitHours, UnitVisits, UnitUnits:
		case "":
			def.Unit = UnitHours
		default:
			return fmt.Errorf("%w: %s: unknown unit %q", ErrInvalidConfig, name, def.Unit)
		}
		for driver, table := range def.FloorMappings {
			for score, pair := range table {
				if pair.Floor < 0 || pair.Recommended < 0 {
					return fmt.Errorf("%w: %s: %s[%d]: negative amount", ErrInvalidConfig, name, driver, score)
				}
			}
		}
		for code, svc := range def.Services {
			svc.Code = code
			def.Services[code] = svc
		}
	}
	return nil
}
