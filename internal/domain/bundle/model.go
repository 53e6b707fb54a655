package bundle

import (
	"time"

	"github.com/google/uuid"

	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/category"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/needs"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/protocol"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/scenario"
)

// Request is the input for one patient. Items feed the algorithms and the
// CAPs; Scores, when set, override the computed algorithm scores.
type Request struct {
	Items   map[string]interface{} `json:"items"`
	Scores  map[string]int         `json:"scores,omitempty"`
	Profile needs.Profile          `json:"profile"`
	Axis    scenario.Axis          `json:"axis,omitempty"`
}

// Assessment is the axis-independent part of a bundle.
type Assessment struct {
	Scores        map[string]int              `json:"scores"`
	CAPResults    map[string]*protocol.Result `json:"cap_results"`
	TriggeredCAPs map[string]string           `json:"triggered_caps"`
	Floors        category.Floors             `json:"floors"`
	Profile       needs.Profile               `json:"profile"`
}

// Bundle is a composed, priced weekly care plan for one axis.
type Bundle struct {
	ID            uuid.UUID             `json:"id"`
	RequestedAxis scenario.Axis         `json:"requested_axis"`
	Axis          scenario.Axis         `json:"axis,omitempty"`
	FellBack      bool                  `json:"fell_back,omitempty"`
	Default       bool                  `json:"default,omitempty"`
	Scores        map[string]int        `json:"scores"`
	TriggeredCAPs map[string]string     `json:"triggered_caps"`
	Floors        category.Floors       `json:"floors"`
	TotalBudget   float64               `json:"total_budget"`
	Services      []scenario.Allocation `json:"services"`
	WeeklyHours   float64               `json:"weekly_hours"`
	WeeklyCost    float64               `json:"weekly_cost"`
	CreatedAt     time.Time             `json:"created_at"`
}

// Service returns the allocation for code, or nil.
func (b *Bundle) Service(code string) *scenario.Allocation {
	for i := range b.Services {
		if b.Services[i].ServiceCode == code {
			return &b.Services[i]
		}
	}
	return nil
}
