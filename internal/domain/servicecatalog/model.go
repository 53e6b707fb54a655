package servicecatalog

import (
	"time"

	"github.com/google/uuid"
)

// ServiceType maps to the service_type table.
type ServiceType struct {
	ID                     uuid.UUID `db:"id" json:"id"`
	Code                   string    `db:"code" json:"code"`
	Name                   string    `db:"name" json:"name"`
	Category               string    `db:"category" json:"category,omitempty"`
	DefaultDurationMinutes int       `db:"default_duration_minutes" json:"default_duration_minutes"`
	DefaultCost            float64   `db:"default_cost" json:"default_cost"`
	Active                 bool      `db:"active" json:"active"`
	CreatedAt              time.Time `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time `db:"updated_at" json:"updated_at"`
}

// Rate maps to the service_rate table. A rate applies from EffectiveFrom
// until EffectiveTo, or indefinitely when EffectiveTo is nil.
type Rate struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	ServiceTypeID uuid.UUID  `db:"service_type_id" json:"service_type_id"`
	Amount        float64    `db:"amount" json:"amount"`
	EffectiveFrom time.Time  `db:"effective_from" json:"effective_from"`
	EffectiveTo   *time.Time `db:"effective_to" json:"effective_to,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// Covers reports whether the rate applies at t.
func (r *Rate) Covers(t time.Time) bool {
	if t.Before(r.EffectiveFrom) {
		return false
	}
	return r.EffectiveTo == nil || t.Before(*r.EffectiveTo)
}

// Quote is the resolved duration and price of one visit of a service.
type Quote struct {
	ServiceType     *ServiceType `json:"service_type,omitempty"`
	DurationMinutes int          `json:"duration_minutes"`
	CostPerVisit    float64      `json:"cost_per_visit"`
	FromRate        bool         `json:"from_rate"`
}

// codeNamespace seeds deterministic IDs for service types defined in YAML.
var codeNamespace = uuid.MustParse("6f1c2d0e-5a43-4b8e-9c57-0d2b7e3f9a11")

// IDForCode returns the stable ID used for a service code loaded from
// definitions.
func IDForCode(code string) uuid.UUID {
	return uuid.NewSHA1(codeNamespace, []byte(code))
}
