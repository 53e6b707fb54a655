package servicecatalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrServiceTypeNotFound = errors.New("service type not found")
	ErrRateNotFound        = errors.New("no current rate")
)

// Registry resolves service types by code.
type Registry interface {
	GetByCode(ctx context.Context, code string) (*ServiceType, error)
	List(ctx context.Context) ([]*ServiceType, error)
}

// RateRepository resolves the billing rate in force for a service type.
type RateRepository interface {
	CurrentRate(ctx context.Context, serviceTypeID uuid.UUID, at time.Time) (*Rate, error)
}

// Writer stores service types and rates. Used to seed a database from
// definitions.
type Writer interface {
	UpsertServiceType(ctx context.Context, st *ServiceType) error
	AddRate(ctx context.Context, r *Rate) error
}
