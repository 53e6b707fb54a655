package servicecatalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfty27/Connected-Capacity-sub005/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Service Type Registry ===========

type serviceTypeRepoPG struct{ pool *pgxpool.Pool }

func newServiceTypeRepoPG(pool *pgxpool.Pool) *serviceTypeRepoPG {
	return &serviceTypeRepoPG{pool: pool}
}

func (r *serviceTypeRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const serviceTypeCols = `id, code, name, category, default_duration_minutes, default_cost, active, created_at, updated_at`

func (r *serviceTypeRepoPG) scanServiceType(row pgx.Row) (*ServiceType, error) {
	var st ServiceType
	var category *string
	err := row.Scan(&st.ID, &st.Code, &st.Name, &category, &st.DefaultDurationMinutes, &st.DefaultCost,
		&st.Active, &st.CreatedAt, &st.UpdatedAt)
	if category != nil {
		st.Category = *category
	}
	return &st, err
}

func (r *serviceTypeRepoPG) GetByCode(ctx context.Context, code string) (*ServiceType, error) {
	st, err := r.scanServiceType(r.conn(ctx).QueryRow(ctx,
		`SELECT `+serviceTypeCols+` FROM service_type WHERE code = $1 AND active`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrServiceTypeNotFound, code)
		}
		return nil, err
	}
	return st, nil
}

func (r *serviceTypeRepoPG) List(ctx context.Context) ([]*ServiceType, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+serviceTypeCols+` FROM service_type ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ServiceType
	for rows.Next() {
		st, err := r.scanServiceType(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, st)
	}
	return items, rows.Err()
}

func (r *serviceTypeRepoPG) UpsertServiceType(ctx context.Context, st *ServiceType) error {
	if st.ID == uuid.Nil {
		st.ID = IDForCode(st.Code)
	}
	var category *string
	if st.Category != "" {
		category = &st.Category
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO service_type (id, code, name, category, default_duration_minutes, default_cost, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (code) DO UPDATE SET name=EXCLUDED.name, category=EXCLUDED.category,
			default_duration_minutes=EXCLUDED.default_duration_minutes,
			default_cost=EXCLUDED.default_cost, active=EXCLUDED.active, updated_at=NOW()
		RETURNING id, created_at, updated_at`,
		st.ID, st.Code, st.Name, category, st.DefaultDurationMinutes, st.DefaultCost, st.Active,
	).Scan(&st.ID, &st.CreatedAt, &st.UpdatedAt)
}

// =========== Service Rate Repository ===========

type rateRepoPG struct{ pool *pgxpool.Pool }

func newRateRepoPG(pool *pgxpool.Pool) *rateRepoPG { return &rateRepoPG{pool: pool} }

func (r *rateRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const rateCols = `id, service_type_id, amount, effective_from, effective_to, created_at`

func (r *rateRepoPG) CurrentRate(ctx context.Context, serviceTypeID uuid.UUID, at time.Time) (*Rate, error) {
	var rate Rate
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT `+rateCols+` FROM service_rate
		WHERE service_type_id = $1 AND effective_from <= $2 AND (effective_to IS NULL OR effective_to > $2)
		ORDER BY effective_from DESC LIMIT 1`, serviceTypeID, at,
	).Scan(&rate.ID, &rate.ServiceTypeID, &rate.Amount, &rate.EffectiveFrom, &rate.EffectiveTo, &rate.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRateNotFound
		}
		return nil, err
	}
	return &rate, nil
}

func (r *rateRepoPG) AddRate(ctx context.Context, rate *Rate) error {
	if rate.ID == uuid.Nil {
		rate.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO service_rate (id, service_type_id, amount, effective_from, effective_to)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO NOTHING`,
		rate.ID, rate.ServiceTypeID, rate.Amount, rate.EffectiveFrom, rate.EffectiveTo)
	return err
}

// PGStore bundles the Postgres registry and rate repository.
type PGStore struct {
	*serviceTypeRepoPG
	*rateRepoPG
}

// NewPGStore returns a Registry, RateRepository and Writer over pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{serviceTypeRepoPG: newServiceTypeRepoPG(pool), rateRepoPG: newRateRepoPG(pool)}
}
