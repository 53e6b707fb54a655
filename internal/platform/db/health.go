package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const checkTimeout = 5 * time.Second

// Health describes the pool and the catalog schema at one point in time.
type Health struct {
	Schema        string        `json:"schema"`
	SchemaExists  bool          `json:"schema_exists"`
	Healthy       bool          `json:"healthy"`
	PingLatency   time.Duration `json:"ping_latency"`
	TotalConns    int32         `json:"total_conns"`
	AcquiredConns int32         `json:"acquired_conns"`
	MaxConns      int32         `json:"max_conns"`
}

// Summary renders h as one line for operators.
func (h *Health) Summary() string {
	state := "healthy"
	if !h.Healthy {
		state = "unhealthy"
	}
	schema := h.Schema
	if !h.SchemaExists {
		schema += " (missing)"
	}
	return fmt.Sprintf("database %s: schema %s, %d/%d connection(s), ping %s",
		state, schema, h.TotalConns, h.MaxConns, h.PingLatency.Round(time.Microsecond))
}

// Check pings the database and looks up schema. Healthy is false when the
// ping fails; a missing schema is reported but not an error.
func Check(ctx context.Context, pool *pgxpool.Pool, schema string) (*Health, error) {
	if schema == "" {
		schema = DefaultSchema
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	h := &Health{Schema: schema}
	start := time.Now()
	err := pool.Ping(ctx)
	h.PingLatency = time.Since(start)

	stat := pool.Stat()
	h.TotalConns, h.AcquiredConns, h.MaxConns = stat.TotalConns(), stat.AcquiredConns(), stat.MaxConns()
	if err != nil {
		return h, fmt.Errorf("ping database: %w", err)
	}
	h.Healthy = true

	err = pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`, schema,
	).Scan(&h.SchemaExists)
	if err != nil {
		return h, fmt.Errorf("look up schema %s: %w", schema, err)
	}
	return h, nil
}
