// Package db is a hand-written data access layer playing the role a
// sqlc-generated package would: one Queries type wrapping a *pgxpool.Pool,
// with one method per statement. It is written by hand because the SQL
// schema and sqlc configuration are not available to regenerate it here.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Queries wraps a pgx connection pool and exposes one method per SQL
// statement used by internal/store.
type Queries struct {
	pool *pgxpool.Pool
}

// New builds a Queries from a DSN, creating and validating a pooled
// connection.
func New(ctx context.Context, dsn string) (*Queries, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("db: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	return &Queries{pool: pool}, nil
}

// NewFromPool wraps an already-constructed pool.
func NewFromPool(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

// Close releases the underlying pool.
func (q *Queries) Close() {
	if q.pool != nil {
		q.pool.Close()
	}
}

// Pool exposes the underlying pool for callers that need to run ad hoc
// statements outside the generated method set (e.g. transactions spanning
// multiple entities in internal/store).
func (q *Queries) Pool() *pgxpool.Pool {
	return q.pool
}
