package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoDatabase is returned by stores that were built without a pool,
// typically because Postgres was unreachable at startup.
var ErrNoDatabase = errors.New("database not connected")

// Querier is what the session, progress and exam route stores run against.
// *pgxpool.Pool satisfies it in production and pgxmock pools in tests.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// FromPool keeps a missing pool a nil Querier, so stores can compare
// against nil and report ErrNoDatabase.
func FromPool(pool *pgxpool.Pool) Querier {
	if pool == nil {
		return nil
	}
	return pool
}
