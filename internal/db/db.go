// Package db holds the Postgres access contracts shared by repositories and the
// embedded schema migrations.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool used by read paths.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Execer runs statements that do not return rows.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// DBTX combines Querier and Execer, matching both pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Querier
	Execer
}
