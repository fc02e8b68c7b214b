// Package db defines the common database-handle interface every store in
// this service is written against, following the convention this codebase
// uses throughout its own store layer: a DBTX seam that is satisfied
// equally by a pool, a single connection, or an open transaction, so
// store methods never care whether they are running inside a larger
// transaction.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is implemented by *pgxpool.Pool, *pgxpool.Conn, and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
