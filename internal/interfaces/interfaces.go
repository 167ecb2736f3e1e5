package interfaces

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts over *pgxpool.Pool and pgx.Tx so repositories run the same
// queries inside and outside transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxManager runs fn inside a transaction, committing on nil and rolling back
// on error. Services depend on this instead of a concrete pool so transition
// logic stays unit-testable.
type TxManager interface {
	WithTx(ctx context.Context, fn func(q DBTX) error) error
}
