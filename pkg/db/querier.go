package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// TxManager: чтение в согласованном снимке.
type TxManager interface {
	RunReadOnly(ctx context.Context, fn func(ctxTx context.Context, tx Querier) error) error
}

// Querier реализуют и пул, и транзакция.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}
