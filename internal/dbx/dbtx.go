// Package dbx provides small database/sql helpers shared by the table
// providers and the sample database generator: a handle interface
// satisfied by both *sql.DB and *sql.Tx, and transaction scopes.
package dbx

import (
	"context"
	"database/sql"
)

// Querier is the read side of database/sql used by table providers.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DBTX adds ExecContext to Querier. Both *sql.DB and *sql.Tx satisfy it.
type DBTX interface {
	Querier
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error or panic. Panics are rethrown.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// WithReadTx runs fn inside a transaction that is always rolled back, so
// every query in fn sees the same database state. Write protection comes
// from the connection (read-only open mode), not from the transaction.
func WithReadTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, q Querier) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback()
		if p := recover(); p != nil {
			panic(p)
		}
	}()

	return fn(ctx, tx)
}
