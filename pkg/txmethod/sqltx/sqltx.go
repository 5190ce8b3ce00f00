// Package sqltx adapts database/sql to txmethod handles.
package sqltx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cassiomorais/txmethod/pkg/txmethod"
)

// DB is a txmethod handle backed by *sql.DB.
type DB struct {
	db   *sql.DB
	opts *sql.TxOptions
}

// New wraps db. opts are used for every transaction the handle opens and may be nil.
func New(db *sql.DB, opts *sql.TxOptions) *DB {
	return &DB{db: db, opts: opts}
}

// SQL returns the underlying pool for queries outside a transaction.
func (d *DB) SQL() *sql.DB {
	return d.db
}

// BeginTx implements txmethod.DB.
func (d *DB) BeginTx(ctx context.Context) (txmethod.Tx, error) {
	tx, err := d.db.BeginTx(ctx, d.opts)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Tx is a database/sql transaction that remembers whether it has been
// finished. Commit and Rollback are only reachable through Tx itself, so
// Finished is authoritative.
type Tx struct {
	tx       *sql.Tx
	finished atomic.Bool
}

// Commit implements txmethod.Tx. database/sql has no per-call context for commit.
func (t *Tx) Commit(_ context.Context) error {
	err := t.tx.Commit()
	if err == nil || errors.Is(err, sql.ErrTxDone) {
		t.finished.Store(true)
	}
	return err
}

// Rollback implements txmethod.Tx. Rolling back a transaction that is
// already closed, by an earlier Commit or Rollback or by its context being
// cancelled, succeeds.
func (t *Tx) Rollback(_ context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		err = nil
	}
	if err == nil {
		t.finished.Store(true)
	}
	return err
}

// Finished implements txmethod.Tx.
func (t *Tx) Finished() bool {
	return t.finished.Load()
}

// DBTX is the query surface of a transaction, without Commit or Rollback.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	tx *sql.Tx
}

func (q queries) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.tx.ExecContext(ctx, query, args...)
}

func (q queries) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return q.tx.PrepareContext(ctx, query)
}

func (q queries) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.tx.QueryContext(ctx, query, args...)
}

func (q queries) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return q.tx.QueryRowContext(ctx, query, args...)
}

// Querier returns the query surface of tx. Finishing the transaction stays
// with tx.Commit and tx.Rollback.
func Querier(tx txmethod.Tx) (DBTX, error) {
	if v, ok := tx.(*Tx); ok && v != nil && v.tx != nil {
		return queries{tx: v.tx}, nil
	}
	return nil, fmt.Errorf("sqltx: %T is not a database/sql transaction", tx)
}
