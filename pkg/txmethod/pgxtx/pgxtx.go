// Package pgxtx adapts pgx connections and pools to txmethod handles.
package pgxtx

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cassiomorais/txmethod/pkg/txmethod"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Beginner is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// DB is a txmethod handle backed by pgx.
type DB struct {
	b Beginner
}

// New wraps b as a txmethod handle.
func New(b Beginner) *DB {
	return &DB{b: b}
}

// BeginTx implements txmethod.DB.
func (d *DB) BeginTx(ctx context.Context) (txmethod.Tx, error) {
	tx, err := d.b.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return Wrap(tx), nil
}

// Tx is a pgx transaction that remembers whether it has been finished.
// Commit and Rollback are only reachable through Tx itself, so Finished is
// authoritative.
type Tx struct {
	tx       pgx.Tx
	finished atomic.Bool
}

// Wrap adapts an already open pgx transaction, for callers that manage
// their own pgx transactions but want to pass them into wrapped methods.
// The caller must finish it through the returned Tx.
func Wrap(tx pgx.Tx) *Tx {
	return &Tx{tx: tx}
}

// Commit commits the transaction and marks it finished. A commit that the
// server turned into a rollback also finishes it.
func (t *Tx) Commit(ctx context.Context) error {
	err := t.tx.Commit(ctx)
	if err == nil || errors.Is(err, pgx.ErrTxCommitRollback) || errors.Is(err, pgx.ErrTxClosed) {
		t.finished.Store(true)
	}
	return err
}

// Rollback rolls back the transaction and marks it finished. Rolling back a
// transaction that is already closed succeeds.
func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
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

// DBTX is the query surface of a pgx transaction, without Commit or Rollback.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type queries struct {
	tx pgx.Tx
}

func (q queries) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return q.tx.Exec(ctx, sql, args...)
}

func (q queries) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return q.tx.Query(ctx, sql, args...)
}

func (q queries) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return q.tx.QueryRow(ctx, sql, args...)
}

func (q queries) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return q.tx.SendBatch(ctx, b)
}

// Querier returns the query surface of tx.
func Querier(tx txmethod.Tx) (DBTX, error) {
	if v, ok := tx.(*Tx); ok && v != nil && v.tx != nil {
		return queries{tx: v.tx}, nil
	}
	return nil, fmt.Errorf("pgxtx: %T is not a pgx transaction", tx)
}

// UniqueViolation is the SQLSTATE for unique_violation.
const UniqueViolation = "23505"

// IsUniqueViolation reports whether err carries a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == UniqueViolation
}
