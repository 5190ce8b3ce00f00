// Package txmethod wraps data-access operations so that they run inside a
// transaction supplied by the caller, or inside one they open and finish
// themselves when the caller supplies none.
//
// Wrapped methods share one calling convention: a context, a database handle,
// an optional transaction (nil when absent) and the operation's own arguments.
// Passing the same transaction to several wrapped methods composes them into a
// single unit of work; calling one without a transaction makes it atomic on its
// own.
package txmethod

import (
	"context"
	"fmt"
	"time"
)

// Handler is the operation being wrapped. It always receives a usable transaction.
type Handler[T any] func(ctx context.Context, db DB, tx Tx, args ...any) (T, error)

// ErrorHandler intercepts handler failures. tx is the transaction the handler
// ran in; original is the caller's transaction, or nil when tx was opened by
// the wrapper. Whatever it returns becomes the wrapped method's outcome, and
// the wrapper does not roll back on its behalf.
type ErrorHandler[T any] func(ctx context.Context, err error, db DB, tx Tx, original Tx) (T, error)

// Method is a wrapped handler. tx may be nil, in which case the method opens a
// transaction on db, commits it on success and rolls it back on failure.
type Method[T any] func(ctx context.Context, db DB, tx Tx, args ...any) (T, error)

// Wrap builds a Method around handler. At most one error handler may be given;
// giving a nil one is an error.
func Wrap[T any](handler Handler[T], errorHandler ...ErrorHandler[T]) (Method[T], error) {
	if handler == nil {
		return nil, invalidArgument("handler", "must be a non-nil function", nil)
	}

	var onError ErrorHandler[T]
	switch len(errorHandler) {
	case 0:
	case 1:
		if errorHandler[0] == nil {
			return nil, invalidArgument("errorHandler", "must be a non-nil function when given", nil)
		}
		onError = errorHandler[0]
	default:
		return nil, invalidArgument("errorHandler", "at most one error handler may be given", len(errorHandler))
	}

	return func(ctx context.Context, db DB, tx Tx, args ...any) (T, error) {
		return run(ctx, handler, onError, db, tx, args)
	}, nil
}

// MustWrap is like Wrap but panics on invalid arguments.
// It simplifies the initialization of package-level methods.
func MustWrap[T any](handler Handler[T], errorHandler ...ErrorHandler[T]) Method[T] {
	m, err := Wrap(handler, errorHandler...)
	if err != nil {
		panic(err)
	}
	return m
}

func run[T any](ctx context.Context, handler Handler[T], onError ErrorHandler[T], db DB, tx Tx, args []any) (T, error) {
	var zero T

	if !IsHandle(db) {
		return zero, invalidArgument("db", "first argument must be a database handle", db)
	}

	obs := observerFrom(ctx)

	var original Tx
	if IsTransaction(tx) {
		original = tx
	}
	local := original == nil

	working := original
	if local {
		began, err := db.BeginTx(ctx)
		if err == nil && !IsTransaction(began) {
			err = fmt.Errorf("handle %T returned no transaction", db)
		}
		if err != nil {
			err = fmt.Errorf("txmethod: begin transaction: %w", err)
			notify(ctx, obs, Event{Kind: EventBegin, Local: true, Err: err})
			return zero, err
		}
		working = began
		notify(ctx, obs, Event{Kind: EventBegin, Local: true})
	}

	start := time.Now()
	result, err := callHandler(ctx, obs, handler, db, working, local, args)
	elapsed := time.Since(start)

	if err == nil {
		if local && !working.Finished() {
			if cerr := working.Commit(ctx); cerr != nil {
				cerr = fmt.Errorf("txmethod: commit: %w", cerr)
				notify(ctx, obs, Event{Kind: EventCommit, Local: true, Err: cerr, Duration: elapsed})
				return zero, cerr
			}
			notify(ctx, obs, Event{Kind: EventCommit, Local: true, Duration: elapsed})
		}
		return result, nil
	}

	if onError != nil {
		notify(ctx, obs, Event{Kind: EventRecover, Local: local, Err: err, Duration: elapsed})
		return onError(ctx, err, db, working, original)
	}

	notify(ctx, obs, Event{Kind: EventFailure, Local: local, Err: err, Duration: elapsed})
	if local {
		if rerr := working.Rollback(ctx); rerr != nil {
			notify(ctx, obs, Event{Kind: EventRollback, Local: true, Err: rerr, Duration: elapsed})
			return zero, fmt.Errorf("txmethod: rollback: %w (handler error: %w)", rerr, err)
		}
		notify(ctx, obs, Event{Kind: EventRollback, Local: true, Duration: elapsed})
	}
	return zero, err
}

// callHandler runs handler, rolling back a locally opened transaction if the
// handler panics. The panic is re-raised.
func callHandler[T any](ctx context.Context, obs Observer, handler Handler[T], db DB, tx Tx, local bool, args []any) (T, error) {
	if local {
		defer func() {
			if p := recover(); p != nil {
				if !tx.Finished() {
					rerr := tx.Rollback(ctx)
					notify(ctx, obs, Event{Kind: EventRollback, Local: true, Err: rerr})
				}
				panic(p)
			}
		}()
	}
	return handler(ctx, db, tx, args...)
}
