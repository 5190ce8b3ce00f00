package txmethod

import (
	"context"
	"reflect"
)

// DB is a database handle able to open a new transaction.
type DB interface {
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx is a transaction with an observable lifecycle.
// Finished reports whether Commit or Rollback has already completed.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Finished() bool
}

// IsHandle reports whether v can be used as a database handle.
// The check is structural: any value exposing BeginTx qualifies, whichever
// adapter or driver copy produced it. Nil and typed-nil values do not.
func IsHandle(v any) bool {
	if _, ok := v.(DB); !ok {
		return false
	}
	return !isNil(v)
}

// IsTransaction reports whether v can be used as a transaction.
func IsTransaction(v any) bool {
	if _, ok := v.(Tx); !ok {
		return false
	}
	return !isNil(v)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
