package txmethod

import (
	"context"
	"time"
)

// EventKind identifies a step in a wrapped method's transaction lifecycle.
type EventKind string

const (
	EventBegin    EventKind = "begin"
	EventCommit   EventKind = "commit"
	EventRollback EventKind = "rollback"
	EventRecover  EventKind = "recover"
	EventFailure  EventKind = "failure"
)

// Event is delivered to an Observer after each lifecycle step.
// Err is set when the step itself failed, or for EventRecover and
// EventFailure, to the handler error.
type Event struct {
	Kind     EventKind
	Local    bool
	Err      error
	Duration time.Duration
}

// Observer receives lifecycle events from wrapped methods.
type Observer interface {
	Observe(ctx context.Context, e Event)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(ctx context.Context, e Event)

func (f ObserverFunc) Observe(ctx context.Context, e Event) { f(ctx, e) }

type observerKey struct{}

// WithObserver returns a context whose wrapped method calls report to o.
func WithObserver(ctx context.Context, o Observer) context.Context {
	return context.WithValue(ctx, observerKey{}, o)
}

func observerFrom(ctx context.Context) Observer {
	if o, ok := ctx.Value(observerKey{}).(Observer); ok && o != nil {
		return o
	}
	return nil
}

func notify(ctx context.Context, o Observer, e Event) {
	if o != nil {
		o.Observe(ctx, e)
	}
}
