package observability

import (
	"context"

	"github.com/cassiomorais/txmethod/pkg/txmethod"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TxObserver reports wrapped method lifecycle events to logs and metrics.
type TxObserver struct {
	logger  zerolog.Logger
	metrics *Metrics
}

// NewTxObserver creates a TxObserver. metrics may be nil.
func NewTxObserver(logger zerolog.Logger, metrics *Metrics) *TxObserver {
	return &TxObserver{
		logger:  logger.With().Str("component", "txmethod").Logger(),
		metrics: metrics,
	}
}

// Observe implements txmethod.Observer.
func (o *TxObserver) Observe(ctx context.Context, e txmethod.Event) {
	scope := "caller"
	if e.Local {
		scope = "local"
	}
	status := "ok"
	if e.Err != nil {
		status = "error"
	}

	if o.metrics != nil {
		o.metrics.TxEventsTotal.WithLabelValues(string(e.Kind), scope, status).Inc()
		switch e.Kind {
		case txmethod.EventCommit, txmethod.EventRecover, txmethod.EventFailure:
			o.metrics.TxHandlerDuration.WithLabelValues(string(e.Kind)).Observe(e.Duration.Seconds())
		}
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.AddEvent("tx."+string(e.Kind), trace.WithAttributes(
			attribute.String("tx.scope", scope),
			attribute.String("tx.status", status),
		))
		if e.Err != nil && e.Kind != txmethod.EventRecover {
			span.SetStatus(codes.Error, e.Err.Error())
		}
	}

	ev := o.logger.Debug()
	switch e.Kind {
	case txmethod.EventFailure, txmethod.EventRecover:
		ev = ev.AnErr("handler_error", e.Err)
	default:
		if e.Err != nil {
			ev = o.logger.Warn().Err(e.Err)
		}
	}
	ev.Str("event", string(e.Kind)).
		Str("scope", scope).
		Dur("handler_duration", e.Duration).
		Msg("Transaction event")
}

// Attach returns ctx carrying o, so wrapped methods called with it report here.
func (o *TxObserver) Attach(ctx context.Context) context.Context {
	return txmethod.WithObserver(ctx, o)
}
