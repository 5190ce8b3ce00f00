package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Transaction metrics
	TxEventsTotal     *prometheus.CounterVec
	TxHandlerDuration *prometheus.HistogramVec

	// User metrics
	UsersRegistered   prometheus.Counter
	LoginAttempts     *prometheus.CounterVec
	AccountsLocked    prometheus.Counter
	IdempotentReplays prometheus.Counter
	IdempotencyPurged prometheus.Counter

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		TxEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tx_events_total",
				Help:      "Transaction lifecycle events by kind, ownership and outcome",
			},
			[]string{"event", "scope", "status"},
		),
		TxHandlerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tx_handler_duration_seconds",
				Help:      "Time spent inside wrapped handlers, by how the call ended",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"outcome"},
		),
		UsersRegistered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "users_registered_total",
				Help:      "Total number of registered users",
			},
		),
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "login_attempts_total",
				Help:      "Login attempts by result",
			},
			[]string{"result"},
		),
		AccountsLocked: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "accounts_locked_total",
				Help:      "Accounts disabled after repeated failed logins",
			},
		),
		IdempotentReplays: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "idempotent_replays_total",
				Help:      "Requests answered from a stored idempotency key",
			},
		),
		IdempotencyPurged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "idempotency_keys_purged_total",
				Help:      "Expired idempotency keys deleted by the janitor",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	reg.MustRegister(
		m.TxEventsTotal,
		m.TxHandlerDuration,
		m.UsersRegistered,
		m.LoginAttempts,
		m.AccountsLocked,
		m.IdempotentReplays,
		m.IdempotencyPurged,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}
