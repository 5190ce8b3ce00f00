package controller

import (
	"time"

	"github.com/cassiomorais/txmethod/internal/config"
	"github.com/cassiomorais/txmethod/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/txmethod/internal/middleware"
	"github.com/cassiomorais/txmethod/internal/service"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterDeps struct {
	DB          Pinger
	UserService *service.UserService
	Metrics     *observability.Metrics
	TxObserver  *observability.TxObserver
	Tokens      *customMW.Tokens
	Server      config.ServerConfig
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Server.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Location", "X-Idempotency-Replayed"},
		AllowCredentials: deps.Server.CORS.AllowCredentials,
		MaxAge:           300,
	}))
	if deps.Metrics != nil {
		r.Use(customMW.Metrics(deps.Metrics))
	}
	if deps.TxObserver != nil {
		r.Use(customMW.ObserveTransactions(deps.TxObserver))
	}

	healthH := NewHealthController(deps.DB)
	userH := NewUserController(deps.UserService, deps.Tokens)

	r.Get("/health", healthH.Liveness)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.With(customMW.Idempotency()).Post("/users", userH.Register)

		r.Group(func(r chi.Router) {
			r.Use(customMW.RequireAuth(deps.Tokens))
			r.Get("/users/me", userH.Me)
			r.Get("/users/{id}", userH.Get)
		})

		sessions := r.With()
		if deps.Server.SessionRateLimit > 0 {
			sessions = r.With(customMW.RateLimit(deps.Server.SessionRateLimit))
		}
		sessions.Post("/sessions", userH.CreateSession)
	})

	return r
}
