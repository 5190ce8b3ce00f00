package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/cassiomorais/txmethod/internal/config"
	"github.com/cassiomorais/txmethod/internal/infrastructure/observability"
	"github.com/cassiomorais/txmethod/internal/repository/postgres"
	"github.com/cassiomorais/txmethod/pkg/txmethod/pgxtx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// App holds the process-wide dependencies shared by the binaries.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Pool       *pgxpool.Pool
	DB         *pgxtx.DB
	Metrics    *observability.Metrics
	TxObserver *observability.TxObserver
}

func New(ctx context.Context, serviceName string, metricsNamespace string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info().Str("service", serviceName).Msg("Starting")

	if cfg.Observability.EnableTracing {
		tp, err := observability.InitTracer(serviceName, cfg.Observability.JaegerEndpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		} else {
			go func() {
				<-ctx.Done()
				observability.Shutdown(context.Background(), tp)
			}()
			logger.Info().Msg("Tracing enabled")
		}
	}

	var metrics *observability.Metrics
	if cfg.Observability.EnableMetrics {
		metrics = observability.NewMetrics(metricsNamespace, nil)
		logger.Info().Msg("Metrics initialized")
	}

	pool, err := postgres.NewPool(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info().Msg("Connected to PostgreSQL")

	return &App{
		Config:     cfg,
		Logger:     logger,
		Pool:       pool,
		DB:         pgxtx.New(pool),
		Metrics:    metrics,
		TxObserver: observability.NewTxObserver(logger, metrics),
	}, nil
}

func (a *App) Close() {
	a.Pool.Close()
}
