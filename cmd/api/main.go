package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cassiomorais/txmethod/internal/bootstrap"
	"github.com/cassiomorais/txmethod/internal/controller"
	customMW "github.com/cassiomorais/txmethod/internal/middleware"
	"github.com/cassiomorais/txmethod/internal/repository/postgres"
	"github.com/cassiomorais/txmethod/internal/service"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "txmethod-api", "txmethod")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories ---
	userRepo := postgres.NewUserRepository()
	keyRepo := postgres.NewIdempotencyRepository()

	// --- Services ---
	userService := service.NewUserService(app.DB, userRepo, keyRepo, service.UserServiceConfig{
		BcryptCost:        app.Config.Auth.BcryptCost,
		MaxFailedLogins:   app.Config.Auth.MaxFailedLogins,
		FailedLoginWindow: app.Config.Auth.FailedLoginWindow,
		IdempotencyTTL:    app.Config.Server.Idempotency.TTL,
	}, app.Metrics)
	janitor := service.NewKeyJanitor(userService, app.Config.Server.Idempotency.PurgeInterval, app.Logger)

	tokens, err := customMW.NewTokens(app.Config.Auth)
	if err != nil {
		app.Logger.Error().Err(err).Msg("Failed to configure token issuer")
		return
	}

	// --- Build router ---
	router := controller.NewRouter(controller.RouterDeps{
		DB:          app.Pool,
		UserService: userService,
		Metrics:     app.Metrics,
		TxObserver:  app.TxObserver,
		Tokens:      tokens,
		Server:      app.Config.Server,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return janitor.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		app.Logger.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		app.Logger.Error().Err(err).Msg("Server stopped with error")
		return
	}
	app.Logger.Info().Msg("Server exited")
}
