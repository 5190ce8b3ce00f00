package main

import (
	"errors"
	"flag"
	"os"

	"github.com/cassiomorais/txmethod/internal/config"
	"github.com/cassiomorais/txmethod/internal/infrastructure/observability"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	direction := flag.String("direction", "up", "up, down or version")
	steps := flag.Int("steps", 0, "apply only this many migrations (0 = all)")
	dbURL := flag.String("db", "", "database URL; defaults to the TXMETHOD_DATABASE_* settings")
	path := flag.String("path", "internal/repository/postgres/migrations", "migrations directory")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := observability.InitLogger("info", os.Stderr)
		bootLogger.Fatal().Err(err).Msg("Failed to load config")
	}
	logger := observability.InitLogger(cfg.Observability.LogLevel, os.Stderr)

	url := *dbURL
	if url == "" {
		url = cfg.Database.DatabaseURL()
	}

	m, err := migrate.New("file://"+*path, url)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *path).Msg("Failed to open migrations")
	}
	defer m.Close()

	switch *direction {
	case "up":
		if *steps > 0 {
			err = m.Steps(*steps)
		} else {
			err = m.Up()
		}
	case "down":
		if *steps > 0 {
			err = m.Steps(-*steps)
		} else {
			err = m.Down()
		}
	case "version":
	default:
		logger.Fatal().Str("direction", *direction).Msg("Unknown direction (use up, down or version)")
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal().Err(err).Str("direction", *direction).Msg("Migration failed")
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		logger.Fatal().Err(verr).Msg("Failed to read schema version")
	}
	logger.Info().Uint("version", version).Bool("dirty", dirty).Str("direction", *direction).Msg("Schema is current")
}
