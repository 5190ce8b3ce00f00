package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// KeyPurger deletes expired idempotency keys.
type KeyPurger interface {
	PurgeExpiredKeys(ctx context.Context) (int64, error)
}

// KeyJanitor purges expired idempotency keys on a fixed interval.
type KeyJanitor struct {
	purger   KeyPurger
	interval time.Duration
	logger   zerolog.Logger
}

func NewKeyJanitor(purger KeyPurger, interval time.Duration, logger zerolog.Logger) *KeyJanitor {
	return &KeyJanitor{
		purger:   purger,
		interval: interval,
		logger:   logger.With().Str("component", "key_janitor").Logger(),
	}
}

// Run purges once per interval until ctx is cancelled. Failed purges are
// logged and retried on the next tick.
func (j *KeyJanitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info().Dur("interval", j.interval).Msg("Idempotency key janitor started")
	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("Idempotency key janitor stopped")
			return nil
		case <-ticker.C:
			j.purge(ctx)
		}
	}
}

func (j *KeyJanitor) purge(ctx context.Context) {
	n, err := j.purger.PurgeExpiredKeys(ctx)
	if err != nil {
		if ctx.Err() == nil {
			j.logger.Error().Err(err).Msg("Failed to purge expired idempotency keys")
		}
		return
	}
	if n > 0 {
		j.logger.Debug().Int64("deleted", n).Msg("Purged expired idempotency keys")
	}
}
