package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/txmethod/internal/domain/errors"
	"github.com/cassiomorais/txmethod/internal/domain/idempotency"
	"github.com/cassiomorais/txmethod/pkg/txmethod"
	"github.com/cassiomorais/txmethod/pkg/txmethod/pgxtx"
	"github.com/jackc/pgx/v5"
)

// IdempotencyRepository implements idempotency.Store using PostgreSQL.
type IdempotencyRepository struct {
	get           txmethod.Method[*idempotency.Record]
	save          txmethod.Method[struct{}]
	deleteExpired txmethod.Method[int64]
}

var _ idempotency.Store = (*IdempotencyRepository)(nil)

func NewIdempotencyRepository() *IdempotencyRepository {
	return &IdempotencyRepository{
		get:           txmethod.MustWrap(selectIdempotencyKey, notFoundAs[*idempotency.Record](domainErrors.ErrIdempotencyKeyNotFound)),
		save:          txmethod.MustWrap(upsertIdempotencyKey, notFoundAs[struct{}](domainErrors.ErrIdempotencyKeyReused)),
		deleteExpired: txmethod.MustWrap(deleteExpiredKeys),
	}
}

// Get returns the live record for key.
func (r *IdempotencyRepository) Get(ctx context.Context, db txmethod.DB, tx txmethod.Tx, key string) (*idempotency.Record, error) {
	return r.get(ctx, db, tx, key)
}

// Save inserts rec, taking over the key only if the stored record has expired.
func (r *IdempotencyRepository) Save(ctx context.Context, db txmethod.DB, tx txmethod.Tx, rec *idempotency.Record) error {
	_, err := r.save(ctx, db, tx, rec)
	return err
}

// DeleteExpired purges records that expired before cutoff.
func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, db txmethod.DB, tx txmethod.Tx, cutoff time.Time) (int64, error) {
	return r.deleteExpired(ctx, db, tx, cutoff)
}

func selectIdempotencyKey(ctx context.Context, _ txmethod.DB, tx txmethod.Tx, args ...any) (*idempotency.Record, error) {
	key, err := txmethod.Arg[string](args, 0)
	if err != nil {
		return nil, err
	}
	q, err := pgxtx.Querier(tx)
	if err != nil {
		return nil, err
	}

	rec := &idempotency.Record{}
	err = q.QueryRow(ctx,
		`SELECT key, operation, request_hash, resource_id, created_at, expires_at
		 FROM idempotency_keys
		 WHERE key = $1 AND expires_at > NOW()`, key,
	).Scan(&rec.Key, &rec.Operation, &rec.RequestHash, &rec.ResourceID, &rec.CreatedAt, &rec.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("select idempotency key: %w", err)
	}
	return rec, nil
}

// upsertIdempotencyKey reports pgx.ErrNoRows when a live record already holds the key.
func upsertIdempotencyKey(ctx context.Context, _ txmethod.DB, tx txmethod.Tx, args ...any) (struct{}, error) {
	rec, err := txmethod.Arg[*idempotency.Record](args, 0)
	if err != nil {
		return struct{}{}, err
	}
	q, err := pgxtx.Querier(tx)
	if err != nil {
		return struct{}{}, err
	}

	tag, err := q.Exec(ctx,
		`INSERT INTO idempotency_keys (key, operation, request_hash, resource_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (key) DO UPDATE SET
		     operation = EXCLUDED.operation,
		     request_hash = EXCLUDED.request_hash,
		     resource_id = EXCLUDED.resource_id,
		     created_at = EXCLUDED.created_at,
		     expires_at = EXCLUDED.expires_at
		 WHERE idempotency_keys.expires_at <= NOW()`,
		rec.Key, rec.Operation, rec.RequestHash, rec.ResourceID, rec.CreatedAt, rec.ExpiresAt,
	)
	if err != nil {
		return struct{}{}, fmt.Errorf("save idempotency key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return struct{}{}, pgx.ErrNoRows
	}
	return struct{}{}, nil
}

func deleteExpiredKeys(ctx context.Context, _ txmethod.DB, tx txmethod.Tx, args ...any) (int64, error) {
	cutoff, err := txmethod.Arg[time.Time](args, 0)
	if err != nil {
		return 0, err
	}
	q, err := pgxtx.Querier(tx)
	if err != nil {
		return 0, err
	}

	tag, err := q.Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
