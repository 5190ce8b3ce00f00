// Package idempotency models Idempotency-Key records: a client-chosen key
// bound to the request it first arrived with and the resource it created.
package idempotency

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/cassiomorais/txmethod/pkg/txmethod"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// MaxKeyLength bounds client-supplied keys.
const MaxKeyLength = 255

type Record struct {
	Key         string
	Operation   string
	RequestHash string
	ResourceID  uuid.UUID
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// NewRecord binds key to the request fingerprint and the created resource.
func NewRecord(key, operation, requestHash string, resourceID uuid.UUID, ttl time.Duration) *Record {
	now := time.Now().UTC()
	return &Record{
		Key:         key,
		Operation:   operation,
		RequestHash: requestHash,
		ResourceID:  resourceID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

// Matches reports whether a retried request is the one this record was made for.
func (r *Record) Matches(operation, requestHash string) bool {
	return r.Operation == operation && r.RequestHash == requestHash
}

// Fingerprint hashes the identifying fields of a request. Secrets such as
// passwords must not be passed in.
func Fingerprint(fields ...string) string {
	sum := blake2b.Sum256([]byte(strings.Join(fields, "\x00")))
	return hex.EncodeToString(sum[:])
}

// ValidKey reports whether key is a non-empty run of visible ASCII no longer
// than MaxKeyLength.
func ValidKey(key string) bool {
	if key == "" || len(key) > MaxKeyLength {
		return false
	}
	for i := 0; i < len(key); i++ {
		if key[i] < 0x21 || key[i] > 0x7e {
			return false
		}
	}
	return true
}

// Store persists records. Operations follow the wrapped method convention:
// pass nil for tx to run on their own.
type Store interface {
	// Get returns errors.ErrIdempotencyKeyNotFound when the key is unknown or expired.
	Get(ctx context.Context, db txmethod.DB, tx txmethod.Tx, key string) (*Record, error)

	// Save stores r, replacing an expired record with the same key. Returns
	// errors.ErrIdempotencyKeyReused when a live record holds the key.
	Save(ctx context.Context, db txmethod.DB, tx txmethod.Tx, r *Record) error

	// DeleteExpired removes records that expired before cutoff.
	DeleteExpired(ctx context.Context, db txmethod.DB, tx txmethod.Tx, cutoff time.Time) (int64, error)
}
