package user

import (
	"context"
	"time"

	"github.com/cassiomorais/txmethod/pkg/txmethod"
	"github.com/google/uuid"
)

// Store defines user persistence. Every operation takes a database handle and
// an optional transaction: pass nil to run it on its own, or pass a transaction
// to make it part of a larger unit of work.
type Store interface {
	// Create inserts a user. Returns errors.ErrEmailTaken on a duplicate email.
	Create(ctx context.Context, db txmethod.DB, tx txmethod.Tx, u *User) (*User, error)

	// GetByID returns errors.ErrUserNotFound when no user matches.
	GetByID(ctx context.Context, db txmethod.DB, tx txmethod.Tx, id uuid.UUID) (*User, error)

	// GetByEmail returns errors.ErrUserNotFound when no user matches.
	GetByEmail(ctx context.Context, db txmethod.DB, tx txmethod.Tx, email string) (*User, error)

	// UpdateStatus persists u.Status and u.UpdatedAt.
	UpdateStatus(ctx context.Context, db txmethod.DB, tx txmethod.Tx, u *User) error

	// RecordEvent appends an audit event
	RecordEvent(ctx context.Context, db txmethod.DB, tx txmethod.Tx, e *Event) error

	// CountEventsSince counts a user's events of the given type created at or after since.
	CountEventsSince(ctx context.Context, db txmethod.DB, tx txmethod.Tx, userID uuid.UUID, eventType EventType, since time.Time) (int, error)
}
