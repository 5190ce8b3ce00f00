package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/txmethod/internal/domain/errors"
	"github.com/cassiomorais/txmethod/internal/domain/user"
	"github.com/cassiomorais/txmethod/pkg/txmethod"
	"github.com/cassiomorais/txmethod/pkg/txmethod/pgxtx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, email, name, password_hash, status, created_at, updated_at`

// UserRepository implements user.Store using PostgreSQL.
// Each operation is a wrapped method, so it runs in the caller's transaction
// when one is given and in its own transaction otherwise.
type UserRepository struct {
	create       txmethod.Method[*user.User]
	getByID      txmethod.Method[*user.User]
	getByEmail   txmethod.Method[*user.User]
	updateStatus txmethod.Method[struct{}]
	recordEvent  txmethod.Method[struct{}]
	countEvents  txmethod.Method[int]
}

var _ user.Store = (*UserRepository)(nil)

// NewUserRepository creates a new UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		create:       txmethod.MustWrap(insertUser, onInsertUserError),
		getByID:      txmethod.MustWrap(selectUserByID, notFoundAs[*user.User](domainErrors.ErrUserNotFound)),
		getByEmail:   txmethod.MustWrap(selectUserByEmail, notFoundAs[*user.User](domainErrors.ErrUserNotFound)),
		updateStatus: txmethod.MustWrap(updateUserStatus, notFoundAs[struct{}](domainErrors.ErrUserNotFound)),
		recordEvent:  txmethod.MustWrap(insertEvent),
		countEvents:  txmethod.MustWrap(countEventsSince),
	}
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, db txmethod.DB, tx txmethod.Tx, u *user.User) (*user.User, error) {
	return r.create(ctx, db, tx, u)
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, db txmethod.DB, tx txmethod.Tx, id uuid.UUID) (*user.User, error) {
	return r.getByID(ctx, db, tx, id)
}

// GetByEmail retrieves a user by normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, db txmethod.DB, tx txmethod.Tx, email string) (*user.User, error) {
	return r.getByEmail(ctx, db, tx, user.NormalizeEmail(email))
}

// UpdateStatus writes the user's status. Returns ErrUserNotFound when the row is gone.
func (r *UserRepository) UpdateStatus(ctx context.Context, db txmethod.DB, tx txmethod.Tx, u *user.User) error {
	_, err := r.updateStatus(ctx, db, tx, u)
	return err
}

// RecordEvent inserts a user audit event.
func (r *UserRepository) RecordEvent(ctx context.Context, db txmethod.DB, tx txmethod.Tx, e *user.Event) error {
	_, err := r.recordEvent(ctx, db, tx, e)
	return err
}

// CountEventsSince counts events of one type for a user from since onwards.
func (r *UserRepository) CountEventsSince(ctx context.Context, db txmethod.DB, tx txmethod.Tx, userID uuid.UUID, eventType user.EventType, since time.Time) (int, error) {
	return r.countEvents(ctx, db, tx, userID, eventType, since)
}

func insertUser(ctx context.Context, _ txmethod.DB, tx txmethod.Tx, args ...any) (*user.User, error) {
	u, err := txmethod.Arg[*user.User](args, 0)
	if err != nil {
		return nil, err
	}
	q, err := pgxtx.Querier(tx)
	if err != nil {
		return nil, err
	}

	_, err = q.Exec(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, u.Name, u.PasswordHash, string(u.Status), u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// onInsertUserError maps duplicate emails to a domain error. A unique
// violation aborts the transaction, so a locally opened one is rolled back here.
func onInsertUserError(ctx context.Context, err error, _ txmethod.DB, tx, original txmethod.Tx) (*user.User, error) {
	if rbErr := rollbackLocal(ctx, tx, original); rbErr != nil {
		return nil, fmt.Errorf("rollback failed (%v) after error: %w", rbErr, err)
	}
	if pgxtx.IsUniqueViolation(err) {
		return nil, domainErrors.ErrEmailTaken
	}
	return nil, err
}

func selectUserByID(ctx context.Context, _ txmethod.DB, tx txmethod.Tx, args ...any) (*user.User, error) {
	id, err := txmethod.Arg[uuid.UUID](args, 0)
	if err != nil {
		return nil, err
	}
	q, err := pgxtx.Querier(tx)
	if err != nil {
		return nil, err
	}
	return scanUser(q.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func selectUserByEmail(ctx context.Context, _ txmethod.DB, tx txmethod.Tx, args ...any) (*user.User, error) {
	email, err := txmethod.Arg[string](args, 0)
	if err != nil {
		return nil, err
	}
	q, err := pgxtx.Querier(tx)
	if err != nil {
		return nil, err
	}
	return scanUser(q.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func updateUserStatus(ctx context.Context, _ txmethod.DB, tx txmethod.Tx, args ...any) (struct{}, error) {
	u, err := txmethod.Arg[*user.User](args, 0)
	if err != nil {
		return struct{}{}, err
	}
	q, err := pgxtx.Querier(tx)
	if err != nil {
		return struct{}{}, err
	}

	tag, err := q.Exec(ctx,
		`UPDATE users SET status = $2, updated_at = $3 WHERE id = $1`,
		u.ID, string(u.Status), u.UpdatedAt,
	)
	if err != nil {
		return struct{}{}, fmt.Errorf("update user status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return struct{}{}, pgx.ErrNoRows
	}
	return struct{}{}, nil
}

func insertEvent(ctx context.Context, _ txmethod.DB, tx txmethod.Tx, args ...any) (struct{}, error) {
	e, err := txmethod.Arg[*user.Event](args, 0)
	if err != nil {
		return struct{}{}, err
	}
	q, err := pgxtx.Querier(tx)
	if err != nil {
		return struct{}{}, err
	}

	_, err = q.Exec(ctx,
		`INSERT INTO user_events (id, user_id, event_type, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.UserID, string(e.EventType), e.Detail, e.CreatedAt,
	)
	if err != nil {
		return struct{}{}, fmt.Errorf("insert user event: %w", err)
	}
	return struct{}{}, nil
}

func countEventsSince(ctx context.Context, _ txmethod.DB, tx txmethod.Tx, args ...any) (int, error) {
	userID, err := txmethod.Arg[uuid.UUID](args, 0)
	if err != nil {
		return 0, err
	}
	eventType, err := txmethod.Arg[user.EventType](args, 1)
	if err != nil {
		return 0, err
	}
	since, err := txmethod.Arg[time.Time](args, 2)
	if err != nil {
		return 0, err
	}
	q, err := pgxtx.Querier(tx)
	if err != nil {
		return 0, err
	}

	var n int
	err = q.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_events
		 WHERE user_id = $1 AND event_type = $2 AND created_at >= $3`,
		userID, string(eventType), since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count user events: %w", err)
	}
	return n, nil
}

func scanUser(row pgx.Row) (*user.User, error) {
	u := &user.User{}
	var status string
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Status = user.Status(status)
	return u, nil
}

// notFoundAs builds an error handler that rolls back a locally opened
// transaction and reports pgx.ErrNoRows as target.
func notFoundAs[T any](target error) txmethod.ErrorHandler[T] {
	return func(ctx context.Context, err error, _ txmethod.DB, tx, original txmethod.Tx) (T, error) {
		var zero T
		if rbErr := rollbackLocal(ctx, tx, original); rbErr != nil {
			return zero, fmt.Errorf("rollback failed (%v) after error: %w", rbErr, err)
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, target
		}
		return zero, err
	}
}

// rollbackLocal rolls back tx when the wrapper opened it (original is nil).
// A caller's transaction is left for the caller to finish.
func rollbackLocal(ctx context.Context, tx, original txmethod.Tx) error {
	if original != nil || tx.Finished() {
		return nil
	}
	return tx.Rollback(ctx)
}
