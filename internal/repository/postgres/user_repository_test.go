package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cassiomorais/txmethod/internal/config"
	domainErrors "github.com/cassiomorais/txmethod/internal/domain/errors"
	"github.com/cassiomorais/txmethod/internal/domain/user"
	"github.com/cassiomorais/txmethod/pkg/txmethod"
	"github.com/cassiomorais/txmethod/pkg/txmethod/pgxtx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- pgx stubs ---

type rowFunc func(dest ...any) error

func (f rowFunc) Scan(dest ...any) error { return f(dest...) }

type stubPgxTx struct {
	pgx.Tx
	execSQL   []string
	execArgs  [][]any
	execErr   error
	execTag   string
	row       pgx.Row
	commits   int
	rollbacks int
}

func (s *stubPgxTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.execSQL = append(s.execSQL, sql)
	s.execArgs = append(s.execArgs, args)
	tag := s.execTag
	if tag == "" {
		tag = "INSERT 0 1"
	}
	return pgconn.NewCommandTag(tag), s.execErr
}

func (s *stubPgxTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return s.row
}

func (s *stubPgxTx) Commit(ctx context.Context) error {
	s.commits++
	return nil
}

func (s *stubPgxTx) Rollback(ctx context.Context) error {
	s.rollbacks++
	return nil
}

type stubBeginner struct {
	tx *stubPgxTx
}

func (b *stubBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return b.tx, nil
}

func setupRepo(stub *stubPgxTx) (*UserRepository, txmethod.DB) {
	return NewUserRepository(), pgxtx.New(&stubBeginner{tx: stub})
}

func newTestUser(t *testing.T) *user.User {
	t.Helper()
	u, err := user.NewUser("ada@example.com", "Ada", []byte("hash"))
	require.NoError(t, err)
	return u
}

// --- Create ---

func TestUserRepository_Create_CommitsLocalTransaction(t *testing.T) {
	stub := &stubPgxTx{}
	repo, db := setupRepo(stub)
	u := newTestUser(t)

	got, err := repo.Create(context.Background(), db, nil, u)
	require.NoError(t, err)
	assert.Same(t, u, got)

	require.Len(t, stub.execSQL, 1)
	assert.Contains(t, stub.execSQL[0], "INSERT INTO users")
	assert.Equal(t, u.ID, stub.execArgs[0][0])
	assert.Equal(t, "active", stub.execArgs[0][4])
	assert.Equal(t, 1, stub.commits)
	assert.Equal(t, 0, stub.rollbacks)
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	stub := &stubPgxTx{execErr: &pgconn.PgError{Code: pgxtx.UniqueViolation}}
	repo, db := setupRepo(stub)

	_, err := repo.Create(context.Background(), db, nil, newTestUser(t))
	assert.ErrorIs(t, err, domainErrors.ErrEmailTaken)
	assert.Equal(t, 1, stub.rollbacks, "locally opened transaction must be rolled back")
	assert.Equal(t, 0, stub.commits)
}

func TestUserRepository_Create_InCallerTransaction(t *testing.T) {
	stub := &stubPgxTx{execErr: &pgconn.PgError{Code: pgxtx.UniqueViolation}}
	repo, db := setupRepo(&stubPgxTx{})
	callerTx := pgxtx.Wrap(stub)

	_, err := repo.Create(context.Background(), db, callerTx, newTestUser(t))
	assert.ErrorIs(t, err, domainErrors.ErrEmailTaken)
	assert.Equal(t, 0, stub.rollbacks, "caller's transaction is left to the caller")
	assert.False(t, callerTx.Finished())
}

func TestUserRepository_Create_OtherErrorPassesThrough(t *testing.T) {
	boom := errors.New("disk full")
	stub := &stubPgxTx{execErr: boom}
	repo, db := setupRepo(stub)

	_, err := repo.Create(context.Background(), db, nil, newTestUser(t))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domainErrors.ErrEmailTaken)
	assert.Equal(t, 1, stub.rollbacks)
}

// --- Get ---

func TestUserRepository_GetByID(t *testing.T) {
	id := uuid.New()
	now := time.Now().UTC()
	stub := &stubPgxTx{row: rowFunc(func(dest ...any) error {
		*dest[0].(*uuid.UUID) = id
		*dest[1].(*string) = "ada@example.com"
		*dest[2].(*string) = "Ada"
		*dest[3].(*[]byte) = []byte("hash")
		*dest[4].(*string) = "active"
		*dest[5].(*time.Time) = now
		*dest[6].(*time.Time) = now
		return nil
	})}
	repo, db := setupRepo(stub)

	u, err := repo.GetByID(context.Background(), db, nil, id)
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, user.StatusActive, u.Status)
	assert.Equal(t, 1, stub.commits)
}

func TestUserRepository_GetByEmail_NotFound(t *testing.T) {
	stub := &stubPgxTx{row: rowFunc(func(dest ...any) error { return pgx.ErrNoRows })}
	repo, db := setupRepo(stub)

	_, err := repo.GetByEmail(context.Background(), db, nil, "nobody@example.com")
	assert.ErrorIs(t, err, domainErrors.ErrUserNotFound)
	assert.Equal(t, 1, stub.rollbacks)
}

// --- RecordEvent ---

func TestUserRepository_RecordEvent(t *testing.T) {
	stub := &stubPgxTx{}
	repo, db := setupRepo(stub)
	e := user.NewEvent(uuid.New(), user.EventRegistered, "signup")

	require.NoError(t, repo.RecordEvent(context.Background(), db, nil, e))
	require.Len(t, stub.execSQL, 1)
	assert.Contains(t, stub.execSQL[0], "INSERT INTO user_events")
	assert.Equal(t, "registered", stub.execArgs[0][2])
	assert.Equal(t, 1, stub.commits)
}

// --- UpdateStatus ---

func TestUserRepository_UpdateStatus(t *testing.T) {
	stub := &stubPgxTx{execTag: "UPDATE 1"}
	repo, db := setupRepo(stub)
	u := newTestUser(t)
	u.Disable()

	require.NoError(t, repo.UpdateStatus(context.Background(), db, nil, u))
	require.Len(t, stub.execSQL, 1)
	assert.Contains(t, stub.execSQL[0], "UPDATE users SET status")
	assert.Equal(t, u.ID, stub.execArgs[0][0])
	assert.Equal(t, "disabled", stub.execArgs[0][1])
	assert.Equal(t, 1, stub.commits)
}

func TestUserRepository_UpdateStatus_MissingUser(t *testing.T) {
	stub := &stubPgxTx{execTag: "UPDATE 0"}
	repo, db := setupRepo(stub)

	err := repo.UpdateStatus(context.Background(), db, nil, newTestUser(t))
	assert.ErrorIs(t, err, domainErrors.ErrUserNotFound)
	assert.Equal(t, 1, stub.rollbacks)
	assert.Equal(t, 0, stub.commits)
}

// --- CountEventsSince ---

func TestUserRepository_CountEventsSince(t *testing.T) {
	stub := &stubPgxTx{row: rowFunc(func(dest ...any) error {
		*dest[0].(*int) = 3
		return nil
	})}
	repo, db := setupRepo(stub)

	n, err := repo.CountEventsSince(context.Background(), db, nil, uuid.New(), user.EventLoginFailed, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, stub.commits)
}

func TestUserRepository_CountEventsSince_RejectsWrongArgument(t *testing.T) {
	stub := &stubPgxTx{}
	repo, db := setupRepo(stub)

	_, err := repo.countEvents(context.Background(), db, nil, uuid.New(), "login_failed", time.Now())

	var argErr *txmethod.InvalidArgumentError
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "args[1]", argErr.Arg)
	assert.Equal(t, 1, stub.rollbacks)
}

func TestPoolConfig(t *testing.T) {
	pc, err := poolConfig(&config.DatabaseConfig{
		Host:            "db.internal",
		Port:            5433,
		User:            "txmethod",
		Password:        "secret",
		Database:        "users",
		SSLMode:         "disable",
		MaxConnections:  10,
		MinConnections:  2,
		ConnMaxLifetime: time.Hour,
	})
	require.NoError(t, err)

	assert.Equal(t, int32(10), pc.MaxConns)
	assert.Equal(t, int32(2), pc.MinConns)
	assert.Equal(t, time.Hour, pc.MaxConnLifetime)
	assert.Equal(t, "db.internal", pc.ConnConfig.Host)
	assert.Equal(t, uint16(5433), pc.ConnConfig.Port)
	assert.Equal(t, "users", pc.ConnConfig.Database)
}
