package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domainErrors "github.com/cassiomorais/txmethod/internal/domain/errors"
	"github.com/cassiomorais/txmethod/internal/domain/idempotency"
	"github.com/cassiomorais/txmethod/internal/domain/user"
	"github.com/cassiomorais/txmethod/internal/infrastructure/observability"
	"github.com/cassiomorais/txmethod/pkg/txmethod"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var validate = validator.New()

const opRegisterUser = "register_user"

// UserServiceConfig tunes password hashing, account lockout and how long
// idempotency keys are honoured.
type UserServiceConfig struct {
	BcryptCost int

	// MaxFailedLogins disables an account after that many wrong passwords
	// within FailedLoginWindow. Zero turns lockout off.
	MaxFailedLogins   int
	FailedLoginWindow time.Duration

	IdempotencyTTL time.Duration
}

// UserService handles user registration and sign-in. Each use case is a
// wrapped method composing several store calls into one transaction.
type UserService struct {
	db      txmethod.DB
	users   user.Store
	keys    idempotency.Store
	cfg     UserServiceConfig
	metrics *observability.Metrics

	register     txmethod.Method[*user.User]
	registerOnce txmethod.Method[registration]
	authenticate txmethod.Method[*user.User]
}

type registration struct {
	user     *user.User
	replayed bool
}

// NewUserService creates a new UserService. metrics may be nil.
func NewUserService(db txmethod.DB, users user.Store, keys idempotency.Store, cfg UserServiceConfig, metrics *observability.Metrics) *UserService {
	s := &UserService{
		db:      db,
		users:   users,
		keys:    keys,
		cfg:     cfg,
		metrics: metrics,
	}
	s.register = txmethod.MustWrap(s.registerHandler)
	s.registerOnce = txmethod.MustWrap(s.registerOnceHandler)
	s.authenticate = txmethod.MustWrap(s.authenticateHandler, s.onAuthenticateError)
	return s
}

// Register validates the request, hashes the password and stores the user
// together with its registration event.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*user.User, error) {
	return s.RegisterIn(ctx, nil, req)
}

// RegisterIn is Register running inside tx. With a nil tx the registration
// commits on its own; otherwise it is left for the caller to commit.
func (s *UserService) RegisterIn(ctx context.Context, tx txmethod.Tx, req RegisterRequest) (*user.User, error) {
	u, err := s.newUser(req)
	if err != nil {
		return nil, err
	}

	created, err := s.register(ctx, s.db, tx, u)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.UsersRegistered.Inc()
	}
	return created, nil
}

// RegisterOnce is Register guarded by an idempotency key. The key lookup, the
// user insert and the key record share one transaction. A retry carrying the
// same key and request returns the user created the first time with replayed
// set; the same key with a different request fails with ErrIdempotencyKeyReused.
// An empty key falls back to Register.
func (s *UserService) RegisterOnce(ctx context.Context, key string, req RegisterRequest) (*user.User, bool, error) {
	if key == "" {
		u, err := s.Register(ctx, req)
		return u, false, err
	}

	u, err := s.newUser(req)
	if err != nil {
		return nil, false, err
	}

	fingerprint := registrationFingerprint(req)
	res, err := s.registerOnce(ctx, s.db, nil, key, fingerprint, u)
	if err != nil {
		return nil, false, err
	}

	if s.metrics != nil {
		if res.replayed {
			s.metrics.IdempotentReplays.Inc()
		} else {
			s.metrics.UsersRegistered.Inc()
		}
	}
	return res.user, res.replayed, nil
}

func (s *UserService) newUser(req RegisterRequest) (*user.User, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return user.NewUser(req.Email, req.Name, hash)
}

// registrationFingerprint identifies a registration request without the password.
func registrationFingerprint(req RegisterRequest) string {
	return idempotency.Fingerprint(opRegisterUser, user.NormalizeEmail(req.Email), strings.TrimSpace(req.Name))
}

func (s *UserService) registerHandler(ctx context.Context, db txmethod.DB, tx txmethod.Tx, args ...any) (*user.User, error) {
	u, err := txmethod.Arg[*user.User](args, 0)
	if err != nil {
		return nil, err
	}

	created, err := s.users.Create(ctx, db, tx, u)
	if err != nil {
		return nil, err
	}
	if err := s.users.RecordEvent(ctx, db, tx, user.NewEvent(created.ID, user.EventRegistered, "")); err != nil {
		return nil, fmt.Errorf("record registration: %w", err)
	}
	return created, nil
}

func (s *UserService) registerOnceHandler(ctx context.Context, db txmethod.DB, tx txmethod.Tx, args ...any) (registration, error) {
	key, err := txmethod.Arg[string](args, 0)
	if err != nil {
		return registration{}, err
	}
	fingerprint, err := txmethod.Arg[string](args, 1)
	if err != nil {
		return registration{}, err
	}

	rec, err := s.keys.Get(ctx, db, tx, key)
	switch {
	case err == nil:
		if !rec.Matches(opRegisterUser, fingerprint) {
			return registration{}, keyReused(key)
		}
		u, err := s.users.GetByID(ctx, db, tx, rec.ResourceID)
		if err != nil {
			return registration{}, fmt.Errorf("replay registration: %w", err)
		}
		return registration{user: u, replayed: true}, nil
	case !errors.Is(err, domainErrors.ErrIdempotencyKeyNotFound):
		return registration{}, fmt.Errorf("look up idempotency key: %w", err)
	}

	// The remaining argument is the new user, consumed by registerHandler.
	created, err := s.registerHandler(ctx, db, tx, args[2:]...)
	if err != nil {
		return registration{}, err
	}

	rec = idempotency.NewRecord(key, opRegisterUser, fingerprint, created.ID, s.cfg.IdempotencyTTL)
	if err := s.keys.Save(ctx, db, tx, rec); err != nil {
		if errors.Is(err, domainErrors.ErrIdempotencyKeyReused) {
			return registration{}, keyReused(key)
		}
		return registration{}, fmt.Errorf("save idempotency key: %w", err)
	}
	return registration{user: created}, nil
}

func keyReused(key string) error {
	return domainErrors.NewDomainError(
		"idempotency_key_reused",
		fmt.Sprintf("idempotency key %q was already used for a different request", key),
		domainErrors.ErrIdempotencyKeyReused,
	)
}

// Authenticate checks credentials. Failed attempts against an existing user
// are recorded even though the call fails, and enough of them within the
// configured window disable the account.
func (s *UserService) Authenticate(ctx context.Context, req AuthenticateRequest) (*user.User, error) {
	if err := validateRequest(req); err != nil {
		s.recordLogin(err)
		return nil, err
	}

	u, err := s.authenticate(ctx, s.db, nil, req.Email, req.Password)
	s.recordLogin(err)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// loginFailure carries the user whose password did not match out of the
// handler, so the error handler can record the attempt.
type loginFailure struct {
	user *user.User
}

func (e *loginFailure) Error() string {
	return "password mismatch for user " + e.user.ID.String()
}

func (s *UserService) authenticateHandler(ctx context.Context, db txmethod.DB, tx txmethod.Tx, args ...any) (*user.User, error) {
	email, err := txmethod.Arg[string](args, 0)
	if err != nil {
		return nil, err
	}
	password, err := txmethod.Arg[string](args, 1)
	if err != nil {
		return nil, err
	}

	u, err := s.users.GetByEmail(ctx, db, tx, email)
	if err != nil {
		if errors.Is(err, domainErrors.ErrUserNotFound) {
			return nil, domainErrors.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, &loginFailure{user: u}
	}
	if !u.IsActive() {
		return nil, domainErrors.NewDomainError("user_disabled", "account is disabled", domainErrors.ErrUserDisabled)
	}

	if err := s.users.RecordEvent(ctx, db, tx, user.NewEvent(u.ID, user.EventLoggedIn, "")); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	return u, nil
}

// onAuthenticateError keeps the audit trail for wrong passwords: the failed
// attempt, and a lockout if it was one too many, are committed and the caller
// sees ErrInvalidCredentials. Any other failure rolls back a locally opened
// transaction.
func (s *UserService) onAuthenticateError(ctx context.Context, err error, db txmethod.DB, tx, original txmethod.Tx) (*user.User, error) {
	var failure *loginFailure
	if !errors.As(err, &failure) {
		return nil, rollbackLocal(ctx, err, tx, original)
	}

	locked, recErr := s.recordFailedLogin(ctx, db, tx, failure.user)
	if recErr != nil {
		return nil, rollbackLocal(ctx, recErr, tx, original)
	}
	if original == nil {
		if cErr := tx.Commit(ctx); cErr != nil {
			return nil, fmt.Errorf("commit failed login: %w", cErr)
		}
	}
	if locked && s.metrics != nil {
		s.metrics.AccountsLocked.Inc()
	}
	return nil, domainErrors.ErrInvalidCredentials
}

// recordFailedLogin appends a login_failed event and disables an active user
// who has reached MaxFailedLogins within the window, counting this attempt.
func (s *UserService) recordFailedLogin(ctx context.Context, db txmethod.DB, tx txmethod.Tx, u *user.User) (bool, error) {
	var prior int
	lockout := s.cfg.MaxFailedLogins > 0 && u.IsActive()
	if lockout {
		since := time.Now().UTC().Add(-s.cfg.FailedLoginWindow)
		n, err := s.users.CountEventsSince(ctx, db, tx, u.ID, user.EventLoginFailed, since)
		if err != nil {
			return false, fmt.Errorf("count failed logins: %w", err)
		}
		prior = n
	}

	if err := s.users.RecordEvent(ctx, db, tx, user.NewEvent(u.ID, user.EventLoginFailed, "password mismatch")); err != nil {
		return false, fmt.Errorf("record failed login: %w", err)
	}
	if !lockout || prior+1 < s.cfg.MaxFailedLogins {
		return false, nil
	}

	u.Disable()
	if err := s.users.UpdateStatus(ctx, db, tx, u); err != nil {
		return false, fmt.Errorf("lock user: %w", err)
	}
	detail := fmt.Sprintf("%d failed logins within %s", prior+1, s.cfg.FailedLoginWindow)
	if err := s.users.RecordEvent(ctx, db, tx, user.NewEvent(u.ID, user.EventLocked, detail)); err != nil {
		return false, fmt.Errorf("record lockout: %w", err)
	}
	return true, nil
}

// rollbackLocal rolls back tx when the wrapper opened it and returns err,
// annotated if the rollback itself failed.
func rollbackLocal(ctx context.Context, err error, tx, original txmethod.Tx) error {
	if original != nil || tx.Finished() {
		return err
	}
	if rbErr := tx.Rollback(ctx); rbErr != nil {
		return fmt.Errorf("rollback failed (%v) after error: %w", rbErr, err)
	}
	return err
}

// Get fetches a user by ID in its own transaction.
func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return s.users.GetByID(ctx, s.db, nil, id)
}

// PurgeExpiredKeys deletes idempotency records that have expired.
func (s *UserService) PurgeExpiredKeys(ctx context.Context) (int64, error) {
	n, err := s.keys.DeleteExpired(ctx, s.db, nil, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.IdempotencyPurged.Add(float64(n))
	}
	return n, nil
}

func (s *UserService) recordLogin(err error) {
	if s.metrics == nil {
		return
	}
	result := "success"
	switch {
	case errors.Is(err, domainErrors.ErrInvalidCredentials):
		result = "invalid_credentials"
	case errors.Is(err, domainErrors.ErrUserDisabled):
		result = "disabled"
	case errors.Is(err, domainErrors.ErrValidationFailed):
		result = "invalid_request"
	case err != nil:
		result = "error"
	}
	s.metrics.LoginAttempts.WithLabelValues(result).Inc()
}

func validateRequest(req any) error {
	if err := validate.Struct(req); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return domainErrors.NewValidationError(strings.ToLower(ve[0].Field()), ve[0].Tag()+" validation failed")
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}
