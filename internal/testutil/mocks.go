package testutil

import (
	"context"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/txmethod/internal/domain/errors"
	"github.com/cassiomorais/txmethod/internal/domain/idempotency"
	"github.com/cassiomorais/txmethod/internal/domain/user"
	"github.com/cassiomorais/txmethod/pkg/txmethod"
	"github.com/google/uuid"
)

// --- User Store Mock ---

// MockUserStore is an in-memory user.Store. Writes made inside a FakeTx become
// visible only once that transaction commits; writes in any other transaction
// are applied immediately. Reads return copies, so callers mutating a
// returned user do not change the store until they write it back.
type MockUserStore struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*user.User
	byEmail map[string]*user.User
	events  []*user.Event

	CreateFunc       func(ctx context.Context, db txmethod.DB, tx txmethod.Tx, u *user.User) (*user.User, error)
	GetByIDFunc      func(ctx context.Context, db txmethod.DB, tx txmethod.Tx, id uuid.UUID) (*user.User, error)
	GetByEmailFunc   func(ctx context.Context, db txmethod.DB, tx txmethod.Tx, email string) (*user.User, error)
	UpdateStatusFunc func(ctx context.Context, db txmethod.DB, tx txmethod.Tx, u *user.User) error
	RecordEventFunc  func(ctx context.Context, db txmethod.DB, tx txmethod.Tx, e *user.Event) error
}

func NewMockUserStore() *MockUserStore {
	return &MockUserStore{
		users:   make(map[uuid.UUID]*user.User),
		byEmail: make(map[string]*user.User),
	}
}

func (m *MockUserStore) Create(ctx context.Context, db txmethod.DB, tx txmethod.Tx, u *user.User) (*user.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, db, tx, u)
	}
	m.mu.Lock()
	_, taken := m.byEmail[u.Email]
	m.mu.Unlock()
	if taken {
		return nil, domainErrors.ErrEmailTaken
	}
	stored := *u
	m.apply(tx, func() {
		m.users[u.ID] = &stored
		m.byEmail[u.Email] = &stored
	})
	return u, nil
}

func (m *MockUserStore) GetByID(ctx context.Context, db txmethod.DB, tx txmethod.Tx, id uuid.UUID) (*user.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, db, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domainErrors.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserStore) GetByEmail(ctx context.Context, db txmethod.DB, tx txmethod.Tx, email string) (*user.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, db, tx, email)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byEmail[user.NormalizeEmail(email)]
	if !ok {
		return nil, domainErrors.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserStore) UpdateStatus(ctx context.Context, db txmethod.DB, tx txmethod.Tx, u *user.User) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, db, tx, u)
	}
	m.mu.Lock()
	_, ok := m.users[u.ID]
	m.mu.Unlock()
	if !ok {
		return domainErrors.ErrUserNotFound
	}
	status, updatedAt := u.Status, u.UpdatedAt
	m.apply(tx, func() {
		stored := m.users[u.ID]
		stored.Status = status
		stored.UpdatedAt = updatedAt
	})
	return nil
}

func (m *MockUserStore) RecordEvent(ctx context.Context, db txmethod.DB, tx txmethod.Tx, e *user.Event) error {
	if m.RecordEventFunc != nil {
		return m.RecordEventFunc(ctx, db, tx, e)
	}
	m.apply(tx, func() {
		m.events = append(m.events, e)
	})
	return nil
}

// CountEventsSince counts committed events only.
func (m *MockUserStore) CountEventsSince(ctx context.Context, db txmethod.DB, tx txmethod.Tx, userID uuid.UUID, eventType user.EventType, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.UserID == userID && e.EventType == eventType && !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *MockUserStore) apply(tx txmethod.Tx, write func()) {
	locked := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		write()
	}
	if ftx, ok := tx.(*FakeTx); ok && ftx != nil {
		ftx.OnCommit(locked)
		return
	}
	locked()
}

// --- Test accessors ---

// AddUser stores a copy of u directly, bypassing transactions.
func (m *MockUserStore) AddUser(u *user.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *u
	m.users[u.ID] = &stored
	m.byEmail[u.Email] = &stored
}

// User returns a copy of the stored user, or nil.
func (m *MockUserStore) User(id uuid.UUID) *user.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

// AddEvent stores e directly, bypassing transactions.
func (m *MockUserStore) AddEvent(e *user.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

func (m *MockUserStore) UserCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

func (m *MockUserStore) Events() []*user.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*user.Event, len(m.events))
	copy(out, m.events)
	return out
}

// --- Idempotency Store Mock ---

// MockIdempotencyStore is an in-memory idempotency.Store with the same
// commit-deferred writes as MockUserStore.
type MockIdempotencyStore struct {
	mu      sync.Mutex
	records map[string]*idempotency.Record

	GetFunc  func(ctx context.Context, db txmethod.DB, tx txmethod.Tx, key string) (*idempotency.Record, error)
	SaveFunc func(ctx context.Context, db txmethod.DB, tx txmethod.Tx, r *idempotency.Record) error
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{records: make(map[string]*idempotency.Record)}
}

func (m *MockIdempotencyStore) Get(ctx context.Context, db txmethod.DB, tx txmethod.Tx, key string) (*idempotency.Record, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, db, tx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[key]
	if !ok || !r.ExpiresAt.After(time.Now()) {
		return nil, domainErrors.ErrIdempotencyKeyNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MockIdempotencyStore) Save(ctx context.Context, db txmethod.DB, tx txmethod.Tx, r *idempotency.Record) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, db, tx, r)
	}
	m.mu.Lock()
	existing, ok := m.records[r.Key]
	m.mu.Unlock()
	if ok && existing.ExpiresAt.After(time.Now()) {
		return domainErrors.ErrIdempotencyKeyReused
	}
	stored := *r
	write := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.records[r.Key] = &stored
	}
	if ftx, ok := tx.(*FakeTx); ok && ftx != nil {
		ftx.OnCommit(write)
		return nil
	}
	write()
	return nil
}

func (m *MockIdempotencyStore) DeleteExpired(ctx context.Context, db txmethod.DB, tx txmethod.Tx, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, r := range m.records {
		if r.ExpiresAt.Before(cutoff) {
			delete(m.records, k)
			n++
		}
	}
	return n, nil
}

// Put stores r directly, bypassing transactions.
func (m *MockIdempotencyStore) Put(r *idempotency.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.Key] = r
}

func (m *MockIdempotencyStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
