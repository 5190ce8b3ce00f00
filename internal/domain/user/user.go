package user

import (
	"strings"
	"time"

	"github.com/cassiomorais/txmethod/internal/domain/errors"
	"github.com/google/uuid"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash []byte
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser builds an active user. The password must already be hashed.
func NewUser(email, name string, passwordHash []byte) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, errors.NewValidationError("email", "cannot be empty")
	}
	if strings.TrimSpace(name) == "" {
		return nil, errors.NewValidationError("name", "cannot be empty")
	}
	if len(passwordHash) == 0 {
		return nil, errors.NewValidationError("password", "cannot be empty")
	}

	now := time.Now().UTC()
	return &User{
		ID:           uuid.New(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: passwordHash,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

func (u *User) Disable() {
	u.Status = StatusDisabled
	u.UpdatedAt = time.Now().UTC()
}

// NormalizeEmail lowercases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EventType represents the kind of audit event recorded for a user
type EventType string

const (
	EventRegistered  EventType = "registered"
	EventLoggedIn    EventType = "logged_in"
	EventLoginFailed EventType = "login_failed"
	EventLocked      EventType = "locked"
)

// Event is an audit record written in the same transaction as the change it describes.
type Event struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	EventType EventType
	Detail    string
	CreatedAt time.Time
}

func NewEvent(userID uuid.UUID, eventType EventType, detail string) *Event {
	return &Event{
		ID:        uuid.New(),
		UserID:    userID,
		EventType: eventType,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
}
