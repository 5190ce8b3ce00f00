package testutil

import (
	"testing"

	"github.com/cassiomorais/txmethod/internal/domain/user"
	"golang.org/x/crypto/bcrypt"
)

// NewTestUser builds an active user whose password hash matches password.
// It hashes at bcrypt.MinCost to keep tests fast.
func NewTestUser(t testing.TB, email, name, password string) *user.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u, err := user.NewUser(email, name, hash)
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	return u
}
