package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name: "with wrapped error",
			err: &DomainError{
				Code:    "registration_failed",
				Message: "could not register user",
				Err:     errors.New("connection refused"),
			},
			expected: "could not register user: connection refused",
		},
		{
			name: "without wrapped error",
			err: &DomainError{
				Code:    "user_disabled",
				Message: "user cannot sign in",
			},
			expected: "user cannot sign in",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	err := NewDomainError("email_taken", "cannot register", ErrEmailTaken)

	assert.Equal(t, ErrEmailTaken, err.Unwrap())
	assert.True(t, errors.Is(fmt.Errorf("register: %w", err), ErrEmailTaken))
}

func TestNewDomainError_NilWrappedError(t *testing.T) {
	err := NewDomainError("test_code", "test message", nil)

	assert.NotNil(t, err)
	assert.Equal(t, "test_code", err.Code)
	assert.Equal(t, "test message", err.Message)
	assert.Nil(t, err.Err)
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("email", "must be a valid email address")

	assert.Equal(t, "validation failed for field email: must be a valid email address", err.Error())
	assert.ErrorIs(t, err, ErrValidationFailed)

	var ve *ValidationError
	assert.True(t, errors.As(fmt.Errorf("register: %w", err), &ve))
	assert.Equal(t, "email", ve.Field)
}
