package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domainErrors "github.com/cassiomorais/txmethod/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", domainErrors.ErrUserNotFound, http.StatusNotFound, "not_found"},
		{"email taken", fmt.Errorf("create: %w", domainErrors.ErrEmailTaken), http.StatusConflict, "email_taken"},
		{"bad credentials", domainErrors.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{"disabled", domainErrors.ErrUserDisabled, http.StatusForbidden, "user_disabled"},
		{"validation", domainErrors.NewValidationError("email", "required"), http.StatusBadRequest, "validation_error"},
		{"disabled domain error", domainErrors.NewDomainError("user_disabled", "account is disabled", domainErrors.ErrUserDisabled), http.StatusForbidden, "user_disabled"},
		{"invalid input", fmt.Errorf("user id %q: %w", "x", domainErrors.ErrInvalidInput), http.StatusBadRequest, "invalid_input"},
		{"unauthorized", domainErrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"forbidden", domainErrors.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"key reused", domainErrors.NewDomainError("idempotency_key_reused", "key reused", domainErrors.ErrIdempotencyKeyReused), http.StatusUnprocessableEntity, "idempotency_key_reused"},
		{"domain", domainErrors.NewDomainError("conflict_state", "cannot do that", nil), http.StatusUnprocessableEntity, "conflict_state"},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, httptest.NewRequest("GET", "/", nil), tt.err)

			assert.Equal(t, tt.status, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestWriteError_HidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, httptest.NewRequest("GET", "/", nil), errors.New("pq: password authentication failed"))

	assert.NotContains(t, w.Body.String(), "password authentication")
}

func TestDecodeAndValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"ada@example.com","password":"x"}`))
		var req CreateSessionRequest
		require.NoError(t, decodeAndValidate(httptest.NewRecorder(), r, &req))
		assert.Equal(t, "ada@example.com", req.Email)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":`))
		var req CreateSessionRequest
		err := decodeAndValidate(httptest.NewRecorder(), r, &req)
		assert.ErrorIs(t, err, domainErrors.ErrValidationFailed)
	})

	t.Run("unknown field", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"ada@example.com","password":"x","admin":true}`))
		var req CreateSessionRequest
		err := decodeAndValidate(httptest.NewRecorder(), r, &req)
		assert.ErrorIs(t, err, domainErrors.ErrValidationFailed)
		assert.Contains(t, err.Error(), "admin")
	})

	t.Run("missing field", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"ada@example.com"}`))
		var req CreateSessionRequest
		err := decodeAndValidate(httptest.NewRecorder(), r, &req)
		var ve *domainErrors.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "password", ve.Field)
	})
}
