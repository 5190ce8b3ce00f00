package controller

import (
	"fmt"
	"net/http"

	domainErrors "github.com/cassiomorais/txmethod/internal/domain/errors"
	customMW "github.com/cassiomorais/txmethod/internal/middleware"
	"github.com/cassiomorais/txmethod/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type UserController struct {
	userService *service.UserService
	tokens      *customMW.Tokens
}

func NewUserController(userService *service.UserService, tokens *customMW.Tokens) *UserController {
	return &UserController{userService: userService, tokens: tokens}
}

// Register creates a user. A request carrying an Idempotency-Key that was
// already used for the same registration gets the original user back with
// X-Idempotency-Replayed set.
func (h *UserController) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterUserRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u, replayed, err := h.userService.RegisterOnce(r.Context(), customMW.IdempotencyKey(r.Context()), service.RegisterRequest{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if replayed {
		w.Header().Set("X-Idempotency-Replayed", "true")
	}
	w.Header().Set("Location", "/api/v1/users/"+u.ID.String())
	writeJSON(w, http.StatusCreated, FromUser(u))
}

// Get returns a user. Callers may only read their own record.
func (h *UserController) Get(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, r, fmt.Errorf("user id %q: %w", raw, domainErrors.ErrInvalidInput))
		return
	}

	caller, ok := customMW.UserID(r.Context())
	if !ok {
		writeError(w, r, domainErrors.ErrUnauthorized)
		return
	}
	if caller != id {
		writeError(w, r, domainErrors.ErrForbidden)
		return
	}

	h.writeUser(w, r, id)
}

// Me returns the authenticated user.
func (h *UserController) Me(w http.ResponseWriter, r *http.Request) {
	caller, ok := customMW.UserID(r.Context())
	if !ok {
		writeError(w, r, domainErrors.ErrUnauthorized)
		return
	}
	h.writeUser(w, r, caller)
}

func (h *UserController) writeUser(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	u, err := h.userService.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FromUser(u))
}

// CreateSession checks credentials and issues a bearer token.
func (h *UserController) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u, err := h.userService.Authenticate(r.Context(), service.AuthenticateRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	token, expires, err := h.tokens.Issue(u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expires,
		User:      FromUser(u),
	})
}
