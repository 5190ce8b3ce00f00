package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cassiomorais/txmethod/internal/domain/idempotency"
)

const idempotencyKeyCtx contextKey = "idempotency_key"

// Idempotency validates an optional Idempotency-Key header and hands it to
// the handler through the request context. Replays are resolved by the
// service, inside the same transaction as the write they guard.
func Idempotency() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !idempotency.ValidKey(key) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "Idempotency-Key must be 1-255 visible ASCII characters",
					"code":  "invalid_idempotency_key",
				})
				return
			}

			ctx := context.WithValue(r.Context(), idempotencyKeyCtx, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdempotencyKey returns the validated key, or "" when the request has none.
func IdempotencyKey(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKeyCtx).(string)
	return key
}
