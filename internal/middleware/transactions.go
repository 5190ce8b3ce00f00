package middleware

import (
	"net/http"

	"github.com/cassiomorais/txmethod/internal/infrastructure/observability"
)

// ObserveTransactions attaches o to every request context, so wrapped methods
// invoked while serving the request report their lifecycle events to it.
func ObserveTransactions(o *observability.TxObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(o.Attach(r.Context())))
		})
	}
}
