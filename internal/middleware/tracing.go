package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// Tracing starts a span per request. The span is first named after the raw
// path and renamed to chi's matched route pattern once routing has run, so
// "GET /api/v1/users/{id}" is one operation regardless of the ID.
func Tracing() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			renamed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r)
				if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
					trace.SpanFromContext(r.Context()).SetName(r.Method + " " + rctx.RoutePattern())
				}
			})
			otelhttp.NewHandler(renamed, r.Method+" "+r.URL.Path).ServeHTTP(w, r)
		})
	}
}
