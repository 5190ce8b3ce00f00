package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cassiomorais/txmethod/internal/infrastructure/observability"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func newMetricsRouter(m *observability.Metrics, status int) *chi.Mux {
	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Get("/api/v1/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
	r.Post("/api/v1/users", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
	return r
}

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	m := observability.NewMetrics("test", prometheus.NewRegistry())
	r := newMetricsRouter(m, http.StatusOK)

	for _, id := range []string{"a1", "b2", "c3"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/users/"+id, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, 3.0, promtest.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/users/{id}", "200")))
	assert.Equal(t, 1, promtest.CollectAndCount(m.HTTPRequestDuration))
}

func TestMetrics_RecordsStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		label  string
	}{
		{"created", http.StatusCreated, "201"},
		{"conflict", http.StatusConflict, "409"},
		{"bad request", http.StatusBadRequest, "400"},
		{"internal error", http.StatusInternalServerError, "500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := observability.NewMetrics("test", prometheus.NewRegistry())
			r := newMetricsRouter(m, tt.status)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/users", nil))

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, 1.0, promtest.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/users", tt.label)))
		})
	}
}

func TestMetrics_FallsBackToPathOutsideChi(t *testing.T) {
	m := observability.NewMetrics("test", prometheus.NewRegistry())
	handler := Metrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/unrouted", nil))

	assert.Equal(t, 1.0, promtest.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/unrouted", "200")))
}

func TestStatusWriter_DefaultsToOK(t *testing.T) {
	w := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

	sw.Write([]byte("ok"))
	assert.Equal(t, http.StatusOK, sw.status)

	sw2 := &statusWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	sw2.WriteHeader(http.StatusCreated)
	assert.Equal(t, http.StatusCreated, sw2.status)
}
