package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordScore(t *testing.T) {
	before := testutil.ToFloat64(ImprovementBands.WithLabelValues("pillar", "steady"))
	RecordScore("pillar", 62, "steady")
	assert.Equal(t, before+1, testutil.ToFloat64(ImprovementBands.WithLabelValues("pillar", "steady")))

	beforeUnknown := testutil.ToFloat64(ImprovementBands.WithLabelValues("unknown", "stalled"))
	RecordScore("", 0, "stalled")
	assert.Equal(t, beforeUnknown+1, testutil.ToFloat64(ImprovementBands.WithLabelValues("unknown", "stalled")))
}

func TestHTTPMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMiddleware)
	r.Get("/api/v1/followup-interval/{level}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/followup-interval/{level}", "418")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/followup-interval/3", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
