// internal/api/server_test.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coaching-workers/internal/common/config"
	"coaching-workers/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

var fixedNow = time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC)

func newTestServer(t *testing.T, cfg config.HTTPConfig, checks map[string]Pinger) http.Handler {
	s := NewServer(cfg, checks, logger.NewTestLogger(t))
	s.now = func() time.Time { return fixedNow }
	return s.Routes()
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

// ==========================
// Health & Readiness Tests
// ==========================

func TestServer_Health(t *testing.T) {
	h := newTestServer(t, config.HTTPConfig{}, nil)

	rec, body := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestServer_Ready(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]Pinger
		wantStatus int
		wantState  string
	}{
		{
			name: "all dependencies up",
			checks: map[string]Pinger{
				"postgres": PingFunc(func(context.Context) error { return nil }),
				"redis":    PingFunc(func(context.Context) error { return nil }),
			},
			wantStatus: http.StatusOK,
			wantState:  "ready",
		},
		{
			name: "zeebe unreachable",
			checks: map[string]Pinger{
				"postgres": PingFunc(func(context.Context) error { return nil }),
				"zeebe":    PingFunc(func(context.Context) error { return errors.New("connection refused") }),
			},
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "not ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, config.HTTPConfig{}, tt.checks)

			rec, body := do(t, h, http.MethodGet, "/ready", "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantState, body["status"])
			assert.Len(t, body["checks"], len(tt.checks))
		})
	}
}

func TestServer_Metrics(t *testing.T) {
	h := newTestServer(t, config.HTTPConfig{}, nil)

	_, _ = do(t, h, http.MethodGet, "/health", "")
	rec, _ := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_RateLimit(t *testing.T) {
	h := newTestServer(t, config.HTTPConfig{RateLimitRPS: 0.001, RateLimitBurst: 2}, nil)

	for i := 0; i < 2; i++ {
		rec, _ := do(t, h, http.MethodGet, "/health", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, body := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate limit exceeded", body["error"])
}

// ==========================
// Calculation Endpoint Tests
// ==========================

func TestServer_ImprovementScore(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantScore  float64
		wantBand   string
		wantCount  int
	}{
		{
			name: "pillar diagnosis",
			body: `{"followupType":"pillar","diagnosis":{
				"strengths":["a","b","c"],"challenges":["x"],
				"situationAnalysis":{"progressLevel":"Good momentum"},
				"pillarRecommendations":[{"pillar":"clarity"},{"pillar":"focus"}]}}`,
			wantStatus: http.StatusOK,
			wantScore:  49,
			wantBand:   "emerging",
			wantCount:  4,
		},
		{
			name: "workbook diagnosis",
			body: `{"followupType":"workbook","diagnosis":{
				"strengths":["a","b","c","d","e","f"],
				"followupRecommendation":{"implementationProgress":"Excellent follow-through"}}}`,
			wantStatus: http.StatusOK,
			wantScore:  70,
			wantBand:   "steady",
			wantCount:  2,
		},
		{
			name: "null optional fields",
			body: `{"followupType":"pillar","diagnosis":{
				"strengths":["a","b","c"],"challenges":null,"situationAnalysis":null,
				"pillarRecommendations":[{"pillar":"clarity"},{"pillar":"focus"}],"followupRecommendation":null}}`,
			wantStatus: http.StatusOK,
			wantScore:  40,
			wantBand:   "emerging",
			wantCount:  2,
		},
		{
			name:       "null diagnosis",
			body:       `{"followupType":"pillar","diagnosis":null}`,
			wantStatus: http.StatusOK,
			wantScore:  0,
			wantBand:   "stalled",
		},
		{
			name:       "missing diagnosis",
			body:       `{"followupType":"workbook"}`,
			wantStatus: http.StatusOK,
			wantScore:  0,
			wantBand:   "stalled",
		},
		{
			name:       "empty diagnosis",
			body:       `{"followupType":"workbook","diagnosis":{}}`,
			wantStatus: http.StatusOK,
			wantScore:  50,
			wantBand:   "steady",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, config.HTTPConfig{}, nil)

			rec, body := do(t, h, http.MethodPost, "/api/v1/improvement-score", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantScore, body["improvementScore"])
			assert.Equal(t, tt.wantBand, body["improvementBand"])
			assert.Len(t, body["scoreFactors"], tt.wantCount)
		})
	}
}

func TestServer_ImprovementScore_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"followupType":`},
		{name: "unknown type", body: `{"followupType":"journal","diagnosis":null}`},
		{name: "diagnosis wrong shape", body: `{"followupType":"pillar","diagnosis":{"strengths":"many"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, config.HTTPConfig{}, nil)

			rec, body := do(t, h, http.MethodPost, "/api/v1/improvement-score", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestServer_FollowupInterval(t *testing.T) {
	tests := []struct {
		level    string
		wantDays float64
		wantDate string
	}{
		{level: "1", wantDays: 7, wantDate: "2026-03-17T09:30:00Z"},
		{level: "3", wantDays: 30, wantDate: "2026-04-09T09:30:00Z"},
		{level: "5", wantDays: 60, wantDate: "2026-05-09T09:30:00Z"},
		{level: "9", wantDays: 30, wantDate: "2026-04-09T09:30:00Z"},
	}

	for _, tt := range tests {
		t.Run("level "+tt.level, func(t *testing.T) {
			h := newTestServer(t, config.HTTPConfig{}, nil)

			rec, body := do(t, h, http.MethodGet, "/api/v1/followup-interval/"+tt.level, "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantDays, body["recommendedIntervalDays"])
			assert.Equal(t, tt.wantDate, body["nextFollowupDate"])
		})
	}

	t.Run("non integer level", func(t *testing.T) {
		h := newTestServer(t, config.HTTPConfig{}, nil)

		rec, _ := do(t, h, http.MethodGet, "/api/v1/followup-interval/high", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestServer_TimeElapsed(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		wantStatus  int
		wantElapsed string
	}{
		{name: "missing", query: "", wantStatus: http.StatusOK, wantElapsed: "Unknown"},
		{name: "same day", query: "?createdAt=2026-03-10T01:00:00Z", wantStatus: http.StatusOK, wantElapsed: "Less than a day"},
		{name: "ten days", query: "?createdAt=2026-02-28T09:30:00Z", wantStatus: http.StatusOK, wantElapsed: "1 week"},
		{name: "months", query: "?createdAt=2025-12-01T09:30:00Z", wantStatus: http.StatusOK, wantElapsed: "3 months"},
		{name: "garbage", query: "?createdAt=yesterday", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, config.HTTPConfig{}, nil)

			rec, body := do(t, h, http.MethodGet, "/api/v1/time-elapsed"+tt.query, "")
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantElapsed, body["elapsed"])
			}
		})
	}
}
