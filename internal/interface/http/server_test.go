package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waykegoat/MATCH/internal/application/query"
	"github.com/waykegoat/MATCH/internal/interface/http/handlers"
	"github.com/waykegoat/MATCH/pkg/logger"
)

type stubStats struct {
	dto   *query.StatsDTO
	err   error
	fresh bool
}

func (s *stubStats) Handle(_ context.Context, q query.GetStatsQuery) (*query.StatsDTO, error) {
	s.fresh = q.Fresh
	return s.dto, s.err
}

func newTestServer(t *testing.T, cfg Config, deps Dependencies) http.Handler {
	t.Helper()
	deps.Logger = logger.Discard()
	return NewServer(cfg, deps).Handler()
}

func do(t *testing.T, h http.Handler, method, path string, header map[string]string) (*httptest.ResponseRecorder, handlers.Envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env handlers.Envelope
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestHealth(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		hc := handlers.NewHealthChecker("test")
		hc.Require("postgres", func(context.Context) error { return nil })
		h := newTestServer(t, DefaultConfig(), Dependencies{Health: hc})

		rec, env := do(t, h, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, env.Success)
		assert.NotEmpty(t, rec.Header().Get(handlers.RequestIDHeader))
		assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	})

	t.Run("optional failure is degraded but ok", func(t *testing.T) {
		hc := handlers.NewHealthChecker("test")
		hc.Require("postgres", func(context.Context) error { return nil })
		hc.Optional("redis", func(context.Context) error { return errors.New("down") })
		h := newTestServer(t, DefaultConfig(), Dependencies{Health: hc})

		rec, _ := do(t, h, http.MethodGet, "/healthz", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"degraded":true`)

		rec, _ = do(t, h, http.MethodGet, "/ready", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("required failure is unavailable", func(t *testing.T) {
		hc := handlers.NewHealthChecker("test")
		hc.Require("telegram", handlers.RunningCheck(func() bool { return false }))
		h := newTestServer(t, DefaultConfig(), Dependencies{Health: hc})

		rec, _ := do(t, h, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		rec, env := do(t, h, http.MethodGet, "/ready", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "not_ready", env.Error.Code)
	})

	t.Run("live never checks", func(t *testing.T) {
		hc := handlers.NewHealthChecker("test")
		hc.Require("postgres", func(context.Context) error { return errors.New("down") })
		h := newTestServer(t, DefaultConfig(), Dependencies{Health: hc})

		rec, _ := do(t, h, http.MethodGet, "/live", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, DefaultConfig(), Dependencies{})
	rec, _ := do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	cfg := DefaultConfig()
	cfg.EnableMetrics = false
	h = newTestServer(t, cfg, Dependencies{})
	rec, _ = do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsAPI(t *testing.T) {
	stats := &stubStats{dto: &query.StatsDTO{Total: 7, Visible: 5, Hidden: 2, TotalMatches: 1}}
	cfg := DefaultConfig()
	cfg.APIKeys = []string{"secret"}
	h := newTestServer(t, cfg, Dependencies{Stats: stats})

	t.Run("missing key", func(t *testing.T) {
		rec, env := do(t, h, http.MethodGet, "/api/v1/stats", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "missing_api_key", env.Error.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		rec, env := do(t, h, http.MethodGet, "/api/v1/stats", map[string]string{handlers.APIKeyHeader: "nope"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "invalid_api_key", env.Error.Code)
	})

	t.Run("bearer token and fresh flag", func(t *testing.T) {
		rec, env := do(t, h, http.MethodGet, "/api/v1/stats?fresh=true", map[string]string{"Authorization": "Bearer secret"})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, env.Success)
		assert.True(t, stats.fresh)
		assert.Contains(t, rec.Body.String(), `"total":7`)
	})

	t.Run("query failure", func(t *testing.T) {
		failing := &stubStats{err: errors.New("db down")}
		h := newTestServer(t, cfg, Dependencies{Stats: failing})
		rec, env := do(t, h, http.MethodGet, "/api/v1/stats", map[string]string{handlers.APIKeyHeader: "secret"})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		require.NotNil(t, env.Error)
		assert.NotContains(t, rec.Body.String(), "db down")
	})
}

func TestAdminAPIDisabledWithoutKeys(t *testing.T) {
	h := newTestServer(t, DefaultConfig(), Dependencies{Stats: &stubStats{}})
	rec, _ := do(t, h, http.MethodGet, "/api/v1/stats", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBotStatsAPI(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKeys = []string{"k"}
	h := newTestServer(t, cfg, Dependencies{BotStats: func() any {
		return map[string]int{"updates_handled": 3}
	}})

	rec, _ := do(t, h, http.MethodGet, "/api/v1/bot", map[string]string{handlers.APIKeyHeader: "k"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"updates_handled":3`)
}

func TestAPIRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKeys = []string{"k"}
	cfg.RateLimitPerMinute = 1
	h := newTestServer(t, cfg, Dependencies{Stats: &stubStats{dto: &query.StatsDTO{}}})

	hdr := map[string]string{handlers.APIKeyHeader: "k", "X-Forwarded-For": "10.0.0.1"}
	rec, _ := do(t, h, http.MethodGet, "/api/v1/stats", hdr)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := do(t, h, http.MethodGet, "/api/v1/stats", hdr)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "rate_limit_exceeded", env.Error.Code)

	hdr["X-Forwarded-For"] = "10.0.0.2"
	rec, _ = do(t, h, http.MethodGet, "/api/v1/stats", hdr)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecoverAndRequestID(t *testing.T) {
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	h := handlers.Chain(panicking, handlers.RequestID, handlers.Recover(logger.Discard()))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(handlers.RequestIDHeader, "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "abc", rec.Header().Get(handlers.RequestIDHeader))
}
