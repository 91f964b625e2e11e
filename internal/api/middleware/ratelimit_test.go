package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countAllowed(rl RateLimiter, key string, n int) int {
	allowed := 0

	for range n {
		if rl.Allow(key) {
			allowed++
		}
	}

	return allowed
}

func TestRateLimiter_GlobalLimitEnforced(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := NewInMemoryRateLimiter(&Config{GlobalRPS: 10, GlobalBurst: 10, ClientRPS: 50})
	defer rl.Close()

	assert.Equal(t, 5, countAllowed(rl, "10.0.0.1", 5))
	assert.Equal(t, 5, countAllowed(rl, "10.0.0.2", 6), "global bucket is shared across clients")
}

func TestRateLimiter_ClientLimitEnforced(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := NewInMemoryRateLimiter(&Config{GlobalRPS: 100, ClientRPS: 5, ClientBurst: 5})
	defer rl.Close()

	assert.Equal(t, 5, countAllowed(rl, "10.0.0.1", 6))
	assert.Equal(t, 5, countAllowed(rl, "10.0.0.2", 6), "clients have independent buckets")
}

func TestRateLimiter_DefaultBurstIsTwiceRate(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	assert.Equal(t, 200, computeBurstCapacity(100, 0))
	assert.Equal(t, 500, computeBurstCapacity(100, 500))

	rl := NewInMemoryRateLimiter(&Config{GlobalRPS: 100, ClientRPS: 3})
	defer rl.Close()

	assert.Equal(t, 6, countAllowed(rl, "10.0.0.1", 10))
}

func TestRateLimiter_MaxClientsFallsBackToGlobal(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := NewInMemoryRateLimiter(&Config{GlobalRPS: 1000, ClientRPS: 1, ClientBurst: 1, MaxClients: 2})
	defer rl.Close()

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
	assert.Equal(t, 2, rl.clientCount())

	assert.Equal(t, 3, countAllowed(rl, "c", 3), "clients beyond the cap only use the global bucket")
	assert.Equal(t, 2, rl.clientCount())
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := NewInMemoryRateLimiter(&Config{GlobalRPS: 1000, GlobalBurst: 1000, ClientRPS: 10, ClientBurst: 10})
	defer rl.Close()

	var (
		wg      sync.WaitGroup
		allowed atomic.Int64
	)

	for range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if rl.Allow("shared") {
				allowed.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int64(10), allowed.Load())
}

func TestRateLimiter_CleanupEvictsIdleClients(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := NewInMemoryRateLimiter(&Config{
		GlobalRPS:       100,
		ClientRPS:       10,
		CleanupInterval: time.Hour,
		IdleTimeout:     50 * time.Millisecond,
	})
	defer rl.Close()

	rl.Allow("stale")
	time.Sleep(100 * time.Millisecond)
	rl.Allow("active")

	rl.cleanup()

	rl.mu.RLock()
	_, staleExists := rl.clients["stale"]
	_, activeExists := rl.clients["active"]
	rl.mu.RUnlock()

	assert.False(t, staleExists)
	assert.True(t, activeExists)
}

func TestRateLimiter_CloseIsIdempotent(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := NewInMemoryRateLimiter(&Config{GlobalRPS: 1, ClientRPS: 1})

	assert.NotPanics(t, func() {
		rl.Close()
		rl.Close()
	})
}

func TestClientKey(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:53211"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	assert.Equal(t, "192.0.2.7", ClientKey(req, false))
	assert.Equal(t, "203.0.113.9", ClientKey(req, true))

	req.RemoteAddr = "unix-socket"
	req.Header.Del("X-Forwarded-For")
	assert.Equal(t, "unix-socket", ClientKey(req, true))
}

func TestRateLimitMiddleware(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := NewInMemoryRateLimiter(&Config{GlobalRPS: 100, ClientRPS: 1, ClientBurst: 1})
	defer rl.Close()

	var calls int

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++

		w.WriteHeader(http.StatusOK)
	})

	handler := Apply(next,
		WithCorrelationID(),
		WithRateLimit(rl, slog.New(slog.DiscardHandler), false, "/ping"),
	)

	serve := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "192.0.2.7:1234"

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		return rec
	}

	assert.Equal(t, http.StatusOK, serve("/api/v1/kpis").Code)

	rec := serve("/api/v1/search-profiles")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, contentTypeProblemJSON, rec.Header().Get("Content-Type"))
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	var body problem

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, problemTypeBaseURL+"429", body.Type)
	assert.Equal(t, "Too Many Requests", body.Title)
	assert.Equal(t, http.StatusTooManyRequests, body.Status)
	assert.Equal(t, "/api/v1/search-profiles", body.Instance)
	assert.Equal(t, rec.Header().Get(CorrelationIDHeader), body.CorrelationID)

	for range 5 {
		assert.Equal(t, http.StatusOK, serve("/ping").Code, "exempt paths bypass the limiter")
	}

	assert.Equal(t, 6, calls)
}

func TestWithRateLimit_NilLimiter(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	handler := WithRateLimit(nil, slog.New(slog.DiscardHandler), false)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusAccepted) }),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestLoadConfig(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	t.Setenv("ROSTER_GLOBAL_RPS", "")
	t.Setenv("ROSTER_CLIENT_RPS", "7")
	t.Setenv("ROSTER_TRUST_FORWARDED_FOR", "true")
	t.Setenv("ROSTER_RATE_LIMIT_IDLE_TIMEOUT", "2m")

	cfg := LoadConfig()

	assert.Equal(t, defaultGlobalRPS, cfg.GlobalRPS)
	assert.Equal(t, 7, cfg.ClientRPS)
	assert.True(t, cfg.TrustForwardedFor)
	assert.Equal(t, 2*time.Minute, cfg.IdleTimeout)
	assert.Equal(t, defaultMaxClients, cfg.MaxClients)
}
