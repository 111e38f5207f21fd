package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/blueshift-gg/solgov/api/handlers"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newLookupLimiter(t *testing.T, clock clockwork.Clock, r rate.Limit, burst int) *handlers.LookupLimiter {
	t.Helper()
	l, err := handlers.NewLookupLimiter(handlers.LookupLimiterConfig{
		Rate:    r,
		Burst:   burst,
		Clock:   clock,
		IdleTTL: time.Minute,
	})
	require.NoError(t, err)
	return l
}

func TestSolGov_API_LookupLimiterConfig(t *testing.T) {
	t.Parallel()

	_, err := handlers.NewLookupLimiter(handlers.LookupLimiterConfig{Burst: 1})
	require.ErrorContains(t, err, "lookup rate must be positive")

	_, err = handlers.NewLookupLimiter(handlers.LookupLimiterConfig{Rate: 1})
	require.ErrorContains(t, err, "lookup burst must be at least 1")

	l, err := handlers.NewLookupLimiter(handlers.LookupLimiterConfig{Rate: handlers.DefaultLookupRate, Burst: handlers.DefaultLookupBurst})
	require.NoError(t, err)
	require.Zero(t, l.Len())
}

func TestSolGov_API_LookupLimiter_Allow(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	l := newLookupLimiter(t, clock, rate.Limit(10), 2)

	ip := "192.168.1.1"
	ok, _ := l.Allow(ip)
	assert.True(t, ok)
	ok, _ = l.Allow(ip)
	assert.True(t, ok)

	ok, retry := l.Allow(ip)
	assert.False(t, ok)
	assert.Equal(t, 100*time.Millisecond, retry)

	// A denied request does not consume the pending token.
	ok, retry = l.Allow(ip)
	assert.False(t, ok)
	assert.Equal(t, 100*time.Millisecond, retry)

	ok, _ = l.Allow("192.168.1.2")
	assert.True(t, ok, "each client has its own bucket")

	clock.Advance(100 * time.Millisecond)
	ok, _ = l.Allow(ip)
	assert.True(t, ok, "refilled after one interval")
}

func TestSolGov_API_LookupLimiter_Sweep(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	l := newLookupLimiter(t, clock, rate.Limit(1), 1)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	l.Start(ctx)

	l.Allow("10.0.0.1")
	l.Allow("10.0.0.2")
	require.Equal(t, 2, l.Len())

	require.Eventually(t, func() bool {
		clock.Advance(time.Minute)
		return l.Len() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestSolGov_API_LookupLimitMiddleware(t *testing.T) {
	t.Parallel()

	l := newLookupLimiter(t, clockwork.NewFakeClock(), rate.Limit(1), 1)
	handler := handlers.LookupLimitMiddleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/eligibility/x", nil)
	req.RemoteAddr = "192.168.1.50:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	var body handlers.LookupLimitResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "rate_limit_exceeded", body.Error)
	assert.NotEmpty(t, body.Message)
	assert.Equal(t, 1, body.RetryAfter)
}

func TestSolGov_API_GetIPFromRequest(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:4000"
	assert.Equal(t, "10.0.0.1", handlers.GetIPFromRequest(req))

	req.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", handlers.GetIPFromRequest(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.3")
	assert.Equal(t, "203.0.113.7", handlers.GetIPFromRequest(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "unix"
	assert.Equal(t, "unix", handlers.GetIPFromRequest(req))
}
