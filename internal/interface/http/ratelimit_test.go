package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-quest/pkg/logger"
)

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time          { return c.now }
func (c *stepClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func (c *stepClock) limiter(cfg RateLimitConfig) *rateLimiter {
	rl := newRateLimiter(cfg)
	rl.now = c.Now
	return rl
}

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	clock := &stepClock{now: testNow}
	rl := clock.limiter(RateLimitConfig{RequestsPerMinute: 60, Burst: 2})

	ok, _ := rl.allow("a")
	assert.True(t, ok)
	ok, _ = rl.allow("a")
	assert.True(t, ok)

	ok, wait := rl.allow("a")
	assert.False(t, ok)
	assert.InDelta(t, time.Second, wait, float64(10*time.Millisecond))

	ok, _ = rl.allow("b")
	assert.True(t, ok, "clients have separate buckets")

	clock.Advance(time.Second)
	ok, _ = rl.allow("a")
	assert.True(t, ok)
}

func TestRateLimiter_BlocksRepeatOffenders(t *testing.T) {
	clock := &stepClock{now: testNow}
	rl := clock.limiter(RateLimitConfig{
		RequestsPerMinute: 60,
		Burst:             1,
		BanThreshold:      2,
		BanDuration:       time.Minute,
	})

	ok, _ := rl.allow("a")
	require.True(t, ok)
	ok, _ = rl.allow("a")
	require.False(t, ok)

	ok, wait := rl.allow("a")
	require.False(t, ok)
	assert.Equal(t, time.Minute, wait)

	clock.Advance(30 * time.Second)
	ok, wait = rl.allow("a")
	assert.False(t, ok, "still blocked although the bucket refilled")
	assert.Equal(t, 30*time.Second, wait)

	clock.Advance(31 * time.Second)
	ok, _ = rl.allow("a")
	assert.True(t, ok)
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	clock := &stepClock{now: testNow}
	rl := clock.limiter(RateLimitConfig{RequestsPerMinute: 60, Burst: 1, IdleTTL: time.Minute})

	rl.allow("a")
	rl.allow("b")
	assert.Equal(t, 2, rl.size())

	clock.Advance(2 * time.Minute)
	rl.allow("c")
	assert.Equal(t, 1, rl.size())
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = RateLimitConfig{RequestsPerMinute: 1, Burst: 1}
	srv := NewServer(cfg, Dependencies{Logger: logger.Discard()})

	send := func(path, ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNotFound, send("/api/v1/nope", "192.0.2.1").Code)

	rec := send("/api/v1/nope", "192.0.2.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, []string{"60", "61"}, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate_limited")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	assert.Equal(t, http.StatusNotFound, send("/api/v1/nope", "192.0.2.2").Code)
	assert.Equal(t, http.StatusOK, send("/health", "192.0.2.1").Code)
}
