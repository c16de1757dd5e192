package http

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alem-hub/alem-quest/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITING
// Per-client token buckets keyed by client IP. Clients that keep hitting the
// limit are blocked for BanDuration.
// ══════════════════════════════════════════════════════════════════════════════

// RateLimitConfig configures per-client rate limiting.
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained rate. Zero disables limiting.
	RequestsPerMinute int

	// Burst is the bucket size.
	Burst int

	// BanThreshold is the number of rejected requests within BanWindow
	// that blocks a client. Zero disables blocking.
	BanThreshold int
	BanWindow    time.Duration
	BanDuration  time.Duration

	// IdleTTL is how long an unused bucket is kept.
	IdleTTL time.Duration
}

// Enabled reports whether limiting is on.
func (c RateLimitConfig) Enabled() bool {
	return c.RequestsPerMinute > 0
}

type clientBucket struct {
	limiter      *rate.Limiter
	lastSeen     time.Time
	violations   int
	lastViolated time.Time
	blockedUntil time.Time
}

// rateLimiter tracks one bucket per client.
type rateLimiter struct {
	config RateLimitConfig
	now    func() time.Time

	mu        sync.Mutex
	clients   map[string]*clientBucket
	lastSweep time.Time
}

func newRateLimiter(config RateLimitConfig) *rateLimiter {
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if config.BanWindow <= 0 {
		config.BanWindow = time.Minute
	}
	if config.BanDuration <= 0 {
		config.BanDuration = 5 * time.Minute
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}
	return &rateLimiter{
		config:  config,
		now:     time.Now,
		clients: make(map[string]*clientBucket),
	}
}

// allow consumes a token for key. When the request is rejected it returns
// how long the client should wait.
func (rl *rateLimiter) allow(key string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.sweep(now)

	b, ok := rl.clients[key]
	if !ok {
		perSecond := rate.Limit(float64(rl.config.RequestsPerMinute) / 60)
		b = &clientBucket{limiter: rate.NewLimiter(perSecond, rl.config.Burst)}
		rl.clients[key] = b
	}
	b.lastSeen = now

	if now.Before(b.blockedUntil) {
		return false, b.blockedUntil.Sub(now)
	}

	r := b.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	r.CancelAt(now)

	if rl.config.BanThreshold > 0 {
		if now.Sub(b.lastViolated) > rl.config.BanWindow {
			b.violations = 0
		}
		b.violations++
		b.lastViolated = now
		if b.violations >= rl.config.BanThreshold {
			b.violations = 0
			b.blockedUntil = now.Add(rl.config.BanDuration)
			return false, rl.config.BanDuration
		}
	}
	return false, delay
}

// sweep drops idle buckets, at most once per IdleTTL.
func (rl *rateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.config.IdleTTL {
		return
	}
	rl.lastSweep = now
	for key, b := range rl.clients {
		if now.Sub(b.lastSeen) > rl.config.IdleTTL && !now.Before(b.blockedUntil) {
			delete(rl.clients, key)
		}
	}
}

func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// rateLimitMiddleware rejects clients over their budget with 429. Health
// probes are never limited.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/ready" {
			next.ServeHTTP(w, r)
			return
		}

		ip := getClientIP(r)
		ok, retryAfter := s.limiter.allow(ip)
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		seconds := int(math.Ceil(retryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		logger.FromContext(r.Context()).Warn("rate limited", "ip", ip, "retry_after_s", seconds)

		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		writeJSONError(w, r, http.StatusTooManyRequests, "rate_limited", "Too many requests, retry later")
	})
}
