package http

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/skhoolar/skhoolar/internal/redact"
)

// RateLimiter enforces per-client request rate limits using token bucket.
// The rate can be changed at runtime (config reload).
type RateLimiter struct {
	limiters sync.Map // key → *limiterEntry

	mu    sync.RWMutex
	r     rate.Limit // refill rate (requests per second)
	burst int        // max burst size

	stop     chan struct{}
	stopOnce sync.Once
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// NewRateLimiter creates a rate limiter.
// rpm is requests per minute, burst is the max burst allowed.
// If rpm <= 0, the rate limiter is effectively disabled (always allows).
func NewRateLimiter(rpm, burst int) *RateLimiter {
	rl := &RateLimiter{stop: make(chan struct{})}
	rl.SetRate(rpm, burst)

	// Periodic cleanup of stale entries (every 5 minutes)
	go rl.cleanupLoop(5*time.Minute, 10*time.Minute)

	return rl
}

// SetRate changes the limit for all clients.
func (rl *RateLimiter) SetRate(rpm, burst int) {
	if burst <= 0 {
		burst = 5
	}
	r := rate.Limit(0)
	if rpm > 0 {
		r = rate.Limit(float64(rpm) / 60.0)
	}

	rl.mu.Lock()
	rl.r, rl.burst = r, burst
	rl.mu.Unlock()

	rl.limiters.Range(func(_, value any) bool {
		entry := value.(*limiterEntry)
		entry.limiter.SetLimit(r)
		entry.limiter.SetBurst(burst)
		return true
	})
}

func (rl *RateLimiter) current() (rate.Limit, int) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.r, rl.burst
}

// Allow checks if a request from the given key is allowed.
// Returns true if allowed, false if rate limited.
func (rl *RateLimiter) Allow(key string) bool {
	r, burst := rl.current()
	if r == 0 {
		return true // disabled
	}
	entry := rl.getOrCreate(key, r, burst)
	if entry.limiter.Limit() != r {
		entry.limiter.SetLimit(r)
	}
	if entry.limiter.Burst() != burst {
		entry.limiter.SetBurst(burst)
	}
	entry.lastSeen.Store(time.Now().UnixNano())
	if !entry.limiter.Allow() {
		slog.Warn("security.rate_limited", "key", maskKey(key))
		return false
	}
	return true
}

// Enabled returns true if the rate limiter is active.
func (rl *RateLimiter) Enabled() bool {
	r, _ := rl.current()
	return r > 0
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) getOrCreate(key string, r rate.Limit, burst int) *limiterEntry {
	if v, ok := rl.limiters.Load(key); ok {
		return v.(*limiterEntry)
	}
	entry := &limiterEntry{limiter: rate.NewLimiter(r, burst)}
	entry.lastSeen.Store(time.Now().UnixNano())
	actual, _ := rl.limiters.LoadOrStore(key, entry)
	return actual.(*limiterEntry)
}

func (rl *RateLimiter) cleanupLoop(every, idle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.cleanup(time.Now().Add(-idle))
		}
	}
}

func (rl *RateLimiter) cleanup(cutoff time.Time) {
	rl.limiters.Range(func(key, value any) bool {
		entry := value.(*limiterEntry)
		if entry.lastSeen.Load() < cutoff.UnixNano() {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// maskKey keeps gateway tokens out of the log.
func maskKey(key string) string {
	if token, ok := strings.CutPrefix(key, "token:"); ok {
		return "token:" + redact.Secret(token)
	}
	return key
}
