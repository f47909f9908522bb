// Package memory provides in-process implementations of wiregate's
// outbound ports.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Sentinel-Gate/wiregate/internal/domain/ratelimit"
)

// DefaultSweepInterval is how often idle keys are dropped.
const DefaultSweepInterval = time.Minute

// RateLimiter implements ratelimit.Limiter with GCRA over an in-memory
// map of theoretical arrival times. Safe for concurrent use.
//
// Keys whose arrival time has passed are equivalent to unseen keys; they
// are dropped lazily from Allow at most once per sweep interval, so no
// background goroutine is needed.
type RateLimiter struct {
	mu        sync.Mutex
	tat       map[string]time.Time
	lastSweep time.Time
	sweep     time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RateLimiterOption {
	return func(r *RateLimiter) { r.now = now }
}

// WithSweepInterval sets how often idle keys are dropped.
func WithSweepInterval(d time.Duration) RateLimiterOption {
	return func(r *RateLimiter) { r.sweep = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RateLimiterOption {
	return func(r *RateLimiter) { r.logger = logger }
}

// NewRateLimiter creates an empty RateLimiter.
func NewRateLimiter(opts ...RateLimiterOption) *RateLimiter {
	r := &RateLimiter{
		tat:    make(map[string]time.Time),
		sweep:  DefaultSweepInterval,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.lastSweep = r.now()
	return r
}

// Allow admits one request for key under cfg.
func (r *RateLimiter) Allow(_ context.Context, key string, cfg ratelimit.Config) (ratelimit.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.maybeSweep(now)

	emission := cfg.Emission()
	limit := time.Duration(cfg.BurstSize()) * emission

	tat, ok := r.tat[key]
	if !ok || tat.Before(now) {
		tat = now
	}
	next := tat.Add(emission)
	if ahead := next.Sub(now); ahead > limit {
		return ratelimit.Result{RetryAfter: ahead - limit}, nil
	}
	r.tat[key] = next

	remaining := 0
	if emission > 0 {
		remaining = int((limit - next.Sub(now)) / emission)
	}
	return ratelimit.Result{Allowed: true, Remaining: remaining}, nil
}

func (r *RateLimiter) maybeSweep(now time.Time) {
	if now.Sub(r.lastSweep) < r.sweep {
		return
	}
	r.lastSweep = now
	dropped := 0
	for key, tat := range r.tat {
		if !tat.After(now) {
			delete(r.tat, key)
			dropped++
		}
	}
	if dropped > 0 {
		r.logger.Debug("rate limiter sweep", "dropped", dropped, "remaining", len(r.tat))
	}
}

// Size returns the number of tracked keys.
func (r *RateLimiter) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tat)
}

var _ ratelimit.Limiter = (*RateLimiter)(nil)
