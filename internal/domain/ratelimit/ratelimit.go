// Package ratelimit defines per-client request rate limits.
package ratelimit

import (
	"context"
	"net/netip"
	"time"
)

// Config defines a limit of Rate requests per Period, with up to Burst
// requests admitted back to back.
type Config struct {
	Rate   int
	Burst  int
	Period time.Duration
}

// Emission returns the interval between two admitted requests at the
// sustained rate.
func (c Config) Emission() time.Duration {
	rate := c.Rate
	if rate <= 0 {
		rate = 1
	}
	return c.Period / time.Duration(rate)
}

// BurstSize returns Burst, or Rate when Burst is unset.
func (c Config) BurstSize() int {
	if c.Burst > 0 {
		return c.Burst
	}
	if c.Rate > 0 {
		return c.Rate
	}
	return 1
}

// Result is the outcome of one Allow call.
type Result struct {
	Allowed bool

	// Remaining is how many more requests would be admitted right now.
	Remaining int

	// RetryAfter is how long until the next request is admitted. Zero when
	// Allowed is true.
	RetryAfter time.Duration
}

// Limiter admits or rejects requests identified by key.
//
// Implementations use GCRA (Generic Cell Rate Algorithm), which spreads
// admissions evenly instead of resetting at window boundaries.
type Limiter interface {
	Allow(ctx context.Context, key string, cfg Config) (Result, error)
}

// ClientKey returns the limiter key for a peer address on a route. IPv6
// peers are grouped by their /64, since one host usually owns the whole
// prefix.
func ClientKey(route string, addr netip.Addr) string {
	addr = addr.Unmap()
	if addr.Is6() {
		if p, err := addr.Prefix(64); err == nil {
			return route + "|" + p.String()
		}
	}
	return route + "|" + addr.String()
}
