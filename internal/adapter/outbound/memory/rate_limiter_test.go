package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Sentinel-Gate/wiregate/internal/domain/ratelimit"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestRateLimiter_Burst(t *testing.T) {
	t.Parallel()

	clock := newClock()
	r := NewRateLimiter(WithClock(clock.Now))
	cfg := ratelimit.Config{Rate: 1, Burst: 3, Period: time.Second}

	for i, wantRemaining := range []int{2, 1, 0} {
		res, err := r.Allow(context.Background(), "k", cfg)
		if err != nil {
			t.Fatalf("Allow() error: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d denied within burst", i)
		}
		if res.Remaining != wantRemaining {
			t.Errorf("request %d Remaining = %d, want %d", i, res.Remaining, wantRemaining)
		}
	}

	res, _ := r.Allow(context.Background(), "k", cfg)
	if res.Allowed {
		t.Fatal("request beyond burst allowed")
	}
	if res.RetryAfter != time.Second {
		t.Errorf("RetryAfter = %v, want 1s", res.RetryAfter)
	}

	clock.Advance(time.Second)
	if res, _ := r.Allow(context.Background(), "k", cfg); !res.Allowed {
		t.Error("request after one emission interval denied")
	}
	if res, _ := r.Allow(context.Background(), "k", cfg); res.Allowed {
		t.Error("second request after one interval allowed")
	}
}

func TestRateLimiter_SustainedRate(t *testing.T) {
	t.Parallel()

	clock := newClock()
	r := NewRateLimiter(WithClock(clock.Now))
	cfg := ratelimit.Config{Rate: 10, Burst: 1, Period: time.Second}

	allowed := 0
	for i := 0; i < 100; i++ {
		if res, _ := r.Allow(context.Background(), "k", cfg); res.Allowed {
			allowed++
		}
		clock.Advance(50 * time.Millisecond)
	}
	// 5s at 10/s
	if allowed != 50 {
		t.Errorf("allowed = %d over 5s at 10/s, want 50", allowed)
	}
}

func TestRateLimiter_KeysIndependent(t *testing.T) {
	t.Parallel()

	r := NewRateLimiter(WithClock(newClock().Now))
	cfg := ratelimit.Config{Rate: 1, Period: time.Minute}

	for _, key := range []string{"a", "b", "c"} {
		if res, _ := r.Allow(context.Background(), key, cfg); !res.Allowed {
			t.Errorf("first request for %s denied", key)
		}
	}
	if res, _ := r.Allow(context.Background(), "a", cfg); res.Allowed {
		t.Error("second request for a allowed")
	}
	if r.Size() != 3 {
		t.Errorf("Size() = %d, want 3", r.Size())
	}
}

func TestRateLimiter_Sweep(t *testing.T) {
	t.Parallel()

	clock := newClock()
	r := NewRateLimiter(WithClock(clock.Now), WithSweepInterval(10*time.Second))
	short := ratelimit.Config{Rate: 1, Period: time.Second}
	long := ratelimit.Config{Rate: 1, Period: time.Hour}

	r.Allow(context.Background(), "short", short)
	r.Allow(context.Background(), "long", long)

	clock.Advance(5 * time.Second)
	r.Allow(context.Background(), "other", short)
	if r.Size() != 3 {
		t.Fatalf("Size() before sweep interval = %d, want 3", r.Size())
	}

	clock.Advance(10 * time.Second)
	r.Allow(context.Background(), "long", long)
	if r.Size() != 1 {
		t.Errorf("Size() after sweep = %d, want 1", r.Size())
	}
}

func TestRateLimiter_Concurrent(t *testing.T) {
	t.Parallel()

	r := NewRateLimiter(WithClock(newClock().Now))
	cfg := ratelimit.Config{Rate: 1, Burst: 25, Period: time.Hour}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.Allow(context.Background(), "shared", cfg)
			if err != nil {
				t.Errorf("Allow() error: %v", err)
				return
			}
			if res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != 25 {
		t.Errorf("allowed = %d, want 25", allowed)
	}
}
