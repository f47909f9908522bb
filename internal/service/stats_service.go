package service

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Sentinel-Gate/wiregate/pkg/http1"
)

// StatsService counts served requests by result, method and status. It
// is an http1.AccessRecorder and is safe for concurrent use.
type StatsService struct {
	ok        atomic.Int64
	denied    atomic.Int64
	errors    atomic.Int64
	unmatched atomic.Int64
	bytesSent atomic.Int64

	mu           sync.Mutex
	methodCounts map[string]int64
	statusCounts map[int]int64
}

// NewStatsService creates a new StatsService with all counters at zero.
func NewStatsService() *StatsService {
	return &StatsService{
		methodCounts: make(map[string]int64),
		statusCounts: make(map[int]int64),
	}
}

// Record implements http1.AccessRecorder.
func (s *StatsService) Record(_ context.Context, e http1.AccessEntry) error {
	switch e.Result {
	case http1.ResultOK:
		s.ok.Add(1)
	case http1.ResultDenied:
		s.denied.Add(1)
	case http1.ResultError:
		s.errors.Add(1)
	case http1.ResultUnmatched:
		s.unmatched.Add(1)
	}
	s.bytesSent.Add(e.BytesSent)

	s.mu.Lock()
	if e.Method != "" {
		s.methodCounts[e.Method]++
	}
	if e.Status != 0 {
		s.statusCounts[e.Status]++
	}
	s.mu.Unlock()
	return nil
}

// Stats holds a snapshot of all counters at a point in time.
type Stats struct {
	OK           int64            `json:"ok"`
	Denied       int64            `json:"denied"`
	Errors       int64            `json:"errors"`
	Unmatched    int64            `json:"unmatched"`
	BytesSent    int64            `json:"bytes_sent"`
	MethodCounts map[string]int64 `json:"method_counts"`
	StatusCounts map[int]int64    `json:"status_counts"`
}

// GetStats returns a snapshot of all counters.
// The snapshot is consistent per-counter but not atomically across all counters.
func (s *StatsService) GetStats() Stats {
	s.mu.Lock()
	mc := make(map[string]int64, len(s.methodCounts))
	for k, v := range s.methodCounts {
		mc[k] = v
	}
	sc := make(map[int]int64, len(s.statusCounts))
	for k, v := range s.statusCounts {
		sc[k] = v
	}
	s.mu.Unlock()

	return Stats{
		OK:           s.ok.Load(),
		Denied:       s.denied.Load(),
		Errors:       s.errors.Load(),
		Unmatched:    s.unmatched.Load(),
		BytesSent:    s.bytesSent.Load(),
		MethodCounts: mc,
		StatusCounts: sc,
	}
}

// Counts returns the per-result counters.
func (s *StatsService) Counts() map[string]int64 {
	return map[string]int64{
		http1.ResultOK:        s.ok.Load(),
		http1.ResultDenied:    s.denied.Load(),
		http1.ResultError:     s.errors.Load(),
		http1.ResultUnmatched: s.unmatched.Load(),
	}
}

// Reset sets all counters to zero.
func (s *StatsService) Reset() {
	s.ok.Store(0)
	s.denied.Store(0)
	s.errors.Store(0)
	s.unmatched.Store(0)
	s.bytesSent.Store(0)

	s.mu.Lock()
	s.methodCounts = make(map[string]int64)
	s.statusCounts = make(map[int]int64)
	s.mu.Unlock()
}

var _ http1.AccessRecorder = (*StatsService)(nil)
