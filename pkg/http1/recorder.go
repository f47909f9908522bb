package http1

import (
	"context"
	"time"
)

// AccessEntry describes one served request.
type AccessEntry struct {
	Time       time.Time     `json:"time"`
	ConnID     string        `json:"conn_id"`
	Worker     int           `json:"worker"`
	RemoteAddr string        `json:"remote_addr"`
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	Query      string        `json:"query,omitempty"`
	Version    string        `json:"version"`
	Status     int           `json:"status"`
	BytesSent  int64         `json:"bytes_sent"`
	Duration   time.Duration `json:"duration_ns"`
	Result     string        `json:"result"`
}

// AccessRecorder receives one entry per served request. Record is called
// from worker goroutines and must be safe for concurrent use.
type AccessRecorder interface {
	Record(ctx context.Context, entry AccessEntry) error
}
