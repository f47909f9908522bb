// Package accesslog persists served-request entries, either as rotated
// JSON Lines files or in a SQLite table.
package accesslog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Sentinel-Gate/wiregate/pkg/http1"
)

// Store records access entries and serves the most recent ones back.
type Store interface {
	http1.AccessRecorder
	// Recent returns up to n entries, newest first.
	Recent(ctx context.Context, n int) ([]http1.AccessEntry, error)
	Close() error
}

// Config selects and tunes a Store.
type Config struct {
	// Output is "file://<dir>" or "sqlite://<file>".
	Output        string
	RetentionDays int
	MaxFileSizeMB int
	CacheSize     int
}

// Open creates the Store named by cfg.Output. An empty output returns a
// nil Store and no error.
func Open(cfg Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch {
	case cfg.Output == "":
		return nil, nil
	case strings.HasPrefix(cfg.Output, "file://"):
		return NewFileStore(FileConfig{
			Dir:           strings.TrimPrefix(cfg.Output, "file://"),
			RetentionDays: cfg.RetentionDays,
			MaxFileSizeMB: cfg.MaxFileSizeMB,
			CacheSize:     cfg.CacheSize,
		}, logger)
	case strings.HasPrefix(cfg.Output, "sqlite://"):
		return NewSQLiteStore(context.Background(), strings.TrimPrefix(cfg.Output, "sqlite://"), cfg.RetentionDays, logger)
	}
	return nil, fmt.Errorf("unsupported access log output %q", cfg.Output)
}
