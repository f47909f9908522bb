package accesslog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Sentinel-Gate/wiregate/pkg/http1"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS access_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	time_ns     INTEGER NOT NULL,
	conn_id     TEXT    NOT NULL,
	worker      INTEGER NOT NULL,
	remote_addr TEXT    NOT NULL,
	method      TEXT    NOT NULL,
	path        TEXT    NOT NULL,
	query       TEXT    NOT NULL,
	version     TEXT    NOT NULL,
	status      INTEGER NOT NULL,
	bytes_sent  INTEGER NOT NULL,
	duration_ns INTEGER NOT NULL,
	result      TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS access_log_time ON access_log(time_ns);
`

// SQLiteStore keeps entries in the access_log table of a SQLite file.
type SQLiteStore struct {
	db            *sql.DB
	retentionDays int
	logger        *slog.Logger
}

// NewSQLiteStore opens or creates the database at path and prunes rows
// older than retentionDays. retentionDays <= 0 keeps everything.
func NewSQLiteStore(ctx context.Context, path string, retentionDays int, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return nil, fmt.Errorf("access log database path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("create access log directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; sqlite serializes anyway
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create access_log schema: %w", err)
	}

	s := &SQLiteStore{db: db, retentionDays: retentionDays, logger: logger}
	if err := s.prune(ctx, time.Now()); err != nil {
		logger.Warn("access log prune failed", "error", err)
	}
	return s, nil
}

// Record implements http1.AccessRecorder.
func (s *SQLiteStore) Record(ctx context.Context, e http1.AccessEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO access_log
			(time_ns, conn_id, worker, remote_addr, method, path, query, version, status, bytes_sent, duration_ns, result)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Time.UnixNano(), e.ConnID, e.Worker, e.RemoteAddr, e.Method, e.Path, e.Query,
		e.Version, e.Status, e.BytesSent, int64(e.Duration), e.Result,
	)
	if err != nil {
		return fmt.Errorf("insert access entry: %w", err)
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]http1.AccessEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT time_ns, conn_id, worker, remote_addr, method, path, query, version, status, bytes_sent, duration_ns, result
		 FROM access_log ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query access log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []http1.AccessEntry
	for rows.Next() {
		var (
			e        http1.AccessEntry
			timeNS   int64
			duration int64
		)
		if err := rows.Scan(&timeNS, &e.ConnID, &e.Worker, &e.RemoteAddr, &e.Method, &e.Path, &e.Query,
			&e.Version, &e.Status, &e.BytesSent, &duration, &e.Result); err != nil {
			return nil, fmt.Errorf("scan access entry: %w", err)
		}
		e.Time = time.Unix(0, timeNS).UTC()
		e.Duration = time.Duration(duration)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) prune(ctx context.Context, now time.Time) error {
	if s.retentionDays <= 0 {
		return nil
	}
	cutoff := now.AddDate(0, 0, -s.retentionDays).UnixNano()
	res, err := s.db.ExecContext(ctx, `DELETE FROM access_log WHERE time_ns < ?`, cutoff)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Info("access log cleanup completed", "deleted", n)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
