package accesslog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/Sentinel-Gate/wiregate/pkg/http1"
)

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("access log closed")

const dateLayout = "2006-01-02"

// logFilePattern matches access-YYYY-MM-DD.log and access-YYYY-MM-DD-N.log.
var logFilePattern = regexp.MustCompile(`^access-(\d{4}-\d{2}-\d{2})(?:-(\d+))?\.log$`)

type logFile struct {
	name   string
	date   string
	suffix int
}

func parseLogFilename(name string) (logFile, bool) {
	m := logFilePattern.FindStringSubmatch(name)
	if m == nil {
		return logFile{}, false
	}
	f := logFile{name: name, date: m[1]}
	if m[2] != "" {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return logFile{}, false
		}
		f.suffix = n
	}
	return f, true
}

func logFilename(date string, suffix int) string {
	if suffix == 0 {
		return fmt.Sprintf("access-%s.log", date)
	}
	return fmt.Sprintf("access-%s-%d.log", date, suffix)
}

// FileConfig configures a FileStore.
type FileConfig struct {
	Dir string
	// RetentionDays is how long files are kept (default 7).
	RetentionDays int
	// MaxFileSizeMB triggers a suffixed file once reached (default 100).
	MaxFileSizeMB int
	// CacheSize is the number of entries kept for Recent (default 1000).
	CacheSize int
}

// FileStore writes entries as JSON Lines into one file per UTC day. A
// day's file is split into -1, -2, ... files once it reaches the size cap,
// and files past the retention window are removed hourly.
type FileStore struct {
	mu            sync.Mutex
	dir           string
	maxFileSize   int64
	retentionDays int
	current       *os.File
	currentDate   string
	currentSize   int64
	currentSuffix int
	closed        bool

	cache  *entryCache
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
	now    func() time.Time
}

// NewFileStore creates dir if needed, opens today's file, removes expired
// files, loads the newest file into the recent cache and starts the
// cleanup loop.
func NewFileStore(cfg FileConfig, logger *slog.Logger) (*FileStore, error) {
	if cfg.Dir == "" {
		return nil, errors.New("access log directory is empty")
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 7
	}
	if cfg.MaxFileSizeMB <= 0 {
		cfg.MaxFileSizeMB = 100
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return nil, fmt.Errorf("create access log directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &FileStore{
		dir:           cfg.Dir,
		maxFileSize:   int64(cfg.MaxFileSizeMB) * 1024 * 1024,
		retentionDays: cfg.RetentionDays,
		cache:         newEntryCache(cfg.CacheSize),
		logger:        logger,
		cancel:        cancel,
		done:          make(chan struct{}),
		now:           time.Now,
	}

	if err := s.openCurrent(s.now().UTC().Format(dateLayout)); err != nil {
		cancel()
		return nil, fmt.Errorf("open access log: %w", err)
	}
	s.cleanup()
	s.loadCache()

	go s.cleanupLoop(ctx)
	return s, nil
}

// Record implements http1.AccessRecorder.
func (s *FileStore) Record(_ context.Context, e http1.AccessEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal access entry: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if date := e.Time.UTC().Format(dateLayout); date != s.currentDate {
		if err := s.rotateLocked(date, 0); err != nil {
			return fmt.Errorf("date rotation: %w", err)
		}
	}
	if s.currentSize >= s.maxFileSize {
		if err := s.rotateLocked(s.currentDate, s.currentSuffix+1); err != nil {
			return fmt.Errorf("size rotation: %w", err)
		}
	}

	n, err := s.current.Write(data)
	s.currentSize += int64(n)
	if err != nil {
		return fmt.Errorf("write access entry: %w", err)
	}
	s.cache.Add(e)
	return nil
}

// Recent returns up to n cached entries, newest first.
func (s *FileStore) Recent(_ context.Context, n int) ([]http1.AccessEntry, error) {
	return s.cache.Recent(n), nil
}

// Flush syncs the current file.
func (s *FileStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	return s.current.Sync()
}

// Close stops the cleanup loop and closes the current file.
func (s *FileStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cancel()

	var err error
	if s.current != nil {
		_ = s.current.Sync()
		err = s.current.Close()
		s.current = nil
	}
	s.mu.Unlock()

	<-s.done
	return err
}

func (s *FileStore) openCurrent(date string) error {
	suffix := s.highestSuffix(date)
	f, size, err := s.openFile(date, suffix)
	if err != nil {
		return err
	}
	s.current = f
	s.currentDate = date
	s.currentSize = size
	s.currentSuffix = suffix
	return nil
}

// rotateLocked switches to the file for date and suffix. Must be called
// with s.mu held.
func (s *FileStore) rotateLocked(date string, suffix int) error {
	if s.current != nil {
		_ = s.current.Sync()
		_ = s.current.Close()
		s.current = nil
	}
	f, size, err := s.openFile(date, suffix)
	if err != nil {
		return err
	}
	s.current = f
	s.currentDate = date
	s.currentSize = size
	s.currentSuffix = suffix
	return nil
}

func (s *FileStore) openFile(date string, suffix int) (*os.File, int64, error) {
	name := logFilename(date, suffix)
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, 0, fmt.Errorf("open file %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("stat file %s: %w", name, err)
	}
	return f, info.Size(), nil
}

func (s *FileStore) files() []logFile {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Error("access log: read directory failed", "dir", s.dir, "error", err)
		return nil
	}
	var out []logFile
	for _, e := range entries {
		if f, ok := parseLogFilename(e.Name()); ok {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].date != out[j].date {
			return out[i].date < out[j].date
		}
		return out[i].suffix < out[j].suffix
	})
	return out
}

func (s *FileStore) highestSuffix(date string) int {
	highest := 0
	for _, f := range s.files() {
		if f.date == date && f.suffix > highest {
			highest = f.suffix
		}
	}
	return highest
}

// cleanup removes files dated before the retention window.
func (s *FileStore) cleanup() {
	cutoff := s.now().UTC().AddDate(0, 0, -s.retentionDays)
	deleted := 0
	for _, f := range s.files() {
		day, err := time.Parse(dateLayout, f.date)
		if err != nil || !day.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, f.name)); err != nil {
			s.logger.Error("access log: delete failed", "file", f.name, "error", err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		s.logger.Info("access log cleanup completed", "deleted", deleted)
	}
}

func (s *FileStore) cleanupLoop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// loadCache fills the cache from the newest non-empty file.
func (s *FileStore) loadCache() {
	files := s.files()
	for i := len(files) - 1; i >= 0; i-- {
		path := filepath.Join(s.dir, files[i].name)
		if info, err := os.Stat(path); err != nil || info.Size() == 0 {
			continue
		}
		s.loadFile(path)
		return
	}
}

func (s *FileStore) loadFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		s.logger.Error("access log: open for cache failed", "file", path, "error", err)
		return
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e http1.AccessEntry
		if err := json.Unmarshal(line, &e); err != nil {
			s.logger.Warn("access log: skipping malformed line", "file", path, "error", err)
			continue
		}
		s.cache.Add(e)
	}
	if err := scanner.Err(); err != nil {
		s.logger.Error("access log: read failed", "file", path, "error", err)
	}
}

var _ Store = (*FileStore)(nil)
