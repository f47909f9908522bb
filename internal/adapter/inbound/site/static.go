package site

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/Sentinel-Gate/wiregate/pkg/http1"
)

const indexFile = "index.html"

// StaticHandler serves files below root for requests under prefix.
type StaticHandler struct {
	root   string
	prefix string
	logger *slog.Logger
}

// NewStaticHandler creates a handler that maps prefix+"/x" to root/x.
func NewStaticHandler(root, prefix string, logger *slog.Logger) *StaticHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StaticHandler{root: root, prefix: strings.TrimSuffix(prefix, "/"), logger: logger}
}

// Serve implements http1.Handler.
func (h *StaticHandler) Serve(r *http1.Request) error {
	if r.Method() != "GET" {
		return methodNotAllowed(r, "GET")
	}

	rel, ok := h.relative(r.Path())
	if !ok {
		return r.SendStatus(400, "Bad Request")
	}

	name := filepath.Join(h.root, filepath.FromSlash(rel))
	f, info, err := openFile(name)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			h.logger.Warn("static file open failed", "file", name, "error", err)
		}
		return r.SendStatus(404, "Not Found")
	}
	defer func() { _ = f.Close() }()

	tag := etag(rel, info)
	if match := r.Header("If-None-Match"); match != "" && etagMatches(match, tag) {
		if err := r.SendInit(304, "Not Modified", contentType(info.Name())); err != nil {
			return err
		}
		if err := r.SendHead("ETag: " + tag); err != nil {
			return err
		}
		if err := r.SendHead("Content-Length: 0"); err != nil {
			return err
		}
		return r.Send(nil)
	}

	if err := r.SendInit(200, "OK", contentType(info.Name())); err != nil {
		return err
	}
	if err := r.SendHead("ETag: " + tag); err != nil {
		return err
	}
	if err := r.SendHead(fmt.Sprintf("Content-Length: %d", info.Size())); err != nil {
		return err
	}
	if info.Size() == 0 {
		return r.Send(nil)
	}
	_, err = io.CopyBuffer(r, io.LimitReader(f, info.Size()), make([]byte, 32*1024))
	return err
}

// relative strips the prefix and cleans the rest. Paths with a ".."
// segment are refused.
func (h *StaticHandler) relative(p string) (string, bool) {
	rest := strings.TrimPrefix(p, h.prefix)
	for _, seg := range strings.Split(rest, "/") {
		if seg == ".." {
			return "", false
		}
	}
	rest = strings.TrimPrefix(path.Clean("/"+rest), "/")
	if rest == "" {
		rest = indexFile
	}
	return rest, true
}

func openFile(name string) (*os.File, os.FileInfo, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return openFile(filepath.Join(name, indexFile))
	}
	return f, info, nil
}

func contentType(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// etag is a strong validator over the file's identity, size and mtime.
func etag(rel string, info os.FileInfo) string {
	d := xxhash.New()
	_, _ = d.WriteString(rel)
	_, _ = fmt.Fprintf(d, "|%d|%d", info.Size(), info.ModTime().UnixNano())
	return fmt.Sprintf("\"%016x\"", d.Sum64())
}

func etagMatches(header, tag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == tag {
			return true
		}
	}
	return false
}

func methodNotAllowed(r *http1.Request, allow string) error {
	if err := r.SendInit(405, "Method Not Allowed", "text/plain"); err != nil {
		return err
	}
	if err := r.SendHead("Allow: " + allow); err != nil {
		return err
	}
	if err := r.SendHead("Content-Length: 0"); err != nil {
		return err
	}
	return r.Send(nil)
}
