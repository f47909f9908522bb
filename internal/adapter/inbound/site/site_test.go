package site

import (
	"bufio"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/goleak"

	"github.com/Sentinel-Gate/wiregate/pkg/http1"
)

const testWait = 2 * time.Second

func startServer(t *testing.T, setup func(s *http1.Server)) *http1.Server {
	t.Helper()
	srv, err := http1.NewServer("127.0.0.1:0", 4, testWait)
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}
	setup(srv)
	if err := srv.Start(testWait); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	return srv
}

func stopServer(t *testing.T, srv *http1.Server) {
	t.Helper()
	if err := srv.Stop(5 * time.Second); err != nil {
		t.Errorf("Stop() error: %v", err)
	}
}

// rawExchange sends req on a fresh connection and returns everything the
// server writes before closing.
func rawExchange(t *testing.T, addr, req string) string {
	t.Helper()
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer nc.Close()
	_ = nc.SetDeadline(time.Now().Add(testWait))
	if _, err := nc.Write([]byte(req)); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	out, _ := io.ReadAll(bufio.NewReader(nc))
	return string(out)
}

func get(t *testing.T, c *http1.Client, path string) (int, string) {
	t.Helper()
	code, err := c.Get(context.Background(), path, testWait)
	if err != nil {
		t.Fatalf("Get(%s) error: %v", path, err)
	}
	body, err := io.ReadAll(c.Body(testWait))
	if err != nil {
		t.Fatalf("read body of %s: %v", path, err)
	}
	return code, string(body)
}

func TestStaticHandler(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hello static"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "docs"), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "docs", "index.html"), []byte("<h1>docs</h1>"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "empty.bin"), nil, 0600); err != nil {
		t.Fatal(err)
	}

	srv := startServer(t, func(s *http1.Server) {
		_ = s.SetHandler("/files", nil, NewStaticHandler(root, "/files", nil))
	})
	defer stopServer(t, srv)

	c := http1.NewClient()
	if err := c.Open(context.Background(), "http://"+srv.Addr().String()+"/"); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer c.Close()

	tests := []struct {
		path     string
		wantCode int
		wantBody string
		wantMIME string
	}{
		{"/files/hello.txt", 200, "hello static", "text/plain; charset=utf-8"},
		{"/files/docs/", 200, "<h1>docs</h1>", "text/html; charset=utf-8"},
		{"/files/docs", 200, "<h1>docs</h1>", "text/html; charset=utf-8"},
		{"/files/empty.bin", 200, "", "application/octet-stream"},
		{"/files/missing.txt", 404, "", ""},
		{"/files/", 404, "", ""},
	}
	for _, tt := range tests {
		code, body := get(t, c, tt.path)
		if code != tt.wantCode || body != tt.wantBody {
			t.Errorf("GET %s = %d %q, want %d %q", tt.path, code, body, tt.wantCode, tt.wantBody)
		}
		if tt.wantMIME != "" && c.Header().Get("Content-Type") != tt.wantMIME {
			t.Errorf("GET %s Content-Type = %q, want %q", tt.path, c.Header().Get("Content-Type"), tt.wantMIME)
		}
		if tt.wantBody != "" && c.Framing() != http1.FramingFixed {
			t.Errorf("GET %s framing = %v, want fixed", tt.path, c.Framing())
		}
	}
}

func TestStaticHandler_ETagAndTraversal(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.css"), []byte("body{}"), 0600); err != nil {
		t.Fatal(err)
	}
	srv := startServer(t, func(s *http1.Server) {
		_ = s.SetHandler("/", nil, NewStaticHandler(root, "/", nil))
	})
	defer stopServer(t, srv)
	addr := srv.Addr().String()

	first := rawExchange(t, addr, "GET /a.css HTTP/1.1\r\nConnection: close\r\n\r\n")
	if !strings.HasPrefix(first, "HTTP/1.1 200") {
		t.Fatalf("first response = %q", first)
	}
	var tag string
	for _, line := range strings.Split(first, "\r\n") {
		if v, ok := strings.CutPrefix(line, "ETag: "); ok {
			tag = v
		}
	}
	if len(tag) != 18 || tag[0] != '"' {
		t.Fatalf("ETag = %q", tag)
	}

	tests := []struct {
		name     string
		req      string
		wantLine string
	}{
		{"matching etag", "GET /a.css HTTP/1.1\r\nIf-None-Match: " + tag + "\r\nConnection: close\r\n\r\n", "HTTP/1.1 304"},
		{"weak etag in list", "GET /a.css HTTP/1.1\r\nIf-None-Match: \"zz\", W/" + tag + "\r\nConnection: close\r\n\r\n", "HTTP/1.1 304"},
		{"stale etag", "GET /a.css HTTP/1.1\r\nIf-None-Match: \"0000000000000000\"\r\nConnection: close\r\n\r\n", "HTTP/1.1 200"},
		{"dot dot", "GET /../etc/passwd HTTP/1.1\r\nConnection: close\r\n\r\n", "HTTP/1.1 400"},
		{"encoded dot dot", "GET /x/%2e%2e/a.css HTTP/1.1\r\nConnection: close\r\n\r\n", "HTTP/1.1 400"},
		{"post", "POST /a.css HTTP/1.1\r\nContent-Length: 2\r\nConnection: close\r\n\r\nhi", "HTTP/1.1 405"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rawExchange(t, addr, tt.req)
			if !strings.HasPrefix(got, tt.wantLine) {
				t.Errorf("response = %q, want prefix %q", got, tt.wantLine)
			}
		})
	}
}

func TestEchoHandler(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv := startServer(t, func(s *http1.Server) {
		_ = s.SetHandler("/echo", nil, NewEchoHandler())
	})
	defer stopServer(t, srv)

	c := http1.NewClient()
	if err := c.Open(context.Background(), "http://"+srv.Addr().String()+"/"); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer c.Close()

	if code, body := get(t, c, "/echo/some/where?x=1&y=2"); code != 200 || body != "/echo/some/where?x=1&y=2\n" {
		t.Errorf("GET echo = %d %q", code, body)
	}

	payload := []byte(strings.Repeat("0123456789", 3000))
	code, err := c.Post(context.Background(), "/echo", payload, testWait)
	if err != nil {
		t.Fatalf("Post() error: %v", err)
	}
	body, err := io.ReadAll(c.Body(testWait))
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if code != 200 || string(body) != string(payload) {
		t.Errorf("POST echo = %d, %d bytes", code, len(body))
	}

	code, err = c.Post(context.Background(), "/echo", nil, testWait)
	if err != nil {
		t.Fatalf("empty Post() error: %v", err)
	}
	body, _ = io.ReadAll(c.Body(testWait))
	if code != 200 || len(body) != 0 {
		t.Errorf("empty POST echo = %d %q", code, body)
	}

	if got := rawExchange(t, srv.Addr().String(), "PUT /echo HTTP/1.1\r\nConnection: close\r\n\r\n"); !strings.Contains(got, "Allow: GET, POST") {
		t.Errorf("PUT response = %q", got)
	}
}

func TestTextHandler(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv := startServer(t, func(s *http1.Server) {
		_ = s.SetHandler("/motd", nil, NewTextHandler("<b>hi</b>", "text/html"))
		_ = s.SetHandler("/plain", nil, NewTextHandler("plain", ""))
	})
	defer stopServer(t, srv)

	got := rawExchange(t, srv.Addr().String(), "GET /motd HTTP/1.0\r\n\r\n")
	want := "HTTP/1.0 200 OK\r\nContent-Type: text/html\r\nContent-Length: 9\r\n\r\n<b>hi</b>"
	if got != want {
		t.Errorf("GET /motd = %q, want %q", got, want)
	}
	got = rawExchange(t, srv.Addr().String(), "GET /plain\r\n")
	if got != "plain" {
		t.Errorf("0.9 GET /plain = %q", got)
	}
}

func TestHealthHandler(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv := startServer(t, func(s *http1.Server) {
		_ = s.SetHandler("/healthz", nil, NewHealthHandler(s, "1.2.3"))
		_ = s.SetHandler("/", nil, NewEchoHandler())
	})
	defer stopServer(t, srv)

	c := http1.NewClient()
	if err := c.Open(context.Background(), "http://"+srv.Addr().String()+"/"); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer c.Close()

	code, body := get(t, c, "/healthz")
	if code != 200 {
		t.Fatalf("GET /healthz = %d %q", code, body)
	}
	var resp HealthResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("health body not JSON: %v", err)
	}
	if resp.Status != "healthy" || resp.Server != http1.ServerRunning.String() || resp.Version != "1.2.3" {
		t.Errorf("health = %+v", resp)
	}
	if len(resp.Paths) != 2 || resp.Paths[0] != "/healthz" {
		t.Errorf("paths = %v", resp.Paths)
	}
}

type fixedStatus http1.ServerStatus

func (f fixedStatus) Status() http1.ServerStatus { return http1.ServerStatus(f) }
func (f fixedStatus) Paths() []string            { return nil }

func TestHealthHandler_Check(t *testing.T) {
	t.Parallel()

	if got := NewHealthHandler(fixedStatus(http1.ServerRunning), "").Check(); got.Status != "healthy" {
		t.Errorf("running: %+v", got)
	}
	if got := NewHealthHandler(fixedStatus(http1.ServerStopped), "").Check(); got.Status != "unhealthy" {
		t.Errorf("stopped: %+v", got)
	}
	h := NewHealthHandler(fixedStatus(http1.ServerRunning), "").WithCounts(func() map[string]int64 {
		return map[string]int64{"ok": 3}
	})
	if got := h.Check(); got.Requests["ok"] != 3 {
		t.Errorf("counts: %+v", got)
	}
}
