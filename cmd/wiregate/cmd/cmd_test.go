package cmd

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/goleak"

	"github.com/Sentinel-Gate/wiregate/internal/config"
	"github.com/Sentinel-Gate/wiregate/internal/domain/auth"
	"github.com/Sentinel-Gate/wiregate/pkg/http1"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"loud", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "server.pid")
	if got := readPIDFile(path); got != 0 {
		t.Errorf("readPIDFile(missing) = %d, want 0", got)
	}
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile() error: %v", err)
	}
	if got := readPIDFile(path); got != os.Getpid() {
		t.Errorf("readPIDFile() = %d, want %d", got, os.Getpid())
	}
	if !alive(os.Getpid()) {
		t.Error("alive(self) = false")
	}

	for _, content := range []string{"", "abc", "-4", "0"} {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		if got := readPIDFile(path); got != 0 {
			t.Errorf("readPIDFile(%q) = %d, want 0", content, got)
		}
	}

	if got := pidFilePath("/tmp/custom.pid"); got != "/tmp/custom.pid" {
		t.Errorf("pidFilePath(custom) = %q", got)
	}
	if got := pidFilePath(""); !strings.HasSuffix(got, "server.pid") {
		t.Errorf("pidFilePath(\"\") = %q, want .../server.pid", got)
	}
}

func TestRequestPath(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"http://example.com", "/"},
		{"http://example.com/", "/"},
		{"http://example.com:8080/a/b?c=d", "/a/b?c=d"},
		{"http://[::1]:8080/x", "/x"},
		{"http:", "/"},
	}
	for _, tt := range tests {
		if got := requestPath(tt.uri); got != tt.want {
			t.Errorf("requestPath(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

// execute runs the root command with args and stdin and returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()
	err := rootCmd.Execute()
	return out.String(), err
}

func TestEncodeDecodeCommands(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{"base64", "hello", []string{"encode", "--as", "base64"}, "aGVsbG8="},
		{"base64 empty", "", []string{"encode", "--as", "base64"}, ""},
		{"base64 binary", "\xff\xfe\x00", []string{"encode", "--as", "base64"}, "//4A"},
		{"decode", "aGVs\nbG8=\n", []string{"decode"}, "hello"},
		{"decode empty", "", []string{"decode"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := execute(t, tt.stdin, tt.args...)
			if err != nil {
				t.Fatalf("Execute(%v) error: %v", tt.args, err)
			}
			if got != tt.want {
				t.Errorf("Execute(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}

	if _, err := execute(t, "x", "encode", "--as", "rot13"); err == nil {
		t.Error("encode --as rot13 succeeded")
	}
	if _, err := execute(t, "a===", "decode"); err == nil {
		t.Error("decode of overlong padding succeeded")
	}
}

func TestEncodeCommand_Gzip(t *testing.T) {
	input := strings.Repeat("wiregate ", 1000)
	got, err := execute(t, input, "encode", "--as", "gzip", "--level", "9")
	if err != nil {
		t.Fatalf("encode --as gzip error: %v", err)
	}
	if len(got) >= len(input) {
		t.Errorf("gzip output %d bytes, input %d", len(got), len(input))
	}
	zr, err := gzip.NewReader(strings.NewReader(got))
	if err != nil {
		t.Fatalf("gzip.NewReader() error: %v", err)
	}
	plain, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("gunzip error: %v", err)
	}
	if string(plain) != input {
		t.Errorf("round trip mismatch: %d bytes", len(plain))
	}
}

func TestHashPasswordCommand(t *testing.T) {
	for _, tt := range []struct {
		name  string
		stdin string
		args  []string
	}{
		{"argument", "", []string{"hash-password", "s3cret"}},
		{"stdin", "s3cret\r\nignored\n", []string{"hash-password"}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.stdin, tt.args...)
			if err != nil {
				t.Fatalf("hash-password error: %v", err)
			}
			ok, err := auth.VerifyPassword("s3cret", strings.TrimSpace(out))
			if err != nil || !ok {
				t.Errorf("VerifyPassword(output) = %v, %v", ok, err)
			}
		})
	}

	if _, err := execute(t, "", "hash-password"); err == nil {
		t.Error("hash-password with empty stdin succeeded")
	}
}

func TestVersionCommand(t *testing.T) {
	short, err := execute(t, "", "version", "--short")
	if err != nil {
		t.Fatalf("version --short error: %v", err)
	}
	if short != Version+"\n" {
		t.Errorf("version --short = %q, want %q", short, Version+"\n")
	}

	full, err := execute(t, "", "version", "--short=false")
	if err != nil {
		t.Fatalf("version error: %v", err)
	}
	want := "wiregate " + Version + " (commit " + Commit + ", built " + BuildDate + ")"
	if !strings.HasPrefix(full, want) || strings.Count(full, "\n") != 1 {
		t.Errorf("version = %q, want one line starting %q", full, want)
	}
}

func TestServe(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := &config.Config{
		Server: config.ServerConfig{HTTPAddr: "127.0.0.1:0", Workers: 2},
		Routes: []config.RouteConfig{
			{Path: "/", Kind: config.RouteEcho},
			{Path: "/motd", Kind: config.RouteText, Text: "hi there"},
		},
		Telemetry: config.TelemetryConfig{Tracing: true},
	}
	cfg.SetDefaults()
	cfg.Metrics.Enabled = false

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addrc := make(chan string, 1)
	errc := make(chan error, 1)
	var traces bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	go func() {
		errc <- serve(ctx, cfg, logger, &traces, func(addr string) { addrc <- addr })
	}()

	var addr string
	select {
	case addr = <-addrc:
	case err := <-errc:
		t.Fatalf("serve() returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve() never became ready")
	}

	tests := []struct {
		name   string
		path   string
		post   []byte
		encode string
		want   string
	}{
		{"echo get", "/a/b?c=1", nil, "", "/a/b?c=1\n"},
		{"echo post", "/", []byte("ping"), "", "ping"},
		{"text", "/motd", nil, "", "hi there"},
		{"text base64", "/motd", nil, "base64", "aGkgdGhlcmU="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			pipe, err := outputPipeline(tt.encode, 6, &out)
			if err != nil {
				t.Fatalf("outputPipeline() error: %v", err)
			}
			c := http1.NewClient()
			defer c.Close()
			code, err := fetch(context.Background(), c, "http://"+addr+tt.path, tt.post, 2*time.Second, nil, pipe)
			if err != nil {
				t.Fatalf("fetch() error: %v", err)
			}
			if code != 200 {
				t.Errorf("code = %d, want 200", code)
			}
			if out.String() != tt.want {
				t.Errorf("body = %q, want %q", out.String(), tt.want)
			}
		})
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("serve() error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve() did not stop")
	}
	if !strings.Contains(traces.String(), "wiregate.request") {
		t.Error("no request spans exported")
	}
}
