package http1

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ServerStatus is the lifecycle state of a Server.
type ServerStatus int

const (
	// ServerNone is a freed server.
	ServerNone ServerStatus = iota
	// ServerIdle is a server with no handlers.
	ServerIdle
	// ServerStopped is a configured server that is not running.
	ServerStopped
	// ServerStarting is a server whose accept loop is coming up.
	ServerStarting
	// ServerStopping is a server draining its workers.
	ServerStopping
	// ServerRunning is a server accepting connections.
	ServerRunning
)

// String returns the status name.
func (s ServerStatus) String() string {
	switch s {
	case ServerIdle:
		return "idle"
	case ServerStopped:
		return "stopped"
	case ServerStarting:
		return "starting"
	case ServerStopping:
		return "stopping"
	case ServerRunning:
		return "running"
	default:
		return "none"
	}
}

const (
	pollStep      = 100 * time.Millisecond
	drainPollStep = 10 * time.Millisecond
	busyResponse  = "HTTP/1.1 503 Busy\r\nContent-Length: 0\r\n\r\n"
)

// Server is an HTTP/1.x server with a fixed pool of workers.
type Server struct {
	mu        sync.Mutex
	status    ServerStatus
	addr      string
	workers   int
	wait      time.Duration
	routes    routeTable
	listener  net.Listener
	listenErr error
	stop      atomic.Bool

	logger   *slog.Logger
	metrics  *Metrics
	recorder AccessRecorder
	tracer   trace.Tracer
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithRecorder sets the access recorder.
func WithRecorder(r AccessRecorder) ServerOption {
	return func(s *Server) {
		s.recorder = r
	}
}

// WithTracer sets the tracer used for request spans.
func WithTracer(t trace.Tracer) ServerOption {
	return func(s *Server) {
		s.tracer = t
	}
}

// NewServer creates a server that will listen on addr with the given
// number of workers. wait bounds every socket read while parsing and
// receiving a request.
func NewServer(addr string, workers int, wait time.Duration, opts ...ServerOption) (*Server, error) {
	if addr == "" || workers <= 0 {
		return nil, ErrParam
	}
	s := &Server{
		status:  ServerIdle,
		addr:    addr,
		workers: workers,
		wait:    wait,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = noop.NewTracerProvider().Tracer("wiregate")
	}
	return s, nil
}

// SetHandler registers h for requests whose path starts with path. An
// existing exact path has its rule and handler replaced; a nil handler
// removes it. Handlers can only be changed while the server is not
// running.
func (s *Server) SetHandler(path string, rule AccessRule, h Handler) error {
	if path == "" {
		return ErrParam
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != ServerIdle && s.status != ServerStopped {
		return ErrOrder
	}
	if s.routes.set(path, rule, h) {
		s.status = ServerStopped
	}
	return nil
}

// Paths returns the registered path prefixes in match order.
func (s *Server) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.routes.paths()
}

// Status returns the server status.
func (s *Server) Status() ServerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Addr returns the bound listen address while the server runs, or nil.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start launches the accept loop and waits up to timeout for it to run.
// On timeout the loop is told to abort and ErrTimeout is returned. A
// listen failure is returned wrapped in ErrAddress.
func (s *Server) Start(timeout time.Duration) error {
	s.mu.Lock()
	if s.status != ServerStopped && s.status != ServerStarting {
		s.mu.Unlock()
		return ErrOrder
	}
	if s.status != ServerStarting {
		s.stop.Store(false)
		s.listenErr = nil
		s.status = ServerStarting
		go s.acceptLoop(s.routes.clone())
	}
	s.mu.Unlock()

	for timeout > 0 {
		step := min(timeout, pollStep)
		timeout -= step
		time.Sleep(step)

		s.mu.Lock()
		status, err := s.status, s.listenErr
		s.mu.Unlock()
		if status == ServerRunning {
			return nil
		}
		if err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.stop.Store(true)
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Unlock()
	return ErrTimeout
}

// Stop tells the accept loop to finish, unblocks a pending accept, and
// waits up to timeout for every worker to drain.
func (s *Server) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if s.status != ServerRunning && s.status != ServerStopping {
		s.mu.Unlock()
		return ErrOrder
	}
	s.stop.Store(true)
	ln := s.listener
	s.mu.Unlock()

	if ln != nil {
		// wake a blocked Accept, then release the port
		if c, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second); err == nil {
			_ = c.Close()
		}
		_ = ln.Close()
	}

	for timeout > 0 {
		step := min(timeout, pollStep)
		timeout -= step
		time.Sleep(step)

		if s.Status() == ServerStopped {
			return nil
		}
	}
	return ErrTimeout
}

// Free drops every handler. The server must not be running.
func (s *Server) Free() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != ServerIdle && s.status != ServerStopped {
		return ErrOrder
	}
	s.routes = nil
	s.status = ServerNone
	return nil
}

// acceptLoop listens, runs the worker pool, and hands each accepted
// connection to the next stopped worker after the last one assigned. With
// no stopped worker the connection gets an immediate 503.
func (s *Server) acceptLoop(routes routeTable) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.mu.Lock()
		s.listenErr = fmt.Errorf("%w: %s: %w", ErrAddress, s.addr, err)
		s.status = ServerStopped
		s.mu.Unlock()
		s.logger.Error("http server listen failed", "addr", s.addr, "error", err)
		return
	}

	// Start may have timed out while Listen was in progress. The check and
	// the publish share one critical section with Start's abort path.
	s.mu.Lock()
	if s.stop.Load() {
		s.status = ServerStopped
		s.mu.Unlock()
		_ = ln.Close()
		s.logger.Warn("http server start abandoned", "addr", s.addr)
		return
	}
	s.listener = ln
	s.status = ServerRunning
	s.mu.Unlock()

	pool := make([]*worker, s.workers)
	for i := range pool {
		pool[i] = newWorker(i, s, routes)
		go pool[i].run()
	}
	s.logger.Info("http server running", "addr", ln.Addr().String(), "workers", len(pool))

	// seek advances, found is the last slot assigned
	seek, found := 0, 0
	for {
		nc, err := ln.Accept()
		if err != nil || s.stop.Load() {
			if nc != nil {
				_ = nc.Close()
			}
			break
		}
		if s.metrics != nil {
			s.metrics.ConnectionsAccepted.Inc()
		}

		for pool[seek].load() != workerStopped && seek != found {
			seek = (seek + 1) % len(pool)
		}

		if pool[seek].load() == workerStopped {
			w := pool[seek]
			w.store(workerRunning)
			w.nc = nc
			w.wake <- struct{}{}
			found = seek
			seek = (seek + 1) % len(pool)
		} else {
			s.reject(nc)
			if found == seek {
				seek = (seek + 1) % len(pool)
			}
		}
	}

	_ = ln.Close()
	s.mu.Lock()
	s.status = ServerStopping
	s.mu.Unlock()

	for _, w := range pool {
		for w.load() != workerStopped {
			time.Sleep(drainPollStep)
		}
		w.store(workerExit)
		w.wake <- struct{}{}
		for w.load() != workerDead {
			time.Sleep(drainPollStep)
		}
	}

	s.mu.Lock()
	s.listener = nil
	s.status = ServerStopped
	s.mu.Unlock()
	s.logger.Info("http server stopped", "addr", s.addr)
}

// reject answers a connection no worker can take.
func (s *Server) reject(nc net.Conn) {
	_ = nc.SetWriteDeadline(time.Now().Add(time.Second))
	_, _ = nc.Write([]byte(busyResponse))
	_ = nc.Close()
	if s.metrics != nil {
		s.metrics.ConnectionsRejected.Inc()
	}
	s.logger.Debug("connection rejected, all workers busy", "remote", addrString(nc.RemoteAddr()))
}
