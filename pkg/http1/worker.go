package http1

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type workerState int32

const (
	workerStopped workerState = iota
	workerRunning
	workerExit
	workerDead
)

// worker is one pool slot. It parks on wake between connections and never
// serves a connection it was not explicitly handed.
type worker struct {
	id     int
	srv    *Server
	routes routeTable
	state  atomic.Int32
	wake   chan struct{}
	nc     net.Conn
}

func newWorker(id int, srv *Server, routes routeTable) *worker {
	return &worker{
		id:     id,
		srv:    srv,
		routes: routes,
		wake:   make(chan struct{}, 1),
	}
}

func (w *worker) load() workerState {
	return workerState(w.state.Load())
}

func (w *worker) store(s workerState) {
	w.state.Store(int32(s))
}

func (w *worker) run() {
	for {
		<-w.wake
		if w.load() == workerExit {
			if w.nc != nil {
				_ = w.nc.Close()
				w.nc = nil
			}
			w.store(workerDead)
			return
		}

		m := w.srv.metrics
		if m != nil {
			m.WorkersBusy.Inc()
		}
		w.serve(w.nc)
		w.nc = nil
		w.store(workerStopped)
		if m != nil {
			m.WorkersBusy.Dec()
		}
	}
}

// serve handles pipelined requests on nc while each one asks for the
// connection to persist, then closes it.
func (w *worker) serve(nc net.Conn) {
	if nc == nil {
		return
	}
	s := w.srv
	c := newConn(nc)
	defer c.close()

	connID := uuid.NewString()
	logger := s.logger.With("conn_id", connID, "worker", w.id)

	for {
		r, err := readRequest(c, s.wait)
		if err != nil {
			if !errors.Is(err, ErrClosed) {
				logger.Debug("request not parsed", "error", err)
			}
			return
		}
		r.worker = w.id
		r.remote = nc.RemoteAddr()

		if !w.handle(logger, connID, r) || !r.persistent {
			return
		}
	}
}

// handle dispatches one request and reports whether the connection may
// carry another.
func (w *worker) handle(logger *slog.Logger, connID string, r *Request) bool {
	s := w.srv
	start := time.Now()
	ctx, span := s.tracer.Start(context.Background(), "wiregate.request",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", r.method),
			attribute.String("http.path", r.path),
			attribute.String("http.version", r.version.String()),
			attribute.Int("wiregate.worker", w.id),
		),
	)
	defer span.End()
	r.ctx = ctx

	result := ResultUnmatched
	keep := true
	if rt, ok := w.routes.match(r.path); ok {
		allowed := true
		if rt.rule != nil {
			var err error
			allowed, err = rt.rule.Allow(ctx, r.RemoteIP(), r)
			if err != nil {
				logger.Warn("access rule failed", "path", r.path, "error", err)
				allowed = false
			}
		}

		if !allowed {
			result = ResultDenied
			_ = r.SendStatus(403, "Forbidden")
			keep = false
		} else if err := rt.handler.Serve(r); err != nil {
			result = ResultError
			keep = false
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Debug("handler failed", "path", r.path, "error", err)
		} else {
			result = ResultOK
			keep = r.complete()
		}
	} else {
		keep = r.complete()
	}

	elapsed := time.Since(start)
	span.SetAttributes(attribute.Int("http.status_code", r.status), attribute.String("wiregate.result", result))

	if s.metrics != nil {
		s.metrics.RequestsTotal.WithLabelValues(r.method, result).Inc()
		s.metrics.RequestDuration.WithLabelValues(r.method).Observe(elapsed.Seconds())
	}
	if s.recorder != nil {
		entry := AccessEntry{
			Time:       start.UTC(),
			ConnID:     connID,
			Worker:     w.id,
			RemoteAddr: addrString(r.remote),
			Method:     r.method,
			Path:       r.path,
			Query:      r.query,
			Version:    r.version.String(),
			Status:     r.status,
			BytesSent:  r.bytesSent,
			Duration:   elapsed,
			Result:     result,
		}
		if err := s.recorder.Record(ctx, entry); err != nil {
			logger.Warn("access record failed", "error", err)
		}
	}
	logger.Debug("request served",
		"method", r.method,
		"path", r.path,
		"status", r.status,
		"result", result,
		"duration", elapsed,
	)
	return keep
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
