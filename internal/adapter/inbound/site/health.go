package site

import (
	"runtime"

	"github.com/goccy/go-json"

	"github.com/Sentinel-Gate/wiregate/pkg/http1"
)

// HealthResponse is the JSON body served by HealthHandler.
type HealthResponse struct {
	Status     string   `json:"status"` // "healthy" or "unhealthy"
	Server     string   `json:"server"`
	Paths      []string `json:"paths"`
	Goroutines int      `json:"goroutines"`
	Version    string   `json:"version,omitempty"`

	Requests map[string]int64 `json:"requests,omitempty"`
}

// StatusSource is the part of the server a health check reads.
type StatusSource interface {
	Status() http1.ServerStatus
	Paths() []string
}

// HealthHandler reports whether the server is running.
type HealthHandler struct {
	src     StatusSource
	version string
	counts  func() map[string]int64
}

// NewHealthHandler creates a HealthHandler for src.
func NewHealthHandler(src StatusSource, version string) *HealthHandler {
	return &HealthHandler{src: src, version: version}
}

// WithCounts adds per-result request counters to the report.
func (h *HealthHandler) WithCounts(counts func() map[string]int64) *HealthHandler {
	h.counts = counts
	return h
}

// Check builds the current health report.
func (h *HealthHandler) Check() HealthResponse {
	st := h.src.Status()
	resp := HealthResponse{
		Status:     "healthy",
		Server:     st.String(),
		Paths:      h.src.Paths(),
		Goroutines: runtime.NumGoroutine(),
		Version:    h.version,
	}
	if h.counts != nil {
		resp.Requests = h.counts()
	}
	if st != http1.ServerRunning {
		resp.Status = "unhealthy"
	}
	return resp
}

// Serve implements http1.Handler.
func (h *HealthHandler) Serve(r *http1.Request) error {
	health := h.Check()
	body, err := json.Marshal(health)
	if err != nil {
		return err
	}
	if health.Status != "healthy" {
		return sendFixed(r, 503, "Service Unavailable", "application/json", body)
	}
	return sendFixed(r, 200, "OK", "application/json", body)
}
