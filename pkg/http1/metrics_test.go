package http1

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	if m.ConnectionsAccepted == nil || m.ConnectionsRejected == nil {
		t.Error("connection counters not initialized")
	}
	if m.WorkersBusy == nil {
		t.Error("WorkersBusy not initialized")
	}
	if m.RequestsTotal == nil || m.RequestDuration == nil {
		t.Error("request metrics not initialized")
	}
}

func TestMetricsRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RequestsTotal.WithLabelValues("GET", ResultDenied).Inc()
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", ResultDenied)); got != 1 {
		t.Errorf("RequestsTotal = %v, want 1", got)
	}

	m.WorkersBusy.Set(3)
	if got := testutil.ToFloat64(m.WorkersBusy); got != 3 {
		t.Errorf("WorkersBusy = %v, want 3", got)
	}

	m.RequestDuration.WithLabelValues("POST").Observe(0.25)
	gathered, err := reg.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	found := false
	for _, mf := range gathered {
		if mf.GetName() == "wiregate_request_duration_seconds" {
			found = true
		}
		if !strings.HasPrefix(mf.GetName(), "wiregate_") {
			t.Errorf("metric %q outside the wiregate namespace", mf.GetName())
		}
	}
	if !found {
		t.Error("request duration histogram not gathered")
	}
}
