package http1

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request results, used as the "result" label and in AccessEntry.Result.
const (
	ResultOK        = "ok"
	ResultError     = "error"
	ResultDenied    = "denied"
	ResultUnmatched = "unmatched"
)

// Metrics holds the Prometheus metrics of a Server.
type Metrics struct {
	ConnectionsAccepted prometheus.Counter
	ConnectionsRejected prometheus.Counter
	WorkersBusy         prometheus.Gauge
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ConnectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "wiregate",
				Name:      "connections_accepted_total",
				Help:      "Total number of accepted connections",
			},
		),
		ConnectionsRejected: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "wiregate",
				Name:      "connections_rejected_total",
				Help:      "Connections answered with 503 because every worker was busy",
			},
		),
		WorkersBusy: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "wiregate",
				Name:      "workers_busy",
				Help:      "Number of workers serving a connection",
			},
		),
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wiregate",
				Name:      "requests_total",
				Help:      "Total number of requests served",
			},
			[]string{"method", "result"}, // result=ok/error/denied/unmatched
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "wiregate",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
}
