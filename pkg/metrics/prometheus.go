package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetchesTotal *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	pointsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		fetchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "histpull_fetches_total",
				Help: "Total number of per-signal fetches by backend and outcome",
			},
			[]string{"backend", "outcome"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "histpull_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		pointsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "histpull_points_total",
				Help: "Total data points retrieved from the archive",
			},
			[]string{"backend"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "histpull_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordFetch records one per-signal fetch attempt.
func (r *Recorder) RecordFetch(backend, outcome string) {
	r.fetchesTotal.WithLabelValues(backend, outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordPoints records retrieved data points.
func (r *Recorder) RecordPoints(backend string, n int) {
	r.pointsTotal.WithLabelValues(backend).Add(float64(n))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
