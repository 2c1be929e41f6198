// Package metrics exposes Prometheus counters and histograms for the sync
// server, grounded on bazel-remote's cache/disk/metrics.go decorator: a
// label-carrying CounterVec per operation plus a duration HistogramVec,
// registered once and served over promhttp at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels, mirroring bazel-remote's hit/miss status labels.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultQuota   = "quota_exceeded"
	ResultMissing = "not_found"
)

// Operation labels for the requests counter.
const (
	OpUpload   = "upload"
	OpDownload = "download"
	OpDelete   = "delete"
	OpList     = "list"
	OpRegister = "register"
	OpLogin    = "login"
)

// Registry bundles the server's metrics and registers them against a
// dedicated prometheus.Registry rather than the global default, so tests can
// construct throwaway instances without collector-already-registered panics.
type Registry struct {
	Requests         *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	BytesTransferred *prometheus.CounterVec
	StorageUsed      prometheus.Gauge

	reg *prometheus.Registry
}

// New builds and registers a fresh Registry.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "syncpod_requests_total",
			Help: "Total API requests by operation and result.",
		}, []string{"op", "result"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "syncpod_request_duration_seconds",
			Help:    "API request latency by operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		BytesTransferred: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "syncpod_bytes_transferred_total",
			Help: "Bytes transferred by operation direction.",
		}, []string{"op"}),
		StorageUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "syncpod_blob_store_bytes",
			Help: "Approximate bytes held in the blob store across all users.",
		}),
	}

	r.reg.MustRegister(r.Requests, r.RequestDuration, r.BytesTransferred, r.StorageUsed)

	return r
}

// Registerer exposes the underlying registry as a prometheus.Gatherer for
// promhttp.
func (r *Registry) Registerer() prometheus.Gatherer {
	return r.reg
}

// Observe records one completed operation's outcome and duration.
func (r *Registry) Observe(op, result string, duration time.Duration) {
	r.Requests.WithLabelValues(op, result).Inc()
	r.RequestDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// AddBytes adds n to the running transferred-bytes counter for op.
func (r *Registry) AddBytes(op string, n int64) {
	if n <= 0 {
		return
	}

	r.BytesTransferred.WithLabelValues(op).Add(float64(n))
}
