// Package metrics provides Prometheus metrics for the CGI program.
//
// Each invocation is a fresh process, so there is nothing to scrape. Metrics
// are written to a file for the node exporter's textfile collector instead.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Default histogram buckets for request latency.
var defaultBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}

// Body size buckets, 64 B to 256 MiB.
var bodyBuckets = prometheus.ExponentialBuckets(64, 4, 12)

// Metrics holds all Prometheus metric collectors for the program.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestBodySize prometheus.Histogram

	StorageOperations *prometheus.CounterVec
	LastRequestTime   prometheus.Gauge
}

// New creates a Metrics instance with a custom registry and all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cgi_kvstore_requests_total",
			Help: "CGI requests handled by this invocation.",
		}, []string{"method", "status_code", "route"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cgi_kvstore_request_duration_seconds",
			Help:    "Request handling latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "route"}),

		RequestBodySize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cgi_kvstore_request_body_bytes",
			Help:    "Size of request bodies read from standard input.",
			Buckets: bodyBuckets,
		}),

		StorageOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cgi_kvstore_storage_operations_total",
			Help: "Storage operations by operation and result.",
		}, []string{"operation", "result"}),

		LastRequestTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cgi_kvstore_last_request_timestamp_seconds",
			Help: "Unix time at which the last request finished.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestBodySize,
		m.StorageOperations,
		m.LastRequestTime,
	)

	return m
}

// WriteTextfile writes the current metric values to path in the text
// exposition format. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("metrics: create textfile dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("metrics: write textfile %s: %w", path, err)
	}
	return nil
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// NormalizeRoute returns a bounded route label. Keys are never used as label
// values.
func NormalizeRoute(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	return "/:key"
}
