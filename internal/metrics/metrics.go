package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestTotal counts HTTP requests by method, route and status.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trinodbc_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	// RequestDuration is the latency of HTTP requests.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trinodbc_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	// OperationsTotal counts registry operations (open_connection, execute, fetch, ...).
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trinodbc_operations_total",
			Help: "Total number of registry operations",
		},
		[]string{"operation", "status"},
	)
	// BackendDuration is the time spent inside engine calls.
	BackendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trinodbc_backend_call_duration_seconds",
			Help:    "Latency of query engine calls in seconds",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 15, 60, 300},
		},
		[]string{"operation"},
	)
	// RowsFetched counts rows returned to clients.
	RowsFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trinodbc_rows_fetched_total",
			Help: "Total number of rows returned by fetch",
		},
	)
	// OpenConnections is the number of live connections in the registry.
	OpenConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trinodbc_open_connections",
			Help: "Number of open engine connections",
		},
	)
	// OpenCursors is the number of live cursors in the registry.
	OpenCursors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trinodbc_open_cursors",
			Help: "Number of open cursors",
		},
	)
)

// ObserveOperation records the outcome and backend latency of one registry operation.
func ObserveOperation(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	OperationsTotal.WithLabelValues(operation, status).Inc()
	BackendDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
