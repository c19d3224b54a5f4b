// Package metrics provides Prometheus metrics for rewind.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Tree expansion metrics
	nodeLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewind_node_loads_total",
			Help: "Total number of node expansions that reached the query service",
		},
		[]string{"kind", "result"},
	)

	nodeLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rewind_node_load_duration_seconds",
			Help:    "Time to materialize a node's children",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	nodeLoadsShared = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewind_node_loads_shared_total",
			Help: "Expansions answered from the cache or an in-flight request",
		},
		[]string{"kind"},
	)

	// Query service metrics
	gitCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewind_git_queries_total",
			Help: "Total number of version-control queries",
		},
		[]string{"backend", "op", "result"},
	)

	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewind_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rewind_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Refresh metrics
	invalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewind_invalidations_total",
			Help: "Repository invalidations triggered by the refresh watcher",
		},
		[]string{"source"},
	)

	websocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rewind_websocket_clients",
			Help: "Number of connected websocket clients",
		},
	)
)

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordNodeLoad records one expansion that went to the query service.
func RecordNodeLoad(kind string, duration time.Duration, err error) {
	nodeLoadsTotal.WithLabelValues(kind, result(err)).Inc()
	nodeLoadDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordSharedLoad records an expansion served without a new query.
func RecordSharedLoad(kind string) {
	nodeLoadsShared.WithLabelValues(kind).Inc()
}

// RecordGitQuery records a query against a backend.
func RecordGitQuery(backend, op string, err error) {
	gitCommandsTotal.WithLabelValues(backend, op, result(err)).Inc()
}

// RecordInvalidation records a repository invalidation.
func RecordInvalidation(source string) {
	invalidationsTotal.WithLabelValues(source).Inc()
}

// SetWebsocketClients sets the connected client gauge.
func SetWebsocketClients(n int) {
	websocketClients.Set(float64(n))
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and latency under the given route label.
func Middleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
