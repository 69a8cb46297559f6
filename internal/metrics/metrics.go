// Package metrics provides Prometheus instrumentation for the settlement
// service.
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
	// SettlementsTotal counts settlements computed, partitioned by
	// transaction kind and whether the result was persisted or a preview.
	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emlak_settlements_total",
		Help: "Total number of settlements computed",
	}, []string{"kind", "mode"})

	// ComputeLatency tracks settlement engine latency by transaction kind.
	ComputeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "emlak_settlement_compute_seconds",
		Help:    "Settlement computation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// ValidationRejections counts inputs rejected by the engine.
	ValidationRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emlak_settlement_validation_rejections_total",
		Help: "Settlement inputs rejected by validation",
	})

	// LossSettlements counts recorded settlements with negative net profit.
	LossSettlements = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emlak_settlements_loss_total",
		Help: "Recorded settlements that settled at a loss",
	})

	// AdvisoryWarnings counts advisory findings by warning code.
	AdvisoryWarnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emlak_settlement_warnings_total",
		Help: "Advisory warnings raised on computed settlements",
	}, []string{"code"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "emlak_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emlak_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "emlak_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
