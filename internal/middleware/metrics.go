package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// WebSocket specific metrics
	wsConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_connections_total",
			Help: "Total number of WebSocket connections",
		},
	)

	wsActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	// =========================================================================
	// Business Metrics - call signaling
	// =========================================================================

	callsInitiatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calls_initiated_total",
			Help: "Total number of call invitations, by kind (direct/random)",
		},
		[]string{"kind"},
	)

	callsResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calls_resolved_total",
			Help: "Total number of resolved calls, by final status",
		},
		[]string{"status"},
	)

	callsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "calls_active",
			Help: "Number of calls currently accepted and running",
		},
	)

	eligibilityChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibility_checks_total",
			Help: "Total eligibility evaluations, by outcome",
		},
		[]string{"eligible"},
	)
)

// MetricsMiddleware returns a Gin middleware that collects Prometheus metrics
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		httpRequestsInFlight.Inc()

		c.Next()

		httpRequestsInFlight.Dec()
		duration := time.Since(start).Seconds()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns the Prometheus metrics handler for Gin
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordWebSocketConnection increments WebSocket connection counters
func RecordWebSocketConnection() {
	wsConnectionsTotal.Inc()
	wsActiveConnections.Inc()
}

// RecordWebSocketDisconnection decrements active WebSocket connection gauge
func RecordWebSocketDisconnection() {
	wsActiveConnections.Dec()
}

// RecordCallInitiated increments the invitation counter for a call kind.
func RecordCallInitiated(kind string) {
	callsInitiatedTotal.WithLabelValues(kind).Inc()
}

// RecordCallAccepted marks a call as running.
func RecordCallAccepted() {
	callsActive.Inc()
}

// RecordCallResolved records the final status of a call and, for calls
// that were running, decrements the active gauge.
func RecordCallResolved(status string, wasActive bool) {
	callsResolvedTotal.WithLabelValues(status).Inc()
	if wasActive {
		callsActive.Dec()
	}
}

// RecordEligibilityCheck counts one evaluation outcome.
func RecordEligibilityCheck(eligible bool) {
	eligibilityChecksTotal.WithLabelValues(strconv.FormatBool(eligible)).Inc()
}
