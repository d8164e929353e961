// internal/metrics/metrics.go
package metrics

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
			Name: "gmatrix_http_requests_total",
			Help: "Total HTTP requests by method, route, and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gmatrix_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	votesSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gmatrix_votes_submitted_total",
			Help: "Votes accepted into product aggregates.",
		},
	)

	visionCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gmatrix_vision_calls_total",
			Help: "Photo analysis calls by outcome.",
		},
		[]string{"outcome"},
	)
)

// Middleware records request counts and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		httpRequestsTotal.WithLabelValues(
			c.Request.Method, route, strconv.Itoa(c.Writer.Status()),
		).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).
			Observe(time.Since(start).Seconds())
	}
}

// Handler serves the Prometheus scrape endpoint.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func RecordVoteSubmitted() {
	votesSubmitted.Inc()
}

func RecordVisionCall(outcome string) {
	visionCalls.WithLabelValues(outcome).Inc()
}
