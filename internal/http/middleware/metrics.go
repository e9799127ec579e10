// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file instruments the conversation API with Prometheus. Labels stay
// low-cardinality: the HTTP method, the registered route template (so
// /api/v1/conversation aggregates across users), and the numeric status
// code. Raw URL paths are only used when no route matched.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	reqsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served by the conversation API.",
		},
		[]string{"method", "path", "status"},
	)

	// Latency omits the status label; per-status histograms multiply series
	// without helping the dashboards.
	reqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	reqsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Requests currently being handled.",
		},
	)

	// Bucket range covers feedback acks (a few hundred bytes) up to fully
	// hydrated sessions and large history pages.
	respSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response body size in bytes.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8), // 256B .. 4MiB
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(reqsTotal, reqDuration, reqsInFlight, respSize)
}

// Metrics returns the instrumentation middleware. Mount it ahead of the
// routes and expose promhttp on /metrics:
//
//	r.Use(middleware.Metrics())
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
//
// The path label comes from c.FullPath(); unmatched requests (404s) fall
// back to the raw URL path.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqsInFlight.Inc()
		defer reqsInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		reqsTotal.WithLabelValues(method, path, status).Inc()
		reqDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		// Size is -1 when the handler wrote no body.
		if size := c.Writer.Size(); size >= 0 {
			respSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
