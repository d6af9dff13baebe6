package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fandangolas/wallet-ledger/internal/pkg/metrics"
)

// Prometheus collects HTTP metrics, adapted from the teacher's
// internal/api/middleware/prometheus.go against a from-scratch
// internal/pkg/metrics package (the teacher's referenced telemetry
// package was absent from the retrieval pack).
func Prometheus() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		status := strconv.Itoa(c.Writer.Status())

		metrics.HTTPDuration.WithLabelValues(c.Request.Method, endpoint, status).Observe(duration.Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		metrics.Record(c.Request.Method+" "+endpoint, c.Writer.Status(), duration)
	}
}
