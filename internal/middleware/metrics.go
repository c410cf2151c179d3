package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GoAITrader/tradegate/internal/pkg/metrics"
)

// MetricsMiddleware observes request latency per route pattern. The route
// template keeps label cardinality bounded; unmatched paths fall back to the
// raw URL.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}
		metrics.LatencyBucket.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}
