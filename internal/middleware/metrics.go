package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crewdeck/crewdeck/pkg/metrics"
)

// Metrics observes per-request latency, labelled by method, route template,
// and status. The template keeps cardinality bounded; raw paths appear only
// for requests that never matched a route.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		metrics.APILatency.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
