package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/crewdeck/crewdeck/pkg/errors"
	"github.com/crewdeck/crewdeck/pkg/logger"
	"github.com/crewdeck/crewdeck/pkg/metrics"
	"github.com/crewdeck/crewdeck/pkg/response"
)

// RateLimit bounds requests per client within a fixed window using the
// supplied store. Counters are keyed by forwarded client address, so all
// unidentified clients share one bucket.
func RateLimit(store RateStore, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil || maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		key := "ratelimit:" + clientKey(c)

		count, ttl, err := store.Increment(c.Request.Context(), key, window)
		if err != nil {
			// Fail open when the counter backend is unavailable.
			logger.WithModule("ratelimit").Warn("increment failed", zap.Error(err))
			c.Next()
			return
		}

		remaining := maxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		resetSeconds := int(ttl.Round(time.Second).Seconds())
		if resetSeconds < 0 {
			resetSeconds = 0
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(resetSeconds))

		if count > maxRequests {
			metrics.RateLimited.Inc()
			c.Header("Retry-After", strconv.Itoa(resetSeconds))
			response.Error(c, appErrors.ErrRateLimit)
			c.Abort()
			return
		}

		c.Next()
	}
}

// clientKey identifies the caller from proxy headers. The first entry of
// X-Forwarded-For wins, then X-Real-IP, then a shared fallback bucket.
func clientKey(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		if first, _, found := strings.Cut(forwarded, ","); found {
			forwarded = first
		}
		if addr := strings.TrimSpace(forwarded); addr != "" {
			return addr
		}
	}

	if realIP := strings.TrimSpace(c.GetHeader("X-Real-IP")); realIP != "" {
		return realIP
	}

	return "unknown"
}
