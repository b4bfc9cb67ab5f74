package ratelimit

import (
	"math"
	"net/http"
	"strconv"

	"tradeline/internal/metrics"
	"tradeline/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Middleware throttles by client IP within scope.
//
// Redis errors fail open: the request proceeds and the error is logged,
// so a cache outage never blocks provider webhooks.
func Middleware(l *Limiter, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Enabled() {
			c.Next()
			return
		}

		d, err := l.Allow(c.Request.Context(), scope, c.ClientIP())
		if err != nil {
			logger.FromGin(c).Warn("rate limiter unavailable, allowing request", "scope", scope, "err", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(l.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			secs := int(math.Ceil(d.RetryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			metrics.WebhookRequests.WithLabelValues(scope, "rate_limited").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
