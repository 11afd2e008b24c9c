package middleware

import (
	"net/http"
	"time"

	"tablero_total/internal/ratelimit"

	"github.com/gin-gonic/gin"
)

// RateLimit blocks a client IP that sends more than maxRequests per window.
// The limiter decides whether counters are shared through Redis.
func RateLimit(l *ratelimit.Limiter, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		endpoint := c.FullPath()
		if !l.Allow(c.Request.Context(), "ip:"+c.ClientIP(), maxRequests, window) {
			RLBlocked.WithLabelValues(endpoint).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": int(window.Seconds()),
			})
			return
		}

		RLRequests.WithLabelValues(endpoint).Inc()
		c.Next()
	}
}
