package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fandangolas/wallet-ledger/internal/config"
)

type rateLimiter struct {
	requests map[string][]time.Time
	mutex    sync.Mutex
	limit    int
	window   time.Duration
}

// RateLimit caps requests per client IP in a sliding window, adapted
// from the teacher's src/diplomat/middleware/ratelimit.go. Spec §5's
// backpressure note calls for bounding in-flight load; this is the
// edge-level half of that, ahead of the connection-pool bound.
func RateLimit(cfg *config.Config) gin.HandlerFunc {
	limiter := &rateLimiter{
		requests: make(map[string][]time.Time),
		limit:    cfg.RateLimit.RequestsPerMinute,
		window:   cfg.RateLimit.Window,
	}

	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		limiter.mutex.Lock()
		defer limiter.mutex.Unlock()

		now := time.Now()

		if requests, exists := limiter.requests[clientIP]; exists {
			var valid []time.Time
			for _, reqTime := range requests {
				if now.Sub(reqTime) < limiter.window {
					valid = append(valid, reqTime)
				}
			}
			limiter.requests[clientIP] = valid
		}

		if len(limiter.requests[clientIP]) >= limiter.limit {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded, try again later",
				"retry_after": int(limiter.window.Seconds()),
			})
			c.Abort()
			return
		}

		limiter.requests[clientIP] = append(limiter.requests[clientIP], now)
		c.Next()
	}
}
