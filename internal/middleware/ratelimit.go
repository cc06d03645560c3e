package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimit returns per-client rate limiting middleware using token buckets.
// Clients are identified by the API key the auth middleware accepted, or by
// their IP when auth is off.
//
// Token bucket algorithm: each client gets a bucket that fills at `rps`
// tokens/sec up to `burst` tokens. Each request consumes one token; an empty
// bucket means 429.
//
// sync.Mutex protects the map of limiters from concurrent goroutine access.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	return func(c *gin.Context) {
		client := c.GetString(ContextKeyAPIKey)
		if client == "" {
			client = "ip:" + c.ClientIP()
		}

		mu.Lock()
		limiter, exists := limiters[client]
		if !exists {
			limiter = rate.NewLimiter(rate.Limit(rps), burst)
			limiters[client] = limiter
		}
		mu.Unlock()

		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}
