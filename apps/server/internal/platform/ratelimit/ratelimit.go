// Package ratelimit provides a Redis-backed fixed-window rate limiter.
// State lives in Redis so limits hold across server replicas.
package ratelimit

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Limiter counts requests per key in fixed windows.
type Limiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
}

// New creates a Limiter allowing limit requests per window.
func New(rdb *redis.Client, limit int, window time.Duration) *Limiter {
	return &Limiter{rdb: rdb, limit: limit, window: window}
}

// Allow consumes one request for key and reports whether it fits the window.
func (l *Limiter) Allow(c *gin.Context, key string) (bool, error) {
	ctx := c.Request.Context()
	windowStart := time.Now().Unix() / int64(l.window.Seconds())
	bucket := fmt.Sprintf("ratelimit:%s:%d", key, windowStart)

	count, err := l.rdb.Incr(ctx, bucket).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit incr: %w", err)
	}
	if count == 1 {
		// First hit creates the bucket; bound its lifetime to the window.
		if err := l.rdb.Expire(ctx, bucket, l.window).Err(); err != nil {
			return false, fmt.Errorf("ratelimit expire: %w", err)
		}
	}
	return count <= int64(l.limit), nil
}

// Middleware limits requests per client IP. Redis failures let the request
// through; throttling is protection, not a correctness gate.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := l.Allow(c, c.ClientIP())
		if err != nil {
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
