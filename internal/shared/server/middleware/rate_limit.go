package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitRule configures the refill rate and burst for a limiter group.
type RateLimitRule struct {
	Rate  rate.Limit
	Burst int
}

// RateLimiter keeps one token bucket per client key.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rule     RateLimitRule
}

// NewRateLimiter constructs a RateLimiter with the given rule.
func NewRateLimiter(rule RateLimitRule) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rule:     rule,
	}
}

// Allow reports whether the key may proceed under the configured rule.
func (l *RateLimiter) Allow(key string) bool {
	if l == nil || l.rule.Rate <= 0 || l.rule.Burst <= 0 {
		return true
	}
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.rule.Rate, l.rule.Burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// RateLimit throttles requests per client IP using a token bucket.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.ClientIP())
		if limiter.Allow(key) {
			c.Next()
			return
		}
		c.Header("Retry-After", "1")
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":        "rate_limited",
			"retryAfterMs": int(time.Second / time.Millisecond),
		})
		c.Abort()
	}
}
