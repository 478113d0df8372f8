package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/juju/ratelimit"
	"github.com/labstack/echo/v4"
)

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	rate    float64
	burst   int64
	mu      sync.RWMutex
	clients map[string]*ratelimit.Bucket
}

func NewRateLimiter(rate float64, burst int64) *RateLimiter {
	rl := &RateLimiter{
		rate:    rate,
		burst:   burst,
		clients: make(map[string]*ratelimit.Bucket),
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) bucket(clientIP string) *ratelimit.Bucket {
	rl.mu.RLock()
	b, ok := rl.clients[clientIP]
	rl.mu.RUnlock()
	if ok {
		return b
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if b, ok = rl.clients[clientIP]; !ok {
		b = ratelimit.NewBucketWithRate(rl.rate, rl.burst)
		rl.clients[clientIP] = b
	}
	return b
}

// cleanup drops idle clients whose buckets refilled completely.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		for ip, b := range rl.clients {
			if b.Available() == b.Capacity() {
				delete(rl.clients, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// Middleware rejects requests once a client's bucket is drained.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			b := rl.bucket(c.RealIP())
			if b.TakeAvailable(1) == 0 {
				c.Response().Header().Set("Retry-After", "1")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
