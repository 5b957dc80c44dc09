package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter implements rate limiting for API endpoints
type RateLimiter struct {
	ipLimiters       map[string]*rate.Limiter
	workerLimiters   map[string]*rate.Limiter
	ipMutex          sync.RWMutex
	workerMutex      sync.RWMutex
	ipLimiterRate    rate.Limit
	workerLimiterRate rate.Limit
	ipBurst          int
	workerBurst      int
	cleanupTicker    *time.Ticker
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(ipRequestsPerSecond, workerRequestsPerMinute float64, ipBurst, workerBurst int) *RateLimiter {
	limiter := &RateLimiter{
		ipLimiters:        make(map[string]*rate.Limiter),
		workerLimiters:    make(map[string]*rate.Limiter),
		ipLimiterRate:     rate.Limit(ipRequestsPerSecond),
		workerLimiterRate: rate.Limit(workerRequestsPerMinute / 60), // Convert to per-second rate
		ipBurst:           ipBurst,
		workerBurst:       workerBurst,
		cleanupTicker:     time.NewTicker(5 * time.Minute),
	}

	// Start cleanup goroutine
	go limiter.cleanup()

	return limiter
}

// cleanup periodically removes old limiters to prevent memory leaks
func (rl *RateLimiter) cleanup() {
	for range rl.cleanupTicker.C {
		rl.ipMutex.Lock()
		rl.ipLimiters = make(map[string]*rate.Limiter)
		rl.ipMutex.Unlock()

		rl.workerMutex.Lock()
		rl.workerLimiters = make(map[string]*rate.Limiter)
		rl.workerMutex.Unlock()
	}
}

// Stop stops the rate limiter cleanup
func (rl *RateLimiter) Stop() {
	rl.cleanupTicker.Stop()
}

// getIPLimiter returns the rate limiter for an IP
func (rl *RateLimiter) getIPLimiter(ip string) *rate.Limiter {
	rl.ipMutex.RLock()
	limiter, exists := rl.ipLimiters[ip]
	rl.ipMutex.RUnlock()

	if !exists {
		rl.ipMutex.Lock()
		limiter = rate.NewLimiter(rl.ipLimiterRate, rl.ipBurst)
		rl.ipLimiters[ip] = limiter
		rl.ipMutex.Unlock()
	}

	return limiter
}

// getWorkerLimiter returns the rate limiter for verification submissions
// against a single worker.
func (rl *RateLimiter) getWorkerLimiter(key string) *rate.Limiter {
	rl.workerMutex.RLock()
	limiter, exists := rl.workerLimiters[key]
	rl.workerMutex.RUnlock()

	if !exists {
		rl.workerMutex.Lock()
		limiter = rate.NewLimiter(rl.workerLimiterRate, rl.workerBurst)
		rl.workerLimiters[key] = limiter
		rl.workerMutex.Unlock()
	}

	return limiter
}

// IPRateLimiterMiddleware limits requests based on IP address
func (rl *RateLimiter) IPRateLimiterMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		limiter := rl.getIPLimiter(ip)

		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// SubmissionRateLimiterMiddleware limits verification submissions per worker.
// External check providers bill per request, so a stuck client retry loop
// against one worker must not burn through the quota.
func (rl *RateLimiter) SubmissionRateLimiterMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		workerID := c.Param("worker_id")
		if workerID == "" {
			c.Next()
			return
		}

		limiter := rl.getWorkerLimiter(workerID)
		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "too many verification submissions for this worker, please try again later",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
