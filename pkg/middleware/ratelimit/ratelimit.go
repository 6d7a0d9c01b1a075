// Package ratelimit throttles requests per client with token buckets.
package ratelimit

import (
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/nimburion/docquery/pkg/server/router"
)

// RateLimiter decides whether a request for key may proceed.
type RateLimiter interface {
	Allow(key string) bool
}

// TokenBucketLimiter keeps an independent token bucket per key.
type TokenBucketLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewTokenBucketLimiter allows requestsPerSecond on average with bursts up to burst.
func NewTokenBucketLimiter(requestsPerSecond float64, burst int) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		rate:  rate.Limit(requestsPerSecond),
		burst: burst,
	}
}

// Allow consumes a token from key's bucket.
func (l *TokenBucketLimiter) Allow(key string) bool {
	if limiter, ok := l.limiters.Load(key); ok {
		return limiter.(*rate.Limiter).Allow()
	}
	limiter, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(l.rate, l.burst))
	return limiter.(*rate.Limiter).Allow()
}

// KeyFunc extracts the rate limiting key from a request.
type KeyFunc func(router.Context) string

// RateLimit answers 429 with Retry-After when key's bucket is empty.
// A nil keyFunc limits per client IP.
func RateLimit(limiter RateLimiter, keyFunc KeyFunc) router.MiddlewareFunc {
	if keyFunc == nil {
		keyFunc = func(c router.Context) string { return ExtractIPFromRequest(c.Request()) }
	}
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if !limiter.Allow(keyFunc(c)) {
				c.Response().Header().Set("Retry-After", "1")
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"code":    "rate_limit.exceeded",
					"message": "rate limit exceeded",
				})
			}
			return next(c)
		}
	}
}

// ExtractIPFromRequest prefers X-Forwarded-For, then X-Real-IP, then RemoteAddr.
func ExtractIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
