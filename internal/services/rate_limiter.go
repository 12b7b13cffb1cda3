package services

import (
	"time"

	cache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// UserRateLimiter is a token bucket per user. Idle buckets expire after 30 minutes.
type UserRateLimiter struct {
	limiters *cache.Cache
	limit    rate.Limit
	burst    int
}

// NewUserRateLimiter allows perMinute messages per user with the given burst.
// perMinute <= 0 disables limiting.
func NewUserRateLimiter(perMinute, burst int) *UserRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60.0)
	}
	return &UserRateLimiter{
		limiters: cache.New(30*time.Minute, 10*time.Minute),
		limit:    limit,
		burst:    burst,
	}
}

// Allow consumes one token for userID
func (l *UserRateLimiter) Allow(userID string) bool {
	return l.limiter(userID).Allow()
}

func (l *UserRateLimiter) limiter(userID string) *rate.Limiter {
	if cached, ok := l.limiters.Get(userID); ok {
		// touch to extend the idle expiry
		l.limiters.SetDefault(userID, cached)
		return cached.(*rate.Limiter)
	}

	newLimiter := rate.NewLimiter(l.limit, l.burst)
	// another goroutine may have created it first
	if err := l.limiters.Add(userID, newLimiter, cache.DefaultExpiration); err != nil {
		if cached, ok := l.limiters.Get(userID); ok {
			return cached.(*rate.Limiter)
		}
	}
	return newLimiter
}
