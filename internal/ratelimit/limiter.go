// Package ratelimit throttles unauthenticated endpoints per client IP with
// fixed-window counters in Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultMaxRequests = 20
	DefaultWindow      = 15 * time.Minute
)

// Limiter counts requests per (purpose, ip) in windows of a fixed length.
// A Limiter without a Redis client allows everything.
type Limiter struct {
	client      *redis.Client
	maxRequests int64
	window      time.Duration
}

func NewLimiter(client *redis.Client, maxRequests int, window time.Duration) *Limiter {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{client: client, maxRequests: int64(maxRequests), window: window}
}

// getIPKey generates the Redis key for an IP counter
func getIPKey(purpose, ip string) string {
	return fmt.Sprintf("rate_limit:%s:%s", purpose, ip)
}

// CheckIPRateLimitWithPurpose reports whether ip has used up its requests
// for purpose in the current window.
func (l *Limiter) CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error) {
	if l.client == nil {
		return false, nil
	}

	count, err := l.client.Get(ctx, getIPKey(purpose, ip)).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read rate limit counter: %w", err)
	}
	return count >= l.maxRequests, nil
}

// RecordIPRequestWithPurpose counts one request. The window starts with
// the first request.
func (l *Limiter) RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error {
	if l.client == nil {
		return nil
	}

	key := getIPKey(purpose, ip)
	pipe := l.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record request: %w", err)
	}
	return nil
}
