package ratelimit

import "time"

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(key string) bool
}

// Clock is the time source of TokenBucketLimiter.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock.
type RealClock struct{}

// Now implements Clock.
func (RealClock) Now() time.Time { return time.Now() }

// NopLimiter admits everything. Used when rate limiting is disabled.
type NopLimiter struct{}

// Allow implements Limiter.
func (NopLimiter) Allow(string) bool { return true }
