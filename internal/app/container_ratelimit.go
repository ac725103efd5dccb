package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"github.com/rufatasadov/sober-driver-backend/internal/config"
	"github.com/rufatasadov/sober-driver-backend/internal/http/middleware/ratelimit"
	"github.com/rufatasadov/sober-driver-backend/internal/logx"
)

func newRateLimiter(cfg *config.Config, clock ratelimit.Clock) ratelimit.Limiter {
	rl := cfg.RateLimit
	if !rl.Enabled {
		return ratelimit.NopLimiter{}
	}
	return ratelimit.NewTokenBucketLimiter(clock, ratelimit.Config{
		Rate:       rl.Rate,
		Burst:      rl.Burst,
		TTL:        rl.TTL,
		MaxBuckets: rl.MaxBuckets,
	})
}

// newLocationLimiter throttles WebSocket location frames per driver. It shares
// the bucket implementation with the HTTP limiter but never disables.
func newLocationLimiter(cfg *config.Config, clock ratelimit.Clock) ratelimit.Limiter {
	return ratelimit.NewTokenBucketLimiter(clock, ratelimit.Config{
		Rate:       cfg.WS.LocationRate,
		Burst:      cfg.WS.LocationBurst,
		TTL:        cfg.RateLimit.TTL,
		MaxBuckets: cfg.RateLimit.MaxBuckets,
	})
}

func newRateLimitClock() ratelimit.Clock {
	return ratelimit.RealClock{}
}

type rateLimitIn struct {
	dig.In
	Logger  logx.Logger
	Counter prometheus.Counter `name:"rate_limit_exceeded_total"`
	Limiter ratelimit.Limiter
}

func newRateLimitMiddleware(in rateLimitIn) *ratelimit.Middleware {
	return ratelimit.New(in.Logger, in.Counter, in.Limiter)
}
