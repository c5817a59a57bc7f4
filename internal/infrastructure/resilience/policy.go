package resilience

import (
	"time"

	"golang.org/x/time/rate"
)

type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

type BreakerPolicy struct {
	Enabled          bool
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

// RateLimitPolicy throttles attempts across all operations of one executor. RPS 0 disables it.
type RateLimitPolicy struct {
	RPS   float64
	Burst int
}

type Config struct {
	Retry     RetryPolicy
	Breaker   BreakerPolicy
	RateLimit RateLimitPolicy
}

func DefaultConfig() Config {
	return Config{
		Retry: RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     400 * time.Millisecond,
			Multiplier:     2.0,
		},
		Breaker: BreakerPolicy{
			Enabled:          true,
			MinRequests:      10,
			FailureRatio:     0.5,
			OpenTimeout:      30 * time.Second,
			HalfOpenMaxCalls: 2,
		},
	}
}

func (p RateLimitPolicy) limiter() *rate.Limiter {
	if p.RPS <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(p.RPS), max(p.Burst, 1))
}

// normalize fills unset or out-of-range fields from DefaultConfig.
func (c Config) normalize() Config {
	def := DefaultConfig()
	out := c

	out.Retry.MaxAttempts = orDefault(out.Retry.MaxAttempts, def.Retry.MaxAttempts)
	out.Retry.InitialBackoff = orDefault(out.Retry.InitialBackoff, def.Retry.InitialBackoff)
	out.Retry.MaxBackoff = max(orDefault(out.Retry.MaxBackoff, def.Retry.MaxBackoff), out.Retry.InitialBackoff)
	if out.Retry.Multiplier < 1.0 {
		out.Retry.Multiplier = def.Retry.Multiplier
	}

	out.Breaker.MinRequests = orDefault(out.Breaker.MinRequests, def.Breaker.MinRequests)
	out.Breaker.OpenTimeout = orDefault(out.Breaker.OpenTimeout, def.Breaker.OpenTimeout)
	out.Breaker.HalfOpenMaxCalls = orDefault(out.Breaker.HalfOpenMaxCalls, def.Breaker.HalfOpenMaxCalls)
	if out.Breaker.FailureRatio <= 0 || out.Breaker.FailureRatio > 1 {
		out.Breaker.FailureRatio = def.Breaker.FailureRatio
	}
	return out
}

func orDefault[T int | uint32 | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}
