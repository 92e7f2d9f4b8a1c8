package resilience

import "time"

// Config is shared by every backend wired through one Executor. Zero fields take defaults.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64
	// AttemptTimeout bounds a single attempt; zero leaves only the caller deadline.
	AttemptTimeout time.Duration

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// DefaultConfig keeps total retry time well under the search channel timeout.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

type number interface {
	~int | ~uint32 | ~int64 | ~float64
}

func orDefault[T number](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	out := c

	out.RetryMaxAttempts = orDefault(c.RetryMaxAttempts, def.RetryMaxAttempts)
	out.RetryInitialBackoff = orDefault(c.RetryInitialBackoff, def.RetryInitialBackoff)
	out.RetryMaxBackoff = max(orDefault(c.RetryMaxBackoff, def.RetryMaxBackoff), out.RetryInitialBackoff)
	if c.RetryMultiplier < 1 {
		out.RetryMultiplier = def.RetryMultiplier
	}
	out.AttemptTimeout = max(c.AttemptTimeout, 0)

	out.BreakerMinRequests = orDefault(c.BreakerMinRequests, def.BreakerMinRequests)
	out.BreakerOpenTimeout = orDefault(c.BreakerOpenTimeout, def.BreakerOpenTimeout)
	out.BreakerHalfOpenMaxCalls = orDefault(c.BreakerHalfOpenMaxCalls, def.BreakerHalfOpenMaxCalls)
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	return out
}
