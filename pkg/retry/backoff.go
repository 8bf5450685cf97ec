package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"bookmarkvault/pkg/config"
)

// BackoffStrategy yields the pause after a failed attempt
type BackoffStrategy interface {
	// NextDelay returns the delay to wait after the given failed attempt (1-based)
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff grows the delay by Multiplier per attempt up to MaxDelay,
// then spreads it by +/- JitterFactor
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

// DefaultExponentialBackoff is 1s doubling to 30s with 10% jitter
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		JitterFactor: 0.1,
	}
}

// BackoffFromConfig builds the exponential backoff described by cfg
func BackoffFromConfig(cfg *config.RetryConfig) *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    cfg.BaseDelay,
		MaxDelay:     cfg.MaxDelay,
		Multiplier:   cfg.Multiplier,
		JitterFactor: cfg.Jitter,
	}
}

// NextDelay implements BackoffStrategy
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 || eb.BaseDelay <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay)
	limit := float64(eb.MaxDelay)
	for i := 1; i < attempt; i++ {
		delay *= eb.Multiplier
		if limit > 0 && delay >= limit {
			break
		}
	}
	if limit > 0 && delay > limit {
		delay = limit
	}

	if eb.JitterFactor > 0 {
		delay *= 1 + eb.JitterFactor*(2*rand.Float64()-1)
	}
	return max(time.Duration(delay), 0)
}

// ConstantBackoff waits the same Delay after every attempt
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay implements BackoffStrategy
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait sleeps for d or until ctx is done, whichever comes first
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
