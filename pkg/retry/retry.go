package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookmarkvault/pkg/config"
	errs "bookmarkvault/pkg/errors"
	"bookmarkvault/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func(ctx context.Context) error

// SleepFunc pauses for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy is the single retry policy shared by the bookmark source and the media fetcher
type Policy struct {
	// MaxAttempts is the total number of tries, including the first
	MaxAttempts int
	Backoff     BackoffStrategy
	// RetryIf classifies an error as worth another attempt
	RetryIf func(error) bool
	// OnRetry is called before each retry attempt
	OnRetry func(attempt int, err error, delay time.Duration)
	Sleep   SleepFunc
	Logger  logger.Logger
}

// ExhaustedError is returned when every attempt failed with a retryable error
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("max retry attempts (%d) exceeded: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// IsExhausted reports whether err came from a policy that ran out of attempts
func IsExhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}

// NewPolicy builds a Policy from the retry section of the configuration
func NewPolicy(cfg *config.RetryConfig, log logger.Logger) *Policy {
	return &Policy{
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     BackoffFromConfig(cfg),
		RetryIf:     DefaultRetryIf,
		Sleep:       Wait,
		Logger:      log,
	}
}

// DefaultPolicy returns a policy with sensible defaults
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
		RetryIf:     DefaultRetryIf,
		Sleep:       Wait,
		Logger:      logger.NewNopLogger(),
	}
}

// DefaultRetryIf retries transient network and rate limit errors.
// Unclassified errors are not retried.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}
	return false
}

// TransientOnly retries transient network errors but leaves rate limits to the caller
func TransientOnly(err error) bool {
	return errs.IsType(err, errs.ErrorTypeTransientNetwork)
}

// WithMaxAttempts returns a copy of the policy with a different attempt bound
func (p *Policy) WithMaxAttempts(n int) *Policy {
	cp := *p
	cp.MaxAttempts = n
	return &cp
}

// WithRetryIf returns a copy of the policy with a different classifier
func (p *Policy) WithRetryIf(fn func(error) bool) *Policy {
	cp := *p
	cp.RetryIf = fn
	return &cp
}

// Do executes op until it succeeds, fails with a non-retryable error,
// exhausts MaxAttempts, or ctx is cancelled.
func (p *Policy) Do(ctx context.Context, op Operation) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryIf := p.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Wait
	}
	log := p.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		lastErr = err

		if !retryIf(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		delay := p.Backoff.NextDelay(attempt)
		if ra, ok := errs.RetryAfterOf(err); ok && ra > delay {
			delay = ra
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		log.WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"error":        err.Error(),
			"delay_ms":     delay.Milliseconds(),
			"max_attempts": maxAttempts,
		})

		if err := sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}

	log.WarnWithFields("max retry attempts exceeded", map[string]interface{}{
		"attempts":   maxAttempts,
		"last_error": lastErr.Error(),
	})
	return &ExhaustedError{Attempts: maxAttempts, Last: lastErr}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, p *Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := p.Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}
