package service

import (
	"context"
	"time"

	dErrors "custodia/pkg/domain-errors"
)

// BackoffConfig configures retry backoff for retryable store errors.
type BackoffConfig struct {
	InitialDelay time.Duration // delay before first retry (default: 100ms)
	MaxDelay     time.Duration // maximum delay between retries (default: 2s)
	MaxRetries   int           // maximum number of retries (default: 3)
	Multiplier   float64       // multiplier for exponential backoff (default: 2.0)
}

func (b BackoffConfig) withDefaults() BackoffConfig {
	if b.InitialDelay == 0 {
		b.InitialDelay = 100 * time.Millisecond
	}
	if b.MaxDelay == 0 {
		b.MaxDelay = 2 * time.Second
	}
	if b.MaxRetries == 0 {
		b.MaxRetries = 3
	}
	if b.Multiplier == 0 {
		b.Multiplier = 2.0
	}
	return b
}

// withBackoff runs fn, retrying with exponential backoff while the error is
// retryable. Non-retryable errors return immediately; access decisions and
// audit appends are never silently repeated past the store layer.
func withBackoff(ctx context.Context, backoff BackoffConfig, fn func() error) error {
	var lastErr error
	delay := backoff.InitialDelay

	for attempt := 0; attempt <= backoff.MaxRetries; attempt++ {
		// Wait before retry (skip on first attempt)
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return dErrors.Wrap(ctx.Err(), dErrors.CodeStoreUnavailable, "retry aborted")
			case <-time.After(delay):
			}

			delay = time.Duration(float64(delay) * backoff.Multiplier)
			if delay > backoff.MaxDelay {
				delay = backoff.MaxDelay
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !dErrors.Retryable(err) {
			return err
		}
	}

	return lastErr
}
