// Package retry re-runs a failing step with exponential backoff.
//
// Only errors marked with Retryable are retried. Anything else stops the
// loop immediately and is returned unchanged.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Policy bounds a retry loop. The delay doubles after every failed
// attempt and is capped at MaxDelay.
type Policy struct {
	Attempts int           // total tries including the first; < 1 means 1
	Delay    time.Duration // wait after the first failure
	MaxDelay time.Duration // upper bound for a single wait; 0 means no cap
}

// ErrExhausted is wrapped by the error Do returns when every attempt failed.
var ErrExhausted = errors.New("retries exhausted")

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable marks err as worth another attempt. Retryable(nil) is nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether err carries the Retryable mark.
func IsRetryable(err error) bool {
	var r *retryableError
	return errors.As(err, &r)
}

// Do runs fn until it succeeds, returns an unmarked error, ctx ends or the
// policy's attempts are used up. After the last attempt the error wraps
// both ErrExhausted and fn's final error.
func Do(ctx context.Context, p Policy, logger *slog.Logger, name string, fn func(ctx context.Context) error) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	attempts := max(p.Attempts, 1)

	var (
		attempt int
		last    error
	)
	err := goretry.Do(ctx, backoff(p, attempts), func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("step succeeded after retry", "step", name, "attempt", attempt)
			}
			last = nil
			return nil
		}

		var r *retryableError
		if !errors.As(err, &r) {
			last = nil
			return err
		}
		last = r.err
		logger.Warn("step failed",
			"step", name,
			"attempt", attempt,
			"max_attempts", attempts,
			"error", last,
		)
		return goretry.RetryableError(last)
	})

	switch {
	case err == nil:
		return nil
	case last != nil && attempt >= attempts:
		logger.Error("step gave up", "step", name, "attempts", attempt)
		return fmt.Errorf("%s: %w after %d attempts: %w", name, ErrExhausted, attempt, last)
	default:
		return err
	}
}

func backoff(p Policy, attempts int) goretry.Backoff {
	delay := p.Delay
	if delay <= 0 {
		delay = time.Millisecond
	}
	b := goretry.NewExponential(delay)
	if p.MaxDelay > 0 {
		b = goretry.WithCappedDuration(p.MaxDelay, b)
	}
	return goretry.WithMaxRetries(uint64(attempts-1), b)
}
