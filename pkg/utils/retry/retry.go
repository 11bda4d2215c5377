package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRetry tells Blocking to call the function again after backoff.
	ErrRetry = errors.New("retry")

	// ErrExhausted is returned by a Limited backoff when no attempts are left.
	ErrExhausted = errors.New("retry attempts exhausted")
)

// Backoff is a (blocking) function returns when to retry.
//
// # Args
//
// - context: context. If context is canceled, Backoff should return ctx.Err().
//
// # Returns
//
// - error: nil if retry, non-nil if not.
type Backoff func(context.Context) error

// StaticBackoff returns a Backoff function that waits for a fixed interval.
func StaticBackoff(interval time.Duration) Backoff {
	return ExponentialBackoff(interval, 1)
}

// ExponentialBackoff returns a Backoff function that waits with exponential backoff.
//
// # Args
//
// - initialInterval: initial interval.
//
// - r: multiplier of interval.
//
// # Returns
//
// Backoff function.
// For N-th call, it waits for `initialInterval * r^N` or context to be done.
func ExponentialBackoff(initialInterval time.Duration, r float64) Backoff {
	interval := initialInterval
	return func(ctx context.Context) error {
		timer := time.NewTimer(interval)
		defer func() {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			i := float64(interval) * r
			interval = time.Duration(int64(i))
			return nil
		}
	}
}

// Immediate returns a Backoff which does not wait at first call,
// and then waits as `then` does.
func Immediate(then Backoff) Backoff {
	first := true
	return func(ctx context.Context) error {
		if first {
			first = false
			return ctx.Err()
		}
		return then(ctx)
	}
}

// Limited allows at most `attempts` calls of b.
// After that, it returns ErrExhausted.
func Limited(attempts int, b Backoff) Backoff {
	left := attempts
	return func(ctx context.Context) error {
		if left <= 0 {
			return ErrExhausted
		}
		left -= 1
		return b(ctx)
	}
}

// Blocking calls f until it returns nil or non-retry error.
//
// # Args
//
// - ctx: context
//
// - b: backoff function. It is called before each call of f.
//
// - f: function to be called. If f returns ErrRetry, Blocking calls f again after backoff.
//
// # Returns
//
// - T: last return value of f
//
// - error: error returned by f, or by b.
// When b gives up with ErrExhausted, the last error from f is joined.
func Blocking[T any](ctx context.Context, b Backoff, f func() (T, error)) (T, error) {
	last := *new(T)
	var lastErr error
	for {
		if err := b(ctx); err != nil {
			if lastErr != nil {
				return last, fmt.Errorf("%w: %w", err, lastErr)
			}
			return last, err
		}

		var err error
		last, err = f()
		if err == nil {
			return last, nil
		}
		if errors.Is(err, ErrRetry) {
			lastErr = err
			continue
		}
		return last, err
	}
}
