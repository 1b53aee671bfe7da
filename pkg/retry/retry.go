package retry

import (
	"context"
	"errors"
	"time"
)

// RateLimited is implemented by errors that carry a server-requested wait.
type RateLimited interface {
	RetryAfter() time.Duration
}

// Options controls Do.
type Options struct {
	// MaxRetries is the number of retries after the first attempt for
	// non rate-limit failures.
	MaxRetries int
	// Delay is the base backoff delay. Attempt n waits Delay * 2^n.
	Delay time.Duration
	// Sleep waits for d or until ctx is done. Defaults to a timer based sleep.
	Sleep func(ctx context.Context, d time.Duration) error
	// Retryable reports whether a non rate-limit error may be retried.
	// Nil means every error is retryable.
	Retryable func(err error) bool
}

// DefaultOptions mirrors the provider client defaults.
var DefaultOptions = Options{MaxRetries: 3, Delay: time.Second}

// Do invokes fn until it succeeds.
//
// Rate-limit errors are waited out for exactly the requested duration, or
// Delay when that is zero, and do not consume the backoff budget. Other errors back off exponentially and the
// last error is returned unchanged once MaxRetries+1 attempts have failed.
func Do[T any](ctx context.Context, fn func(ctx context.Context) (T, error), opts Options) (T, error) {
	sleep := opts.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	attempt := 0
	for {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return v, err
		}

		var rl RateLimited
		if errors.As(err, &rl) {
			wait := rl.RetryAfter()
			if wait <= 0 {
				wait = minRateLimitWait(opts.Delay)
			}
			if serr := sleep(ctx, wait); serr != nil {
				return v, err
			}
			continue
		}

		if opts.Retryable != nil && !opts.Retryable(err) {
			return v, err
		}
		if attempt >= opts.MaxRetries {
			return v, err
		}
		if serr := sleep(ctx, opts.Delay*time.Duration(1<<attempt)); serr != nil {
			return v, err
		}
		attempt++
	}
}

// minRateLimitWait keeps a zero Retry-After from turning into a hot loop.
func minRateLimitWait(delay time.Duration) time.Duration {
	if delay > 0 {
		return delay
	}
	return time.Second
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
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
