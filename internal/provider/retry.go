package provider

import (
	"context"
	"time"
)

// Retry calls fn until it succeeds, returns a Permanent error, or retries are
// exhausted. Waits between attempts double from base: with retries=3 and
// base=1s the delays are 1s, 2s, 4s.
func Retry(ctx context.Context, retries int, base time.Duration, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		// Wait before retry (skip on first attempt)
		if attempt > 0 {
			delay := base << (attempt - 1)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return err
		}
		lastErr = err
	}

	return lastErr
}
