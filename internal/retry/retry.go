// Package retry wraps operations against a flaky rendering surface in a
// bounded retry loop. It is not a network retry mechanism: it exists for
// sub-elements that mount asynchronously and may simply not be there yet.
package retry

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Operation is a function that performs an operation that might need retrying.
type Operation func() error

// Do invokes op up to maxAttempts times, sleeping delay between attempts.
// It returns nil on the first success and the last error once attempts are
// exhausted. Context cancellation cuts the loop short.
func Do(ctx context.Context, op Operation, maxAttempts int, delay time.Duration) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			if attempt > 1 {
				log.Debugf("Operation succeeded on attempt %d/%d", attempt, maxAttempts)
			}
			return nil
		}

		if attempt == maxAttempts {
			break
		}

		log.WithError(lastErr).Debugf("Attempt %d/%d failed, retrying in %s", attempt, maxAttempts, delay)
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", maxAttempts, lastErr)
}

// DoWithResult is Do for operations that produce a value.
func DoWithResult[T any](ctx context.Context, op func() (T, error), maxAttempts int, delay time.Duration) (T, error) {
	var result T
	err := Do(ctx, func() error {
		var opErr error
		result, opErr = op()
		return opErr
	}, maxAttempts, delay)
	return result, err
}
