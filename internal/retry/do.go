package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/repodeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/repodeploy/internal/logfields"
)

// Do runs fn, retrying errors classified as retryable until the policy is exhausted.
// Errors without a retryable classification are returned immediately.
func Do[T any](ctx context.Context, p Policy, logger *slog.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var zero T
	var lastErr error
	for attempt := 0; attempt <= p.Retries; attempt++ {
		if attempt > 0 {
			logger.Warn("Retrying operation", slog.String("operation", op), logfields.Attempt(attempt), logfields.Error(lastErr))
			if err := sleep(ctx, p.Delay(attempt)); err != nil {
				return zero, err
			}
		}
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !errors.IsRetryable(err) {
			return zero, err
		}
	}
	if p.Retries == 0 {
		return zero, lastErr
	}
	return zero, fmt.Errorf("%s failed after %d retries: %w", op, p.Retries, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
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
