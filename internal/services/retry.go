package services

import (
	"context"
	"log/slog"
	"time"

	"bilancio/internal/core"
)

const (
	retryInitialDelay = time.Second
	retryMaxDelay     = 30 * time.Second
)

// backoff returns the wait before retry number attempt (0-based): 1s doubling, capped at 30s.
func backoff(attempt int) time.Duration {
	d := retryInitialDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= retryMaxDelay {
			return retryMaxDelay
		}
	}
	return d
}

// sleep waits for d or until ctx is done. Tests replace it.
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retry calls fn up to attempts times while it fails with a retryable
// LedgerError. Every engine operation is a single batch, so a retry never
// duplicates a partially applied write.
func Retry(ctx context.Context, op string, attempts int, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil || !core.IsRetryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}
		delay := backoff(attempt)
		slog.WarnContext(ctx, "Retrying ledger operation",
			"op", op,
			"attempt", attempt+1,
			"delay", delay,
			"error", err)
		if serr := sleep(ctx, delay); serr != nil {
			return err
		}
	}
	return err
}
