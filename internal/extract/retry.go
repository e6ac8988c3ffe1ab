package extract

import (
	"context"
	"log/slog"
	"time"
)

// WithRetry wraps an Extractor with bounded retries on transient failures.
// Permanent failures and context cancellation are returned immediately.
type WithRetry struct {
	Inner      Extractor
	MaxRetries int
	Backoff    time.Duration
	Logger     *slog.Logger
}

func NewWithRetry(inner Extractor, maxRetries int, backoff time.Duration, logger *slog.Logger) *WithRetry {
	if logger == nil {
		logger = slog.Default()
	}
	if backoff <= 0 {
		backoff = time.Second
	}
	return &WithRetry{Inner: inner, MaxRetries: maxRetries, Backoff: backoff, Logger: logger}
}

func (r *WithRetry) Extract(ctx context.Context, imagePath, hint string) (Result, []byte, error) {
	var lastErr error
	var raw []byte
	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		if attempt > 0 {
			r.Logger.Warn("extract.retry", "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return Result{}, raw, ctx.Err()
			case <-time.After(r.Backoff):
			}
		}
		res, rawOut, err := r.Inner.Extract(ctx, imagePath, hint)
		raw = rawOut
		if err == nil {
			return res, raw, nil
		}
		if IsPermanent(err) || ctx.Err() != nil {
			return Result{}, raw, err
		}
		lastErr = err
	}
	return Result{}, raw, lastErr
}
