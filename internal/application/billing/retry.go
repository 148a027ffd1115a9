package billing

import (
	"context"
	"errors"
	"time"

	"github.com/academy/feebilling/internal/domain/billing"
	"github.com/academy/feebilling/internal/domain/shared"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryConfig controls retries of transient store failures.
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultRetryConfig returns 5 attempts starting at 50ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     5,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2,
	}
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, billing.ErrTransientStore) || errors.Is(err, shared.ErrConcurrencyConflict)
}

type retrier struct {
	config  RetryConfig
	metrics BillingMetrics
	logger  *zap.Logger
}

func (r retrier) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.config.InitialInterval
	b.MaxInterval = r.config.MaxInterval
	b.Multiplier = r.config.Multiplier
	b.MaxElapsedTime = 0

	attempts := r.config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// do runs fn until it succeeds, fails permanently or attempts run out.
// The last error is returned unwrapped.
func (r retrier) do(ctx context.Context, operation string, fn func() error) error {
	return backoff.RetryNotify(func() error {
		err := fn()
		if err == nil || IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, r.policy(ctx), func(err error, wait time.Duration) {
		r.metrics.RecordRetry(ctx, operation)
		r.logger.Debug("Retrying after transient failure",
			zap.String("operation", operation),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
}
