package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/academy/feebilling/internal/domain/billing"
	"github.com/academy/feebilling/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(billing.ErrTransientStore))
	assert.True(t, IsRetryable(fmt.Errorf("save ledger: %w", shared.ErrConcurrencyConflict)))
	assert.False(t, IsRetryable(billing.ErrScheduleConflict))
	assert.False(t, IsRetryable(errors.New("boom")))
}

func TestRetrier(t *testing.T) {
	r := retrier{
		config:  RetryConfig{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 1},
		metrics: nopMetrics{},
		logger:  zap.NewNop(),
	}

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := r.do(context.Background(), "op", func() error {
			calls++
			return billing.ErrTransientStore
		})
		assert.ErrorIs(t, err, billing.ErrTransientStore)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on permanent error", func(t *testing.T) {
		calls := 0
		err := r.do(context.Background(), "op", func() error {
			calls++
			return billing.ErrScheduleConflict
		})
		assert.ErrorIs(t, err, billing.ErrScheduleConflict)
		assert.Equal(t, 1, calls)
	})

	t.Run("succeeds after transient failure", func(t *testing.T) {
		calls := 0
		err := r.do(context.Background(), "op", func() error {
			calls++
			if calls == 1 {
				return shared.ErrConcurrencyConflict
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, calls)
	})
}
