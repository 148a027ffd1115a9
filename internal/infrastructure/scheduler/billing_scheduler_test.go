package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	appbilling "github.com/academy/feebilling/internal/application/billing"
	"github.com/academy/feebilling/internal/infrastructure/cache"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRunner struct {
	mu    sync.Mutex
	dates []time.Time
	err   error
	block chan struct{}
}

func (r *fakeRunner) RunMonthlyBilling(ctx context.Context, referenceDate time.Time) (*appbilling.BillingRunResult, error) {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dates = append(r.dates, referenceDate)
	if r.err != nil {
		return nil, r.err
	}
	return &appbilling.BillingRunResult{
		RunID:     uuid.New(),
		MonthYear: referenceDate.Format("2006-01"),
		Processed: 1,
	}, nil
}

func (r *fakeRunner) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.dates)
}

func newTestScheduler(t *testing.T, runner BillingRunner, lease *cache.InMemoryIdempotencyStore, clock *time.Time) *BillingScheduler {
	t.Helper()
	s, err := NewBillingScheduler(DefaultBillingSchedulerConfig(), runner, lease, zap.NewNop())
	require.NoError(t, err)
	s.now = func() time.Time { return *clock }
	return s
}

func TestBillingSchedulerConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*BillingSchedulerConfig)
		valid  bool
	}{
		{"default", func(*BillingSchedulerConfig) {}, true},
		{"midnight", func(c *BillingSchedulerConfig) { c.RunHour = 0 }, true},
		{"hour too large", func(c *BillingSchedulerConfig) { c.RunHour = 24 }, false},
		{"negative hour", func(c *BillingSchedulerConfig) { c.RunHour = -1 }, false},
		{"zero interval", func(c *BillingSchedulerConfig) { c.CheckInterval = 0 }, false},
		{"zero lease", func(c *BillingSchedulerConfig) { c.LeaseTTL = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultBillingSchedulerConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestBillingScheduler_TickRunsOncePerDay(t *testing.T) {
	lease := cache.NewInMemoryIdempotencyStore()
	defer lease.Close()
	runner := &fakeRunner{}
	clock := time.Date(2024, 3, 31, 1, 59, 0, 0, time.UTC)
	s := newTestScheduler(t, runner, lease, &clock)
	ctx := context.Background()

	s.tick(ctx)
	assert.Equal(t, 0, runner.calls(), "before run hour")

	clock = time.Date(2024, 3, 31, 2, 0, 0, 0, time.UTC)
	s.tick(ctx)
	s.tick(ctx)
	require.Equal(t, 1, runner.calls())
	assert.Equal(t, clock, runner.dates[0])

	status := s.Status()
	assert.Equal(t, "2024-03-31", status.LastRunDate)
	require.NotNil(t, status.LastResult)
	assert.Equal(t, "2024-03", status.LastResult.MonthYear)

	clock = time.Date(2024, 4, 1, 5, 0, 0, 0, time.UTC)
	s.tick(ctx)
	assert.Equal(t, 2, runner.calls())
}

func TestBillingScheduler_LeaseSharedAcrossReplicas(t *testing.T) {
	lease := cache.NewInMemoryIdempotencyStore()
	defer lease.Close()
	clock := time.Date(2024, 3, 31, 3, 0, 0, 0, time.UTC)

	first, second := &fakeRunner{}, &fakeRunner{}
	a := newTestScheduler(t, first, lease, &clock)
	b := newTestScheduler(t, second, lease, &clock)

	a.tick(context.Background())
	b.tick(context.Background())

	assert.Equal(t, 1, first.calls())
	assert.Equal(t, 0, second.calls())
	assert.Equal(t, "2024-03-31", b.Status().LastRunDate)
}

func TestBillingScheduler_FailedRunReleasesLease(t *testing.T) {
	lease := cache.NewInMemoryIdempotencyStore()
	defer lease.Close()
	runner := &fakeRunner{err: errors.New("database unavailable")}
	clock := time.Date(2024, 3, 31, 3, 0, 0, 0, time.UTC)
	s := newTestScheduler(t, runner, lease, &clock)
	ctx := context.Background()

	s.tick(ctx)
	assert.Equal(t, 1, runner.calls())
	assert.Equal(t, "database unavailable", s.Status().LastError)
	assert.Empty(t, s.Status().LastRunDate)

	claimed, err := lease.IsProcessed(ctx, LeaseKeyPrefix+"2024-03-31")
	require.NoError(t, err)
	assert.False(t, claimed)

	runner.mu.Lock()
	runner.err = nil
	runner.mu.Unlock()
	s.tick(ctx)
	assert.Equal(t, 2, runner.calls())
	assert.Empty(t, s.Status().LastError)
}

func TestBillingScheduler_TriggerImmediateBypassesLease(t *testing.T) {
	lease := cache.NewInMemoryIdempotencyStore()
	defer lease.Close()
	ctx := context.Background()
	_, err := lease.MarkProcessed(ctx, LeaseKeyPrefix+"2024-03-31", time.Hour)
	require.NoError(t, err)

	runner := &fakeRunner{}
	clock := time.Date(2024, 3, 31, 3, 0, 0, 0, time.UTC)
	s := newTestScheduler(t, runner, lease, &clock)

	ref := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	result, err := s.TriggerImmediate(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "2024-03", result.MonthYear)
	assert.Equal(t, []time.Time{ref}, runner.dates)
}

func TestBillingScheduler_RejectsOverlappingRuns(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	clock := time.Date(2024, 3, 31, 3, 0, 0, 0, time.UTC)
	s := newTestScheduler(t, runner, nil, &clock)

	done := make(chan error, 1)
	go func() {
		_, err := s.TriggerImmediate(context.Background(), clock)
		done <- err
	}()

	require.Eventually(t, func() bool { return s.Status().RunInProgress }, time.Second, 5*time.Millisecond)
	_, err := s.TriggerImmediate(context.Background(), clock)
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(runner.block)
	assert.NoError(t, <-done)
	assert.False(t, s.Status().RunInProgress)
}

func TestBillingScheduler_StartStop(t *testing.T) {
	clock := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	s := newTestScheduler(t, &fakeRunner{}, nil, &clock)

	assert.False(t, s.IsRunning())
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())
	assert.NoError(t, s.Stop(ctx))
}
