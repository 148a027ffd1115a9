package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	appbilling "github.com/academy/feebilling/internal/application/billing"
	"github.com/academy/feebilling/internal/domain/shared"
	"go.uber.org/zap"
)

// LeaseKeyPrefix prefixes the per-day lease key, followed by the UTC date
const LeaseKeyPrefix = "billing-run:"

// BillingRunner executes one billing run for a reference date
type BillingRunner interface {
	RunMonthlyBilling(ctx context.Context, referenceDate time.Time) (*appbilling.BillingRunResult, error)
}

// BillingSchedulerConfig holds configuration for the daily billing tick
type BillingSchedulerConfig struct {
	// RunHour is the UTC hour (0-23) from which the daily run may start
	RunHour int
	// CheckInterval is how often the loop checks whether today's run is due
	CheckInterval time.Duration
	// RunTimeout bounds a single run
	RunTimeout time.Duration
	// LeaseTTL is how long the cross-replica lease for a day is held
	LeaseTTL time.Duration
}

// DefaultBillingSchedulerConfig returns default configuration: 02:00 UTC, checked every minute
func DefaultBillingSchedulerConfig() BillingSchedulerConfig {
	return BillingSchedulerConfig{
		RunHour:       2,
		CheckInterval: time.Minute,
		RunTimeout:    30 * time.Minute,
		LeaseTTL:      23 * time.Hour,
	}
}

// Validate checks the configuration
func (c BillingSchedulerConfig) Validate() error {
	if c.RunHour < 0 || c.RunHour > 23 {
		return fmt.Errorf("%w: run hour must be 0-23, got %d", ErrInvalidConfig, c.RunHour)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("%w: check interval must be positive", ErrInvalidConfig)
	}
	if c.LeaseTTL <= 0 {
		return fmt.Errorf("%w: lease ttl must be positive", ErrInvalidConfig)
	}
	return nil
}

// BillingSchedulerStatus is a point-in-time view of the scheduler
type BillingSchedulerStatus struct {
	IsRunning     bool                         `json:"is_running"`
	RunHour       int                          `json:"run_hour"`
	LastRunDate   string                       `json:"last_run_date,omitempty"`
	LastRunAt     *time.Time                   `json:"last_run_at,omitempty"`
	LastResult    *appbilling.BillingRunResult `json:"last_result,omitempty"`
	LastError     string                       `json:"last_error,omitempty"`
	RunInProgress bool                         `json:"run_in_progress"`
}

// BillingScheduler runs monthly billing once a day and on demand.
//
// The daily tick takes a lease in the shared idempotency store so that only one
// replica runs per day. The lease is an optimisation: billing the same month twice
// is already prevented by the schedule table. Manual triggers skip the lease.
type BillingScheduler struct {
	config BillingSchedulerConfig
	runner BillingRunner
	lease  shared.IdempotencyStore
	logger *zap.Logger
	now    func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	runMu       sync.Mutex
	inProgress  bool
	lastRunDate string
	lastRunAt   *time.Time
	lastResult  *appbilling.BillingRunResult
	lastError   string
}

// NewBillingScheduler creates a new billing scheduler. A nil lease store disables the lease.
func NewBillingScheduler(
	config BillingSchedulerConfig,
	runner BillingRunner,
	lease shared.IdempotencyStore,
	logger *zap.Logger,
) (*BillingScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingScheduler{
		config: config,
		runner: runner,
		lease:  lease,
		logger: logger.Named("billing_scheduler"),
		now:    time.Now,
	}, nil
}

// Start starts the daily tick loop
func (s *BillingScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Billing scheduler started",
		zap.Int("run_hour_utc", s.config.RunHour),
		zap.Duration("check_interval", s.config.CheckInterval),
		zap.Duration("lease_ttl", s.config.LeaseTTL),
	)
	return nil
}

// Stop stops the loop and waits for an in-flight run until ctx is done
func (s *BillingScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Billing scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Billing scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the tick loop is active
func (s *BillingScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// TriggerImmediate runs billing for referenceDate now, without taking the daily lease.
// It works whether or not the tick loop is running.
func (s *BillingScheduler) TriggerImmediate(ctx context.Context, referenceDate time.Time) (*appbilling.BillingRunResult, error) {
	s.logger.Info("Manual billing run requested",
		zap.String("reference_date", referenceDate.UTC().Format(time.DateOnly)),
	)
	return s.execute(ctx, referenceDate)
}

// Status returns the scheduler state
func (s *BillingScheduler) Status() BillingSchedulerStatus {
	running := s.IsRunning()

	s.runMu.Lock()
	defer s.runMu.Unlock()
	return BillingSchedulerStatus{
		IsRunning:     running,
		RunHour:       s.config.RunHour,
		LastRunDate:   s.lastRunDate,
		LastRunAt:     s.lastRunAt,
		LastResult:    s.lastResult,
		LastError:     s.lastError,
		RunInProgress: s.inProgress,
	}
}

func (s *BillingScheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs today's billing if the run hour has passed and it has not run yet
func (s *BillingScheduler) tick(ctx context.Context) {
	now := s.now().UTC()
	today := now.Format(time.DateOnly)

	if now.Hour() < s.config.RunHour {
		return
	}
	s.runMu.Lock()
	done := s.lastRunDate == today
	s.runMu.Unlock()
	if done {
		return
	}

	leaseKey := LeaseKeyPrefix + today
	if s.lease != nil {
		claimed, err := s.lease.MarkProcessed(ctx, leaseKey, s.config.LeaseTTL)
		switch {
		case err != nil:
			s.logger.Warn("Billing lease unavailable, running without it",
				zap.String("lease_key", leaseKey),
				zap.Error(err),
			)
		case !claimed:
			s.logger.Info("Billing run for today already claimed by another instance",
				zap.String("lease_key", leaseKey),
			)
			s.markDate(today)
			return
		}
	}

	if _, err := s.execute(ctx, now); err != nil {
		// Give up the lease so that this or another instance retries on a later tick
		if s.lease != nil {
			if relErr := s.lease.Release(context.WithoutCancel(ctx), leaseKey); relErr != nil {
				s.logger.Warn("Failed to release billing lease",
					zap.String("lease_key", leaseKey),
					zap.Error(relErr),
				)
			}
		}
		return
	}
	s.markDate(today)
}

func (s *BillingScheduler) markDate(date string) {
	s.runMu.Lock()
	s.lastRunDate = date
	s.runMu.Unlock()
}

func (s *BillingScheduler) execute(ctx context.Context, referenceDate time.Time) (*appbilling.BillingRunResult, error) {
	s.runMu.Lock()
	if s.inProgress {
		s.runMu.Unlock()
		return nil, ErrRunInProgress
	}
	s.inProgress = true
	s.runMu.Unlock()

	if s.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RunTimeout)
		defer cancel()
	}

	result, err := s.runner.RunMonthlyBilling(ctx, referenceDate)

	finished := s.now()
	s.runMu.Lock()
	s.inProgress = false
	s.lastRunAt = &finished
	s.lastResult = result
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}
	s.runMu.Unlock()

	if err != nil {
		s.logger.Error("Billing run failed", zap.Error(err))
		return result, err
	}
	s.logger.Info("Billing run finished",
		zap.String("run_id", result.RunID.String()),
		zap.String("month_year", result.MonthYear),
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}
