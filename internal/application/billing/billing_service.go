package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/academy/feebilling/internal/domain/billing"
	"github.com/academy/feebilling/internal/domain/shared"
	"github.com/academy/feebilling/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BillingServiceConfig contains configuration for BillingService
type BillingServiceConfig struct {
	CutoffDay int
	Workers   int
	BatchSize int
	Retry     RetryConfig
}

// DefaultBillingServiceConfig returns cutoff 20, 4 workers and batches of 200
func DefaultBillingServiceConfig() BillingServiceConfig {
	return BillingServiceConfig{
		CutoffDay: billing.DefaultCutoffDay,
		Workers:   4,
		BatchSize: 200,
		Retry:     DefaultRetryConfig(),
	}
}

// BillingService runs monthly fee billing across all tenants
type BillingService struct {
	txScope    TransactionScope
	ledgerRepo billing.StudentLedgerRepository
	policy     billing.FeePolicy
	config     BillingServiceConfig
	retry      retrier
	metrics    BillingMetrics
	archive    RunReportArchive
	logger     *zap.Logger
	now        func() time.Time
}

// NewBillingService creates a new BillingService.
// ledgerRepo is used outside transactions to page through candidates.
func NewBillingService(
	txScope TransactionScope,
	ledgerRepo billing.StudentLedgerRepository,
	logger *zap.Logger,
	config BillingServiceConfig,
) (*BillingService, error) {
	policy, err := billing.NewFeePolicy(config.CutoffDay)
	if err != nil {
		return nil, err
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 200
	}

	s := &BillingService{
		txScope:    txScope,
		ledgerRepo: ledgerRepo,
		policy:     policy,
		config:     config,
		metrics:    nopMetrics{},
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
	s.retry = retrier{config: config.Retry, metrics: s.metrics, logger: logger}
	return s, nil
}

// SetMetrics sets the metrics recorder
func (s *BillingService) SetMetrics(m BillingMetrics) {
	if m == nil {
		m = nopMetrics{}
	}
	s.metrics = m
	s.retry.metrics = m
}

// SetReportArchive sets where finished run reports are stored
func (s *BillingService) SetReportArchive(a RunReportArchive) {
	s.archive = a
}

// CutoffDay returns the configured enrollment cutoff day
func (s *BillingService) CutoffDay() int {
	return s.policy.CutoffDay
}

// RunMonthlyBilling bills every due student for the month containing referenceDate.
//
// Each student is billed in its own transaction. A failure for one student is
// recorded in the result and never stops the run. Running twice for the same
// month bills nobody twice. An error is returned only when candidates cannot be
// loaded, together with the partial result.
func (s *BillingService) RunMonthlyBilling(ctx context.Context, referenceDate time.Time) (*BillingRunResult, error) {
	ref := billing.CalendarDate(referenceDate)
	result := newBillingRunResult(uuid.New(), ref, s.now())

	ctx, span := telemetry.StartServiceSpan(ctx, "billing", "run",
		telemetry.WithAttribute(telemetry.SpanAttrRunID, result.RunID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrReferenceDate, ref.Format(time.DateOnly)),
	)
	defer span.End()

	s.logger.Info("Billing run started",
		zap.String("run_id", result.RunID.String()),
		zap.String("month_year", result.MonthYear),
		zap.Int("cutoff_day", s.policy.CutoffDay),
	)

	var runErr error
	telemetry.WithProfilingLabels(ctx, telemetry.BillingOperationLabels("run", ""), func(c context.Context) {
		runErr = s.processCandidates(c, ref, result)
	})
	result.Duration = s.now().Sub(result.StartedAt)

	telemetry.SetAttributes(span,
		"billing.candidates", result.Candidates,
		"billing.processed", result.Processed,
		"billing.failed", result.Failed,
		"billing.total_billed", result.TotalBilled.String(),
	)
	s.metrics.RecordRun(ctx, result.Duration, runErr != nil || result.Failed > 0)

	if runErr != nil {
		telemetry.RecordError(span, runErr)
		s.logger.Error("Billing run aborted",
			zap.String("run_id", result.RunID.String()),
			zap.Int("candidates", result.Candidates),
			zap.Error(runErr),
		)
		return result, runErr
	}

	s.complete(ctx, result)
	return result, nil
}

func (s *BillingService) processCandidates(ctx context.Context, ref time.Time, result *BillingRunResult) error {
	afterID := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var batch []billing.StudentLedger
		err := s.retry.do(ctx, "find_due", func() error {
			var findErr error
			batch, findErr = s.ledgerRepo.FindDue(ctx, ref, afterID, s.config.BatchSize)
			return findErr
		})
		if err != nil {
			return fmt.Errorf("load billing candidates: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}

		var g errgroup.Group
		g.SetLimit(s.config.Workers)
		for i := range batch {
			tenantID, studentID := batch[i].TenantID, batch[i].StudentID
			g.Go(func() error {
				out := s.billStudent(ctx, tenantID, studentID, ref)
				result.record(tenantID, studentID, out)
				s.metrics.RecordStudentOutcome(ctx, out.kind, out.fee)
				return nil
			})
		}
		_ = g.Wait()

		afterID = batch[len(batch)-1].ID
		if len(batch) < s.config.BatchSize {
			return nil
		}
	}
}

// billStudent bills one student with retries on transient failures.
func (s *BillingService) billStudent(ctx context.Context, tenantID, studentID uuid.UUID, ref time.Time) studentOutcome {
	var out studentOutcome
	err := s.retry.do(ctx, "bill_student", func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var billErr error
			out, billErr = s.billInTx(ctx, repos, tenantID, studentID, ref)
			return billErr
		})
	})

	switch {
	case err == nil:
		return out
	case errors.Is(err, billing.ErrScheduleConflict):
		s.logger.Debug("Billing month already claimed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("student_id", studentID.String()),
		)
		return studentOutcome{kind: OutcomeSkipped, fee: decimal.Zero}
	default:
		s.logger.Error("Failed to bill student",
			zap.String("tenant_id", tenantID.String()),
			zap.String("student_id", studentID.String()),
			zap.Error(err),
		)
		return studentOutcome{kind: OutcomeFailed, fee: decimal.Zero, err: err}
	}
}

func (s *BillingService) billInTx(
	ctx context.Context,
	repos TransactionalRepositories,
	tenantID, studentID uuid.UUID,
	ref time.Time,
) (studentOutcome, error) {
	skipped := studentOutcome{kind: OutcomeSkipped, fee: decimal.Zero}

	ledger, err := repos.LedgerRepo().FindByStudentForUpdate(ctx, tenantID, studentID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return skipped, nil
		}
		return studentOutcome{}, err
	}
	// Another replica may have billed the student since the candidate page was read.
	if !ledger.IsDue(ref) {
		return skipped, nil
	}

	period := billing.MonthYearOf(ref)

	entry, err := repos.CatalogRepo().Lookup(ctx, ledger.TenantID, ledger.ClassID, ledger.CourseType)
	if err != nil {
		if errors.Is(err, billing.ErrCatalogMiss) {
			return studentOutcome{kind: OutcomeCatalogMiss, fee: decimal.Zero},
				s.recordCatalogMiss(ctx, repos, ledger, period, ref)
		}
		return studentOutcome{}, err
	}

	decision := s.policy.Decide(ledger, entry, period)

	if err := s.claimSchedule(ctx, repos, ledger, period, decision.FeeAmount); err != nil {
		return studentOutcome{}, err
	}
	if err := repos.HistoryRepo().Append(ctx, billing.NewCalculationHistoryEntry(ledger, period, ref, decision)); err != nil {
		return studentOutcome{}, err
	}
	if err := ledger.ApplyCharge(decision, period, ref); err != nil {
		return studentOutcome{}, err
	}
	if err := repos.LedgerRepo().SaveWithLock(ctx, ledger); err != nil {
		return studentOutcome{}, err
	}
	if err := repos.SaveEvents(ctx, ledger.GetDomainEvents()...); err != nil {
		return studentOutcome{}, err
	}
	ledger.ClearDomainEvents()

	s.logger.Debug("Student billed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("student_id", studentID.String()),
		zap.String("month_year", period.String()),
		zap.String("calculation_type", decision.CalculationType.String()),
		zap.String("fee", decision.FeeAmount.String()),
	)
	return studentOutcome{kind: OutcomeProcessed, fee: decision.FeeAmount}, nil
}

// claimSchedule marks the (student, month) slot processed, creating it when absent.
// ErrScheduleConflict means the slot was already claimed.
func (s *BillingService) claimSchedule(
	ctx context.Context,
	repos TransactionalRepositories,
	ledger *billing.StudentLedger,
	period billing.MonthYear,
	fee decimal.Decimal,
) error {
	schedule, err := repos.ScheduleRepo().FindByStudentAndMonth(ctx, ledger.TenantID, ledger.StudentID, period)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		schedule = billing.NewMonthlySchedule(ledger.TenantID, ledger.StudentID, period)
		if err := schedule.MarkProcessed(fee, s.now()); err != nil {
			return err
		}
		return repos.ScheduleRepo().Create(ctx, schedule)
	case err != nil:
		return err
	}

	if err := schedule.MarkProcessed(fee, s.now()); err != nil {
		return err
	}
	return repos.ScheduleRepo().MarkProcessed(ctx, schedule)
}

// recordCatalogMiss writes one catalog-miss history entry per student and month.
func (s *BillingService) recordCatalogMiss(
	ctx context.Context,
	repos TransactionalRepositories,
	ledger *billing.StudentLedger,
	period billing.MonthYear,
	ref time.Time,
) error {
	s.logger.Warn("No fee catalog entry for student",
		zap.String("tenant_id", ledger.TenantID.String()),
		zap.String("student_id", ledger.StudentID.String()),
		zap.String("class_id", ledger.ClassID.String()),
		zap.String("course_type", ledger.CourseType.String()),
	)

	recorded, err := repos.HistoryRepo().HasCatalogMiss(ctx, ledger.TenantID, ledger.StudentID, period)
	if err != nil || recorded {
		return err
	}
	return repos.HistoryRepo().Append(ctx, billing.NewCatalogMissEntry(ledger, period, ref))
}

// complete publishes the run summary and archives the report. Both are best effort.
func (s *BillingService) complete(ctx context.Context, result *BillingRunResult) {
	if err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		return repos.SaveEvents(ctx, result.ToEvent())
	}); err != nil {
		s.logger.Warn("Failed to save billing run event",
			zap.String("run_id", result.RunID.String()),
			zap.Error(err),
		)
	}

	if s.archive != nil {
		if err := s.archive.StoreRunReport(ctx, result); err != nil {
			s.logger.Warn("Failed to archive billing run report",
				zap.String("run_id", result.RunID.String()),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("Billing run completed",
		zap.String("run_id", result.RunID.String()),
		zap.String("month_year", result.MonthYear),
		zap.Int("candidates", result.Candidates),
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped),
		zap.Int("catalog_misses", result.CatalogMisses),
		zap.Int("failed", result.Failed),
		zap.String("total_billed", result.TotalBilled.String()),
		zap.Duration("duration", result.Duration),
	)
}
