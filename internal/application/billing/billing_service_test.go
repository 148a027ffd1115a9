package billing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/academy/feebilling/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBillingService(t *testing.T, store *memStore, cfg BillingServiceConfig) (*BillingService, *memTxScope) {
	t.Helper()
	scope := store.scope()
	cfg.Retry = RetryConfig{MaxAttempts: 4, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond, Multiplier: 2}
	svc, err := NewBillingService(scope, ledgerRepo{store}, zap.NewNop(), cfg)
	require.NoError(t, err)
	return svc, scope
}

func TestNewBillingService_RejectsBadCutoff(t *testing.T) {
	cfg := DefaultBillingServiceConfig()
	cfg.CutoffDay = 31
	_, err := NewBillingService(nil, nil, zap.NewNop(), cfg)
	assert.ErrorIs(t, err, billing.ErrInvalidCutoffDay)
}

func TestRunMonthlyBilling_LateEnrollmentScenario(t *testing.T) {
	store := newMemStore()
	tenantID, classID := uuid.New(), uuid.New()
	seedCatalog(store, tenantID, classID, billing.CourseTypeMonthly, 1000, 500, 5000)
	l := seedLedger(store, tenantID, classID, billing.CourseTypeMonthly, day(2024, time.January, 25))

	svc, _ := newTestBillingService(t, store, DefaultBillingServiceConfig())
	ctx := context.Background()

	jan, err := svc.RunMonthlyBilling(ctx, day(2024, time.January, 31))
	require.NoError(t, err)
	assert.Equal(t, 1, jan.Processed)
	assert.True(t, jan.TotalBilled.Equal(decimal.NewFromInt(1000)))

	again, err := svc.RunMonthlyBilling(ctx, day(2024, time.January, 31))
	require.NoError(t, err)
	assert.Equal(t, 0, again.Candidates, "a second run in the same month bills nobody")

	feb, err := svc.RunMonthlyBilling(ctx, day(2024, time.February, 28))
	require.NoError(t, err)
	assert.True(t, feb.TotalBilled.Equal(decimal.NewFromInt(500)), "deferred monthly fee")

	mar, err := svc.RunMonthlyBilling(ctx, day(2024, time.March, 31))
	require.NoError(t, err)
	assert.True(t, mar.TotalBilled.Equal(decimal.NewFromInt(500)))

	ledger := store.ledger(tenantID, l.StudentID)
	assert.True(t, ledger.TotalFeeAmount.Equal(decimal.NewFromInt(2000)))
	assert.True(t, ledger.PendingAmount.Equal(decimal.NewFromInt(2000)))
	assert.True(t, ledger.AdmissionFeePaid)
	assert.True(t, ledger.FirstPeriodBilled)
	require.NoError(t, ledger.CheckInvariant())

	history := store.historyFor(l.StudentID)
	require.Len(t, history, 3)
	assert.Equal(t, billing.CalculationTypeFirstMonth, history[0].CalculationType)
	require.NotNil(t, history[0].EnrollmentDay)
	assert.Equal(t, 25, *history[0].EnrollmentDay)
	assert.Equal(t, billing.CalculationTypeRegularMonth, history[1].CalculationType)
}

// Enrolled after the cutoff but first billed in a later month: nothing is deferred.
func TestRunMonthlyBilling_LateEnrollmentFirstBilledNextMonth(t *testing.T) {
	store := newMemStore()
	tenantID, classID := uuid.New(), uuid.New()
	seedCatalog(store, tenantID, classID, billing.CourseTypeMonthly, 1000, 500, 5000)
	l := seedLedger(store, tenantID, classID, billing.CourseTypeMonthly, day(2024, time.January, 25))

	svc, _ := newTestBillingService(t, store, DefaultBillingServiceConfig())
	ctx := context.Background()

	feb, err := svc.RunMonthlyBilling(ctx, day(2024, time.February, 3))
	require.NoError(t, err)
	assert.Equal(t, 1, feb.Processed)
	assert.True(t, feb.TotalBilled.Equal(decimal.NewFromInt(1500)), "admission plus february fee")

	mar, err := svc.RunMonthlyBilling(ctx, day(2024, time.March, 3))
	require.NoError(t, err)
	assert.True(t, mar.TotalBilled.Equal(decimal.NewFromInt(500)))

	ledger := store.ledger(tenantID, l.StudentID)
	assert.True(t, ledger.TotalFeeAmount.Equal(decimal.NewFromInt(2000)))
	assert.True(t, ledger.FirstPeriodBilled)
	require.NoError(t, ledger.CheckInvariant())

	history := store.historyFor(l.StudentID)
	require.Len(t, history, 2)
	assert.Equal(t, billing.CalculationTypeFirstMonth, history[0].CalculationType)
	assert.True(t, history[0].FeeAmount.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, "monthly fee", history[1].Reason)
}

func TestRunMonthlyBilling_YearlyChargedOnce(t *testing.T) {
	store := newMemStore()
	tenantID, classID := uuid.New(), uuid.New()
	seedCatalog(store, tenantID, classID, billing.CourseTypeYearly, 1000, 500, 5000)
	l := seedLedger(store, tenantID, classID, billing.CourseTypeYearly, day(2024, time.January, 10))

	svc, _ := newTestBillingService(t, store, DefaultBillingServiceConfig())
	ctx := context.Background()

	first, err := svc.RunMonthlyBilling(ctx, day(2024, time.January, 31))
	require.NoError(t, err)
	assert.True(t, first.TotalBilled.Equal(decimal.NewFromInt(6000)))

	second, err := svc.RunMonthlyBilling(ctx, day(2024, time.February, 29))
	require.NoError(t, err)
	assert.Equal(t, 1, second.Processed, "zero fees are still recorded")
	assert.True(t, second.TotalBilled.IsZero())

	assert.True(t, store.ledger(tenantID, l.StudentID).TotalFeeAmount.Equal(decimal.NewFromInt(6000)))
	assert.Len(t, store.historyFor(l.StudentID), 2)
}

func TestRunMonthlyBilling_CatalogMiss(t *testing.T) {
	store := newMemStore()
	tenantID := uuid.New()
	l := seedLedger(store, tenantID, uuid.New(), billing.CourseTypeMonthly, day(2024, time.March, 2))

	svc, _ := newTestBillingService(t, store, DefaultBillingServiceConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := svc.RunMonthlyBilling(ctx, day(2024, time.March, 15))
		require.NoError(t, err)
		assert.Equal(t, 1, result.CatalogMisses)
		assert.Equal(t, 0, result.Processed)
	}

	history := store.historyFor(l.StudentID)
	require.Len(t, history, 1, "one catalog miss entry per month")
	assert.True(t, history[0].IsCatalogMiss())
	assert.Equal(t, billing.ReasonNoFeeCatalogEntry, history[0].Reason)

	ledger := store.ledger(tenantID, l.StudentID)
	assert.Equal(t, billing.BillingState(billing.Unbilled{}), ledger.Billing)
	assert.True(t, ledger.TotalFeeAmount.IsZero())
	_, err := scheduleRepo{store}.FindByStudentAndMonth(ctx, tenantID, l.StudentID, billing.MonthYear{Year: 2024, Month: time.March})
	assert.Error(t, err, "schedule is not claimed on a catalog miss")
}

func TestRunMonthlyBilling_FailureIsolatedPerStudent(t *testing.T) {
	store := newMemStore()
	tenantID, classID := uuid.New(), uuid.New()
	seedCatalog(store, tenantID, classID, billing.CourseTypeMonthly, 0, 500, 0)
	good := seedLedger(store, tenantID, classID, billing.CourseTypeMonthly, day(2024, time.March, 1))
	bad := seedLedger(store, tenantID, classID, billing.CourseTypeMonthly, day(2024, time.March, 1))
	store.brokenStudents[bad.StudentID] = errBroken

	svc, _ := newTestBillingService(t, store, DefaultBillingServiceConfig())
	result, err := svc.RunMonthlyBilling(context.Background(), day(2024, time.March, 5))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Candidates)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, bad.StudentID, result.Errors[0].StudentID)
	assert.Contains(t, result.Errors[0].Error, "row is corrupt")
	assert.True(t, store.ledger(tenantID, good.StudentID).PendingAmount.Equal(decimal.NewFromInt(500)))
}

func TestRunMonthlyBilling_RetriesTransientFailures(t *testing.T) {
	store := newMemStore()
	tenantID, classID := uuid.New(), uuid.New()
	seedCatalog(store, tenantID, classID, billing.CourseTypeMonthly, 0, 500, 0)
	seedLedger(store, tenantID, classID, billing.CourseTypeMonthly, day(2024, time.March, 1))
	store.transientLockFailures = 2

	metrics := &mockMetrics{}
	metrics.On("RecordRetry", mock.Anything, "bill_student").Return().Twice()
	metrics.On("RecordStudentOutcome", mock.Anything, OutcomeProcessed, mock.Anything).Return().Once()
	metrics.On("RecordRun", mock.Anything, mock.Anything, false).Return().Once()

	svc, _ := newTestBillingService(t, store, DefaultBillingServiceConfig())
	svc.SetMetrics(metrics)

	result, err := svc.RunMonthlyBilling(context.Background(), day(2024, time.March, 5))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	metrics.AssertExpectations(t)
}

func TestRunMonthlyBilling_SkipsInactiveAndFutureEnrollments(t *testing.T) {
	store := newMemStore()
	tenantID, classID := uuid.New(), uuid.New()
	seedCatalog(store, tenantID, classID, billing.CourseTypeMonthly, 0, 500, 0)

	inactive := seedLedger(store, tenantID, classID, billing.CourseTypeMonthly, day(2024, time.January, 1))
	stored := store.ledgers[studentKey{tenantID, inactive.StudentID}]
	require.NoError(t, stored.ChangeStatus(billing.LedgerStatusInactive))
	seedLedger(store, tenantID, classID, billing.CourseTypeMonthly, day(2024, time.April, 1))

	svc, _ := newTestBillingService(t, store, DefaultBillingServiceConfig())
	result, err := svc.RunMonthlyBilling(context.Background(), day(2024, time.March, 5))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Candidates)
}

func TestRunMonthlyBilling_PagesThroughBatches(t *testing.T) {
	store := newMemStore()
	tenantA, tenantB, classID := uuid.New(), uuid.New(), uuid.New()
	seedCatalog(store, tenantA, classID, billing.CourseTypeMonthly, 0, 500, 0)
	seedCatalog(store, tenantB, classID, billing.CourseTypeMonthly, 0, 300, 0)
	for i := 0; i < 3; i++ {
		seedLedger(store, tenantA, classID, billing.CourseTypeMonthly, day(2024, time.January, 5))
		seedLedger(store, tenantB, classID, billing.CourseTypeMonthly, day(2024, time.January, 5))
	}

	cfg := DefaultBillingServiceConfig()
	cfg.BatchSize = 2
	cfg.Workers = 3
	svc, _ := newTestBillingService(t, store, cfg)

	result, err := svc.RunMonthlyBilling(context.Background(), day(2024, time.January, 20))
	require.NoError(t, err)
	assert.Equal(t, 6, result.Processed)
	assert.True(t, result.TotalBilled.Equal(decimal.NewFromInt(2400)))
	assert.Equal(t, "2024-01", result.MonthYear)
}

func TestRunMonthlyBilling_ConcurrentRunsBillOnce(t *testing.T) {
	store := newMemStore()
	tenantID, classID := uuid.New(), uuid.New()
	seedCatalog(store, tenantID, classID, billing.CourseTypeMonthly, 1000, 500, 0)
	var students []uuid.UUID
	for i := 0; i < 20; i++ {
		students = append(students, seedLedger(store, tenantID, classID, billing.CourseTypeMonthly, day(2024, time.May, 3)).StudentID)
	}

	svc, _ := newTestBillingService(t, store, DefaultBillingServiceConfig())
	ref := day(2024, time.May, 10)

	var wg sync.WaitGroup
	results := make([]*BillingRunResult, 3)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := svc.RunMonthlyBilling(context.Background(), ref)
			assert.NoError(t, err)
			results[i] = r
		}()
	}
	wg.Wait()

	processed := 0
	total := decimal.Zero
	for _, r := range results {
		processed += r.Processed
		total = total.Add(r.TotalBilled)
		assert.Equal(t, 0, r.Failed)
	}
	assert.Equal(t, 20, processed)
	assert.True(t, total.Equal(decimal.NewFromInt(30000)))

	for _, id := range students {
		l := store.ledger(tenantID, id)
		assert.True(t, l.TotalFeeAmount.Equal(decimal.NewFromInt(1500)))
		assert.Len(t, store.historyFor(id), 1)
	}
}

func TestRunMonthlyBilling_SavesEventsAndArchivesReport(t *testing.T) {
	store := newMemStore()
	tenantID, classID := uuid.New(), uuid.New()
	seedCatalog(store, tenantID, classID, billing.CourseTypeMonthly, 0, 500, 0)
	seedLedger(store, tenantID, classID, billing.CourseTypeMonthly, day(2024, time.March, 1))

	archive := &mockArchive{}
	archive.On("StoreRunReport", mock.Anything, mock.AnythingOfType("*billing.BillingRunResult")).Return(nil).Once()

	svc, scope := newTestBillingService(t, store, DefaultBillingServiceConfig())
	svc.SetReportArchive(archive)

	result, err := svc.RunMonthlyBilling(context.Background(), day(2024, time.March, 5))
	require.NoError(t, err)
	archive.AssertExpectations(t)

	var types []string
	for _, e := range scope.SavedEvents() {
		types = append(types, e.EventType())
	}
	assert.Equal(t, []string{billing.EventTypeFeeCalculated, billing.EventTypeBillingRunCompleted}, types)

	evt := result.ToEvent()
	assert.Equal(t, result.RunID, evt.RunID)
	assert.Equal(t, 1, evt.Processed)
}
