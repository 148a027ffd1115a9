package billing

import (
	"context"
	"testing"
	"time"

	"github.com/academy/feebilling/internal/domain/billing"
	"github.com/academy/feebilling/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLedgerService(store *memStore) (*LedgerService, *memTxScope) {
	scope := store.scope()
	return NewLedgerService(scope, catalogRepo{store}, zap.NewNop(), LedgerServiceConfig{PrecreateSchedule: true}), scope
}

func TestOpenLedger(t *testing.T) {
	store := newMemStore()
	svc, scope := newTestLedgerService(store)
	tenantID := uuid.New()

	cmd := OpenLedgerCommand{
		StudentID:      uuid.New(),
		ClassID:        uuid.New(),
		ContactEmail:   " parent@example.com ",
		CourseType:     "Monthly",
		EnrollmentDate: time.Date(2024, time.June, 12, 15, 30, 0, 0, time.UTC),
	}
	snapshot, err := svc.OpenLedger(context.Background(), tenantID, cmd)
	require.NoError(t, err)

	assert.Equal(t, "monthly", snapshot.CourseType)
	assert.Equal(t, "active", snapshot.Status)
	assert.Nil(t, snapshot.LastFeeCalculationDate)
	assert.True(t, snapshot.TotalFeeAmount.IsZero())
	assert.Equal(t, day(2024, time.June, 12), snapshot.EnrollmentDate)

	schedules, err := scheduleRepo{store}.FindByStudent(context.Background(), tenantID, cmd.StudentID)
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, "2024-06", schedules[0].MonthYear.String())
	assert.False(t, schedules[0].IsProcessed)

	events := scope.SavedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, billing.EventTypeLedgerOpened, events[0].EventType())

	_, err = svc.OpenLedger(context.Background(), tenantID, cmd)
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}

func TestOpenLedger_PrecreatedScheduleIsBilled(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestLedgerService(store)
	tenantID, classID := uuid.New(), uuid.New()
	seedCatalog(store, tenantID, classID, billing.CourseTypeMonthly, 1000, 500, 0)

	snapshot, err := svc.OpenLedger(context.Background(), tenantID, OpenLedgerCommand{
		StudentID:      uuid.New(),
		ClassID:        classID,
		CourseType:     "monthly",
		EnrollmentDate: day(2024, time.June, 20),
	})
	require.NoError(t, err)

	billingSvc, _ := newTestBillingService(t, store, DefaultBillingServiceConfig())
	result, err := billingSvc.RunMonthlyBilling(context.Background(), day(2024, time.June, 30))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.True(t, result.TotalBilled.Equal(decimal.NewFromInt(1500)), "day 20 equals the cutoff and is billed in full")

	schedule, err := scheduleRepo{store}.FindByStudentAndMonth(context.Background(), tenantID, snapshot.StudentID, billing.MonthYear{Year: 2024, Month: time.June})
	require.NoError(t, err)
	assert.True(t, schedule.IsProcessed)
	assert.True(t, schedule.FeeAmount.Equal(decimal.NewFromInt(1500)))
}

func TestOpenLedger_Validation(t *testing.T) {
	svc, _ := newTestLedgerService(newMemStore())

	_, err := svc.OpenLedger(context.Background(), uuid.New(), OpenLedgerCommand{
		StudentID: uuid.New(), ClassID: uuid.New(), CourseType: "weekly", EnrollmentDate: time.Now(),
	})
	assert.ErrorIs(t, err, billing.ErrInvalidCourseType)

	_, err = svc.OpenLedger(context.Background(), uuid.New(), OpenLedgerCommand{
		StudentID: uuid.New(), CourseType: "yearly", EnrollmentDate: time.Now(),
	})
	assert.ErrorIs(t, err, billing.ErrInvalidEnrollment)
}

func TestChangeLedgerStatus(t *testing.T) {
	store := newMemStore()
	svc, scope := newTestLedgerService(store)
	tenantID := uuid.New()
	l := seedLedger(store, tenantID, uuid.New(), billing.CourseTypeMonthly, day(2024, time.January, 1))
	ctx := context.Background()

	snapshot, err := svc.ChangeLedgerStatus(ctx, tenantID, l.StudentID, "active")
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.Version)
	assert.Empty(t, scope.SavedEvents(), "same status is a no-op")

	snapshot, err = svc.ChangeLedgerStatus(ctx, tenantID, l.StudentID, "inactive")
	require.NoError(t, err)
	assert.Equal(t, "inactive", snapshot.Status)
	assert.Equal(t, 2, snapshot.Version)

	_, err = svc.ChangeLedgerStatus(ctx, tenantID, l.StudentID, "dropped_out")
	require.NoError(t, err)

	_, err = svc.ChangeLedgerStatus(ctx, tenantID, l.StudentID, "active")
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = svc.ChangeLedgerStatus(ctx, tenantID, l.StudentID, "graduated")
	assert.ErrorIs(t, err, billing.ErrInvalidLedgerStatus)

	_, err = svc.ChangeLedgerStatus(ctx, tenantID, uuid.New(), "inactive")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	assert.Len(t, scope.SavedEvents(), 2)
}

func TestUpsertAndListFeeCatalog(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestLedgerService(store)
	tenantID, classID := uuid.New(), uuid.New()
	ctx := context.Background()

	_, err := svc.UpsertFeeCatalog(ctx, tenantID, UpsertFeeCatalogCommand{
		ClassID: classID, CourseType: "monthly",
		AdmissionFee: decimal.NewFromInt(-1), MonthlyFee: decimal.NewFromInt(500),
	})
	assert.ErrorIs(t, err, billing.ErrInvalidFee)

	dto, err := svc.UpsertFeeCatalog(ctx, tenantID, UpsertFeeCatalogCommand{
		ClassID: classID, CourseType: "yearly",
		AdmissionFee: decimal.NewFromInt(1000), MonthlyFee: decimal.NewFromInt(500), YearlyFee: decimal.NewFromInt(5000),
	})
	require.NoError(t, err)
	assert.Equal(t, "yearly", dto.CourseType)

	page, err := svc.ListFeeCatalog(ctx, tenantID, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.True(t, page.Items[0].YearlyFee.Equal(decimal.NewFromInt(5000)))
}
