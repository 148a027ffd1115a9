package persistence

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
)

func TestGormFeeCatalogRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormFeeCatalogRepository(newTestDB(t))
	tenantID, classID := uuid.New(), uuid.New()

	_, err := repo.Lookup(ctx, tenantID, classID, billing.CourseTypeMonthly)
	assert.ErrorIs(t, err, billing.ErrCatalogMiss)

	entry, err := billing.NewFeeCatalogEntry(tenantID, classID, billing.CourseTypeMonthly,
		decimal.NewFromInt(1000), decimal.NewFromInt(500), decimal.NewFromInt(5000))
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, entry))
	originalID := entry.ID

	replacement, err := billing.NewFeeCatalogEntry(tenantID, classID, billing.CourseTypeMonthly,
		decimal.NewFromInt(1200), decimal.NewFromInt(650), decimal.NewFromInt(6000))
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, replacement))
	assert.Equal(t, originalID, replacement.ID, "upsert keeps the stored row")

	got, err := repo.Lookup(ctx, tenantID, classID, billing.CourseTypeMonthly)
	require.NoError(t, err)
	assert.True(t, got.MonthlyFee.Equal(decimal.NewFromInt(650)))
	assert.True(t, got.AdmissionFee.Equal(decimal.NewFromInt(1200)))

	_, err = repo.Lookup(ctx, tenantID, classID, billing.CourseTypeYearly)
	assert.ErrorIs(t, err, billing.ErrCatalogMiss)

	entries, total, err := repo.FindAllForTenant(ctx, tenantID, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, entries, 1)
}

func TestGormMonthlyScheduleRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormMonthlyScheduleRepository(newTestDB(t))
	tenantID, studentID := uuid.New(), uuid.New()
	march := billing.MonthYear{Year: 2024, Month: time.March}

	_, err := repo.FindByStudentAndMonth(ctx, tenantID, studentID, march)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	slot := billing.NewMonthlySchedule(tenantID, studentID, march)
	require.NoError(t, repo.Create(ctx, slot))
	assert.ErrorIs(t, repo.Create(ctx, billing.NewMonthlySchedule(tenantID, studentID, march)), billing.ErrScheduleConflict)

	require.NoError(t, slot.MarkProcessed(decimal.NewFromInt(500), day(2024, 3, 31)))
	require.NoError(t, repo.MarkProcessed(ctx, slot))

	got, err := repo.FindByStudentAndMonth(ctx, tenantID, studentID, march)
	require.NoError(t, err)
	assert.True(t, got.IsProcessed)
	assert.True(t, got.FeeAmount.Equal(decimal.NewFromInt(500)))
	require.NotNil(t, got.ProcessedAt)

	t.Run("second mark is a conflict", func(t *testing.T) {
		assert.ErrorIs(t, repo.MarkProcessed(ctx, slot), billing.ErrScheduleConflict)
	})

	t.Run("lists months in order", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, billing.NewMonthlySchedule(tenantID, studentID, billing.MonthYear{Year: 2024, Month: time.January})))
		list, err := repo.FindByStudent(ctx, tenantID, studentID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, time.January, list[0].MonthYear.Month)
		assert.Equal(t, march, list[1].MonthYear)
	})
}

func TestGormCalculationHistoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormCalculationHistoryRepository(newTestDB(t))
	l := newTestLedger(t, uuid.New(), billing.CourseTypeMonthly, day(2024, 1, 25))
	jan := billing.MonthYear{Year: 2024, Month: time.January}

	has, err := repo.HasCatalogMiss(ctx, l.TenantID, l.StudentID, jan)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, repo.Append(ctx, billing.NewCatalogMissEntry(l, jan, day(2024, 1, 31))))

	has, err = repo.HasCatalogMiss(ctx, l.TenantID, l.StudentID, jan)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = repo.HasCatalogMiss(ctx, l.TenantID, l.StudentID, jan.Next())
	require.NoError(t, err)
	assert.False(t, has)

	dayOfMonth := 25
	require.NoError(t, repo.Append(ctx, billing.NewCalculationHistoryEntry(l, jan.Next(), day(2024, 2, 29), billing.FeeDecision{
		CalculationType: billing.CalculationTypeFirstMonth,
		FeeAmount:       decimal.NewFromInt(1500),
		EnrollmentDay:   &dayOfMonth,
		Reason:          "admission fee",
	})))

	filter := shared.DefaultFilter()
	filter.OrderBy = "month_year"
	filter.OrderDir = "asc"
	entries, total, err := repo.FindByStudent(ctx, l.TenantID, l.StudentID, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].IsCatalogMiss())
	assert.Equal(t, billing.CalculationTypeFirstMonth, entries[1].CalculationType)
	require.NotNil(t, entries[1].EnrollmentDay)
	assert.Equal(t, 25, *entries[1].EnrollmentDay)
}

func TestGormPaymentRecordRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormPaymentRecordRepository(newTestDB(t))
	tenantID, studentID := uuid.New(), uuid.New()

	for i := range 3 {
		p, err := billing.NewPaymentRecord(tenantID, studentID, decimal.NewFromInt(int64(100*(i+1))),
			billing.PaymentMethodCash, "", nil, day(2024, 3, i+1))
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, p))
	}

	filter := shared.Filter{Page: 1, PageSize: 2, OrderBy: "paid_at", OrderDir: "desc"}
	page, total, err := repo.FindByStudent(ctx, tenantID, studentID, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.True(t, page[0].Amount.Equal(decimal.NewFromInt(300)))
	assert.Nil(t, page[0].MonthYear)

	filter.Page = 2
	page, _, err = repo.FindByStudent(ctx, tenantID, studentID, filter)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.True(t, page[0].Amount.Equal(decimal.NewFromInt(100)))
}
