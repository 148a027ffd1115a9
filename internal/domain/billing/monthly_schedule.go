package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MonthlySchedule is the (student, month) billing slot.
// The storage layer enforces uniqueness of (tenant, student, month); a row is
// flipped to processed exactly once.
type MonthlySchedule struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	StudentID     uuid.UUID
	MonthYear     MonthYear
	ScheduledDate time.Time
	FeeAmount     decimal.Decimal
	IsProcessed   bool
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewMonthlySchedule creates an unprocessed slot scheduled on the first day of the month
func NewMonthlySchedule(tenantID, studentID uuid.UUID, period MonthYear) *MonthlySchedule {
	now := time.Now().UTC()
	return &MonthlySchedule{
		ID:            uuid.New(),
		TenantID:      tenantID,
		StudentID:     studentID,
		MonthYear:     period,
		ScheduledDate: period.FirstDay(),
		FeeAmount:     decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// MarkProcessed records the billed fee. A processed slot cannot be processed again.
func (s *MonthlySchedule) MarkProcessed(fee decimal.Decimal, at time.Time) error {
	if s.IsProcessed {
		return ErrScheduleConflict
	}
	processedAt := at.UTC()
	s.FeeAmount = fee
	s.IsProcessed = true
	s.ProcessedAt = &processedAt
	s.UpdatedAt = processedAt
	return nil
}
