package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CalculationHistoryEntry is an immutable audit record of one billing decision.
// A catalog miss is recorded with an empty CalculationType.
type CalculationHistoryEntry struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	StudentID       uuid.UUID
	CalculationDate time.Time
	MonthYear       MonthYear
	CalculationType CalculationType
	FeeAmount       decimal.Decimal
	EnrollmentDay   *int
	Reason          string
	CreatedAt       time.Time
}

// NewCalculationHistoryEntry records a decision that was posted to the ledger
func NewCalculationHistoryEntry(l *StudentLedger, period MonthYear, referenceDate time.Time, d FeeDecision) *CalculationHistoryEntry {
	return &CalculationHistoryEntry{
		ID:              uuid.New(),
		TenantID:        l.TenantID,
		StudentID:       l.StudentID,
		CalculationDate: CalendarDate(referenceDate),
		MonthYear:       period,
		CalculationType: d.CalculationType,
		FeeAmount:       d.FeeAmount,
		EnrollmentDay:   d.EnrollmentDay,
		Reason:          d.Reason,
		CreatedAt:       time.Now().UTC(),
	}
}

// NewCatalogMissEntry records that a student could not be billed for lack of a catalog entry
func NewCatalogMissEntry(l *StudentLedger, period MonthYear, referenceDate time.Time) *CalculationHistoryEntry {
	return &CalculationHistoryEntry{
		ID:              uuid.New(),
		TenantID:        l.TenantID,
		StudentID:       l.StudentID,
		CalculationDate: CalendarDate(referenceDate),
		MonthYear:       period,
		FeeAmount:       decimal.Zero,
		Reason:          ReasonNoFeeCatalogEntry,
		CreatedAt:       time.Now().UTC(),
	}
}

// IsCatalogMiss reports whether the entry records an unbillable cycle
func (e *CalculationHistoryEntry) IsCatalogMiss() bool {
	return e.CalculationType == ""
}
