package billing

import (
	"github.com/academy/feebilling/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places stored for money amounts
const MoneyScale = 4

// HasMoneyScale reports whether amount fits in MoneyScale decimal places
func HasMoneyScale(amount decimal.Decimal) bool {
	return amount.Truncate(MoneyScale).Equal(amount)
}

// FeeCatalogEntry holds the fees charged for one class and course type.
// Entries are edited by admins between runs and only read during a run.
type FeeCatalogEntry struct {
	shared.BaseEntity
	TenantID     uuid.UUID
	ClassID      uuid.UUID
	CourseType   CourseType
	AdmissionFee decimal.Decimal
	MonthlyFee   decimal.Decimal
	YearlyFee    decimal.Decimal
}

// NewFeeCatalogEntry validates and creates a catalog entry
func NewFeeCatalogEntry(
	tenantID, classID uuid.UUID,
	courseType CourseType,
	admissionFee, monthlyFee, yearlyFee decimal.Decimal,
) (*FeeCatalogEntry, error) {
	if !courseType.IsValid() {
		return nil, ErrInvalidCourseType
	}
	if classID == uuid.Nil {
		return nil, shared.ErrInvalidInput.WithMessage("Class ID is required")
	}
	if admissionFee.IsNegative() || monthlyFee.IsNegative() || yearlyFee.IsNegative() {
		return nil, ErrInvalidFee
	}
	if !HasMoneyScale(admissionFee) || !HasMoneyScale(monthlyFee) || !HasMoneyScale(yearlyFee) {
		return nil, ErrInvalidFee.WithMessage("Fee amounts support at most 4 decimal places")
	}

	return &FeeCatalogEntry{
		BaseEntity:   shared.NewBaseEntity(),
		TenantID:     tenantID,
		ClassID:      classID,
		CourseType:   courseType,
		AdmissionFee: admissionFee,
		MonthlyFee:   monthlyFee,
		YearlyFee:    yearlyFee,
	}, nil
}

// PeriodFee is the fee for one full billing period of the entry's course type.
func (e *FeeCatalogEntry) PeriodFee() decimal.Decimal {
	if e.CourseType == CourseTypeYearly {
		return e.YearlyFee
	}
	return e.MonthlyFee
}
