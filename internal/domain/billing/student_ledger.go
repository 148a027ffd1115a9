package billing

import (
	"time"

	"github.com/academy/feebilling/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerStatus mirrors the student's enrollment status
type LedgerStatus string

const (
	LedgerStatusActive     LedgerStatus = "active"
	LedgerStatusInactive   LedgerStatus = "inactive"
	LedgerStatusDroppedOut LedgerStatus = "dropped_out"
)

// IsValid returns true if the status is known
func (s LedgerStatus) IsValid() bool {
	switch s {
	case LedgerStatusActive, LedgerStatusInactive, LedgerStatusDroppedOut:
		return true
	}
	return false
}

// StudentLedger is the per-student financial record.
//
// Invariant: TotalFeeAmount == PaidAmount + PendingAmount, all non-negative.
// Only ApplyCharge and ApplyPayment change the amounts.
type StudentLedger struct {
	shared.TenantAggregateRoot
	StudentID         uuid.UUID
	ClassID           uuid.UUID
	SOCenterID        *uuid.UUID
	ContactEmail      string
	CourseType        CourseType
	EnrollmentDate    time.Time
	Status            LedgerStatus
	AdmissionFeePaid  bool
	FirstPeriodBilled bool
	TotalFeeAmount    decimal.Decimal
	PaidAmount        decimal.Decimal
	PendingAmount     decimal.Decimal
	Billing           BillingState
}

// NewLedgerInput carries the student directory fields a ledger is opened with
type NewLedgerInput struct {
	StudentID      uuid.UUID
	ClassID        uuid.UUID
	SOCenterID     *uuid.UUID
	ContactEmail   string
	CourseType     CourseType
	EnrollmentDate time.Time
}

// NewStudentLedger opens an unbilled ledger with zero balances
func NewStudentLedger(tenantID uuid.UUID, in NewLedgerInput) (*StudentLedger, error) {
	if in.StudentID == uuid.Nil || in.ClassID == uuid.Nil || in.EnrollmentDate.IsZero() {
		return nil, ErrInvalidEnrollment
	}
	if !in.CourseType.IsValid() {
		return nil, ErrInvalidCourseType
	}

	l := &StudentLedger{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		StudentID:           in.StudentID,
		ClassID:             in.ClassID,
		SOCenterID:          in.SOCenterID,
		ContactEmail:        in.ContactEmail,
		CourseType:          in.CourseType,
		EnrollmentDate:      CalendarDate(in.EnrollmentDate),
		Status:              LedgerStatusActive,
		TotalFeeAmount:      decimal.Zero,
		PaidAmount:          decimal.Zero,
		PendingAmount:       decimal.Zero,
		Billing:             Unbilled{},
	}
	l.AddDomainEvent(NewLedgerOpenedEvent(l))
	return l, nil
}

// EnrollmentPeriod returns the month the student enrolled in
func (l *StudentLedger) EnrollmentPeriod() MonthYear {
	return MonthYearOf(l.EnrollmentDate)
}

// IsDue reports whether the ledger should be billed for the period containing referenceDate.
func (l *StudentLedger) IsDue(referenceDate time.Time) bool {
	ref := CalendarDate(referenceDate)
	if l.Status != LedgerStatusActive || l.EnrollmentDate.After(ref) {
		return false
	}
	switch s := l.Billing.(type) {
	case Unbilled:
		return true
	case BilledThrough:
		return s.Period().Before(MonthYearOf(ref))
	default:
		return false
	}
}

// ApplyCharge posts a billing decision to the ledger.
func (l *StudentLedger) ApplyCharge(decision FeeDecision, period MonthYear, referenceDate time.Time) error {
	if decision.FeeAmount.IsNegative() {
		return ErrInvalidFee
	}

	l.TotalFeeAmount = l.TotalFeeAmount.Add(decision.FeeAmount)
	l.PendingAmount = l.PendingAmount.Add(decision.FeeAmount)
	l.Billing = BilledThrough{Date: CalendarDate(referenceDate)}
	if decision.IncludesAdmission {
		l.AdmissionFeePaid = true
	}
	if decision.IncludesFirstPeriod {
		l.FirstPeriodBilled = true
	}

	l.Touch()
	l.IncrementVersion()
	l.AddDomainEvent(NewFeeCalculatedEvent(l, decision, period))
	return nil
}

// PaymentApplication describes how a payment was split against the ledger
type PaymentApplication struct {
	AppliedToPending decimal.Decimal
	Overpayment      decimal.Decimal
}

// ApplyPayment moves a payment from pending to paid.
// Pending floors at zero; any excess is still recorded as paid and raises the total
// by the same amount so the ledger stays balanced.
func (l *StudentLedger) ApplyPayment(payment *PaymentRecord) (PaymentApplication, error) {
	if payment == nil || !payment.Amount.IsPositive() {
		return PaymentApplication{}, ErrInvalidPayment.WithMessage("Payment amount must be positive")
	}
	if payment.StudentID != l.StudentID || payment.TenantID != l.TenantID {
		return PaymentApplication{}, ErrInvalidPayment.WithMessage("Payment does not belong to this student")
	}

	applied := decimal.Min(payment.Amount, l.PendingAmount)
	overpayment := payment.Amount.Sub(applied)

	l.PendingAmount = l.PendingAmount.Sub(applied)
	l.PaidAmount = l.PaidAmount.Add(payment.Amount)
	l.TotalFeeAmount = l.TotalFeeAmount.Add(overpayment)

	app := PaymentApplication{AppliedToPending: applied, Overpayment: overpayment}

	l.Touch()
	l.IncrementVersion()
	l.AddDomainEvent(NewPaymentAppliedEvent(l, payment, app))
	return app, nil
}

// ChangeStatus moves the ledger between active and inactive, or to dropped_out.
// dropped_out is terminal.
func (l *StudentLedger) ChangeStatus(status LedgerStatus) error {
	if !status.IsValid() {
		return ErrInvalidLedgerStatus
	}
	if l.Status == status {
		return nil
	}
	if l.Status == LedgerStatusDroppedOut {
		return ErrStatusTransition
	}

	previous := l.Status
	l.Status = status
	l.Touch()
	l.IncrementVersion()
	l.AddDomainEvent(NewLedgerStatusChangedEvent(l, previous))
	return nil
}

// CheckInvariant verifies total == paid + pending with non-negative components.
func (l *StudentLedger) CheckInvariant() error {
	if l.TotalFeeAmount.IsNegative() || l.PaidAmount.IsNegative() || l.PendingAmount.IsNegative() {
		return ErrLedgerInvariant
	}
	if !l.TotalFeeAmount.Equal(l.PaidAmount.Add(l.PendingAmount)) {
		return ErrLedgerInvariant
	}
	return nil
}
