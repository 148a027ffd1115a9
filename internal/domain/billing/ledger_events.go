package billing

import (
	"time"

	"github.com/academy/feebilling/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type names used in event envelopes
const (
	AggregateTypeStudentLedger = "StudentLedger"
	AggregateTypeBillingRun    = "BillingRun"
)

// Event type names
const (
	EventTypeLedgerOpened        = "LedgerOpened"
	EventTypeFeeCalculated       = "FeeCalculated"
	EventTypePaymentApplied      = "PaymentApplied"
	EventTypeLedgerStatusChanged = "LedgerStatusChanged"
	EventTypeBillingRunCompleted = "BillingRunCompleted"
)

// LedgerOpenedEvent is raised when a ledger is opened for a newly enrolled student
type LedgerOpenedEvent struct {
	shared.BaseDomainEvent
	StudentID      uuid.UUID  `json:"student_id"`
	ClassID        uuid.UUID  `json:"class_id"`
	CourseType     CourseType `json:"course_type"`
	EnrollmentDate time.Time  `json:"enrollment_date"`
}

// EventType returns the event type name
func (e *LedgerOpenedEvent) EventType() string {
	return EventTypeLedgerOpened
}

// NewLedgerOpenedEvent creates a new LedgerOpenedEvent
func NewLedgerOpenedEvent(l *StudentLedger) *LedgerOpenedEvent {
	return &LedgerOpenedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLedgerOpened, AggregateTypeStudentLedger, l.ID, l.TenantID),
		StudentID:       l.StudentID,
		ClassID:         l.ClassID,
		CourseType:      l.CourseType,
		EnrollmentDate:  l.EnrollmentDate,
	}
}

// FeeCalculatedEvent is raised when a month's fee is posted to a ledger
type FeeCalculatedEvent struct {
	shared.BaseDomainEvent
	StudentID       uuid.UUID       `json:"student_id"`
	MonthYear       string          `json:"month_year"`
	CalculationType CalculationType `json:"calculation_type"`
	FeeAmount       decimal.Decimal `json:"fee_amount"`
	TotalFeeAmount  decimal.Decimal `json:"total_fee_amount"`
	PendingAmount   decimal.Decimal `json:"pending_amount"`
	Reason          string          `json:"reason"`
}

// EventType returns the event type name
func (e *FeeCalculatedEvent) EventType() string {
	return EventTypeFeeCalculated
}

// NewFeeCalculatedEvent creates a new FeeCalculatedEvent
func NewFeeCalculatedEvent(l *StudentLedger, d FeeDecision, period MonthYear) *FeeCalculatedEvent {
	return &FeeCalculatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeFeeCalculated, AggregateTypeStudentLedger, l.ID, l.TenantID),
		StudentID:       l.StudentID,
		MonthYear:       period.String(),
		CalculationType: d.CalculationType,
		FeeAmount:       d.FeeAmount,
		TotalFeeAmount:  l.TotalFeeAmount,
		PendingAmount:   l.PendingAmount,
		Reason:          d.Reason,
	}
}

// PaymentAppliedEvent is raised after a payment is posted to a ledger.
// Consumers use it for receipts and wallet-credit bookkeeping.
type PaymentAppliedEvent struct {
	shared.BaseDomainEvent
	StudentID        uuid.UUID       `json:"student_id"`
	PaymentID        uuid.UUID       `json:"payment_id"`
	ReceiptNumber    string          `json:"receipt_number"`
	Method           PaymentMethod   `json:"method"`
	Amount           decimal.Decimal `json:"amount"`
	AppliedToPending decimal.Decimal `json:"applied_to_pending"`
	Overpayment      decimal.Decimal `json:"overpayment"`
	PaidAmount       decimal.Decimal `json:"paid_amount"`
	PendingAmount    decimal.Decimal `json:"pending_amount"`
	ContactEmail     string          `json:"contact_email,omitempty"`
	PaidAt           time.Time       `json:"paid_at"`
}

// EventType returns the event type name
func (e *PaymentAppliedEvent) EventType() string {
	return EventTypePaymentApplied
}

// NewPaymentAppliedEvent creates a new PaymentAppliedEvent
func NewPaymentAppliedEvent(l *StudentLedger, p *PaymentRecord, app PaymentApplication) *PaymentAppliedEvent {
	return &PaymentAppliedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypePaymentApplied, AggregateTypeStudentLedger, l.ID, l.TenantID),
		StudentID:        l.StudentID,
		PaymentID:        p.ID,
		ReceiptNumber:    p.ReceiptNumber,
		Method:           p.Method,
		Amount:           p.Amount,
		AppliedToPending: app.AppliedToPending,
		Overpayment:      app.Overpayment,
		PaidAmount:       l.PaidAmount,
		PendingAmount:    l.PendingAmount,
		ContactEmail:     l.ContactEmail,
		PaidAt:           p.PaidAt,
	}
}

// LedgerStatusChangedEvent is raised when a ledger is deactivated, reactivated or dropped out
type LedgerStatusChangedEvent struct {
	shared.BaseDomainEvent
	StudentID      uuid.UUID    `json:"student_id"`
	PreviousStatus LedgerStatus `json:"previous_status"`
	Status         LedgerStatus `json:"status"`
}

// EventType returns the event type name
func (e *LedgerStatusChangedEvent) EventType() string {
	return EventTypeLedgerStatusChanged
}

// NewLedgerStatusChangedEvent creates a new LedgerStatusChangedEvent
func NewLedgerStatusChangedEvent(l *StudentLedger, previous LedgerStatus) *LedgerStatusChangedEvent {
	return &LedgerStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLedgerStatusChanged, AggregateTypeStudentLedger, l.ID, l.TenantID),
		StudentID:       l.StudentID,
		PreviousStatus:  previous,
		Status:          l.Status,
	}
}

// BillingRunCompletedEvent summarises a finished billing run.
// Runs span all tenants, so the envelope tenant is uuid.Nil.
type BillingRunCompletedEvent struct {
	shared.BaseDomainEvent
	RunID         uuid.UUID       `json:"run_id"`
	ReferenceDate time.Time       `json:"reference_date"`
	MonthYear     string          `json:"month_year"`
	Candidates    int             `json:"candidates"`
	Processed     int             `json:"processed"`
	Skipped       int             `json:"skipped"`
	CatalogMisses int             `json:"catalog_misses"`
	Failed        int             `json:"failed"`
	TotalBilled   decimal.Decimal `json:"total_billed"`
}

// EventType returns the event type name
func (e *BillingRunCompletedEvent) EventType() string {
	return EventTypeBillingRunCompleted
}

// NewBillingRunCompletedEvent creates a new BillingRunCompletedEvent
func NewBillingRunCompletedEvent(runID uuid.UUID, referenceDate time.Time) *BillingRunCompletedEvent {
	return &BillingRunCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBillingRunCompleted, AggregateTypeBillingRun, runID, uuid.Nil),
		RunID:           runID,
		ReferenceDate:   CalendarDate(referenceDate),
		MonthYear:       MonthYearOf(referenceDate).String(),
		TotalBilled:     decimal.Zero,
	}
}
