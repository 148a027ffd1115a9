package billing

import (
	"sync"
	"time"

	"github.com/academy/feebilling/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StudentError records why one student could not be billed
type StudentError struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	StudentID uuid.UUID `json:"student_id"`
	Error     string    `json:"error"`
}

// BillingRunResult summarises one billing run.
// Candidates == Processed + Skipped + CatalogMisses + Failed.
type BillingRunResult struct {
	RunID         uuid.UUID       `json:"run_id"`
	ReferenceDate time.Time       `json:"reference_date"`
	MonthYear     string          `json:"month_year"`
	Candidates    int             `json:"candidates"`
	Processed     int             `json:"processed"`
	Skipped       int             `json:"skipped"`
	CatalogMisses int             `json:"catalog_misses"`
	Failed        int             `json:"failed"`
	TotalBilled   decimal.Decimal `json:"total_billed"`
	Errors        []StudentError  `json:"errors"`
	StartedAt     time.Time       `json:"started_at"`
	Duration      time.Duration   `json:"duration_ns"`

	mu sync.Mutex
}

func newBillingRunResult(runID uuid.UUID, referenceDate, startedAt time.Time) *BillingRunResult {
	return &BillingRunResult{
		RunID:         runID,
		ReferenceDate: referenceDate,
		MonthYear:     billing.MonthYearOf(referenceDate).String(),
		TotalBilled:   decimal.Zero,
		Errors:        []StudentError{},
		StartedAt:     startedAt,
	}
}

func (r *BillingRunResult) record(tenantID, studentID uuid.UUID, out studentOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Candidates++
	switch out.kind {
	case OutcomeProcessed:
		r.Processed++
		r.TotalBilled = r.TotalBilled.Add(out.fee)
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeCatalogMiss:
		r.CatalogMisses++
	default:
		r.Failed++
		msg := "unknown error"
		if out.err != nil {
			msg = out.err.Error()
		}
		r.Errors = append(r.Errors, StudentError{TenantID: tenantID, StudentID: studentID, Error: msg})
	}
}

// ToEvent builds the BillingRunCompleted event for the result.
func (r *BillingRunResult) ToEvent() *billing.BillingRunCompletedEvent {
	evt := billing.NewBillingRunCompletedEvent(r.RunID, r.ReferenceDate)
	evt.Candidates = r.Candidates
	evt.Processed = r.Processed
	evt.Skipped = r.Skipped
	evt.CatalogMisses = r.CatalogMisses
	evt.Failed = r.Failed
	evt.TotalBilled = r.TotalBilled
	return evt
}

type studentOutcome struct {
	kind string
	fee  decimal.Decimal
	err  error
}

// LedgerSnapshot is the read model of a student ledger
type LedgerSnapshot struct {
	TenantID               uuid.UUID       `json:"tenant_id"`
	StudentID              uuid.UUID       `json:"student_id"`
	ClassID                uuid.UUID       `json:"class_id"`
	SOCenterID             *uuid.UUID      `json:"so_center_id,omitempty"`
	CourseType             string          `json:"course_type"`
	Status                 string          `json:"status"`
	EnrollmentDate         time.Time       `json:"enrollment_date"`
	TotalFeeAmount         decimal.Decimal `json:"total_fee_amount"`
	PaidAmount             decimal.Decimal `json:"paid_amount"`
	PendingAmount          decimal.Decimal `json:"pending_amount"`
	AdmissionFeePaid       bool            `json:"admission_fee_paid"`
	FirstPeriodBilled      bool            `json:"first_period_billed"`
	LastFeeCalculationDate *time.Time      `json:"last_fee_calculation_date,omitempty"`
	Version                int             `json:"version"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// ToLedgerSnapshot converts a ledger to its read model
func ToLedgerSnapshot(l *billing.StudentLedger) LedgerSnapshot {
	return LedgerSnapshot{
		TenantID:               l.TenantID,
		StudentID:              l.StudentID,
		ClassID:                l.ClassID,
		SOCenterID:             l.SOCenterID,
		CourseType:             l.CourseType.String(),
		Status:                 string(l.Status),
		EnrollmentDate:         l.EnrollmentDate,
		TotalFeeAmount:         l.TotalFeeAmount,
		PaidAmount:             l.PaidAmount,
		PendingAmount:          l.PendingAmount,
		AdmissionFeePaid:       l.AdmissionFeePaid,
		FirstPeriodBilled:      l.FirstPeriodBilled,
		LastFeeCalculationDate: billing.LastCalculationDate(l.Billing),
		Version:                l.GetVersion(),
		UpdatedAt:              l.UpdatedAt,
	}
}

// ApplyPaymentCommand records money received for a student
type ApplyPaymentCommand struct {
	StudentID     uuid.UUID
	Amount        decimal.Decimal
	Method        string
	ReceiptNumber string
	MonthYear     string
	PaidAt        *time.Time
}

// Receipt is returned after a payment is applied
type Receipt struct {
	PaymentID        uuid.UUID       `json:"payment_id"`
	StudentID        uuid.UUID       `json:"student_id"`
	ReceiptNumber    string          `json:"receipt_number"`
	Amount           decimal.Decimal `json:"amount"`
	AppliedToPending decimal.Decimal `json:"applied_to_pending"`
	Overpayment      decimal.Decimal `json:"overpayment"`
	Method           string          `json:"method"`
	PaidAt           time.Time       `json:"paid_at"`
	Ledger           LedgerSnapshot  `json:"ledger"`
}

// OpenLedgerCommand opens a ledger for a newly enrolled student
type OpenLedgerCommand struct {
	StudentID      uuid.UUID
	ClassID        uuid.UUID
	SOCenterID     *uuid.UUID
	ContactEmail   string
	CourseType     string
	EnrollmentDate time.Time
}

// UpsertFeeCatalogCommand sets the fees for a class and course type
type UpsertFeeCatalogCommand struct {
	ClassID      uuid.UUID
	CourseType   string
	AdmissionFee decimal.Decimal
	MonthlyFee   decimal.Decimal
	YearlyFee    decimal.Decimal
}

// FeeCatalogEntryDTO is the read model of a catalog entry
type FeeCatalogEntryDTO struct {
	ID           uuid.UUID       `json:"id"`
	ClassID      uuid.UUID       `json:"class_id"`
	CourseType   string          `json:"course_type"`
	AdmissionFee decimal.Decimal `json:"admission_fee"`
	MonthlyFee   decimal.Decimal `json:"monthly_fee"`
	YearlyFee    decimal.Decimal `json:"yearly_fee"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ToFeeCatalogEntryDTO converts a catalog entry
func ToFeeCatalogEntryDTO(e *billing.FeeCatalogEntry) FeeCatalogEntryDTO {
	return FeeCatalogEntryDTO{
		ID:           e.ID,
		ClassID:      e.ClassID,
		CourseType:   e.CourseType.String(),
		AdmissionFee: e.AdmissionFee,
		MonthlyFee:   e.MonthlyFee,
		YearlyFee:    e.YearlyFee,
		UpdatedAt:    e.UpdatedAt,
	}
}

// PaymentDTO is the read model of a payment record
type PaymentDTO struct {
	ID            uuid.UUID       `json:"id"`
	StudentID     uuid.UUID       `json:"student_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	ReceiptNumber string          `json:"receipt_number"`
	MonthYear     string          `json:"month_year,omitempty"`
	PaidAt        time.Time       `json:"paid_at"`
}

// ToPaymentDTO converts a payment record
func ToPaymentDTO(p *billing.PaymentRecord) PaymentDTO {
	dto := PaymentDTO{
		ID:            p.ID,
		StudentID:     p.StudentID,
		Amount:        p.Amount,
		Method:        string(p.Method),
		ReceiptNumber: p.ReceiptNumber,
		PaidAt:        p.PaidAt,
	}
	if p.MonthYear != nil {
		dto.MonthYear = p.MonthYear.String()
	}
	return dto
}

// CalculationDTO is the read model of a calculation history entry
type CalculationDTO struct {
	ID              uuid.UUID       `json:"id"`
	CalculationDate time.Time       `json:"calculation_date"`
	MonthYear       string          `json:"month_year"`
	CalculationType string          `json:"calculation_type"`
	FeeAmount       decimal.Decimal `json:"fee_amount"`
	EnrollmentDay   *int            `json:"enrollment_day,omitempty"`
	Reason          string          `json:"reason"`
	CatalogMiss     bool            `json:"catalog_miss"`
}

// ToCalculationDTO converts a history entry
func ToCalculationDTO(e *billing.CalculationHistoryEntry) CalculationDTO {
	return CalculationDTO{
		ID:              e.ID,
		CalculationDate: e.CalculationDate,
		MonthYear:       e.MonthYear.String(),
		CalculationType: e.CalculationType.String(),
		FeeAmount:       e.FeeAmount,
		EnrollmentDay:   e.EnrollmentDay,
		Reason:          e.Reason,
		CatalogMiss:     e.IsCatalogMiss(),
	}
}

// ScheduleDTO is the read model of a monthly schedule row
type ScheduleDTO struct {
	MonthYear     string          `json:"month_year"`
	ScheduledDate time.Time       `json:"scheduled_date"`
	FeeAmount     decimal.Decimal `json:"fee_amount"`
	IsProcessed   bool            `json:"is_processed"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
}

// ToScheduleDTO converts a schedule row
func ToScheduleDTO(s *billing.MonthlySchedule) ScheduleDTO {
	return ScheduleDTO{
		MonthYear:     s.MonthYear.String(),
		ScheduledDate: s.ScheduledDate,
		FeeAmount:     s.FeeAmount,
		IsProcessed:   s.IsProcessed,
		ProcessedAt:   s.ProcessedAt,
	}
}
