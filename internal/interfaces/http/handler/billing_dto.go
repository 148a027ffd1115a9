package handler

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpenLedgerRequest opens a billing ledger for an enrolled student
type OpenLedgerRequest struct {
	StudentID      string  `json:"student_id" binding:"required,uuid" example:"6f1c2d4e-8a7b-4c3d-9e2f-1a2b3c4d5e6f"`
	ClassID        string  `json:"class_id" binding:"required,uuid" example:"0b7e9c1a-3d2f-4e5a-8b6c-7d8e9f0a1b2c"`
	SOCenterID     *string `json:"so_center_id" binding:"omitempty,uuid"`
	ContactEmail   string  `json:"contact_email" binding:"omitempty,email" example:"parent@example.com"`
	CourseType     string  `json:"course_type" binding:"required" example:"monthly"`
	EnrollmentDate string  `json:"enrollment_date" binding:"required,datetime=2006-01-02" example:"2026-03-10"`
}

// ChangeLedgerStatusRequest moves a ledger between active, inactive and dropped_out
type ChangeLedgerStatusRequest struct {
	Status string `json:"status" binding:"required" example:"inactive"`
}

// ApplyPaymentRequest records money received for a student.
// Amount is validated by the billing domain so that a non-positive value reports INVALID_PAYMENT.
type ApplyPaymentRequest struct {
	Amount        decimal.Decimal `json:"amount" swaggertype:"string" example:"1500.00"`
	Method        string          `json:"method" binding:"required" example:"upi"`
	ReceiptNumber string          `json:"receipt_number" binding:"omitempty,max=64" example:"RCT-0001"`
	MonthYear     string          `json:"month_year" binding:"omitempty" example:"2026-03"`
	PaidAt        *time.Time      `json:"paid_at"`
}

// UpsertFeeCatalogRequest sets the fees charged for a class and course type
type UpsertFeeCatalogRequest struct {
	ClassID      string          `json:"class_id" binding:"required,uuid" example:"0b7e9c1a-3d2f-4e5a-8b6c-7d8e9f0a1b2c"`
	CourseType   string          `json:"course_type" binding:"required" example:"monthly"`
	AdmissionFee decimal.Decimal `json:"admission_fee" swaggertype:"string" example:"5000"`
	MonthlyFee   decimal.Decimal `json:"monthly_fee" swaggertype:"string" example:"1500"`
	YearlyFee    decimal.Decimal `json:"yearly_fee" swaggertype:"string" example:"15000"`
}

// RunBillingRequest triggers a billing run. An empty reference date means today (UTC).
type RunBillingRequest struct {
	ReferenceDate string `json:"reference_date" binding:"omitempty,datetime=2006-01-02" example:"2026-03-20"`
}
