package billing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how a fee payment was received
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodUPI          PaymentMethod = "upi"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCheque       PaymentMethod = "cheque"
	PaymentMethodOnline       PaymentMethod = "online"
)

// IsValid returns true if the payment method is known
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodUPI, PaymentMethodCard,
		PaymentMethodBankTransfer, PaymentMethodCheque, PaymentMethodOnline:
		return true
	}
	return false
}

// PaymentRecord is an immutable record of money received for a student
type PaymentRecord struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	StudentID     uuid.UUID
	Amount        decimal.Decimal
	Method        PaymentMethod
	ReceiptNumber string
	MonthYear     *MonthYear
	PaidAt        time.Time
	CreatedAt     time.Time
}

// NewPaymentRecord validates and creates a payment record
func NewPaymentRecord(
	tenantID, studentID uuid.UUID,
	amount decimal.Decimal,
	method PaymentMethod,
	receiptNumber string,
	period *MonthYear,
	paidAt time.Time,
) (*PaymentRecord, error) {
	if studentID == uuid.Nil {
		return nil, ErrInvalidPayment.WithMessage("Student ID is required")
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidPayment.WithMessage("Payment amount must be positive")
	}
	if !HasMoneyScale(amount) {
		return nil, ErrInvalidPayment.WithMessage("Payment amount supports at most 4 decimal places")
	}
	if !method.IsValid() {
		return nil, ErrInvalidPayment.WithMessage("Unknown payment method")
	}
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	return &PaymentRecord{
		ID:            uuid.New(),
		TenantID:      tenantID,
		StudentID:     studentID,
		Amount:        amount,
		Method:        method,
		ReceiptNumber: strings.TrimSpace(receiptNumber),
		MonthYear:     period,
		PaidAt:        paidAt.UTC(),
		CreatedAt:     time.Now().UTC(),
	}, nil
}
