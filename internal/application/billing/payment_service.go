package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/academy/feebilling/internal/domain/billing"
	"github.com/academy/feebilling/internal/domain/shared"
	"github.com/academy/feebilling/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentService applies payments to student ledgers
type PaymentService struct {
	txScope TransactionScope
	retry   retrier
	metrics BillingMetrics
	logger  *zap.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(txScope TransactionScope, logger *zap.Logger, retry RetryConfig) *PaymentService {
	return &PaymentService{
		txScope: txScope,
		retry:   retrier{config: retry, metrics: nopMetrics{}, logger: logger},
		metrics: nopMetrics{},
		logger:  logger,
	}
}

// SetMetrics sets the metrics recorder
func (s *PaymentService) SetMetrics(m BillingMetrics) {
	if m == nil {
		m = nopMetrics{}
	}
	s.metrics = m
	s.retry.metrics = m
}

// ApplyPayment records a payment and applies it to the student's ledger.
// Pending never goes below zero; any excess is kept as an overpayment.
func (s *PaymentService) ApplyPayment(ctx context.Context, tenantID uuid.UUID, cmd ApplyPaymentCommand) (*Receipt, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "apply",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrStudentID, cmd.StudentID.String()),
	)
	defer span.End()

	payment, err := s.newPaymentRecord(tenantID, cmd)
	if err != nil {
		return nil, err
	}

	var receipt *Receipt
	telemetry.WithProfilingLabels(ctx, telemetry.BillingOperationLabels("apply_payment", tenantID.String()), func(c context.Context) {
		err = s.retry.do(c, "apply_payment", func() error {
			return s.txScope.Execute(c, func(repos TransactionalRepositories) error {
				var applyErr error
				receipt, applyErr = s.applyInTx(c, repos, payment)
				return applyErr
			})
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Warn("Failed to apply payment",
			zap.String("tenant_id", tenantID.String()),
			zap.String("student_id", cmd.StudentID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrAmount, payment.Amount.String(),
		telemetry.SpanAttrPaymentMethod, string(payment.Method),
		telemetry.SpanAttrReceipt, payment.ReceiptNumber,
	)
	s.metrics.RecordPayment(ctx, payment.Amount, receipt.Overpayment.IsPositive())

	s.logger.Info("Payment applied",
		zap.String("tenant_id", tenantID.String()),
		zap.String("student_id", cmd.StudentID.String()),
		zap.String("receipt_number", receipt.ReceiptNumber),
		zap.String("amount", receipt.Amount.String()),
		zap.String("overpayment", receipt.Overpayment.String()),
	)
	return receipt, nil
}

func (s *PaymentService) newPaymentRecord(tenantID uuid.UUID, cmd ApplyPaymentCommand) (*billing.PaymentRecord, error) {
	var period *billing.MonthYear
	if tag := strings.TrimSpace(cmd.MonthYear); tag != "" {
		p, err := billing.ParseMonthYear(tag)
		if err != nil {
			return nil, billing.ErrInvalidPayment.WithMessage(fmt.Sprintf("Invalid month tag %q, expected YYYY-MM", tag))
		}
		period = &p
	}

	paidAt := time.Now().UTC()
	if cmd.PaidAt != nil {
		paidAt = *cmd.PaidAt
	}

	method := billing.PaymentMethod(strings.ToLower(strings.TrimSpace(cmd.Method)))
	payment, err := billing.NewPaymentRecord(tenantID, cmd.StudentID, cmd.Amount, method, cmd.ReceiptNumber, period, paidAt)
	if err != nil {
		return nil, err
	}
	if payment.ReceiptNumber == "" {
		payment.ReceiptNumber = GenerateReceiptNumber(payment.ID, payment.PaidAt)
	}
	return payment, nil
}

func (s *PaymentService) applyInTx(ctx context.Context, repos TransactionalRepositories, payment *billing.PaymentRecord) (*Receipt, error) {
	ledger, err := repos.LedgerRepo().FindByStudentForUpdate(ctx, payment.TenantID, payment.StudentID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, billing.ErrInvalidPayment.WithMessage("Unknown student")
		}
		return nil, err
	}

	app, err := ledger.ApplyPayment(payment)
	if err != nil {
		return nil, err
	}
	if err := repos.PaymentRepo().Create(ctx, payment); err != nil {
		return nil, err
	}
	if err := repos.LedgerRepo().SaveWithLock(ctx, ledger); err != nil {
		return nil, err
	}
	if err := repos.SaveEvents(ctx, ledger.GetDomainEvents()...); err != nil {
		return nil, err
	}
	ledger.ClearDomainEvents()

	return &Receipt{
		PaymentID:        payment.ID,
		StudentID:        payment.StudentID,
		ReceiptNumber:    payment.ReceiptNumber,
		Amount:           payment.Amount,
		AppliedToPending: app.AppliedToPending,
		Overpayment:      app.Overpayment,
		Method:           string(payment.Method),
		PaidAt:           payment.PaidAt,
		Ledger:           ToLedgerSnapshot(ledger),
	}, nil
}

// GenerateReceiptNumber derives a receipt number from the payment ID,
// e.g. RCT-20240315-1A2B3C4D.
func GenerateReceiptNumber(paymentID uuid.UUID, paidAt time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(paymentID.String(), "-", "")[:8])
	return fmt.Sprintf("RCT-%s-%s", paidAt.UTC().Format("20060102"), suffix)
}
