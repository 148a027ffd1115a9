// Package notification sends payment receipts to students' contact addresses.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/academy/feebilling/internal/domain/billing"
	"github.com/academy/feebilling/internal/domain/shared"
	"github.com/academy/feebilling/internal/infrastructure/config"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// MessageSender delivers mail messages. *gomail.Dialer implements it.
type MessageSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// NewSMTPSender creates a gomail dialer from configuration
func NewSMTPSender(cfg config.MailConfig) *gomail.Dialer {
	return gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
}

// PaymentReceiptNotifier e-mails a receipt for every applied payment.
// Ledgers without a contact address are skipped.
type PaymentReceiptNotifier struct {
	sender MessageSender
	from   string
	logger *zap.Logger
}

// NewPaymentReceiptNotifier creates a new notifier
func NewPaymentReceiptNotifier(sender MessageSender, from string, logger *zap.Logger) *PaymentReceiptNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentReceiptNotifier{
		sender: sender,
		from:   from,
		logger: logger.Named("receipt_notifier"),
	}
}

// EventTypes implements shared.EventHandler
func (n *PaymentReceiptNotifier) EventTypes() []string {
	return []string{billing.EventTypePaymentApplied}
}

// Handle implements shared.EventHandler
func (n *PaymentReceiptNotifier) Handle(ctx context.Context, event shared.DomainEvent) error {
	payment, ok := event.(*billing.PaymentAppliedEvent)
	if !ok {
		return fmt.Errorf("unexpected event %T for receipt notifier", event)
	}
	if payment.ContactEmail == "" {
		n.logger.Debug("No contact address, receipt not sent",
			zap.String("receipt_number", payment.ReceiptNumber),
			zap.String("student_id", payment.StudentID.String()),
		)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := n.buildMessage(payment)
	if err := n.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send receipt %s: %w", payment.ReceiptNumber, err)
	}

	n.logger.Info("Payment receipt sent",
		zap.String("receipt_number", payment.ReceiptNumber),
		zap.String("student_id", payment.StudentID.String()),
		zap.String("tenant_id", payment.TenantID().String()),
	)
	return nil
}

func (n *PaymentReceiptNotifier) buildMessage(e *billing.PaymentAppliedEvent) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", e.ContactEmail)
	m.SetHeader("Subject", "Payment receipt "+e.ReceiptNumber)
	m.SetBody("text/plain", RenderReceipt(e))
	return m
}

// RenderReceipt formats the plain-text receipt body
func RenderReceipt(e *billing.PaymentAppliedEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Receipt number: %s\n", e.ReceiptNumber)
	fmt.Fprintf(&b, "Paid at: %s\n", e.PaidAt.UTC().Format(time.DateTime))
	fmt.Fprintf(&b, "Method: %s\n", e.Method)
	fmt.Fprintf(&b, "Amount: %s\n", e.Amount.StringFixed(2))
	fmt.Fprintf(&b, "Applied to outstanding fees: %s\n", e.AppliedToPending.StringFixed(2))
	if e.Overpayment.IsPositive() {
		fmt.Fprintf(&b, "Advance credit: %s\n", e.Overpayment.StringFixed(2))
	}
	fmt.Fprintf(&b, "Total paid to date: %s\n", e.PaidAmount.StringFixed(2))
	fmt.Fprintf(&b, "Outstanding balance: %s\n", e.PendingAmount.StringFixed(2))
	return b.String()
}

// ErrMailDisabled is returned by DisabledSender
var ErrMailDisabled = errors.New("mail delivery is disabled")

// DisabledSender rejects every message.
type DisabledSender struct{}

// DialAndSend implements MessageSender
func (DisabledSender) DialAndSend(...*gomail.Message) error {
	return ErrMailDisabled
}

var _ shared.EventHandler = (*PaymentReceiptNotifier)(nil)
