package notification

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/academy/feebilling/internal/domain/billing"
	"github.com/academy/feebilling/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/gomail.v2"
)

type captureSender struct {
	mu       sync.Mutex
	messages []*gomail.Message
	err      error
}

func (s *captureSender) DialAndSend(m ...*gomail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, m...)
	return nil
}

func newPaymentEvent(email string, overpayment int64) *billing.PaymentAppliedEvent {
	return &billing.PaymentAppliedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(billing.EventTypePaymentApplied, billing.AggregateTypeStudentLedger, uuid.New(), uuid.New()),
		StudentID:        uuid.New(),
		PaymentID:        uuid.New(),
		ReceiptNumber:    "RCT-20240315-ABCD1234",
		Method:           billing.PaymentMethodUPI,
		Amount:           decimal.NewFromInt(1200),
		AppliedToPending: decimal.NewFromInt(1200 - overpayment),
		Overpayment:      decimal.NewFromInt(overpayment),
		PaidAmount:       decimal.NewFromInt(2200),
		PendingAmount:    decimal.Zero,
		ContactEmail:     email,
		PaidAt:           time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
	}
}

func TestPaymentReceiptNotifier_SendsReceipt(t *testing.T) {
	sender := &captureSender{}
	core, logs := observer.New(zap.InfoLevel)
	n := NewPaymentReceiptNotifier(sender, "billing@academy.test", zap.New(core))

	assert.Equal(t, []string{billing.EventTypePaymentApplied}, n.EventTypes())
	require.NoError(t, n.Handle(context.Background(), newPaymentEvent("parent@example.com", 200)))

	require.Len(t, sender.messages, 1)
	msg := sender.messages[0]
	assert.Equal(t, []string{"billing@academy.test"}, msg.GetHeader("From"))
	assert.Equal(t, []string{"parent@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"Payment receipt RCT-20240315-ABCD1234"}, msg.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Amount: 1200.00")
	assert.Contains(t, buf.String(), "Advance credit: 200.00")

	assert.Equal(t, 1, logs.FilterMessage("Payment receipt sent").Len())
}

func TestPaymentReceiptNotifier_SkipsWithoutContact(t *testing.T) {
	sender := &captureSender{}
	n := NewPaymentReceiptNotifier(sender, "billing@academy.test", nil)

	require.NoError(t, n.Handle(context.Background(), newPaymentEvent("", 0)))
	assert.Empty(t, sender.messages)
}

func TestPaymentReceiptNotifier_Errors(t *testing.T) {
	t.Run("send failure is returned for retry", func(t *testing.T) {
		cause := errors.New("smtp: connection refused")
		n := NewPaymentReceiptNotifier(&captureSender{err: cause}, "billing@academy.test", nil)
		err := n.Handle(context.Background(), newPaymentEvent("parent@example.com", 0))
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "RCT-20240315-ABCD1234")
	})

	t.Run("wrong event type", func(t *testing.T) {
		n := NewPaymentReceiptNotifier(&captureSender{}, "billing@academy.test", nil)
		other := &billing.LedgerStatusChangedEvent{
			BaseDomainEvent: shared.NewBaseDomainEvent(billing.EventTypeLedgerStatusChanged, billing.AggregateTypeStudentLedger, uuid.New(), uuid.New()),
		}
		assert.Error(t, n.Handle(context.Background(), other))
	})

	t.Run("disabled sender", func(t *testing.T) {
		n := NewPaymentReceiptNotifier(DisabledSender{}, "billing@academy.test", nil)
		err := n.Handle(context.Background(), newPaymentEvent("parent@example.com", 0))
		assert.ErrorIs(t, err, ErrMailDisabled)
	})
}

func TestRenderReceipt_OmitsCreditWhenNotOverpaid(t *testing.T) {
	body := RenderReceipt(newPaymentEvent("parent@example.com", 0))
	assert.Contains(t, body, "Receipt number: RCT-20240315-ABCD1234\n")
	assert.Contains(t, body, "Paid at: 2024-03-15 10:30:00\n")
	assert.Contains(t, body, "Outstanding balance: 0.00\n")
	assert.NotContains(t, body, "Advance credit")
}
