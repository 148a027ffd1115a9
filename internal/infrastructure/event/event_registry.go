package event

import "github.com/academy/feebilling/internal/domain/billing"

// RegisterBillingEvents registers every billing event type with the serializer.
// The outbox processor cannot deserialize an unregistered type.
func RegisterBillingEvents(serializer *EventSerializer) {
	serializer.Register(billing.EventTypeLedgerOpened, &billing.LedgerOpenedEvent{})
	serializer.Register(billing.EventTypeFeeCalculated, &billing.FeeCalculatedEvent{})
	serializer.Register(billing.EventTypePaymentApplied, &billing.PaymentAppliedEvent{})
	serializer.Register(billing.EventTypeLedgerStatusChanged, &billing.LedgerStatusChangedEvent{})
	serializer.Register(billing.EventTypeBillingRunCompleted, &billing.BillingRunCompletedEvent{})
}

// NewBillingSerializer returns a serializer with all billing events registered
func NewBillingSerializer() *EventSerializer {
	s := NewEventSerializer()
	RegisterBillingEvents(s)
	return s
}
