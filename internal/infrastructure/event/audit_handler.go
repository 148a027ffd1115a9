package event

import (
	"context"

	"github.com/academy/feebilling/internal/domain/billing"
	"github.com/academy/feebilling/internal/domain/shared"
	"go.uber.org/zap"
)

// AuditLogHandler writes one structured log line per delivered event
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates a new audit log handler
func NewAuditLogHandler(logger *zap.Logger) *AuditLogHandler {
	return &AuditLogHandler{logger: logger.Named("audit")}
}

// EventTypes subscribes the handler to all events
func (h *AuditLogHandler) EventTypes() []string {
	return nil
}

// Handle logs the event envelope plus the fields an auditor needs for billing events
func (h *AuditLogHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.String("tenant_id", event.TenantID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	}

	switch e := event.(type) {
	case *billing.FeeCalculatedEvent:
		fields = append(fields,
			zap.String("student_id", e.StudentID.String()),
			zap.String("month_year", e.MonthYear),
			zap.String("calculation_type", e.CalculationType.String()),
			zap.String("fee_amount", e.FeeAmount.String()),
			zap.String("pending_amount", e.PendingAmount.String()),
		)
	case *billing.PaymentAppliedEvent:
		fields = append(fields,
			zap.String("student_id", e.StudentID.String()),
			zap.String("receipt_number", e.ReceiptNumber),
			zap.String("amount", e.Amount.String()),
			zap.String("overpayment", e.Overpayment.String()),
		)
	case *billing.LedgerStatusChangedEvent:
		fields = append(fields,
			zap.String("student_id", e.StudentID.String()),
			zap.String("previous_status", string(e.PreviousStatus)),
			zap.String("status", string(e.Status)),
		)
	case *billing.BillingRunCompletedEvent:
		fields = append(fields,
			zap.String("run_id", e.RunID.String()),
			zap.String("month_year", e.MonthYear),
			zap.Int("processed", e.Processed),
			zap.Int("failed", e.Failed),
			zap.String("total_billed", e.TotalBilled.String()),
		)
	}

	h.logger.Info("Billing event", fields...)
	return nil
}

var _ shared.EventHandler = (*AuditLogHandler)(nil)
