package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics recorder is built without a meter.
var ErrMeterNil = errors.New("meter cannot be nil")

// BillingMetrics records billing run and payment metrics.
type BillingMetrics struct {
	studentsProcessed *Counter
	feeAmount         *FloatCounter
	runDuration       *Histogram
	runsTotal         *Counter
	paymentsApplied   *Counter
	paymentAmount     *FloatCounter
	retryAttempts     *Counter
}

// NewBillingMetrics creates the billing instruments on meter.
func NewBillingMetrics(meter metric.Meter) (*BillingMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &BillingMetrics{}
	var err error

	if m.studentsProcessed, err = NewCounter(meter,
		"billing_students_processed_total",
		"Students handled by billing runs, by result",
		"{student}",
	); err != nil {
		return nil, fmt.Errorf("students processed: %w", err)
	}
	if m.feeAmount, err = NewFloatCounter(meter,
		"billing_fee_amount_total",
		"Sum of fees charged by billing runs",
		"{currency}",
	); err != nil {
		return nil, fmt.Errorf("fee amount: %w", err)
	}
	if m.runDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "billing_run_duration_seconds",
		Description: "Wall time of a billing run",
		Unit:        "s",
		Boundaries:  BillingRunDurationBuckets,
	}); err != nil {
		return nil, fmt.Errorf("run duration: %w", err)
	}
	if m.runsTotal, err = NewCounter(meter,
		"billing_runs_total",
		"Billing runs, by result",
		"{run}",
	); err != nil {
		return nil, fmt.Errorf("runs total: %w", err)
	}
	if m.paymentsApplied, err = NewCounter(meter,
		"billing_payments_applied_total",
		"Payments applied to student ledgers",
		"{payment}",
	); err != nil {
		return nil, fmt.Errorf("payments applied: %w", err)
	}
	if m.paymentAmount, err = NewFloatCounter(meter,
		"billing_payment_amount_total",
		"Sum of payment amounts applied",
		"{currency}",
	); err != nil {
		return nil, fmt.Errorf("payment amount: %w", err)
	}
	if m.retryAttempts, err = NewCounter(meter,
		"billing_retry_attempts_total",
		"Retries of transient store failures, by operation",
		"{attempt}",
	); err != nil {
		return nil, fmt.Errorf("retry attempts: %w", err)
	}

	return m, nil
}

// RecordStudentOutcome counts one student result and adds the charged fee.
func (m *BillingMetrics) RecordStudentOutcome(ctx context.Context, outcome string, fee decimal.Decimal) {
	m.studentsProcessed.Inc(ctx, AttrResult.String(outcome))
	if fee.IsPositive() {
		m.feeAmount.Add(ctx, fee.InexactFloat64())
	}
}

// RecordRun records the duration of a completed run.
func (m *BillingMetrics) RecordRun(ctx context.Context, d time.Duration, failed bool) {
	result := "success"
	if failed {
		result = "partial_failure"
	}
	m.runDuration.RecordDuration(ctx, d, AttrResult.String(result))
	m.runsTotal.Inc(ctx, AttrResult.String(result))
}

// RecordPayment counts an applied payment.
func (m *BillingMetrics) RecordPayment(ctx context.Context, amount decimal.Decimal, overpaid bool) {
	m.paymentsApplied.Inc(ctx, AttrOverpaid.Bool(overpaid))
	m.paymentAmount.Add(ctx, amount.InexactFloat64())
}

// RecordRetry counts a retry of operation after a transient failure.
func (m *BillingMetrics) RecordRetry(ctx context.Context, operation string) {
	m.retryAttempts.Inc(ctx, AttrOperation.String(operation))
}
