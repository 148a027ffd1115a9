package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Student outcomes reported to metrics.
const (
	OutcomeProcessed   = "processed"
	OutcomeSkipped     = "skipped"
	OutcomeCatalogMiss = "catalog_miss"
	OutcomeFailed      = "failed"
)

// BillingMetrics receives billing measurements.
type BillingMetrics interface {
	RecordStudentOutcome(ctx context.Context, outcome string, fee decimal.Decimal)
	RecordRun(ctx context.Context, d time.Duration, failed bool)
	RecordPayment(ctx context.Context, amount decimal.Decimal, overpaid bool)
	RecordRetry(ctx context.Context, operation string)
}

// RunReportArchive stores finished run reports.
type RunReportArchive interface {
	StoreRunReport(ctx context.Context, result *BillingRunResult) error
}

type nopMetrics struct{}

func (nopMetrics) RecordStudentOutcome(context.Context, string, decimal.Decimal) {}
func (nopMetrics) RecordRun(context.Context, time.Duration, bool)                {}
func (nopMetrics) RecordPayment(context.Context, decimal.Decimal, bool)          {}
func (nopMetrics) RecordRetry(context.Context, string)                           {}
