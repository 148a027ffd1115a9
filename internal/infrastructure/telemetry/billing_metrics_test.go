package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/academy/feebilling/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestNewBillingMetrics_NilMeter(t *testing.T) {
	m, err := telemetry.NewBillingMetrics(nil)
	require.ErrorIs(t, err, telemetry.ErrMeterNil)
	assert.Nil(t, m)
}

func TestBillingMetrics_Noop(t *testing.T) {
	m, err := telemetry.NewBillingMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordStudentOutcome(ctx, "processed", decimal.NewFromInt(1500))
	m.RecordRun(ctx, time.Second, false)
	m.RecordPayment(ctx, decimal.NewFromInt(100), true)
	m.RecordRetry(ctx, "bill_student")
}

func TestBillingMetrics_RecordsValues(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := telemetry.NewBillingMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordStudentOutcome(ctx, "processed", decimal.NewFromInt(1500))
	m.RecordStudentOutcome(ctx, "processed", decimal.NewFromInt(500))
	m.RecordStudentOutcome(ctx, "skipped", decimal.Zero)
	m.RecordRetry(ctx, "bill_student")
	m.RecordRun(ctx, 2*time.Second, true)

	metrics := collect(t, reader)

	processed, ok := metrics["billing_students_processed_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range processed.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(3), total)

	fees, ok := metrics["billing_fee_amount_total"].Data.(metricdata.Sum[float64])
	require.True(t, ok)
	require.Len(t, fees.DataPoints, 1)
	assert.InDelta(t, 2000.0, fees.DataPoints[0].Value, 0.001)

	retries, ok := metrics["billing_retry_attempts_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, retries.DataPoints, 1)
	assert.Equal(t, int64(1), retries.DataPoints[0].Value)

	duration, ok := metrics["billing_run_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, duration.DataPoints, 1)
	assert.Equal(t, uint64(1), duration.DataPoints[0].Count)
}
