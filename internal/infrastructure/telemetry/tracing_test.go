package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/academy/feebilling/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func TestStartServiceSpan_NameAndAttributes(t *testing.T) {
	recorder := withRecorder(t)

	ctx, span := telemetry.StartServiceSpan(context.Background(), "billing", "run",
		telemetry.WithAttribute(telemetry.SpanAttrReferenceDate, "2024-03-01"),
	)
	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, "t-1", 42, "ignored", "count", 3)
	assert.NotEmpty(t, telemetry.GetTraceID(ctx))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "billing.run", ended[0].Name())

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range ended[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "2024-03-01", attrs[telemetry.SpanAttrReferenceDate].AsString())
	assert.Equal(t, "t-1", attrs[telemetry.SpanAttrTenantID].AsString())
	assert.Equal(t, int64(3), attrs["count"].AsInt64())
}

func TestRecordError_MarksSpan(t *testing.T) {
	recorder := withRecorder(t)

	_, span := telemetry.StartSpan(context.Background(), "payment.apply")
	telemetry.RecordError(span, errors.New("store unavailable"))
	telemetry.RecordError(span, nil)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "store unavailable", ended[0].Status().Description)
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, telemetry.GetTraceID(context.Background()))
}
