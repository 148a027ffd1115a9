package telemetry_test

import (
	"context"
	"runtime/pprof"
	"strings"
	"testing"

	"github.com/academy/feebilling/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
)

func TestWithProfilingLabels_EmptyLabels(t *testing.T) {
	called := false
	telemetry.WithProfilingLabels(context.Background(), nil, func(context.Context) {
		called = true
	})
	assert.True(t, called)
}

func TestWithProfilingLabels_AttachesLabels(t *testing.T) {
	labels := telemetry.BillingOperationLabels("run", "tenant-a")

	var operation, region, tenant string
	telemetry.WithProfilingLabels(context.Background(), labels, func(c context.Context) {
		operation, _ = pprof.Label(c, telemetry.ProfilingLabelOperation)
		region, _ = pprof.Label(c, telemetry.ProfilingLabelRegion)
		tenant, _ = pprof.Label(c, telemetry.ProfilingLabelTenantID)
	})

	assert.Equal(t, "run", operation)
	assert.Equal(t, "billing", region)
	assert.Equal(t, "tenant-a", tenant)
}

func TestWithProfilingLabels_DropsHighCardinality(t *testing.T) {
	labels := map[string]string{
		"operation":  "apply_payment",
		"student_id": "0b7e",
	}

	var studentFound bool
	telemetry.WithProfilingLabels(context.Background(), labels, func(c context.Context) {
		_, studentFound = pprof.Label(c, "student_id")
	})
	assert.False(t, studentFound)
}

func TestWithProfilingLabels_TruncatesLongValues(t *testing.T) {
	labels := map[string]string{"route": strings.Repeat("x", 300)}

	var route string
	telemetry.WithProfilingLabels(context.Background(), labels, func(c context.Context) {
		route, _ = pprof.Label(c, "route")
	})
	assert.Len(t, route, telemetry.MaxLabelValueLength)
}

func TestBillingOperationLabels_OmitsEmptyTenant(t *testing.T) {
	labels := telemetry.BillingOperationLabels("run", "")
	_, ok := labels[telemetry.ProfilingLabelTenantID]
	assert.False(t, ok)
}
