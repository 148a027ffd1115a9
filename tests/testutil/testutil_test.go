package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/academy/feebilling/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTestUUID_IsStable(t *testing.T) {
	assert.Equal(t, NewTestUUID("student-1"), NewTestUUID("student-1"))
	assert.NotEqual(t, NewTestUUID("student-1"), NewTestUUID("student-2"))
	assert.Equal(t, TestTenantID(), NewTestUUID("test-tenant"))
}

func TestMoneyAndDate(t *testing.T) {
	assert.Equal(t, "1250.5", Money(t, "1250.50").String())
	assert.Equal(t, 25, Date(2024, time.March, 25).Day())
	assert.Equal(t, time.UTC, Date(2024, time.March, 25).Location())
}

func TestRecordingHandler(t *testing.T) {
	h := NewRecordingHandler("FeeCalculated")
	assert.Equal(t, []string{"FeeCalculated"}, h.EventTypes())

	evt := shared.NewBaseDomainEvent("FeeCalculated", "StudentLedger", uuid.New(), TestTenantID())
	require.NoError(t, h.Handle(context.Background(), &evt))

	h.SetError(errors.New("boom"))
	assert.Error(t, h.Handle(context.Background(), &evt))

	assert.Len(t, h.Handled(), 2)
	assert.Equal(t, 2, h.CountOf("FeeCalculated"))
	assert.Equal(t, 0, h.CountOf("PaymentApplied"))
	WaitForEventCount(t, h, "FeeCalculated", 2, time.Second)
}
