package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonthYear(t *testing.T) {
	m, err := ParseMonthYear("2025-08")
	require.NoError(t, err)
	assert.Equal(t, MonthYear{Year: 2025, Month: time.August}, m)
	assert.Equal(t, "2025-08", m.String())

	for _, bad := range []string{"", "2025-8", "2025/08", "08-2025", "2025-13"} {
		_, err := ParseMonthYear(bad)
		assert.ErrorIs(t, err, ErrInvalidMonthYear, bad)
	}
}

func TestMonthYear_Ordering(t *testing.T) {
	dec := MonthYear{Year: 2024, Month: time.December}
	jan := dec.Next()

	assert.Equal(t, MonthYear{Year: 2025, Month: time.January}, jan)
	assert.True(t, dec.Before(jan))
	assert.False(t, jan.Before(dec))
	assert.False(t, jan.Before(jan))
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), jan.FirstDay())
}

func TestMonthYearOf_UsesUTC(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	// 1 Sep 02:00 IST is still 31 Aug in UTC
	ref := time.Date(2025, 9, 1, 2, 0, 0, 0, ist)
	assert.Equal(t, "2025-08", MonthYearOf(ref).String())
	assert.Equal(t, time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC), CalendarDate(ref))
}

func TestBillingState_RoundTrip(t *testing.T) {
	assert.Equal(t, Unbilled{}, BillingStateFromDate(nil))
	assert.Nil(t, LastCalculationDate(Unbilled{}))

	last := time.Date(2025, 8, 26, 13, 0, 0, 0, time.UTC)
	state := BillingStateFromDate(&last)
	require.IsType(t, BilledThrough{}, state)
	assert.Equal(t, "2025-08", state.(BilledThrough).Period().String())

	back := LastCalculationDate(state)
	require.NotNil(t, back)
	assert.Equal(t, CalendarDate(last), *back)
}

func TestParseCourseType(t *testing.T) {
	ct, err := ParseCourseType(" Monthly ")
	require.NoError(t, err)
	assert.Equal(t, CourseTypeMonthly, ct)

	_, err = ParseCourseType("weekly")
	assert.ErrorIs(t, err, ErrInvalidCourseType)
}

func TestMonthlySchedule_MarkProcessed(t *testing.T) {
	s := NewMonthlySchedule(uuid.New(), uuid.New(), MonthYear{Year: 2025, Month: time.August})
	assert.Equal(t, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), s.ScheduledDate)

	require.NoError(t, s.MarkProcessed(d(500), time.Now()))
	assert.True(t, s.IsProcessed)
	assert.NotNil(t, s.ProcessedAt)

	assert.ErrorIs(t, s.MarkProcessed(d(500), time.Now()), ErrScheduleConflict)
}
