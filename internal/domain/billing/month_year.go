package billing

import (
	"fmt"
	"time"
)

// MonthYear identifies a billing period, rendered as "YYYY-MM".
type MonthYear struct {
	Year  int
	Month time.Month
}

// MonthYearOf returns the billing period containing t, evaluated in UTC.
func MonthYearOf(t time.Time) MonthYear {
	u := t.UTC()
	return MonthYear{Year: u.Year(), Month: u.Month()}
}

// ParseMonthYear parses a "YYYY-MM" key
func ParseMonthYear(s string) (MonthYear, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return MonthYear{}, ErrInvalidMonthYear.WithMessage(fmt.Sprintf("Invalid month key %q, expected YYYY-MM", s))
	}
	return MonthYear{Year: t.Year(), Month: t.Month()}, nil
}

// String renders the period as "YYYY-MM"
func (m MonthYear) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// FirstDay returns midnight UTC on the first day of the period
func (m MonthYear) FirstDay() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Next returns the following period
func (m MonthYear) Next() MonthYear {
	return MonthYearOf(m.FirstDay().AddDate(0, 1, 0))
}

// Before reports whether m is strictly earlier than other
func (m MonthYear) Before(other MonthYear) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

// IsZero reports whether the period is unset
func (m MonthYear) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// CalendarDate truncates t to midnight UTC.
// Billing decisions compare calendar dates only, never wall-clock instants.
func CalendarDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
