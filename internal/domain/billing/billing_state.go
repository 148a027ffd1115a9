package billing

import "time"

// BillingState records how far a ledger has been billed.
// It is either Unbilled or BilledThrough; no other implementations exist.
type BillingState interface {
	isBillingState()
}

// Unbilled means no billing cycle has run for the student yet.
type Unbilled struct{}

// BilledThrough carries the reference date of the last successful charge.
type BilledThrough struct {
	Date time.Time
}

func (Unbilled) isBillingState()      {}
func (BilledThrough) isBillingState() {}

// Period returns the billing period of the last charge
func (b BilledThrough) Period() MonthYear {
	return MonthYearOf(b.Date)
}

// BillingStateFromDate maps a nullable persisted date onto the sum type
func BillingStateFromDate(last *time.Time) BillingState {
	if last == nil {
		return Unbilled{}
	}
	return BilledThrough{Date: CalendarDate(*last)}
}

// LastCalculationDate maps the sum type back onto a nullable date
func LastCalculationDate(state BillingState) *time.Time {
	switch s := state.(type) {
	case BilledThrough:
		d := s.Date
		return &d
	default:
		return nil
	}
}
