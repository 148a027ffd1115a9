package billing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCutoffDay is the last enrollment day of a month that is still billed
// the full period fee in the enrollment month. The comparison is inclusive:
// a student enrolled on day 20 pays the full first period, day 21 defers it.
const DefaultCutoffDay = 20

// MaxCutoffDay keeps the cutoff valid in every month, including February.
const MaxCutoffDay = 28

// ReasonNoFeeCatalogEntry is the history reason recorded on a catalog miss.
const ReasonNoFeeCatalogEntry = "no fee catalog entry"

// CalculationType classifies a billing decision
type CalculationType string

const (
	CalculationTypeFirstMonth   CalculationType = "first_month"
	CalculationTypeRegularMonth CalculationType = "regular_month"
)

// String returns the string representation of CalculationType
func (c CalculationType) String() string {
	return string(c)
}

// FeeDecision is the outcome of applying the fee policy to one ledger for one month.
type FeeDecision struct {
	CalculationType     CalculationType
	FeeAmount           decimal.Decimal
	EnrollmentDay       *int
	IncludesAdmission   bool
	IncludesFirstPeriod bool
	Reason              string
}

// FeePolicy decides the fee due for a billing cycle.
type FeePolicy struct {
	CutoffDay int
}

// NewFeePolicy creates a policy with the given cutoff day (1..28)
func NewFeePolicy(cutoffDay int) (FeePolicy, error) {
	if cutoffDay < 1 || cutoffDay > MaxCutoffDay {
		return FeePolicy{}, ErrInvalidCutoffDay
	}
	return FeePolicy{CutoffDay: cutoffDay}, nil
}

// DefaultFeePolicy returns the policy with DefaultCutoffDay
func DefaultFeePolicy() FeePolicy {
	return FeePolicy{CutoffDay: DefaultCutoffDay}
}

// BillsFullFirstPeriod reports whether an enrollment on the given day of month
// is billed the full period fee in the enrollment month.
func (p FeePolicy) BillsFullFirstPeriod(enrollmentDay int) bool {
	return enrollmentDay <= p.CutoffDay
}

// Decide computes the fee for the ledger's billing cycle in period.
// The cutoff only defers the first period fee when period is the enrollment
// month; a first cycle billed later charges it in full.
func (p FeePolicy) Decide(ledger *StudentLedger, entry *FeeCatalogEntry, period MonthYear) FeeDecision {
	switch ledger.Billing.(type) {
	case Unbilled:
		return p.decideFirstMonth(ledger, entry, period)
	case BilledThrough:
		return p.decideRegularMonth(ledger, entry)
	default:
		panic(fmt.Sprintf("billing: unknown billing state %T", ledger.Billing))
	}
}

func (p FeePolicy) decideFirstMonth(ledger *StudentLedger, entry *FeeCatalogEntry, period MonthYear) FeeDecision {
	day := ledger.EnrollmentDate.Day()
	d := FeeDecision{
		CalculationType: CalculationTypeFirstMonth,
		FeeAmount:       decimal.Zero,
		EnrollmentDay:   &day,
	}
	var reasons []string

	if !ledger.AdmissionFeePaid {
		d.FeeAmount = d.FeeAmount.Add(entry.AdmissionFee)
		d.IncludesAdmission = true
		reasons = append(reasons, "admission fee")
	} else {
		reasons = append(reasons, "admission fee already charged")
	}

	switch {
	case ledger.FirstPeriodBilled:
		reasons = append(reasons, fmt.Sprintf("%s fee already charged", ledger.CourseType))
	case period != ledger.EnrollmentPeriod():
		d.FeeAmount = d.FeeAmount.Add(entry.PeriodFee())
		d.IncludesFirstPeriod = true
		reasons = append(reasons, fmt.Sprintf("full %s fee; first billed in %s after enrollment month %s", ledger.CourseType, period, ledger.EnrollmentPeriod()))
	case p.BillsFullFirstPeriod(day):
		d.FeeAmount = d.FeeAmount.Add(entry.PeriodFee())
		d.IncludesFirstPeriod = true
		reasons = append(reasons, fmt.Sprintf("full %s fee; enrolled day %d on or before cutoff %d", ledger.CourseType, day, p.CutoffDay))
	default:
		reasons = append(reasons, fmt.Sprintf("enrolled day %d after cutoff %d, %s fee deferred to next month", day, p.CutoffDay, ledger.CourseType))
	}

	d.Reason = strings.Join(reasons, "; ")
	return d
}

func (p FeePolicy) decideRegularMonth(ledger *StudentLedger, entry *FeeCatalogEntry) FeeDecision {
	d := FeeDecision{CalculationType: CalculationTypeRegularMonth}

	switch {
	case !ledger.FirstPeriodBilled:
		d.FeeAmount = entry.PeriodFee()
		d.IncludesFirstPeriod = true
		d.Reason = fmt.Sprintf("deferred first %s fee", ledger.CourseType)
	case ledger.CourseType == CourseTypeYearly:
		d.FeeAmount = decimal.Zero
		d.Reason = "yearly fee already charged"
	default:
		d.FeeAmount = entry.MonthlyFee
		d.Reason = "monthly fee"
	}
	return d
}
