package interest

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Model selects how interest grows over time.
type Model string

const (
	Simple   Model = "SIMPLE"
	Compound Model = "COMPOUND"
)

// Valid reports whether m is a known interest model.
func (m Model) Valid() bool {
	return m == Simple || m == Compound
}

const secondsPerDay = 24 * 60 * 60

// powPrecision is the number of decimal places kept when the growth factor
// is computed in decimal rather than float64.
const powPrecision = 16

var (
	daysInYear = decimal.NewFromFloat(365.25) // Julian year
	hundred    = decimal.NewFromInt(100)
)

// Terms are the stored fields interest accrual depends on.
type Terms struct {
	Principal         decimal.Decimal
	AnnualRatePercent decimal.Decimal
	Model             Model
	StartDate         time.Time
}

// Summary is the balance view of a transaction as of a given date.
type Summary struct {
	AsOf            time.Time       `json:"as_of"`
	Principal       decimal.Decimal `json:"principal"`
	AccruedInterest decimal.Decimal `json:"accrued_interest"`
	TotalPaid       decimal.Decimal `json:"total_paid"`
	Outstanding     decimal.Decimal `json:"outstanding"`
}

// DaysBetween returns the number of whole calendar days from start to asOf.
// Time of day is ignored. The result is negative when asOf precedes start.
func DaysBetween(start, asOf time.Time) int {
	return int((calendarDate(asOf).Unix() - calendarDate(start).Unix()) / secondsPerDay)
}

func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AccruedInterest computes the interest accrued on principal from start to asOf.
//
// Elapsed time is measured in 365.25-day years. Simple interest grows linearly
// (P×R×T); compound interest compounds once a year over the fractional number
// of years (P×(1+R)^T − P). The result is never negative: a query dated before
// start, or an unknown model, yields zero.
func AccruedInterest(principal, annualRatePercent decimal.Decimal, model Model, start, asOf time.Time) decimal.Decimal {
	days := DaysBetween(start, asOf)
	if days < 0 {
		return decimal.Zero
	}

	years := decimal.NewFromInt(int64(days)).Div(daysInYear)
	rate := annualRatePercent.Div(hundred)

	var accrued decimal.Decimal
	switch model {
	case Simple:
		accrued = principal.Mul(rate).Mul(years)
	case Compound:
		accrued = principal.Mul(growthFactor(rate, years)).Sub(principal)
	default:
		return decimal.Zero
	}

	if accrued.IsNegative() {
		return decimal.Zero
	}
	return accrued
}

// growthFactor returns (1+rate)^years. float64 is used while the result is
// finite; past that the power is taken in decimal, which has no upper bound.
func growthFactor(rate, years decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if years.IsZero() {
		return one
	}
	base := one.Add(rate)
	f := math.Pow(base.InexactFloat64(), years.InexactFloat64())
	if !math.IsInf(f, 0) && !math.IsNaN(f) {
		return decimal.NewFromFloat(f)
	}

	factor, err := base.PowWithPrecision(years, powPrecision)
	if err != nil {
		// Only a negative base gets here, i.e. a rate below -100%.
		return one
	}
	return factor.Round(powPrecision)
}

// Accrued is AccruedInterest applied to stored terms.
func (t Terms) Accrued(asOf time.Time) decimal.Decimal {
	return AccruedInterest(t.Principal, t.AnnualRatePercent, t.Model, t.StartDate, asOf)
}

// TotalPaid sums payment amounts. Order does not matter.
func TotalPaid(payments []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p)
	}
	return total
}

// Outstanding returns principal plus accrued interest minus everything paid,
// floored at zero. Payments are not filtered by date.
func Outstanding(principal, accrued decimal.Decimal, payments []decimal.Decimal) decimal.Decimal {
	remaining := principal.Add(accrued).Sub(TotalPaid(payments))
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// Summarize computes the full balance view of terms as of asOf.
func Summarize(t Terms, payments []decimal.Decimal, asOf time.Time) Summary {
	accrued := t.Accrued(asOf)
	return Summary{
		AsOf:            calendarDate(asOf),
		Principal:       t.Principal,
		AccruedInterest: accrued,
		TotalPaid:       TotalPaid(payments),
		Outstanding:     Outstanding(t.Principal, accrued, payments),
	}
}
