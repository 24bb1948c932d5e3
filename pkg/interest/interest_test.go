package interest

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func decs(fs ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(fs))
	for _, f := range fs {
		out = append(out, dec(f))
	}
	return out
}

func assertDecimal(t *testing.T, want, got decimal.Decimal) {
	t.Helper()
	assert.True(t, want.Equal(got), "expected %s, got %s", want, got)
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		asOf  time.Time
		want  int
	}{
		{"same day", date(2024, 3, 1), date(2024, 3, 1), 0},
		{"one year", date(2023, 1, 1), date(2024, 1, 1), 365},
		{"leap year", date(2024, 1, 1), date(2025, 1, 1), 366},
		{"backwards", date(2024, 1, 10), date(2024, 1, 1), -9},
		{"longer than a time.Duration", date(1700, 1, 1), date(2024, 1, 1), 118338},
		{"four centuries backwards", date(2400, 1, 1), date(2000, 1, 1), -146097},
		{"time of day ignored", date(2024, 1, 1).Add(23 * time.Hour), date(2024, 1, 2).Add(time.Hour), 1},
		{
			"other zone keeps its calendar date",
			time.Date(2024, 1, 1, 23, 30, 0, 0, time.FixedZone("EST", -5*3600)),
			date(2024, 1, 2),
			1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysBetween(tt.start, tt.asOf))
		})
	}
}

func TestAccruedInterest_Scenarios(t *testing.T) {
	start, asOf := date(2023, 1, 1), date(2024, 1, 1)

	simple := AccruedInterest(dec(1000), dec(5), Simple, start, asOf)
	assert.InDelta(t, 50.0, simple.InexactFloat64(), 0.07)
	assert.Equal(t, "49.97", simple.StringFixed(2))

	compound := AccruedInterest(dec(1000), dec(5), Compound, start, asOf)
	assert.InDelta(t, 50.0, compound.InexactFloat64(), 0.07)
}

func TestAccruedInterest_WholeYears(t *testing.T) {
	start := date(2020, 1, 1)
	fourYears := start.AddDate(0, 0, 1461) // 4 × 365.25 days

	simple := AccruedInterest(dec(1000), dec(5), Simple, start, fourYears)
	assertDecimal(t, dec(200), simple)

	compound := AccruedInterest(dec(1000), dec(5), Compound, start, fourYears)
	assert.InDelta(t, 215.50625, compound.InexactFloat64(), 1e-6)
}

func TestAccruedInterest_OneYearMatchesNominalRate(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	start := date(2021, 6, 15)

	for i := 0; i < 200; i++ {
		p := dec(float64(r.Intn(1_000_000)) / 100)
		rate := dec(float64(r.Intn(3000)) / 100)
		// 365 and 366 days bracket one 365.25-day year.
		nominal := p.Mul(rate).Div(hundred).InexactFloat64()
		tolerance := nominal*0.003 + 1e-9

		for _, days := range []int{365, 366} {
			asOf := start.AddDate(0, 0, days)
			for _, m := range []Model{Simple, Compound} {
				got := AccruedInterest(p, rate, m, start, asOf)
				assert.InDelta(t, nominal, got.InexactFloat64(), tolerance, "P=%s R=%s model=%s days=%d", p, rate, m, days)
			}
		}
	}
}

func TestAccruedInterest_BeforeStartIsZero(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	start := date(2024, 5, 20)

	for i := 0; i < 200; i++ {
		p := dec(float64(r.Intn(10_000_000)) / 100)
		rate := dec(float64(r.Intn(10000)) / 100)
		asOf := start.AddDate(0, 0, -1-r.Intn(5000))

		assert.True(t, AccruedInterest(p, rate, Simple, start, asOf).IsZero())
		assert.True(t, AccruedInterest(p, rate, Compound, start, asOf).IsZero())
	}
}

func TestAccruedInterest_NeverNegative(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	start := date(2022, 2, 28)

	for i := 0; i < 500; i++ {
		p := dec(float64(r.Intn(10_000_000)) / 100)
		rate := dec(float64(r.Intn(10000)) / 100)
		asOf := start.AddDate(0, 0, r.Intn(20000)-10000)

		for _, m := range []Model{Simple, Compound} {
			got := AccruedInterest(p, rate, m, start, asOf)
			assert.False(t, got.IsNegative(), "P=%s R=%s model=%s asOf=%s", p, rate, m, asOf)
		}
	}
}

func TestAccruedInterest_CompoundCurvature(t *testing.T) {
	start := date(2020, 1, 1)
	p, rate := dec(2500), dec(12)

	for _, days := range []int{1, 30, 180, 364} {
		asOf := start.AddDate(0, 0, days)
		s := AccruedInterest(p, rate, Simple, start, asOf)
		c := AccruedInterest(p, rate, Compound, start, asOf)
		assert.True(t, c.LessThanOrEqual(s), "days=%d compound %s > simple %s", days, c, s)
	}

	for _, days := range []int{400, 731, 1461, 3650} {
		asOf := start.AddDate(0, 0, days)
		s := AccruedInterest(p, rate, Simple, start, asOf)
		c := AccruedInterest(p, rate, Compound, start, asOf)
		assert.True(t, c.GreaterThanOrEqual(s), "days=%d compound %s < simple %s", days, c, s)
	}
}

func TestAccruedInterest_EdgeInputs(t *testing.T) {
	start := date(2024, 1, 1)
	later := date(2026, 1, 1)

	assert.True(t, AccruedInterest(dec(1000), dec(5), Simple, start, start).IsZero(), "same day accrues nothing")
	assert.True(t, AccruedInterest(dec(1000), dec(5), Compound, start, start).IsZero(), "same day accrues nothing")
	assert.True(t, AccruedInterest(decimal.Zero, dec(5), Compound, start, later).IsZero(), "zero principal")
	assert.True(t, AccruedInterest(dec(1000), decimal.Zero, Compound, start, later).IsZero(), "zero rate")
	assert.True(t, AccruedInterest(dec(1000), dec(5), Model("MONTHLY"), start, later).IsZero(), "unknown model")
	assert.True(t, AccruedInterest(dec(1000), dec(-5), Simple, start, later).IsZero(), "negative rate is clamped")
}

func TestAccruedInterest_LongSpan(t *testing.T) {
	got := AccruedInterest(dec(1000), dec(5), Simple, date(1700, 1, 1), date(2024, 1, 1))
	assert.Equal(t, "16199.59", got.StringFixed(2))
}

func TestAccruedInterest_CompoundBeyondFloatRange(t *testing.T) {
	start := date(2000, 1, 1)
	century := date(2100, 1, 1) // 36525 days, exactly 100 years
	rate := dec(1000000)

	var got decimal.Decimal
	require.NotPanics(t, func() {
		got = AccruedInterest(dec(1000), rate, Compound, start, century)
	})
	factor, err := decimal.NewFromInt(10001).PowInt32(100)
	require.NoError(t, err)
	assertDecimal(t, factor.Mul(dec(1000)).Sub(dec(1000)), got)

	var later decimal.Decimal
	require.NotPanics(t, func() {
		later = AccruedInterest(dec(1000), rate, Compound, start, century.AddDate(0, 0, 1))
	})
	assert.True(t, later.GreaterThan(got), "one more day must accrue more")
}

func TestOutstanding(t *testing.T) {
	tests := []struct {
		name      string
		principal float64
		accrued   float64
		payments  []decimal.Decimal
		want      float64
	}{
		{"no payments", 1000, 50, nil, 1050},
		{"partial payment", 1000, 50, decs(600), 450},
		{"several payments", 1000, 50, decs(100, 200.5, 49.5), 700},
		{"overpaid clamps to zero", 100, 20, decs(130), 0},
		{"exactly paid", 100, 20, decs(120), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertDecimal(t, dec(tt.want), Outstanding(dec(tt.principal), dec(tt.accrued), tt.payments))
		})
	}
}

func TestOutstanding_NonIncreasingAsPaymentsAdded(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 100; i++ {
		p := dec(float64(r.Intn(1_000_000)) / 100)
		accrued := dec(float64(r.Intn(100_000)) / 100)

		var payments []decimal.Decimal
		prev := Outstanding(p, accrued, payments)
		for j := 0; j < 20; j++ {
			payments = append(payments, dec(float64(r.Intn(200_000))/100))
			next := Outstanding(p, accrued, payments)
			require.True(t, next.LessThanOrEqual(prev), "outstanding grew from %s to %s", prev, next)
			require.False(t, next.IsNegative())
			prev = next
		}
	}
}

func TestTotalPaid(t *testing.T) {
	assert.True(t, TotalPaid(nil).IsZero())
	assertDecimal(t, dec(350.75), TotalPaid(decs(100, 250.75)))
	assertDecimal(t, TotalPaid(decs(1, 2, 3.5)), TotalPaid(decs(3.5, 2, 1)))
}

func TestSummarize(t *testing.T) {
	terms := Terms{
		Principal:         dec(1000),
		AnnualRatePercent: dec(5),
		Model:             Simple,
		StartDate:         date(2020, 1, 1),
	}
	asOf := date(2024, 1, 1).Add(15 * time.Hour)

	s := Summarize(terms, decs(600), asOf)

	assert.Equal(t, date(2024, 1, 1), s.AsOf)
	assertDecimal(t, dec(1000), s.Principal)
	assertDecimal(t, dec(200), s.AccruedInterest)
	assertDecimal(t, dec(600), s.TotalPaid)
	assertDecimal(t, dec(600), s.Outstanding)
	assertDecimal(t, terms.Accrued(asOf), s.AccruedInterest)
}

func TestSummarize_PaymentsAfterAsOfStillCount(t *testing.T) {
	terms := Terms{
		Principal:         dec(500),
		AnnualRatePercent: dec(10),
		Model:             Compound,
		StartDate:         date(2024, 1, 1),
	}

	s := Summarize(terms, decs(100), date(2023, 6, 1))

	assert.True(t, s.AccruedInterest.IsZero())
	assertDecimal(t, dec(400), s.Outstanding)
}

func TestModelValid(t *testing.T) {
	assert.True(t, Simple.Valid())
	assert.True(t, Compound.Valid())
	assert.False(t, Model("simple").Valid())
	assert.False(t, Model("").Valid())
}
