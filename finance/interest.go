/*
interest.go - Annual loan interest to per-period interest

PURPOSE:
  Groups quote loan interest as an annual rate, but members pay it every
  collection period. This file converts the annual rate into the interest
  due for exactly one period, so a full year of periods sums (within
  rounding) to the naive annual interest. A weekly group dividing by 12
  would charge 52/12 times the advertised rate; dividing by the real
  periods-per-year is the fix and must not regress.

MAPPING:
  WEEKLY=52  FORTNIGHTLY=26  MONTHLY=12  YEARLY=1
*/
package finance

import "github.com/shopspring/decimal"

var periodsPerYear = map[Frequency]int64{
	Weekly:      52,
	Fortnightly: 26,
	Monthly:     12,
	Yearly:      1,
}

// PeriodsPerYear returns how many collection periods a year holds for the
// given frequency. Unknown frequencies are treated as monthly.
func PeriodsPerYear(f Frequency) int64 {
	if n, ok := periodsPerYear[f]; ok {
		return n
	}
	return 12
}

// PeriodInterest computes the interest due for one collection period on the
// given balance, with the annual rate expressed as a percentage (12 means
// 12% per year). Rounded to two decimals.
func PeriodInterest(balance decimal.Decimal, annualPercent decimal.Decimal, f Frequency) decimal.Decimal {
	return PeriodInterestFromDecimal(balance, annualPercent.Div(decimal.NewFromInt(100)), f)
}

// PeriodInterestFromDecimal is PeriodInterest with the annual rate already
// expressed as a decimal fraction (0.12 means 12% per year).
func PeriodInterestFromDecimal(balance decimal.Decimal, annualRate decimal.Decimal, f Frequency) decimal.Decimal {
	if balance.IsZero() || annualRate.IsZero() {
		return decimal.Zero
	}
	periodRate := annualRate.Div(decimal.NewFromInt(PeriodsPerYear(f)))
	return Round2(balance.Mul(periodRate))
}
