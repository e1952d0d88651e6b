/*
Package finance provides the leaf calculation utilities for the settlement
engine.

PURPOSE:
  Pure, storage-free money and calendar arithmetic shared by every other
  package: canonical two-decimal rounding, collection due-date derivation,
  days-late measurement, and annual-to-period interest conversion.

KEY CONCEPTS IN THIS FILE (money.go):
  - Round2: the ONE rounding function every monetary write goes through
  - Decimal construction helpers used by handlers and tests

DESIGN PRINCIPLES:
  1. Precision: shopspring/decimal everywhere; floats never touch money
  2. Determinism: same inputs, same rupees, on every code path
  3. No I/O: these functions never see a database or a clock they weren't
     handed explicitly

SEE ALSO:
  - schedule.go: due dates and days-late
  - interest.go: annual rate to per-period interest
*/
package finance

import "github.com/shopspring/decimal"

// =============================================================================
// ROUNDING - canonical two-decimal money rounding
// =============================================================================

// Round2 rounds a monetary value to two decimal places, half away from zero.
// Every monetary field is passed through Round2 before it is stored or
// summed into an aggregate.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Sum2 adds the given values and rounds the result to two decimals.
func Sum2(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return Round2(total)
}

// NonNegative floors a value at zero. Remaining-amount arithmetic uses this
// so overpayment never produces a negative obligation.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// MustDecimal parses a decimal string, returning zero on failure. Intended
// for scanning trusted stored values, not for request input.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
