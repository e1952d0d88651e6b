/*
payment.go - Applying payments to a ledger row

PURPOSE:
  Records category payments (contribution / interest / fine / loan
  principal) against a MemberContribution. Each category is clamped to its
  own ceiling; overpayment is truncated, never rejected, and the truncation
  is observable by comparing requested vs applied amounts.

CEILINGS:
  contribution    ContributionDue + CarryForward  (the carried remainder is
                  collected through the contribution bucket)
  interest        LoanInterestDue
  fine            LateFine
  loan principal  the member's current loan balance; reduces the Loan, and
                  the repaid cash joins group cash when the period closes

  TotalPaid counts the three period-ledger categories. Loan principal is
  tracked separately and never changes Remaining.

SEMANTICS:
  Paid amounts are absolute (set-to), not increments: recording 300 twice
  leaves 300 paid, which is what makes bulk retries harmless.
*/
package ledger

import (
	"time"

	"github.com/bachat/settlement-engine/finance"
	"github.com/shopspring/decimal"
)

// PaymentRequest carries the category amounts to record. Nil fields leave
// the current value untouched.
type PaymentRequest struct {
	ContributionPaid  *decimal.Decimal
	LoanInterestPaid  *decimal.Decimal
	LateFinePaid      *decimal.Decimal
	LoanPrincipalPaid *decimal.Decimal

	// Allocation optionally splits this member's cash between hand and
	// bank; when nil the group default split applies at close.
	Allocation *CashAllocation

	// PaidAt stamps the payment; zero means now.
	PaidAt time.Time
}

// PaymentBreakdown reports per-category amounts.
type PaymentBreakdown struct {
	Contribution  decimal.Decimal
	LoanInterest  decimal.Decimal
	LateFine      decimal.Decimal
	LoanPrincipal decimal.Decimal
}

// PaymentResult reports what was asked for and what was applied, so callers
// can detect truncation.
type PaymentResult struct {
	Requested PaymentBreakdown
	Applied   PaymentBreakdown

	// NewLoanBalance is the member's loan balance after any principal
	// payment, valid when a principal payment was requested.
	NewLoanBalance decimal.Decimal
}

// ApplyPayment records a payment on the row in place and returns the
// requested/applied breakdown. loanBalance is the member's current unified
// loan balance, the ceiling for principal payments.
func ApplyPayment(mc *MemberContribution, req PaymentRequest, loanBalance decimal.Decimal) PaymentResult {
	paidAt := req.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}

	var res PaymentResult
	res.NewLoanBalance = loanBalance

	if req.ContributionPaid != nil {
		ceiling := finance.Sum2(mc.ContributionDue, mc.CarryForward)
		res.Requested.Contribution = *req.ContributionPaid
		mc.ContributionPaid = clamp(*req.ContributionPaid, ceiling)
		res.Applied.Contribution = mc.ContributionPaid
	}
	if req.LoanInterestPaid != nil {
		res.Requested.LoanInterest = *req.LoanInterestPaid
		mc.LoanInterestPaid = clamp(*req.LoanInterestPaid, mc.LoanInterestDue)
		res.Applied.LoanInterest = mc.LoanInterestPaid
	}
	if req.LateFinePaid != nil {
		res.Requested.LateFine = *req.LateFinePaid
		mc.LateFinePaid = clamp(*req.LateFinePaid, mc.LateFine)
		res.Applied.LateFine = mc.LateFinePaid
	}
	if req.LoanPrincipalPaid != nil {
		// Principal repayment is incremental and capped by the loan itself.
		res.Requested.LoanPrincipal = *req.LoanPrincipalPaid
		applied := clamp(*req.LoanPrincipalPaid, loanBalance)
		mc.LoanPrincipalPaid = finance.Sum2(mc.LoanPrincipalPaid, applied)
		res.Applied.LoanPrincipal = applied
		res.NewLoanBalance = finance.Round2(loanBalance.Sub(applied))
	}

	if req.Allocation != nil {
		a := CashAllocation{
			ToHand: finance.Round2(req.Allocation.ToHand),
			ToBank: finance.Round2(req.Allocation.ToBank),
		}
		mc.Allocation = &a
	}

	mc.recompute(paidAt)
	return res
}

// clamp truncates a requested amount into [0, ceiling], rounded.
func clamp(requested, ceiling decimal.Decimal) decimal.Decimal {
	r := finance.Round2(requested)
	if r.IsNegative() {
		return decimal.Zero
	}
	if r.GreaterThan(ceiling) {
		return ceiling
	}
	return r
}
