/*
standing.go - Cash allocation and the group standing formula

PURPOSE:
  Group standing is the group's net worth: cash in hand + cash in bank +
  outstanding loan principal across all members. This file is the ONLY
  place that formula lives. Period close, the live summary view, and
  historical regeneration all call the same functions - the system this
  replaces accumulated three divergent standing figures by computing
  "previousStanding + collection" in some paths, and that bug class must
  stay dead.

CASH ALLOCATION:
  Collected cash splits between hand and bank. A payment's explicit
  allocation wins; otherwise the group's configured split (default 30/70)
  applies to that member's TotalPaid. Repaid loan principal is cash the
  group received even though it sits outside TotalPaid, so it always joins
  the inflow under the group split - dropping it would shrink standing by
  every repayment (principal must move from loan asset to cash asset,
  total invariant).

LOAN ASSETS:
  Evaluated at the moment of use from live loan balances (unified
  resolution), never carried forward from a prior period - carrying it
  would double-count principal repayments as both a balance reduction and
  a retained asset.
*/
package ledger

import (
	"github.com/bachat/settlement-engine/finance"
	"github.com/shopspring/decimal"
)

// CashPosition is a hand/bank pair.
type CashPosition struct {
	Hand decimal.Decimal
	Bank decimal.Decimal
}

// Add returns the position shifted by another.
func (c CashPosition) Add(d CashPosition) CashPosition {
	return CashPosition{
		Hand: finance.Round2(c.Hand.Add(d.Hand)),
		Bank: finance.Round2(c.Bank.Add(d.Bank)),
	}
}

// Total returns hand + bank.
func (c CashPosition) Total() decimal.Decimal {
	return finance.Round2(c.Hand.Add(c.Bank))
}

// AllocateCollections splits every row's collected cash between hand and
// bank: explicit per-payment allocation first, the group split as fallback.
// An explicit allocation covers the period obligations (TotalPaid) only;
// repaid loan principal always splits by the group fraction so the cash it
// brought in is never lost. handSplit is the hand fraction; zero falls
// back to DefaultHandSplit.
func AllocateCollections(rows []MemberContribution, handSplit decimal.Decimal) CashPosition {
	if !handSplit.IsPositive() {
		handSplit = DefaultHandSplit
	}

	var pos CashPosition
	for _, row := range rows {
		inflow := row.LoanPrincipalPaid
		if row.Allocation != nil {
			pos.Hand = pos.Hand.Add(row.Allocation.ToHand)
			pos.Bank = pos.Bank.Add(row.Allocation.ToBank)
		} else {
			inflow = inflow.Add(row.TotalPaid)
		}
		hand := inflow.Mul(handSplit)
		pos.Hand = pos.Hand.Add(hand)
		pos.Bank = pos.Bank.Add(inflow.Sub(hand))
	}
	pos.Hand = finance.Round2(pos.Hand)
	pos.Bank = finance.Round2(pos.Bank)
	return pos
}

// SplitCash divides one cash amount between hand and bank by the group's
// hand fraction; zero falls back to DefaultHandSplit.
func SplitCash(amount, handSplit decimal.Decimal) CashPosition {
	if !handSplit.IsPositive() {
		handSplit = DefaultHandSplit
	}
	hand := finance.Round2(amount.Mul(handSplit))
	return CashPosition{Hand: hand, Bank: finance.Round2(amount.Sub(hand))}
}

// TotalCollection sums TotalPaid across the period's rows.
func TotalCollection(rows []MemberContribution) decimal.Decimal {
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.TotalPaid)
	}
	return finance.Round2(total)
}

// InterestCollected sums the interest bucket across the period's rows.
func InterestCollected(rows []MemberContribution) decimal.Decimal {
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.LoanInterestPaid)
	}
	return finance.Round2(total)
}

// FinesCollected sums the fine bucket across the period's rows.
func FinesCollected(rows []MemberContribution) decimal.Decimal {
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.LateFinePaid)
	}
	return finance.Round2(total)
}

// LoanAssets sums every membership's unified loan balance: the group's
// outstanding principal, evaluated live.
func LoanAssets(memberships []Membership, activeLoans map[MemberID][]Loan) decimal.Decimal {
	total := decimal.Zero
	for _, m := range memberships {
		total = total.Add(UnifiedLoanBalance(activeLoans[m.MemberID], m.LegacyLoanAmount))
	}
	return finance.Round2(total)
}

// ComputeStanding is the standing formula. Every caller - close, summary,
// regeneration - goes through here.
func ComputeStanding(cash CashPosition, loanAssets decimal.Decimal) decimal.Decimal {
	return finance.Sum2(cash.Hand, cash.Bank, loanAssets)
}
