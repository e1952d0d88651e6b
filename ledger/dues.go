/*
dues.go - Materializing member obligations at period open

PURPOSE:
  When a period opens, every active membership gets exactly one ledger row.
  This file computes that row: the group-wide base contribution, this
  member's period interest on their unified loan balance, the late fine
  owed for how the PREVIOUS period was paid, and the carry-forward of the
  previous period's unpaid remainder.

WHY THE PREVIOUS PERIOD DRIVES THE FINE:
  Lateness is only knowable after the fact. A fine assessed in period N is
  the penalty for paying period N-1 after its due date, so the engine is
  handed the previous row and the previous due date, never the current one.

SEE ALSO:
  - latefine: fine assessment
  - finance: due dates, period interest
  - period: calls MaterializeDues at open and carry-forward time
*/
package ledger

import (
	"time"

	"github.com/bachat/settlement-engine/finance"
	"github.com/bachat/settlement-engine/latefine"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DueInput carries everything MaterializeDues needs for one period open.
// The caller (the period manager) assembles it from the store.
type DueInput struct {
	Group       Group
	Memberships []Membership

	// ActiveLoans maps member id to that member's active loans in the group.
	ActiveLoans map[MemberID][]Loan

	// FineRule is the group's active late-fine rule, nil when none.
	FineRule *latefine.Rule

	// Previous is the prior period's ledger, keyed by member, for
	// carry-forward and retroactive fines. Nil map for a first period.
	Previous        map[MemberID]MemberContribution
	PreviousDueDate time.Time

	// DueDate is the new period's payment due date.
	DueDate time.Time

	// Now anchors the lateness measurement for previous-period rows that
	// were never paid.
	Now time.Time

	// BaseContribution overrides the group's configured amount when
	// positive (the open request may set the period's contribution).
	BaseContribution decimal.Decimal
}

// MaterializeDues builds one MemberContribution per active membership.
// Every member of the period owes the same base contribution; only
// carry-forward, interest, and fines differ per member.
func MaterializeDues(in DueInput) []MemberContribution {
	base := in.BaseContribution
	if !base.IsPositive() {
		base = in.Group.BaseContribution
	}
	base = finance.Round2(base)

	rows := make([]MemberContribution, 0, len(in.Memberships))
	for _, m := range in.Memberships {
		rows = append(rows, materializeOne(in, m, base))
	}
	return rows
}

func materializeOne(in DueInput, m Membership, base decimal.Decimal) MemberContribution {
	balance := UnifiedLoanBalance(in.ActiveLoans[m.MemberID], m.LegacyLoanAmount)
	interest := finance.PeriodInterest(balance, in.Group.AnnualInterestPercent, in.Group.Schedule.Frequency)

	carry := decimal.Zero
	fine := decimal.Zero
	daysLate := 0
	warning := ""

	if prev, ok := in.Previous[m.MemberID]; ok {
		carry = finance.Round2(prev.Remaining)

		// Fine for the previous period, based on when (or whether) it was
		// paid relative to its due date.
		paidAt := in.Now
		if prev.PaidAt != nil {
			paidAt = *prev.PaidAt
		}
		daysLate = finance.DaysLate(in.PreviousDueDate, paidAt)
		assessment := latefine.Assess(in.FineRule, daysLate, prev.ContributionDue)
		fine = assessment.Amount
		warning = assessment.Warning
	}

	row := MemberContribution{
		ID:              uuid.NewString(),
		MemberID:        m.MemberID,
		ContributionDue: base,
		LoanInterestDue: interest,
		LateFine:        fine,
		CarryForward:    carry,
		MinimumDue:      finance.Sum2(base, interest, fine, carry),
		DaysLate:        daysLate,
		DueDate:         in.DueDate,
		Status:          StatusPending,
		FineWarning:     warning,

		ContributionPaid:  decimal.Zero,
		LoanInterestPaid:  decimal.Zero,
		LateFinePaid:      decimal.Zero,
		LoanPrincipalPaid: decimal.Zero,
		TotalPaid:         decimal.Zero,
	}
	row.Remaining = row.MinimumDue
	return row
}
