/*
Package ledger holds the settlement engine's data model and the pure
calculations over it.

PURPOSE:
  This package is the core of the system: per-period member obligations,
  payment application, and group standing. It owns no storage and no HTTP -
  the store/sqlite package persists these types and the period package
  orchestrates their lifecycle.

KEY CONCEPTS IN THIS FILE (types.go):
  - Group: collection schedule, base contribution, rates, cash position
  - Membership: member-in-group link carrying a legacy loan balance
  - Loan: an active lending position with outstanding principal
  - PeriodicRecord: one collection cycle; open until Close is populated
  - MemberContribution: one member's obligation-and-payment row per period

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every monetary field
  2. Explicit state: a period is closed iff its Close aggregate exists;
     a period is touched iff a payment was ever recorded against it.
     No wall-clock heuristics.
  3. One formula for standing: hand + bank + outstanding loan principal,
     recomputed from first principles at every use

SEE ALSO:
  - dues.go: materializing obligations at period open
  - payment.go: applying payments to a row
  - standing.go: cash allocation and the standing formula
*/
package ledger

import (
	"time"

	"github.com/bachat/settlement-engine/finance"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type GroupID string
type MemberID string

// =============================================================================
// GROUP / MEMBERSHIP / LOAN
// =============================================================================

// Group is a savings/lending group. Cash balances mutate only on period
// close and administrative edits.
type Group struct {
	ID       GroupID
	Name     string
	Schedule finance.Schedule

	// BaseContribution is the compulsory per-period contribution. It is
	// identical for every member of a period; per-member variation enters
	// only through carry-forward.
	BaseContribution decimal.Decimal

	// AnnualInterestPercent is the loan interest rate, e.g. 12 for 12%/year.
	AnnualInterestPercent decimal.Decimal

	CashInHand decimal.Decimal
	CashInBank decimal.Decimal

	// HandSplit is the fraction of collected cash that goes to cash-in-hand
	// when a payment carries no explicit allocation (default 0.30).
	HandSplit decimal.Decimal

	// ActiveFineRuleID points at the group's single active late-fine rule.
	// Empty means no fine rule.
	ActiveFineRuleID string

	CreatedAt time.Time
}

// DefaultHandSplit is the fallback hand/bank split for collected cash:
// 30% to hand, 70% to bank.
var DefaultHandSplit = decimal.NewFromFloat(0.3)

// Member is a person who can belong to groups.
type Member struct {
	ID        MemberID
	Name      string
	Email     string
	Phone     string
	CreatedAt time.Time
}

// Membership links a member to a group. LegacyLoanAmount is an imported
// balance used only when the member has no active Loan rows in the group.
type Membership struct {
	ID               string
	GroupID          GroupID
	MemberID         MemberID
	LegacyLoanAmount decimal.Decimal
	JoinedAt         time.Time
}

type LoanStatus string

const (
	LoanActive LoanStatus = "ACTIVE"
	LoanClosed LoanStatus = "CLOSED"
)

// Loan is a lending position. CurrentBalance is the outstanding principal;
// interest is assessed per period by the due calculator, never added to the
// balance here.
type Loan struct {
	ID             string
	GroupID        GroupID
	MemberID       MemberID
	Principal      decimal.Decimal
	CurrentBalance decimal.Decimal
	Status         LoanStatus
	IssuedAt       time.Time
}

// UnifiedLoanBalance resolves a member's loan exposure in a group: the sum
// of active loan balances when any exist with a positive balance, otherwise
// the membership's legacy amount.
func UnifiedLoanBalance(activeLoans []Loan, legacy decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range activeLoans {
		if l.Status == LoanActive {
			sum = sum.Add(l.CurrentBalance)
		}
	}
	if sum.IsPositive() {
		return sum
	}
	return legacy
}

// =============================================================================
// PERIODIC RECORD
// =============================================================================

// PeriodClose holds the aggregates populated when a period closes. Its
// presence on a PeriodicRecord IS the closed state.
type PeriodClose struct {
	TotalCollection    decimal.Decimal
	InterestEarned     decimal.Decimal
	LateFinesCollected decimal.Decimal
	NewContributions   decimal.Decimal
	EndingCashInHand   decimal.Decimal
	EndingCashInBank   decimal.Decimal
	TotalStanding      decimal.Decimal
	MembersPresent     int
	ClosedAt           time.Time
}

// PeriodicRecord is one collection cycle for a group. Sequence is
// monotonically increasing and unique per group.
type PeriodicRecord struct {
	ID              string
	GroupID         GroupID
	Sequence        int
	MeetingDate     time.Time
	DueDate         time.Time
	StandingAtStart decimal.Decimal

	// Touched is set the first time any payment is recorded against the
	// period. It distinguishes a freshly auto-created period from one that
	// genuinely collected zero, without timestamp guesswork.
	Touched bool

	// Close is nil while the period is open.
	Close *PeriodClose

	CreatedAt time.Time
}

// IsClosed reports whether the period's closing aggregates are populated.
func (p *PeriodicRecord) IsClosed() bool { return p.Close != nil }

// =============================================================================
// MEMBER CONTRIBUTION
// =============================================================================

type ContributionStatus string

const (
	StatusPending ContributionStatus = "PENDING"
	StatusPaid    ContributionStatus = "PAID"
)

// MemberContribution is one member's obligation-and-payment ledger row for
// one period.
//
// INVARIANTS:
//   - MinimumDue = ContributionDue + LoanInterestDue + LateFine + CarryForward
//   - Remaining  = max(0, MinimumDue - TotalPaid)
//   - Status == PAID iff Remaining == 0
type MemberContribution struct {
	ID       string
	PeriodID string
	MemberID MemberID

	ContributionDue decimal.Decimal
	LoanInterestDue decimal.Decimal
	LateFine        decimal.Decimal
	CarryForward    decimal.Decimal
	MinimumDue      decimal.Decimal

	ContributionPaid  decimal.Decimal
	LoanInterestPaid  decimal.Decimal
	LateFinePaid      decimal.Decimal
	LoanPrincipalPaid decimal.Decimal // reduces the loan, never TotalPaid
	TotalPaid         decimal.Decimal
	Remaining         decimal.Decimal

	DaysLate int
	DueDate  time.Time
	Status   ContributionStatus
	PaidAt   *time.Time

	// Allocation is the explicit hand/bank split of this member's payment,
	// when one was specified. Nil means the group default applies at close.
	Allocation *CashAllocation

	// FineWarning carries a configuration-integrity warning from the
	// late-fine engine (e.g. tier rule with no tiers). Empty when clean.
	FineWarning string
}

// CashAllocation is an explicit split of a payment between cash-in-hand and
// cash-in-bank.
type CashAllocation struct {
	ToHand decimal.Decimal
	ToBank decimal.Decimal
}

// recompute refreshes the derived fields after any payment write.
func (mc *MemberContribution) recompute(paidAt time.Time) {
	mc.TotalPaid = finance.Sum2(mc.ContributionPaid, mc.LoanInterestPaid, mc.LateFinePaid)
	mc.Remaining = finance.NonNegative(finance.Round2(mc.MinimumDue.Sub(mc.TotalPaid)))
	if mc.Remaining.IsZero() {
		mc.Status = StatusPaid
		if mc.PaidAt == nil {
			t := paidAt
			mc.PaidAt = &t
		}
	} else {
		mc.Status = StatusPending
		mc.PaidAt = nil
	}
}
