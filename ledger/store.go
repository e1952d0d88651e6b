/*
store.go - Persistence interface for groups, periods, and ledger rows

PURPOSE:
  Defines the interface between the domain logic and the database. The
  period manager only ever talks to these interfaces; store/sqlite is the
  production implementation and ledger/store holds an in-memory one for
  tests.

KEY INTERFACES:
  Store:    record persistence for every entity the engine reads or writes
  TxStore:  Store plus WithTx for the atomic period close

ATOMIC CLOSE:
  ClosePeriod's financial work (closing aggregates + cash + standing +
  next-period creation + carry-forward rows) runs inside one WithTx call.
  If the closure function errors, the store rolls everything back and the
  group is left in its pre-close OPEN state.

CONFLICTS:
  InsertPeriod returns ErrDuplicateSequence when (group, sequence) exists.
  SealPeriod returns ErrPeriodClosed when the period already carries
  closing aggregates. Both are checked inside the transaction, which is
  what serializes two concurrent closes.

SEE ALSO:
  - store/sqlite/sqlite.go: production implementation
  - ledger/store/memory.go: in-memory implementation for tests
*/
package ledger

import (
	"context"

	"github.com/bachat/settlement-engine/latefine"
	"github.com/shopspring/decimal"
)

// Store handles persistence for the settlement engine's records.
type Store interface {
	// --- groups ---

	// SaveGroup inserts or updates a group.
	SaveGroup(ctx context.Context, g Group) error

	// GetGroup returns a group or ErrGroupNotFound.
	GetGroup(ctx context.Context, id GroupID) (*Group, error)

	// ListGroups returns all groups ordered by name.
	ListGroups(ctx context.Context) ([]Group, error)

	// UpdateGroupCash sets the group's current cash position.
	UpdateGroupCash(ctx context.Context, id GroupID, cash CashPosition) error

	// --- members & memberships ---

	SaveMember(ctx context.Context, m Member) error
	GetMember(ctx context.Context, id MemberID) (*Member, error)
	SaveMembership(ctx context.Context, m Membership) error

	// ListMemberships returns a group's memberships ordered by join date.
	ListMemberships(ctx context.Context, groupID GroupID) ([]Membership, error)

	// UpdateMembershipLoan sets the legacy loan amount on a membership.
	UpdateMembershipLoan(ctx context.Context, membershipID string, amount decimal.Decimal) error

	// --- loans ---

	SaveLoan(ctx context.Context, l Loan) error
	GetLoan(ctx context.Context, id string) (*Loan, error)

	// ActiveLoans returns every ACTIVE loan in the group keyed by member.
	ActiveLoans(ctx context.Context, groupID GroupID) (map[MemberID][]Loan, error)

	// UpdateLoanBalance sets a loan's outstanding principal and status.
	UpdateLoanBalance(ctx context.Context, id string, balance decimal.Decimal, status LoanStatus) error

	// --- late-fine rules ---

	// SaveFineRule stores a rule (with tiers) and points the group's
	// active-rule reference at it.
	SaveFineRule(ctx context.Context, r latefine.Rule) error

	// ActiveFineRule returns the group's current rule, nil when none.
	ActiveFineRule(ctx context.Context, groupID GroupID) (*latefine.Rule, error)

	// --- periods ---

	// InsertPeriod creates a period; ErrDuplicateSequence if (group,
	// sequence) exists.
	InsertPeriod(ctx context.Context, p PeriodicRecord) error

	// GetPeriod returns a period or ErrPeriodNotFound.
	GetPeriod(ctx context.Context, id string) (*PeriodicRecord, error)

	// GetPeriodBySequence returns the group's period with the given
	// sequence, or ErrPeriodNotFound.
	GetPeriodBySequence(ctx context.Context, groupID GroupID, seq int) (*PeriodicRecord, error)

	// LatestPeriod returns the group's highest-sequence period, or
	// ErrPeriodNotFound when the group has no periods.
	LatestPeriod(ctx context.Context, groupID GroupID) (*PeriodicRecord, error)

	// ListPeriods returns the group's periods ordered by sequence.
	ListPeriods(ctx context.Context, groupID GroupID) ([]PeriodicRecord, error)

	// MarkPeriodTouched flags that a payment was recorded on the period.
	MarkPeriodTouched(ctx context.Context, periodID string) error

	// UpdatePeriodOpening rewrites an open period's meeting date, due date
	// and starting standing (reopening an untouched auto-created period).
	UpdatePeriodOpening(ctx context.Context, p PeriodicRecord) error

	// SealPeriod populates a period's closing aggregates. Returns
	// ErrPeriodClosed if they are already populated.
	SealPeriod(ctx context.Context, periodID string, close PeriodClose) error

	// OverwriteClose force-replaces a sealed period's aggregates. Only
	// historical regeneration may call it.
	OverwriteClose(ctx context.Context, periodID string, close PeriodClose) error

	// --- member contributions ---

	// InsertContributions creates the period's ledger rows.
	InsertContributions(ctx context.Context, periodID string, rows []MemberContribution) error

	// ReplaceContributions deletes and recreates an open period's rows.
	ReplaceContributions(ctx context.Context, periodID string, rows []MemberContribution) error

	// GetContribution returns one row or ErrContributionNotFound.
	GetContribution(ctx context.Context, id string) (*MemberContribution, error)

	// ListContributions returns the period's rows ordered by member id.
	ListContributions(ctx context.Context, periodID string) ([]MemberContribution, error)

	// UpdateContribution rewrites a row's payment and status fields.
	UpdateContribution(ctx context.Context, mc MemberContribution) error
}

// TxStore wraps Store with transaction support. The period manager requires
// it: the close's financial work must be all-or-nothing.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
