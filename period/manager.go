/*
Package period orchestrates the period lifecycle for a group.

PURPOSE:
  The Manager owns the state machine OPEN -> CLOSING -> CLOSED -> next
  period OPEN. It is the only writer of period state: opening materializes
  the ledger, payments mutate it, closing reconciles cash/loans/fines into
  a new group standing and seeds the next period with carry-forward rows.

STATE MACHINE:
  OPEN      ledger rows exist, no closing aggregates
  CLOSING   transient; exists only as the scope of one WithTx call
  CLOSED    aggregates populated; triggers creation of the next OPEN period

GUARANTEES:
  1. At-most-once close: the second close of a period returns a conflict,
     and group standing mutates exactly once.
  2. Atomicity: the close's financial work (aggregates, cash, standing,
     next period, carry-forward rows) commits or rolls back as one unit.
     A failed close leaves the group in its pre-close OPEN state.
  3. Bounded transactions: per-row status finalization runs AFTER the core
     transaction commits, in idempotent batches, so a large group cannot
     stretch the atomic section.
  4. Idempotent open: reopening an existing (group, sequence) that was
     never touched by a payment updates it in place; a touched or closed
     period conflicts.

SEE ALSO:
  - ledger/dues.go: obligation materialization
  - ledger/payment.go: per-category payment application
  - ledger/standing.go: cash allocation and the standing formula
*/
package period

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bachat/settlement-engine/finance"
	"github.com/bachat/settlement-engine/ledger"
)

// defaultBatchSize bounds the post-close row finalization batches.
const defaultBatchSize = 25

// Manager drives the period lifecycle against a transactional store.
type Manager struct {
	store ledger.TxStore

	// BatchSize is the row-finalization batch size after a close.
	BatchSize int
}

func NewManager(store ledger.TxStore) *Manager {
	return &Manager{store: store, BatchSize: defaultBatchSize}
}

// =============================================================================
// OPEN
// =============================================================================

// OpenRequest opens (or idempotently reopens) a period.
type OpenRequest struct {
	GroupID  ledger.GroupID
	Sequence int

	// MeetingDate is the period's start; the due date derives from it.
	MeetingDate time.Time

	// BaseContribution overrides the group's configured amount when
	// positive.
	BaseContribution decimal.Decimal
}

// OpenResult is the created (or refreshed) period and its ledger.
type OpenResult struct {
	Period ledger.PeriodicRecord
	Rows   []ledger.MemberContribution
}

// OpenPeriod creates a period with one ledger row per active membership.
//
// Idempotency: if a period with the same (group, sequence) exists and has
// never seen a payment, its dates and ledger are rewritten in place. A
// touched or closed period conflicts.
func (m *Manager) OpenPeriod(ctx context.Context, req OpenRequest) (*OpenResult, error) {
	if err := validateOpen(req); err != nil {
		return nil, err
	}

	var result OpenResult
	err := m.store.WithTx(ctx, func(st ledger.Store) error {
		group, err := st.GetGroup(ctx, req.GroupID)
		if err != nil {
			return err
		}

		memberships, err := st.ListMemberships(ctx, req.GroupID)
		if err != nil {
			return err
		}
		activeLoans, err := st.ActiveLoans(ctx, req.GroupID)
		if err != nil {
			return err
		}
		fineRule, err := st.ActiveFineRule(ctx, req.GroupID)
		if err != nil {
			return err
		}

		// Carry-forward and retroactive fines read the immediately
		// preceding sequence.
		previous := map[ledger.MemberID]ledger.MemberContribution{}
		var previousDueDate time.Time
		if req.Sequence > 1 {
			prev, err := st.GetPeriodBySequence(ctx, req.GroupID, req.Sequence-1)
			if err == nil {
				previousDueDate = prev.DueDate
				prevRows, err := st.ListContributions(ctx, prev.ID)
				if err != nil {
					return err
				}
				for _, r := range prevRows {
					previous[r.MemberID] = r
				}
			} else if !ledger.IsNotFound(err) {
				return err
			}
		}

		meetingDate := finance.DateOnly(req.MeetingDate)
		dueDate := finance.DueDate(group.Schedule, meetingDate)
		standing := currentStanding(*group, memberships, activeLoans)

		rows := ledger.MaterializeDues(ledger.DueInput{
			Group:            *group,
			Memberships:      memberships,
			ActiveLoans:      activeLoans,
			FineRule:         fineRule,
			Previous:         previous,
			PreviousDueDate:  previousDueDate,
			DueDate:          dueDate,
			Now:              time.Now().UTC(),
			BaseContribution: req.BaseContribution,
		})

		existing, err := st.GetPeriodBySequence(ctx, req.GroupID, req.Sequence)
		switch {
		case err == nil:
			if existing.IsClosed() || existing.Touched {
				return &ledger.ConflictError{
					PeriodID: existing.ID,
					GroupID:  req.GroupID,
					Sequence: req.Sequence,
					Reason:   ledger.ErrDuplicateSequence,
				}
			}
			// Untouched auto-created period: refresh in place.
			existing.MeetingDate = meetingDate
			existing.DueDate = dueDate
			existing.StandingAtStart = standing
			if err := st.UpdatePeriodOpening(ctx, *existing); err != nil {
				return err
			}
			if err := st.ReplaceContributions(ctx, existing.ID, rows); err != nil {
				return err
			}
			result.Period = *existing

		case ledger.IsNotFound(err):
			p := ledger.PeriodicRecord{
				ID:              uuid.NewString(),
				GroupID:         req.GroupID,
				Sequence:        req.Sequence,
				MeetingDate:     meetingDate,
				DueDate:         dueDate,
				StandingAtStart: standing,
				CreatedAt:       time.Now().UTC(),
			}
			if err := st.InsertPeriod(ctx, p); err != nil {
				return err
			}
			if err := st.InsertContributions(ctx, p.ID, rows); err != nil {
				return err
			}
			result.Period = p

		default:
			return err
		}

		for i := range rows {
			rows[i].PeriodID = result.Period.ID
		}
		result.Rows = rows
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func validateOpen(req OpenRequest) error {
	if req.GroupID == "" {
		return &ledger.ValidationError{Field: "groupId", Message: "required"}
	}
	if req.Sequence < 1 {
		return &ledger.ValidationError{Field: "sequence", Message: "must be >= 1"}
	}
	if req.MeetingDate.IsZero() {
		return &ledger.ValidationError{Field: "meetingDate", Message: "required"}
	}
	return nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

// PaymentOutcome is one recorded payment: the updated row plus the
// requested-vs-applied breakdown.
type PaymentOutcome struct {
	Row    ledger.MemberContribution
	Result ledger.PaymentResult
}

// RecordPayment applies a payment to one ledger row. The owning period must
// be open; recording marks it touched.
func (m *Manager) RecordPayment(ctx context.Context, contributionID string, req ledger.PaymentRequest) (*PaymentOutcome, error) {
	var outcome PaymentOutcome
	err := m.store.WithTx(ctx, func(st ledger.Store) error {
		o, err := recordPaymentTx(ctx, st, contributionID, req)
		if err != nil {
			return err
		}
		outcome = *o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}

func recordPaymentTx(ctx context.Context, st ledger.Store, contributionID string, req ledger.PaymentRequest) (*PaymentOutcome, error) {
	mc, err := st.GetContribution(ctx, contributionID)
	if err != nil {
		return nil, err
	}
	p, err := st.GetPeriod(ctx, mc.PeriodID)
	if err != nil {
		return nil, err
	}
	if p.IsClosed() {
		return nil, &ledger.ConflictError{
			PeriodID: p.ID,
			GroupID:  p.GroupID,
			Sequence: p.Sequence,
			Reason:   ledger.ErrPeriodClosed,
		}
	}

	memberships, err := st.ListMemberships(ctx, p.GroupID)
	if err != nil {
		return nil, err
	}
	activeLoans, err := st.ActiveLoans(ctx, p.GroupID)
	if err != nil {
		return nil, err
	}

	legacy := decimal.Zero
	if ms := membershipFor(memberships, mc.MemberID); ms != nil {
		legacy = ms.LegacyLoanAmount
	}
	loanBalance := ledger.UnifiedLoanBalance(activeLoans[mc.MemberID], legacy)

	res := ledger.ApplyPayment(mc, req, loanBalance)

	if res.Applied.LoanPrincipal.IsPositive() {
		if err := reducePrincipal(ctx, st, memberships, activeLoans[mc.MemberID], mc.MemberID, res.Applied.LoanPrincipal); err != nil {
			return nil, err
		}
	}

	if err := st.UpdateContribution(ctx, *mc); err != nil {
		return nil, err
	}
	if err := st.MarkPeriodTouched(ctx, p.ID); err != nil {
		return nil, err
	}
	return &PaymentOutcome{Row: *mc, Result: res}, nil
}

// BulkPaymentUpdate is one entry of a bulk payment call.
type BulkPaymentUpdate struct {
	ContributionID string
	Payment        ledger.PaymentRequest
}

// BulkResult reports a bulk payment's outcome: applied rows plus the ids
// that were skipped because no such ledger row exists.
type BulkResult struct {
	UpdatedCount int
	Skipped      []string
	Rows         []ledger.MemberContribution
}

// BulkRecordPayments applies each update independently. Unknown
// contribution ids are skipped, not failed; any other error aborts.
func (m *Manager) BulkRecordPayments(ctx context.Context, updates []BulkPaymentUpdate) (*BulkResult, error) {
	result := &BulkResult{Skipped: []string{}}
	for _, u := range updates {
		outcome, err := m.RecordPayment(ctx, u.ContributionID, u.Payment)
		if ledger.IsNotFound(err) {
			result.Skipped = append(result.Skipped, u.ContributionID)
			continue
		}
		if err != nil {
			return nil, err
		}
		result.UpdatedCount++
		result.Rows = append(result.Rows, outcome.Row)
	}
	return result, nil
}

// =============================================================================
// CLOSE
// =============================================================================

// CloseRequest closes a period. Payments carries any final allocations
// recorded as part of the close itself.
type CloseRequest struct {
	PeriodID string
	Payments []BulkPaymentUpdate
}

// CloseResult is the sealed period and its successor.
type CloseResult struct {
	ClosedPeriod ledger.PeriodicRecord
	NewPeriod    ledger.PeriodicRecord
	NewRows      []ledger.MemberContribution

	// Skipped lists final-payment entries referencing unknown rows.
	Skipped []string
}

// ClosePeriod atomically seals a period: final payments, closing
// aggregates, group cash, standing, and the next period with carry-forward
// rows all commit together. A second close of the same period conflicts.
//
// Per-row status finalization runs after the commit in bounded batches so
// the atomic section stays small regardless of group size.
func (m *Manager) ClosePeriod(ctx context.Context, req CloseRequest) (*CloseResult, error) {
	if req.PeriodID == "" {
		return nil, &ledger.ValidationError{Field: "periodId", Message: "required"}
	}

	var (
		result    CloseResult
		finalRows []ledger.MemberContribution
	)
	err := m.store.WithTx(ctx, func(st ledger.Store) error {
		p, err := st.GetPeriod(ctx, req.PeriodID)
		if err != nil {
			return err
		}
		if p.IsClosed() {
			return &ledger.ConflictError{
				PeriodID: p.ID,
				GroupID:  p.GroupID,
				Sequence: p.Sequence,
				Reason:   ledger.ErrPeriodClosed,
			}
		}

		group, err := st.GetGroup(ctx, p.GroupID)
		if err != nil {
			return err
		}

		// Final payments are part of the close's atomic unit.
		for _, u := range req.Payments {
			_, err := recordPaymentTx(ctx, st, u.ContributionID, u.Payment)
			if ledger.IsNotFound(err) {
				result.Skipped = append(result.Skipped, u.ContributionID)
				continue
			}
			if err != nil {
				return err
			}
		}

		rows, err := st.ListContributions(ctx, p.ID)
		if err != nil {
			return err
		}
		memberships, err := st.ListMemberships(ctx, p.GroupID)
		if err != nil {
			return err
		}
		// Loan assets are evaluated at the moment of closing, never
		// carried from a prior period.
		activeLoans, err := st.ActiveLoans(ctx, p.GroupID)
		if err != nil {
			return err
		}

		collected := ledger.AllocateCollections(rows, group.HandSplit)
		starting := ledger.CashPosition{Hand: group.CashInHand, Bank: group.CashInBank}
		ending := starting.Add(collected)
		loanAssets := ledger.LoanAssets(memberships, activeLoans)
		standing := ledger.ComputeStanding(ending, loanAssets)

		close := ledger.PeriodClose{
			TotalCollection:    ledger.TotalCollection(rows),
			InterestEarned:     ledger.InterestCollected(rows),
			LateFinesCollected: ledger.FinesCollected(rows),
			NewContributions:   contributionsCollected(rows),
			EndingCashInHand:   ending.Hand,
			EndingCashInBank:   ending.Bank,
			TotalStanding:      standing,
			MembersPresent:     payingMembers(rows),
			ClosedAt:           time.Now().UTC(),
		}
		if err := st.SealPeriod(ctx, p.ID, close); err != nil {
			return err
		}
		if err := st.UpdateGroupCash(ctx, group.ID, ending); err != nil {
			return err
		}

		// Seed the next period with carry-forward.
		fineRule, err := st.ActiveFineRule(ctx, p.GroupID)
		if err != nil {
			return err
		}
		previous := make(map[ledger.MemberID]ledger.MemberContribution, len(rows))
		for _, r := range rows {
			previous[r.MemberID] = r
		}

		nextMeeting := finance.NextPeriodStart(group.Schedule.Frequency, p.MeetingDate)
		next := ledger.PeriodicRecord{
			ID:              uuid.NewString(),
			GroupID:         p.GroupID,
			Sequence:        p.Sequence + 1,
			MeetingDate:     nextMeeting,
			DueDate:         finance.DueDate(group.Schedule, nextMeeting),
			StandingAtStart: standing,
			CreatedAt:       time.Now().UTC(),
		}
		nextRows := ledger.MaterializeDues(ledger.DueInput{
			Group:           *group,
			Memberships:     memberships,
			ActiveLoans:     activeLoans,
			FineRule:        fineRule,
			Previous:        previous,
			PreviousDueDate: p.DueDate,
			DueDate:         next.DueDate,
			Now:             time.Now().UTC(),
		})
		if err := st.InsertPeriod(ctx, next); err != nil {
			return err
		}
		if err := st.InsertContributions(ctx, next.ID, nextRows); err != nil {
			return err
		}
		for i := range nextRows {
			nextRows[i].PeriodID = next.ID
		}

		p.Close = &close
		result.ClosedPeriod = *p
		result.NewPeriod = next
		result.NewRows = nextRows
		finalRows = rows
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Idempotent per-row finalization, outside the atomic section.
	if err := m.finalizeRows(ctx, finalRows); err != nil {
		return nil, fmt.Errorf("period %s closed but row finalization failed: %w", req.PeriodID, err)
	}
	return &result, nil
}

// finalizeRows rewrites the closed period's rows in bounded batches so
// their derived fields are consistent at rest. Each batch is its own small
// transaction; reruns are harmless.
func (m *Manager) finalizeRows(ctx context.Context, rows []ledger.MemberContribution) error {
	size := m.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}

	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		err := m.store.WithTx(ctx, func(st ledger.Store) error {
			for _, row := range batch {
				if err := st.UpdateContribution(ctx, row); err != nil {
					if ledger.IsNotFound(err) {
						continue
					}
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// LOAN REPAYMENT
// =============================================================================

// RepayLoan records an explicit loan repayment for a member in a group,
// against the newest active loan, falling back to the membership's legacy
// balance. The repaid principal joins group cash under the group's split
// in the same transaction, so standing is unchanged by a repayment.
// Unlike ledger-driven principal payments, an explicit repayment exceeding
// the balance is rejected, not clamped.
func (m *Manager) RepayLoan(ctx context.Context, groupID ledger.GroupID, memberID ledger.MemberID, amount decimal.Decimal) (decimal.Decimal, error) {
	amount = finance.Round2(amount)
	if !amount.IsPositive() {
		return decimal.Zero, &ledger.ValidationError{Field: "amount", Message: "must be positive"}
	}

	var newBalance decimal.Decimal
	err := m.store.WithTx(ctx, func(st ledger.Store) error {
		group, err := st.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}
		memberships, err := st.ListMemberships(ctx, groupID)
		if err != nil {
			return err
		}
		activeLoans, err := st.ActiveLoans(ctx, groupID)
		if err != nil {
			return err
		}

		loans := activeLoans[memberID]
		if len(loans) > 0 {
			// Newest active loan takes the repayment.
			sort.Slice(loans, func(i, j int) bool { return loans[i].IssuedAt.After(loans[j].IssuedAt) })
			loan := loans[0]
			if amount.GreaterThan(loan.CurrentBalance) {
				return &ledger.ValidationError{Field: "amount", Message: "exceeds loan balance"}
			}
			balance := finance.Round2(loan.CurrentBalance.Sub(amount))
			status := ledger.LoanActive
			if balance.IsZero() {
				status = ledger.LoanClosed
			}
			if err := st.UpdateLoanBalance(ctx, loan.ID, balance, status); err != nil {
				return err
			}
			newBalance = balance
		} else {
			ms := membershipFor(memberships, memberID)
			if ms == nil {
				return ledger.ErrMemberNotFound
			}
			if amount.GreaterThan(ms.LegacyLoanAmount) {
				return &ledger.ValidationError{Field: "amount", Message: "exceeds loan balance"}
			}
			balance := finance.Round2(ms.LegacyLoanAmount.Sub(amount))
			if err := st.UpdateMembershipLoan(ctx, ms.ID, balance); err != nil {
				return err
			}
			newBalance = balance
		}

		// The repayment converts a loan asset into cash; skipping this
		// would shrink standing by every repayment.
		cash := ledger.CashPosition{Hand: group.CashInHand, Bank: group.CashInBank}
		return st.UpdateGroupCash(ctx, group.ID, cash.Add(ledger.SplitCash(amount, group.HandSplit)))
	})
	if err != nil {
		return decimal.Zero, err
	}
	return newBalance, nil
}

// reducePrincipal spreads an applied ledger principal payment across the
// member's active loans oldest-first, spilling any remainder into the
// membership's legacy balance.
func reducePrincipal(ctx context.Context, st ledger.Store, memberships []ledger.Membership, loans []ledger.Loan, memberID ledger.MemberID, amount decimal.Decimal) error {
	remaining := amount
	for _, loan := range loans {
		if !remaining.IsPositive() {
			return nil
		}
		take := remaining
		if take.GreaterThan(loan.CurrentBalance) {
			take = loan.CurrentBalance
		}
		balance := finance.Round2(loan.CurrentBalance.Sub(take))
		status := ledger.LoanActive
		if balance.IsZero() {
			status = ledger.LoanClosed
		}
		if err := st.UpdateLoanBalance(ctx, loan.ID, balance, status); err != nil {
			return err
		}
		remaining = finance.Round2(remaining.Sub(take))
	}

	if remaining.IsPositive() && len(loans) == 0 {
		if ms := membershipFor(memberships, memberID); ms != nil {
			balance := finance.NonNegative(finance.Round2(ms.LegacyLoanAmount.Sub(remaining)))
			return st.UpdateMembershipLoan(ctx, ms.ID, balance)
		}
	}
	return nil
}

// =============================================================================
// VIEWS
// =============================================================================

// PeriodView is a period with its ledger rows.
type PeriodView struct {
	Period ledger.PeriodicRecord
	Rows   []ledger.MemberContribution
}

// CurrentPeriod returns the group's latest period and its ledger.
func (m *Manager) CurrentPeriod(ctx context.Context, groupID ledger.GroupID) (*PeriodView, error) {
	p, err := m.store.LatestPeriod(ctx, groupID)
	if err != nil {
		return nil, err
	}
	rows, err := m.store.ListContributions(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &PeriodView{Period: *p, Rows: rows}, nil
}

// GetPeriod returns one period with its ledger rows.
func (m *Manager) GetPeriod(ctx context.Context, periodID string) (*PeriodView, error) {
	p, err := m.store.GetPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	rows, err := m.store.ListContributions(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &PeriodView{Period: *p, Rows: rows}, nil
}

// GroupSummary is the live financial overview of a group.
type GroupSummary struct {
	Group           ledger.Group
	MemberCount     int
	ActiveLoanCount int
	TotalLoanAssets decimal.Decimal
	CashInHand      decimal.Decimal
	CashInBank      decimal.Decimal
	TotalStanding   decimal.Decimal

	// RecentPeriods are the latest closed periods, newest first.
	RecentPeriods []ledger.PeriodicRecord
}

// recentPeriodWindow caps the trend slice in a summary.
const recentPeriodWindow = 6

// Summary computes the group overview with the same standing formula the
// close path uses.
func (m *Manager) Summary(ctx context.Context, groupID ledger.GroupID) (*GroupSummary, error) {
	group, err := m.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	memberships, err := m.store.ListMemberships(ctx, groupID)
	if err != nil {
		return nil, err
	}
	activeLoans, err := m.store.ActiveLoans(ctx, groupID)
	if err != nil {
		return nil, err
	}

	loanAssets := ledger.LoanAssets(memberships, activeLoans)
	cash := ledger.CashPosition{Hand: group.CashInHand, Bank: group.CashInBank}

	loanCount := 0
	for _, loans := range activeLoans {
		loanCount += len(loans)
	}

	summary := &GroupSummary{
		Group:           *group,
		MemberCount:     len(memberships),
		ActiveLoanCount: loanCount,
		TotalLoanAssets: loanAssets,
		CashInHand:      cash.Hand,
		CashInBank:      cash.Bank,
		TotalStanding:   ledger.ComputeStanding(cash, loanAssets),
	}

	periods, err := m.store.ListPeriods(ctx, groupID)
	if err != nil {
		return nil, err
	}
	for i := len(periods) - 1; i >= 0 && len(summary.RecentPeriods) < recentPeriodWindow; i-- {
		if periods[i].IsClosed() {
			summary.RecentPeriods = append(summary.RecentPeriods, periods[i])
		}
	}
	return summary, nil
}

// =============================================================================
// HISTORICAL RECOMPUTE
// =============================================================================

// RecomputeStanding walks the group's closed periods oldest-first and
// rewrites their closing aggregates from first principles: the cash chain
// is rebuilt from collections, and each standing is recomputed as
// endingCash + loan assets instead of trusting whatever was stored.
// Returns the number of periods rewritten.
//
// Loan assets at each historical close are recovered from the stored
// aggregates (standing minus ending cash); loan records carry no history.
func (m *Manager) RecomputeStanding(ctx context.Context, groupID ledger.GroupID) (int, error) {
	rewritten := 0
	err := m.store.WithTx(ctx, func(st ledger.Store) error {
		group, err := st.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}

		periods, err := st.ListPeriods(ctx, groupID)
		if err != nil {
			return err
		}

		var closed []ledger.PeriodicRecord
		for _, p := range periods {
			if p.IsClosed() {
				closed = append(closed, p)
			}
		}
		if len(closed) == 0 {
			return nil
		}

		// Anchor the cash chain at the first close's starting position.
		first := closed[0]
		firstRows, err := st.ListContributions(ctx, first.ID)
		if err != nil {
			return err
		}
		firstCollected := ledger.AllocateCollections(firstRows, group.HandSplit)
		cash := ledger.CashPosition{
			Hand: finance.Round2(first.Close.EndingCashInHand.Sub(firstCollected.Hand)),
			Bank: finance.Round2(first.Close.EndingCashInBank.Sub(firstCollected.Bank)),
		}

		prevStanding := first.StandingAtStart
		for _, p := range closed {
			rows, err := st.ListContributions(ctx, p.ID)
			if err != nil {
				return err
			}
			collected := ledger.AllocateCollections(rows, group.HandSplit)
			ending := cash.Add(collected)

			loanAssets := finance.Round2(
				p.Close.TotalStanding.Sub(p.Close.EndingCashInHand).Sub(p.Close.EndingCashInBank))
			standing := ledger.ComputeStanding(ending, loanAssets)

			if err := st.UpdatePeriodOpening(ctx, ledger.PeriodicRecord{
				ID:              p.ID,
				MeetingDate:     p.MeetingDate,
				DueDate:         p.DueDate,
				StandingAtStart: prevStanding,
			}); err != nil {
				return err
			}

			close := *p.Close
			close.TotalCollection = ledger.TotalCollection(rows)
			close.InterestEarned = ledger.InterestCollected(rows)
			close.LateFinesCollected = ledger.FinesCollected(rows)
			close.NewContributions = contributionsCollected(rows)
			close.EndingCashInHand = ending.Hand
			close.EndingCashInBank = ending.Bank
			close.TotalStanding = standing
			if err := st.OverwriteClose(ctx, p.ID, close); err != nil {
				return err
			}

			cash = ending
			prevStanding = standing
			rewritten++
		}

		// The open successor period starts from the corrected standing.
		latest, err := st.LatestPeriod(ctx, groupID)
		if err == nil && !latest.IsClosed() {
			latest.StandingAtStart = prevStanding
			if err := st.UpdatePeriodOpening(ctx, *latest); err != nil {
				return err
			}
		} else if err != nil && !ledger.IsNotFound(err) {
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rewritten, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func currentStanding(g ledger.Group, memberships []ledger.Membership, activeLoans map[ledger.MemberID][]ledger.Loan) decimal.Decimal {
	cash := ledger.CashPosition{Hand: g.CashInHand, Bank: g.CashInBank}
	return ledger.ComputeStanding(cash, ledger.LoanAssets(memberships, activeLoans))
}

func membershipFor(memberships []ledger.Membership, memberID ledger.MemberID) *ledger.Membership {
	for i := range memberships {
		if memberships[i].MemberID == memberID {
			return &memberships[i]
		}
	}
	return nil
}

func contributionsCollected(rows []ledger.MemberContribution) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range rows {
		sum = sum.Add(r.ContributionPaid)
	}
	return finance.Round2(sum)
}

func payingMembers(rows []ledger.MemberContribution) int {
	n := 0
	for _, r := range rows {
		if r.TotalPaid.IsPositive() {
			n++
		}
	}
	return n
}
