// Package store provides ledger.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/bachat/settlement-engine/latefine"
	"github.com/bachat/settlement-engine/ledger"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is a thread-safe in-memory ledger.Store.
type Memory struct {
	mu  sync.RWMutex
	raw *rawMemory
}

func NewMemory() *Memory {
	return &Memory{raw: newRawMemory()}
}

func (m *Memory) SaveGroup(ctx context.Context, g ledger.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raw.SaveGroup(ctx, g)
}

func (m *Memory) GetGroup(ctx context.Context, id ledger.GroupID) (*ledger.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.raw.GetGroup(ctx, id)
}

func (m *Memory) ListGroups(ctx context.Context) ([]ledger.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.raw.ListGroups(ctx)
}

func (m *Memory) UpdateGroupCash(ctx context.Context, id ledger.GroupID, cash ledger.CashPosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raw.UpdateGroupCash(ctx, id, cash)
}

func (m *Memory) SaveMember(ctx context.Context, mem ledger.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raw.SaveMember(ctx, mem)
}

func (m *Memory) GetMember(ctx context.Context, id ledger.MemberID) (*ledger.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.raw.GetMember(ctx, id)
}

func (m *Memory) SaveMembership(ctx context.Context, ms ledger.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raw.SaveMembership(ctx, ms)
}

func (m *Memory) ListMemberships(ctx context.Context, groupID ledger.GroupID) ([]ledger.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.raw.ListMemberships(ctx, groupID)
}

func (m *Memory) UpdateMembershipLoan(ctx context.Context, membershipID string, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raw.UpdateMembershipLoan(ctx, membershipID, amount)
}

func (m *Memory) SaveLoan(ctx context.Context, l ledger.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raw.SaveLoan(ctx, l)
}

func (m *Memory) GetLoan(ctx context.Context, id string) (*ledger.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.raw.GetLoan(ctx, id)
}

func (m *Memory) ActiveLoans(ctx context.Context, groupID ledger.GroupID) (map[ledger.MemberID][]ledger.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.raw.ActiveLoans(ctx, groupID)
}

func (m *Memory) UpdateLoanBalance(ctx context.Context, id string, balance decimal.Decimal, status ledger.LoanStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raw.UpdateLoanBalance(ctx, id, balance, status)
}

func (m *Memory) SaveFineRule(ctx context.Context, r latefine.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raw.SaveFineRule(ctx, r)
}

func (m *Memory) ActiveFineRule(ctx context.Context, groupID ledger.GroupID) (*latefine.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.raw.ActiveFineRule(ctx, groupID)
}

func (m *Memory) InsertPeriod(ctx context.Context, p ledger.PeriodicRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raw.InsertPeriod(ctx, p)
}

func (m *Memory) GetPeriod(ctx context.Context, id string) (*ledger.PeriodicRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.raw.GetPeriod(ctx, id)
}

func (m *Memory) GetPeriodBySequence(ctx context.Context, groupID ledger.GroupID, seq int) (*ledger.PeriodicRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.raw.GetPeriodBySequence(ctx, groupID, seq)
}

func (m *Memory) LatestPeriod(ctx context.Context, groupID ledger.GroupID) (*ledger.PeriodicRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.raw.LatestPeriod(ctx, groupID)
}

func (m *Memory) ListPeriods(ctx context.Context, groupID ledger.GroupID) ([]ledger.PeriodicRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.raw.ListPeriods(ctx, groupID)
}

func (m *Memory) MarkPeriodTouched(ctx context.Context, periodID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raw.MarkPeriodTouched(ctx, periodID)
}

func (m *Memory) UpdatePeriodOpening(ctx context.Context, p ledger.PeriodicRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raw.UpdatePeriodOpening(ctx, p)
}

func (m *Memory) SealPeriod(ctx context.Context, periodID string, close ledger.PeriodClose) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raw.SealPeriod(ctx, periodID, close)
}

func (m *Memory) OverwriteClose(ctx context.Context, periodID string, close ledger.PeriodClose) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raw.OverwriteClose(ctx, periodID, close)
}

func (m *Memory) InsertContributions(ctx context.Context, periodID string, rows []ledger.MemberContribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raw.InsertContributions(ctx, periodID, rows)
}

func (m *Memory) ReplaceContributions(ctx context.Context, periodID string, rows []ledger.MemberContribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raw.ReplaceContributions(ctx, periodID, rows)
}

func (m *Memory) GetContribution(ctx context.Context, id string) (*ledger.MemberContribution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.raw.GetContribution(ctx, id)
}

func (m *Memory) ListContributions(ctx context.Context, periodID string) ([]ledger.MemberContribution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.raw.ListContributions(ctx, periodID)
}

func (m *Memory) UpdateContribution(ctx context.Context, mc ledger.MemberContribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raw.UpdateContribution(ctx, mc)
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.raw.snapshot()

	// fn operates on the raw tables directly; the snapshot is the undo log.
	if err := fn(tm.raw); err != nil {
		tm.raw = snapshot
		return err
	}
	return nil
}

// =============================================================================
// RAW TABLES - unlocked internals shared by Memory and WithTx
// =============================================================================

type rawMemory struct {
	groups        map[ledger.GroupID]ledger.Group
	members       map[ledger.MemberID]ledger.Member
	memberships   map[string]ledger.Membership
	loans         map[string]ledger.Loan
	fineRules     map[string]latefine.Rule
	periods       map[string]ledger.PeriodicRecord
	contributions map[string]ledger.MemberContribution
}

func newRawMemory() *rawMemory {
	return &rawMemory{
		groups:        make(map[ledger.GroupID]ledger.Group),
		members:       make(map[ledger.MemberID]ledger.Member),
		memberships:   make(map[string]ledger.Membership),
		loans:         make(map[string]ledger.Loan),
		fineRules:     make(map[string]latefine.Rule),
		periods:       make(map[string]ledger.PeriodicRecord),
		contributions: make(map[string]ledger.MemberContribution),
	}
}

func (r *rawMemory) snapshot() *rawMemory {
	s := newRawMemory()
	for k, v := range r.groups {
		s.groups[k] = v
	}
	for k, v := range r.members {
		s.members[k] = v
	}
	for k, v := range r.memberships {
		s.memberships[k] = v
	}
	for k, v := range r.loans {
		s.loans[k] = v
	}
	for k, v := range r.fineRules {
		s.fineRules[k] = v
	}
	for k, v := range r.periods {
		s.periods[k] = v
	}
	for k, v := range r.contributions {
		s.contributions[k] = v
	}
	return s
}

func (r *rawMemory) SaveGroup(_ context.Context, g ledger.Group) error {
	r.groups[g.ID] = g
	return nil
}

func (r *rawMemory) GetGroup(_ context.Context, id ledger.GroupID) (*ledger.Group, error) {
	g, ok := r.groups[id]
	if !ok {
		return nil, ledger.ErrGroupNotFound
	}
	return &g, nil
}

func (r *rawMemory) ListGroups(_ context.Context) ([]ledger.Group, error) {
	result := make([]ledger.Group, 0, len(r.groups))
	for _, g := range r.groups {
		result = append(result, g)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *rawMemory) UpdateGroupCash(_ context.Context, id ledger.GroupID, cash ledger.CashPosition) error {
	g, ok := r.groups[id]
	if !ok {
		return ledger.ErrGroupNotFound
	}
	g.CashInHand = cash.Hand
	g.CashInBank = cash.Bank
	r.groups[id] = g
	return nil
}

func (r *rawMemory) SaveMember(_ context.Context, m ledger.Member) error {
	r.members[m.ID] = m
	return nil
}

func (r *rawMemory) GetMember(_ context.Context, id ledger.MemberID) (*ledger.Member, error) {
	m, ok := r.members[id]
	if !ok {
		return nil, ledger.ErrMemberNotFound
	}
	return &m, nil
}

func (r *rawMemory) SaveMembership(_ context.Context, ms ledger.Membership) error {
	r.memberships[ms.ID] = ms
	return nil
}

func (r *rawMemory) ListMemberships(_ context.Context, groupID ledger.GroupID) ([]ledger.Membership, error) {
	var result []ledger.Membership
	for _, ms := range r.memberships {
		if ms.GroupID == groupID {
			result = append(result, ms)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].JoinedAt.Before(result[j].JoinedAt) })
	return result, nil
}

func (r *rawMemory) UpdateMembershipLoan(_ context.Context, membershipID string, amount decimal.Decimal) error {
	ms, ok := r.memberships[membershipID]
	if !ok {
		return ledger.ErrMemberNotFound
	}
	ms.LegacyLoanAmount = amount
	r.memberships[membershipID] = ms
	return nil
}

func (r *rawMemory) SaveLoan(_ context.Context, l ledger.Loan) error {
	r.loans[l.ID] = l
	return nil
}

func (r *rawMemory) GetLoan(_ context.Context, id string) (*ledger.Loan, error) {
	l, ok := r.loans[id]
	if !ok {
		return nil, ledger.ErrLoanNotFound
	}
	return &l, nil
}

func (r *rawMemory) ActiveLoans(_ context.Context, groupID ledger.GroupID) (map[ledger.MemberID][]ledger.Loan, error) {
	result := make(map[ledger.MemberID][]ledger.Loan)
	for _, l := range r.loans {
		if l.GroupID == groupID && l.Status == ledger.LoanActive {
			result[l.MemberID] = append(result[l.MemberID], l)
		}
	}
	for _, loans := range result {
		sort.Slice(loans, func(i, j int) bool { return loans[i].IssuedAt.Before(loans[j].IssuedAt) })
	}
	return result, nil
}

func (r *rawMemory) UpdateLoanBalance(_ context.Context, id string, balance decimal.Decimal, status ledger.LoanStatus) error {
	l, ok := r.loans[id]
	if !ok {
		return ledger.ErrLoanNotFound
	}
	l.CurrentBalance = balance
	l.Status = status
	r.loans[id] = l
	return nil
}

func (r *rawMemory) SaveFineRule(_ context.Context, rule latefine.Rule) error {
	g, ok := r.groups[ledger.GroupID(rule.GroupID)]
	if !ok {
		return ledger.ErrGroupNotFound
	}
	r.fineRules[rule.ID] = rule
	g.ActiveFineRuleID = rule.ID
	r.groups[g.ID] = g
	return nil
}

func (r *rawMemory) ActiveFineRule(_ context.Context, groupID ledger.GroupID) (*latefine.Rule, error) {
	g, ok := r.groups[groupID]
	if !ok {
		return nil, ledger.ErrGroupNotFound
	}
	if g.ActiveFineRuleID == "" {
		return nil, nil
	}
	rule, ok := r.fineRules[g.ActiveFineRuleID]
	if !ok {
		return nil, nil
	}
	return &rule, nil
}

func (r *rawMemory) InsertPeriod(_ context.Context, p ledger.PeriodicRecord) error {
	for _, existing := range r.periods {
		if existing.GroupID == p.GroupID && existing.Sequence == p.Sequence {
			return &ledger.ConflictError{
				PeriodID: existing.ID,
				GroupID:  p.GroupID,
				Sequence: p.Sequence,
				Reason:   ledger.ErrDuplicateSequence,
			}
		}
	}
	r.periods[p.ID] = p
	return nil
}

func (r *rawMemory) GetPeriod(_ context.Context, id string) (*ledger.PeriodicRecord, error) {
	p, ok := r.periods[id]
	if !ok {
		return nil, ledger.ErrPeriodNotFound
	}
	return clonePeriod(p), nil
}

func (r *rawMemory) GetPeriodBySequence(_ context.Context, groupID ledger.GroupID, seq int) (*ledger.PeriodicRecord, error) {
	for _, p := range r.periods {
		if p.GroupID == groupID && p.Sequence == seq {
			return clonePeriod(p), nil
		}
	}
	return nil, ledger.ErrPeriodNotFound
}

func (r *rawMemory) LatestPeriod(_ context.Context, groupID ledger.GroupID) (*ledger.PeriodicRecord, error) {
	var latest *ledger.PeriodicRecord
	for _, p := range r.periods {
		if p.GroupID != groupID {
			continue
		}
		if latest == nil || p.Sequence > latest.Sequence {
			latest = clonePeriod(p)
		}
	}
	if latest == nil {
		return nil, ledger.ErrPeriodNotFound
	}
	return latest, nil
}

func (r *rawMemory) ListPeriods(_ context.Context, groupID ledger.GroupID) ([]ledger.PeriodicRecord, error) {
	var result []ledger.PeriodicRecord
	for _, p := range r.periods {
		if p.GroupID == groupID {
			result = append(result, *clonePeriod(p))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Sequence < result[j].Sequence })
	return result, nil
}

func (r *rawMemory) MarkPeriodTouched(_ context.Context, periodID string) error {
	p, ok := r.periods[periodID]
	if !ok {
		return ledger.ErrPeriodNotFound
	}
	p.Touched = true
	r.periods[periodID] = p
	return nil
}

func (r *rawMemory) UpdatePeriodOpening(_ context.Context, p ledger.PeriodicRecord) error {
	existing, ok := r.periods[p.ID]
	if !ok {
		return ledger.ErrPeriodNotFound
	}
	existing.MeetingDate = p.MeetingDate
	existing.DueDate = p.DueDate
	existing.StandingAtStart = p.StandingAtStart
	r.periods[p.ID] = existing
	return nil
}

func (r *rawMemory) SealPeriod(_ context.Context, periodID string, close ledger.PeriodClose) error {
	p, ok := r.periods[periodID]
	if !ok {
		return ledger.ErrPeriodNotFound
	}
	if p.Close != nil {
		return &ledger.ConflictError{
			PeriodID: p.ID,
			GroupID:  p.GroupID,
			Sequence: p.Sequence,
			Reason:   ledger.ErrPeriodClosed,
		}
	}
	c := close
	p.Close = &c
	r.periods[periodID] = p
	return nil
}

func (r *rawMemory) OverwriteClose(_ context.Context, periodID string, close ledger.PeriodClose) error {
	p, ok := r.periods[periodID]
	if !ok {
		return ledger.ErrPeriodNotFound
	}
	c := close
	p.Close = &c
	r.periods[periodID] = p
	return nil
}

func (r *rawMemory) InsertContributions(_ context.Context, periodID string, rows []ledger.MemberContribution) error {
	for _, mc := range rows {
		mc.PeriodID = periodID
		r.contributions[mc.ID] = mc
	}
	return nil
}

func (r *rawMemory) ReplaceContributions(ctx context.Context, periodID string, rows []ledger.MemberContribution) error {
	for id, mc := range r.contributions {
		if mc.PeriodID == periodID {
			delete(r.contributions, id)
		}
	}
	return r.InsertContributions(ctx, periodID, rows)
}

func (r *rawMemory) GetContribution(_ context.Context, id string) (*ledger.MemberContribution, error) {
	mc, ok := r.contributions[id]
	if !ok {
		return nil, ledger.ErrContributionNotFound
	}
	return &mc, nil
}

func (r *rawMemory) ListContributions(_ context.Context, periodID string) ([]ledger.MemberContribution, error) {
	var result []ledger.MemberContribution
	for _, mc := range r.contributions {
		if mc.PeriodID == periodID {
			result = append(result, mc)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].MemberID < result[j].MemberID })
	return result, nil
}

func (r *rawMemory) UpdateContribution(_ context.Context, mc ledger.MemberContribution) error {
	if _, ok := r.contributions[mc.ID]; !ok {
		return ledger.ErrContributionNotFound
	}
	r.contributions[mc.ID] = mc
	return nil
}

// clonePeriod deep-copies a period so callers never alias the stored Close.
func clonePeriod(p ledger.PeriodicRecord) *ledger.PeriodicRecord {
	if p.Close != nil {
		c := *p.Close
		p.Close = &c
	}
	return &p
}
