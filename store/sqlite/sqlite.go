/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements ledger.Store and ledger.TxStore using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

KEY TABLES:
  groups:         group configuration, schedule, and cash position
  members:        people, independent of any group
  memberships:    member-in-group links with imported legacy loan balances
  loans:          lending positions with outstanding principal
  fine_rules:     late-fine configurations (one active per group)
  fine_tiers:     day-range buckets of tier-based rules
  periods:        one row per collection cycle; closing aggregates live in
                  nullable columns, closed_at NULL means OPEN
  contributions:  per-member obligation-and-payment rows per period

MONEY REPRESENTATION:
  All monetary columns are TEXT holding decimal strings. SQLite REAL would
  round-trip through binary floats and lose cents; decimal strings keep
  the arithmetic exact end to end.

CLOSE SERIALIZATION:
  SealPeriod is a guarded UPDATE (WHERE closed_at IS NULL). Two concurrent
  closes race on the guard inside WithTx; the loser observes zero affected
  rows and returns ErrPeriodClosed.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/bachat.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  mgr := period.NewManager(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: interface definitions
  - ledger/store/memory.go: in-memory implementation for testing
  - period/manager.go: the lifecycle orchestration on top of this store
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/bachat/settlement-engine/finance"
	"github.com/bachat/settlement-engine/latefine"
	"github.com/bachat/settlement-engine/ledger"
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writes anyway; one connection also keeps :memory:
	// databases coherent across transactions.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Groups (configuration + current cash position)
	CREATE TABLE IF NOT EXISTS groups (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		frequency TEXT NOT NULL,
		day_of_month INTEGER DEFAULT 0,
		day_of_week INTEGER DEFAULT 0,
		week_of_month INTEGER DEFAULT 0,
		base_contribution TEXT NOT NULL,
		annual_interest_percent TEXT NOT NULL,
		cash_in_hand TEXT NOT NULL,
		cash_in_bank TEXT NOT NULL,
		hand_split TEXT NOT NULL,
		active_fine_rule_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- Members (people; group-independent)
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		created_at TEXT NOT NULL
	);

	-- Memberships (member-in-group links)
	CREATE TABLE IF NOT EXISTS memberships (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		member_id TEXT NOT NULL,
		legacy_loan_amount TEXT NOT NULL,
		joined_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_memberships_group
		ON memberships(group_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_memberships_unique
		ON memberships(group_id, member_id);

	-- Loans
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		member_id TEXT NOT NULL,
		principal TEXT NOT NULL,
		current_balance TEXT NOT NULL,
		status TEXT NOT NULL,
		issued_at TEXT NOT NULL
	);

	-- Active-loan lookup is a hot path on every period open
	CREATE INDEX IF NOT EXISTS idx_loans_group_status
		ON loans(group_id, status);

	-- Late-fine rules + tiers
	CREATE TABLE IF NOT EXISTS fine_rules (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		enabled BOOLEAN NOT NULL,
		type TEXT NOT NULL,
		daily_amount TEXT NOT NULL,
		daily_percentage TEXT NOT NULL,
		grace_period_days INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS fine_tiers (
		id TEXT PRIMARY KEY,
		rule_id TEXT NOT NULL,
		start_day INTEGER NOT NULL,
		end_day INTEGER NOT NULL,
		amount TEXT NOT NULL,
		is_percentage BOOLEAN NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_fine_tiers_rule
		ON fine_tiers(rule_id, start_day);

	-- Periods. closed_at NULL means the period is OPEN; the closing
	-- aggregates are populated together with closed_at, atomically.
	CREATE TABLE IF NOT EXISTS periods (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		meeting_date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		standing_at_start TEXT NOT NULL,
		touched BOOLEAN NOT NULL DEFAULT FALSE,
		total_collection TEXT,
		interest_earned TEXT,
		late_fines_collected TEXT,
		new_contributions TEXT,
		ending_cash_in_hand TEXT,
		ending_cash_in_bank TEXT,
		total_standing TEXT,
		members_present INTEGER,
		closed_at TEXT,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: at most one period per (group, sequence). Concurrent
	-- opens race on this index; the loser gets a duplicate-sequence error.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_periods_group_sequence
		ON periods(group_id, sequence);
	CREATE INDEX IF NOT EXISTS idx_periods_group
		ON periods(group_id, sequence DESC);

	-- Member contributions (one ledger row per member per period)
	CREATE TABLE IF NOT EXISTS contributions (
		id TEXT PRIMARY KEY,
		period_id TEXT NOT NULL,
		member_id TEXT NOT NULL,
		contribution_due TEXT NOT NULL,
		loan_interest_due TEXT NOT NULL,
		late_fine TEXT NOT NULL,
		carry_forward TEXT NOT NULL,
		minimum_due TEXT NOT NULL,
		contribution_paid TEXT NOT NULL,
		loan_interest_paid TEXT NOT NULL,
		late_fine_paid TEXT NOT NULL,
		loan_principal_paid TEXT NOT NULL,
		total_paid TEXT NOT NULL,
		remaining TEXT NOT NULL,
		days_late INTEGER NOT NULL DEFAULT 0,
		due_date TEXT NOT NULL,
		status TEXT NOT NULL,
		paid_at TEXT,
		alloc_hand TEXT,
		alloc_bank TEXT,
		fine_warning TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_contributions_period
		ON contributions(period_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_contributions_unique
		ON contributions(period_id, member_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is the common surface of *sql.DB and *sql.Tx; every query helper
// below runs against either.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ledger.ErrTxFailed, err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ledger.ErrTxFailed, err)
	}
	return nil
}

// txStore is the in-transaction view handed to WithTx callbacks. It reuses
// the same query helpers as Store, bound to the open *sql.Tx, and skips the
// mutex (WithTx already holds it).
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SaveGroup(ctx context.Context, g ledger.Group) error {
	return saveGroup(ctx, ts.tx, g)
}
func (ts *txStore) GetGroup(ctx context.Context, id ledger.GroupID) (*ledger.Group, error) {
	return getGroup(ctx, ts.tx, id)
}
func (ts *txStore) ListGroups(ctx context.Context) ([]ledger.Group, error) {
	return listGroups(ctx, ts.tx)
}
func (ts *txStore) UpdateGroupCash(ctx context.Context, id ledger.GroupID, cash ledger.CashPosition) error {
	return updateGroupCash(ctx, ts.tx, id, cash)
}
func (ts *txStore) SaveMember(ctx context.Context, m ledger.Member) error {
	return saveMember(ctx, ts.tx, m)
}
func (ts *txStore) GetMember(ctx context.Context, id ledger.MemberID) (*ledger.Member, error) {
	return getMember(ctx, ts.tx, id)
}
func (ts *txStore) SaveMembership(ctx context.Context, m ledger.Membership) error {
	return saveMembership(ctx, ts.tx, m)
}
func (ts *txStore) ListMemberships(ctx context.Context, groupID ledger.GroupID) ([]ledger.Membership, error) {
	return listMemberships(ctx, ts.tx, groupID)
}
func (ts *txStore) UpdateMembershipLoan(ctx context.Context, membershipID string, amount decimal.Decimal) error {
	return updateMembershipLoan(ctx, ts.tx, membershipID, amount)
}
func (ts *txStore) SaveLoan(ctx context.Context, l ledger.Loan) error {
	return saveLoan(ctx, ts.tx, l)
}
func (ts *txStore) GetLoan(ctx context.Context, id string) (*ledger.Loan, error) {
	return getLoan(ctx, ts.tx, id)
}
func (ts *txStore) ActiveLoans(ctx context.Context, groupID ledger.GroupID) (map[ledger.MemberID][]ledger.Loan, error) {
	return activeLoans(ctx, ts.tx, groupID)
}
func (ts *txStore) UpdateLoanBalance(ctx context.Context, id string, balance decimal.Decimal, status ledger.LoanStatus) error {
	return updateLoanBalance(ctx, ts.tx, id, balance, status)
}
func (ts *txStore) SaveFineRule(ctx context.Context, r latefine.Rule) error {
	return saveFineRule(ctx, ts.tx, r)
}
func (ts *txStore) ActiveFineRule(ctx context.Context, groupID ledger.GroupID) (*latefine.Rule, error) {
	return activeFineRule(ctx, ts.tx, groupID)
}
func (ts *txStore) InsertPeriod(ctx context.Context, p ledger.PeriodicRecord) error {
	return insertPeriod(ctx, ts.tx, p)
}
func (ts *txStore) GetPeriod(ctx context.Context, id string) (*ledger.PeriodicRecord, error) {
	return getPeriod(ctx, ts.tx, id)
}
func (ts *txStore) GetPeriodBySequence(ctx context.Context, groupID ledger.GroupID, seq int) (*ledger.PeriodicRecord, error) {
	return getPeriodBySequence(ctx, ts.tx, groupID, seq)
}
func (ts *txStore) LatestPeriod(ctx context.Context, groupID ledger.GroupID) (*ledger.PeriodicRecord, error) {
	return latestPeriod(ctx, ts.tx, groupID)
}
func (ts *txStore) ListPeriods(ctx context.Context, groupID ledger.GroupID) ([]ledger.PeriodicRecord, error) {
	return listPeriods(ctx, ts.tx, groupID)
}
func (ts *txStore) MarkPeriodTouched(ctx context.Context, periodID string) error {
	return markPeriodTouched(ctx, ts.tx, periodID)
}
func (ts *txStore) UpdatePeriodOpening(ctx context.Context, p ledger.PeriodicRecord) error {
	return updatePeriodOpening(ctx, ts.tx, p)
}
func (ts *txStore) SealPeriod(ctx context.Context, periodID string, close ledger.PeriodClose) error {
	return sealPeriod(ctx, ts.tx, periodID, close)
}
func (ts *txStore) OverwriteClose(ctx context.Context, periodID string, close ledger.PeriodClose) error {
	return overwriteClose(ctx, ts.tx, periodID, close)
}
func (ts *txStore) InsertContributions(ctx context.Context, periodID string, rows []ledger.MemberContribution) error {
	return insertContributions(ctx, ts.tx, periodID, rows)
}
func (ts *txStore) ReplaceContributions(ctx context.Context, periodID string, rows []ledger.MemberContribution) error {
	return replaceContributions(ctx, ts.tx, periodID, rows)
}
func (ts *txStore) GetContribution(ctx context.Context, id string) (*ledger.MemberContribution, error) {
	return getContribution(ctx, ts.tx, id)
}
func (ts *txStore) ListContributions(ctx context.Context, periodID string) ([]ledger.MemberContribution, error) {
	return listContributions(ctx, ts.tx, periodID)
}
func (ts *txStore) UpdateContribution(ctx context.Context, mc ledger.MemberContribution) error {
	return updateContribution(ctx, ts.tx, mc)
}

// =============================================================================
// STORE METHODS - lock + delegate
// =============================================================================

func (s *Store) SaveGroup(ctx context.Context, g ledger.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveGroup(ctx, s.db, g)
}

func (s *Store) GetGroup(ctx context.Context, id ledger.GroupID) (*ledger.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getGroup(ctx, s.db, id)
}

func (s *Store) ListGroups(ctx context.Context) ([]ledger.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listGroups(ctx, s.db)
}

func (s *Store) UpdateGroupCash(ctx context.Context, id ledger.GroupID, cash ledger.CashPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateGroupCash(ctx, s.db, id, cash)
}

func (s *Store) SaveMember(ctx context.Context, m ledger.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveMember(ctx, s.db, m)
}

func (s *Store) GetMember(ctx context.Context, id ledger.MemberID) (*ledger.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getMember(ctx, s.db, id)
}

func (s *Store) SaveMembership(ctx context.Context, m ledger.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveMembership(ctx, s.db, m)
}

func (s *Store) ListMemberships(ctx context.Context, groupID ledger.GroupID) ([]ledger.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listMemberships(ctx, s.db, groupID)
}

func (s *Store) UpdateMembershipLoan(ctx context.Context, membershipID string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateMembershipLoan(ctx, s.db, membershipID, amount)
}

func (s *Store) SaveLoan(ctx context.Context, l ledger.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveLoan(ctx, s.db, l)
}

func (s *Store) GetLoan(ctx context.Context, id string) (*ledger.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getLoan(ctx, s.db, id)
}

func (s *Store) ActiveLoans(ctx context.Context, groupID ledger.GroupID) (map[ledger.MemberID][]ledger.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activeLoans(ctx, s.db, groupID)
}

func (s *Store) UpdateLoanBalance(ctx context.Context, id string, balance decimal.Decimal, status ledger.LoanStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateLoanBalance(ctx, s.db, id, balance, status)
}

// SaveFineRule runs in its own transaction: the rule row, its tiers and the
// group's active-rule pointer move together.
func (s *Store) SaveFineRule(ctx context.Context, r latefine.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ledger.ErrTxFailed, err)
	}
	defer sqlTx.Rollback()

	if err := saveFineRule(ctx, sqlTx, r); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func (s *Store) ActiveFineRule(ctx context.Context, groupID ledger.GroupID) (*latefine.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activeFineRule(ctx, s.db, groupID)
}

func (s *Store) InsertPeriod(ctx context.Context, p ledger.PeriodicRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertPeriod(ctx, s.db, p)
}

func (s *Store) GetPeriod(ctx context.Context, id string) (*ledger.PeriodicRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPeriod(ctx, s.db, id)
}

func (s *Store) GetPeriodBySequence(ctx context.Context, groupID ledger.GroupID, seq int) (*ledger.PeriodicRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPeriodBySequence(ctx, s.db, groupID, seq)
}

func (s *Store) LatestPeriod(ctx context.Context, groupID ledger.GroupID) (*ledger.PeriodicRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return latestPeriod(ctx, s.db, groupID)
}

func (s *Store) ListPeriods(ctx context.Context, groupID ledger.GroupID) ([]ledger.PeriodicRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPeriods(ctx, s.db, groupID)
}

func (s *Store) MarkPeriodTouched(ctx context.Context, periodID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return markPeriodTouched(ctx, s.db, periodID)
}

func (s *Store) UpdatePeriodOpening(ctx context.Context, p ledger.PeriodicRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updatePeriodOpening(ctx, s.db, p)
}

func (s *Store) SealPeriod(ctx context.Context, periodID string, close ledger.PeriodClose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sealPeriod(ctx, s.db, periodID, close)
}

func (s *Store) OverwriteClose(ctx context.Context, periodID string, close ledger.PeriodClose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return overwriteClose(ctx, s.db, periodID, close)
}

// InsertContributions writes the batch in its own transaction.
func (s *Store) InsertContributions(ctx context.Context, periodID string, rows []ledger.MemberContribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ledger.ErrTxFailed, err)
	}
	defer sqlTx.Rollback()

	if err := insertContributions(ctx, sqlTx, periodID, rows); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// ReplaceContributions deletes and recreates the period's rows atomically.
func (s *Store) ReplaceContributions(ctx context.Context, periodID string, rows []ledger.MemberContribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ledger.ErrTxFailed, err)
	}
	defer sqlTx.Rollback()

	if err := replaceContributions(ctx, sqlTx, periodID, rows); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func (s *Store) GetContribution(ctx context.Context, id string) (*ledger.MemberContribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getContribution(ctx, s.db, id)
}

func (s *Store) ListContributions(ctx context.Context, periodID string) ([]ledger.MemberContribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listContributions(ctx, s.db, periodID)
}

func (s *Store) UpdateContribution(ctx context.Context, mc ledger.MemberContribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateContribution(ctx, s.db, mc)
}

// =============================================================================
// GROUPS
// =============================================================================

func saveGroup(ctx context.Context, db dbtx, g ledger.Group) error {
	query := `
		INSERT INTO groups
		(id, name, frequency, day_of_month, day_of_week, week_of_month,
		 base_contribution, annual_interest_percent, cash_in_hand, cash_in_bank,
		 hand_split, active_fine_rule_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			frequency = excluded.frequency,
			day_of_month = excluded.day_of_month,
			day_of_week = excluded.day_of_week,
			week_of_month = excluded.week_of_month,
			base_contribution = excluded.base_contribution,
			annual_interest_percent = excluded.annual_interest_percent,
			cash_in_hand = excluded.cash_in_hand,
			cash_in_bank = excluded.cash_in_bank,
			hand_split = excluded.hand_split,
			active_fine_rule_id = excluded.active_fine_rule_id
	`

	createdAt := g.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx, query,
		string(g.ID), g.Name,
		string(g.Schedule.Frequency), g.Schedule.DayOfMonth,
		int(g.Schedule.DayOfWeek), g.Schedule.WeekOfMonth,
		g.BaseContribution.String(), g.AnnualInterestPercent.String(),
		g.CashInHand.String(), g.CashInBank.String(),
		g.HandSplit.String(), g.ActiveFineRuleID,
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save group: %w", err)
	}
	return nil
}

const groupColumns = `id, name, frequency, day_of_month, day_of_week, week_of_month,
	base_contribution, annual_interest_percent, cash_in_hand, cash_in_bank,
	hand_split, active_fine_rule_id, created_at`

func getGroup(ctx context.Context, db dbtx, id ledger.GroupID) (*ledger.Group, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+groupColumns+" FROM groups WHERE id = ?", string(id))

	g, err := scanGroup(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

func listGroups(ctx context.Context, db dbtx) ([]ledger.Group, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+groupColumns+" FROM groups ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []ledger.Group
	for rows.Next() {
		g, err := scanGroup(rows.Scan)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}

func scanGroup(scan func(...any) error) (*ledger.Group, error) {
	var (
		g                             ledger.Group
		id, frequency                 string
		dayOfWeek                     int
		base, rate, hand, bank, split string
		createdAt                     string
	)

	err := scan(
		&id, &g.Name, &frequency,
		&g.Schedule.DayOfMonth, &dayOfWeek, &g.Schedule.WeekOfMonth,
		&base, &rate, &hand, &bank, &split,
		&g.ActiveFineRuleID, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	g.ID = ledger.GroupID(id)
	g.Schedule.Frequency = finance.Frequency(frequency)
	g.Schedule.DayOfWeek = time.Weekday(dayOfWeek)
	g.BaseContribution = finance.MustDecimal(base)
	g.AnnualInterestPercent = finance.MustDecimal(rate)
	g.CashInHand = finance.MustDecimal(hand)
	g.CashInBank = finance.MustDecimal(bank)
	g.HandSplit = finance.MustDecimal(split)
	g.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &g, nil
}

func updateGroupCash(ctx context.Context, db dbtx, id ledger.GroupID, cash ledger.CashPosition) error {
	res, err := db.ExecContext(ctx,
		"UPDATE groups SET cash_in_hand = ?, cash_in_bank = ? WHERE id = ?",
		cash.Hand.String(), cash.Bank.String(), string(id))
	if err != nil {
		return fmt.Errorf("failed to update group cash: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrGroupNotFound
	}
	return nil
}

// =============================================================================
// MEMBERS & MEMBERSHIPS
// =============================================================================

func saveMember(ctx context.Context, db dbtx, m ledger.Member) error {
	query := `
		INSERT INTO members (id, name, email, phone, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			phone = excluded.phone
	`

	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx, query,
		string(m.ID), m.Name, m.Email, m.Phone,
		createdAt.Format(time.RFC3339),
	)
	return err
}

func getMember(ctx context.Context, db dbtx, id ledger.MemberID) (*ledger.Member, error) {
	var (
		m            ledger.Member
		mid          string
		email, phone sql.NullString
		createdAt    string
	)

	err := db.QueryRowContext(ctx,
		"SELECT id, name, email, phone, created_at FROM members WHERE id = ?",
		string(id),
	).Scan(&mid, &m.Name, &email, &phone, &createdAt)

	if err == sql.ErrNoRows {
		return nil, ledger.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}

	m.ID = ledger.MemberID(mid)
	m.Email = email.String
	m.Phone = phone.String
	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &m, nil
}

func saveMembership(ctx context.Context, db dbtx, ms ledger.Membership) error {
	query := `
		INSERT INTO memberships (id, group_id, member_id, legacy_loan_amount, joined_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			legacy_loan_amount = excluded.legacy_loan_amount
	`

	_, err := db.ExecContext(ctx, query,
		ms.ID, string(ms.GroupID), string(ms.MemberID),
		ms.LegacyLoanAmount.String(),
		ms.JoinedAt.Format(time.RFC3339),
	)
	return err
}

func listMemberships(ctx context.Context, db dbtx, groupID ledger.GroupID) ([]ledger.Membership, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, group_id, member_id, legacy_loan_amount, joined_at
		FROM memberships
		WHERE group_id = ?
		ORDER BY joined_at ASC
	`, string(groupID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []ledger.Membership
	for rows.Next() {
		var (
			ms                       ledger.Membership
			gid, mid, legacy, joined string
		)
		if err := rows.Scan(&ms.ID, &gid, &mid, &legacy, &joined); err != nil {
			return nil, err
		}
		ms.GroupID = ledger.GroupID(gid)
		ms.MemberID = ledger.MemberID(mid)
		ms.LegacyLoanAmount = finance.MustDecimal(legacy)
		ms.JoinedAt, _ = time.Parse(time.RFC3339, joined)
		memberships = append(memberships, ms)
	}
	return memberships, rows.Err()
}

func updateMembershipLoan(ctx context.Context, db dbtx, membershipID string, amount decimal.Decimal) error {
	res, err := db.ExecContext(ctx,
		"UPDATE memberships SET legacy_loan_amount = ? WHERE id = ?",
		amount.String(), membershipID)
	if err != nil {
		return fmt.Errorf("failed to update membership loan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrMemberNotFound
	}
	return nil
}

// =============================================================================
// LOANS
// =============================================================================

func saveLoan(ctx context.Context, db dbtx, l ledger.Loan) error {
	query := `
		INSERT INTO loans (id, group_id, member_id, principal, current_balance, status, issued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			current_balance = excluded.current_balance,
			status = excluded.status
	`

	_, err := db.ExecContext(ctx, query,
		l.ID, string(l.GroupID), string(l.MemberID),
		l.Principal.String(), l.CurrentBalance.String(),
		string(l.Status), l.IssuedAt.Format(time.RFC3339),
	)
	return err
}

const loanColumns = `id, group_id, member_id, principal, current_balance, status, issued_at`

func getLoan(ctx context.Context, db dbtx, id string) (*ledger.Loan, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+loanColumns+" FROM loans WHERE id = ?", id)

	l, err := scanLoan(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrLoanNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func activeLoans(ctx context.Context, db dbtx, groupID ledger.GroupID) (map[ledger.MemberID][]ledger.Loan, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+loanColumns+" FROM loans WHERE group_id = ? AND status = ? ORDER BY issued_at ASC",
		string(groupID), string(ledger.LoanActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[ledger.MemberID][]ledger.Loan)
	for rows.Next() {
		l, err := scanLoan(rows.Scan)
		if err != nil {
			return nil, err
		}
		result[l.MemberID] = append(result[l.MemberID], *l)
	}
	return result, rows.Err()
}

func scanLoan(scan func(...any) error) (*ledger.Loan, error) {
	var (
		l                                    ledger.Loan
		gid, mid, principal, balance, status string
		issuedAt                             string
	)

	err := scan(&l.ID, &gid, &mid, &principal, &balance, &status, &issuedAt)
	if err != nil {
		return nil, err
	}

	l.GroupID = ledger.GroupID(gid)
	l.MemberID = ledger.MemberID(mid)
	l.Principal = finance.MustDecimal(principal)
	l.CurrentBalance = finance.MustDecimal(balance)
	l.Status = ledger.LoanStatus(status)
	l.IssuedAt, _ = time.Parse(time.RFC3339, issuedAt)
	return &l, nil
}

func updateLoanBalance(ctx context.Context, db dbtx, id string, balance decimal.Decimal, status ledger.LoanStatus) error {
	res, err := db.ExecContext(ctx,
		"UPDATE loans SET current_balance = ?, status = ? WHERE id = ?",
		balance.String(), string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update loan balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrLoanNotFound
	}
	return nil
}

// =============================================================================
// LATE-FINE RULES
// =============================================================================

func saveFineRule(ctx context.Context, db dbtx, r latefine.Rule) error {
	query := `
		INSERT INTO fine_rules
		(id, group_id, enabled, type, daily_amount, daily_percentage, grace_period_days, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			enabled = excluded.enabled,
			type = excluded.type,
			daily_amount = excluded.daily_amount,
			daily_percentage = excluded.daily_percentage,
			grace_period_days = excluded.grace_period_days
	`

	_, err := db.ExecContext(ctx, query,
		r.ID, r.GroupID, r.Enabled, string(r.Type),
		r.DailyAmount.String(), r.DailyPercentage.String(),
		r.GracePeriodDays, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save fine rule: %w", err)
	}

	// Tiers are replaced wholesale; partial tier edits are not a thing.
	if _, err := db.ExecContext(ctx, "DELETE FROM fine_tiers WHERE rule_id = ?", r.ID); err != nil {
		return err
	}
	for _, t := range r.Tiers {
		_, err := db.ExecContext(ctx, `
			INSERT INTO fine_tiers (id, rule_id, start_day, end_day, amount, is_percentage)
			VALUES (?, ?, ?, ?, ?, ?)
		`, t.ID, r.ID, t.StartDay, t.EndDay, t.Amount.String(), t.IsPercentage)
		if err != nil {
			return err
		}
	}

	res, err := db.ExecContext(ctx,
		"UPDATE groups SET active_fine_rule_id = ? WHERE id = ?", r.ID, r.GroupID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrGroupNotFound
	}
	return nil
}

func activeFineRule(ctx context.Context, db dbtx, groupID ledger.GroupID) (*latefine.Rule, error) {
	var ruleID string
	err := db.QueryRowContext(ctx,
		"SELECT active_fine_rule_id FROM groups WHERE id = ?", string(groupID),
	).Scan(&ruleID)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}
	if ruleID == "" {
		return nil, nil
	}

	var (
		r             latefine.Rule
		typ, amt, pct string
	)
	err = db.QueryRowContext(ctx, `
		SELECT id, group_id, enabled, type, daily_amount, daily_percentage, grace_period_days
		FROM fine_rules WHERE id = ?
	`, ruleID).Scan(&r.ID, &r.GroupID, &r.Enabled, &typ, &amt, &pct, &r.GracePeriodDays)
	if err == sql.ErrNoRows {
		// Dangling pointer; treat as no rule rather than failing dues.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.Type = latefine.RuleType(typ)
	r.DailyAmount = finance.MustDecimal(amt)
	r.DailyPercentage = finance.MustDecimal(pct)

	rows, err := db.QueryContext(ctx, `
		SELECT id, start_day, end_day, amount, is_percentage
		FROM fine_tiers WHERE rule_id = ?
		ORDER BY start_day ASC
	`, ruleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t      latefine.Tier
			amount string
		)
		if err := rows.Scan(&t.ID, &t.StartDay, &t.EndDay, &amount, &t.IsPercentage); err != nil {
			return nil, err
		}
		t.Amount = finance.MustDecimal(amount)
		r.Tiers = append(r.Tiers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &r, nil
}

// =============================================================================
// PERIODS
// =============================================================================

func insertPeriod(ctx context.Context, db dbtx, p ledger.PeriodicRecord) error {
	query := `
		INSERT INTO periods
		(id, group_id, sequence, meeting_date, due_date, standing_at_start, touched, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx, query,
		p.ID, string(p.GroupID), p.Sequence,
		p.MeetingDate.Format(time.RFC3339), p.DueDate.Format(time.RFC3339),
		p.StandingAtStart.String(), p.Touched,
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &ledger.ConflictError{
				PeriodID: p.ID,
				GroupID:  p.GroupID,
				Sequence: p.Sequence,
				Reason:   ledger.ErrDuplicateSequence,
			}
		}
		return fmt.Errorf("failed to insert period: %w", err)
	}
	return nil
}

const periodColumns = `id, group_id, sequence, meeting_date, due_date, standing_at_start, touched,
	total_collection, interest_earned, late_fines_collected, new_contributions,
	ending_cash_in_hand, ending_cash_in_bank, total_standing, members_present,
	closed_at, created_at`

func getPeriod(ctx context.Context, db dbtx, id string) (*ledger.PeriodicRecord, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+periodColumns+" FROM periods WHERE id = ?", id)

	p, err := scanPeriod(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrPeriodNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func getPeriodBySequence(ctx context.Context, db dbtx, groupID ledger.GroupID, seq int) (*ledger.PeriodicRecord, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+periodColumns+" FROM periods WHERE group_id = ? AND sequence = ?",
		string(groupID), seq)

	p, err := scanPeriod(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrPeriodNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func latestPeriod(ctx context.Context, db dbtx, groupID ledger.GroupID) (*ledger.PeriodicRecord, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+periodColumns+" FROM periods WHERE group_id = ? ORDER BY sequence DESC LIMIT 1",
		string(groupID))

	p, err := scanPeriod(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrPeriodNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func listPeriods(ctx context.Context, db dbtx, groupID ledger.GroupID) ([]ledger.PeriodicRecord, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+periodColumns+" FROM periods WHERE group_id = ? ORDER BY sequence ASC",
		string(groupID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var periods []ledger.PeriodicRecord
	for rows.Next() {
		p, err := scanPeriod(rows.Scan)
		if err != nil {
			return nil, err
		}
		periods = append(periods, *p)
	}
	return periods, rows.Err()
}

func scanPeriod(scan func(...any) error) (*ledger.PeriodicRecord, error) {
	var (
		p                    ledger.PeriodicRecord
		gid, meeting, due    string
		standing             string
		collection, interest sql.NullString
		fines, newContrib    sql.NullString
		endHand, endBank     sql.NullString
		totalStanding        sql.NullString
		membersPresent       sql.NullInt64
		closedAt             sql.NullString
		createdAt            string
	)

	err := scan(
		&p.ID, &gid, &p.Sequence, &meeting, &due, &standing, &p.Touched,
		&collection, &interest, &fines, &newContrib,
		&endHand, &endBank, &totalStanding, &membersPresent,
		&closedAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	p.GroupID = ledger.GroupID(gid)
	p.MeetingDate, _ = time.Parse(time.RFC3339, meeting)
	p.DueDate, _ = time.Parse(time.RFC3339, due)
	p.StandingAtStart = finance.MustDecimal(standing)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	if closedAt.Valid {
		close := ledger.PeriodClose{
			TotalCollection:    finance.MustDecimal(collection.String),
			InterestEarned:     finance.MustDecimal(interest.String),
			LateFinesCollected: finance.MustDecimal(fines.String),
			NewContributions:   finance.MustDecimal(newContrib.String),
			EndingCashInHand:   finance.MustDecimal(endHand.String),
			EndingCashInBank:   finance.MustDecimal(endBank.String),
			TotalStanding:      finance.MustDecimal(totalStanding.String),
			MembersPresent:     int(membersPresent.Int64),
		}
		close.ClosedAt, _ = time.Parse(time.RFC3339, closedAt.String)
		p.Close = &close
	}
	return &p, nil
}

func markPeriodTouched(ctx context.Context, db dbtx, periodID string) error {
	res, err := db.ExecContext(ctx,
		"UPDATE periods SET touched = TRUE WHERE id = ?", periodID)
	if err != nil {
		return fmt.Errorf("failed to mark period touched: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrPeriodNotFound
	}
	return nil
}

func updatePeriodOpening(ctx context.Context, db dbtx, p ledger.PeriodicRecord) error {
	res, err := db.ExecContext(ctx, `
		UPDATE periods SET meeting_date = ?, due_date = ?, standing_at_start = ?
		WHERE id = ?
	`,
		p.MeetingDate.Format(time.RFC3339), p.DueDate.Format(time.RFC3339),
		p.StandingAtStart.String(), p.ID)
	if err != nil {
		return fmt.Errorf("failed to update period: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrPeriodNotFound
	}
	return nil
}

func sealPeriod(ctx context.Context, db dbtx, periodID string, close ledger.PeriodClose) error {
	// Guarded update: only an OPEN period accepts closing aggregates.
	res, err := db.ExecContext(ctx, `
		UPDATE periods SET
			total_collection = ?,
			interest_earned = ?,
			late_fines_collected = ?,
			new_contributions = ?,
			ending_cash_in_hand = ?,
			ending_cash_in_bank = ?,
			total_standing = ?,
			members_present = ?,
			closed_at = ?
		WHERE id = ? AND closed_at IS NULL
	`,
		close.TotalCollection.String(),
		close.InterestEarned.String(),
		close.LateFinesCollected.String(),
		close.NewContributions.String(),
		close.EndingCashInHand.String(),
		close.EndingCashInBank.String(),
		close.TotalStanding.String(),
		close.MembersPresent,
		close.ClosedAt.Format(time.RFC3339),
		periodID,
	)
	if err != nil {
		return fmt.Errorf("failed to seal period: %w", err)
	}

	n, _ := res.RowsAffected()
	if n > 0 {
		return nil
	}

	// Nothing updated: either the period doesn't exist or it is already
	// closed. Distinguish for the caller.
	p, err := getPeriod(ctx, db, periodID)
	if err != nil {
		return err
	}
	return &ledger.ConflictError{
		PeriodID: p.ID,
		GroupID:  p.GroupID,
		Sequence: p.Sequence,
		Reason:   ledger.ErrPeriodClosed,
	}
}

// overwriteClose force-replaces a sealed period's aggregates. Historical
// regeneration only; the close path goes through sealPeriod's guard.
func overwriteClose(ctx context.Context, db dbtx, periodID string, close ledger.PeriodClose) error {
	res, err := db.ExecContext(ctx, `
		UPDATE periods SET
			total_collection = ?,
			interest_earned = ?,
			late_fines_collected = ?,
			new_contributions = ?,
			ending_cash_in_hand = ?,
			ending_cash_in_bank = ?,
			total_standing = ?,
			members_present = ?,
			closed_at = ?
		WHERE id = ?
	`,
		close.TotalCollection.String(),
		close.InterestEarned.String(),
		close.LateFinesCollected.String(),
		close.NewContributions.String(),
		close.EndingCashInHand.String(),
		close.EndingCashInBank.String(),
		close.TotalStanding.String(),
		close.MembersPresent,
		close.ClosedAt.Format(time.RFC3339),
		periodID,
	)
	if err != nil {
		return fmt.Errorf("failed to overwrite close: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrPeriodNotFound
	}
	return nil
}

// =============================================================================
// MEMBER CONTRIBUTIONS
// =============================================================================

func insertContributions(ctx context.Context, db dbtx, periodID string, rows []ledger.MemberContribution) error {
	query := `
		INSERT INTO contributions
		(id, period_id, member_id,
		 contribution_due, loan_interest_due, late_fine, carry_forward, minimum_due,
		 contribution_paid, loan_interest_paid, late_fine_paid, loan_principal_paid,
		 total_paid, remaining, days_late, due_date, status, paid_at,
		 alloc_hand, alloc_bank, fine_warning)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, mc := range rows {
		allocHand, allocBank := allocStrings(mc.Allocation)
		_, err := db.ExecContext(ctx, query,
			mc.ID, periodID, string(mc.MemberID),
			mc.ContributionDue.String(), mc.LoanInterestDue.String(),
			mc.LateFine.String(), mc.CarryForward.String(), mc.MinimumDue.String(),
			mc.ContributionPaid.String(), mc.LoanInterestPaid.String(),
			mc.LateFinePaid.String(), mc.LoanPrincipalPaid.String(),
			mc.TotalPaid.String(), mc.Remaining.String(),
			mc.DaysLate, mc.DueDate.Format(time.RFC3339),
			string(mc.Status), nullTime(mc.PaidAt),
			allocHand, allocBank, mc.FineWarning,
		)
		if err != nil {
			return fmt.Errorf("failed to insert contribution: %w", err)
		}
	}
	return nil
}

func replaceContributions(ctx context.Context, db dbtx, periodID string, rows []ledger.MemberContribution) error {
	if _, err := db.ExecContext(ctx,
		"DELETE FROM contributions WHERE period_id = ?", periodID); err != nil {
		return fmt.Errorf("failed to clear contributions: %w", err)
	}
	return insertContributions(ctx, db, periodID, rows)
}

const contributionColumns = `id, period_id, member_id,
	contribution_due, loan_interest_due, late_fine, carry_forward, minimum_due,
	contribution_paid, loan_interest_paid, late_fine_paid, loan_principal_paid,
	total_paid, remaining, days_late, due_date, status, paid_at,
	alloc_hand, alloc_bank, fine_warning`

func getContribution(ctx context.Context, db dbtx, id string) (*ledger.MemberContribution, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+contributionColumns+" FROM contributions WHERE id = ?", id)

	mc, err := scanContribution(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrContributionNotFound
	}
	if err != nil {
		return nil, err
	}
	return mc, nil
}

func listContributions(ctx context.Context, db dbtx, periodID string) ([]ledger.MemberContribution, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+contributionColumns+" FROM contributions WHERE period_id = ? ORDER BY member_id ASC",
		periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.MemberContribution
	for rows.Next() {
		mc, err := scanContribution(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *mc)
	}
	return result, rows.Err()
}

func scanContribution(scan func(...any) error) (*ledger.MemberContribution, error) {
	var (
		mc                                 ledger.MemberContribution
		mid                                string
		due, interestDue, fine, carry, min string
		paid, interestPaid, finePaid       string
		principalPaid, total, remaining    string
		dueDate, status                    string
		paidAt                             sql.NullString
		allocHand, allocBank               sql.NullString
	)

	err := scan(
		&mc.ID, &mc.PeriodID, &mid,
		&due, &interestDue, &fine, &carry, &min,
		&paid, &interestPaid, &finePaid, &principalPaid,
		&total, &remaining, &mc.DaysLate, &dueDate, &status, &paidAt,
		&allocHand, &allocBank, &mc.FineWarning,
	)
	if err != nil {
		return nil, err
	}

	mc.MemberID = ledger.MemberID(mid)
	mc.ContributionDue = finance.MustDecimal(due)
	mc.LoanInterestDue = finance.MustDecimal(interestDue)
	mc.LateFine = finance.MustDecimal(fine)
	mc.CarryForward = finance.MustDecimal(carry)
	mc.MinimumDue = finance.MustDecimal(min)
	mc.ContributionPaid = finance.MustDecimal(paid)
	mc.LoanInterestPaid = finance.MustDecimal(interestPaid)
	mc.LateFinePaid = finance.MustDecimal(finePaid)
	mc.LoanPrincipalPaid = finance.MustDecimal(principalPaid)
	mc.TotalPaid = finance.MustDecimal(total)
	mc.Remaining = finance.MustDecimal(remaining)
	mc.DueDate, _ = time.Parse(time.RFC3339, dueDate)
	mc.Status = ledger.ContributionStatus(status)

	if paidAt.Valid {
		t, _ := time.Parse(time.RFC3339, paidAt.String)
		mc.PaidAt = &t
	}
	if allocHand.Valid && allocBank.Valid {
		mc.Allocation = &ledger.CashAllocation{
			ToHand: finance.MustDecimal(allocHand.String),
			ToBank: finance.MustDecimal(allocBank.String),
		}
	}
	return &mc, nil
}

func updateContribution(ctx context.Context, db dbtx, mc ledger.MemberContribution) error {
	allocHand, allocBank := allocStrings(mc.Allocation)
	res, err := db.ExecContext(ctx, `
		UPDATE contributions SET
			contribution_due = ?,
			loan_interest_due = ?,
			late_fine = ?,
			carry_forward = ?,
			minimum_due = ?,
			contribution_paid = ?,
			loan_interest_paid = ?,
			late_fine_paid = ?,
			loan_principal_paid = ?,
			total_paid = ?,
			remaining = ?,
			days_late = ?,
			status = ?,
			paid_at = ?,
			alloc_hand = ?,
			alloc_bank = ?,
			fine_warning = ?
		WHERE id = ?
	`,
		mc.ContributionDue.String(), mc.LoanInterestDue.String(),
		mc.LateFine.String(), mc.CarryForward.String(), mc.MinimumDue.String(),
		mc.ContributionPaid.String(), mc.LoanInterestPaid.String(),
		mc.LateFinePaid.String(), mc.LoanPrincipalPaid.String(),
		mc.TotalPaid.String(), mc.Remaining.String(),
		mc.DaysLate, string(mc.Status), nullTime(mc.PaidAt),
		allocHand, allocBank, mc.FineWarning,
		mc.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update contribution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrContributionNotFound
	}
	return nil
}

// Helper functions

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

func allocStrings(a *ledger.CashAllocation) (sql.NullString, sql.NullString) {
	if a == nil {
		return sql.NullString{}, sql.NullString{}
	}
	return sql.NullString{String: a.ToHand.String(), Valid: true},
		sql.NullString{String: a.ToBank.String(), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
