package ledger_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bachat/settlement-engine/finance"
	"github.com/bachat/settlement-engine/latefine"
	"github.com/bachat/settlement-engine/ledger"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

func monthlyGroup() ledger.Group {
	return ledger.Group{
		ID:   "grp-1",
		Name: "Mahila Bachat Gat",
		Schedule: finance.Schedule{
			Frequency:  finance.Monthly,
			DayOfMonth: 15,
		},
		BaseContribution:      dec("500"),
		AnnualInterestPercent: dec("12"),
	}
}

func membership(id string, memberID string) ledger.Membership {
	return ledger.Membership{ID: id, GroupID: "grp-1", MemberID: ledger.MemberID(memberID)}
}

func dailyFineRule(amount string) *latefine.Rule {
	return &latefine.Rule{
		ID:          "rule-1",
		GroupID:     "grp-1",
		Enabled:     true,
		Type:        latefine.DailyFixed,
		DailyAmount: dec(amount),
	}
}

// =============================================================================
// FIRST-PERIOD MATERIALIZATION
// =============================================================================

func TestMaterializeDues_FirstPeriod(t *testing.T) {
	// GIVEN: A fresh group with two members and no prior period
	// WHEN: Dues are materialized
	// THEN: Every member owes exactly the base contribution; no carry-forward,
	//       no fine, no interest without a loan

	in := ledger.DueInput{
		Group: monthlyGroup(),
		Memberships: []ledger.Membership{
			membership("ms-1", "mem-1"),
			membership("ms-2", "mem-2"),
		},
		DueDate: time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC),
		Now:     time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
	}

	rows := ledger.MaterializeDues(in)

	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.True(t, row.ContributionDue.Equal(dec("500")))
		assert.True(t, row.LoanInterestDue.IsZero())
		assert.True(t, row.LateFine.IsZero())
		assert.True(t, row.CarryForward.IsZero())
		assert.True(t, row.MinimumDue.Equal(dec("500")))
		assert.True(t, row.Remaining.Equal(dec("500")))
		assert.Equal(t, ledger.StatusPending, row.Status)
		assert.NotEmpty(t, row.ID)
	}
}

func TestMaterializeDues_BaseContributionIsUniform(t *testing.T) {
	// GIVEN: An open request overriding the period contribution to 750
	// WHEN: Dues are materialized for three members
	// THEN: All three owe the same 750 base - per-member variation enters
	//       only through carry-forward

	in := ledger.DueInput{
		Group: monthlyGroup(),
		Memberships: []ledger.Membership{
			membership("ms-1", "mem-1"),
			membership("ms-2", "mem-2"),
			membership("ms-3", "mem-3"),
		},
		DueDate:          time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC),
		Now:              time.Now().UTC(),
		BaseContribution: dec("750"),
	}

	rows := ledger.MaterializeDues(in)

	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.True(t, row.ContributionDue.Equal(dec("750")))
	}
}

// =============================================================================
// LOAN INTEREST
// =============================================================================

func TestMaterializeDues_InterestOnUnifiedBalance(t *testing.T) {
	// GIVEN: mem-1 has an active 10,000 loan; mem-2 carries a 5,000 legacy
	//        balance and no loan rows
	// WHEN: Dues are materialized in a 12%/year monthly group
	// THEN: mem-1 owes 100 interest, mem-2 owes 50 on the legacy balance

	ms2 := membership("ms-2", "mem-2")
	ms2.LegacyLoanAmount = dec("5000")

	in := ledger.DueInput{
		Group:       monthlyGroup(),
		Memberships: []ledger.Membership{membership("ms-1", "mem-1"), ms2},
		ActiveLoans: map[ledger.MemberID][]ledger.Loan{
			"mem-1": {{
				ID:             "loan-1",
				MemberID:       "mem-1",
				Status:         ledger.LoanActive,
				CurrentBalance: dec("10000"),
			}},
		},
		DueDate: time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC),
		Now:     time.Now().UTC(),
	}

	rows := ledger.MaterializeDues(in)

	require.Len(t, rows, 2)
	assert.True(t, rows[0].LoanInterestDue.Equal(dec("100")), "got %s", rows[0].LoanInterestDue)
	assert.True(t, rows[1].LoanInterestDue.Equal(dec("50")), "got %s", rows[1].LoanInterestDue)
}

// =============================================================================
// CARRY-FORWARD AND RETROACTIVE FINES
// =============================================================================

func TestMaterializeDues_CarryForwardFromPreviousRemaining(t *testing.T) {
	// GIVEN: The previous period left mem-1 with 150 unpaid
	// WHEN: The next period's dues are materialized
	// THEN: The 150 lands as carry-forward and raises the minimum due

	paidAt := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)
	prev := ledger.MemberContribution{
		MemberID:        "mem-1",
		ContributionDue: dec("500"),
		Remaining:       dec("150"),
		PaidAt:          &paidAt,
	}

	in := ledger.DueInput{
		Group:           monthlyGroup(),
		Memberships:     []ledger.Membership{membership("ms-1", "mem-1")},
		Previous:        map[ledger.MemberID]ledger.MemberContribution{"mem-1": prev},
		PreviousDueDate: paidAt,
		DueDate:         time.Date(2025, time.April, 15, 0, 0, 0, 0, time.UTC),
		Now:             time.Now().UTC(),
	}

	rows := ledger.MaterializeDues(in)

	require.Len(t, rows, 1)
	assert.True(t, rows[0].CarryForward.Equal(dec("150")))
	assert.True(t, rows[0].MinimumDue.Equal(dec("650")))
}

func TestMaterializeDues_FineAssessesPreviousPeriodLateness(t *testing.T) {
	// GIVEN: The previous period was due March 15 and mem-1 paid March 20;
	//        the group fines 5/day
	// WHEN: The next period's dues are materialized
	// THEN: A 25 fine (5 days x 5) appears on the NEW period's row

	dueDate := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)
	paidAt := time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC)
	prev := ledger.MemberContribution{
		MemberID:        "mem-1",
		ContributionDue: dec("500"),
		Remaining:       decimal.Zero,
		PaidAt:          &paidAt,
	}

	in := ledger.DueInput{
		Group:           monthlyGroup(),
		Memberships:     []ledger.Membership{membership("ms-1", "mem-1")},
		FineRule:        dailyFineRule("5"),
		Previous:        map[ledger.MemberID]ledger.MemberContribution{"mem-1": prev},
		PreviousDueDate: dueDate,
		DueDate:         time.Date(2025, time.April, 15, 0, 0, 0, 0, time.UTC),
		Now:             time.Now().UTC(),
	}

	rows := ledger.MaterializeDues(in)

	require.Len(t, rows, 1)
	assert.True(t, rows[0].LateFine.Equal(dec("25")), "got %s", rows[0].LateFine)
	assert.Equal(t, 5, rows[0].DaysLate)
}

func TestMaterializeDues_UnpaidPreviousRowMeasuredAgainstNow(t *testing.T) {
	// GIVEN: The previous period was never paid (PaidAt nil), due March 15
	// WHEN: Dues are materialized on March 25
	// THEN: Lateness anchors on Now: 10 days, fined 50

	dueDate := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)
	prev := ledger.MemberContribution{
		MemberID:        "mem-1",
		ContributionDue: dec("500"),
		Remaining:       dec("500"),
	}

	in := ledger.DueInput{
		Group:           monthlyGroup(),
		Memberships:     []ledger.Membership{membership("ms-1", "mem-1")},
		FineRule:        dailyFineRule("5"),
		Previous:        map[ledger.MemberID]ledger.MemberContribution{"mem-1": prev},
		PreviousDueDate: dueDate,
		DueDate:         time.Date(2025, time.April, 15, 0, 0, 0, 0, time.UTC),
		Now:             time.Date(2025, time.March, 25, 0, 0, 0, 0, time.UTC),
	}

	rows := ledger.MaterializeDues(in)

	require.Len(t, rows, 1)
	assert.Equal(t, 10, rows[0].DaysLate)
	assert.True(t, rows[0].LateFine.Equal(dec("50")), "got %s", rows[0].LateFine)
	assert.True(t, rows[0].CarryForward.Equal(dec("500")))
	assert.True(t, rows[0].MinimumDue.Equal(dec("1050")))
}

func TestMaterializeDues_MisconfiguredRuleSurfacesWarning(t *testing.T) {
	// GIVEN: A tier-based rule with no tiers and a late previous payment
	// WHEN: Dues are materialized
	// THEN: Zero fine, but the row carries the configuration warning

	dueDate := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)
	paidAt := dueDate.AddDate(0, 0, 6)
	prev := ledger.MemberContribution{
		MemberID:        "mem-1",
		ContributionDue: dec("500"),
		PaidAt:          &paidAt,
	}

	in := ledger.DueInput{
		Group:       monthlyGroup(),
		Memberships: []ledger.Membership{membership("ms-1", "mem-1")},
		FineRule: &latefine.Rule{
			ID: "rule-1", GroupID: "grp-1", Enabled: true, Type: latefine.TierBased,
		},
		Previous:        map[ledger.MemberID]ledger.MemberContribution{"mem-1": prev},
		PreviousDueDate: dueDate,
		DueDate:         time.Date(2025, time.April, 15, 0, 0, 0, 0, time.UTC),
		Now:             time.Now().UTC(),
	}

	rows := ledger.MaterializeDues(in)

	require.Len(t, rows, 1)
	assert.True(t, rows[0].LateFine.IsZero())
	assert.NotEmpty(t, rows[0].FineWarning)
}
