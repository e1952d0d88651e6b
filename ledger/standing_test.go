package ledger_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/bachat/settlement-engine/ledger"
)

// =============================================================================
// CASH ALLOCATION
// =============================================================================

func TestAllocateCollections_DefaultSplit(t *testing.T) {
	// GIVEN: Two rows totalling 1000 paid, no explicit allocations
	// WHEN: Allocating with the default 30/70 split
	// THEN: 300 to hand, 700 to bank

	rows := []ledger.MemberContribution{
		{TotalPaid: dec("600")},
		{TotalPaid: dec("400")},
	}

	pos := ledger.AllocateCollections(rows, decimal.Zero)

	assert.True(t, pos.Hand.Equal(dec("300")), "got %s", pos.Hand)
	assert.True(t, pos.Bank.Equal(dec("700")), "got %s", pos.Bank)
	assert.True(t, pos.Total().Equal(dec("1000")))
}

func TestAllocateCollections_ExplicitAllocationWins(t *testing.T) {
	// GIVEN: One row with an explicit all-to-bank allocation, one without
	// WHEN: Allocating with the default split
	// THEN: The explicit row goes entirely to bank; the other splits 30/70

	rows := []ledger.MemberContribution{
		{
			TotalPaid:  dec("500"),
			Allocation: &ledger.CashAllocation{ToHand: decimal.Zero, ToBank: dec("500")},
		},
		{TotalPaid: dec("100")},
	}

	pos := ledger.AllocateCollections(rows, decimal.Zero)

	assert.True(t, pos.Hand.Equal(dec("30")), "got %s", pos.Hand)
	assert.True(t, pos.Bank.Equal(dec("570")), "got %s", pos.Bank)
}

func TestAllocateCollections_RepaidPrincipalJoinsCash(t *testing.T) {
	// GIVEN: A row whose only payment is 1000 of loan principal
	// WHEN: Allocating with the default split
	// THEN: The repaid principal enters cash 300/700 even though TotalPaid
	//       is zero - dropping it would shrink standing by the repayment

	rows := []ledger.MemberContribution{
		{TotalPaid: decimal.Zero, LoanPrincipalPaid: dec("1000")},
	}

	pos := ledger.AllocateCollections(rows, decimal.Zero)

	assert.True(t, pos.Hand.Equal(dec("300")), "got %s", pos.Hand)
	assert.True(t, pos.Bank.Equal(dec("700")), "got %s", pos.Bank)
	assert.True(t, pos.Total().Equal(dec("1000")))
}

func TestAllocateCollections_PrincipalSplitsBesideExplicitAllocation(t *testing.T) {
	// GIVEN: A row with an all-to-bank allocation for its 500 paid plus a
	//        200 principal repayment outside the allocation
	// WHEN: Allocating with the default split
	// THEN: The allocation covers TotalPaid only; the principal still
	//       splits 30/70 by the group fraction

	rows := []ledger.MemberContribution{
		{
			TotalPaid:         dec("500"),
			LoanPrincipalPaid: dec("200"),
			Allocation:        &ledger.CashAllocation{ToHand: decimal.Zero, ToBank: dec("500")},
		},
	}

	pos := ledger.AllocateCollections(rows, decimal.Zero)

	assert.True(t, pos.Hand.Equal(dec("60")), "got %s", pos.Hand)
	assert.True(t, pos.Bank.Equal(dec("640")), "got %s", pos.Bank)
}

func TestSplitCash_DefaultAndCustomFractions(t *testing.T) {
	// GIVEN: A 1000 cash amount
	// WHEN: Splitting with the default and an explicit fraction
	// THEN: 300/700 by default, 500/500 at a half split

	def := ledger.SplitCash(dec("1000"), decimal.Zero)
	assert.True(t, def.Hand.Equal(dec("300")))
	assert.True(t, def.Bank.Equal(dec("700")))

	half := ledger.SplitCash(dec("1000"), dec("0.5"))
	assert.True(t, half.Hand.Equal(dec("500")))
	assert.True(t, half.Bank.Equal(dec("500")))
}

func TestAllocateCollections_CustomGroupSplit(t *testing.T) {
	// GIVEN: A group keeping half its collections in hand
	// WHEN: Allocating 1000
	// THEN: 500/500

	rows := []ledger.MemberContribution{{TotalPaid: dec("1000")}}

	pos := ledger.AllocateCollections(rows, dec("0.5"))

	assert.True(t, pos.Hand.Equal(dec("500")))
	assert.True(t, pos.Bank.Equal(dec("500")))
}

// =============================================================================
// AGGREGATES
// =============================================================================

func TestCollectionAggregates(t *testing.T) {
	// GIVEN: Rows with payments across all buckets
	// WHEN: Summing collections
	// THEN: Each aggregate sums its own bucket

	rows := []ledger.MemberContribution{
		{TotalPaid: dec("625"), LoanInterestPaid: dec("100"), LateFinePaid: dec("25")},
		{TotalPaid: dec("500"), LoanInterestPaid: decimal.Zero, LateFinePaid: decimal.Zero},
	}

	assert.True(t, ledger.TotalCollection(rows).Equal(dec("1125")))
	assert.True(t, ledger.InterestCollected(rows).Equal(dec("100")))
	assert.True(t, ledger.FinesCollected(rows).Equal(dec("25")))
}

// =============================================================================
// LOAN ASSETS AND STANDING
// =============================================================================

func TestLoanAssets_UnifiedPerMember(t *testing.T) {
	// GIVEN: mem-1 with two active loans (3000 + 2000), mem-2 with only a
	//        1000 legacy balance, mem-3 with a loan that shadows its legacy
	// WHEN: Summing loan assets
	// THEN: Active loans win over legacy per member: 5000 + 1000 + 4000

	memberships := []ledger.Membership{
		{ID: "ms-1", MemberID: "mem-1"},
		{ID: "ms-2", MemberID: "mem-2", LegacyLoanAmount: dec("1000")},
		{ID: "ms-3", MemberID: "mem-3", LegacyLoanAmount: dec("9999")},
	}
	loans := map[ledger.MemberID][]ledger.Loan{
		"mem-1": {
			{Status: ledger.LoanActive, CurrentBalance: dec("3000")},
			{Status: ledger.LoanActive, CurrentBalance: dec("2000")},
		},
		"mem-3": {
			{Status: ledger.LoanActive, CurrentBalance: dec("4000")},
		},
	}

	assets := ledger.LoanAssets(memberships, loans)

	assert.True(t, assets.Equal(dec("10000")), "got %s", assets)
}

func TestUnifiedLoanBalance_LegacyOnlyWithoutActiveLoans(t *testing.T) {
	// GIVEN: A member whose loans are all closed
	// WHEN: Resolving the unified balance against a legacy amount
	// THEN: The legacy amount applies

	loans := []ledger.Loan{{Status: ledger.LoanClosed, CurrentBalance: dec("500")}}

	assert.True(t, ledger.UnifiedLoanBalance(loans, dec("1200")).Equal(dec("1200")))
	assert.True(t, ledger.UnifiedLoanBalance(nil, dec("1200")).Equal(dec("1200")))
}

func TestComputeStanding_SingleFormula(t *testing.T) {
	// GIVEN: 2000 in hand, 8000 in bank, 10000 outstanding principal
	// WHEN: Computing standing
	// THEN: 20000 - hand + bank + loan assets, nothing else

	cash := ledger.CashPosition{Hand: dec("2000"), Bank: dec("8000")}

	standing := ledger.ComputeStanding(cash, dec("10000"))

	assert.True(t, standing.Equal(dec("20000")), "got %s", standing)
}
