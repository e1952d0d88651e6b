package latefine_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/bachat/settlement-engine/latefine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func tier(start, end int, amount string) latefine.Tier {
	return latefine.Tier{StartDay: start, EndDay: end, Amount: dec(amount)}
}

func standardTiers() []latefine.Tier {
	return []latefine.Tier{
		tier(1, 7, "5"),
		tier(8, 15, "10"),
		tier(16, 9999, "15"),
	}
}

// =============================================================================
// DAILY RULES
// =============================================================================

func TestAssess_DailyFixed(t *testing.T) {
	// GIVEN: A flat 5-per-day rule
	// WHEN: A payment lands 4 days late
	// THEN: The fine is 20

	rule := &latefine.Rule{Enabled: true, Type: latefine.DailyFixed, DailyAmount: dec("5")}

	a := latefine.Assess(rule, 4, dec("500"))

	assert.True(t, a.Amount.Equal(dec("20")), "expected 20, got %s", a.Amount)
	assert.Equal(t, 4, a.DaysAssessed)
	assert.False(t, a.Misconfigured)
}

func TestAssess_DailyPercentage(t *testing.T) {
	// GIVEN: A 2%-of-contribution-per-day rule, expected contribution 500
	// WHEN: A payment lands 3 days late
	// THEN: The fine is 500 * 2% * 3 = 30

	rule := &latefine.Rule{Enabled: true, Type: latefine.DailyPercentage, DailyPercentage: dec("2")}

	a := latefine.Assess(rule, 3, dec("500"))

	assert.True(t, a.Amount.Equal(dec("30")), "expected 30, got %s", a.Amount)
}

func TestAssess_GracePeriodSubtracts(t *testing.T) {
	// GIVEN: A 5-per-day rule with 3 grace days
	// WHEN: A payment lands 5 days late
	// THEN: Only 2 days are fined (10); within grace yields zero

	rule := &latefine.Rule{
		Enabled:         true,
		Type:            latefine.DailyFixed,
		DailyAmount:     dec("5"),
		GracePeriodDays: 3,
	}

	a := latefine.Assess(rule, 5, dec("500"))
	assert.True(t, a.Amount.Equal(dec("10")), "expected 10, got %s", a.Amount)
	assert.Equal(t, 2, a.DaysAssessed)

	within := latefine.Assess(rule, 3, dec("500"))
	assert.True(t, within.Amount.IsZero())
}

func TestAssess_NilDisabledOrOnTime(t *testing.T) {
	// GIVEN: No rule, a disabled rule, or a timely payment
	// WHEN: Assessing
	// THEN: A clean zero with no warning

	disabled := &latefine.Rule{Enabled: false, Type: latefine.DailyFixed, DailyAmount: dec("5")}
	enabled := &latefine.Rule{Enabled: true, Type: latefine.DailyFixed, DailyAmount: dec("5")}

	assert.True(t, latefine.Assess(nil, 10, dec("500")).Amount.IsZero())
	assert.True(t, latefine.Assess(disabled, 10, dec("500")).Amount.IsZero())
	assert.True(t, latefine.Assess(enabled, 0, dec("500")).Amount.IsZero())
	assert.False(t, latefine.Assess(nil, 10, dec("500")).Misconfigured)
}

// =============================================================================
// TIER-BASED RULES
// =============================================================================

func TestAssess_Tiers_SingleCoveringTierApplies(t *testing.T) {
	// GIVEN: Tiers 1-7 at 5/day, 8-15 at 10/day, 16+ at 15/day
	// WHEN: A payment lands 10 days late
	// THEN: The 8-15 tier alone applies to every late day: 10x10 = 100,
	//       never a per-tier accumulation

	rule := &latefine.Rule{Enabled: true, Type: latefine.TierBased, Tiers: standardTiers()}

	a := latefine.Assess(rule, 10, dec("500"))

	assert.True(t, a.Amount.Equal(dec("100")), "expected 100, got %s", a.Amount)
	assert.False(t, a.Misconfigured)
}

func TestAssess_Tiers_WithinFirstTier(t *testing.T) {
	// GIVEN: The standard tiers
	// WHEN: A payment lands 5 days late
	// THEN: 5x5 = 25, all inside the first tier

	rule := &latefine.Rule{Enabled: true, Type: latefine.TierBased, Tiers: standardTiers()}

	a := latefine.Assess(rule, 5, dec("500"))

	assert.True(t, a.Amount.Equal(dec("25")), "expected 25, got %s", a.Amount)
}

func TestAssess_Tiers_PercentageTier(t *testing.T) {
	// GIVEN: A single tier charging 1% of the expected contribution per day
	// WHEN: A 1000 contribution lands 4 days late
	// THEN: 4 x (1000 x 1%) = 40

	rule := &latefine.Rule{
		Enabled: true,
		Type:    latefine.TierBased,
		Tiers: []latefine.Tier{
			{StartDay: 1, EndDay: 9999, Amount: dec("1"), IsPercentage: true},
		},
	}

	a := latefine.Assess(rule, 4, dec("1000"))

	assert.True(t, a.Amount.Equal(dec("40")), "expected 40, got %s", a.Amount)
}

func TestAssess_Tiers_EmptyConfigurationWarns(t *testing.T) {
	// GIVEN: A tier-based rule with zero tiers
	// WHEN: Assessing a late payment
	// THEN: A zero fine carrying a Misconfigured warning - distinguishable
	//       from a timely payment

	rule := &latefine.Rule{Enabled: true, Type: latefine.TierBased}

	a := latefine.Assess(rule, 10, dec("500"))

	assert.True(t, a.Amount.IsZero())
	assert.True(t, a.Misconfigured)
	assert.NotEmpty(t, a.Warning)
}

func TestAssess_Tiers_CoverageGapWarns(t *testing.T) {
	// GIVEN: Tiers covering days 1-3 and 8+, with a gap at 4-7
	// WHEN: A payment lands 5 days late, inside the gap
	// THEN: No tier applies; zero fine with the gap reported

	rule := &latefine.Rule{
		Enabled: true,
		Type:    latefine.TierBased,
		Tiers: []latefine.Tier{
			tier(1, 3, "5"),
			tier(8, 9999, "10"),
		},
	}

	a := latefine.Assess(rule, 5, dec("500"))

	assert.True(t, a.Amount.IsZero())
	assert.True(t, a.Misconfigured)
	assert.Contains(t, a.Warning, "gap")
}

func TestAssess_UnknownRuleTypeWarns(t *testing.T) {
	// GIVEN: A rule with an unrecognized type
	// WHEN: Assessing
	// THEN: Zero fine, flagged misconfigured

	rule := &latefine.Rule{Enabled: true, Type: "EXPONENTIAL"}

	a := latefine.Assess(rule, 3, dec("500"))

	assert.True(t, a.Amount.IsZero())
	assert.True(t, a.Misconfigured)
}

// =============================================================================
// RULE VALIDATION
// =============================================================================

func TestValidateRule_TierCoverage(t *testing.T) {
	// GIVEN: Various tier configurations
	// WHEN: Validating
	// THEN: Coverage must start at day 1 with no gaps

	valid := latefine.Rule{Enabled: true, Type: latefine.TierBased, Tiers: standardTiers()}
	assert.NoError(t, latefine.ValidateRule(valid))

	noTiers := latefine.Rule{Enabled: true, Type: latefine.TierBased}
	assert.Error(t, latefine.ValidateRule(noTiers))

	startsLate := latefine.Rule{
		Enabled: true, Type: latefine.TierBased,
		Tiers: []latefine.Tier{tier(3, 10, "5")},
	}
	assert.Error(t, latefine.ValidateRule(startsLate))

	gapped := latefine.Rule{
		Enabled: true, Type: latefine.TierBased,
		Tiers: []latefine.Tier{tier(1, 3, "5"), tier(8, 15, "10")},
	}
	assert.Error(t, latefine.ValidateRule(gapped))
}

func TestValidateRule_DailyRulesNeedPositiveAmounts(t *testing.T) {
	// GIVEN: Daily rules missing their amount
	// WHEN: Validating
	// THEN: Rejected; a disabled rule passes regardless

	fixed := latefine.Rule{Enabled: true, Type: latefine.DailyFixed}
	assert.Error(t, latefine.ValidateRule(fixed))

	pct := latefine.Rule{Enabled: true, Type: latefine.DailyPercentage}
	assert.Error(t, latefine.ValidateRule(pct))

	disabled := latefine.Rule{Enabled: false, Type: latefine.DailyFixed}
	assert.NoError(t, latefine.ValidateRule(disabled))
}
