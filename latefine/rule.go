/*
Package latefine evaluates a group's late-fine rule against a late payment.

PURPOSE:
  A group configures at most one active late-fine rule. When a member pays
  after the period's due date, this package turns (rule, days late, expected
  contribution) into a fine amount. It also validates tier configurations,
  because the most expensive production incident in the system this replaces
  was a tier-based rule with zero tiers silently fining everyone zero.

RULE TYPES:
  DAILY_FIXED       flat amount per day late
  DAILY_PERCENTAGE  percentage of the expected contribution per day late
  TIER_BASED        per-day amount depending on which day-range bucket each
                    elapsed day falls into

KEY CONCEPTS IN THIS FILE (rule.go):
  - Rule / Tier: the configuration shape
  - ValidateRule: structural checks (coverage from day 1, no gaps)

SEE ALSO:
  - engine.go: Assess, the fine calculation itself
*/
package latefine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RuleType selects the fine formula.
type RuleType string

const (
	DailyFixed      RuleType = "DAILY_FIXED"
	DailyPercentage RuleType = "DAILY_PERCENTAGE"
	TierBased       RuleType = "TIER_BASED"
)

// Rule is a group's late-fine configuration. A group holds at most one
// active rule, referenced explicitly by the group record; historical rule
// rows never participate in assessment.
type Rule struct {
	ID              string
	GroupID         string
	Enabled         bool
	Type            RuleType
	DailyAmount     decimal.Decimal // DAILY_FIXED
	DailyPercentage decimal.Decimal // DAILY_PERCENTAGE, percent per day
	GracePeriodDays int             // days of lateness forgiven before fining
	Tiers           []Tier          // TIER_BASED, ordered by StartDay
}

// Tier is one day-range bucket of a tier-based rule. The range is inclusive
// on both ends; an open-ended final tier uses a large EndDay.
type Tier struct {
	ID           string
	StartDay     int
	EndDay       int
	Amount       decimal.Decimal
	IsPercentage bool // Amount is a percent of the expected contribution
}

// covers reports whether the tier's day range contains the given day.
func (t Tier) covers(day int) bool {
	return day >= t.StartDay && day <= t.EndDay
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidateRule checks that an enabled rule is structurally able to produce
// fines. Disabled rules always pass.
func ValidateRule(r Rule) error {
	if !r.Enabled {
		return nil
	}

	switch r.Type {
	case DailyFixed:
		if !r.DailyAmount.IsPositive() {
			return fmt.Errorf("%s rule requires a positive daily amount", DailyFixed)
		}
	case DailyPercentage:
		if !r.DailyPercentage.IsPositive() {
			return fmt.Errorf("%s rule requires a positive daily percentage", DailyPercentage)
		}
	case TierBased:
		return validateTiers(r.Tiers)
	default:
		return fmt.Errorf("unknown rule type %q", r.Type)
	}
	return nil
}

// validateTiers enforces the tier invariant: coverage starts at day 1 and
// has no gaps, every range is ordered, every amount positive.
func validateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("%s rule requires at least one tier", TierBased)
	}

	sorted := sortedByStartDay(tiers)
	if sorted[0].StartDay > 1 {
		return fmt.Errorf("tiers must cover day 1 (first tier starts at day %d)", sorted[0].StartDay)
	}

	for i := 0; i < len(sorted); i++ {
		t := sorted[i]
		if t.StartDay <= 0 {
			return fmt.Errorf("tier start day must be positive, got %d", t.StartDay)
		}
		if t.EndDay < t.StartDay {
			return fmt.Errorf("tier range [%d, %d] ends before it starts", t.StartDay, t.EndDay)
		}
		if !t.Amount.IsPositive() {
			return fmt.Errorf("tier [%d, %d] amount must be positive", t.StartDay, t.EndDay)
		}
		if i+1 < len(sorted) && t.EndDay+1 < sorted[i+1].StartDay {
			return fmt.Errorf("gap in tier coverage between day %d and day %d", t.EndDay, sorted[i+1].StartDay)
		}
	}
	return nil
}

func sortedByStartDay(tiers []Tier) []Tier {
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].StartDay < sorted[j-1].StartDay; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return sorted
}
