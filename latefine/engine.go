/*
engine.go - Late-fine assessment

PURPOSE:
  Turns (rule, days late, expected contribution) into a fine. The engine
  never panics and never fails: a broken configuration yields a zero fine
  carrying a Misconfigured warning, so callers can tell "no fine owed" apart
  from "the rule could not be evaluated". The warning exists because a
  silently-zero fine from an empty tier rule was historically mistaken for
  correct behavior.

TIER SEMANTICS:
  The single tier whose day range contains the lateness applies, once, and
  its amount multiplies by the full days late. Tiers 1-7 at 5, 8-15 at 10:
  ten days late costs 10 x 10 = 100. A percentage tier charges
  (expected x amount%) x days late.

GRACE PERIOD:
  The rule's grace days subtract from days-late before anything else,
  floored at zero.
*/
package latefine

import (
	"fmt"

	"github.com/bachat/settlement-engine/finance"
	"github.com/shopspring/decimal"
)

// Assessment is the result of evaluating a rule. Amount is always valid;
// Misconfigured marks a zero produced by a broken rule rather than by a
// timely payment or a disabled rule.
type Assessment struct {
	Amount        decimal.Decimal
	DaysAssessed  int // days-late after the grace period
	Misconfigured bool
	Warning       string
}

// Assess evaluates the group's late-fine rule. A nil rule, a disabled rule,
// or zero days late all yield a clean zero.
func Assess(rule *Rule, daysLate int, expectedContribution decimal.Decimal) Assessment {
	if rule == nil || !rule.Enabled || daysLate <= 0 {
		return Assessment{Amount: decimal.Zero}
	}

	days := daysLate - rule.GracePeriodDays
	if days <= 0 {
		return Assessment{Amount: decimal.Zero}
	}

	switch rule.Type {
	case DailyFixed:
		return Assessment{
			Amount:       finance.Round2(rule.DailyAmount.Mul(decimal.NewFromInt(int64(days)))),
			DaysAssessed: days,
		}

	case DailyPercentage:
		rate := rule.DailyPercentage.Div(decimal.NewFromInt(100))
		fine := expectedContribution.Mul(rate).Mul(decimal.NewFromInt(int64(days)))
		return Assessment{Amount: finance.Round2(fine), DaysAssessed: days}

	case TierBased:
		return assessTiers(rule.Tiers, days, expectedContribution)

	default:
		return Assessment{
			Amount:        decimal.Zero,
			DaysAssessed:  days,
			Misconfigured: true,
			Warning:       fmt.Sprintf("unknown late-fine rule type %q", rule.Type),
		}
	}
}

// assessTiers charges the one tier whose day range contains the lateness,
// multiplied by the full days late. Missing coverage (no tiers at all, or
// the lateness lands in a gap) yields a warning instead of an error so
// payment recording never blocks on a bad configuration.
func assessTiers(tiers []Tier, days int, expected decimal.Decimal) Assessment {
	if len(tiers) == 0 {
		return Assessment{
			Amount:        decimal.Zero,
			DaysAssessed:  days,
			Misconfigured: true,
			Warning:       "tier-based rule has no tiers configured",
		}
	}

	tier, ok := tierFor(tiers, days)
	if !ok {
		return Assessment{
			Amount:        decimal.Zero,
			DaysAssessed:  days,
			Misconfigured: true,
			Warning:       fmt.Sprintf("tier coverage gap: no tier covers %d day(s) late", days),
		}
	}

	perDay := tier.Amount
	if tier.IsPercentage {
		perDay = expected.Mul(tier.Amount).Div(decimal.NewFromInt(100))
	}
	return Assessment{
		Amount:       finance.Round2(perDay.Mul(decimal.NewFromInt(int64(days)))),
		DaysAssessed: days,
	}
}

func tierFor(tiers []Tier, day int) (Tier, bool) {
	for _, t := range tiers {
		if t.covers(day) {
			return t, true
		}
	}
	return Tier{}, false
}
