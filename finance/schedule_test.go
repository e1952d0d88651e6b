package finance_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bachat/settlement-engine/finance"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// DUE DATE TESTS
// =============================================================================

func TestDueDate_Monthly_OnConfiguredDay(t *testing.T) {
	// GIVEN: A monthly schedule collecting on the 15th
	// WHEN: The period starts on March 1
	// THEN: The due date is March 15

	s := finance.Schedule{Frequency: finance.Monthly, DayOfMonth: 15}
	due := finance.DueDate(s, date(2025, time.March, 1))

	assert.Equal(t, date(2025, time.March, 15), due)
}

func TestDueDate_Monthly_ClampsToMonthEnd(t *testing.T) {
	// GIVEN: A monthly schedule collecting on the 31st
	// WHEN: The period starts in February of a leap year
	// THEN: The due date clamps to February 29, never overflows into March

	s := finance.Schedule{Frequency: finance.Monthly, DayOfMonth: 31}
	due := finance.DueDate(s, date(2024, time.February, 1))

	assert.Equal(t, date(2024, time.February, 29), due)
}

func TestDueDate_Monthly_RollsForwardWhenDayPassed(t *testing.T) {
	// GIVEN: A monthly schedule collecting on the 5th
	// WHEN: The period opens on March 20, after the collection day
	// THEN: Dues fall on the next month's 5th, not a date in the past

	s := finance.Schedule{Frequency: finance.Monthly, DayOfMonth: 5}
	due := finance.DueDate(s, date(2025, time.March, 20))

	assert.Equal(t, date(2025, time.April, 5), due)
}

func TestDueDate_Weekly_WithinPeriodWeek(t *testing.T) {
	// GIVEN: A weekly schedule collecting on Friday
	// WHEN: The period starts on Monday March 3, 2025
	// THEN: The due date is Friday March 7 of the same week

	s := finance.Schedule{Frequency: finance.Weekly, DayOfWeek: time.Friday}
	due := finance.DueDate(s, date(2025, time.March, 3))

	assert.Equal(t, date(2025, time.March, 7), due)
}

func TestDueDate_Weekly_SameDayIsDue(t *testing.T) {
	// GIVEN: A weekly schedule collecting on Monday
	// WHEN: The period starts on a Monday
	// THEN: The due date is the period start itself

	s := finance.Schedule{Frequency: finance.Weekly, DayOfWeek: time.Monday}
	due := finance.DueDate(s, date(2025, time.March, 3))

	assert.Equal(t, date(2025, time.March, 3), due)
}

func TestDueDate_Fortnightly_SecondWeek(t *testing.T) {
	// GIVEN: A fortnightly schedule on the Monday of week 2
	// WHEN: The period starts Saturday March 1, 2025 (first Monday is March 3)
	// THEN: The due date is one week past the first Monday, March 10

	s := finance.Schedule{
		Frequency:   finance.Fortnightly,
		DayOfWeek:   time.Monday,
		WeekOfMonth: 2,
	}
	due := finance.DueDate(s, date(2025, time.March, 1))

	assert.Equal(t, date(2025, time.March, 10), due)
}

func TestDueDate_Fortnightly_EachWeekIsDistinct(t *testing.T) {
	// GIVEN: Fortnightly schedules on the Monday of weeks 1 through 4
	// WHEN: Each computes a due date from the same period start
	// THEN: The dates step by exactly seven days; no two weeks collide

	start := date(2025, time.March, 1)
	want := []time.Time{
		date(2025, time.March, 3),
		date(2025, time.March, 10),
		date(2025, time.March, 17),
		date(2025, time.March, 24),
	}
	for week := 1; week <= 4; week++ {
		s := finance.Schedule{
			Frequency:   finance.Fortnightly,
			DayOfWeek:   time.Monday,
			WeekOfMonth: week,
		}
		assert.Equal(t, want[week-1], finance.DueDate(s, start), "week %d", week)
	}
}

func TestDueDate_UnknownFrequency_FallsBackToPeriodStart(t *testing.T) {
	// GIVEN: A schedule with an unrecognized frequency
	// WHEN: Computing the due date
	// THEN: The period start comes back, disabling lateness for the group

	s := finance.Schedule{Frequency: "QUARTERLY"}
	due := finance.DueDate(s, date(2025, time.March, 14))

	assert.Equal(t, date(2025, time.March, 14), due)
}

// =============================================================================
// LATENESS TESTS
// =============================================================================

func TestDaysLate_WholeDays(t *testing.T) {
	// GIVEN: A payment due March 10
	// WHEN: It lands on March 17
	// THEN: Seven days late

	assert.Equal(t, 7, finance.DaysLate(date(2025, time.March, 10), date(2025, time.March, 17)))
}

func TestDaysLate_EarlyPaymentIsZero(t *testing.T) {
	// GIVEN: A payment due March 10
	// WHEN: It lands on March 5
	// THEN: Zero days late, never negative

	assert.Equal(t, 0, finance.DaysLate(date(2025, time.March, 10), date(2025, time.March, 5)))
}

func TestDaysLate_IgnoresTimeOfDay(t *testing.T) {
	// GIVEN: A payment due at March 10 midnight
	// WHEN: It lands at 23:59 on the due date in a non-UTC wall clock sense
	// THEN: Still zero days late; lateness is date-only

	due := date(2025, time.March, 10)
	paid := time.Date(2025, time.March, 10, 23, 59, 0, 0, time.UTC)

	assert.Equal(t, 0, finance.DaysLate(due, paid))
}

// =============================================================================
// PERIOD ADVANCE TESTS
// =============================================================================

func TestNextPeriodStart_ByFrequency(t *testing.T) {
	start := date(2025, time.January, 31)

	assert.Equal(t, date(2025, time.February, 7), finance.NextPeriodStart(finance.Weekly, start))
	assert.Equal(t, date(2025, time.February, 14), finance.NextPeriodStart(finance.Fortnightly, start))
	assert.Equal(t, date(2026, time.January, 31), finance.NextPeriodStart(finance.Yearly, start))
	// Jan 31 + 1 month normalizes per time.AddDate.
	assert.Equal(t, date(2025, time.March, 3), finance.NextPeriodStart(finance.Monthly, start))
}
