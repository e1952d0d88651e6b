/*
schedule.go - Collection schedules, due dates, and lateness

PURPOSE:
  Derives a period's payment due date from a group's collection schedule and
  measures how late a payment is. All date math is date-only (UTC midnight)
  so a member in a different timezone is never fined for a clock offset.

FREQUENCIES:
  WEEKLY       due on the configured weekday within the period's week
  FORTNIGHTLY  due on the configured weekday offset from the period start,
               pushed out a week per week-of-month step
  MONTHLY      due on the configured day-of-month, clamped to month end,
               rolled to the next month if it would precede the period start
  YEARLY       due on the configured day-of-month in January of the period's
               year

  An unrecognized frequency falls back to the period start date itself,
  which disables lateness tracking for that group. Known limitation carried
  from the system this replaces.

SEE ALSO:
  - interest.go: PeriodsPerYear uses the same frequency set
  - latefine package: consumes DaysLate
*/
package finance

import "time"

// =============================================================================
// COLLECTION SCHEDULE
// =============================================================================

// Frequency is how often a group collects contributions.
type Frequency string

const (
	Weekly      Frequency = "WEEKLY"
	Fortnightly Frequency = "FORTNIGHTLY"
	Monthly     Frequency = "MONTHLY"
	Yearly      Frequency = "YEARLY"
)

// Schedule is a group's collection schedule configuration.
type Schedule struct {
	Frequency   Frequency
	DayOfMonth  int          // MONTHLY / YEARLY (1-31)
	DayOfWeek   time.Weekday // WEEKLY / FORTNIGHTLY
	WeekOfMonth int          // FORTNIGHTLY (1-4)
}

// DateOnly truncates a timestamp to UTC midnight. All due-date and lateness
// comparisons happen at this granularity.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// DUE-DATE CALCULATOR
// =============================================================================

// DueDate returns the payment due date for the period starting at
// periodStart under the given schedule.
func DueDate(s Schedule, periodStart time.Time) time.Time {
	start := DateOnly(periodStart)

	switch s.Frequency {
	case Weekly:
		// The configured weekday within the week beginning at period start.
		offset := (int(s.DayOfWeek) - int(start.Weekday()) + 7) % 7
		return start.AddDate(0, 0, offset)

	case Fortnightly:
		return fortnightlyDueDate(s, start)

	case Monthly:
		due := monthlyDueDate(start.Year(), start.Month(), s.DayOfMonth)
		if due.Before(start) {
			// The collection day already passed when the period opened.
			// Dues are payable on the next month's collection day instead.
			next := start.AddDate(0, 1, 0)
			due = monthlyDueDate(next.Year(), next.Month(), s.DayOfMonth)
		}
		return due

	case Yearly:
		day := s.DayOfMonth
		if day < 1 {
			day = 1
		}
		return monthlyDueDate(start.Year(), time.January, day)

	default:
		return start
	}
}

// monthlyDueDate places day within (year, month), clamping to the last day
// of the month when the month is shorter (Feb 31 -> Feb 28/29).
func monthlyDueDate(year int, month time.Month, day int) time.Time {
	if day < 1 {
		day = 1
	}
	due := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if due.Month() != month {
		// Day overflowed into the next month; clamp to month end.
		due = time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	}
	return due
}

// fortnightlyDueDate offsets directly from the period start: the first
// occurrence of the configured weekday on or after the start, pushed out
// seven days per week-of-month step (week 1 = first occurrence, week 2 =
// +7 days, week 3 = +14, week 4 = +21).
func fortnightlyDueDate(s Schedule, start time.Time) time.Time {
	offset := (int(s.DayOfWeek) - int(start.Weekday()) + 7) % 7
	week := s.WeekOfMonth
	if week < 1 {
		week = 1
	}
	return start.AddDate(0, 0, offset+7*(week-1))
}

// =============================================================================
// LATENESS
// =============================================================================

// DaysLate returns how many whole days after dueDate the payment landed,
// floored at zero. Both dates are compared at UTC-midnight granularity.
func DaysLate(dueDate, paidAt time.Time) int {
	days := int(DateOnly(paidAt).Sub(DateOnly(dueDate)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// NextPeriodStart advances a period's meeting date by one collection cycle.
func NextPeriodStart(f Frequency, meetingDate time.Time) time.Time {
	d := DateOnly(meetingDate)
	switch f {
	case Weekly:
		return d.AddDate(0, 0, 7)
	case Fortnightly:
		return d.AddDate(0, 0, 14)
	case Yearly:
		return d.AddDate(1, 0, 0)
	default:
		return d.AddDate(0, 1, 0)
	}
}
