package engine

// =============================================================================
// RECURRENCE - How a rule repeats
// =============================================================================

type Frequency string

const (
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

// Recurrence defines when a recurring rule fires. Exactly one of DayOfWeek /
// DayOfMonth is meaningful, matching Frequency.
type Recurrence struct {
	Frequency  Frequency
	DayOfWeek  int // 0-6, Sunday = 0 (weekly only)
	DayOfMonth int // 1-31 (monthly only)
}

// Validate checks the frequency parameter is present and in range.
func (r Recurrence) Validate() error {
	switch r.Frequency {
	case Weekly:
		if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
			return &RecurrenceError{Frequency: r.Frequency, Field: "day_of_week", Value: r.DayOfWeek}
		}
	case Monthly:
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
			return &RecurrenceError{Frequency: r.Frequency, Field: "day_of_month", Value: r.DayOfMonth}
		}
	default:
		return &RecurrenceError{Frequency: r.Frequency, Field: "frequency", Value: 0}
	}
	return nil
}

// =============================================================================
// OCCURRENCE CALCULATOR - Pure, total date arithmetic
// =============================================================================

// Next returns the occurrence strictly after the given date. Recurring rules
// always look forward: a weekly rule evaluated on its own weekday lands a
// full week later, never same-day.
//
// Monthly recurrences advance one calendar month and clamp the day to the
// month's length, so day 31 lands on Feb 28 (29 in leap years) and snaps back
// to 31 in months that allow it.
func (r Recurrence) Next(after Date) Date {
	switch r.Frequency {
	case Weekly:
		delta := r.DayOfWeek - int(after.Weekday())
		if delta <= 0 {
			delta += 7
		}
		return after.AddDays(delta)

	case Monthly:
		// Advance from the first of the month so a day-31 date cannot
		// overflow into the month after next.
		next := StartOfMonth(after.Year(), after.Month()).AddMonths(1)
		day := r.DayOfMonth
		if max := DaysInMonth(next.Year(), next.Month()); day > max {
			day = max
		}
		return NewDate(next.Year(), next.Month(), day)

	default:
		// Validate() rejects this before any rule reaches the calculator;
		// stay total regardless.
		return after.AddDays(1)
	}
}

// FirstOccurrence computes the initial schedule for a newly created rule.
// If the configured day still lies ahead within the start week/month it is
// used as-is; otherwise the schedule advances a full cycle. The result is
// never before start.
func (r Recurrence) FirstOccurrence(start Date) Date {
	switch r.Frequency {
	case Weekly:
		delta := r.DayOfWeek - int(start.Weekday())
		if delta < 0 {
			delta += 7
		}
		return start.AddDays(delta)

	case Monthly:
		day := r.DayOfMonth
		if max := DaysInMonth(start.Year(), start.Month()); day > max {
			day = max
		}
		candidate := NewDate(start.Year(), start.Month(), day)
		if candidate.Before(start) {
			// Day already passed this month: advance one month then clamp,
			// never clamp within the current month.
			return r.Next(start)
		}
		return candidate

	default:
		return start
	}
}
