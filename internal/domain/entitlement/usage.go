package entitlement

import "time"

// Period is a half-open calendar-month window [Start, End) in UTC.
type Period struct {
	Start time.Time
	End   time.Time
}

// CurrentPeriod returns the calendar month containing now, in UTC.
func CurrentPeriod(now time.Time) Period {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// UsageSnapshot describes an organization's consumption against its cap
// for one billing period.
type UsageSnapshot struct {
	OrganizationID string
	Period         Period
	Consumed       int
	MonthlyCap     int
	Allowed        bool
}

// Remaining returns how many analyses the organization may still run.
func (s UsageSnapshot) Remaining() int {
	if s.Consumed >= s.MonthlyCap {
		return 0
	}
	return s.MonthlyCap - s.Consumed
}
