// Package entity contains the core business objects of the project.
package entity

import (
	"time"
)

// DayLayout is the canonical YYYY-MM-DD form of a Day.
const DayLayout = "2006-01-02"

// Day is a calendar date as seen from one user's location. Two instants fall on the
// same Day only relative to a given location.
type Day string

// DayOf returns the calendar date of t in loc. A nil loc means UTC.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}

	return Day(t.In(loc).Format(DayLayout))
}

// ParseDay validates s and returns it as a Day.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return "", err //nolint:wrapcheck // parse errors are descriptive enough
	}

	return Day(t.Format(DayLayout)), nil
}

// IsZero reports whether the day was never set.
func (d Day) IsZero() bool {
	return d == ""
}

// String implements fmt.Stringer.
func (d Day) String() string {
	return string(d)
}

// AddDays shifts the date by n calendar days. An unparsable Day is returned unchanged.
func (d Day) AddDays(n int) Day {
	t, err := time.Parse(DayLayout, string(d))
	if err != nil {
		return d
	}

	return Day(t.AddDate(0, 0, n).Format(DayLayout))
}

// Yesterday returns the previous calendar date.
func (d Day) Yesterday() Day {
	return d.AddDays(-1)
}

// Before reports whether d is strictly earlier than other. The fixed-width layout makes
// lexical order equal to chronological order.
func (d Day) Before(other Day) bool {
	return d < other
}

// Start returns midnight of d in loc.
func (d Day) Start(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	t, err := time.ParseInLocation(DayLayout, string(d), loc)
	if err != nil {
		return time.Time{}, err //nolint:wrapcheck // parse errors are descriptive enough
	}

	return t, nil
}

// NextMidnight returns the first instant of the day after the one containing now, in loc.
func NextMidnight(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}

	local := now.In(loc)

	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
}
