package model

import (
	"strings"
	"time"
)

// DateLayout is the canonical civil-date format used for map keys and
// storage columns.
const DateLayout = "2006-01-02"

// MaxRangeDays caps day-by-day range expansion.
const MaxRangeDays = 365

// Civil returns the civil date y-m-d as a time.Time at 00:00 UTC.
// All dates in the engine use this representation; there is no
// time-zone handling.
func Civil(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Truncate drops the clock part of t and re-anchors it in UTC, keeping the
// calendar date as seen in t's own location.
func Truncate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return Civil(t.Year(), t.Month(), t.Day())
}

// Key formats a civil date as YYYY-MM-DD. The zero time yields "".
func Key(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// ParseDate parses YYYY-MM-DD. A timestamp suffix (e.g. "2025-03-02T00:00:00Z"
// or "2025-03-02 00:00:00") is tolerated and dropped.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// MustDate parses YYYY-MM-DD and panics on error. Intended for tests and
// static tables.
func MustDate(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// IsWeekend reports whether t falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// LastDayOfFebruary returns Feb 28 or Feb 29 of year.
func LastDayOfFebruary(year int) time.Time {
	return Civil(year, time.March, 1).AddDate(0, 0, -1)
}

// AcademicYearOf returns the academic year a civil date belongs to.
// Academic year Y runs from March 1 of Y to the end of February of Y+1.
func AcademicYearOf(t time.Time) int {
	if t.Month() < time.March {
		return t.Year() - 1
	}
	return t.Year()
}

// YearForMonth applies the academic-year boundary to a fixed month/day
// rule: months before March belong to year+1.
func YearForMonth(year int, m time.Month) int {
	if m < time.March {
		return year + 1
	}
	return year
}

// AcademicRange returns the first and last civil day of academic year Y.
func AcademicRange(year int) (time.Time, time.Time) {
	return Civil(year, time.March, 1), LastDayOfFebruary(year + 1)
}

// EachDay calls fn for every day in [start, end], inclusive, stopping after
// MaxRangeDays days. An end before start yields only start.
func EachDay(start, end time.Time, fn func(day time.Time)) {
	start = Truncate(start)
	end = Truncate(end)
	if end.Before(start) {
		end = start
	}
	d := start
	for i := 0; i < MaxRangeDays && !d.After(end); i++ {
		fn(d)
		d = d.AddDate(0, 0, 1)
	}
}
