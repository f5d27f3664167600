// Package timeutil provides calendar-date helpers for the configured campus timezone.
//
// A calendar date is represented as a time.Time at midnight UTC carrying the
// year, month and day of the local date. That is also what pgx returns when it
// scans a DATE column, so dates read from Postgres and dates computed here
// compare with ==.
package timeutil

import "time"

// DateLayout is the wire format of a calendar date.
const DateLayout = "2006-01-02"

// DefaultLocation is used when the configured timezone cannot be loaded.
var DefaultLocation = time.FixedZone("Asia/Seoul", 9*60*60)

// Clock reports the current time and today's date in one location.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock creates a Clock backed by time.Now.
func NewClock(loc *time.Location) *Clock {
	if loc == nil {
		loc = DefaultLocation
	}
	return &Clock{loc: loc, now: time.Now}
}

// FixedClock creates a Clock that always returns t. Used in tests.
func FixedClock(t time.Time, loc *time.Location) *Clock {
	if loc == nil {
		loc = DefaultLocation
	}
	return &Clock{loc: loc, now: func() time.Time { return t }}
}

// Location returns the clock's location.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now returns the current time in the clock's location.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Today returns the current calendar date in the clock's location.
func (c *Clock) Today() time.Time {
	return DateOf(c.Now())
}

// DateOf returns the calendar date of t as seen in t's own location.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Date builds a calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// AddDays moves a calendar date by n days.
func AddDays(date time.Time, n int) time.Time {
	return DateOf(date).AddDate(0, 0, n)
}

// DaysBetween returns the number of calendar days from -> to (negative if to is earlier).
func DaysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)).Hours() / 24)
}

// FormatDate formats a calendar date as YYYY-MM-DD.
func FormatDate(date time.Time) string {
	return date.Format(DateLayout)
}

// LoadLocation loads name, falling back to DefaultLocation.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return DefaultLocation
	}
	return loc
}
