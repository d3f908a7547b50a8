// Package timeutil provides day-granularity time helpers for account age
// and ledger reporting. All arithmetic is done in UTC so that results do
// not depend on the server's local timezone.
// No external dependencies - uses only standard library.
package timeutil

import "time"

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// StartOfDay returns the start of the day (00:00:00) in UTC.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the end of the day (23:59:59.999999999) in UTC.
func EndOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, 999999999, time.UTC)
}

// StartOfMonth returns the start of the month in UTC.
func StartOfMonth(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// DaysSince returns whole calendar days between the given time and now.
// Returns 0 for zero or future times.
func DaysSince(t time.Time) int {
	return DaysSinceAt(t, Now())
}

// DaysSinceAt returns whole calendar days between t and the reference
// time. The account-age criterion is computed with this so evaluations
// are reproducible for a fixed reference.
func DaysSinceAt(t, ref time.Time) int {
	if t.IsZero() || ref.Before(t) {
		return 0
	}
	days := int(StartOfDay(ref).Sub(StartOfDay(t)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// DaysBetween returns the absolute number of calendar days between two times.
func DaysBetween(t1, t2 time.Time) int {
	days := int(StartOfDay(t2).Sub(StartOfDay(t1)).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// IsSameDay checks if two times fall on the same UTC day.
func IsSameDay(t1, t2 time.Time) bool {
	u1, u2 := t1.UTC(), t2.UTC()
	return u1.Year() == u2.Year() && u1.YearDay() == u2.YearDay()
}

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
	// FormatDateTimeSeconds includes seconds.
	FormatDateTimeSeconds = "2006-01-02 15:04:05"
)

// FormatDateStr formats a time as a date string (YYYY-MM-DD) in UTC.
func FormatDateStr(t time.Time) string {
	return t.UTC().Format(FormatDate)
}

// FormatDateTimeStr formats a time as a datetime string in UTC.
func FormatDateTimeStr(t time.Time) string {
	return t.UTC().Format(FormatDateTime)
}

// ParseDate parses a date string (YYYY-MM-DD) as UTC midnight.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(FormatDate, value, time.UTC)
}
