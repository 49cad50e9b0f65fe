package model

import "time"

const (
	DateLayout     = "2006-01-02"
	TimeOfDay      = "15:04"
	minuteLayout   = "2006-01-02T15:04"
	DateTimeLayout = "2006-01-02T15:04:05"
)

// WallClock keeps the calendar fields of t and drops its zone, so timestamps are
// compared and stored as the owner's local wall clock and never shifted.
func WallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// MinuteKey formats t to minute precision on its wall clock.
func MinuteKey(t time.Time) string {
	return WallClock(t).Format(minuteLayout)
}

// ParseTimeOfDay parses a strict "HH:MM" string.
func ParseTimeOfDay(s string) (hour, minute int, ok bool) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, false
	}
	t, err := time.Parse(TimeOfDay, s)
	if err != nil {
		return 0, 0, false
	}
	return t.Hour(), t.Minute(), true
}

// At returns the wall-clock instant of "HH:MM" on the date of day.
func At(day time.Time, timeOfDay string) (time.Time, bool) {
	h, m, ok := ParseTimeOfDay(timeOfDay)
	if !ok {
		return time.Time{}, false
	}
	d := WallClock(day)
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, time.UTC), true
}
