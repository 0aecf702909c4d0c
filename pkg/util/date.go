package util

import "time"

// DateLayout is the wire format for trading dates and option expiries.
const DateLayout = "2006-01-02"

// FromUnix accepts seconds or milliseconds since the epoch.
func FromUnix(ts int64) time.Time {
	// anything past year 5138 in seconds is treated as milliseconds
	if ts > 1e11 {
		return time.UnixMilli(ts)
	}
	return time.Unix(ts, 0)
}

// AlignMinutes truncates both ends of a range to whole minutes.
func AlignMinutes(from, to time.Time) (time.Time, time.Time) {
	return from.Truncate(time.Minute), to.Truncate(time.Minute)
}

// NextWeekday returns the first date strictly after t that falls on wd,
// keeping t's location.
func NextWeekday(t time.Time, wd time.Weekday) time.Time {
	days := (int(wd) - int(t.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return time.Date(t.Year(), t.Month(), t.Day()+days, 0, 0, 0, 0, t.Location())
}

// NextFriday is the next weekly expiry strictly after t.
func NextFriday(t time.Time) time.Time {
	return NextWeekday(t, time.Friday)
}
