// Package session maps wall-clock instants onto US equity session phases.
package session

import (
	"time"
	_ "time/tzdata"
)

// Clock is the time source. Tests inject a fixed or stepping clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }

// Ticker abstracts time.Ticker so the scan loop can be driven manually.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

// NewTicker returns a Ticker backed by time.NewTicker.
func NewTicker(d time.Duration) Ticker { return &realTicker{t: time.NewTicker(d)} }

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

var eastern = mustLoad("America/New_York")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// Eastern returns the America/New_York location.
func Eastern() *time.Location { return eastern }

// TradingDate returns the Eastern calendar date of t as YYYY-MM-DD.
func TradingDate(t time.Time) string {
	return t.In(eastern).Format(time.DateOnly)
}

// IsTradingDay reports whether t falls on a weekday in Eastern time.
func IsTradingDay(t time.Time) bool {
	switch t.In(eastern).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}

// At returns hh:mm Eastern on the Eastern calendar day of t.
func At(t time.Time, hh, mm int) time.Time {
	et := t.In(eastern)
	return time.Date(et.Year(), et.Month(), et.Day(), hh, mm, 0, 0, eastern)
}

// RegularOpen returns 9:30 Eastern on the day of t.
func RegularOpen(t time.Time) time.Time { return At(t, 9, 30) }

// RegularClose returns 16:00 Eastern on the day of t.
func RegularClose(t time.Time) time.Time { return At(t, 16, 0) }
