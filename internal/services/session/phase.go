package session

import (
	"time"

	"ORBScanner/internal/domain/models"
)

type interval struct {
	start, end int // minutes after midnight, half-open
	phase      models.SessionPhase
}

var phaseTable = []interval{
	{4 * 60, 9*60 + 30, models.PhasePremarket},
	{9*60 + 30, 10 * 60, models.PhaseOpening},
	{10 * 60, 12 * 60, models.PhaseMorningSession},
	{12 * 60, 14 * 60, models.PhaseMidday},
	{14 * 60, 15 * 60, models.PhaseAfternoon},
	{15 * 60, 16 * 60, models.PhasePowerHour},
}

// Classify returns the session phase active at t. Weekends are always closed.
func Classify(t time.Time) models.SessionPhase {
	if !IsTradingDay(t) {
		return models.PhaseClosed
	}
	et := t.In(eastern)
	m := et.Hour()*60 + et.Minute()
	for _, iv := range phaseTable {
		if m >= iv.start && m < iv.end {
			return iv.phase
		}
	}
	return models.PhaseClosed
}

// NextBoundary returns the first phase boundary strictly after t.
// After the close, and on weekends, that is 4:00 on the next weekday.
func NextBoundary(t time.Time) time.Time {
	et := t.In(eastern)
	if IsTradingDay(et) {
		for _, iv := range phaseTable {
			b := At(et, iv.start/60, iv.start%60)
			if b.After(et) {
				return b
			}
		}
		last := phaseTable[len(phaseTable)-1]
		if b := At(et, last.end/60, last.end%60); b.After(et) {
			return b
		}
	}
	d := time.Date(et.Year(), et.Month(), et.Day()+1, 4, 0, 0, 0, eastern)
	for !IsTradingDay(d) {
		d = time.Date(d.Year(), d.Month(), d.Day()+1, 4, 0, 0, 0, eastern)
	}
	return d
}

// Status returns the phase at t plus the countdown to the next boundary.
func Status(t time.Time) models.SessionStatus {
	next := NextBoundary(t)
	secs := int(next.Sub(t) / time.Second)
	if secs < 0 {
		secs = 0
	}
	return models.SessionStatus{
		Phase:     Classify(t),
		NextPhase: Classify(next),
		Countdown: models.Countdown{
			Hours:   secs / 3600,
			Minutes: (secs % 3600) / 60,
			Seconds: secs % 60,
		},
		NextBoundary: next,
	}
}
