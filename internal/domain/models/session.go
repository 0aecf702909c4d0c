package models

import (
	"fmt"
	"time"
)

// SessionPhase is the market session phase derived from US Eastern wall-clock time.
type SessionPhase uint8

const (
	PhaseClosed SessionPhase = iota
	PhasePremarket
	PhaseOpening
	PhaseMorningSession
	PhaseMidday
	PhaseAfternoon
	PhasePowerHour
)

// AllPhases lists every phase in session order, closed last.
var AllPhases = []SessionPhase{
	PhasePremarket,
	PhaseOpening,
	PhaseMorningSession,
	PhaseMidday,
	PhaseAfternoon,
	PhasePowerHour,
	PhaseClosed,
}

func (p SessionPhase) String() string {
	switch p {
	case PhasePremarket:
		return "premarket"
	case PhaseOpening:
		return "opening"
	case PhaseMorningSession:
		return "morningSession"
	case PhaseMidday:
		return "midday"
	case PhaseAfternoon:
		return "afternoon"
	case PhasePowerHour:
		return "powerHour"
	case PhaseClosed:
		return "closed"
	}
	return fmt.Sprintf("SessionPhase(%d)", uint8(p))
}

// ParseSessionPhase converts the wire name back into a phase.
func ParseSessionPhase(s string) (SessionPhase, error) {
	for _, p := range AllPhases {
		if p.String() == s {
			return p, nil
		}
	}
	return PhaseClosed, fmt.Errorf("unknown session phase %q", s)
}

// IsRegular reports whether the phase is inside the regular 9:30-16:00 session.
func (p SessionPhase) IsRegular() bool {
	switch p {
	case PhaseOpening, PhaseMorningSession, PhaseMidday, PhaseAfternoon, PhasePowerHour:
		return true
	case PhasePremarket, PhaseClosed:
		return false
	}
	return false
}

// Before reports whether p comes strictly earlier than o within a trading day.
// Closed sorts after every other phase.
func (p SessionPhase) Before(o SessionPhase) bool {
	return p.order() < o.order()
}

func (p SessionPhase) order() int {
	switch p {
	case PhasePremarket:
		return 0
	case PhaseOpening:
		return 1
	case PhaseMorningSession:
		return 2
	case PhaseMidday:
		return 3
	case PhaseAfternoon:
		return 4
	case PhasePowerHour:
		return 5
	case PhaseClosed:
		return 6
	}
	return 6
}

func (p SessionPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *SessionPhase) UnmarshalText(b []byte) error {
	v, err := ParseSessionPhase(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Countdown is the time left until the next phase boundary.
type Countdown struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// SessionStatus is the session clock output.
type SessionStatus struct {
	Phase        SessionPhase `json:"phase"`
	NextPhase    SessionPhase `json:"nextPhase"`
	Countdown    Countdown    `json:"countdown"`
	NextBoundary time.Time    `json:"nextBoundary"`
}
