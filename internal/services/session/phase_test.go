package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ORBScanner/internal/domain/models"
)

func et(y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, Eastern())
}

func TestClassifyBoundaries(t *testing.T) {
	// 2024-03-12 is a Tuesday.
	cases := []struct {
		name string
		at   time.Time
		want models.SessionPhase
	}{
		{"before premarket", et(2024, 3, 12, 3, 59, 59), models.PhaseClosed},
		{"premarket start", et(2024, 3, 12, 4, 0, 0), models.PhasePremarket},
		{"premarket end", et(2024, 3, 12, 9, 29, 59), models.PhasePremarket},
		{"opening start", et(2024, 3, 12, 9, 30, 0), models.PhaseOpening},
		{"opening mid", et(2024, 3, 12, 9, 45, 0), models.PhaseOpening},
		{"morning", et(2024, 3, 12, 10, 0, 0), models.PhaseMorningSession},
		{"midday", et(2024, 3, 12, 12, 0, 0), models.PhaseMidday},
		{"afternoon", et(2024, 3, 12, 14, 30, 0), models.PhaseAfternoon},
		{"power hour", et(2024, 3, 12, 15, 59, 59), models.PhasePowerHour},
		{"close", et(2024, 3, 12, 16, 0, 0), models.PhaseClosed},
		{"evening", et(2024, 3, 12, 20, 0, 0), models.PhaseClosed},
		{"saturday", et(2024, 3, 16, 10, 0, 0), models.PhaseClosed},
		{"sunday", et(2024, 3, 17, 9, 45, 0), models.PhaseClosed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.at))
		})
	}
}

func TestClassifyConvertsFromUTC(t *testing.T) {
	// 14:45 UTC in March after the DST switch is 10:45 EDT.
	at := time.Date(2024, 3, 12, 14, 45, 0, 0, time.UTC)
	assert.Equal(t, models.PhaseMorningSession, Classify(at))

	// 14:45 UTC in January is 9:45 EST.
	at = time.Date(2024, 1, 9, 14, 45, 0, 0, time.UTC)
	assert.Equal(t, models.PhaseOpening, Classify(at))
}

func TestClassifyWeekendAlwaysClosed(t *testing.T) {
	start := et(2024, 3, 16, 0, 0, 0)
	for i := 0; i < 2*24*60; i++ {
		at := start.Add(time.Duration(i) * time.Minute)
		require.Equal(t, models.PhaseClosed, Classify(at), at.String())
	}
}

func TestStatusCountdown(t *testing.T) {
	st := Status(et(2024, 3, 12, 9, 45, 0))
	assert.Equal(t, models.PhaseOpening, st.Phase)
	assert.Equal(t, models.PhaseMorningSession, st.NextPhase)
	assert.Equal(t, models.Countdown{Hours: 0, Minutes: 15, Seconds: 0}, st.Countdown)

	st = Status(et(2024, 3, 12, 15, 59, 30))
	assert.Equal(t, models.PhaseClosed, st.NextPhase)
	assert.Equal(t, 30, st.Countdown.Seconds)
}

func TestStatusAfterCloseWrapsToNextWeekday(t *testing.T) {
	// Friday evening counts down to Monday premarket.
	st := Status(et(2024, 3, 15, 16, 0, 0))
	assert.Equal(t, models.PhaseClosed, st.Phase)
	assert.Equal(t, models.PhasePremarket, st.NextPhase)
	assert.True(t, st.NextBoundary.Equal(et(2024, 3, 18, 4, 0, 0)))
	assert.Equal(t, 60, st.Countdown.Hours)

	// Tuesday night counts down to Wednesday premarket.
	st = Status(et(2024, 3, 12, 23, 0, 0))
	assert.Equal(t, models.Countdown{Hours: 5}, st.Countdown)
}

func TestStatusBeforePremarket(t *testing.T) {
	st := Status(et(2024, 3, 12, 3, 0, 0))
	assert.Equal(t, models.PhaseClosed, st.Phase)
	assert.Equal(t, models.PhasePremarket, st.NextPhase)
	assert.Equal(t, models.Countdown{Hours: 1}, st.Countdown)
}

func TestTradingDate(t *testing.T) {
	// 02:00 UTC on the 13th is still the 12th in New York.
	assert.Equal(t, "2024-03-12", TradingDate(time.Date(2024, 3, 13, 2, 0, 0, 0, time.UTC)))
	assert.True(t, RegularOpen(et(2024, 3, 12, 12, 0, 0)).Equal(et(2024, 3, 12, 9, 30, 0)))
}
