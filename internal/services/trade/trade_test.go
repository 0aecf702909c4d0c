package trade

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ORBScanner/internal/domain/models"
	"ORBScanner/internal/services/session"
)

var tuesday = time.Date(2024, 3, 12, 10, 5, 0, 0, session.Eastern())

func orbRange() models.OpeningRange {
	return models.OpeningRange{
		Symbol: "SPY", Date: "2024-03-12", Timeframe: models.TF15m,
		High: 105, Low: 100, OpenPrice: 101, RangeWidth: 5, IsValid: true,
	}
}

func TestBuildLong(t *testing.T) {
	s := NewSynthesizer(nil)
	p, err := s.Build(orbRange(), models.Long, 105.5, models.ZeroDTE, tuesday)
	require.NoError(t, err)
	assert.Equal(t, 105.5, p.Entry)
	assert.Equal(t, 100.0, p.Stop)
	assert.InDelta(t, 110.5, p.Target1, 1e-9)
	assert.InDelta(t, 115.5, p.Target2, 1e-9)
	assert.InDelta(t, 5/5.5, p.RiskReward, 1e-9)
	assert.Equal(t, models.Call, p.OptionType)
	assert.Equal(t, 106.0, p.Strike)
	assert.Equal(t, "2024-03-12", p.Expiry)
}

func TestBuildShort(t *testing.T) {
	s := NewSynthesizer(nil)
	p, err := s.Build(orbRange(), models.Short, 99.5, models.Swing, tuesday)
	require.NoError(t, err)
	assert.Equal(t, 105.0, p.Stop)
	assert.InDelta(t, 94.5, p.Target1, 1e-9)
	assert.InDelta(t, 89.5, p.Target2, 1e-9)
	assert.InDelta(t, 5/5.5, p.RiskReward, 1e-9)
	assert.Equal(t, models.Put, p.OptionType)
	assert.Equal(t, 99.0, p.Strike)
	assert.Equal(t, "2024-03-15", p.Expiry)
}

func TestBuildDegenerate(t *testing.T) {
	s := NewSynthesizer(nil)
	r := orbRange()
	r.High, r.Low, r.RangeWidth = 100, 100, 0
	_, err := s.Build(r, models.Long, 100.5, models.Swing, tuesday)
	assert.True(t, errors.Is(err, models.ErrDegenerateRange))

	_, err = s.Build(orbRange(), models.Long, 100, models.Swing, tuesday)
	assert.True(t, errors.Is(err, models.ErrDegenerateRange))
}

func TestStrikeIncrements(t *testing.T) {
	s := NewSynthesizer(map[string]float64{"spx": 5, "NDX": 10})
	assert.Equal(t, 5.0, s.Increment("SPX"))
	assert.Equal(t, DefaultIncrement, s.Increment("IWM"))

	assert.Equal(t, 5015.0, s.Strike("SPX", 5012, models.Long, 0))
	assert.Equal(t, 5015.0, s.Strike("SPX", 5010, models.Long, 0))
	assert.Equal(t, 5005.0, s.Strike("SPX", 5008, models.Short, 0))
	assert.Equal(t, 18010.0, s.Strike("NDX", 18003, models.Long, 0))
	assert.Equal(t, 5025.0, s.Strike("SPX", 5012, models.Long, 2))
	assert.Equal(t, 4995.0, s.Strike("SPX", 5008, models.Short, 2))
}

func TestExpiryFridayRollsForward(t *testing.T) {
	fri := time.Date(2024, 3, 15, 11, 0, 0, 0, session.Eastern())
	assert.Equal(t, "2024-03-22", Expiry(models.Swing, fri))
	assert.Equal(t, "2024-03-15", Expiry(models.ZeroDTE, fri))
}

func TestIDsDeterministic(t *testing.T) {
	a := BreakoutID("SPY", models.TF15m, "2024-03-12")
	assert.Equal(t, a, BreakoutID("SPY", models.TF15m, "2024-03-12"))
	assert.NotEqual(t, a, BreakoutID("SPY", models.TF30m, "2024-03-12"))
	assert.NotEqual(t, a, BreakoutID("SPY", models.TF15m, "2024-03-13"))
	assert.Len(t, a, 36)
	assert.Equal(t, LottoID(a, 108), LottoID(a, 108))
	assert.NotEqual(t, LottoID(a, 108), LottoID(a, 109))
}

func TestThesis(t *testing.T) {
	s := NewSynthesizer(nil)
	p, err := s.Build(orbRange(), models.Long, 105.5, models.ZeroDTE, tuesday)
	require.NoError(t, err)
	th := Thesis(orbRange(), models.Long, models.ZeroDTE, p, 82, models.GammaNegative)
	assert.True(t, strings.HasPrefix(th, "SPY 15min LONG ORB break above 105.00"))
	assert.Contains(t, th, "0DTE 106C exp 2024-03-12")
	assert.Contains(t, th, "Negative gamma")
}
