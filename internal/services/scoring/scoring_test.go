package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ORBScanner/internal/domain/models"
)

func TestConfidenceDefaultWeights(t *testing.T) {
	s := NewScorer(DefaultWeights(), 0)
	got := s.Confidence(SubScores{Volume: 90, Flow: 80, Pattern: 60, ML: 30})
	// (2*90 + 2*80 + 60 + 30) / 6
	assert.InDelta(t, 430.0/6, got, 1e-9)
	assert.Equal(t, DefaultActiveThreshold, s.Threshold())
	assert.True(t, s.IsActive(got))
	assert.False(t, s.IsActive(70))
}

func TestConfidenceClampsInputs(t *testing.T) {
	s := NewScorer(DefaultWeights(), 70)
	assert.Equal(t, 100.0, s.Confidence(SubScores{Volume: 500, Flow: 200, Pattern: 101, ML: 1e9}))
	assert.Equal(t, 0.0, s.Confidence(SubScores{Volume: -10, Flow: -1, Pattern: math.NaN(), ML: -5}))
}

func TestConfidenceMonotonic(t *testing.T) {
	s := NewScorer(DefaultWeights(), 70)
	base := SubScores{Volume: 40, Flow: 40, Pattern: 40, ML: 40}
	bumps := []func(SubScores, float64) SubScores{
		func(x SubScores, v float64) SubScores { x.Volume = v; return x },
		func(x SubScores, v float64) SubScores { x.Flow = v; return x },
		func(x SubScores, v float64) SubScores { x.Pattern = v; return x },
		func(x SubScores, v float64) SubScores { x.ML = v; return x },
	}
	for i, bump := range bumps {
		prev := -1.0
		for v := -20.0; v <= 120; v += 5 {
			c := s.Confidence(bump(base, v))
			require.GreaterOrEqual(t, c, prev, "field %d at %v", i, v)
			require.GreaterOrEqual(t, c, 0.0)
			require.LessOrEqual(t, c, 100.0)
			prev = c
		}
	}
}

func TestInvalidWeightsFallBack(t *testing.T) {
	for _, w := range []Weights{{}, {Volume: -1, Flow: 5}, {Volume: math.NaN(), Flow: 1}} {
		assert.False(t, w.Valid())
		assert.Equal(t, DefaultWeights(), NewScorer(w, 70).Weights())
	}
	custom := Weights{Volume: 1, Flow: 1, Pattern: 1, ML: 1}
	s := NewScorer(custom, 60)
	assert.Equal(t, custom, s.Weights())
	assert.InDelta(t, 50, s.Confidence(SubScores{Volume: 100, Flow: 0, Pattern: 100, ML: 0}), 1e-9)
}

func TestVolumeScore(t *testing.T) {
	assert.Equal(t, 50.0, VolumeScore(1000, 1000))
	assert.Equal(t, 100.0, VolumeScore(5000, 1000))
	assert.Equal(t, 25.0, VolumeScore(500, 1000))
	assert.Equal(t, Neutral, VolumeScore(500, 0))
}

func TestFlowScore(t *testing.T) {
	f := &models.OptionsFlow{CallPremium: 300, PutPremium: 100}
	skew, ok := FlowSkew(f)
	require.True(t, ok)
	assert.InDelta(t, 0.5, skew, 1e-9)
	assert.InDelta(t, 75, FlowScore(models.Long, f), 1e-9)
	assert.InDelta(t, 25, FlowScore(models.Short, f), 1e-9)
	assert.Equal(t, Neutral, FlowScore(models.Long, nil))
	assert.Equal(t, Neutral, FlowScore(models.Long, &models.OptionsFlow{}))
}

func TestMLScore(t *testing.T) {
	m := &models.ModelScore{ProbaUp: 0.8}
	assert.InDelta(t, 80, MLScore(models.Long, m), 1e-9)
	assert.InDelta(t, 20, MLScore(models.Short, m), 1e-9)
	assert.Equal(t, Neutral, MLScore(models.Long, nil))
	assert.Equal(t, Neutral, MLScore(models.Long, &models.ModelScore{ProbaUp: 1.5}))
}

func TestPatternScore(t *testing.T) {
	idx := &models.IndexData{
		RSI:        62,
		MACDSignal: models.MACDBullish,
		Pivots:     models.PivotPoints{Pivot: 100, R1: 104, S1: 96},
	}
	score, notes := PatternScore(models.Long, 105, idx)
	assert.Equal(t, 100.0, score)
	assert.Equal(t, []string{"RSI 62.0 above 50", "MACD bullish", "price above pivot 100.00", "cleared R1 104.00"}, notes)

	score, notes = PatternScore(models.Short, 105, idx)
	assert.Equal(t, 0.0, score)
	assert.Empty(t, notes)

	idx.MACDSignal = models.MACDBearish
	score, _ = PatternScore(models.Long, 105, idx)
	assert.InDelta(t, 200.0/3, score, 1e-9)

	score, _ = PatternScore(models.Long, 105, nil)
	assert.Equal(t, Neutral, score)
	score, _ = PatternScore(models.Long, 105, &models.IndexData{MACDSignal: models.MACDNeutral})
	assert.Equal(t, Neutral, score)
}
