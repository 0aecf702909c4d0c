// Package scoring combines the breakout sub-scores into one confidence value.
package scoring

import "math"

// DefaultActiveThreshold is the confidence a breakout must exceed to be live.
const DefaultActiveThreshold = 70.0

// Neutral is used for any sub-score whose input is missing.
const Neutral = 50.0

// Weights for the weighted-average composite.
type Weights struct {
	Volume  float64
	Flow    float64
	Pattern float64
	ML      float64
}

// DefaultWeights doubles the two direct breakout confirmations.
func DefaultWeights() Weights {
	return Weights{Volume: 2, Flow: 2, Pattern: 1, ML: 1}
}

// Valid reports whether all weights are finite, non-negative and sum above zero.
func (w Weights) Valid() bool {
	sum := 0.0
	for _, v := range []float64{w.Volume, w.Flow, w.Pattern, w.ML} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
		sum += v
	}
	return sum > 0
}

// SubScores are the four normalized inputs.
type SubScores struct {
	Volume  float64
	Flow    float64
	Pattern float64
	ML      float64
}

// Clamped returns s with every field forced into [0,100].
func (s SubScores) Clamped() SubScores {
	return SubScores{
		Volume:  Clamp(s.Volume),
		Flow:    Clamp(s.Flow),
		Pattern: Clamp(s.Pattern),
		ML:      Clamp(s.ML),
	}
}

// Scorer computes the composite and the activity gate.
type Scorer struct {
	weights   Weights
	threshold float64
}

// NewScorer falls back to DefaultWeights when w is not Valid and to
// DefaultActiveThreshold when threshold is outside (0,100].
func NewScorer(w Weights, threshold float64) *Scorer {
	if !w.Valid() {
		w = DefaultWeights()
	}
	if threshold <= 0 || threshold > 100 || math.IsNaN(threshold) {
		threshold = DefaultActiveThreshold
	}
	return &Scorer{weights: w, threshold: threshold}
}

func (s *Scorer) Weights() Weights    { return s.weights }
func (s *Scorer) Threshold() float64 { return s.threshold }

// Confidence is the weighted mean of the clamped sub-scores, itself clamped.
func (s *Scorer) Confidence(in SubScores) float64 {
	c := in.Clamped()
	w := s.weights
	sum := w.Volume + w.Flow + w.Pattern + w.ML
	v := (w.Volume*c.Volume + w.Flow*c.Flow + w.Pattern*c.Pattern + w.ML*c.ML) / sum
	return Clamp(v)
}

// IsActive reports whether confidence clears the live threshold.
func (s *Scorer) IsActive(confidence float64) bool {
	return confidence > s.threshold
}

// Clamp forces v into [0,100]. NaN maps to 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
