// Package gamma places the live price relative to the dealer gamma flip.
package gamma

import (
	"math"

	"ORBScanner/internal/domain/models"
)

const (
	RegimeMeanReversion = "mean-reversion"
	RegimeMomentum      = "momentum/trend-continuation"
)

// Classify compares price with flip. A price at the flip counts as above.
// Missing, non-positive or non-finite inputs yield an unavailable position.
func Classify(price, flip float64) models.GammaPosition {
	if !usable(price) || !usable(flip) {
		return models.GammaPosition{Zone: models.GammaUnavailable}
	}
	pos := models.GammaPosition{
		Available:   true,
		Above:       price >= flip,
		Distance:    price - flip,
		PctDistance: (price - flip) / flip * 100,
	}
	if pos.Above {
		pos.Zone = models.GammaPositive
		pos.Regime = RegimeMeanReversion
	} else {
		pos.Zone = models.GammaNegative
		pos.Regime = RegimeMomentum
	}
	return pos
}

func usable(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
