// Package sizing turns a VIX level into position size advice.
package sizing

import (
	"math"

	"ORBScanner/internal/domain/models"
)

type tier struct {
	below      float64
	multiplier float64
	contracts  int
	risk       models.RiskLevel
}

// Ordered by upper bound. The last tier is open-ended.
var tiers = []tier{
	{15, 1.0, 10, models.RiskLow},
	{20, 0.75, 7, models.RiskMedium},
	{30, 0.5, 5, models.RiskHigh},
	{math.Inf(1), 0.25, 2, models.RiskExtreme},
}

// Advise returns the sizing tier for vix. Non-finite input maps to the most
// conservative tier.
func Advise(vix float64) models.PositionSizing {
	t := tiers[len(tiers)-1]
	if !math.IsNaN(vix) && !math.IsInf(vix, 0) {
		for _, c := range tiers {
			if vix < c.below {
				t = c
				break
			}
		}
	}
	return models.PositionSizing{
		SizeMultiplier: t.multiplier,
		MaxContracts:   t.contracts,
		RiskLevel:      t.risk,
		VIX:            vix,
	}
}

// Unavailable is the advice used when VIX could not be fetched.
func Unavailable() models.PositionSizing {
	s := Advise(math.NaN())
	s.VIX = 0
	return s
}
