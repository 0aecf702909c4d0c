package orb

import "ORBScanner/internal/domain/models"

// Pending describes a valid range that has not broken out. Bias leans toward
// the closer boundary.
func Pending(r models.OpeningRange, price float64) models.PendingSetup {
	p := models.PendingSetup{
		Symbol:         r.Symbol,
		Timeframe:      r.Timeframe,
		RangeHigh:      r.High,
		RangeLow:       r.Low,
		CurrentPrice:   price,
		DistanceToHigh: r.High - price,
		DistanceToLow:  price - r.Low,
		Bias:           models.BiasNeutral,
	}
	switch {
	case p.DistanceToHigh < p.DistanceToLow:
		p.Bias = models.BiasLong
	case p.DistanceToLow < p.DistanceToHigh:
		p.Bias = models.BiasShort
	}
	return p
}
