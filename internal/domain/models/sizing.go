package models

// RiskLevel is the VIX-implied risk tier.
type RiskLevel string

const (
	RiskLow     RiskLevel = "LOW"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskHigh    RiskLevel = "HIGH"
	RiskExtreme RiskLevel = "EXTREME"
)

// PositionSizing is the size advice for a VIX level.
type PositionSizing struct {
	SizeMultiplier float64   `json:"sizeMultiplier"`
	MaxContracts   int       `json:"maxContracts"`
	RiskLevel      RiskLevel `json:"riskLevel"`
	VIX            float64   `json:"vix"`
}

// GammaZone labels where price sits relative to the gamma flip.
type GammaZone string

const (
	GammaPositive    GammaZone = "POSITIVE"
	GammaNegative    GammaZone = "NEGATIVE"
	GammaUnavailable GammaZone = "UNAVAILABLE"
)

// GammaPosition compares live price to the gamma flip level.
type GammaPosition struct {
	Available   bool      `json:"available"`
	Above       bool      `json:"above"`
	Distance    float64   `json:"distance"`
	PctDistance float64   `json:"pctDistance"`
	Zone        GammaZone `json:"zone"`
	Regime      string    `json:"regime"`
}
