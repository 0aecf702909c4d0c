package models

import "time"

// Direction of a breakout.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Sign returns +1 for LONG and -1 for SHORT.
func (d Direction) Sign() float64 {
	if d == Short {
		return -1
	}
	return 1
}

// BreakoutType classifies the suggested holding horizon.
type BreakoutType string

const (
	ZeroDTE BreakoutType = "0DTE"
	Swing   BreakoutType = "SWING"
)

// OptionType of the suggested contract.
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// RangeStatus is the opening range lifecycle state.
type RangeStatus string

const (
	RangeForming RangeStatus = "forming"
	RangeValid   RangeStatus = "valid"
	RangeInvalid RangeStatus = "invalid"
)

// OpeningRange is the high/low formed in the window after the open.
// Once Status leaves forming the value never changes for that day.
type OpeningRange struct {
	Symbol        string      `json:"symbol"`
	Date          string      `json:"date"`
	Timeframe     Timeframe   `json:"timeframe"`
	High          float64     `json:"high"`
	Low           float64     `json:"low"`
	OpenPrice     float64     `json:"openPrice"`
	RangeWidth    float64     `json:"rangeWidth"`
	RangeWidthPct float64     `json:"rangeWidthPct"`
	IsValid       bool        `json:"isValid"`
	Status        RangeStatus `json:"status"`
	TickCount     int         `json:"tickCount"`
}

// ORBBreakout is a detected breakout with its scores and trade parameters.
type ORBBreakout struct {
	ID              string       `json:"id"`
	Symbol          string       `json:"symbol"`
	Direction       Direction    `json:"direction"`
	BreakoutType    BreakoutType `json:"breakoutType"`
	Timeframe       Timeframe    `json:"timeframe"`
	BreakoutPrice   float64      `json:"breakoutPrice"`
	CurrentPrice    float64      `json:"currentPrice"`
	RangeHigh       float64      `json:"rangeHigh"`
	RangeLow        float64      `json:"rangeLow"`
	Entry           float64      `json:"entry"`
	Stop            float64      `json:"stop"`
	Target1         float64      `json:"target1"`
	Target2         float64      `json:"target2"`
	RiskReward      float64      `json:"riskReward"`
	SuggestedStrike float64      `json:"suggestedStrike"`
	SuggestedExpiry string       `json:"suggestedExpiry"`
	OptionType      OptionType   `json:"optionType"`
	Confidence      float64      `json:"confidence"`
	VolumeScore     float64      `json:"volumeScore"`
	FlowScore       float64      `json:"flowScore"`
	PatternScore    float64      `json:"patternScore"`
	MLScore         float64      `json:"mlScore"`
	VIX             float64      `json:"vix"`
	SessionPhase    SessionPhase `json:"sessionPhase"`
	GammaZone       GammaZone    `json:"gammaZone"`
	Signals         []string     `json:"signals"`
	Thesis          string       `json:"thesis"`
	IsActive        bool         `json:"isActive"`
	Timestamp       time.Time    `json:"timestamp"`
}

// PendingSetup is a valid range that has not broken out yet.
type PendingSetup struct {
	Symbol         string    `json:"symbol"`
	Timeframe      Timeframe `json:"timeframe"`
	RangeHigh      float64   `json:"rangeHigh"`
	RangeLow       float64   `json:"rangeLow"`
	CurrentPrice   float64   `json:"currentPrice"`
	DistanceToHigh float64   `json:"distanceToHigh"`
	DistanceToLow  float64   `json:"distanceToLow"`
	Bias           string    `json:"bias"`
}

// Pending setup bias labels.
const (
	BiasLong    = "LONG"
	BiasShort   = "SHORT"
	BiasNeutral = "NEUTRAL"
)

// ORBScanResult is one immutable scan cycle snapshot.
type ORBScanResult struct {
	Timestamp      time.Time         `json:"timestamp"`
	SessionPhase   SessionPhase      `json:"sessionPhase"`
	VIX            float64           `json:"vix"`
	PositionSizing PositionSizing    `json:"positionSizing"`
	Ranges         []OpeningRange    `json:"ranges"`
	Breakouts      []ORBBreakout     `json:"breakouts"`
	PendingSetups  []PendingSetup    `json:"pendingSetups"`
	Warnings       []string          `json:"warnings,omitempty"`
	Errors         map[string]string `json:"errors,omitempty"`
}

// LottoPlay is a cheap far-OTM contract idea derived from a looser-confidence breakout.
type LottoPlay struct {
	ID              string       `json:"id"`
	Symbol          string       `json:"symbol"`
	Direction       Direction    `json:"direction"`
	OptionType      OptionType   `json:"optionType"`
	Strike          float64      `json:"strike"`
	Expiry          string       `json:"expiry"`
	BreakoutType    BreakoutType `json:"breakoutType"`
	UnderlyingPrice float64      `json:"underlyingPrice"`
	TargetPrice     float64      `json:"targetPrice"`
	StopPrice       float64      `json:"stopPrice"`
	Confidence      float64      `json:"confidence"`
	RiskLevel       RiskLevel    `json:"riskLevel"`
	MaxContracts    int          `json:"maxContracts"`
	IsActive        bool         `json:"isActive"`
	Thesis          string       `json:"thesis"`
	Timestamp       time.Time    `json:"timestamp"`
}

// IndexLottoResult is the index-lotto scan snapshot.
type IndexLottoResult struct {
	Timestamp    time.Time         `json:"timestamp"`
	SessionPhase SessionPhase      `json:"sessionPhase"`
	IndexData    []IndexData       `json:"indexData"`
	LottoPlays   []LottoPlay       `json:"lottoPlays"`
	Errors       map[string]string `json:"errors,omitempty"`
}
