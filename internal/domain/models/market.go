package models

import "time"

// Tick is a single observed trade price.
type Tick struct {
	Symbol string
	Price  float64
	Volume float64
	Time   time.Time
}

// Bar is an OHLCV record, used for warm-starting ranges and for indicators.
type Bar struct {
	Bucket time.Time
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// MarketSnapshot is the per-cycle quote for one symbol.
// High and Low are the extremes since the previous observation when the
// source provides them, otherwise they equal Last.
type MarketSnapshot struct {
	Symbol        string
	Last          float64
	High          float64
	Low           float64
	Open          float64
	PreviousClose float64
	Volume        float64
	AvgVolume     float64
	Time          time.Time
}

// PivotPoints are classic floor pivots from the prior daily bar.
type PivotPoints struct {
	Pivot float64 `json:"pivot"`
	R1    float64 `json:"r1"`
	R2    float64 `json:"r2"`
	S1    float64 `json:"s1"`
	S2    float64 `json:"s2"`
}

// MACD signal labels.
const (
	MACDBullish = "bullish"
	MACDBearish = "bearish"
	MACDNeutral = "neutral"
)

// IndexData is the per-symbol market snapshot the dashboard shows for an index.
type IndexData struct {
	Symbol     string      `json:"symbol"`
	Price      float64     `json:"price"`
	Change     float64     `json:"change"`
	ChangePct  float64     `json:"changePct"`
	RSI        float64     `json:"rsi"`
	MACDSignal string      `json:"macdSignal"`
	Pivots     PivotPoints `json:"pivotPoints"`
	Volume     float64     `json:"volume"`
	Timestamp  time.Time   `json:"timestamp"`
}

// OptionsFlow is the options order-flow summary for a symbol.
type OptionsFlow struct {
	Symbol      string
	CallPremium float64
	PutPremium  float64
	GammaFlip   float64
	Timestamp   time.Time
}

// ModelScore is the external model's directional output.
type ModelScore struct {
	Symbol     string
	ProbaUp    float64
	Confidence float64
	Model      string
	Timestamp  time.Time
}
