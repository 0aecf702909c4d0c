package models

import (
	"fmt"
	"time"
)

// Timeframe is the opening range formation window.
type Timeframe string

const (
	TF15m Timeframe = "15min"
	TF30m Timeframe = "30min"
	TF60m Timeframe = "60min"
)

// Timeframes lists the supported timeframes shortest first.
var Timeframes = []Timeframe{TF15m, TF30m, TF60m}

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF15m, TF30m, TF60m:
		return true
	default:
		return false
	}
}

// ParseTimeframe accepts the wire names 15min, 30min and 60min.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if !IsValidTimeframe(tf) {
		return "", fmt.Errorf("unsupported timeframe %q", s)
	}
	return tf, nil
}

// Duration returns the window length.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF15m:
		return 15 * time.Minute
	case TF30m:
		return 30 * time.Minute
	case TF60m:
		return 60 * time.Minute
	default:
		return 0
	}
}
