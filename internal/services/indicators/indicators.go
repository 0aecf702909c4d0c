// Package indicators computes the classical technical signals feeding the
// pattern sub-score: Wilder RSI, MACD crossover state and floor pivots.
package indicators

import (
	"errors"
	"math"

	"ORBScanner/internal/domain/models"
)

// RSIPeriod is the lookback used for IndexData.RSI.
const RSIPeriod = 14

var ErrInsufficientData = errors.New("not enough bars")

// Closes extracts close prices from bars.
func Closes(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// RSI computes the Wilder-smoothed RSI. It needs period+1 closes and returns
// a neutral 50 when there are fewer.
func RSI(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(closes) < period+1 {
		return 50, nil
	}
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		ch := closes[i] - closes[i-1]
		if ch > 0 {
			avgGain += ch
		} else {
			avgLoss -= ch
		}
	}
	n := float64(period)
	avgGain /= n
	avgLoss /= n
	for i := period + 1; i < len(closes); i++ {
		ch := closes[i] - closes[i-1]
		gain, loss := math.Max(ch, 0), math.Max(-ch, 0)
		avgGain = (avgGain*(n-1) + gain) / n
		avgLoss = (avgLoss*(n-1) + loss) / n
	}
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, nil
		}
		return 100, nil
	}
	return 100 - 100/(1+avgGain/avgLoss), nil
}

// EMA returns the exponential moving average series seeded with the SMA of
// the first period values. The result is aligned with values[period-1:].
func EMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	k := 2 / float64(period+1)
	sum := 0.0
	for _, v := range values[:period] {
		sum += v
	}
	out := make([]float64, 0, len(values)-period+1)
	prev := sum / float64(period)
	out = append(out, prev)
	for _, v := range values[period:] {
		prev = v*k + prev*(1-k)
		out = append(out, prev)
	}
	return out
}

// MACD holds the latest MACD line, signal line and histogram.
type MACD struct {
	Line      float64
	Signal    float64
	Histogram float64
}

// ComputeMACD runs the standard 12/26/9 MACD over closes.
func ComputeMACD(closes []float64) (MACD, error) {
	return ComputeMACDWith(closes, 12, 26, 9)
}

// ComputeMACDWith runs MACD with explicit fast/slow/signal periods.
func ComputeMACDWith(closes []float64, fast, slow, signal int) (MACD, error) {
	if fast <= 0 || slow <= fast || signal <= 0 {
		return MACD{}, errors.New("invalid MACD periods")
	}
	if len(closes) < slow+signal-1 {
		return MACD{}, ErrInsufficientData
	}
	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)
	// align fast onto slow
	offset := slow - fast
	line := make([]float64, len(slowEMA))
	for i := range slowEMA {
		line[i] = fastEMA[i+offset] - slowEMA[i]
	}
	sig := EMA(line, signal)
	last := line[len(line)-1]
	s := sig[len(sig)-1]
	return MACD{Line: last, Signal: s, Histogram: last - s}, nil
}

// Label maps the histogram sign to bullish, bearish or neutral.
func (m MACD) Label() string {
	switch {
	case m.Histogram > 0:
		return models.MACDBullish
	case m.Histogram < 0:
		return models.MACDBearish
	default:
		return models.MACDNeutral
	}
}

// MACDSignal is ComputeMACD(...).Label() with neutral on short history.
func MACDSignal(closes []float64) string {
	m, err := ComputeMACD(closes)
	if err != nil {
		return models.MACDNeutral
	}
	return m.Label()
}

// Pivots computes classic floor pivots from the prior session's bar.
func Pivots(prev models.Bar) models.PivotPoints {
	p := (prev.High + prev.Low + prev.Close) / 3
	return models.PivotPoints{
		Pivot: p,
		R1:    2*p - prev.Low,
		R2:    p + (prev.High - prev.Low),
		S1:    2*p - prev.High,
		S2:    p - (prev.High - prev.Low),
	}
}
