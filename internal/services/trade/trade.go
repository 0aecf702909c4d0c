// Package trade derives entry, stop, targets and an option contract from a
// breakout.
package trade

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ORBScanner/internal/domain/models"
	"ORBScanner/internal/services/session"
	"ORBScanner/pkg/util"
)

// DefaultIncrement is the strike spacing for symbols without an override.
const DefaultIncrement = 1.0

// idSpace namespaces deterministic breakout and lotto IDs.
var idSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("orbscanner/breakout"))

// Params are the trade levels and contract for one breakout.
type Params struct {
	Entry      float64
	Stop       float64
	Target1    float64
	Target2    float64
	RiskReward float64
	Strike     float64
	Expiry     string
	OptionType models.OptionType
}

// Synthesizer turns breakouts into trade parameters.
type Synthesizer struct {
	increments map[string]float64
	fallback   float64
}

// NewSynthesizer uses increments as per-symbol strike spacing.
func NewSynthesizer(increments map[string]float64) *Synthesizer {
	inc := make(map[string]float64, len(increments))
	for k, v := range increments {
		if v > 0 {
			inc[strings.ToUpper(k)] = v
		}
	}
	return &Synthesizer{increments: inc, fallback: DefaultIncrement}
}

// Increment returns the strike spacing for symbol.
func (s *Synthesizer) Increment(symbol string) float64 {
	if v, ok := s.increments[strings.ToUpper(symbol)]; ok {
		return v
	}
	return s.fallback
}

// Build computes levels for a breakout at entry from range r. It returns
// models.ErrDegenerateRange when the range has no width or entry sits on the
// stop.
func (s *Synthesizer) Build(r models.OpeningRange, dir models.Direction, entry float64, typ models.BreakoutType, now time.Time) (Params, error) {
	stop := r.Low
	if dir == models.Short {
		stop = r.High
	}
	risk := math.Abs(entry - stop)
	if r.RangeWidth <= 0 || risk == 0 {
		return Params{}, fmt.Errorf("%s %s: %w", r.Symbol, r.Timeframe, models.ErrDegenerateRange)
	}
	sign := dir.Sign()
	p := Params{
		Entry:      entry,
		Stop:       stop,
		Target1:    entry + sign*r.RangeWidth,
		Target2:    entry + sign*2*r.RangeWidth,
		RiskReward: r.RangeWidth / risk,
		Strike:     s.Strike(r.Symbol, entry, dir, 0),
		Expiry:     Expiry(typ, now),
		OptionType: OptionFor(dir),
	}
	return p, nil
}

// Strike returns the nearest listed strike to price, moved out of the money
// for dir, then pushed extra further increments OTM.
func (s *Synthesizer) Strike(symbol string, price float64, dir models.Direction, extra int) float64 {
	inc := decimal.NewFromFloat(s.Increment(symbol))
	px := decimal.NewFromFloat(price)
	strike := px.Div(inc).Round(0).Mul(inc)
	switch dir {
	case models.Short:
		if strike.GreaterThanOrEqual(px) {
			strike = strike.Sub(inc)
		}
		strike = strike.Sub(inc.Mul(decimal.NewFromInt(int64(extra))))
	default:
		if strike.LessThanOrEqual(px) {
			strike = strike.Add(inc)
		}
		strike = strike.Add(inc.Mul(decimal.NewFromInt(int64(extra))))
	}
	f, _ := strike.Float64()
	return f
}

// OptionFor maps direction to option type.
func OptionFor(dir models.Direction) models.OptionType {
	if dir == models.Short {
		return models.Put
	}
	return models.Call
}

// Expiry returns same-day expiry for 0DTE and the next weekly Friday
// otherwise, both on the Eastern calendar.
func Expiry(typ models.BreakoutType, now time.Time) string {
	et := now.In(session.Eastern())
	if typ == models.ZeroDTE {
		return et.Format(util.DateLayout)
	}
	return util.NextFriday(et).Format(util.DateLayout)
}

// BreakoutID is stable for a symbol, timeframe and trading date.
func BreakoutID(symbol string, tf models.Timeframe, date string) string {
	return uuid.NewSHA1(idSpace, []byte(symbol+"|"+string(tf)+"|"+date)).String()
}

// LottoID is stable for a breakout and its lotto strike.
func LottoID(breakoutID string, strike float64) string {
	return uuid.NewSHA1(idSpace, []byte(fmt.Sprintf("lotto|%s|%g", breakoutID, strike))).String()
}

// Thesis renders the one-line trade narrative.
func Thesis(r models.OpeningRange, dir models.Direction, typ models.BreakoutType, p Params, confidence float64, gz models.GammaZone) string {
	edge := "above"
	level := r.High
	if dir == models.Short {
		edge = "below"
		level = r.Low
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s ORB break %s %.2f (range %.2f-%.2f, width %.2f).",
		r.Symbol, r.Timeframe, dir, edge, level, r.Low, r.High, r.RangeWidth)
	fmt.Fprintf(&b, " Entry %.2f, stop %.2f, targets %.2f/%.2f, R:R %.2f.",
		p.Entry, p.Stop, p.Target1, p.Target2, p.RiskReward)
	fmt.Fprintf(&b, " %s %g%s exp %s, confidence %.0f.",
		typ, p.Strike, strings.ToUpper(string(p.OptionType)[:1]), p.Expiry, confidence)
	switch gz {
	case models.GammaPositive:
		b.WriteString(" Positive gamma: expect mean reversion.")
	case models.GammaNegative:
		b.WriteString(" Negative gamma: moves can extend.")
	}
	return b.String()
}
