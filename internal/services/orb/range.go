// Package orb builds per-day opening ranges and detects breakouts from them.
package orb

import (
	"sort"
	"sync"
	"time"

	"ORBScanner/internal/domain/models"
	"ORBScanner/internal/services/session"
)

type rangeKey struct {
	symbol string
	tf     models.Timeframe
	date   string
}

type rangeState struct {
	high, low, open float64
	openAt          time.Time
	ticks           int
	end             time.Time
	status          models.RangeStatus
}

type extremes struct {
	high, low float64
}

// RangeBuilder accumulates opening ranges from ticks. A range is forming
// inside [9:30, 9:30+tf) Eastern and is frozen the first time it is read at or
// after the window end. Ticks outside the window are ignored.
type RangeBuilder struct {
	mu         sync.RWMutex
	timeframes []models.Timeframe
	ranges     map[rangeKey]*rangeState
	swing      map[string]extremes
}

// NewRangeBuilder tracks ranges for the given timeframes. Unknown
// timeframes are dropped; none left means all of them.
func NewRangeBuilder(timeframes []models.Timeframe) *RangeBuilder {
	kept := make([]models.Timeframe, 0, len(timeframes))
	for _, tf := range timeframes {
		if models.IsValidTimeframe(tf) {
			kept = append(kept, tf)
		}
	}
	if len(kept) == 0 {
		kept = append(kept, models.Timeframes...)
	}
	return &RangeBuilder{
		timeframes: kept,
		ranges:     make(map[rangeKey]*rangeState),
		swing:      make(map[string]extremes),
	}
}

// Timeframes returns the tracked timeframes.
func (b *RangeBuilder) Timeframes() []models.Timeframe {
	return append([]models.Timeframe(nil), b.timeframes...)
}

// Observe records a trade price. It implements repository.TickSink.
func (b *RangeBuilder) Observe(t models.Tick) {
	if t.Price <= 0 || t.Symbol == "" || t.Time.IsZero() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.apply(t.Symbol, t.Time, t.Price, t.Price, t.Price)
	e, ok := b.swing[t.Symbol]
	if !ok {
		e = extremes{high: t.Price, low: t.Price}
	}
	if t.Price > e.high {
		e.high = t.Price
	}
	if t.Price < e.low {
		e.low = t.Price
	}
	b.swing[t.Symbol] = e
}

// ObserveBar folds a 1m bar into any window it starts in. Used to warm-start
// ranges from stored history.
func (b *RangeBuilder) ObserveBar(bar models.Bar) {
	if bar.High <= 0 || bar.Low <= 0 || bar.Symbol == "" {
		return
	}
	open := bar.Open
	if open <= 0 {
		open = bar.Low
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.apply(bar.Symbol, bar.Bucket, open, bar.High, bar.Low)
}

func (b *RangeBuilder) apply(symbol string, at time.Time, open, high, low float64) {
	if !session.IsTradingDay(at) {
		return
	}
	start := session.RegularOpen(at)
	if at.Before(start) {
		return
	}
	date := session.TradingDate(at)
	for _, tf := range b.timeframes {
		end := start.Add(tf.Duration())
		if !at.Before(end) {
			continue
		}
		st := b.stateLocked(rangeKey{symbol, tf, date}, end)
		if st.status != models.RangeForming {
			continue
		}
		if st.ticks == 0 {
			st.open, st.openAt, st.high, st.low = open, at, high, low
		} else {
			// open is the earliest print so arrival order does not matter
			if at.Before(st.openAt) {
				st.open, st.openAt = open, at
			}
			if high > st.high {
				st.high = high
			}
			if low < st.low {
				st.low = low
			}
		}
		st.ticks++
	}
}

func (b *RangeBuilder) stateLocked(k rangeKey, end time.Time) *rangeState {
	st, ok := b.ranges[k]
	if !ok {
		st = &rangeState{end: end, status: models.RangeForming}
		b.ranges[k] = st
	}
	return st
}

// Range returns the range for symbol/tf on the trading day of now, finalizing
// it when now has reached the window end. ok is false before the window
// starts and on non-trading days.
func (b *RangeBuilder) Range(symbol string, tf models.Timeframe, now time.Time) (models.OpeningRange, bool) {
	if !session.IsTradingDay(now) {
		return models.OpeningRange{}, false
	}
	start := session.RegularOpen(now)
	if now.Before(start) {
		return models.OpeningRange{}, false
	}
	k := rangeKey{symbol, tf, session.TradingDate(now)}

	b.mu.Lock()
	st := b.stateLocked(k, start.Add(tf.Duration()))
	if st.status == models.RangeForming && !now.Before(st.end) {
		if st.ticks == 0 {
			st.status = models.RangeInvalid
		} else {
			st.status = models.RangeValid
		}
	}
	out := toRange(k, *st)
	b.mu.Unlock()
	return out, true
}

func toRange(k rangeKey, st rangeState) models.OpeningRange {
	r := models.OpeningRange{
		Symbol:    k.symbol,
		Date:      k.date,
		Timeframe: k.tf,
		Status:    st.status,
		IsValid:   st.status == models.RangeValid,
		TickCount: st.ticks,
	}
	if st.ticks == 0 {
		return r
	}
	r.High, r.Low, r.OpenPrice = st.high, st.low, st.open
	r.RangeWidth = st.high - st.low
	if st.open > 0 {
		r.RangeWidthPct = r.RangeWidth / st.open * 100
	}
	return r
}

// TakeExtremes returns the high and low of ticks seen for symbol since the
// previous call and resets them.
func (b *RangeBuilder) TakeExtremes(symbol string) (high, low float64, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.swing[symbol]
	if ok {
		delete(b.swing, symbol)
	}
	return e.high, e.low, ok
}

// HasData reports whether any bar or tick landed in the symbol's window for
// the day of now.
func (b *RangeBuilder) HasData(symbol string, now time.Time) bool {
	date := session.TradingDate(now)
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, tf := range b.timeframes {
		if st, ok := b.ranges[rangeKey{symbol, tf, date}]; ok && st.ticks > 0 {
			return true
		}
	}
	return false
}

// Purge drops all state for trading dates before date (YYYY-MM-DD) and
// returns the number of ranges removed.
func (b *RangeBuilder) Purge(date string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for k := range b.ranges {
		if k.date < date {
			delete(b.ranges, k)
			n++
		}
	}
	return n
}

// Dates lists the trading dates with state, oldest first.
func (b *RangeBuilder) Dates() []string {
	b.mu.RLock()
	seen := make(map[string]struct{})
	for k := range b.ranges {
		seen[k.date] = struct{}{}
	}
	b.mu.RUnlock()
	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
