package orb

import (
	"math"
	"sort"
	"sync"
	"time"

	"ORBScanner/internal/domain/models"
)

// DefaultBufferPct is the close-beyond-boundary confirmation, as a fraction
// of range width.
const DefaultBufferPct = 0.0005

// Print is the price observation a breakout is tested against. High and Low
// are the extremes since the previous observation and equal Close when the
// source has nothing finer.
type Print struct {
	Close float64
	High  float64
	Low   float64
}

// Trigger holds the facts fixed at the moment a breakout first fires.
type Trigger struct {
	Symbol    string
	Timeframe models.Timeframe
	Date      string
	Direction models.Direction
	Type      models.BreakoutType
	Price     float64
	Phase     models.SessionPhase
	At        time.Time
	Gap       bool
}

// Detector decides breakout direction and type.
type Detector struct {
	BufferPct   float64
	DailyExpiry map[string]bool
	// Cutoff is the first phase at which a breakout is classed SWING.
	Cutoff models.SessionPhase
}

// NewDetector builds a Detector. A non-positive buffer falls back to
// DefaultBufferPct and PhaseClosed cutoff falls back to afternoon.
func NewDetector(bufferPct float64, dailyExpiry []string, cutoff models.SessionPhase) *Detector {
	if bufferPct <= 0 {
		bufferPct = DefaultBufferPct
	}
	if cutoff == models.PhaseClosed {
		cutoff = models.PhaseAfternoon
	}
	de := make(map[string]bool, len(dailyExpiry))
	for _, s := range dailyExpiry {
		de[s] = true
	}
	return &Detector{BufferPct: bufferPct, DailyExpiry: de, Cutoff: cutoff}
}

// Direction returns the breakout direction for p against a valid range r.
// Only the close confirms a side, so a gap print that wicked through both
// boundaries resolves to whichever side its close is beyond.
func (d *Detector) Direction(r models.OpeningRange, p Print) (models.Direction, bool) {
	if !r.IsValid {
		return "", false
	}
	buf := d.BufferPct * r.RangeWidth
	switch {
	case p.Close > r.High && p.Close-r.High >= buf:
		return models.Long, true
	case p.Close < r.Low && r.Low-p.Close >= buf:
		return models.Short, true
	}
	return "", false
}

// TwoSided reports whether p breached both boundaries of r.
func TwoSided(r models.OpeningRange, p Print) bool {
	hi, lo := math.Max(p.High, p.Close), p.Low
	if lo <= 0 || lo > p.Close {
		lo = p.Close
	}
	return hi > r.High && lo < r.Low
}

// Type classifies a breakout firing during phase.
func (d *Detector) Type(symbol string, phase models.SessionPhase) models.BreakoutType {
	if d.DailyExpiry[symbol] && phase.Before(d.Cutoff) {
		return models.ZeroDTE
	}
	return models.Swing
}

// Detect returns a new trigger when p breaks out of r.
func (d *Detector) Detect(r models.OpeningRange, p Print, phase models.SessionPhase, at time.Time) (Trigger, bool) {
	dir, ok := d.Direction(r, p)
	if !ok {
		return Trigger{}, false
	}
	return Trigger{
		Symbol:    r.Symbol,
		Timeframe: r.Timeframe,
		Date:      r.Date,
		Direction: dir,
		Type:      d.Type(r.Symbol, phase),
		Price:     p.Close,
		Phase:     phase,
		At:        at,
		Gap:       TwoSided(r, p),
	}, true
}

// Ledger keeps the first trigger per symbol, timeframe and trading date.
// Later detections never replace it, so a retrace back into the range does
// not undo a breakout.
type Ledger struct {
	mu       sync.RWMutex
	triggers map[rangeKey]Trigger
}

func NewLedger() *Ledger {
	return &Ledger{triggers: make(map[rangeKey]Trigger)}
}

// Record stores t unless a trigger already exists for its key, and returns
// whichever trigger is now on the ledger.
func (l *Ledger) Record(t Trigger) (Trigger, bool) {
	k := rangeKey{t.Symbol, t.Timeframe, t.Date}
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.triggers[k]; ok {
		return prev, false
	}
	l.triggers[k] = t
	return t, true
}

// Get returns the trigger for the key, if any.
func (l *Ledger) Get(symbol string, tf models.Timeframe, date string) (Trigger, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.triggers[rangeKey{symbol, tf, date}]
	return t, ok
}

// ForDate lists the triggers on date sorted by symbol then timeframe.
func (l *Ledger) ForDate(date string) []Trigger {
	l.mu.RLock()
	out := make([]Trigger, 0)
	for k, t := range l.triggers {
		if k.date == date {
			out = append(out, t)
		}
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Timeframe.Duration() < out[j].Timeframe.Duration()
	})
	return out
}

// Purge drops triggers older than date.
func (l *Ledger) Purge(date string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k := range l.triggers {
		if k.date < date {
			delete(l.triggers, k)
			n++
		}
	}
	return n
}
