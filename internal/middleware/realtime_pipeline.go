package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"ORBScanner/internal/domain/models"
	domrepo "ORBScanner/internal/domain/repository"
	"ORBScanner/internal/service/ratelimit"
	"ORBScanner/internal/services/session"
)

// DefaultReanchorAfter is how many agreeing outliers in a row move the
// reference price.
const DefaultReanchorAfter = 3

// Validation failures returned by Process.
var (
	ErrInvalidTick  = errors.New("invalid tick")
	ErrUntracked    = errors.New("untracked symbol")
	ErrPriceOutlier = errors.New("price outlier")
)

// RealtimePipeline sits between a tick source and the range builder. It
// validates, drops outlier prints, throttles per symbol and forwards.
// Prints that set a new session high or low are never throttled.
type RealtimePipeline struct {
	sink     domrepo.TickSink
	metrics  domrepo.Metrics
	limiter  *ratelimit.Limiter
	tracked  map[string]bool
	maxJump  float64
	reanchor int

	mu    sync.Mutex
	state map[string]*symbolState
}

// symbolState is reset when the trading date changes.
type symbolState struct {
	date      string
	last      float64
	high, low float64
	suspect   float64
	suspectN  int
}

type PipelineOption func(*RealtimePipeline)

// WithRate throttles each symbol to perSecond ticks with burst.
func WithRate(perSecond float64, burst int) PipelineOption {
	return func(p *RealtimePipeline) {
		p.limiter = ratelimit.New(perSecond, burst)
	}
}

// WithSymbols ignores ticks for symbols outside the list.
func WithSymbols(symbols []string) PipelineOption {
	return func(p *RealtimePipeline) {
		p.tracked = make(map[string]bool, len(symbols))
		for _, s := range symbols {
			p.tracked[strings.ToUpper(s)] = true
		}
	}
}

// WithMaxJump rejects prints more than frac away from the previous accepted
// price for the symbol. Zero disables the check.
func WithMaxJump(frac float64) PipelineOption {
	return func(p *RealtimePipeline) {
		p.maxJump = frac
	}
}

// WithReanchorAfter accepts a new price level once n consecutive outliers
// agree with each other within the max jump.
func WithReanchorAfter(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.reanchor = n
		}
	}
}

// NewRealtimePipeline creates a new pipeline.
func NewRealtimePipeline(sink domrepo.TickSink, metrics domrepo.Metrics, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		sink:     sink,
		metrics:  metrics,
		limiter:  ratelimit.New(0, 1),
		reanchor: DefaultReanchorAfter,
		state:    make(map[string]*symbolState),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process validates t and forwards it to the sink. Throttled ticks are
// dropped silently.
func (p *RealtimePipeline) Process(_ context.Context, t models.Tick) error {
	t.Symbol = strings.ToUpper(strings.TrimSpace(t.Symbol))
	if err := validateTick(t); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.tracked != nil && !p.tracked[t.Symbol] {
		return fmt.Errorf("%w: %s", ErrUntracked, t.Symbol)
	}
	extreme, err := p.admit(t)
	if err != nil {
		p.metrics.RecordError("pipeline_outlier")
		return err
	}
	// extremes still spend a token so the throttle sees them
	if allowed := p.limiter.AllowAt(t.Symbol, t.Time); !allowed && !extreme {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}
	p.sink.Observe(t)
	p.metrics.RecordTick(t.Symbol)
	return nil
}

// admit applies the jump check and reports whether t sets a new session
// extreme for its symbol.
func (p *RealtimePipeline) admit(t models.Tick) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	date := session.TradingDate(t.Time)
	st, ok := p.state[t.Symbol]
	if !ok || st.date != date {
		st = &symbolState{date: date}
		p.state[t.Symbol] = st
	}

	if st.last > 0 && p.jumped(t.Price, st.last) {
		if st.suspectN > 0 && !p.jumped(t.Price, st.suspect) {
			st.suspectN++
		} else {
			st.suspect, st.suspectN = t.Price, 1
		}
		if st.suspectN < p.reanchor {
			return false, fmt.Errorf("%w: %s %v after %v", ErrPriceOutlier, t.Symbol, t.Price, st.last)
		}
		// the new level held; the old reference was the bad print
		st.high, st.low = 0, 0
	}
	st.last, st.suspectN = t.Price, 0

	extreme := st.high == 0 || t.Price > st.high || t.Price < st.low
	if st.high == 0 || t.Price > st.high {
		st.high = t.Price
	}
	if st.low == 0 || t.Price < st.low {
		st.low = t.Price
	}
	return extreme, nil
}

func (p *RealtimePipeline) jumped(price, ref float64) bool {
	return p.maxJump > 0 && math.Abs(price/ref-1) > p.maxJump
}

func validateTick(t models.Tick) error {
	switch {
	case t.Symbol == "":
		return fmt.Errorf("%w: symbol empty", ErrInvalidTick)
	case t.Time.IsZero():
		return fmt.Errorf("%w: timestamp missing", ErrInvalidTick)
	case math.IsNaN(t.Price) || math.IsInf(t.Price, 0) || t.Price <= 0:
		return fmt.Errorf("%w: price %v", ErrInvalidTick, t.Price)
	case t.Volume < 0:
		return fmt.Errorf("%w: negative volume", ErrInvalidTick)
	}
	return nil
}
