// Package marketdata decorates market-data collaborators with a circuit breaker.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"ORBScanner/internal/domain/models"
	domrepo "ORBScanner/internal/domain/repository"
	applogger "ORBScanner/pkg/logger"
)

// ErrCircuitOpen is returned without calling the provider while the breaker is open.
var ErrCircuitOpen = errors.New("market data circuit open")

// BreakerConfig tunes when the provider is considered down.
type BreakerConfig struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenRequests    uint32
}

// Breaker guards MarketData and IndexDataSource with one breaker for the
// provider. Provider-wide outages trip it; single symbol failures rarely do.
type Breaker struct {
	md  domrepo.MarketData
	idx domrepo.IndexDataSource
	cb  *gobreaker.CircuitBreaker
}

var (
	_ domrepo.MarketData      = (*Breaker)(nil)
	_ domrepo.IndexDataSource = (*Breaker)(nil)
)

// NewBreaker wraps md and idx; idx may be nil.
func NewBreaker(md domrepo.MarketData, idx domrepo.IndexDataSource, cfg BreakerConfig, l *applogger.Logger) *Breaker {
	if cfg.Name == "" {
		cfg.Name = "market-data"
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}
	if l == nil {
		l = applogger.Nop()
	}
	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("market data breaker state change",
				applogger.String("breaker", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()),
			)
		},
	}
	return &Breaker{md: md, idx: idx, cb: gobreaker.NewCircuitBreaker(st)}
}

// State returns the breaker state name.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func (b *Breaker) execute(fn func() (interface{}, error)) (interface{}, error) {
	v, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	return v, err
}

func (b *Breaker) Snapshot(ctx context.Context, symbol string) (models.MarketSnapshot, error) {
	v, err := b.execute(func() (interface{}, error) { return b.md.Snapshot(ctx, symbol) })
	if err != nil {
		return models.MarketSnapshot{}, err
	}
	return v.(models.MarketSnapshot), nil
}

func (b *Breaker) VIX(ctx context.Context) (float64, error) {
	v, err := b.execute(func() (interface{}, error) { return b.md.VIX(ctx) })
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (b *Breaker) IndexData(ctx context.Context, symbol string) (models.IndexData, error) {
	if b.idx == nil {
		return models.IndexData{}, fmt.Errorf("index data: %w", models.ErrUnknownSymbol)
	}
	v, err := b.execute(func() (interface{}, error) { return b.idx.IndexData(ctx, symbol) })
	if err != nil {
		return models.IndexData{}, err
	}
	return v.(models.IndexData), nil
}
