// Package yahoo implements the market-data collaborators on Yahoo Finance.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"

	"ORBScanner/internal/domain/models"
	domrepo "ORBScanner/internal/domain/repository"
	"ORBScanner/internal/services/indicators"
	applogger "ORBScanner/pkg/logger"
)

// DefaultVIXSymbol is the Yahoo ticker of the CBOE volatility index.
const DefaultVIXSymbol = "^VIX"

// ErrNoQuote is returned when Yahoo answers without a usable price.
var ErrNoQuote = errors.New("yahoo: no quote")

// Cash indexes trade under caret tickers on Yahoo.
var indexTickers = map[string]string{
	"SPX": "^GSPC",
	"NDX": "^NDX",
	"RUT": "^RUT",
	"XSP": "^XSP",
	"DJX": "^DJI",
	"VIX": "^VIX",
}

// Ticker maps a scanner symbol to its Yahoo ticker.
func Ticker(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if t, ok := indexTickers[s]; ok {
		return t
	}
	return s
}

type quoteFunc func(symbol string) (*finance.Quote, error)
type chartFunc func(p *chart.Params) ([]models.Bar, error)

// Client implements MarketData and IndexDataSource.
type Client struct {
	vixSymbol   string
	historyDays int
	getQuote    quoteFunc
	getChart    chartFunc
	now         func() time.Time
	l           *applogger.Logger
}

var (
	_ domrepo.MarketData      = (*Client)(nil)
	_ domrepo.IndexDataSource = (*Client)(nil)
)

// NewClient uses historyDays of daily bars for RSI and MACD.
func NewClient(vixSymbol string, historyDays int, l *applogger.Logger) *Client {
	if vixSymbol == "" {
		vixSymbol = DefaultVIXSymbol
	}
	if historyDays < 60 {
		historyDays = 60
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Client{
		vixSymbol:   vixSymbol,
		historyDays: historyDays,
		getQuote:    quote.Get,
		getChart:    dailyBars,
		now:         time.Now,
		l:           l,
	}
}

func dailyBars(p *chart.Params) ([]models.Bar, error) {
	iter := chart.Get(p)
	out := make([]models.Bar, 0, 128)
	for iter.Next() {
		b := iter.Bar()
		out = append(out, models.Bar{
			Bucket: time.Unix(int64(b.Timestamp), 0).UTC(),
			Symbol: p.Symbol,
			Open:   b.Open.InexactFloat64(),
			High:   b.High.InexactFloat64(),
			Low:    b.Low.InexactFloat64(),
			Close:  b.Close.InexactFloat64(),
			Volume: float64(b.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// finance-go has no context support, so calls run in a goroutine and the
// caller stops waiting when ctx ends.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (c *Client) quote(ctx context.Context, ticker string) (*finance.Quote, error) {
	q, err := call(ctx, func() (*finance.Quote, error) { return c.getQuote(ticker) })
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", ticker, err)
	}
	if q == nil || q.RegularMarketPrice <= 0 {
		return nil, fmt.Errorf("quote %s: %w", ticker, ErrNoQuote)
	}
	return q, nil
}

// Snapshot returns the latest quote. High and Low equal Last because a
// quote carries only day extremes, not extremes since the previous poll.
func (c *Client) Snapshot(ctx context.Context, symbol string) (models.MarketSnapshot, error) {
	q, err := c.quote(ctx, Ticker(symbol))
	if err != nil {
		return models.MarketSnapshot{}, err
	}
	ts := c.now()
	if q.RegularMarketTime > 0 {
		ts = time.Unix(int64(q.RegularMarketTime), 0)
	}
	avg := float64(q.AverageDailyVolume10Day)
	if avg == 0 {
		avg = float64(q.AverageDailyVolume3Month)
	}
	return models.MarketSnapshot{
		Symbol:        symbol,
		Last:          q.RegularMarketPrice,
		High:          q.RegularMarketPrice,
		Low:           q.RegularMarketPrice,
		Open:          q.RegularMarketOpen,
		PreviousClose: q.RegularMarketPreviousClose,
		Volume:        float64(q.RegularMarketVolume),
		AvgVolume:     avg,
		Time:          ts,
	}, nil
}

// VIX returns the last volatility index level.
func (c *Client) VIX(ctx context.Context) (float64, error) {
	q, err := c.quote(ctx, c.vixSymbol)
	if err != nil {
		return 0, err
	}
	return q.RegularMarketPrice, nil
}

// IndexData combines the live quote with indicators over daily history.
// Pivots come from the last completed daily bar before today.
func (c *Client) IndexData(ctx context.Context, symbol string) (models.IndexData, error) {
	ticker := Ticker(symbol)
	q, err := c.quote(ctx, ticker)
	if err != nil {
		return models.IndexData{}, err
	}

	now := c.now()
	start := now.AddDate(0, 0, -c.historyDays)
	bars, err := call(ctx, func() ([]models.Bar, error) {
		return c.getChart(&chart.Params{
			Symbol:   ticker,
			Start:    datetime.New(&start),
			End:      datetime.New(&now),
			Interval: datetime.OneDay,
		})
	})
	if err != nil {
		return models.IndexData{}, fmt.Errorf("chart %s: %w", ticker, err)
	}

	out := models.IndexData{
		Symbol:     symbol,
		Price:      q.RegularMarketPrice,
		Change:     q.RegularMarketChange,
		ChangePct:  q.RegularMarketChangePercent,
		RSI:        50,
		MACDSignal: models.MACDNeutral,
		Volume:     float64(q.RegularMarketVolume),
		Timestamp:  now,
	}

	closes := indicators.Closes(bars)
	if rsi, err := indicators.RSI(closes, indicators.RSIPeriod); err == nil {
		out.RSI = rsi
	}
	if len(bars) <= indicators.RSIPeriod {
		c.l.Debug("short daily history", applogger.String("symbol", symbol), applogger.Int("bars", len(bars)))
	}
	out.MACDSignal = indicators.MACDSignal(closes)
	if prev, ok := priorBar(bars, now); ok {
		out.Pivots = indicators.Pivots(prev)
	}
	return out, nil
}

// priorBar returns the newest bar dated before today's trading date (UTC
// day boundaries, matching Yahoo daily timestamps).
func priorBar(bars []models.Bar, now time.Time) (models.Bar, bool) {
	today := now.UTC().Format(time.DateOnly)
	for i := len(bars) - 1; i >= 0; i-- {
		if bars[i].Bucket.UTC().Format(time.DateOnly) < today {
			return bars[i], true
		}
	}
	return models.Bar{}, false
}
