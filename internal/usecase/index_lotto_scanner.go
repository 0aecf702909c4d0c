package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"ORBScanner/internal/domain/models"
	domrepo "ORBScanner/internal/domain/repository"
	"ORBScanner/internal/services/session"
	"ORBScanner/internal/services/sizing"
	"ORBScanner/internal/services/trade"
	applogger "ORBScanner/pkg/logger"
)

// LottoConfig tunes lotto play derivation.
type LottoConfig struct {
	MinConfidence float64
	StrikeOffset  int
}

// IndexLottoScanner publishes index indicator data and far-OTM lotto ideas
// derived from the latest ORB snapshot.
type IndexLottoScanner struct {
	cfg     ScannerConfig
	lotto   LottoConfig
	index   domrepo.IndexDataSource
	store   domrepo.SnapshotStore
	synth   *trade.Synthesizer
	metrics domrepo.Metrics
	clock   session.Clock
	l       *applogger.Logger
}

func NewIndexLottoScanner(cfg ScannerConfig, lotto LottoConfig, index domrepo.IndexDataSource, store domrepo.SnapshotStore, synth *trade.Synthesizer, m domrepo.Metrics, clock session.Clock, l *applogger.Logger) *IndexLottoScanner {
	if lotto.MinConfidence <= 0 {
		lotto.MinConfidence = 50
	}
	if lotto.StrikeOffset < 0 {
		lotto.StrikeOffset = 0
	}
	if synth == nil {
		synth = trade.NewSynthesizer(nil)
	}
	if clock == nil {
		clock = session.SystemClock{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &IndexLottoScanner{
		cfg:     cfg.normalized(),
		lotto:   lotto,
		index:   index,
		store:   store,
		synth:   synth,
		metrics: m,
		clock:   clock,
		l:       l,
	}
}

type indexResult struct {
	symbol string
	data   models.IndexData
	err    error
}

// Scan runs one index-lotto cycle.
func (s *IndexLottoScanner) Scan(ctx context.Context) (*models.IndexLottoResult, error) {
	start := time.Now()
	now := s.clock.Now()
	phase := session.Classify(now)
	res := &models.IndexLottoResult{
		Timestamp:    now,
		SessionPhase: phase,
		IndexData:    []models.IndexData{},
		LottoPlays:   []models.LottoPlay{},
	}

	results := make(chan indexResult, len(s.cfg.Symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for _, sym := range s.cfg.Symbols {
		sym := sym
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, s.cfg.SymbolTimeout)
			defer cancel()
			d, err := s.index.IndexData(sctx, sym)
			results <- indexResult{symbol: sym, data: d, err: err}
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	failed := 0
	for r := range results {
		if r.err != nil {
			failed++
			if res.Errors == nil {
				res.Errors = make(map[string]string)
			}
			res.Errors[r.symbol] = r.err.Error()
			s.metrics.RecordSymbolError(r.symbol, errorKind(r.err))
			continue
		}
		r.data.Symbol = r.symbol
		res.IndexData = append(res.IndexData, r.data)
	}
	sort.Slice(res.IndexData, func(i, j int) bool { return res.IndexData[i].Symbol < res.IndexData[j].Symbol })
	s.metrics.RecordScan("index_lotto", time.Since(start).Seconds())

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if len(s.cfg.Symbols) > 0 && failed == len(s.cfg.Symbols) {
		return nil, fmt.Errorf("index lotto scan: %w", models.ErrMarketDataUnavailable)
	}

	orbRes, err := s.store.LatestORB(ctx)
	switch {
	case err == nil:
		res.LottoPlays = s.plays(orbRes, phase, now)
	case errors.Is(err, models.ErrSnapshotNotReady):
		s.l.Debug("no orb snapshot yet for lotto plays")
	default:
		s.metrics.RecordError("snapshot_load")
		s.l.Warn("load orb snapshot", applogger.Error(err))
	}

	if err := s.store.SaveIndexLotto(ctx, res); err != nil {
		s.metrics.RecordError("snapshot_save")
		s.l.Error("save index lotto snapshot", applogger.Error(err))
	}
	return res, nil
}

// plays turns breakouts clearing the lotto bar into far-OTM contract ideas.
// Breakouts from a previous trading day are ignored.
func (s *IndexLottoScanner) plays(orbRes *models.ORBScanResult, phase models.SessionPhase, now time.Time) []models.LottoPlay {
	ps := orbRes.PositionSizing
	if ps.RiskLevel == "" {
		ps = sizing.Unavailable()
	}
	maxContracts := ps.MaxContracts / 2
	if maxContracts < 1 {
		maxContracts = 1
	}
	today := session.TradingDate(now)

	out := []models.LottoPlay{}
	for _, b := range orbRes.Breakouts {
		if b.Confidence < s.lotto.MinConfidence {
			continue
		}
		if session.TradingDate(b.Timestamp) != today {
			continue
		}
		strike := s.synth.Strike(b.Symbol, b.Entry, b.Direction, s.lotto.StrikeOffset)
		out = append(out, models.LottoPlay{
			ID:              trade.LottoID(b.ID, strike),
			Symbol:          b.Symbol,
			Direction:       b.Direction,
			OptionType:      trade.OptionFor(b.Direction),
			Strike:          strike,
			Expiry:          b.SuggestedExpiry,
			BreakoutType:    b.BreakoutType,
			UnderlyingPrice: b.CurrentPrice,
			TargetPrice:     b.Target1,
			StopPrice:       b.Stop,
			Confidence:      b.Confidence,
			RiskLevel:       ps.RiskLevel,
			MaxContracts:    maxContracts,
			IsActive:        b.IsActive && phase.IsRegular(),
			Thesis: fmt.Sprintf("%s %s lotto: %s %.2f %s off %s ORB break at %.2f, target %.2f",
				b.Symbol, b.Direction, b.SuggestedExpiry, strike, trade.OptionFor(b.Direction), b.Timeframe, b.BreakoutPrice, b.Target1),
			Timestamp: b.Timestamp,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Run scans immediately and then on every tick until ctx ends.
func (s *IndexLottoScanner) Run(ctx context.Context, ticker session.Ticker) error {
	defer ticker.Stop()
	s.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			s.runOnce(ctx)
		}
	}
}

func (s *IndexLottoScanner) runOnce(ctx context.Context) {
	res, err := s.Scan(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.metrics.RecordError("index_lotto_scan")
			s.l.Error("index lotto scan failed", applogger.Error(err))
		}
		return
	}
	s.l.Debug("index lotto scan",
		applogger.Int("indices", len(res.IndexData)),
		applogger.Int("plays", len(res.LottoPlays)),
	)
}
