package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ORBScanner/internal/domain/models"
	domrepo "ORBScanner/internal/domain/repository"
	domsvc "ORBScanner/internal/domain/service"
	"ORBScanner/internal/services/gamma"
	"ORBScanner/internal/services/orb"
	"ORBScanner/internal/services/scoring"
	"ORBScanner/internal/services/session"
	"ORBScanner/internal/services/sizing"
	"ORBScanner/internal/services/trade"
	applogger "ORBScanner/pkg/logger"
)

// ScannerConfig holds the orchestration knobs shared by both scanners.
type ScannerConfig struct {
	Symbols       []string
	Interval      time.Duration
	SymbolTimeout time.Duration
	Workers       int
	WarmStart     bool
}

func (c ScannerConfig) normalized() ScannerConfig {
	syms := make([]string, 0, len(c.Symbols))
	seen := make(map[string]bool, len(c.Symbols))
	for _, s := range c.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" && !seen[s] {
			seen[s] = true
			syms = append(syms, s)
		}
	}
	c.Symbols = syms
	if c.Interval <= 0 {
		c.Interval = 15 * time.Second
	}
	if c.SymbolTimeout <= 0 || c.SymbolTimeout >= c.Interval {
		c.SymbolTimeout = c.Interval * 2 / 3
	}
	if c.Workers < 1 {
		c.Workers = 4
	}
	return c
}

// Enrichment holds the optional sub-score collaborators. Any may be nil.
type Enrichment struct {
	Flow  domrepo.FlowSource
	Model domsvc.ModelScorer
	Index domrepo.IndexDataSource
}

// ORBScanner runs the range, breakout, score and trade pipeline for every
// tracked symbol once per cycle and publishes one snapshot per cycle.
type ORBScanner struct {
	cfg      ScannerConfig
	market   domrepo.MarketData
	enrich   Enrichment
	bars     domrepo.BarStore
	builder  *orb.RangeBuilder
	detector *orb.Detector
	ledger   *orb.Ledger
	synth    *trade.Synthesizer
	scorer   *scoring.Scorer
	store    domrepo.SnapshotStore
	pub      domrepo.ResultPublisher
	metrics  domrepo.Metrics
	clock    session.Clock
	l        *applogger.Logger

	invalidSeen sync.Map
}

// ORBScannerDeps groups the collaborators of NewORBScanner.
type ORBScannerDeps struct {
	Market    domrepo.MarketData
	Enrich    Enrichment
	Bars      domrepo.BarStore
	Builder   *orb.RangeBuilder
	Detector  *orb.Detector
	Ledger    *orb.Ledger
	Synth     *trade.Synthesizer
	Scorer    *scoring.Scorer
	Store     domrepo.SnapshotStore
	Publisher domrepo.ResultPublisher
	Metrics   domrepo.Metrics
	Clock     session.Clock
	Logger    *applogger.Logger
}

func NewORBScanner(cfg ScannerConfig, d ORBScannerDeps) *ORBScanner {
	s := &ORBScanner{
		cfg:      cfg.normalized(),
		market:   d.Market,
		enrich:   d.Enrich,
		bars:     d.Bars,
		builder:  d.Builder,
		detector: d.Detector,
		ledger:   d.Ledger,
		synth:    d.Synth,
		scorer:   d.Scorer,
		store:    d.Store,
		pub:      d.Publisher,
		metrics:  d.Metrics,
		clock:    d.Clock,
		l:        d.Logger,
	}
	if s.builder == nil {
		s.builder = orb.NewRangeBuilder(models.Timeframes)
	}
	if s.detector == nil {
		s.detector = orb.NewDetector(orb.DefaultBufferPct, nil, models.PhaseAfternoon)
	}
	if s.ledger == nil {
		s.ledger = orb.NewLedger()
	}
	if s.synth == nil {
		s.synth = trade.NewSynthesizer(nil)
	}
	if s.scorer == nil {
		s.scorer = scoring.NewScorer(scoring.DefaultWeights(), scoring.DefaultActiveThreshold)
	}
	if s.clock == nil {
		s.clock = session.SystemClock{}
	}
	if s.l == nil {
		s.l = applogger.Nop()
	}
	return s
}

// Builder exposes the range builder so tick feeds can write into it.
func (s *ORBScanner) Builder() *orb.RangeBuilder { return s.builder }

// Ledger exposes the breakout ledger for rollover.
func (s *ORBScanner) Ledger() *orb.Ledger { return s.ledger }

type symbolResult struct {
	symbol    string
	ranges    []models.OpeningRange
	breakouts []models.ORBBreakout
	pending   []models.PendingSetup
	warnings  []string
	err       error
}

// Scan runs one cycle. Per-symbol failures are reported in the result's
// Errors map; only a cycle where every symbol failed returns an error.
func (s *ORBScanner) Scan(ctx context.Context) (*models.ORBScanResult, error) {
	start := time.Now()
	now := s.clock.Now()
	phase := session.Classify(now)

	res := &models.ORBScanResult{
		Timestamp:     now,
		SessionPhase:  phase,
		Ranges:        []models.OpeningRange{},
		Breakouts:     []models.ORBBreakout{},
		PendingSetups: []models.PendingSetup{},
	}

	vixCtx, cancel := context.WithTimeout(ctx, s.cfg.SymbolTimeout)
	vix, err := s.market.VIX(vixCtx)
	cancel()
	if err != nil || vix <= 0 || math.IsNaN(vix) || math.IsInf(vix, 0) {
		res.PositionSizing = sizing.Unavailable()
		res.Warnings = append(res.Warnings, "vix unavailable: sizing defaults to EXTREME")
		s.metrics.RecordError("vix")
		s.l.Warn("vix unavailable", applogger.Error(err))
	} else {
		res.VIX = vix
		res.PositionSizing = sizing.Advise(vix)
		s.metrics.RecordVIX(vix)
	}

	results := make(chan symbolResult, len(s.cfg.Symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for _, sym := range s.cfg.Symbols {
		sym := sym
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, s.cfg.SymbolTimeout)
			defer cancel()
			results <- s.scanSymbol(sctx, sym, now, phase, res.VIX)
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
			s.l.Warn("symbol scan failed",
				applogger.String("symbol", r.symbol),
				applogger.Error(r.err),
			)
			continue
		}
		res.Ranges = append(res.Ranges, r.ranges...)
		res.Breakouts = append(res.Breakouts, r.breakouts...)
		res.PendingSetups = append(res.PendingSetups, r.pending...)
		res.Warnings = append(res.Warnings, r.warnings...)
	}
	sortResult(res)
	s.metrics.RecordScan("orb", time.Since(start).Seconds())

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if len(s.cfg.Symbols) > 0 && failed == len(s.cfg.Symbols) {
		return nil, fmt.Errorf("orb scan: %w", models.ErrMarketDataUnavailable)
	}

	if s.store != nil {
		if err := s.store.SaveORB(ctx, res); err != nil {
			s.metrics.RecordError("snapshot_save")
			s.l.Error("save orb snapshot", applogger.Error(err))
		}
	}
	if s.pub != nil {
		if err := s.pub.PublishORB(ctx, res); err != nil {
			s.metrics.RecordError("publish")
			s.l.Warn("publish orb snapshot", applogger.Error(err))
		}
	}
	return res, nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "fetch"
	}
}

func (s *ORBScanner) scanSymbol(ctx context.Context, symbol string, now time.Time, phase models.SessionPhase, vix float64) symbolResult {
	out := symbolResult{symbol: symbol}

	if s.cfg.WarmStart && s.bars != nil {
		if err := s.warmStart(ctx, symbol, now); err != nil {
			out.warnings = append(out.warnings, fmt.Sprintf("%s: warm start failed: %v", symbol, err))
		}
	}

	snap, err := s.market.Snapshot(ctx, symbol)
	if err != nil {
		out.err = err
		return out
	}
	if snap.Last <= 0 || math.IsNaN(snap.Last) || math.IsInf(snap.Last, 0) {
		out.err = fmt.Errorf("snapshot %s: unusable last price %v", symbol, snap.Last)
		return out
	}
	at := snap.Time
	if at.IsZero() || at.After(now) {
		at = now
	}
	s.builder.Observe(models.Tick{Symbol: symbol, Price: snap.Last, Time: at})

	p := orb.Print{Close: snap.Last, High: snap.High, Low: snap.Low}
	if hi, lo, ok := s.builder.TakeExtremes(symbol); ok {
		p.High = math.Max(p.High, hi)
		p.Low = math.Min(p.Low, lo)
	}
	p.High = math.Max(p.High, p.Close)
	if p.Low <= 0 || p.Low > p.Close {
		p.Low = p.Close
	}

	var ctxData *symbolContext
	for _, tf := range s.builder.Timeframes() {
		r, ok := s.builder.Range(symbol, tf, now)
		if !ok {
			continue
		}
		out.ranges = append(out.ranges, r)

		switch r.Status {
		case models.RangeForming:
			continue
		case models.RangeInvalid:
			s.reportInvalid(r)
			continue
		case models.RangeValid:
		}

		trig, exists := s.ledger.Get(symbol, tf, r.Date)
		if !exists {
			fresh, fired := s.detector.Detect(r, p, phase, now)
			if !fired {
				out.pending = append(out.pending, orb.Pending(r, snap.Last))
				continue
			}
			var created bool
			trig, created = s.ledger.Record(fresh)
			if created {
				s.metrics.RecordBreakout(symbol, tf, trig.Direction)
				s.l.Info("orb breakout",
					applogger.String("symbol", symbol),
					applogger.String("timeframe", string(tf)),
					applogger.String("direction", string(trig.Direction)),
					applogger.String("type", string(trig.Type)),
					applogger.Float64("price", trig.Price),
				)
			}
		}

		params, err := s.synth.Build(r, trig.Direction, trig.Price, trig.Type, trig.At)
		if err != nil {
			out.warnings = append(out.warnings, fmt.Sprintf("%s %s: %v", symbol, tf, err))
			s.l.Warn("degenerate breakout excluded",
				applogger.String("symbol", symbol),
				applogger.String("timeframe", string(tf)),
				applogger.Error(err),
			)
			continue
		}
		if ctxData == nil {
			ctxData = s.fetchContext(ctx, symbol, now)
			out.warnings = append(out.warnings, ctxData.warnings...)
		}
		out.breakouts = append(out.breakouts, s.assemble(r, trig, params, snap, now, vix, ctxData))
	}
	if err := ctx.Err(); err != nil {
		// a late worker contributes nothing rather than half-enriched entries
		return symbolResult{symbol: symbol, err: fmt.Errorf("scan %s: %w", symbol, err)}
	}
	return out
}

func (s *ORBScanner) reportInvalid(r models.OpeningRange) {
	key := r.Symbol + "|" + string(r.Timeframe) + "|" + r.Date
	if _, loaded := s.invalidSeen.LoadOrStore(key, struct{}{}); loaded {
		return
	}
	s.metrics.RecordInvalidRange(r.Symbol, r.Timeframe)
	s.l.Warn("opening range invalid: no ticks in window",
		applogger.String("symbol", r.Symbol),
		applogger.String("timeframe", string(r.Timeframe)),
		applogger.String("date", r.Date),
	)
}

// PurgeInvalid forgets invalid-range reports for dates before date.
func (s *ORBScanner) PurgeInvalid(date string) {
	s.invalidSeen.Range(func(k, _ interface{}) bool {
		if key := k.(string); key[strings.LastIndexByte(key, '|')+1:] < date {
			s.invalidSeen.Delete(k)
		}
		return true
	})
}

// warmStart seeds today's windows from stored 1m bars once per symbol and day.
func (s *ORBScanner) warmStart(ctx context.Context, symbol string, now time.Time) error {
	open := session.RegularOpen(now)
	if !session.IsTradingDay(now) || now.Before(open) || s.builder.HasData(symbol, now) {
		return nil
	}
	var longest time.Duration
	for _, tf := range s.builder.Timeframes() {
		if d := tf.Duration(); d > longest {
			longest = d
		}
	}
	to := open.Add(longest)
	if now.Before(to) {
		to = now
	}
	bars, err := s.bars.Bars(ctx, symbol, open, to)
	if err != nil {
		return err
	}
	for _, b := range bars {
		b.Symbol = symbol
		s.builder.ObserveBar(b)
	}
	s.l.Debug("warm start", applogger.String("symbol", symbol), applogger.Int("bars", len(bars)))
	return nil
}

// symbolContext is the optional per-symbol data used for sub-scores.
type symbolContext struct {
	flow     *models.OptionsFlow
	model    *models.ModelScore
	index    *models.IndexData
	warnings []string
}

func (s *ORBScanner) fetchContext(ctx context.Context, symbol string, now time.Time) *symbolContext {
	sc := &symbolContext{}
	if s.enrich.Flow != nil {
		if f, err := s.enrich.Flow.Flow(ctx, symbol); err == nil {
			sc.flow = &f
		} else {
			sc.warnings = append(sc.warnings, fmt.Sprintf("%s: options flow unavailable", symbol))
			s.l.Debug("flow unavailable", applogger.String("symbol", symbol), applogger.Error(err))
		}
	}
	if s.enrich.Index != nil {
		if idx, err := s.enrich.Index.IndexData(ctx, symbol); err == nil {
			sc.index = &idx
		} else {
			sc.warnings = append(sc.warnings, fmt.Sprintf("%s: index data unavailable", symbol))
			s.l.Debug("index data unavailable", applogger.String("symbol", symbol), applogger.Error(err))
		}
	}
	if s.enrich.Model != nil {
		if m, err := s.enrich.Model.Predict(ctx, symbol, modelFeatures(sc, now)); err == nil {
			sc.model = &m
		} else {
			sc.warnings = append(sc.warnings, fmt.Sprintf("%s: model score unavailable", symbol))
			s.l.Debug("model unavailable", applogger.String("symbol", symbol), applogger.Error(err))
		}
	}
	return sc
}

func modelFeatures(sc *symbolContext, now time.Time) map[string]float64 {
	f := map[string]float64{
		"session_minutes": now.Sub(session.RegularOpen(now)).Minutes(),
	}
	if sc.index != nil {
		f["rsi"] = sc.index.RSI
		f["change_pct"] = sc.index.ChangePct
	}
	if skew, ok := scoring.FlowSkew(sc.flow); ok {
		f["flow_skew"] = skew
	}
	return f
}

// expectedVolume pro-rates the full-day average to the elapsed part of the
// regular session so early-session relative volume is comparable.
func expectedVolume(avg float64, now time.Time) float64 {
	open := session.RegularOpen(now)
	total := session.RegularClose(now).Sub(open)
	frac := float64(now.Sub(open)) / float64(total)
	if frac < 1.0/78 {
		frac = 1.0 / 78
	}
	if frac > 1 {
		frac = 1
	}
	return avg * frac
}

func (s *ORBScanner) assemble(r models.OpeningRange, trig orb.Trigger, p trade.Params, snap models.MarketSnapshot, now time.Time, vix float64, sc *symbolContext) models.ORBBreakout {
	dir := trig.Direction
	pattern, notes := scoring.PatternScore(dir, snap.Last, sc.index)
	subs := scoring.SubScores{
		Volume:  scoring.VolumeScore(snap.Volume, expectedVolume(snap.AvgVolume, now)),
		Flow:    scoring.FlowScore(dir, sc.flow),
		Pattern: pattern,
		ML:      scoring.MLScore(dir, sc.model),
	}.Clamped()
	conf := s.scorer.Confidence(subs)

	gp := gamma.Classify(snap.Last, 0)
	if sc.flow != nil {
		gp = gamma.Classify(snap.Last, sc.flow.GammaFlip)
	}

	signals := make([]string, 0, len(notes)+4)
	signals = append(signals, notes...)
	if skew, ok := scoring.FlowSkew(sc.flow); ok {
		signals = append(signals, fmt.Sprintf("flow skew %+.2f", skew))
	} else {
		signals = append(signals, "flow: neutral (no data)")
	}
	if sc.model == nil {
		signals = append(signals, "model: neutral (no data)")
	}
	if gp.Available {
		signals = append(signals, fmt.Sprintf("gamma %s (%s), %.2f%% from flip", gp.Zone, gp.Regime, gp.PctDistance))
	}
	if trig.Gap {
		signals = append(signals, "gap print through both boundaries; close decides direction")
	}
	if ret := retraced(r, dir, snap.Last); ret {
		signals = append(signals, "price back inside range")
	}

	return models.ORBBreakout{
		ID:              trade.BreakoutID(r.Symbol, r.Timeframe, r.Date),
		Symbol:          r.Symbol,
		Direction:       dir,
		BreakoutType:    trig.Type,
		Timeframe:       r.Timeframe,
		BreakoutPrice:   trig.Price,
		CurrentPrice:    snap.Last,
		RangeHigh:       r.High,
		RangeLow:        r.Low,
		Entry:           p.Entry,
		Stop:            p.Stop,
		Target1:         p.Target1,
		Target2:         p.Target2,
		RiskReward:      p.RiskReward,
		SuggestedStrike: p.Strike,
		SuggestedExpiry: p.Expiry,
		OptionType:      p.OptionType,
		Confidence:      conf,
		VolumeScore:     subs.Volume,
		FlowScore:       subs.Flow,
		PatternScore:    subs.Pattern,
		MLScore:         subs.ML,
		VIX:             vix,
		SessionPhase:    trig.Phase,
		GammaZone:       gp.Zone,
		Signals:         signals,
		Thesis:          trade.Thesis(r, dir, trig.Type, p, conf, gp.Zone),
		IsActive:        s.scorer.IsActive(conf),
		Timestamp:       trig.At,
	}
}

func retraced(r models.OpeningRange, dir models.Direction, price float64) bool {
	if dir == models.Long {
		return price <= r.High
	}
	return price >= r.Low
}

func tfOrder(tf models.Timeframe) time.Duration { return tf.Duration() }

func sortResult(res *models.ORBScanResult) {
	sort.Slice(res.Ranges, func(i, j int) bool {
		a, b := res.Ranges[i], res.Ranges[j]
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return tfOrder(a.Timeframe) < tfOrder(b.Timeframe)
	})
	sort.Slice(res.Breakouts, func(i, j int) bool {
		a, b := res.Breakouts[i], res.Breakouts[j]
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return tfOrder(a.Timeframe) < tfOrder(b.Timeframe)
	})
	sort.Slice(res.PendingSetups, func(i, j int) bool {
		a, b := res.PendingSetups[i], res.PendingSetups[j]
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return tfOrder(a.Timeframe) < tfOrder(b.Timeframe)
	})
	sort.Strings(res.Warnings)
}

// Run scans immediately and then on every tick until ctx ends.
func (s *ORBScanner) Run(ctx context.Context, ticker session.Ticker) error {
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

func (s *ORBScanner) runOnce(ctx context.Context) {
	res, err := s.Scan(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.metrics.RecordError("orb_scan")
			s.l.Error("orb scan failed", applogger.Error(err))
		}
		return
	}
	s.l.Debug("orb scan",
		applogger.String("phase", res.SessionPhase.String()),
		applogger.Int("ranges", len(res.Ranges)),
		applogger.Int("breakouts", len(res.Breakouts)),
		applogger.Int("pending", len(res.PendingSetups)),
		applogger.Int("errors", len(res.Errors)),
	)
}
