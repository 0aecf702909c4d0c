package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ORBScanner/internal/domain/models"
	"ORBScanner/internal/services/orb"
	"ORBScanner/internal/services/scoring"
	"ORBScanner/internal/services/session"
	"ORBScanner/internal/services/trade"
	"ORBScanner/pkg/metrics"
)

type fakeMarket struct {
	mu     sync.Mutex
	snaps  map[string]models.MarketSnapshot
	errs   map[string]error
	block  map[string]bool
	vix    float64
	vixErr error
	calls  map[string]int
}

func newFakeMarket(vix float64) *fakeMarket {
	return &fakeMarket{
		snaps: map[string]models.MarketSnapshot{},
		errs:  map[string]error{},
		block: map[string]bool{},
		vix:   vix,
		calls: map[string]int{},
	}
}

func (m *fakeMarket) set(symbol string, last float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[symbol] = models.MarketSnapshot{Symbol: symbol, Last: last, High: last, Low: last}
}

func (m *fakeMarket) Snapshot(ctx context.Context, symbol string) (models.MarketSnapshot, error) {
	m.mu.Lock()
	m.calls[symbol]++
	blocked, err, snap := m.block[symbol], m.errs[symbol], m.snaps[symbol]
	m.mu.Unlock()
	if blocked {
		<-ctx.Done()
		return models.MarketSnapshot{}, ctx.Err()
	}
	if err != nil {
		return models.MarketSnapshot{}, err
	}
	return snap, nil
}

func (m *fakeMarket) VIX(context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vix, m.vixErr
}

type memStore struct {
	mu    sync.Mutex
	orb   *models.ORBScanResult
	lotto *models.IndexLottoResult
}

func (s *memStore) SaveORB(_ context.Context, r *models.ORBScanResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orb = r
	return nil
}

func (s *memStore) LatestORB(context.Context) (*models.ORBScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.orb == nil {
		return nil, models.ErrSnapshotNotReady
	}
	return s.orb, nil
}

func (s *memStore) SaveIndexLotto(_ context.Context, r *models.IndexLottoResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lotto = r
	return nil
}

func (s *memStore) LatestIndexLotto(context.Context) (*models.IndexLottoResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lotto == nil {
		return nil, models.ErrSnapshotNotReady
	}
	return s.lotto, nil
}

type fakeFlow struct{ f models.OptionsFlow }

func (f fakeFlow) Flow(_ context.Context, symbol string) (models.OptionsFlow, error) {
	out := f.f
	out.Symbol = symbol
	return out, nil
}

// slowFlow never answers for the listed symbols before the caller gives up.
type slowFlow struct{ slow map[string]bool }

func (f slowFlow) Flow(ctx context.Context, symbol string) (models.OptionsFlow, error) {
	if f.slow[symbol] {
		<-ctx.Done()
		return models.OptionsFlow{}, ctx.Err()
	}
	return models.OptionsFlow{Symbol: symbol, CallPremium: 1, PutPremium: 1}, nil
}

type fakeModel struct{ p float64 }

func (m fakeModel) Predict(_ context.Context, symbol string, _ map[string]float64) (models.ModelScore, error) {
	return models.ModelScore{Symbol: symbol, ProbaUp: m.p, Confidence: 0.8, Model: "test"}, nil
}

type fakeIndex struct {
	errs map[string]error
}

func (f fakeIndex) IndexData(_ context.Context, symbol string) (models.IndexData, error) {
	if err := f.errs[symbol]; err != nil {
		return models.IndexData{}, err
	}
	return models.IndexData{Symbol: symbol, Price: 100, RSI: 55, MACDSignal: models.MACDBullish}, nil
}

type fakeBars struct{ bars []models.Bar }

func (f fakeBars) Bars(_ context.Context, _ string, from, to time.Time) ([]models.Bar, error) {
	var out []models.Bar
	for _, b := range f.bars {
		if !b.Bucket.Before(from) && b.Bucket.Before(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func et(hh, mm int) time.Time {
	return time.Date(2026, 10, 14, hh, mm, 0, 0, session.Eastern())
}

// seed writes opening ticks so every window settles to [99, 101].
func seed(b *orb.RangeBuilder, symbol string) {
	for _, tk := range []struct {
		at    time.Time
		price float64
	}{
		{et(9, 30), 100},
		{et(9, 33), 101},
		{et(9, 40), 99},
		{et(9, 44), 100.5},
	} {
		b.Observe(models.Tick{Symbol: symbol, Price: tk.price, Time: tk.at})
	}
}

type harness struct {
	market *fakeMarket
	store  *memStore
	s      *ORBScanner
}

func newHarness(t *testing.T, now time.Time, symbols []string, enrich Enrichment) *harness {
	t.Helper()
	clock := session.FixedClock(now)
	h := &harness{market: newFakeMarket(18), store: &memStore{}}
	h.s = NewORBScanner(ScannerConfig{
		Symbols:       symbols,
		Interval:      time.Second,
		SymbolTimeout: 100 * time.Millisecond,
		Workers:       2,
	}, ORBScannerDeps{
		Market:   h.market,
		Enrich:   enrich,
		Detector: orb.NewDetector(orb.DefaultBufferPct, []string{"SPY", "QQQ"}, models.PhaseAfternoon),
		Store:    h.store,
		Metrics:  metrics.Nop{},
		Clock:    clock,
	})
	return h
}

func TestORBScanDetectsBreakouts(t *testing.T) {
	h := newHarness(t, et(10, 45), []string{"SPY", "QQQ"}, Enrichment{})
	seed(h.s.Builder(), "SPY")
	seed(h.s.Builder(), "QQQ")
	h.market.set("SPY", 102)
	h.market.set("QQQ", 100.2)

	res, err := h.s.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.PhaseMorningSession, res.SessionPhase)
	assert.Equal(t, models.RiskMedium, res.PositionSizing.RiskLevel)
	require.Len(t, res.Ranges, 6)
	assert.Equal(t, "QQQ", res.Ranges[0].Symbol)
	assert.Equal(t, models.TF15m, res.Ranges[0].Timeframe)

	require.Len(t, res.Breakouts, 3)
	for _, b := range res.Breakouts {
		assert.Equal(t, "SPY", b.Symbol)
		assert.Equal(t, models.Long, b.Direction)
		assert.Equal(t, models.ZeroDTE, b.BreakoutType)
		assert.Equal(t, 102.0, b.Entry)
		assert.Equal(t, 99.0, b.Stop)
		assert.Equal(t, 104.0, b.Target1)
		assert.Equal(t, 106.0, b.Target2)
		assert.Equal(t, 103.0, b.SuggestedStrike)
		assert.Equal(t, "2026-10-14", b.SuggestedExpiry)
		assert.Equal(t, models.Call, b.OptionType)
		assert.Equal(t, trade.BreakoutID("SPY", b.Timeframe, "2026-10-14"), b.ID)
		assert.InDelta(t, scoring.Neutral, b.Confidence, 1e-9)
		assert.False(t, b.IsActive)
		assert.Equal(t, models.GammaUnavailable, b.GammaZone)
	}
	require.Len(t, res.PendingSetups, 3)
	assert.Equal(t, "QQQ", res.PendingSetups[0].Symbol)

	saved, err := h.store.LatestORB(context.Background())
	require.NoError(t, err)
	assert.Same(t, res, saved)
}

func TestORBScanIsRepeatable(t *testing.T) {
	h := newHarness(t, et(10, 45), []string{"SPY"}, Enrichment{})
	seed(h.s.Builder(), "SPY")
	h.market.set("SPY", 102)

	first, err := h.s.Scan(context.Background())
	require.NoError(t, err)
	second, err := h.s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestORBBreakoutSurvivesRetrace(t *testing.T) {
	h := newHarness(t, et(10, 45), []string{"SPY"}, Enrichment{})
	seed(h.s.Builder(), "SPY")
	h.market.set("SPY", 102)
	first, err := h.s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Breakouts, 3)

	h.market.set("SPY", 100)
	second, err := h.s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, second.Breakouts, 3)
	assert.Empty(t, second.PendingSetups)
	for i, b := range second.Breakouts {
		assert.Equal(t, first.Breakouts[i].ID, b.ID)
		assert.Equal(t, 102.0, b.BreakoutPrice)
		assert.Equal(t, 100.0, b.CurrentPrice)
		assert.Contains(t, b.Signals, "price back inside range")
	}
}

func TestORBScanZeroTickRangeIsExcluded(t *testing.T) {
	h := newHarness(t, et(10, 45), []string{"IWM"}, Enrichment{})
	h.market.set("IWM", 200)

	res, err := h.s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Ranges, 3)
	for _, r := range res.Ranges {
		assert.Equal(t, models.RangeInvalid, r.Status)
		assert.False(t, r.IsValid)
	}
	assert.Empty(t, res.Breakouts)
	assert.Empty(t, res.PendingSetups)
}

func TestORBScanFormingRangeHasNoSignals(t *testing.T) {
	h := newHarness(t, et(9, 40), []string{"SPY"}, Enrichment{})
	h.s.Builder().Observe(models.Tick{Symbol: "SPY", Price: 100, Time: et(9, 31)})
	h.market.set("SPY", 105)

	res, err := h.s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Ranges, 3)
	for _, r := range res.Ranges {
		assert.Equal(t, models.RangeForming, r.Status)
	}
	assert.Empty(t, res.Breakouts)
	assert.Empty(t, res.PendingSetups)
}

func TestORBScanDegenerateRangeWarns(t *testing.T) {
	h := newHarness(t, et(10, 45), []string{"SPY"}, Enrichment{})
	for _, m := range []int{30, 35, 50} {
		h.s.Builder().Observe(models.Tick{Symbol: "SPY", Price: 100, Time: et(9, m)})
	}
	h.market.set("SPY", 101)

	res, err := h.s.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Breakouts)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "degenerate")
}

func TestORBScanSymbolTimeoutIsOmitted(t *testing.T) {
	h := newHarness(t, et(10, 45), []string{"SPY", "SLOW"}, Enrichment{})
	seed(h.s.Builder(), "SPY")
	h.market.set("SPY", 102)
	h.market.block["SLOW"] = true

	start := time.Now()
	res, err := h.s.Scan(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Contains(t, res.Errors, "SLOW")
	for _, r := range res.Ranges {
		assert.NotEqual(t, "SLOW", r.Symbol)
	}
	assert.Len(t, res.Breakouts, 3)
}

func TestORBScanTimeoutDuringEnrichmentIsOmitted(t *testing.T) {
	h := newHarness(t, et(10, 45), []string{"SPY", "QQQ"}, Enrichment{
		Flow: slowFlow{slow: map[string]bool{"QQQ": true}},
	})
	seed(h.s.Builder(), "SPY")
	seed(h.s.Builder(), "QQQ")
	h.market.set("SPY", 102)
	h.market.set("QQQ", 102)

	res, err := h.s.Scan(context.Background())
	require.NoError(t, err)
	require.Contains(t, res.Errors, "QQQ")
	assert.Contains(t, res.Errors["QQQ"], context.DeadlineExceeded.Error())
	require.Len(t, res.Breakouts, 3)
	for _, b := range res.Breakouts {
		assert.Equal(t, "SPY", b.Symbol)
	}
	for _, r := range res.Ranges {
		assert.NotEqual(t, "QQQ", r.Symbol)
	}
	for _, w := range res.Warnings {
		assert.NotContains(t, w, "QQQ")
	}
}

func TestORBScanTotalOutage(t *testing.T) {
	h := newHarness(t, et(10, 45), []string{"SPY", "QQQ"}, Enrichment{})
	h.market.errs["SPY"] = errors.New("boom")
	h.market.errs["QQQ"] = errors.New("boom")

	_, err := h.s.Scan(context.Background())
	require.ErrorIs(t, err, models.ErrMarketDataUnavailable)
	_, err = h.store.LatestORB(context.Background())
	assert.ErrorIs(t, err, models.ErrSnapshotNotReady)
}

func TestORBScanVIXUnavailable(t *testing.T) {
	h := newHarness(t, et(10, 45), []string{"SPY"}, Enrichment{})
	seed(h.s.Builder(), "SPY")
	h.market.set("SPY", 102)
	h.market.vixErr = errors.New("no vix")

	res, err := h.s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.RiskExtreme, res.PositionSizing.RiskLevel)
	assert.Zero(t, res.VIX)
	assert.Contains(t, res.Warnings, "vix unavailable: sizing defaults to EXTREME")
}

func TestORBScanEnrichedConfidence(t *testing.T) {
	h := newHarness(t, et(10, 45), []string{"SPY"}, Enrichment{
		Flow:  fakeFlow{models.OptionsFlow{CallPremium: 900, PutPremium: 100, GammaFlip: 101}},
		Model: fakeModel{p: 0.95},
	})
	seed(h.s.Builder(), "SPY")
	h.market.set("SPY", 102)

	res, err := h.s.Scan(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, res.Breakouts)
	b := res.Breakouts[0]
	assert.InDelta(t, 90, b.FlowScore, 1e-9)
	assert.InDelta(t, 95, b.MLScore, 1e-9)
	assert.InDelta(t, (2*50+2*90+50+95)/6.0, b.Confidence, 1e-9)
	assert.True(t, b.IsActive)
	assert.Equal(t, models.GammaPositive, b.GammaZone)
}

func TestORBScanWarmStartFromBars(t *testing.T) {
	clock := session.FixedClock(et(10, 45))
	market := newFakeMarket(12)
	market.set("SPY", 102)
	var bars []models.Bar
	for m := 0; m < 60; m++ {
		bars = append(bars, models.Bar{Bucket: et(9, 30).Add(time.Duration(m) * time.Minute), Open: 100, High: 101, Low: 99, Close: 100})
	}
	s := NewORBScanner(ScannerConfig{Symbols: []string{"SPY"}, WarmStart: true, SymbolTimeout: 100 * time.Millisecond}, ORBScannerDeps{
		Market:  market,
		Bars:    fakeBars{bars},
		Metrics: metrics.Nop{},
		Clock:   clock,
	})

	res, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Ranges, 3)
	assert.Equal(t, 15, res.Ranges[0].TickCount)
	assert.Equal(t, 60, res.Ranges[2].TickCount)
	assert.Equal(t, 101.0, res.Ranges[2].High)
	assert.Len(t, res.Breakouts, 3)
}

func TestIndexLottoScan(t *testing.T) {
	clock := session.FixedClock(et(10, 45))
	store := &memStore{}
	store.orb = &models.ORBScanResult{
		PositionSizing: models.PositionSizing{MaxContracts: 7, RiskLevel: models.RiskMedium},
		Breakouts: []models.ORBBreakout{
			{ID: "a", Symbol: "SPY", Direction: models.Long, Entry: 102, Stop: 99, Target1: 104, Confidence: 60, IsActive: false, Timeframe: models.TF15m, SuggestedExpiry: "2026-10-14", Timestamp: et(10, 0)},
			{ID: "b", Symbol: "QQQ", Direction: models.Short, Entry: 400.4, Stop: 402, Target1: 398, Confidence: 80, IsActive: true, Timeframe: models.TF30m, SuggestedExpiry: "2026-10-16", Timestamp: et(10, 5)},
			{ID: "c", Symbol: "IWM", Direction: models.Long, Entry: 200, Confidence: 40, Timestamp: et(10, 5)},
		},
	}
	s := NewIndexLottoScanner(
		ScannerConfig{Symbols: []string{"SPX", "NDX"}, SymbolTimeout: 100 * time.Millisecond},
		LottoConfig{MinConfidence: 50, StrikeOffset: 2},
		fakeIndex{errs: map[string]error{"NDX": errors.New("down")}},
		store, trade.NewSynthesizer(nil), metrics.Nop{}, clock, nil,
	)

	res, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, res.IndexData, 1)
	assert.Equal(t, "SPX", res.IndexData[0].Symbol)
	assert.Contains(t, res.Errors, "NDX")

	require.Len(t, res.LottoPlays, 2)
	top := res.LottoPlays[0]
	assert.Equal(t, "QQQ", top.Symbol)
	assert.Equal(t, models.Put, top.OptionType)
	assert.Equal(t, 398.0, top.Strike)
	assert.True(t, top.IsActive)
	assert.Equal(t, 3, top.MaxContracts)
	assert.Equal(t, models.RiskMedium, top.RiskLevel)
	assert.Equal(t, trade.LottoID("b", 398), top.ID)

	spy := res.LottoPlays[1]
	assert.Equal(t, 105.0, spy.Strike)
	assert.False(t, spy.IsActive)

	saved, err := store.LatestIndexLotto(context.Background())
	require.NoError(t, err)
	assert.Same(t, res, saved)
}

func TestIndexLottoTotalOutage(t *testing.T) {
	s := NewIndexLottoScanner(
		ScannerConfig{Symbols: []string{"SPX"}},
		LottoConfig{},
		fakeIndex{errs: map[string]error{"SPX": errors.New("down")}},
		&memStore{}, nil, metrics.Nop{}, session.FixedClock(et(10, 45)), nil,
	)
	_, err := s.Scan(context.Background())
	assert.ErrorIs(t, err, models.ErrMarketDataUnavailable)
}

func TestRolloverPurgesPreviousDays(t *testing.T) {
	clock := session.FixedClock(et(10, 45))
	s := NewORBScanner(ScannerConfig{Symbols: []string{"SPY"}}, ORBScannerDeps{Market: newFakeMarket(15), Metrics: metrics.Nop{}, Clock: clock})
	yesterday := time.Date(2026, 10, 13, 9, 35, 0, 0, session.Eastern())
	s.Builder().Observe(models.Tick{Symbol: "SPY", Price: 100, Time: yesterday})
	s.Builder().Observe(models.Tick{Symbol: "SPY", Price: 100, Time: et(9, 35)})
	s.Ledger().Record(orb.Trigger{Symbol: "SPY", Timeframe: models.TF15m, Date: "2026-10-13", Direction: models.Long})

	r, err := NewRollover("CRON_TZ=America/New_York 0 0 4 * * 1-5", s, clock, nil)
	require.NoError(t, err)
	ranges, triggers := r.Purge()
	assert.Equal(t, 3, ranges)
	assert.Equal(t, 1, triggers)
	assert.Equal(t, []string{"2026-10-14"}, s.Builder().Dates())

	_, err = NewRollover("not a cron", s, clock, nil)
	assert.Error(t, err)
}

type recordingProc struct {
	mu    sync.Mutex
	ticks []models.Tick
}

func (p *recordingProc) Process(_ context.Context, t models.Tick) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ticks = append(p.ticks, t)
	return nil
}

func TestKafkaTicksHandler(t *testing.T) {
	proc := &recordingProc{}
	h := NewKafkaTicksHandler("market.ticks", proc, metrics.Nop{})
	assert.Equal(t, "market.ticks", h.Topic())

	require.NoError(t, h.Handle(context.Background(), []byte(`{"symbol":"SPY","t":1760449500000,"c":101.5,"v":10}`)))
	require.NoError(t, h.Handle(context.Background(), []byte(`{"symbol":"QQQ","t":1760449500,"price":400}`)))
	assert.Error(t, h.Handle(context.Background(), []byte(`{"symbol":""}`)))
	assert.Error(t, h.Handle(context.Background(), []byte(`not json`)))

	require.Len(t, proc.ticks, 2)
	assert.Equal(t, time.UnixMilli(1760449500000), proc.ticks[0].Time)
	assert.Equal(t, 101.5, proc.ticks[0].Price)
	assert.Equal(t, 400.0, proc.ticks[1].Price)
	assert.Equal(t, time.Unix(1760449500, 0), proc.ticks[1].Time)
}

type fakeStream struct {
	mu         sync.Mutex
	reads      int
	reconnects int
	closed     bool
}

func (s *fakeStream) Connect(context.Context) error   { return nil }
func (s *fakeStream) Subscribe(context.Context) error { return nil }
func (s *fakeStream) IsConnected() bool               { return true }

func (s *fakeStream) Read(ctx context.Context) (<-chan models.Tick, <-chan error) {
	s.mu.Lock()
	s.reads++
	n := s.reads
	s.mu.Unlock()
	ticks := make(chan models.Tick, 4)
	errs := make(chan error, 1)
	if n == 1 {
		// the failure is reported while ticks are still buffered
		errs <- errors.New("socket closed")
		for i, px := range []float64{100, 100.5, 100.25} {
			ticks <- models.Tick{Symbol: "SPY", Price: px, Time: et(9, 31).Add(time.Duration(i) * time.Second)}
		}
		close(ticks)
	} else {
		ticks <- models.Tick{Symbol: "SPY", Price: 101, Time: et(9, 32)}
	}
	return ticks, errs
}

func (s *fakeStream) Reconnect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnects++
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func TestTickCollectorReconnects(t *testing.T) {
	stream := &fakeStream{}
	proc := &recordingProc{}
	c := NewTickCollector(stream, proc, metrics.Nop{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Start(ctx))

	require.Eventually(t, func() bool {
		stream.mu.Lock()
		defer stream.mu.Unlock()
		return stream.reconnects >= 1 && stream.reads >= 2
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-c.Done()
	require.NoError(t, c.Shutdown(context.Background()))
	assert.True(t, stream.closed)

	proc.mu.Lock()
	defer proc.mu.Unlock()
	var first []float64
	for _, tk := range proc.ticks {
		if tk.Time.Before(et(9, 32)) {
			first = append(first, tk.Price)
		}
	}
	assert.Equal(t, []float64{100, 100.5, 100.25}, first)
}
