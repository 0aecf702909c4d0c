package di

import (
	"context"
	"fmt"
	"time"

	"ORBScanner/internal/domain/models"
	"ORBScanner/internal/domain/repository"
	"ORBScanner/internal/handler/api"
	mid "ORBScanner/internal/middleware"
	internalrepo "ORBScanner/internal/repository"
	"ORBScanner/internal/service/finnhub"
	"ORBScanner/internal/service/marketdata"
	svcmetrics "ORBScanner/internal/service/metrics"
	"ORBScanner/internal/service/yahoo"
	"ORBScanner/internal/services/analytics"
	"ORBScanner/internal/services/orb"
	"ORBScanner/internal/services/scoring"
	"ORBScanner/internal/services/session"
	"ORBScanner/internal/services/trade"
	"ORBScanner/internal/usecase"
	"ORBScanner/pkg/cache"
	pkgch "ORBScanner/pkg/clickhouse"
	"ORBScanner/pkg/config"
	xhttp "ORBScanner/pkg/http"
	pkgkafka "ORBScanner/pkg/kafka"
	applogger "ORBScanner/pkg/logger"
	"ORBScanner/pkg/metrics"
	"ORBScanner/pkg/server"
)

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:           cfg.Log.Level,
		Format:          cfg.Log.Format,
		Output:          cfg.Log.Output,
		CollectWarnings: cfg.Log.CollectWarnings,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	svcmetrics.Register()
	return metrics.New()
}

// ProvideClock is the wall clock.
func ProvideClock() session.Clock { return session.SystemClock{} }

// ProvideKafkaProducer creates a Kafka producer, or nil without brokers.
// When a log topic is set, aggregated error logs are shipped through it.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.KafkaEnabled() {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	if cfg.Kafka.Topics.Logs != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.CollectInterval,
			CountThreshold: cfg.Log.CollectCount,
			Topic:          cfg.Kafka.Topics.Logs,
			Service:        "orbscanner",
			Publisher:      producer,
		})
	}
	cleanup := func() {
		l.RemoveCollector()
		if err := producer.Close(); err != nil {
			l.Warn("kafka producer close", applogger.Error(err))
		}
	}
	return producer, cleanup, nil
}

// ProvideResultPublisher publishes scans to Kafka when a producer exists.
func ProvideResultPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.ResultPublisher {
	if producer == nil {
		return internalrepo.NopPublisher{}
	}
	return internalrepo.NewKafkaResultPublisher(producer, cfg.Kafka.Topics.Scans)
}

// ProvideSnapshotStore keeps the latest snapshots in memory, or in Redis
// behind a short-lived memory layer.
func ProvideSnapshotStore(cfg *config.Config, l *applogger.Logger) (repository.SnapshotStore, func(), error) {
	var svc cache.Service
	switch cfg.Scanner.Snapshot.Backend {
	case "redis":
		remote, err := cache.NewRedisCache(
			cache.WithRedisAddr(cfg.Redis.Addr),
			cache.WithRedisPassword(cfg.Redis.Password),
			cache.WithRedisDB(cfg.Redis.DB),
			cache.WithRedisPrefix(cfg.Redis.Prefix),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		svc = cache.NewLayeredCache(remote, cache.WithLayeredMemoryTTL(cfg.Scanner.Interval/3))
	default:
		svc = cache.NewMemoryCache(cache.WithMemoryMaxSize(16))
	}
	l.Info("snapshot store ready", applogger.String("backend", cfg.Scanner.Snapshot.Backend))
	cleanup := func() {
		if err := svc.Close(); err != nil {
			l.Warn("snapshot store close", applogger.Error(err))
		}
	}
	return internalrepo.NewCacheSnapshotStore(svc, cfg.Scanner.Snapshot.TTL), cleanup, nil
}

// ProvideClickHouseClient connects when ClickHouse is enabled, otherwise nil.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(4, 2),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if cfg.ClickHouse.InitSchema {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.InitSchema(ctx, internalrepo.SchemaStatements(cfg.ClickHouse.BarsTable)); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	l.Info("clickhouse connected", applogger.String("db", cfg.ClickHouse.Database))
	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close", applogger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvideBarStore reads warm-start bars from ClickHouse, or nil when disabled.
func ProvideBarStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) (repository.BarStore, error) {
	if ch == nil {
		return nil, nil
	}
	return internalrepo.NewCHBarStore(ch, cfg.ClickHouse.BarsTable, l)
}

// ProvideMarketData fronts Yahoo Finance with a circuit breaker.
func ProvideMarketData(cfg *config.Config, l *applogger.Logger) *marketdata.Breaker {
	y := yahoo.NewClient(cfg.MarketData.VIXSymbol, cfg.MarketData.HistoryDays, l)
	return marketdata.NewBreaker(y, y, marketdata.BreakerConfig{
		Name:                "yahoo",
		ConsecutiveFailures: cfg.MarketData.Breaker.MaxFailures,
		OpenTimeout:         cfg.MarketData.Breaker.OpenTimeout,
	}, l)
}

// ProvideEnrichment wires the analytics service when a base URL is set.
func ProvideEnrichment(cfg *config.Config, md *marketdata.Breaker) usecase.Enrichment {
	e := usecase.Enrichment{Index: md}
	if cfg.Analytics.BaseURL != "" {
		e.Flow = analytics.NewHTTPFlowSource(cfg)
		e.Model = analytics.NewHTTPModelScorer(cfg)
	}
	return e
}

// ProvideSynthesizer rounds strikes with the configured increments.
func ProvideSynthesizer(cfg *config.Config) *trade.Synthesizer {
	return trade.NewSynthesizer(cfg.Scanner.StrikeIncrements)
}

// ProvideORBScanner assembles the ORB pipeline.
func ProvideORBScanner(
	cfg *config.Config,
	md *marketdata.Breaker,
	enrich usecase.Enrichment,
	bars repository.BarStore,
	synth *trade.Synthesizer,
	store repository.SnapshotStore,
	pub repository.ResultPublisher,
	m repository.Metrics,
	clock session.Clock,
	l *applogger.Logger,
) (*usecase.ORBScanner, error) {
	cutoff, err := models.ParseSessionPhase(cfg.Scanner.ZeroDTECutoff)
	if err != nil {
		return nil, err
	}
	tfs := make([]models.Timeframe, 0, len(cfg.Scanner.Timeframes))
	for _, s := range cfg.Scanner.Timeframes {
		tf, err := models.ParseTimeframe(s)
		if err != nil {
			return nil, err
		}
		tfs = append(tfs, tf)
	}
	w := cfg.Scoring.Weights
	return usecase.NewORBScanner(usecase.ScannerConfig{
		Symbols:       cfg.Scanner.Symbols,
		Interval:      cfg.Scanner.Interval,
		SymbolTimeout: cfg.Scanner.SymbolTimeout,
		Workers:       cfg.Scanner.Workers,
		WarmStart:     cfg.Scanner.WarmStart,
	}, usecase.ORBScannerDeps{
		Market:    md,
		Enrich:    enrich,
		Bars:      bars,
		Builder:   orb.NewRangeBuilder(tfs),
		Detector:  orb.NewDetector(cfg.Scanner.BufferPct, cfg.Scanner.DailyExpiry, cutoff),
		Ledger:    orb.NewLedger(),
		Synth:     synth,
		Scorer:    scoring.NewScorer(scoring.Weights{Volume: w.Volume, Flow: w.Flow, Pattern: w.Pattern, ML: w.ML}, cfg.Scoring.Threshold),
		Store:     store,
		Publisher: pub,
		Metrics:   m,
		Clock:     clock,
		Logger:    l.With(applogger.String("component", "orb")),
	}), nil
}

// ProvideIndexLottoScanner assembles the index-lotto scan.
func ProvideIndexLottoScanner(
	cfg *config.Config,
	md *marketdata.Breaker,
	store repository.SnapshotStore,
	synth *trade.Synthesizer,
	m repository.Metrics,
	clock session.Clock,
	l *applogger.Logger,
) *usecase.IndexLottoScanner {
	return usecase.NewIndexLottoScanner(usecase.ScannerConfig{
		Symbols:       cfg.Scanner.Symbols,
		Interval:      cfg.Lotto.Interval,
		SymbolTimeout: cfg.Scanner.SymbolTimeout,
		Workers:       cfg.Scanner.Workers,
	}, usecase.LottoConfig{
		MinConfidence: cfg.Lotto.MinConfidence,
		StrikeOffset:  cfg.Lotto.StrikeOffset,
	}, md, store, synth, m, clock, l.With(applogger.String("component", "lotto")))
}

// ProvideRealtimePipeline filters live ticks into the range builder.
func ProvideRealtimePipeline(cfg *config.Config, s *usecase.ORBScanner, m repository.Metrics) *mid.RealtimePipeline {
	return mid.NewRealtimePipeline(s.Builder(), m,
		mid.WithRate(cfg.Feed.Rate, cfg.Feed.Burst),
		mid.WithSymbols(cfg.Scanner.Symbols),
		mid.WithMaxJump(cfg.Feed.MaxJump),
	)
}

// ProvideTickCollector streams Finnhub trades when feed.type is websocket.
func ProvideTickCollector(cfg *config.Config, pipe *mid.RealtimePipeline, m repository.Metrics, l *applogger.Logger) *usecase.TickCollector {
	if cfg.Feed.Type != "websocket" {
		return nil
	}
	fl := l.With(applogger.String("component", "finnhub"))
	stream := finnhub.New(
		cfg.Finnhub.APIKey,
		cfg.Finnhub.WebSocketURL,
		cfg.Scanner.Symbols,
		cfg.Finnhub.ReconnectDelay,
		cfg.Finnhub.PingInterval,
		fl,
	)
	return usecase.NewTickCollector(stream, pipe, m, fl)
}

// ProvideKafkaConsumer consumes the ticks topic when feed.type is kafka.
func ProvideKafkaConsumer(cfg *config.Config, pipe *mid.RealtimePipeline, m repository.Metrics, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Feed.Type != "kafka" {
		return nil, nil
	}
	kh := usecase.NewKafkaTicksHandler(cfg.Kafka.Topics.Ticks, pipe, m)
	consumer, err := pkgkafka.NewConsumer(kh, l.With(applogger.String("component", "kafka")),
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerLatest(),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideRollover schedules the daily purge.
func ProvideRollover(cfg *config.Config, s *usecase.ORBScanner, clock session.Clock, l *applogger.Logger) (*usecase.Rollover, error) {
	return usecase.NewRollover(cfg.Scanner.RolloverCron, s, clock, l)
}

// ProvideHTTPServer exposes the scanner API and /metrics.
func ProvideHTTPServer(cfg *config.Config, store repository.SnapshotStore, collector *usecase.TickCollector, l *applogger.Logger) *xhttp.Server {
	opts := []api.HandlerOption{api.WithRateLimit(20, 40)}
	if collector != nil {
		opts = append(opts, api.WithFeedStatus(collector.IsConnected))
	}
	h := api.NewScannerHandler(l, store, opts...)

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(h, l.With(applogger.String("component", "http")),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	orbScanner *usecase.ORBScanner,
	lotto *usecase.IndexLottoScanner,
	rollover *usecase.Rollover,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	httpServer *xhttp.Server,
) *server.App {
	return server.New(cfg, l, server.Components{
		ORB:        orbScanner,
		Lotto:      lotto,
		Rollover:   rollover,
		Collector:  collector,
		Consumer:   consumer,
		HTTPServer: httpServer,
	})
}
