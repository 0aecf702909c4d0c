package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Log struct {
		Level           string        `yaml:"level"`
		Format          string        `yaml:"format"`
		Output          string        `yaml:"output"`
		CollectWarnings bool          `yaml:"collect_warnings"`
		CollectInterval time.Duration `yaml:"collect_interval"`
		CollectCount    int           `yaml:"collect_count"`
	} `yaml:"log"`
	Scanner struct {
		Symbols          []string           `yaml:"symbols"`
		Timeframes       []string           `yaml:"timeframes"`
		Interval         time.Duration      `yaml:"interval"`
		SymbolTimeout    time.Duration      `yaml:"symbol_timeout"`
		Workers          int                `yaml:"workers"`
		BufferPct        float64            `yaml:"buffer_pct"`
		DailyExpiry      []string           `yaml:"daily_expiry"`
		ZeroDTECutoff    string             `yaml:"zero_dte_cutoff"`
		StrikeIncrements map[string]float64 `yaml:"strike_increments"`
		RolloverCron     string             `yaml:"rollover_cron"`
		WarmStart        bool               `yaml:"warm_start"`
		Snapshot         struct {
			Backend string        `yaml:"backend"`
			TTL     time.Duration `yaml:"ttl"`
		} `yaml:"snapshot"`
	} `yaml:"scanner"`
	Scoring struct {
		Weights struct {
			Volume  float64 `yaml:"volume"`
			Flow    float64 `yaml:"flow"`
			Pattern float64 `yaml:"pattern"`
			ML      float64 `yaml:"ml"`
		} `yaml:"weights"`
		Threshold float64 `yaml:"threshold"`
	} `yaml:"scoring"`
	Lotto struct {
		Interval      time.Duration `yaml:"interval"`
		MinConfidence float64       `yaml:"min_confidence"`
		StrikeOffset  int           `yaml:"strike_offset"`
	} `yaml:"lotto"`
	Feed struct {
		Type    string  `yaml:"type"`
		Rate    float64 `yaml:"rate"`
		Burst   int     `yaml:"burst"`
		MaxJump float64 `yaml:"max_jump"`
	} `yaml:"feed"`
	MarketData struct {
		VIXSymbol   string        `yaml:"vix_symbol"`
		HistoryDays int           `yaml:"history_days"`
		Timeout     time.Duration `yaml:"timeout"`
		Breaker     struct {
			MaxFailures uint32        `yaml:"max_failures"`
			OpenTimeout time.Duration `yaml:"open_timeout"`
		} `yaml:"breaker"`
	} `yaml:"market_data"`
	Finnhub struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"finnhub"`
	Kafka struct {
		Brokers     []string `yaml:"brokers"`
		Compression string   `yaml:"compression"`
		Topics      struct {
			Ticks string `yaml:"ticks"`
			Scans string `yaml:"scans"`
			Logs  string `yaml:"logs"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
		BarsTable        string        `yaml:"bars_table"`
		InitSchema       bool          `yaml:"init_schema"`
	} `yaml:"clickhouse"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Analytics struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
		Retries int           `yaml:"retries"`
	} `yaml:"analytics"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML, fills defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads .env if present, then the YAML file, then ORB_* overrides.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = splitList(v)
		}
	}

	str("ORB_ENVIRONMENT", &c.Environment)
	list("ORB_SYMBOLS", &c.Scanner.Symbols)
	list("ORB_TIMEFRAMES", &c.Scanner.Timeframes)
	str("ORB_FEED_TYPE", &c.Feed.Type)
	str("FINNHUB_API_KEY", &c.Finnhub.APIKey)
	list("ORB_KAFKA_BROKERS", &c.Kafka.Brokers)
	str("ORB_REDIS_ADDR", &c.Redis.Addr)
	str("ORB_REDIS_PASSWORD", &c.Redis.Password)
	str("ORB_CLICKHOUSE_HOST", &c.ClickHouse.Host)
	str("ORB_CLICKHOUSE_PASSWORD", &c.ClickHouse.Password)
	str("ORB_ANALYTICS_URL", &c.Analytics.BaseURL)
	str("ORB_LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup("ORB_PORT"); ok && v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ORB_PORT: %w", err)
		}
		c.Server.Port = p
	}
	if v, ok := lookup("ORB_SCAN_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ORB_SCAN_INTERVAL: %w", err)
		}
		c.Scanner.Interval = d
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Server.CORSOrigins == nil {
		c.Server.CORSOrigins = []string{"*"}
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if len(c.Scanner.Symbols) == 0 {
		c.Scanner.Symbols = []string{"SPY", "QQQ", "IWM"}
	}
	if len(c.Scanner.Timeframes) == 0 {
		c.Scanner.Timeframes = []string{"15min", "30min", "60min"}
	}
	if c.Scanner.Interval == 0 {
		c.Scanner.Interval = 15 * time.Second
	}
	if c.Scanner.SymbolTimeout == 0 {
		c.Scanner.SymbolTimeout = 5 * time.Second
	}
	if c.Scanner.Workers == 0 {
		c.Scanner.Workers = 4
	}
	if c.Scanner.BufferPct == 0 {
		c.Scanner.BufferPct = 0.0005
	}
	if c.Scanner.DailyExpiry == nil {
		c.Scanner.DailyExpiry = []string{"SPY", "QQQ", "IWM", "SPX", "XSP", "NDX"}
	}
	if c.Scanner.ZeroDTECutoff == "" {
		c.Scanner.ZeroDTECutoff = "afternoon"
	}
	if c.Scanner.RolloverCron == "" {
		c.Scanner.RolloverCron = "CRON_TZ=America/New_York 0 0 4 * * 1-5"
	}
	if c.Scanner.Snapshot.Backend == "" {
		c.Scanner.Snapshot.Backend = "memory"
	}
	if c.Scoring.Weights.Volume == 0 && c.Scoring.Weights.Flow == 0 &&
		c.Scoring.Weights.Pattern == 0 && c.Scoring.Weights.ML == 0 {
		c.Scoring.Weights.Volume = 2
		c.Scoring.Weights.Flow = 2
		c.Scoring.Weights.Pattern = 1
		c.Scoring.Weights.ML = 1
	}
	if c.Scoring.Threshold == 0 {
		c.Scoring.Threshold = 70
	}
	if c.Lotto.Interval == 0 {
		c.Lotto.Interval = 30 * time.Second
	}
	if c.Lotto.MinConfidence == 0 {
		c.Lotto.MinConfidence = 50
	}
	if c.Lotto.StrikeOffset == 0 {
		c.Lotto.StrikeOffset = 2
	}
	if c.Feed.Type == "" {
		c.Feed.Type = "none"
	}
	if c.Feed.Rate == 0 {
		c.Feed.Rate = 50
	}
	if c.Feed.Burst == 0 {
		c.Feed.Burst = 100
	}
	if c.Feed.MaxJump == 0 {
		c.Feed.MaxJump = 0.2
	}
	if c.MarketData.VIXSymbol == "" {
		c.MarketData.VIXSymbol = "^VIX"
	}
	if c.MarketData.HistoryDays == 0 {
		c.MarketData.HistoryDays = 90
	}
	if c.MarketData.Timeout == 0 {
		c.MarketData.Timeout = 4 * time.Second
	}
	if c.MarketData.Breaker.MaxFailures == 0 {
		c.MarketData.Breaker.MaxFailures = 5
	}
	if c.MarketData.Breaker.OpenTimeout == 0 {
		c.MarketData.Breaker.OpenTimeout = 30 * time.Second
	}
	if c.Finnhub.WebSocketURL == "" {
		c.Finnhub.WebSocketURL = "wss://ws.finnhub.io"
	}
	if c.Finnhub.ReconnectDelay == 0 {
		c.Finnhub.ReconnectDelay = 5 * time.Second
	}
	if c.Finnhub.PingInterval == 0 {
		c.Finnhub.PingInterval = 30 * time.Second
	}
	if c.Kafka.Topics.Ticks == "" {
		c.Kafka.Topics.Ticks = "market.ticks"
	}
	if c.Kafka.Topics.Scans == "" {
		c.Kafka.Topics.Scans = "scanner.orb"
	}
	if c.Kafka.Topics.Logs == "" {
		c.Kafka.Topics.Logs = "scanner.logs"
	}
	if c.Kafka.Consumer.GroupID == "" {
		c.Kafka.Consumer.GroupID = "orbscanner"
	}
	if c.ClickHouse.Port == 0 {
		c.ClickHouse.Port = 9000
	}
	if c.ClickHouse.Database == "" {
		c.ClickHouse.Database = "market"
	}
	if c.Analytics.Timeout == 0 {
		c.Analytics.Timeout = 2 * time.Second
	}
	if c.Analytics.Retries == 0 {
		c.Analytics.Retries = 2
	}
}

var validTimeframes = map[string]bool{"15min": true, "30min": true, "60min": true}

var validPhases = map[string]bool{
	"premarket": true, "opening": true, "morningSession": true, "midday": true,
	"afternoon": true, "powerHour": true, "closed": true,
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error
	if c.Environment == "" {
		errs = append(errs, fmt.Errorf("environment is required"))
	}
	if len(c.Scanner.Symbols) == 0 {
		errs = append(errs, fmt.Errorf("scanner.symbols cannot be empty"))
	}
	for _, tf := range c.Scanner.Timeframes {
		if !validTimeframes[tf] {
			errs = append(errs, fmt.Errorf("scanner.timeframes: unsupported %q", tf))
		}
	}
	if c.Scanner.Interval <= 0 {
		errs = append(errs, fmt.Errorf("scanner.interval must be positive"))
	}
	if c.Scanner.SymbolTimeout <= 0 || c.Scanner.SymbolTimeout >= c.Scanner.Interval {
		errs = append(errs, fmt.Errorf("scanner.symbol_timeout must be positive and shorter than scanner.interval"))
	}
	if c.Scanner.Workers < 1 {
		errs = append(errs, fmt.Errorf("scanner.workers must be >= 1"))
	}
	if c.Scanner.BufferPct < 0 {
		errs = append(errs, fmt.Errorf("scanner.buffer_pct must be >= 0"))
	}
	if !validPhases[c.Scanner.ZeroDTECutoff] {
		errs = append(errs, fmt.Errorf("scanner.zero_dte_cutoff: unknown phase %q", c.Scanner.ZeroDTECutoff))
	}
	for sym, inc := range c.Scanner.StrikeIncrements {
		if inc <= 0 {
			errs = append(errs, fmt.Errorf("scanner.strike_increments[%s] must be positive", sym))
		}
	}
	switch c.Scanner.Snapshot.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, fmt.Errorf("redis.addr is required for snapshot backend redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("scanner.snapshot.backend must be 'memory' or 'redis', got '%s'", c.Scanner.Snapshot.Backend))
	}
	w := c.Scoring.Weights
	if w.Volume < 0 || w.Flow < 0 || w.Pattern < 0 || w.ML < 0 {
		errs = append(errs, fmt.Errorf("scoring.weights must be non-negative"))
	}
	if c.Scoring.Threshold < 0 || c.Scoring.Threshold > 100 {
		errs = append(errs, fmt.Errorf("scoring.threshold must be within [0,100]"))
	}
	if c.Lotto.MinConfidence < 0 || c.Lotto.MinConfidence > 100 {
		errs = append(errs, fmt.Errorf("lotto.min_confidence must be within [0,100]"))
	}
	if c.Lotto.StrikeOffset < 0 {
		errs = append(errs, fmt.Errorf("lotto.strike_offset must be >= 0"))
	}
	switch c.Feed.Type {
	case "none":
	case "websocket":
		if c.Finnhub.APIKey == "" {
			errs = append(errs, fmt.Errorf("finnhub.api_key is required for feed type websocket"))
		}
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, fmt.Errorf("kafka.brokers are required for feed type kafka"))
		}
	default:
		errs = append(errs, fmt.Errorf("feed.type must be 'none', 'websocket' or 'kafka', got '%s'", c.Feed.Type))
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		errs = append(errs, fmt.Errorf("clickhouse.host is required when clickhouse is enabled"))
	}
	return errors.Join(errs...)
}

// KafkaEnabled reports whether any broker is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}
