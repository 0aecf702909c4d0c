package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"SPY", "QQQ", "IWM"}, c.Scanner.Symbols)
	assert.Equal(t, 15*time.Second, c.Scanner.Interval)
	assert.Equal(t, 5*time.Second, c.Scanner.SymbolTimeout)
	assert.Equal(t, 0.0005, c.Scanner.BufferPct)
	assert.Equal(t, "afternoon", c.Scanner.ZeroDTECutoff)
	assert.Equal(t, 2.0, c.Scoring.Weights.Volume)
	assert.Equal(t, 1.0, c.Scoring.Weights.ML)
	assert.Equal(t, 70.0, c.Scoring.Threshold)
	assert.Equal(t, 30*time.Second, c.Lotto.Interval)
	assert.Equal(t, "none", c.Feed.Type)
	assert.Equal(t, "scanner.orb", c.Kafka.Topics.Scans)
	assert.False(t, c.KafkaEnabled())
}

func TestParseDurationsAndMaps(t *testing.T) {
	yml := `
environment: prod
scanner:
  symbols: [SPX, NDX]
  interval: 20s
  symbol_timeout: 3s
  strike_increments:
    SPX: 5
    NDX: 10
scoring:
  weights: {volume: 1, flow: 1, pattern: 1, ml: 1}
`
	c, err := Parse([]byte(yml))
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, c.Scanner.Interval)
	assert.Equal(t, 5.0, c.Scanner.StrikeIncrements["SPX"])
	assert.Equal(t, 1.0, c.Scoring.Weights.Volume)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"timeout not shorter":  "scanner: {interval: 5s, symbol_timeout: 5s}",
		"bad timeframe":        "scanner: {timeframes: [5min]}",
		"bad cutoff":           "scanner: {zero_dte_cutoff: lunch}",
		"redis without addr":   "scanner: {snapshot: {backend: redis}}",
		"websocket no key":     "feed: {type: websocket}",
		"kafka no brokers":     "feed: {type: kafka}",
		"unknown feed":         "feed: {type: carrier-pigeon}",
		"threshold range":      "scoring: {threshold: 120}",
		"negative weight":      "scoring: {weights: {volume: -1, flow: 1, pattern: 1, ml: 1}}",
		"clickhouse no host":   "clickhouse: {enabled: true}",
		"zero strike interval": "scanner: {strike_increments: {SPX: 0}}",
	}
	for name, yml := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(yml))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"ORB_SYMBOLS":       "spy, qqq ,",
		"ORB_KAFKA_BROKERS": "k1:9092,k2:9092",
		"ORB_PORT":          "9090",
		"ORB_SCAN_INTERVAL": "10s",
		"FINNHUB_API_KEY":   "secret",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	var c Config
	require.NoError(t, c.applyEnv(lookup))
	assert.Equal(t, []string{"spy", "qqq"}, c.Scanner.Symbols)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, 10*time.Second, c.Scanner.Interval)
	assert.Equal(t, "secret", c.Finnhub.APIKey)

	env["ORB_PORT"] = "abc"
	assert.Error(t, c.applyEnv(lookup))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: test\nserver: {port: 8181}\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8181, c.Server.Port)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
