package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestFieldsAreWritten(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.DebugLevel)
	l.Info("scan done",
		String("symbol", "SPY"),
		Int("breakouts", 2),
		Float64("vix", 17.5),
		Bool("active", true),
		Duration("took", 1500*time.Millisecond),
		Strings("tf", []string{"15min", "30min"}),
	)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "scan done", got["message"])
	assert.Equal(t, "SPY", got["symbol"])
	assert.Equal(t, 2.0, got["breakouts"])
	assert.Equal(t, 17.5, got["vix"])
	assert.Equal(t, true, got["active"])
	assert.Equal(t, 1500.0, got["took"])
	assert.Equal(t, "15min, 30min", got["tf"])
}

func TestWithCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.InfoLevel).With(String("component", "orb"))
	l.Debug("hidden")
	l.Warn("shown", Error(errors.New("boom")))

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "orb", got["component"])
	assert.Equal(t, "boom", got["error"])
}

func TestCollectorAggregatesErrors(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "logs", Publisher: pub})

	for i := 0; i < 3; i++ {
		l.Error("fetch failed", String("symbol", "SPY"))
	}
	l.Error("fetch failed", String("symbol", "QQQ"))
	l.RemoveCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	assert.Equal(t, "logs", pub.topic)
	batch := pub.batches[0]
	require.Len(t, batch, 2)
	counts := map[interface{}]int{}
	for _, e := range batch {
		counts[e.Fields["symbol"]] = e.Count
	}
	assert.Equal(t, map[interface{}]int{"SPY": 3, "QQQ": 1}, counts)
}
