package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ORBScanner/internal/domain/models"
	domrepo "ORBScanner/internal/domain/repository"
	pkgkafka "ORBScanner/pkg/kafka"
	"ORBScanner/pkg/util"
)

// KafkaTicksHandler feeds ticks published by an upstream collector into the
// realtime pipeline.
type KafkaTicksHandler struct {
	topic   string
	proc    TickProcessor
	metrics domrepo.Metrics
}

func NewKafkaTicksHandler(topic string, proc TickProcessor, metrics domrepo.Metrics) *KafkaTicksHandler {
	return &KafkaTicksHandler{topic: topic, proc: proc, metrics: metrics}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

// tickMessage is {symbol, t, c|price, v}. t is unix seconds or milliseconds.
type tickMessage struct {
	Symbol string   `json:"symbol"`
	T      int64    `json:"t"`
	C      float64  `json:"c"`
	Price  *float64 `json:"price"`
	V      float64  `json:"v"`
}

func (m tickMessage) tick() (models.Tick, error) {
	price := m.C
	if m.Price != nil {
		price = *m.Price
	}
	if m.Symbol == "" || m.T <= 0 {
		return models.Tick{}, fmt.Errorf("tick message: missing symbol or time")
	}
	return models.Tick{Symbol: m.Symbol, Price: price, Volume: m.V, Time: util.FromUnix(m.T)}, nil
}

func (h *KafkaTicksHandler) Handle(ctx context.Context, b []byte) error {
	var m tickMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	t, err := m.tick()
	if err != nil {
		h.metrics.RecordError("consumer_decode")
		return err
	}
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(t.Time).Seconds())
	// Rejected ticks are dropped, not retried.
	_ = h.proc.Process(ctx, t)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)
