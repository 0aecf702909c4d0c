package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	applogger "ORBScanner/pkg/logger"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads one topic and hands messages to a worker pool. Offsets are
// committed after the handler succeeds or retries are exhausted, so a poison
// message never blocks the partition.
type Consumer struct {
	cfg     *ConsumerConfig
	handler MessageHandler
	reader  messageReader
	logger  *applogger.Logger
	closeMu sync.Once
}

// NewConsumer builds a consumer for handler.Topic().
func NewConsumer(handler MessageHandler, logger *applogger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "orbscanner",
		WorkerCount: 1,
		BufferSize:  256,
		RetryMax:    2,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  time.Second,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       handler.Topic(),
		GroupID:     cfg.GroupID,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		StartOffset: cfg.StartOffset,
	})
	return newConsumer(handler, reader, logger, cfg), nil
}

func newConsumer(h MessageHandler, r messageReader, l *applogger.Logger, cfg *ConsumerConfig) *Consumer {
	if l == nil {
		l = applogger.Nop()
	}
	initConsumerMetrics()
	return &Consumer{cfg: cfg, handler: h, reader: r, logger: l}
}

// Topic returns the consumed topic.
func (c *Consumer) Topic() string { return c.handler.Topic() }

// Run blocks until ctx is cancelled or the reader fails permanently.
func (c *Consumer) Run(ctx context.Context) error {
	topic := c.handler.Topic()
	msgs := make(chan kafka.Message, c.cfg.BufferSize)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(msgs)
		for {
			m, err := c.reader.FetchMessage(gctx)
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				if errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				return fmt.Errorf("fetch %s: %w", topic, err)
			}
			select {
			case msgs <- m:
				consumerQueueDepth.WithLabelValues(topic).Set(float64(len(msgs)))
			case <-gctx.Done():
				return nil
			}
		}
	})

	for i := 0; i < c.cfg.WorkerCount; i++ {
		g.Go(func() error {
			for m := range msgs {
				c.process(gctx, m)
			}
			return nil
		})
	}

	c.logger.Info("kafka consumer started",
		applogger.String("topic", topic),
		applogger.Int("workers", c.cfg.WorkerCount),
	)
	err := g.Wait()
	c.logger.Info("kafka consumer stopped", applogger.String("topic", topic))
	return err
}

func (c *Consumer) process(ctx context.Context, m kafka.Message) {
	topic := c.handler.Topic()
	start := time.Now()
	var err error
	for attempt := 1; ; attempt++ {
		err = c.safeHandle(ctx, m.Value)
		if err == nil || attempt > c.cfg.RetryMax {
			break
		}
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)):
		case <-ctx.Done():
			return
		}
	}
	result := "ok"
	if err != nil {
		result = "error"
		c.logger.Warn("kafka message dropped",
			applogger.String("topic", topic),
			applogger.Int("partition", m.Partition),
			applogger.Int64("offset", m.Offset),
			applogger.Error(err),
		)
	}
	consumerHandled.WithLabelValues(topic, result).Inc()
	consumerHandleLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())

	cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if cerr := c.reader.CommitMessages(cctx, m); cerr != nil {
		c.logger.Warn("kafka commit failed", applogger.String("topic", topic), applogger.Error(cerr))
	}
}

func (c *Consumer) safeHandle(ctx context.Context, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return c.handler.Handle(ctx, data)
}

// Close releases the reader.
func (c *Consumer) Close() error {
	var err error
	c.closeMu.Do(func() { err = c.reader.Close() })
	return err
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	exp := min * time.Duration(1<<uint(attempt-1))
	if exp > max || exp <= 0 {
		exp = max
	}
	// jitter up to 50%
	half := int64(exp) / 2
	if half <= 0 {
		return exp
	}
	return exp - time.Duration(rand.Int63n(half))
}

var (
	consumerOnce          sync.Once
	consumerQueueDepth    *prometheus.GaugeVec
	consumerHandled       *prometheus.CounterVec
	consumerHandleLatency *prometheus.HistogramVec
)

func initConsumerMetrics() {
	consumerOnce.Do(func() {
		consumerQueueDepth = promauto.NewGaugeVec(
			prometheus.GaugeOpts{Name: "orbscanner_kafka_consumer_queue_depth", Help: "Messages waiting in the consumer queue"},
			[]string{"topic"},
		)
		consumerHandled = promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "orbscanner_kafka_consumer_messages_total", Help: "Messages handled by result"},
			[]string{"topic", "result"},
		)
		consumerHandleLatency = promauto.NewHistogramVec(
			prometheus.HistogramOpts{Name: "orbscanner_kafka_consumer_handle_seconds", Help: "Handling time per message"},
			[]string{"topic"},
		)
	})
}
