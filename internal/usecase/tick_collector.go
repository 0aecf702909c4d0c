package usecase

import (
	"context"
	"time"

	"ORBScanner/internal/domain/models"
	drepo "ORBScanner/internal/domain/repository"
	applogger "ORBScanner/pkg/logger"
)

// TickProcessor accepts one live tick.
type TickProcessor interface {
	Process(ctx context.Context, t models.Tick) error
}

// TickCollector streams live trades into the range builder through the
// realtime pipeline and reconnects the stream when it fails.
type TickCollector struct {
	stream     drepo.MarketStream
	proc       TickProcessor
	metrics    drepo.Metrics
	l          *applogger.Logger
	maxBackoff time.Duration
	done       chan struct{}
}

// NewTickCollector creates a new TickCollector instance.
func NewTickCollector(stream drepo.MarketStream, proc TickProcessor, metrics drepo.Metrics, l *applogger.Logger) *TickCollector {
	if l == nil {
		l = applogger.Nop()
	}
	return &TickCollector{stream: stream, proc: proc, metrics: metrics, l: l, maxBackoff: time.Minute, done: make(chan struct{})}
}

// IsConnected returns true if the market stream is connected.
func (c *TickCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects and subscribes, then consumes in the background until ctx ends.
func (c *TickCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		_ = c.stream.Close()
		return err
	}
	go c.loop(ctx)
	return nil
}

// Done is closed once the consume loop has exited.
func (c *TickCollector) Done() <-chan struct{} { return c.done }

func (c *TickCollector) loop(ctx context.Context) {
	defer close(c.done)
	for ctx.Err() == nil {
		tickCh, errCh := c.stream.Read(ctx)
		c.consume(ctx, tickCh, errCh)
		if ctx.Err() != nil {
			return
		}
		c.reconnect(ctx)
	}
}

func (c *TickCollector) consume(ctx context.Context, tickCh <-chan models.Tick, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			c.metrics.RecordError("stream")
			c.l.Warn("market stream error", applogger.Error(err))
			c.drain(ctx, tickCh)
			return
		case t, ok := <-tickCh:
			if !ok {
				return
			}
			c.process(ctx, t)
		}
	}
}

// drain hands over ticks buffered before a stream failure; they may fall
// inside an opening range window.
func (c *TickCollector) drain(ctx context.Context, tickCh <-chan models.Tick) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-tickCh:
			if !ok {
				return
			}
			c.process(ctx, t)
		}
	}
}

func (c *TickCollector) process(ctx context.Context, t models.Tick) {
	if err := c.proc.Process(ctx, t); err != nil {
		c.l.Debug("tick rejected", applogger.String("symbol", t.Symbol), applogger.Error(err))
	}
}

func (c *TickCollector) reconnect(ctx context.Context) {
	backoff := time.Second
	for attempt := 1; ctx.Err() == nil; attempt++ {
		err := c.stream.Reconnect(ctx)
		if err == nil {
			c.l.Info("market stream reconnected", applogger.Int("attempt", attempt))
			return
		}
		c.metrics.RecordError("stream_reconnect")
		c.l.Warn("market stream reconnect failed",
			applogger.Int("attempt", attempt),
			applogger.Duration("retry_in", backoff),
			applogger.Error(err),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
}

// Shutdown closes the stream.
func (c *TickCollector) Shutdown(_ context.Context) error {
	return c.stream.Close()
}
