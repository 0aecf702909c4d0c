package repository

import (
	"context"
	"time"

	"ORBScanner/internal/domain/models"
)

// MarketData is the live quote collaborator.
type MarketData interface {
	Snapshot(ctx context.Context, symbol string) (models.MarketSnapshot, error)
	VIX(ctx context.Context) (float64, error)
}

// IndexDataSource supplies indicator snapshots for index symbols.
type IndexDataSource interface {
	IndexData(ctx context.Context, symbol string) (models.IndexData, error)
}

// FlowSource supplies options order flow and the gamma flip level.
type FlowSource interface {
	Flow(ctx context.Context, symbol string) (models.OptionsFlow, error)
}

// MarketStream streams live trades. Read closes the tick channel once it
// stops; an error, if any, is sent before that.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// TickSink receives validated ticks.
type TickSink interface {
	Observe(t models.Tick)
}

// BarStore provides read-only access to stored 1m bars.
type BarStore interface {
	Bars(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error)
}

// SnapshotStore holds the latest scan results for the HTTP layer.
type SnapshotStore interface {
	SaveORB(ctx context.Context, r *models.ORBScanResult) error
	LatestORB(ctx context.Context) (*models.ORBScanResult, error)
	SaveIndexLotto(ctx context.Context, r *models.IndexLottoResult) error
	LatestIndexLotto(ctx context.Context) (*models.IndexLottoResult, error)
}

// ResultPublisher fans scan results out to other consumers.
type ResultPublisher interface {
	PublishORB(ctx context.Context, r *models.ORBScanResult) error
	Close() error
}

type Metrics interface {
	RecordScan(kind string, seconds float64)
	RecordSymbolError(symbol, kind string)
	RecordBreakout(symbol string, tf models.Timeframe, dir models.Direction)
	RecordInvalidRange(symbol string, tf models.Timeframe)
	RecordVIX(vix float64)
	RecordTick(symbol string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
