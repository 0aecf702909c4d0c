package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ORBScanner/internal/domain/models"
	"ORBScanner/pkg/cache"
)

func TestSnapshotStoreNotReady(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	s := NewCacheSnapshotStore(mc, 0)

	_, err := s.LatestORB(context.Background())
	assert.ErrorIs(t, err, models.ErrSnapshotNotReady)
	_, err = s.LatestIndexLotto(context.Background())
	assert.ErrorIs(t, err, models.ErrSnapshotNotReady)
}

func TestSnapshotStoreRoundTrip(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	s := NewCacheSnapshotStore(mc, time.Minute)
	ctx := context.Background()

	ts := time.Date(2024, 3, 12, 14, 45, 0, 0, time.UTC)
	in := &models.ORBScanResult{
		Timestamp:    ts,
		SessionPhase: models.PhaseMorningSession,
		VIX:          14.2,
		Ranges: []models.OpeningRange{{
			Symbol: "SPY", Date: "2024-03-12", Timeframe: models.TF15m,
			High: 105, Low: 100, IsValid: true, Status: models.RangeValid,
		}},
	}
	require.NoError(t, s.SaveORB(ctx, in))

	out, err := s.LatestORB(ctx)
	require.NoError(t, err)
	assert.True(t, out.Timestamp.Equal(ts))
	assert.Equal(t, models.PhaseMorningSession, out.SessionPhase)
	require.Len(t, out.Ranges, 1)
	assert.Equal(t, 105.0, out.Ranges[0].High)

	lotto := &models.IndexLottoResult{Timestamp: ts, IndexData: []models.IndexData{{Symbol: "SPX", RSI: 55}}}
	require.NoError(t, s.SaveIndexLotto(ctx, lotto))
	got, err := s.LatestIndexLotto(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SPX", got.IndexData[0].Symbol)
}

type fakePublisher struct {
	topic  string
	key    []byte
	value  interface{}
	err    error
	closed bool
}

func (f *fakePublisher) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	f.topic, f.key, f.value = topic, key, value
	return f.err
}

func (f *fakePublisher) Close() error { f.closed = true; return nil }

func TestKafkaResultPublisher(t *testing.T) {
	fp := &fakePublisher{}
	p := NewKafkaResultPublisher(fp, "")
	ts := time.UnixMilli(1710254700000)
	r := &models.ORBScanResult{Timestamp: ts}

	require.NoError(t, p.PublishORB(context.Background(), r))
	assert.Equal(t, DefaultORBTopic, fp.topic)
	assert.Equal(t, "1710254700000", string(fp.key))

	b, err := json.Marshal(fp.value)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"sessionPhase":"closed"`)

	fp.err = errors.New("broker down")
	assert.Error(t, p.PublishORB(context.Background(), r))

	require.NoError(t, p.Close())
	assert.True(t, fp.closed)
}

func TestBarsQueryUsesHalfOpenWindow(t *testing.T) {
	q := barsQuery("market.bars_1m")
	assert.Contains(t, q, "FROM market.bars_1m")
	assert.Contains(t, q, "bucket >= ? AND bucket < ?")
	assert.Contains(t, q, "ORDER BY bucket ASC")
}

func TestTableNameValidation(t *testing.T) {
	assert.True(t, tableName.MatchString("market.bars_1m"))
	assert.True(t, tableName.MatchString("bars"))
	assert.False(t, tableName.MatchString("bars; DROP TABLE x"))
	assert.False(t, tableName.MatchString("a.b.c"))
}

func TestSchemaStatementsDefaultTable(t *testing.T) {
	stmts := SchemaStatements("")
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], DefaultBarsTable)
}
