package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ORBScanner/internal/domain/models"
)

type flakyMarket struct {
	fail  bool
	calls int
}

func (f *flakyMarket) Snapshot(_ context.Context, symbol string) (models.MarketSnapshot, error) {
	f.calls++
	if f.fail {
		return models.MarketSnapshot{}, errors.New("provider down")
	}
	return models.MarketSnapshot{Symbol: symbol, Last: 100}, nil
}

func (f *flakyMarket) VIX(context.Context) (float64, error) {
	f.calls++
	if f.fail {
		return 0, errors.New("provider down")
	}
	return 15, nil
}

func TestBreakerPassesThrough(t *testing.T) {
	m := &flakyMarket{}
	b := NewBreaker(m, nil, BreakerConfig{}, nil)

	s, err := b.Snapshot(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, 100.0, s.Last)

	v, err := b.VIX(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15.0, v)

	_, err = b.IndexData(context.Background(), "SPX")
	assert.ErrorIs(t, err, models.ErrUnknownSymbol)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	m := &flakyMarket{fail: true}
	b := NewBreaker(m, nil, BreakerConfig{ConsecutiveFailures: 2, OpenTimeout: time.Hour}, nil)

	for i := 0; i < 2; i++ {
		_, err := b.Snapshot(context.Background(), "SPY")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}
	assert.Equal(t, "open", b.State())

	_, err := b.VIX(context.Background())
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, m.calls)
}
