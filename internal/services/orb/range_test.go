package orb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ORBScanner/internal/domain/models"
	"ORBScanner/internal/services/session"
)

func at(hh, mm, ss int) time.Time {
	// Tuesday
	return time.Date(2024, 3, 12, hh, mm, ss, 0, session.Eastern())
}

func tick(sym string, price float64, ts time.Time) models.Tick {
	return models.Tick{Symbol: sym, Price: price, Time: ts}
}

func TestRangeFormsAndFreezes(t *testing.T) {
	b := NewRangeBuilder([]models.Timeframe{models.TF15m})
	b.Observe(tick("SPY", 102, at(9, 30, 0)))
	b.Observe(tick("SPY", 105, at(9, 35, 0)))
	b.Observe(tick("SPY", 100, at(9, 40, 0)))

	r, ok := b.Range("SPY", models.TF15m, at(9, 41, 0))
	require.True(t, ok)
	assert.Equal(t, models.RangeForming, r.Status)
	assert.False(t, r.IsValid)

	r, ok = b.Range("SPY", models.TF15m, at(9, 45, 0))
	require.True(t, ok)
	assert.Equal(t, models.RangeValid, r.Status)
	assert.True(t, r.IsValid)
	assert.Equal(t, 105.0, r.High)
	assert.Equal(t, 100.0, r.Low)
	assert.Equal(t, 102.0, r.OpenPrice)
	assert.Equal(t, 5.0, r.RangeWidth)
	assert.InDelta(t, 5.0/102*100, r.RangeWidthPct, 1e-9)
	assert.Equal(t, "2024-03-12", r.Date)
	assert.Equal(t, 3, r.TickCount)

	// late ticks never change a frozen range
	b.Observe(tick("SPY", 120, at(9, 44, 59)))
	b.Observe(tick("SPY", 90, at(10, 0, 0)))
	again, _ := b.Range("SPY", models.TF15m, at(11, 0, 0))
	assert.Equal(t, r, again)
}

func TestRangeIgnoresPremarketAndWindowEnd(t *testing.T) {
	b := NewRangeBuilder([]models.Timeframe{models.TF15m})
	b.Observe(tick("SPY", 500, at(9, 29, 59)))
	b.Observe(tick("SPY", 101, at(9, 31, 0)))
	b.Observe(tick("SPY", 1, at(9, 45, 0)))
	r, _ := b.Range("SPY", models.TF15m, at(10, 0, 0))
	assert.Equal(t, 101.0, r.High)
	assert.Equal(t, 101.0, r.Low)
	assert.Equal(t, 1, r.TickCount)
}

func TestRangeZeroTicksInvalid(t *testing.T) {
	b := NewRangeBuilder([]models.Timeframe{models.TF15m})
	r, ok := b.Range("QQQ", models.TF15m, at(9, 50, 0))
	require.True(t, ok)
	assert.False(t, r.IsValid)
	assert.Equal(t, models.RangeInvalid, r.Status)

	// no retroactive repair
	b.Observe(tick("QQQ", 400, at(9, 31, 0)))
	r, _ = b.Range("QQQ", models.TF15m, at(10, 0, 0))
	assert.Equal(t, models.RangeInvalid, r.Status)
	assert.Zero(t, r.TickCount)
}

func TestRangeTimeframesIndependent(t *testing.T) {
	b := NewRangeBuilder(models.Timeframes)
	b.Observe(tick("SPY", 100, at(9, 31, 0)))
	b.Observe(tick("SPY", 110, at(9, 50, 0)))

	r15, _ := b.Range("SPY", models.TF15m, at(9, 50, 0))
	r30, _ := b.Range("SPY", models.TF30m, at(9, 50, 0))
	assert.Equal(t, 100.0, r15.High)
	assert.Equal(t, models.RangeValid, r15.Status)
	assert.Equal(t, 110.0, r30.High)
	assert.Equal(t, models.RangeForming, r30.Status)
}

func TestRangeBeforeOpenAndWeekend(t *testing.T) {
	b := NewRangeBuilder(nil)
	_, ok := b.Range("SPY", models.TF15m, at(9, 0, 0))
	assert.False(t, ok)
	sat := time.Date(2024, 3, 16, 10, 0, 0, 0, session.Eastern())
	_, ok = b.Range("SPY", models.TF15m, sat)
	assert.False(t, ok)
}

func TestObserveBarSeeds(t *testing.T) {
	b := NewRangeBuilder([]models.Timeframe{models.TF15m})
	b.ObserveBar(models.Bar{Symbol: "SPY", Bucket: at(9, 30, 0), Open: 101, High: 103, Low: 100.5, Close: 102})
	b.ObserveBar(models.Bar{Symbol: "SPY", Bucket: at(9, 31, 0), Open: 102, High: 104, Low: 99, Close: 103})
	assert.True(t, b.HasData("SPY", at(9, 32, 0)))
	r, _ := b.Range("SPY", models.TF15m, at(9, 45, 0))
	assert.Equal(t, 104.0, r.High)
	assert.Equal(t, 99.0, r.Low)
	assert.Equal(t, 101.0, r.OpenPrice)
}

func TestTakeExtremesResets(t *testing.T) {
	b := NewRangeBuilder(nil)
	b.Observe(tick("SPY", 100, at(11, 0, 0)))
	b.Observe(tick("SPY", 98, at(11, 0, 1)))
	b.Observe(tick("SPY", 103, at(11, 0, 2)))
	hi, lo, ok := b.TakeExtremes("SPY")
	require.True(t, ok)
	assert.Equal(t, 103.0, hi)
	assert.Equal(t, 98.0, lo)
	_, _, ok = b.TakeExtremes("SPY")
	assert.False(t, ok)
}

func TestPurge(t *testing.T) {
	b := NewRangeBuilder([]models.Timeframe{models.TF15m})
	b.Observe(tick("SPY", 100, at(9, 31, 0)))
	b.Observe(tick("SPY", 100, at(9, 31, 0).AddDate(0, 0, 1)))
	assert.Equal(t, []string{"2024-03-12", "2024-03-13"}, b.Dates())
	assert.Equal(t, 1, b.Purge("2024-03-13"))
	assert.Equal(t, []string{"2024-03-13"}, b.Dates())
}

func TestPendingBias(t *testing.T) {
	r := models.OpeningRange{Symbol: "SPY", Timeframe: models.TF15m, High: 105, Low: 100, IsValid: true}
	p := Pending(r, 104)
	assert.Equal(t, 1.0, p.DistanceToHigh)
	assert.Equal(t, 4.0, p.DistanceToLow)
	assert.Equal(t, models.BiasLong, p.Bias)
	assert.Equal(t, models.BiasShort, Pending(r, 101).Bias)
	assert.Equal(t, models.BiasNeutral, Pending(r, 102.5).Bias)
}

func TestRangeOpenIsEarliestTick(t *testing.T) {
	b := NewRangeBuilder([]models.Timeframe{models.TF15m})
	b.Observe(tick("SPY", 103, at(9, 33, 0)))
	b.Observe(tick("SPY", 101, at(9, 30, 5)))
	b.Observe(tick("SPY", 102, at(9, 31, 0)))
	r, _ := b.Range("SPY", models.TF15m, at(9, 45, 0))
	assert.Equal(t, 101.0, r.OpenPrice)
}
