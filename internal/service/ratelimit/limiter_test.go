package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPerKeyBurst(t *testing.T) {
	l := New(1, 2)
	now := time.Date(2024, 3, 12, 14, 30, 0, 0, time.UTC)

	assert.True(t, l.AllowAt("SPY", now))
	assert.True(t, l.AllowAt("SPY", now))
	assert.False(t, l.AllowAt("SPY", now))
	assert.True(t, l.AllowAt("QQQ", now))
	assert.True(t, l.AllowAt("SPY", now.Add(time.Second)))
	assert.Equal(t, 2, l.Keys())
}

func TestUnlimited(t *testing.T) {
	l := New(0, 0)
	for i := 0; i < 1000; i++ {
		assert.True(t, l.Allow("SPY"))
	}
}
