package sizing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"ORBScanner/internal/domain/models"
)

func TestAdviseTiers(t *testing.T) {
	cases := []struct {
		vix   float64
		mult  float64
		max   int
		level models.RiskLevel
	}{
		{0, 1.0, 10, models.RiskLow},
		{14.99, 1.0, 10, models.RiskLow},
		{15, 0.75, 7, models.RiskMedium},
		{19.99, 0.75, 7, models.RiskMedium},
		{20, 0.5, 5, models.RiskHigh},
		{29.99, 0.5, 5, models.RiskHigh},
		{30, 0.25, 2, models.RiskExtreme},
		{80, 0.25, 2, models.RiskExtreme},
	}
	for _, tc := range cases {
		got := Advise(tc.vix)
		assert.Equal(t, tc.mult, got.SizeMultiplier, "vix %v", tc.vix)
		assert.Equal(t, tc.max, got.MaxContracts, "vix %v", tc.vix)
		assert.Equal(t, tc.level, got.RiskLevel, "vix %v", tc.vix)
		assert.Equal(t, tc.vix, got.VIX)
	}
}

func TestAdviseMonotonic(t *testing.T) {
	prev := Advise(-5)
	for v := -5.0; v <= 60; v += 0.25 {
		cur := Advise(v)
		assert.LessOrEqual(t, cur.SizeMultiplier, prev.SizeMultiplier, "vix %v", v)
		assert.LessOrEqual(t, cur.MaxContracts, prev.MaxContracts, "vix %v", v)
		prev = cur
	}
}

func TestAdviseNonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		got := Advise(v)
		assert.Equal(t, models.RiskExtreme, got.RiskLevel)
		assert.Equal(t, 2, got.MaxContracts)
	}
	u := Unavailable()
	assert.Equal(t, models.RiskExtreme, u.RiskLevel)
	assert.Zero(t, u.VIX)
}
