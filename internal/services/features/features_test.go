package features

import (
	"math"
	"testing"
	"time"

	"ClpWatch/internal/domain/models"
	"ClpWatch/internal/services/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floats(vs ...float64) []models.Float {
	out := make([]models.Float, len(vs))
	for i, v := range vs {
		out[i] = models.Some(v)
	}
	return out
}

func TestLogReturns(t *testing.T) {
	rets := LogReturns([]float64{100, 110, 0, 121})
	require.Len(t, rets, 4)
	assert.False(t, rets[0].Valid)
	assert.InDelta(t, math.Log(1.1), rets[1].V, 1e-12)
	assert.False(t, rets[2].Valid, "non-positive price has no log")
	assert.False(t, rets[3].Valid)

	abs := Abs(LogReturns([]float64{100, 90}))
	assert.InDelta(t, math.Abs(math.Log(0.9)), abs[1].V, 1e-12)
	assert.False(t, abs[0].Valid)
}

func TestPctChange(t *testing.T) {
	xs := []models.Float{models.Some(100), models.Some(110), models.Undefined, models.Some(50), models.Some(0), models.Some(10)}
	chg := PctChange(xs)
	assert.False(t, chg[0].Valid)
	assert.InDelta(t, 0.1, chg[1].V, 1e-12)
	assert.False(t, chg[2].Valid)
	assert.False(t, chg[3].Valid, "previous value undefined")
	assert.InDelta(t, -1.0, chg[4].V, 1e-12)
	assert.False(t, chg[5].Valid, "previous value zero")
}

func TestAddReturnsAndOIChange(t *testing.T) {
	s := &models.Series{Symbol: "BTCUSDT", Observations: []models.Observation{
		{Time: time.Unix(0, 0), Close: 100, OpenInterest: models.Some(1000)},
		{Time: time.Unix(60, 0), Close: 105, OpenInterest: models.Some(1010)},
		{Time: time.Unix(120, 0), Close: 100},
	}}
	AddReturns(s)
	AddOIChange(s)
	assert.False(t, s.Observations[0].Return.Valid)
	assert.InDelta(t, math.Log(1.05), s.Observations[1].Return.V, 1e-12)
	assert.InDelta(t, math.Log(105.0/100.0), s.Observations[2].AbsReturn.V, 1e-12)
	assert.InDelta(t, 0.01, s.Observations[1].OIChangePct.V, 1e-12)
	assert.False(t, s.Observations[2].OIChangePct.Valid)
}

func TestRollingZScoreShortSeriesIsUndefined(t *testing.T) {
	for _, w := range []int{2, 5, 30} {
		for l := 0; l < w-1; l++ {
			xs := make([]models.Float, l)
			for i := range xs {
				xs[i] = models.Some(float64(i * i))
			}
			for i, z := range RollingZScore(xs, w) {
				assert.Falsef(t, z.Valid, "w=%d l=%d i=%d", w, l, i)
			}
		}
	}
}

func TestRollingZScoreMatchesWindowStatistics(t *testing.T) {
	xs := floats(1, 3, 2, 8, 5, 4, 9)
	z := RollingZScore(xs, 4)
	for i := 0; i < 3; i++ {
		assert.False(t, z[i].Valid)
	}
	for i := 3; i < len(xs); i++ {
		w := models.Defined(xs[i-3 : i+1])
		want := (xs[i].V - stats.Mean(w)) / stats.PopStdDev(w)
		require.True(t, z[i].Valid)
		assert.InDelta(t, want, z[i].V, 1e-12)
	}
}

func TestRollingZScoreIsStandardizedOverPeriodicWindow(t *testing.T) {
	// With period == window every window holds the same multiset, so W
	// consecutive z values are the standardized window itself.
	base := []float64{0.4, -1.2, 3.3, 0.0, 2.5, -0.7}
	w := len(base)
	var raw []float64
	for k := 0; k < 4; k++ {
		raw = append(raw, base...)
	}
	z := RollingZScore(floats(raw...), w)
	vals := models.Defined(z[w-1 : 2*w-1])
	require.Len(t, vals, w)
	assert.InDelta(t, 0.0, stats.Mean(vals), 1e-12)
	assert.InDelta(t, 1.0, stats.PopStdDev(vals), 1e-12)
}

func TestRollingZScoreConstantWindowIsUndefined(t *testing.T) {
	xs := floats(0.0001, 0.0001, 0.0001, 0.0001, 0.0001, 0.0002)
	z := RollingZScore(xs, 3)
	for i := 0; i < 5; i++ {
		assert.Falsef(t, z[i].Valid, "index %d", i)
	}
	assert.True(t, z[5].Valid)
}

func TestRollingZScoreUndefinedInputPoisonsWindow(t *testing.T) {
	xs := floats(1, 2, 3, 4, 5, 6)
	xs[2] = models.Undefined
	z := RollingZScore(xs, 3)
	assert.False(t, z[2].Valid)
	assert.False(t, z[3].Valid)
	assert.False(t, z[4].Valid)
	assert.True(t, z[5].Valid)
}

func TestRollingZScoreSpike(t *testing.T) {
	// all zeros except one spike: z at the spike is sqrt(W-1), after it -1/sqrt(W-1)
	const w = 120
	xs := make([]models.Float, 200)
	for i := range xs {
		xs[i] = models.Some(0)
	}
	xs[150] = models.Some(math.Log(1.05))
	z := RollingZScore(xs, w)
	assert.False(t, z[149].Valid)
	assert.InDelta(t, math.Sqrt(w-1), z[150].V, 1e-9)
	assert.InDelta(t, -1/math.Sqrt(w-1), z[151].V, 1e-9)
}
