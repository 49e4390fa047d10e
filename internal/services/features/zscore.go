package features

import (
	"math"

	"ClpWatch/internal/domain/models"
)

// DefaultZWindow is the rolling z-score window used when none is configured.
const DefaultZWindow = 120

// RollingZScore computes z_t = (x_t - mean(w)) / sd(w) over the trailing window
// w = x[t-window+1..t], with the population standard deviation.
// z_t is undefined when t < window-1, when any value in w is undefined, when
// w is constant, or when sd(w) is zero.
func RollingZScore(xs []models.Float, window int) []models.Float {
	out := make([]models.Float, len(xs))
	if window <= 0 {
		return out
	}
	n := float64(window)
	for t := window - 1; t < len(xs); t++ {
		w := xs[t-window+1 : t+1]
		sum := 0.0
		ok := true
		constant := true
		for _, x := range w {
			if !x.Valid {
				ok = false
				break
			}
			if x.V != w[0].V {
				constant = false
			}
			sum += x.V
		}
		if !ok || constant {
			continue
		}
		mu := sum / n
		ss := 0.0
		for _, x := range w {
			d := x.V - mu
			ss += d * d
		}
		sd := math.Sqrt(ss / n)
		if sd == 0 {
			continue
		}
		out[t] = models.Some((xs[t].V - mu) / sd)
	}
	return out
}

// AddZScores fills the three normalized CLP components.
func AddZScores(s *models.Series, window int) {
	zf := RollingZScore(s.Column(func(o models.Observation) models.Float { return o.FundingRate }), window)
	zoi := RollingZScore(s.Column(func(o models.Observation) models.Float { return o.OIChangePct }), window)
	zr := RollingZScore(s.Column(func(o models.Observation) models.Float { return o.AbsReturn }), window)
	for i := range s.Observations {
		s.Observations[i].ZFunding = zf[i]
		s.Observations[i].ZOI = zoi[i]
		s.Observations[i].ZAbsReturn = zr[i]
	}
}
