package features

import (
	"math"

	"ClpWatch/internal/domain/models"
)

// LogReturns computes r_t = ln(P_t) - ln(P_{t-1}), aligned with prices.
// r_0 is undefined, as is any return touching a non-positive price.
func LogReturns(prices []float64) []models.Float {
	out := make([]models.Float, len(prices))
	for i := 1; i < len(prices); i++ {
		prev, cur := prices[i-1], prices[i]
		if prev <= 0 || cur <= 0 {
			continue
		}
		out[i] = models.Some(math.Log(cur) - math.Log(prev))
	}
	return out
}

// Abs maps each defined value to its absolute value.
func Abs(xs []models.Float) []models.Float {
	out := make([]models.Float, len(xs))
	for i, x := range xs {
		if x.Valid {
			out[i] = models.Some(math.Abs(x.V))
		}
	}
	return out
}

// PctChange computes (x_t - x_{t-1}) / x_{t-1}. Undefined at t=0 and wherever
// either value is undefined or x_{t-1} is zero.
func PctChange(xs []models.Float) []models.Float {
	out := make([]models.Float, len(xs))
	for i := 1; i < len(xs); i++ {
		prev, cur := xs[i-1], xs[i]
		if !prev.Valid || !cur.Valid || prev.V == 0 {
			continue
		}
		out[i] = models.Some((cur.V - prev.V) / prev.V)
	}
	return out
}

// AddReturns fills Return and AbsReturn of every observation.
func AddReturns(s *models.Series) {
	rets := LogReturns(s.Closes())
	abs := Abs(rets)
	for i := range s.Observations {
		s.Observations[i].Return = rets[i]
		s.Observations[i].AbsReturn = abs[i]
	}
}

// AddOIChange fills OIChangePct of every observation.
func AddOIChange(s *models.Series) {
	chg := PctChange(s.Column(func(o models.Observation) models.Float { return o.OpenInterest }))
	for i := range s.Observations {
		s.Observations[i].OIChangePct = chg[i]
	}
}
