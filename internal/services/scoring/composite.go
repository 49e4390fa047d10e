// Package scoring turns normalized components into the CLP composite, estimates
// adaptive thresholds from its distribution and labels each observation.
package scoring

import "ClpWatch/internal/domain/models"

// Weights are the CLP component weights. They are used exactly as given:
// callers normalize them to sum to 1 before scoring.
type Weights struct {
	Funding   float64 `json:"funding" yaml:"funding"`
	OI        float64 `json:"oi" yaml:"oi"`
	AbsReturn float64 `json:"abs_return" yaml:"abs_return"`
}

// DefaultWeights is the 0.5/0.3/0.2 blend.
var DefaultWeights = Weights{Funding: 0.5, OI: 0.3, AbsReturn: 0.2}

// Sum returns wF + wOI + wR.
func (w Weights) Sum() float64 { return w.Funding + w.OI + w.AbsReturn }

// CompositeScore computes clp[t] = wF*zF[t] + wOI*zOI[t] + wR*zR[t].
// clp[t] is undefined whenever any component at t is undefined. The three
// inputs must be aligned; the output has the length of the shortest.
func CompositeScore(zf, zoi, zr []models.Float, w Weights) []models.Float {
	n := min(len(zf), len(zoi), len(zr))
	out := make([]models.Float, n)
	for t := 0; t < n; t++ {
		if !zf[t].Valid || !zoi[t].Valid || !zr[t].Valid {
			continue
		}
		out[t] = models.Some(w.Funding*zf[t].V + w.OI*zoi[t].V + w.AbsReturn*zr[t].V)
	}
	return out
}

// AddCLP fills the CLP column from the z-score columns.
func AddCLP(s *models.Series, w Weights) {
	clp := CompositeScore(
		s.Column(func(o models.Observation) models.Float { return o.ZFunding }),
		s.Column(func(o models.Observation) models.Float { return o.ZOI }),
		s.Column(func(o models.Observation) models.Float { return o.ZAbsReturn }),
		w,
	)
	for i := range s.Observations {
		s.Observations[i].CLP = clp[i]
	}
}
