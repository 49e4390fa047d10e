package scoring

import "ClpWatch/internal/domain/models"

// Classify labels one score. Comparisons are strict: a score equal to the
// stress cut is Normal, equal to the extreme cut is Stress. An undefined
// score has no regime.
func Classify(score models.Float, thr models.Thresholds) models.Regime {
	switch {
	case !score.Valid:
		return models.RegimeNone
	case score.V > thr.Extreme:
		return models.RegimeExtreme
	case score.V > thr.Stress:
		return models.RegimeStress
	default:
		return models.RegimeNormal
	}
}

// AddRegimes labels every observation of s against thr.
func AddRegimes(s *models.Series, thr models.Thresholds) {
	for i := range s.Observations {
		s.Observations[i].Regime = Classify(s.Observations[i].CLP, thr)
	}
}
