// Package insights derives streak and occupancy views from a labeled series.
package insights

import "ClpWatch/internal/domain/models"

// CurrentStreak walks back from the latest labeled observation and counts the
// consecutive equal labels. Unlabeled rows are skipped. Minutes is
// Bars * intervalMinutes. An empty or unlabeled sequence yields (RegimeNone, 0),
// rendered as "NA".
func CurrentStreak(regimes []models.Regime, intervalMinutes int) models.Streak {
	labeled := labeledOnly(regimes)
	if len(labeled) == 0 {
		return models.Streak{Regime: models.RegimeNone}
	}
	cur := labeled[len(labeled)-1]
	bars := 0
	for i := len(labeled) - 1; i >= 0 && labeled[i] == cur; i-- {
		bars++
	}
	return models.Streak{Regime: cur, Bars: bars, Minutes: bars * intervalMinutes}
}

func labeledOnly(regimes []models.Regime) []models.Regime {
	out := make([]models.Regime, 0, len(regimes))
	for _, r := range regimes {
		if r != models.RegimeNone {
			out = append(out, r)
		}
	}
	return out
}
