package insights

import (
	"sort"

	"ClpWatch/internal/domain/models"
)

// DefaultShareLookback is the trailing window of TimeShare.
const DefaultShareLookback = 300

// TimeShare counts each regime over the last lookback labeled observations
// (all of them when fewer exist) and reports its percentage of that total.
// Regimes that never occur are omitted. Rows are ordered by count descending,
// then Normal < Stress < Extreme.
func TimeShare(regimes []models.Regime, lookback int) []models.ShareRow {
	labeled := labeledOnly(regimes)
	if lookback > 0 && len(labeled) > lookback {
		labeled = labeled[len(labeled)-lookback:]
	}
	if len(labeled) == 0 {
		return nil
	}
	counts := make(map[models.Regime]int, 3)
	for _, r := range labeled {
		counts[r]++
	}
	rows := make([]models.ShareRow, 0, len(counts))
	total := float64(len(labeled))
	for r, c := range counts {
		rows = append(rows, models.ShareRow{Regime: r, Count: c, Pct: 100 * float64(c) / total})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Regime < rows[j].Regime
	})
	return rows
}
