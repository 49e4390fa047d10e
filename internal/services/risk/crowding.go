// Package risk computes cross-asset aggregates over the latest scores of a watchlist.
package risk

import (
	"math"

	"ClpWatch/internal/domain/models"
	"ClpWatch/internal/services/stats"
)

// CrowdingParams configures CrowdingIndex.
type CrowdingParams struct {
	TopFraction float64 `json:"top_fraction" yaml:"top_fraction"`
	MinN        int     `json:"min_n" yaml:"min_n"`
}

// DefaultCrowdingParams uses the top 10% and at least 3 instruments.
var DefaultCrowdingParams = CrowdingParams{TopFraction: 0.10, MinN: 3}

// CrowdingIndex is mean(heavy |score|) / mean(|score|), where the heavy set is
// every |score| at or above the (1 - TopFraction) quantile. Absolute values
// keep opposite-signed crowding from cancelling. Undefined scores are
// ignored; the result is undefined with fewer than MinN values or a zero mean.
func CrowdingIndex(scores []models.Float, p CrowdingParams) models.Float {
	abs := make([]float64, 0, len(scores))
	for _, s := range scores {
		if s.Valid {
			abs = append(abs, math.Abs(s.V))
		}
	}
	if len(abs) < p.MinN || len(abs) == 0 {
		return models.Undefined
	}
	denom := stats.Mean(abs)
	if denom <= 0 {
		return models.Undefined
	}
	cut := stats.Quantile(abs, 1-p.TopFraction)
	heavy := make([]float64, 0, len(abs))
	for _, a := range abs {
		if a >= cut {
			heavy = append(heavy, a)
		}
	}
	if len(heavy) == 0 {
		return models.Undefined
	}
	return models.Some(stats.Mean(heavy) / denom)
}

// MarketAverage is the mean of the defined scores, undefined when there are none.
func MarketAverage(scores []models.Float) models.Float {
	xs := models.Defined(scores)
	if len(xs) == 0 {
		return models.Undefined
	}
	return models.Some(stats.Mean(xs))
}
