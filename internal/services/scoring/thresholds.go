package scoring

import (
	"errors"
	"fmt"

	"ClpWatch/internal/domain/models"
	"ClpWatch/internal/services/stats"
)

// Policy selects how thresholds are estimated from the CLP distribution.
type Policy string

const (
	PolicyPercentile Policy = "percentile"
	PolicyStd        Policy = "std"
)

// MinScoredPoints is the number of defined scores below which estimation is
// skipped in favour of FallbackThresholds.
const MinScoredPoints = 80

// FallbackThresholds apply to short histories.
var FallbackThresholds = models.Thresholds{Stress: 0.8, Extreme: 1.8}

var (
	ErrUnknownPolicy     = errors.New("unknown threshold policy")
	ErrInvalidThresholds = errors.New("threshold parameters allow stress above extreme")
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyPercentile, PolicyStd:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// ThresholdParams holds the parameters of both policies.
type ThresholdParams struct {
	PStress  float64 `json:"p_stress" yaml:"p_stress"`
	PExtreme float64 `json:"p_extreme" yaml:"p_extreme"`
	KStress  float64 `json:"k_stress" yaml:"k_stress"`
	KExtreme float64 `json:"k_extreme" yaml:"k_extreme"`
}

// DefaultThresholdParams are 0.85/0.95 quantiles and 1/2 standard deviations.
var DefaultThresholdParams = ThresholdParams{PStress: 0.85, PExtreme: 0.95, KStress: 1.0, KExtreme: 2.0}

// Validate checks the parameters relevant to policy.
func (p ThresholdParams) Validate(policy Policy) error {
	switch policy {
	case PolicyPercentile:
		if p.PStress < 0 || p.PStress >= 1 || p.PExtreme < 0 || p.PExtreme >= 1 {
			return fmt.Errorf("%w: quantiles must lie in [0,1), got %.4g/%.4g", ErrInvalidThresholds, p.PStress, p.PExtreme)
		}
		if p.PStress > p.PExtreme {
			return fmt.Errorf("%w: p_stress %.4g > p_extreme %.4g", ErrInvalidThresholds, p.PStress, p.PExtreme)
		}
	case PolicyStd:
		if p.KStress > p.KExtreme {
			return fmt.Errorf("%w: k_stress %.4g > k_extreme %.4g", ErrInvalidThresholds, p.KStress, p.KExtreme)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPolicy, string(policy))
	}
	return nil
}

// EstimateThresholds derives (stress, extreme) from the defined values of
// scores. With fewer than MinScoredPoints defined values it returns
// FallbackThresholds without looking at the data.
func EstimateThresholds(scores []models.Float, policy Policy, params ThresholdParams) (models.Thresholds, error) {
	if err := params.Validate(policy); err != nil {
		return models.Thresholds{}, err
	}
	xs := models.Defined(scores)
	if len(xs) < MinScoredPoints {
		return FallbackThresholds, nil
	}
	switch policy {
	case PolicyPercentile:
		return models.Thresholds{
			Stress:  stats.Quantile(xs, params.PStress),
			Extreme: stats.Quantile(xs, params.PExtreme),
		}, nil
	default:
		mu, sd := stats.Mean(xs), stats.PopStdDev(xs)
		return models.Thresholds{
			Stress:  mu + params.KStress*sd,
			Extreme: mu + params.KExtreme*sd,
		}, nil
	}
}
