package usecase

import (
	"errors"
	"fmt"
	"strings"

	domrepo "ClpWatch/internal/domain/repository"
	"ClpWatch/internal/services/scoring"
)

// ErrZeroWeights is returned when the weight vector cannot be normalized.
var ErrZeroWeights = errors.New("weights must not all be zero")

// RunParams are all the knobs of one instrument run. Two runs with equal
// params over the same data produce the same result.
type RunParams struct {
	Interval      domrepo.Interval        `json:"interval"`
	Lookback      int                     `json:"lookback"`
	ZWindow       int                     `json:"zwin"`
	Weights       scoring.Weights         `json:"weights"`
	Policy        scoring.Policy          `json:"policy"`
	Thresholds    scoring.ThresholdParams `json:"thresholds"`
	ShareLookback int                     `json:"share_lookback"`
}

// DefaultRunParams matches the Medium sensitivity preset on the 1h interval.
func DefaultRunParams() RunParams {
	return RunParams{
		Interval:      domrepo.DefaultInterval(),
		Lookback:      500,
		ZWindow:       120,
		Weights:       scoring.DefaultWeights,
		Policy:        scoring.PolicyPercentile,
		Thresholds:    scoring.DefaultThresholdParams,
		ShareLookback: 300,
	}
}

// NormalizeWeights scales w so its components sum to 1.
func NormalizeWeights(w scoring.Weights) (scoring.Weights, error) {
	if w.Funding < 0 || w.OI < 0 || w.AbsReturn < 0 {
		return scoring.Weights{}, fmt.Errorf("weights must be non-negative, got %.4g/%.4g/%.4g", w.Funding, w.OI, w.AbsReturn)
	}
	s := w.Sum()
	if s <= 0 {
		return scoring.Weights{}, ErrZeroWeights
	}
	return scoring.Weights{Funding: w.Funding / s, OI: w.OI / s, AbsReturn: w.AbsReturn / s}, nil
}

// Prepare normalizes the weights and validates p.
func (p RunParams) Prepare() (RunParams, error) {
	w, err := NormalizeWeights(p.Weights)
	if err != nil {
		return p, err
	}
	p.Weights = w
	return p, p.Validate()
}

// Validate checks p without modifying it.
func (p RunParams) Validate() error {
	if !domrepo.IsValidInterval(p.Interval) {
		return fmt.Errorf("unsupported interval %q", p.Interval)
	}
	if p.Lookback <= 0 {
		return fmt.Errorf("lookback must be positive, got %d", p.Lookback)
	}
	if p.ZWindow < 2 {
		return fmt.Errorf("zwin must be at least 2, got %d", p.ZWindow)
	}
	if p.ShareLookback <= 0 {
		return fmt.Errorf("share lookback must be positive, got %d", p.ShareLookback)
	}
	if _, err := scoring.ParsePolicy(string(p.Policy)); err != nil {
		return err
	}
	return p.Thresholds.Validate(p.Policy)
}

// CacheKey identifies a run of symbol under p.
func (p RunParams) CacheKey(symbol string) string {
	return fmt.Sprintf("run:%s:%s:%d:%d:%g:%g:%g:%s:%g:%g:%g:%g:%d",
		strings.ToUpper(symbol), p.Interval, p.Lookback, p.ZWindow,
		p.Weights.Funding, p.Weights.OI, p.Weights.AbsReturn,
		p.Policy, p.Thresholds.PStress, p.Thresholds.PExtreme, p.Thresholds.KStress, p.Thresholds.KExtreme,
		p.ShareLookback)
}

// Sensitivity is a named bundle of window and threshold settings.
type Sensitivity struct {
	Name       string                  `json:"name"`
	ZWindow    int                     `json:"zwin"`
	Policy     scoring.Policy          `json:"policy"`
	Thresholds scoring.ThresholdParams `json:"thresholds"`
}

var sensitivities = []Sensitivity{
	{Name: "Low", ZWindow: 180, Policy: scoring.PolicyPercentile,
		Thresholds: scoring.ThresholdParams{PStress: 0.90, PExtreme: 0.97, KStress: 1.2, KExtreme: 2.4}},
	{Name: "Medium", ZWindow: 120, Policy: scoring.PolicyPercentile,
		Thresholds: scoring.ThresholdParams{PStress: 0.85, PExtreme: 0.95, KStress: 1.0, KExtreme: 2.0}},
	{Name: "High", ZWindow: 90, Policy: scoring.PolicyPercentile,
		Thresholds: scoring.ThresholdParams{PStress: 0.80, PExtreme: 0.92, KStress: 0.9, KExtreme: 1.8}},
}

// Sensitivities lists the presets from least to most sensitive.
func Sensitivities() []Sensitivity {
	return append([]Sensitivity(nil), sensitivities...)
}

// LookupSensitivity finds a preset by case-insensitive name.
func LookupSensitivity(name string) (Sensitivity, bool) {
	for _, s := range sensitivities {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Sensitivity{}, false
}

// WithSensitivity overrides window, policy and threshold params of p with a preset.
func (p RunParams) WithSensitivity(name string) (RunParams, error) {
	s, ok := LookupSensitivity(name)
	if !ok {
		return p, fmt.Errorf("unknown sensitivity %q", name)
	}
	p.ZWindow = s.ZWindow
	p.Policy = s.Policy
	p.Thresholds = s.Thresholds
	return p, nil
}

// Overrides are values a caller asked for explicitly. Zero, empty and nil
// fields are unset.
type Overrides struct {
	ZWindow  int
	Policy   scoring.Policy
	PStress  *float64
	PExtreme *float64
	KStress  *float64
	KExtreme *float64
}

// Resolve applies the named sensitivity preset, if any, and then every set
// override, so explicit values always win over the preset.
func (p RunParams) Resolve(sensitivity string, o Overrides) (RunParams, error) {
	if s := strings.TrimSpace(sensitivity); s != "" {
		var err error
		if p, err = p.WithSensitivity(s); err != nil {
			return p, err
		}
	}
	if o.ZWindow > 0 {
		p.ZWindow = o.ZWindow
	}
	if o.Policy != "" {
		p.Policy = o.Policy
	}
	for _, f := range []struct {
		dst *float64
		v   *float64
	}{
		{&p.Thresholds.PStress, o.PStress},
		{&p.Thresholds.PExtreme, o.PExtreme},
		{&p.Thresholds.KStress, o.KStress},
		{&p.Thresholds.KExtreme, o.KExtreme},
	} {
		if f.v != nil {
			*f.dst = *f.v
		}
	}
	return p, nil
}

// Watchlist is a named symbol set.
type Watchlist struct {
	Name    string   `json:"name"`
	Symbols []string `json:"symbols"`
}

var watchlists = []Watchlist{
	{Name: "Crypto Majors", Symbols: []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}},
	{Name: "Alt Mix", Symbols: []string{"SOLUSDT", "XRPUSDT", "BNBUSDT"}},
}

// Watchlists lists the symbol presets.
func Watchlists() []Watchlist {
	out := make([]Watchlist, len(watchlists))
	for i, w := range watchlists {
		out[i] = Watchlist{Name: w.Name, Symbols: append([]string(nil), w.Symbols...)}
	}
	return out
}

// LookupWatchlist finds a watchlist preset by case-insensitive name.
func LookupWatchlist(name string) (Watchlist, bool) {
	for _, w := range Watchlists() {
		if strings.EqualFold(w.Name, name) {
			return w, true
		}
	}
	return Watchlist{}, false
}
