package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ClpWatch/internal/domain/models"
	domrepo "ClpWatch/internal/domain/repository"
	"ClpWatch/internal/service/cache"
	svcmetrics "ClpWatch/internal/service/metrics"
	"ClpWatch/internal/services/features"
	"ClpWatch/internal/services/insights"
	"ClpWatch/internal/services/scoring"
	"ClpWatch/pkg/logger"
)

// ErrNoScoredObservations means no row of the window has a defined CLP.
var ErrNoScoredObservations = errors.New("no scored observations")

// DefaultRunCacheTTL is how long an instrument run is reused.
const DefaultRunCacheTTL = 30 * time.Second

// InstrumentResult is the scored window of one instrument plus its summary.
type InstrumentResult struct {
	Symbol     string            `json:"symbol"`
	Params     RunParams         `json:"params"`
	Thresholds models.Thresholds `json:"thresholds"`
	Snapshot   models.Snapshot   `json:"snapshot"`
	// Series keeps only rows with a defined CLP.
	Series models.Series `json:"series"`
}

// FocusInsights explains the current state of one instrument.
type FocusInsights struct {
	Streak         models.Streak         `json:"streak"`
	TimeShare      []models.ShareRow     `json:"time_share"`
	Contributions  []models.Contribution `json:"contributions"`
	TopContributor string                `json:"top_contributor,omitempty"`
}

// ScoreSeries runs the scoring pipeline over s in place and summarizes the
// latest scored row. The snapshot timestamp is the time of that row.
func ScoreSeries(s *models.Series, p RunParams) (*InstrumentResult, error) {
	if s == nil || s.Len() == 0 {
		return nil, ErrNoScoredObservations
	}
	features.AddReturns(s)
	features.AddOIChange(s)
	features.AddZScores(s, p.ZWindow)
	scoring.AddCLP(s, p.Weights)

	scored := s.Scored()
	if scored.Len() == 0 {
		return nil, ErrNoScoredObservations
	}

	clp := scored.Column(func(o models.Observation) models.Float { return o.CLP })
	thr, err := scoring.EstimateThresholds(clp, p.Policy, p.Thresholds)
	if err != nil {
		return nil, err
	}
	scoring.AddRegimes(&scored, thr)

	last, _ := scored.Last()
	return &InstrumentResult{
		Symbol:     s.Symbol,
		Params:     p,
		Thresholds: thr,
		Series:     scored,
		Snapshot: models.Snapshot{
			Timestamp:    last.Time,
			Symbol:       s.Symbol,
			Price:        last.Close,
			Funding:      last.FundingRate,
			OpenInterest: last.OpenInterest,
			CLP:          last.CLP.V,
			Regime:       last.Regime,
			StressThr:    thr.Stress,
			ExtremeThr:   thr.Extreme,
		},
	}, nil
}

// Insights computes the streak, time share and contributor breakdown of r.
func (r *InstrumentResult) Insights() FocusInsights {
	out := FocusInsights{
		Streak:    insights.CurrentStreak(r.Series.Regimes(), r.Params.Interval.Minutes()),
		TimeShare: insights.TimeShare(r.Series.Regimes(), r.Params.ShareLookback),
	}
	if last, ok := r.Series.Last(); ok {
		out.Contributions = scoring.Contributions(last, r.Params.Weights)
		if top, ok := scoring.TopContributor(out.Contributions); ok {
			out.TopContributor = top.Component
		}
	}
	return out
}

// InstrumentScorer runs one instrument.
type InstrumentScorer interface {
	Run(ctx context.Context, symbol string, p RunParams) (*InstrumentResult, error)
}

// InstrumentRunner fetches, scores and memoizes instrument runs.
type InstrumentRunner struct {
	source  domrepo.MarketDataSource
	cache   cache.BytesCache
	ttl     time.Duration
	metrics domrepo.Metrics
	log     *logger.Logger
}

// NewInstrumentRunner wires a runner. c may be nil to disable memoization.
func NewInstrumentRunner(source domrepo.MarketDataSource, c cache.BytesCache, ttl time.Duration, metrics domrepo.Metrics, log *logger.Logger) *InstrumentRunner {
	if ttl <= 0 {
		ttl = DefaultRunCacheTTL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &InstrumentRunner{source: source, cache: c, ttl: ttl, metrics: metrics, log: log}
}

// Run scores symbol under p. p must already be prepared.
func (r *InstrumentRunner) Run(ctx context.Context, symbol string, p RunParams) (*InstrumentResult, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	key := p.CacheKey(symbol)
	if res, ok := r.cached(ctx, key); ok {
		return res, nil
	}

	start := time.Now()
	series, err := r.source.FetchSeries(ctx, symbol, p.Interval, p.Lookback)
	if err != nil {
		r.recordError("fetch")
		return nil, fmt.Errorf("fetch %s: %w", symbol, err)
	}
	if series.Symbol == "" {
		series.Symbol = symbol
	}
	res, err := ScoreSeries(series, p)
	if err != nil {
		r.recordError("score")
		return nil, fmt.Errorf("score %s: %w", symbol, err)
	}
	if r.metrics != nil {
		r.metrics.RecordLatency("instrument_run", time.Since(start).Seconds())
		r.metrics.RecordScore(symbol, res.Snapshot.CLP, res.Snapshot.Regime, res.Thresholds)
	}

	r.store(ctx, key, res)
	return res, nil
}

func (r *InstrumentRunner) cached(ctx context.Context, key string) (*InstrumentResult, bool) {
	if r.cache == nil {
		return nil, false
	}
	b, err := r.cache.GetBytes(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			r.log.Warn("run cache read failed", logger.String("key", key), logger.Error(err))
		}
		svcmetrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	var res InstrumentResult
	if err := json.Unmarshal(b, &res); err != nil {
		r.log.Warn("run cache entry corrupt", logger.String("key", key), logger.Error(err))
		svcmetrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	svcmetrics.CacheLookups.WithLabelValues("hit").Inc()
	return &res, true
}

func (r *InstrumentRunner) store(ctx context.Context, key string, res *InstrumentResult) {
	if r.cache == nil {
		return
	}
	b, err := json.Marshal(res)
	if err != nil {
		r.log.Warn("run cache encode failed", logger.String("key", key), logger.Error(err))
		return
	}
	if err := r.cache.SetBytes(ctx, key, b, r.ttl); err != nil {
		r.log.Warn("run cache write failed", logger.String("key", key), logger.Error(err))
	}
}

func (r *InstrumentRunner) recordError(kind string) {
	if r.metrics != nil {
		r.metrics.RecordError(kind)
	}
}

var _ InstrumentScorer = (*InstrumentRunner)(nil)
