package usecase

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"ClpWatch/internal/domain/models"
	domrepo "ClpWatch/internal/domain/repository"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// noisySeries builds a deterministic hourly series whose three inputs all vary.
func noisySeries(symbol string, n int, seed int64) *models.Series {
	rng := rand.New(rand.NewSource(seed))
	s := &models.Series{Symbol: symbol, Interval: "1h", Observations: make([]models.Observation, n)}
	price, oi := 100.0, 1e6
	for i := 0; i < n; i++ {
		price *= math.Exp(0.01 * rng.NormFloat64())
		oi *= 1 + 0.02*rng.NormFloat64()
		s.Observations[i] = models.Observation{
			Time:         t0.Add(time.Duration(i) * time.Hour),
			Close:        price,
			FundingRate:  models.Some(0.0001 * rng.NormFloat64()),
			OpenInterest: models.Some(oi),
		}
	}
	return s
}

type fakeSource struct {
	mu    sync.Mutex
	calls int
	seed  int64
	n     int
	err   error
}

func (f *fakeSource) FetchSeries(_ context.Context, symbol string, _ domrepo.Interval, _ int) (*models.Series, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return noisySeries(symbol, f.n, f.seed), nil
}

type fakeMetrics struct {
	mu     sync.Mutex
	errors []string
	scores map[string]float64
	flips  int
	ci     models.Float
}

func newFakeMetrics() *fakeMetrics { return &fakeMetrics{scores: map[string]float64{}} }

func (m *fakeMetrics) RecordScore(symbol string, clp float64, _ models.Regime, _ models.Thresholds) {
	m.mu.Lock()
	m.scores[symbol] = clp
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordCrowding(ci models.Float) { m.mu.Lock(); m.ci = ci; m.mu.Unlock() }
func (m *fakeMetrics) RecordFlip(string, models.Regime, models.Regime) {
	m.mu.Lock()
	m.flips++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors = append(m.errors, kind)
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordLatency(string, float64) {}

type memStore struct {
	mu     sync.Mutex
	rows   []models.Snapshot
	failOn error
}

func (s *memStore) Init(context.Context) error { return nil }
func (s *memStore) Append(_ context.Context, snaps []models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != nil {
		return s.failOn
	}
	s.rows = append(s.rows, snaps...)
	return nil
}
func (s *memStore) Load(_ context.Context, symbol string, from, to time.Time, limit int) ([]models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Snapshot
	for _, r := range s.rows {
		if symbol != "" && r.Symbol != symbol {
			continue
		}
		if !from.IsZero() && r.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && r.Timestamp.After(to) {
			continue
		}
		out = append(out, r)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
func (s *memStore) Close() error { return nil }

type recordingPublisher struct {
	snaps []models.Snapshot
	flips []models.FlipEvent
}

func (p *recordingPublisher) PublishSnapshots(_ context.Context, s []models.Snapshot) error {
	p.snaps = append(p.snaps, s...)
	return nil
}
func (p *recordingPublisher) PublishFlips(_ context.Context, f []models.FlipEvent) error {
	p.flips = append(p.flips, f...)
	return nil
}
func (p *recordingPublisher) Close() error { return nil }

// scriptedScorer returns canned snapshots per symbol.
type scriptedScorer struct {
	mu    sync.Mutex
	snaps map[string]models.Snapshot
	errs  map[string]error
}

func (s *scriptedScorer) set(sym string, clp float64, regime models.Regime) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[sym] = models.Snapshot{Symbol: sym, CLP: clp, Regime: regime, StressThr: 0.8, ExtremeThr: 1.8}
}

func (s *scriptedScorer) Run(_ context.Context, symbol string, p RunParams) (*InstrumentResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.errs[symbol]; ok {
		return nil, err
	}
	snap, ok := s.snaps[symbol]
	if !ok {
		return nil, errors.New("unknown symbol")
	}
	return &InstrumentResult{Symbol: symbol, Params: p, Snapshot: snap}, nil
}
