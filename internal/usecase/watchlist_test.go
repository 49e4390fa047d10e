package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"ClpWatch/internal/domain/models"
	domrepo "ClpWatch/internal/domain/repository"
	"ClpWatch/internal/services/risk"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScripted() *scriptedScorer {
	return &scriptedScorer{snaps: map[string]models.Snapshot{}, errs: map[string]error{}}
}

func newMonitor(sc InstrumentScorer, symbols []string, store *memStore, pub *recordingPublisher, met *fakeMetrics) *WatchlistMonitor {
	// Pass untyped nils so the monitor's nil checks see absent dependencies.
	var (
		st  domrepo.SnapshotStore
		pb  domrepo.SnapshotPublisher
		mtr domrepo.Metrics
	)
	if store != nil {
		st = store
	}
	if pub != nil {
		pb = pub
	}
	if met != nil {
		mtr = met
	}
	m := NewWatchlistMonitor(sc, WatchlistConfig{Symbols: symbols, Params: DefaultRunParams()}, st, pb, nil, mtr, nil)
	m.now = func() time.Time { return t0 }
	return m
}

func TestRunCycleIsolatesFailures(t *testing.T) {
	sc := newScripted()
	sc.set("BTCUSDT", 0.4, models.RegimeNormal)
	sc.set("SOLUSDT", 2.5, models.RegimeExtreme)
	sc.errs["ETHUSDT"] = errors.New("HTTP 503: unavailable")
	store := &memStore{}
	pub := &recordingPublisher{}
	met := newFakeMetrics()

	m := newMonitor(sc, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, store, pub, met)
	rep, err := m.RunCycle(context.Background())
	require.NoError(t, err)

	assert.False(t, rep.NoValidData)
	_, err = uuid.Parse(rep.ID)
	assert.NoError(t, err)
	require.Len(t, rep.Failures, 1)
	assert.Equal(t, models.InstrumentFailure{Symbol: "ETHUSDT", Error: "HTTP 503: unavailable"}, rep.Failures[0])

	require.Len(t, rep.Ranked, 2)
	assert.Equal(t, 1, rep.Ranked[0].Rank)
	assert.Equal(t, "SOLUSDT", rep.Ranked[0].Symbol)
	assert.Equal(t, "BTCUSDT", rep.Ranked[1].Symbol)
	assert.InDelta(t, 1.45, rep.MarketAvgCLP.V, 1e-12)
	// two instruments are below the crowding minimum
	assert.False(t, rep.CrowdingIndex.Valid)

	assert.Equal(t, models.AlertExtreme, rep.Alerts.Level)
	assert.Equal(t, []string{"SOLUSDT"}, rep.Alerts.Extreme)
	assert.Empty(t, rep.Alerts.Stress)

	require.Len(t, store.rows, 2)
	for _, r := range store.rows {
		assert.Equal(t, t0, r.Timestamp)
	}
	assert.Len(t, pub.snaps, 2)
	assert.Equal(t, []string{"instrument_run"}, met.errors)
	assert.Same(t, rep, m.Latest())

	res, ok := m.Result("SOLUSDT")
	require.True(t, ok)
	assert.Equal(t, 2.5, res.Snapshot.CLP)
	_, ok = m.Result("ETHUSDT")
	assert.False(t, ok)
}

func TestRunCycleNoValidData(t *testing.T) {
	sc := newScripted()
	sc.errs["BTCUSDT"] = errors.New("timeout")
	store := &memStore{}
	m := newMonitor(sc, []string{"BTCUSDT", "ETHUSDT"}, store, nil, nil)

	rep, err := m.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.NoValidData)
	assert.Len(t, rep.Failures, 2)
	assert.Empty(t, rep.Ranked)
	assert.False(t, rep.MarketAvgCLP.Valid)
	assert.False(t, rep.CrowdingIndex.Valid)
	assert.Equal(t, models.AlertNone, rep.Alerts.Level)
	assert.Empty(t, store.rows)
}

func TestRunCycleDetectsFlipsAcrossCycles(t *testing.T) {
	sc := newScripted()
	sc.set("BTCUSDT", 0.2, models.RegimeNormal)
	sc.set("ETHUSDT", 1.0, models.RegimeStress)
	pub := &recordingPublisher{}
	met := newFakeMetrics()
	var seen []*models.CycleReport

	m := newMonitor(sc, []string{"BTCUSDT", "ETHUSDT"}, nil, pub, met)
	m.Subscribe(func(r *models.CycleReport) { seen = append(seen, r) })

	rep, err := m.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.Flips)
	assert.Equal(t, models.AlertStress, rep.Alerts.Level)
	assert.Equal(t, []string{"ETHUSDT"}, rep.Alerts.Stress)

	sc.set("BTCUSDT", 2.0, models.RegimeExtreme)
	m.now = func() time.Time { return t0.Add(30 * time.Second) }
	rep, err = m.RunCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.Flips, 1)
	f := rep.Flips[0]
	assert.Equal(t, "BTCUSDT", f.Symbol)
	assert.Equal(t, models.RegimeNormal, f.From)
	assert.Equal(t, models.RegimeExtreme, f.To)
	assert.Equal(t, "BTCUSDT: Normal → Extreme", f.String())
	assert.Equal(t, t0.Add(30*time.Second), f.Time)

	assert.Len(t, pub.flips, 1)
	assert.Equal(t, 1, met.flips)
	assert.Len(t, seen, 2)
	assert.Equal(t, rep.Flips, m.Flips().Recent(8))
}

func TestRunCycleStoreFailureIsNotFatal(t *testing.T) {
	sc := newScripted()
	sc.set("BTCUSDT", 0.1, models.RegimeNormal)
	met := newFakeMetrics()
	m := newMonitor(sc, []string{"BTCUSDT"}, &memStore{failOn: errors.New("disk full")}, nil, met)

	rep, err := m.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Len(t, rep.Ranked, 1)
	assert.Contains(t, met.errors, "snapshot_append")
}

func TestAggregateCrowdingAndAlerts(t *testing.T) {
	snaps := []models.Snapshot{
		{Symbol: "A", CLP: 1.0, StressThr: 0.8, ExtremeThr: 1.8},
		{Symbol: "B", CLP: -1.0, StressThr: 0.8, ExtremeThr: 1.8},
		{Symbol: "C", CLP: 1.0, StressThr: 1.0, ExtremeThr: 1.8},
	}
	rep := &models.CycleReport{}
	Aggregate(rep, snaps, risk.DefaultCrowdingParams)

	require.True(t, rep.CrowdingIndex.Valid)
	assert.InDelta(t, 1.0, rep.CrowdingIndex.V, 1e-12)
	assert.InDelta(t, 1.0/3, rep.MarketAvgCLP.V, 1e-12)
	// C sits exactly on its stress threshold, which is not above it
	assert.Equal(t, []string{"A"}, rep.Alerts.Stress)
	assert.Equal(t, models.AlertStress, rep.Alerts.Level)
	assert.Equal(t, []string{"A", "C", "B"}, []string{rep.Ranked[0].Symbol, rep.Ranked[1].Symbol, rep.Ranked[2].Symbol})
}

func TestStartStopsOnCancel(t *testing.T) {
	sc := newScripted()
	sc.set("BTCUSDT", 0.1, models.RegimeNormal)
	m := newMonitor(sc, []string{"BTCUSDT"}, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.Subscribe(func(*models.CycleReport) { cancel() })
	go func() {
		m.Start(ctx, time.Hour)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop")
	}
	require.NotNil(t, m.Latest())
}
