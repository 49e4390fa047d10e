package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"ClpWatch/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFlipsIsPure(t *testing.T) {
	state := FlipState{"BTCUSDT": models.RegimeNormal}
	snaps := []models.Snapshot{
		{Symbol: "BTCUSDT", Regime: models.RegimeStress},
		{Symbol: "ETHUSDT", Regime: models.RegimeExtreme},
	}
	next, flips := DetectFlips(state, t0, snaps)

	assert.Equal(t, models.RegimeNormal, state["BTCUSDT"])
	_, seeded := state["ETHUSDT"]
	assert.False(t, seeded)

	assert.Equal(t, FlipState{"BTCUSDT": models.RegimeStress, "ETHUSDT": models.RegimeExtreme}, next)
	require.Len(t, flips, 1)
	assert.Equal(t, models.FlipEvent{Time: t0, Symbol: "BTCUSDT", From: models.RegimeNormal, To: models.RegimeStress}, flips[0])

	_, again := DetectFlips(next, t0, snaps)
	assert.Empty(t, again)
}

func TestFlipTrackerRecent(t *testing.T) {
	tr := NewFlipTracker()
	regimes := []models.Regime{models.RegimeNormal, models.RegimeStress}
	for i := 0; i < 11; i++ {
		tr.Observe(t0.Add(time.Duration(i)*time.Minute), []models.Snapshot{{Symbol: "BTCUSDT", Regime: regimes[i%2]}})
	}
	assert.Len(t, tr.Recent(100), 10)

	recent := tr.Recent(0)
	require.Len(t, recent, DefaultRecentFlips)
	assert.Equal(t, t0.Add(3*time.Minute), recent[0].Time)
	assert.Equal(t, t0.Add(10*time.Minute), recent[len(recent)-1].Time)
	assert.Equal(t, models.RegimeNormal, tr.State()["BTCUSDT"])
}

func TestPivotKeepsLastTimestamps(t *testing.T) {
	var rows []models.Snapshot
	for i := 0; i < 5; i++ {
		ts := t0.Add(time.Duration(i) * time.Minute)
		rows = append(rows, models.Snapshot{Timestamp: ts, Symbol: "BTCUSDT", CLP: float64(i)})
		if i%2 == 0 {
			rows = append(rows, models.Snapshot{Timestamp: ts, Symbol: "ETHUSDT", CLP: -float64(i)})
		}
	}
	rows = append(rows, models.Snapshot{Timestamp: t0.Add(4 * time.Minute), Symbol: "BTCUSDT", CLP: 6})

	p := Pivot(rows, 3)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, p.Symbols)
	require.Len(t, p.Timestamps, 3)
	assert.Equal(t, t0.Add(2*time.Minute), p.Timestamps[0])

	assert.Equal(t, models.Some(2), p.Values[0][0])
	assert.Equal(t, models.Some(-2), p.Values[0][1])
	assert.Equal(t, models.Some(3), p.Values[1][0])
	assert.False(t, p.Values[1][1].Valid)
	assert.Equal(t, models.Some(5), p.Values[2][0])
}

func TestHistoryLoad(t *testing.T) {
	store := &memStore{}
	for i := 0; i < 4; i++ {
		require.NoError(t, store.Append(context.Background(), []models.Snapshot{
			{Timestamp: t0.Add(time.Duration(i) * time.Hour), Symbol: "BTCUSDT", CLP: float64(i)},
			{Timestamp: t0.Add(time.Duration(i) * time.Hour), Symbol: "SOLUSDT", CLP: 1},
		}))
	}
	uc := NewHistoryUseCase(store)

	h, err := uc.Load(context.Background(), HistoryQuery{Symbol: "btcusdt", Limit: 2, Pivot: DefaultPivotRows})
	require.NoError(t, err)
	require.Len(t, h.Rows, 2)
	assert.Equal(t, 3.0, h.Rows[1].CLP)
	require.NotNil(t, h.Pivot)
	assert.Equal(t, []string{"BTCUSDT"}, h.Pivot.Symbols)

	h, err = uc.Load(context.Background(), HistoryQuery{})
	require.NoError(t, err)
	assert.Len(t, h.Rows, 8)
	assert.Nil(t, h.Pivot)

	h, err = NewHistoryUseCase(nil).Load(context.Background(), HistoryQuery{Pivot: 10})
	require.NoError(t, err)
	assert.Empty(t, h.Rows)
}

func TestKafkaSnapshotHandler(t *testing.T) {
	store := &memStore{}
	met := newFakeMetrics()
	h := NewKafkaSnapshotHandler("clp.snapshots", store, met)
	assert.Equal(t, "clp.snapshots", h.Topic())

	snap := models.Snapshot{Timestamp: t0, Symbol: "BTCUSDT", Price: 64000, Funding: models.Some(0.0001), CLP: 1.2, Regime: models.RegimeStress, StressThr: 0.8, ExtremeThr: 1.8}
	b, err := json.Marshal(snap)
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), b))
	require.Len(t, store.rows, 1)
	assert.Equal(t, snap.Symbol, store.rows[0].Symbol)
	assert.Equal(t, models.RegimeStress, store.rows[0].Regime)
	assert.False(t, store.rows[0].OpenInterest.Valid)

	assert.Error(t, h.Handle(context.Background(), []byte("{")))
	store.failOn = errors.New("clickhouse down")
	assert.Error(t, h.Handle(context.Background(), b))
	assert.Equal(t, []string{"consumer_unmarshal", "consumer_store"}, met.errors)
}

func ExamplePivot() {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := Pivot([]models.Snapshot{
		{Timestamp: at, Symbol: "ETHUSDT", CLP: 0.5},
		{Timestamp: at, Symbol: "BTCUSDT", CLP: 1.5},
	}, DefaultPivotRows)
	fmt.Println(p.Symbols, p.Values[0])
	// Output: [BTCUSDT ETHUSDT] [1.5 0.5]
}
