package insights

import (
	"testing"

	"ClpWatch/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	N = models.RegimeNormal
	S = models.RegimeStress
	E = models.RegimeExtreme
	X = models.RegimeNone
)

func TestCurrentStreak(t *testing.T) {
	st := CurrentStreak([]models.Regime{N, N, S, S, S}, 60)
	assert.Equal(t, S, st.Regime)
	assert.Equal(t, "Stress", st.Regime.String())
	assert.Equal(t, 3, st.Bars)
	assert.Equal(t, 180, st.Minutes)
}

func TestCurrentStreakEmpty(t *testing.T) {
	for _, in := range [][]models.Regime{nil, {}, {X, X}} {
		st := CurrentStreak(in, 15)
		assert.Equal(t, "NA", st.Regime.String())
		assert.Equal(t, 0, st.Bars)
		assert.Equal(t, 0, st.Minutes)
	}
}

func TestCurrentStreakSkipsUnlabeledRows(t *testing.T) {
	st := CurrentStreak([]models.Regime{X, E, N, E, X, E, X}, 5)
	assert.Equal(t, E, st.Regime)
	assert.Equal(t, 2, st.Bars)
	assert.Equal(t, 10, st.Minutes)
}

func TestTimeShareSparse(t *testing.T) {
	regimes := []models.Regime{N, S, N, N, S, N, N, S, N, N}
	rows := TimeShare(regimes, DefaultShareLookback)
	require.Len(t, rows, 2)
	assert.Equal(t, models.ShareRow{Regime: N, Count: 7, Pct: 70.0}, rows[0])
	assert.Equal(t, models.ShareRow{Regime: S, Count: 3, Pct: 30.0}, rows[1])
	for _, r := range rows {
		assert.NotEqual(t, E, r.Regime)
	}
}

func TestTimeShareTrailingWindow(t *testing.T) {
	regimes := []models.Regime{E, E, E, E, X, N, S, N, S}
	rows := TimeShare(regimes, 4)
	require.Len(t, rows, 2)
	assert.Equal(t, N, rows[0].Regime)
	assert.Equal(t, 2, rows[0].Count)
	assert.Equal(t, S, rows[1].Regime)
	assert.InDelta(t, 50.0, rows[1].Pct, 1e-12)

	assert.Nil(t, TimeShare(nil, 10))
}
