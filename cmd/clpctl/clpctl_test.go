package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ClpWatch/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSeries(t *testing.T, n int) string {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var b strings.Builder
	b.WriteString("time,close,funding,oi\n")
	price, oi := 100.0, 1e6
	for i := 0; i < n; i++ {
		price *= math.Exp(0.01 * rng.NormFloat64())
		oi *= 1 + 0.02*rng.NormFloat64()
		fmt.Fprintf(&b, "%s,%.4f,%.6f,%.2f\n", t0.Add(time.Duration(i)*time.Hour).Format(time.RFC3339), price, 0.0001*rng.NormFloat64(), oi)
	}
	path := filepath.Join(t.TempDir(), "series.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestReadSeries(t *testing.T) {
	in := "time,close,funding,oi\n" +
		"2024-01-01T02:00:00Z,102,,1200\n" +
		"2024-01-01T00:00:00Z,100,0.0001,1000\n" +
		"2024-01-01T01:00:00Z,101,nan,\n"
	s, err := readSeries(strings.NewReader(in), "BTCUSDT", "1h")
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())
	assert.Equal(t, 100.0, s.Observations[0].Close)
	assert.Equal(t, models.Some(0.0001), s.Observations[0].FundingRate)
	assert.False(t, s.Observations[1].FundingRate.Valid)
	assert.False(t, s.Observations[1].OpenInterest.Valid)
	assert.False(t, s.Observations[2].FundingRate.Valid)
}

func TestReadSeriesErrors(t *testing.T) {
	_, err := readSeries(strings.NewReader("time,close,funding\n"), "X", "1h")
	assert.ErrorContains(t, err, `missing column "oi"`)

	_, err = readSeries(strings.NewReader("time,close,funding,oi\nsoon,1,,\n"), "X", "1h")
	assert.ErrorContains(t, err, "line 2")

	_, err = readSeries(strings.NewReader("time,close,funding,oi\n2024-01-01T00:00:00Z,abc,,\n"), "X", "1h")
	assert.ErrorContains(t, err, "bad close")
}

func TestScoreCommandJSON(t *testing.T) {
	path := writeSeries(t, 200)
	out, err := execute("score", "--file", path, "--symbol", "btcusdt", "--zwin", "30", "--json")
	require.NoError(t, err, out)

	var got struct {
		Snapshot   models.Snapshot   `json:"snapshot"`
		Thresholds models.Thresholds `json:"thresholds"`
		Insights   struct {
			Streak models.Streak `json:"streak"`
		} `json:"insights"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "BTCUSDT", got.Snapshot.Symbol)
	assert.NotEqual(t, models.RegimeNone, got.Snapshot.Regime)
	assert.Less(t, got.Thresholds.Stress, got.Thresholds.Extreme)
	assert.GreaterOrEqual(t, got.Insights.Streak.Bars, 1)
}

func TestScoreCommandTable(t *testing.T) {
	path := writeSeries(t, 200)
	out, err := execute("score", "-f", path, "--sensitivity", "high")
	require.NoError(t, err, out)
	assert.Contains(t, out, "OFFLINE")
	assert.Contains(t, out, "regime")
	assert.Contains(t, out, "thresholds")
}

func TestScoreParamsExplicitFlagsBeatSensitivity(t *testing.T) {
	explicit := map[string]bool{"zwin": true, "p-extreme": true}
	o := &scoreOptions{
		interval:    "1h",
		zwin:        60,
		sensitivity: "High",
		policy:      "percentile",
		wFunding:    0.5, wOI: 0.3, wAbsRet: 0.2,
		pStress: 0.85, pExtreme: 0.97, kStress: 1.0, kExtreme: 2.0,
		changed: func(name string) bool { return explicit[name] },
	}
	p, err := o.params()
	require.NoError(t, err)
	assert.Equal(t, 60, p.ZWindow)
	assert.Equal(t, 0.80, p.Thresholds.PStress)
	assert.Equal(t, 0.97, p.Thresholds.PExtreme)
	assert.Equal(t, 1.8, p.Thresholds.KExtreme)

	explicit = map[string]bool{}
	p, err = o.params()
	require.NoError(t, err)
	assert.Equal(t, 90, p.ZWindow)
	assert.Equal(t, 0.92, p.Thresholds.PExtreme)
}

func TestScoreCommandRejectsBadInput(t *testing.T) {
	path := writeSeries(t, 20)

	_, err := execute("score", "--file", path)
	assert.ErrorContains(t, err, "no scored observations")

	_, err = execute("score", "--file", path, "--w-funding", "0", "--w-oi", "0", "--w-absret", "0")
	assert.ErrorContains(t, err, "invalid parameters")

	_, err = execute("score")
	assert.Error(t, err)
}

func TestPresetsCommand(t *testing.T) {
	out, err := execute("presets")
	require.NoError(t, err)
	for _, want := range []string{"Low", "Medium", "High", "Crypto Majors", "SOLUSDT,XRPUSDT,BNBUSDT"} {
		assert.Contains(t, out, want)
	}
}
