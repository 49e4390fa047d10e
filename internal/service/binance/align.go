package binance

import (
	"sort"
	"time"

	"ClpWatch/internal/domain/models"
)

// Point is one timestamped sample of an auxiliary series.
type Point struct {
	Time  time.Time
	Value models.Float
}

func sortPoints(ps []Point) {
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Time.Before(ps[j].Time) })
}

// AlignBackward assigns to every time in times (ascending) the value of the
// latest point at or before it. Times before the first point are undefined.
// points must be ascending.
func AlignBackward(times []time.Time, points []Point) []models.Float {
	out := make([]models.Float, len(times))
	j := -1
	for i, t := range times {
		for j+1 < len(points) && !points[j+1].Time.After(t) {
			j++
		}
		if j >= 0 {
			out[i] = points[j].Value
		}
	}
	return out
}
