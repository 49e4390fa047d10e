package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"ClpWatch/internal/domain/models"
	"ClpWatch/pkg/util"
)

var seriesHeader = []string{"time", "close", "funding", "oi"}

// readSeries parses an aligned CSV with columns time,close,funding,oi. Empty
// funding or oi cells are undefined. Rows are sorted by time.
func readSeries(r io.Reader, symbol, interval string) (*models.Series, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range head {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, h := range seriesHeader {
		if _, ok := idx[h]; !ok {
			return nil, fmt.Errorf("missing column %q", h)
		}
	}

	s := &models.Series{Symbol: symbol, Interval: interval}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		t, ok := util.ParseTime(rec[idx["time"]])
		if !ok {
			return nil, fmt.Errorf("line %d: bad time %q", line, rec[idx["time"]])
		}
		closePx, err := strconv.ParseFloat(strings.TrimSpace(rec[idx["close"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad close: %w", line, err)
		}
		funding, err := optional(rec[idx["funding"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad funding: %w", line, err)
		}
		oi, err := optional(rec[idx["oi"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad oi: %w", line, err)
		}
		s.Observations = append(s.Observations, models.Observation{
			Time: t, Close: closePx, FundingRate: funding, OpenInterest: oi,
		})
	}
	sort.SliceStable(s.Observations, func(i, j int) bool {
		return s.Observations[i].Time.Before(s.Observations[j].Time)
	})
	return s, nil
}

func optional(v string) (models.Float, error) {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "nan") {
		return models.Undefined, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return models.Undefined, err
	}
	return models.Some(f), nil
}
