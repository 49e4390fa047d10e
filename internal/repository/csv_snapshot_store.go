package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"ClpWatch/internal/domain/models"
	"ClpWatch/internal/domain/repository"
)

var csvHeader = []string{"timestamp", "symbol", "price", "funding", "oi", "clp", "regime", "stress_thr", "extreme_thr"}

// CSVSnapshotStore appends snapshots to a local CSV file. Undefined values
// are written as empty cells.
type CSVSnapshotStore struct {
	mu   sync.Mutex
	path string
}

func NewCSVSnapshotStore(path string) *CSVSnapshotStore {
	return &CSVSnapshotStore{path: path}
}

var _ repository.SnapshotStore = (*CSVSnapshotStore)(nil)

// Init is a no-op; the file is created on first append.
func (s *CSVSnapshotStore) Init(context.Context) error { return nil }

func (s *CSVSnapshotStore) Append(_ context.Context, snaps []models.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open snapshot log: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if st.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			return err
		}
	}
	for _, sn := range snaps {
		if err := w.Write(encodeRow(sn)); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func (s *CSVSnapshotStore) Load(_ context.Context, symbol string, from, to time.Time, limit int) ([]models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open snapshot log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(csvHeader)
	var out []models.Snapshot
	for line := 1; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read snapshot log: %w", err)
		}
		if line == 1 && rec[0] == csvHeader[0] {
			continue
		}
		sn, err := decodeRow(rec)
		if err != nil {
			return nil, fmt.Errorf("snapshot log line %d: %w", line, err)
		}
		if symbol != "" && sn.Symbol != symbol {
			continue
		}
		if (!from.IsZero() && sn.Timestamp.Before(from)) || (!to.IsZero() && sn.Timestamp.After(to)) {
			continue
		}
		out = append(out, sn)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *CSVSnapshotStore) Close() error { return nil }

func encodeRow(sn models.Snapshot) []string {
	return []string{
		sn.Timestamp.UTC().Format(time.RFC3339Nano),
		sn.Symbol,
		formatFloat(sn.Price),
		formatOptional(sn.Funding),
		formatOptional(sn.OpenInterest),
		formatFloat(sn.CLP),
		sn.Regime.String(),
		formatFloat(sn.StressThr),
		formatFloat(sn.ExtremeThr),
	}
}

func decodeRow(rec []string) (models.Snapshot, error) {
	var (
		sn  models.Snapshot
		err error
	)
	if sn.Timestamp, err = time.Parse(time.RFC3339Nano, rec[0]); err != nil {
		return sn, err
	}
	sn.Symbol = rec[1]
	nums := []struct {
		dst *float64
		src string
	}{{&sn.Price, rec[2]}, {&sn.CLP, rec[5]}, {&sn.StressThr, rec[7]}, {&sn.ExtremeThr, rec[8]}}
	for _, n := range nums {
		if *n.dst, err = strconv.ParseFloat(n.src, 64); err != nil {
			return sn, err
		}
	}
	if sn.Funding, err = parseOptional(rec[3]); err != nil {
		return sn, err
	}
	if sn.OpenInterest, err = parseOptional(rec[4]); err != nil {
		return sn, err
	}
	sn.Regime, err = models.ParseRegime(rec[6])
	return sn, err
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func formatOptional(f models.Float) string {
	if !f.Valid {
		return ""
	}
	return formatFloat(f.V)
}

func parseOptional(s string) (models.Float, error) {
	if s == "" || s == "NA" || s == "nan" {
		return models.Undefined, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return models.Undefined, err
	}
	return models.Some(v), nil
}
