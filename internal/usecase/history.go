package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"ClpWatch/internal/domain/models"
	domrepo "ClpWatch/internal/domain/repository"
)

// DefaultPivotRows is how many timestamps a history pivot keeps.
const DefaultPivotRows = 150

// HistoryQuery selects snapshot rows.
type HistoryQuery struct {
	Symbol string
	From   time.Time
	To     time.Time
	Limit  int
	Pivot  int
}

// PivotTable is CLP by timestamp (rows) and symbol (columns).
type PivotTable struct {
	Symbols    []string         `json:"symbols"`
	Timestamps []time.Time      `json:"timestamps"`
	Values     [][]models.Float `json:"values"`
}

// History is the snapshot log plus its CLP pivot.
type History struct {
	Rows  []models.Snapshot `json:"rows"`
	Pivot *PivotTable       `json:"pivot,omitempty"`
}

// HistoryUseCase reads the snapshot log.
type HistoryUseCase struct {
	store domrepo.SnapshotStore
}

func NewHistoryUseCase(store domrepo.SnapshotStore) *HistoryUseCase {
	return &HistoryUseCase{store: store}
}

// Load returns matching rows ascending by timestamp and, when q.Pivot > 0,
// the pivot of the last q.Pivot timestamps.
func (uc *HistoryUseCase) Load(ctx context.Context, q HistoryQuery) (*History, error) {
	if uc.store == nil {
		return &History{}, nil
	}
	rows, err := uc.store.Load(ctx, strings.ToUpper(q.Symbol), q.From, q.To, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	h := &History{Rows: rows}
	if q.Pivot > 0 && len(rows) > 0 {
		h.Pivot = Pivot(rows, q.Pivot)
	}
	return h, nil
}

// Pivot lays out CLP by (timestamp, symbol) keeping the last n timestamps.
// Duplicate (timestamp, symbol) cells hold the mean; missing cells are undefined.
func Pivot(rows []models.Snapshot, n int) *PivotTable {
	type cell struct {
		sum float64
		cnt int
	}
	cells := map[time.Time]map[string]*cell{}
	symSet := map[string]struct{}{}
	for _, r := range rows {
		ts := r.Timestamp.UTC()
		byTs, ok := cells[ts]
		if !ok {
			byTs = map[string]*cell{}
			cells[ts] = byTs
		}
		c, ok := byTs[r.Symbol]
		if !ok {
			c = &cell{}
			byTs[r.Symbol] = c
		}
		c.sum += r.CLP
		c.cnt++
		symSet[r.Symbol] = struct{}{}
	}

	stamps := make([]time.Time, 0, len(cells))
	for ts := range cells {
		stamps = append(stamps, ts)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })
	if n > 0 && len(stamps) > n {
		stamps = stamps[len(stamps)-n:]
	}

	symbols := make([]string, 0, len(symSet))
	for s := range symSet {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	out := &PivotTable{Symbols: symbols, Timestamps: stamps, Values: make([][]models.Float, len(stamps))}
	for i, ts := range stamps {
		row := make([]models.Float, len(symbols))
		for j, s := range symbols {
			if c, ok := cells[ts][s]; ok {
				row[j] = models.Some(c.sum / float64(c.cnt))
			}
		}
		out.Values[i] = row
	}
	return out
}
