package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ClpWatch/internal/domain/models"
	"ClpWatch/internal/domain/repository"
)

// insertChunk bounds the rows of one multi-VALUES insert.
const insertChunk = 2000

// ClickHouseSnapshotStore keeps the snapshot log in a MergeTree table.
type ClickHouseSnapshotStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseSnapshotStore creates a store over table (optionally db-qualified).
func NewClickHouseSnapshotStore(db *sql.DB, table string) *ClickHouseSnapshotStore {
	return &ClickHouseSnapshotStore{db: db, table: table}
}

var _ repository.SnapshotStore = (*ClickHouseSnapshotStore)(nil)

// Init creates the table if missing.
func (s *ClickHouseSnapshotStore) Init(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	ts DateTime64(3, 'UTC'),
	symbol LowCardinality(String),
	price Float64,
	funding Nullable(Float64),
	oi Nullable(Float64),
	clp Float64,
	regime LowCardinality(String),
	stress_thr Float64,
	extreme_thr Float64
) ENGINE = MergeTree ORDER BY (symbol, ts)`, s.table)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

func (s *ClickHouseSnapshotStore) Append(ctx context.Context, snaps []models.Snapshot) error {
	for start := 0; start < len(snaps); start += insertChunk {
		end := min(start+insertChunk, len(snaps))
		values := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*9)
		for _, sn := range snaps[start:end] {
			if sn.Symbol == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				sn.Timestamp.UTC(),
				sn.Symbol,
				sn.Price,
				nullable(sn.Funding),
				nullable(sn.OpenInterest),
				sn.CLP,
				sn.Regime.String(),
				sn.StressThr,
				sn.ExtremeThr,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, symbol, price, funding, oi, clp, regime, stress_thr, extreme_thr) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert snapshots: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseSnapshotStore) Load(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.Snapshot, error) {
	var (
		where []string
		args  []any
	)
	if symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, symbol)
	}
	if !from.IsZero() {
		where = append(where, "ts >= ?")
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		where = append(where, "ts <= ?")
		args = append(args, to.UTC())
	}
	q := "SELECT ts, symbol, price, funding, oi, clp, regime, stress_thr, extreme_thr FROM " + s.table
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY ts DESC"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []models.Snapshot
	for rows.Next() {
		var (
			sn          models.Snapshot
			funding, oi sql.NullFloat64
			regime      string
		)
		if err := rows.Scan(&sn.Timestamp, &sn.Symbol, &sn.Price, &funding, &oi, &sn.CLP, &regime, &sn.StressThr, &sn.ExtremeThr); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		sn.Timestamp = sn.Timestamp.UTC()
		sn.Funding = fromNull(funding)
		sn.OpenInterest = fromNull(oi)
		if sn.Regime, err = models.ParseRegime(regime); err != nil {
			return nil, err
		}
		out = append(out, sn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Close is a no-op; the pool belongs to pkg/clickhouse.
func (s *ClickHouseSnapshotStore) Close() error { return nil }

func nullable(f models.Float) any {
	if !f.Valid {
		return nil
	}
	return f.V
}

func fromNull(n sql.NullFloat64) models.Float {
	if !n.Valid {
		return models.Undefined
	}
	return models.Some(n.Float64)
}
