package repository

import (
	"context"
	"time"

	"ClpWatch/internal/domain/models"
)

// MarketDataSource loads an aligned price/funding/OI series for one instrument.
type MarketDataSource interface {
	FetchSeries(ctx context.Context, symbol string, interval Interval, lookback int) (*models.Series, error)
}

// SnapshotStore is the append-only history of per-instrument summaries.
type SnapshotStore interface {
	Init(ctx context.Context) error
	Append(ctx context.Context, snaps []models.Snapshot) error
	// Load returns rows for symbol (all symbols when empty) in [from, to],
	// ascending by timestamp. Zero times leave the bound open; limit <= 0 is unbounded
	// and otherwise keeps the most recent rows.
	Load(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.Snapshot, error)
	Close() error
}

// SnapshotPublisher fans cycle output out to downstream consumers.
type SnapshotPublisher interface {
	PublishSnapshots(ctx context.Context, snaps []models.Snapshot) error
	PublishFlips(ctx context.Context, flips []models.FlipEvent) error
	Close() error
}

// Metrics records scoring telemetry.
type Metrics interface {
	RecordScore(symbol string, clp float64, regime models.Regime, thr models.Thresholds)
	RecordCrowding(ci models.Float)
	RecordFlip(symbol string, from, to models.Regime)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
