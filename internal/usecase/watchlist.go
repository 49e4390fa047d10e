package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"ClpWatch/internal/domain/models"
	domrepo "ClpWatch/internal/domain/repository"
	"ClpWatch/internal/services/risk"
	"ClpWatch/pkg/logger"

	"github.com/google/uuid"
)

// WatchlistConfig describes what a monitor scores each cycle.
type WatchlistConfig struct {
	Symbols  []string
	Params   RunParams
	Crowding risk.CrowdingParams
	Timeout  time.Duration
}

// WatchlistMonitor runs the cross-asset cycle over a watchlist.
type WatchlistMonitor struct {
	scorer    InstrumentScorer
	cfg       WatchlistConfig
	store     domrepo.SnapshotStore
	publisher domrepo.SnapshotPublisher
	tracker   *FlipTracker
	metrics   domrepo.Metrics
	log       *logger.Logger
	now       func() time.Time

	mu        sync.RWMutex
	latest    *models.CycleReport
	results   map[string]*InstrumentResult
	listeners []func(*models.CycleReport)
}

// NewWatchlistMonitor wires a monitor. store, publisher and metrics may be nil.
func NewWatchlistMonitor(scorer InstrumentScorer, cfg WatchlistConfig, store domrepo.SnapshotStore, publisher domrepo.SnapshotPublisher, tracker *FlipTracker, metrics domrepo.Metrics, log *logger.Logger) *WatchlistMonitor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Crowding.MinN == 0 && cfg.Crowding.TopFraction == 0 {
		cfg.Crowding = risk.DefaultCrowdingParams
	}
	if tracker == nil {
		tracker = NewFlipTracker()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &WatchlistMonitor{
		scorer:    scorer,
		cfg:       cfg,
		store:     store,
		publisher: publisher,
		tracker:   tracker,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
		results:   map[string]*InstrumentResult{},
	}
}

// Subscribe registers fn to receive every completed cycle.
func (m *WatchlistMonitor) Subscribe(fn func(*models.CycleReport)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Latest returns the most recent cycle report, nil before the first cycle.
func (m *WatchlistMonitor) Latest() *models.CycleReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// Result returns the last successful run of symbol.
func (m *WatchlistMonitor) Result(symbol string) (*InstrumentResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[symbol]
	return r, ok
}

// Flips exposes the tracker.
func (m *WatchlistMonitor) Flips() *FlipTracker { return m.tracker }

// Params returns the run parameters of the watchlist.
func (m *WatchlistMonitor) Params() RunParams { return m.cfg.Params }

// Symbols returns the tracked symbols.
func (m *WatchlistMonitor) Symbols() []string { return append([]string(nil), m.cfg.Symbols...) }

type instrumentOutcome struct {
	idx int
	res *InstrumentResult
	err error
}

// RunCycle scores every symbol concurrently and aggregates the successes.
// A failing symbol becomes an InstrumentFailure and never aborts the others.
func (m *WatchlistMonitor) RunCycle(ctx context.Context) (*models.CycleReport, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	at := m.now().UTC()
	start := time.Now()

	ch := make(chan instrumentOutcome, len(m.cfg.Symbols))
	var wg sync.WaitGroup
	for i, sym := range m.cfg.Symbols {
		wg.Add(1)
		go func(i int, sym string) {
			defer wg.Done()
			res, err := m.scorer.Run(ctx, sym, m.cfg.Params)
			ch <- instrumentOutcome{idx: i, res: res, err: err}
		}(i, sym)
	}
	go func() { wg.Wait(); close(ch) }()

	outcomes := make([]instrumentOutcome, len(m.cfg.Symbols))
	for o := range ch {
		outcomes[o.idx] = o
	}

	report := &models.CycleReport{ID: uuid.NewString(), Timestamp: at, Interval: string(m.cfg.Params.Interval)}
	var snaps []models.Snapshot
	results := map[string]*InstrumentResult{}
	for i, o := range outcomes {
		sym := m.cfg.Symbols[i]
		if o.err != nil {
			report.Failures = append(report.Failures, models.InstrumentFailure{Symbol: sym, Error: o.err.Error()})
			m.log.Warn("instrument run failed", logger.String("symbol", sym), logger.Error(o.err))
			continue
		}
		snap := o.res.Snapshot
		snap.Timestamp = at
		snaps = append(snaps, snap)
		results[sym] = o.res
	}

	Aggregate(report, snaps, m.cfg.Crowding)
	report.Flips = m.tracker.Observe(at, snaps)

	m.record(report, time.Since(start))
	m.persist(ctx, snaps, report.Flips)

	m.mu.Lock()
	m.latest = report
	for k, v := range results {
		m.results[k] = v
	}
	listeners := append(([]func(*models.CycleReport))(nil), m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(report)
	}
	return report, nil
}

// Aggregate fills the ranking, market average, crowding index and alerts of
// report from the successful snapshots of a cycle.
func Aggregate(report *models.CycleReport, snaps []models.Snapshot, cp risk.CrowdingParams) {
	report.Alerts = models.Alerts{Level: models.AlertNone}
	if len(snaps) == 0 {
		report.NoValidData = true
		report.MarketAvgCLP = models.Undefined
		report.CrowdingIndex = models.Undefined
		return
	}

	ranked := append([]models.Snapshot(nil), snaps...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].CLP > ranked[j].CLP })

	scores := make([]models.Float, len(ranked))
	report.Ranked = make([]models.RankedSnapshot, len(ranked))
	for i, s := range ranked {
		report.Ranked[i] = models.RankedSnapshot{Rank: i + 1, Snapshot: s}
		scores[i] = models.Some(s.CLP)
		switch {
		case s.CLP > s.ExtremeThr:
			report.Alerts.Extreme = append(report.Alerts.Extreme, s.Symbol)
		case s.CLP > s.StressThr:
			report.Alerts.Stress = append(report.Alerts.Stress, s.Symbol)
		}
	}
	report.MarketAvgCLP = risk.MarketAverage(scores)
	report.CrowdingIndex = risk.CrowdingIndex(scores, cp)

	switch {
	case len(report.Alerts.Extreme) > 0:
		report.Alerts.Level = models.AlertExtreme
	case len(report.Alerts.Stress) > 0:
		report.Alerts.Level = models.AlertStress
	}
}

func (m *WatchlistMonitor) record(report *models.CycleReport, took time.Duration) {
	for _, f := range report.Flips {
		m.log.Info("regime flip", logger.String("symbol", f.Symbol),
			logger.Stringer("from", f.From), logger.Stringer("to", f.To))
	}
	if m.metrics == nil {
		return
	}
	m.metrics.RecordLatency("watchlist_cycle", took.Seconds())
	m.metrics.RecordCrowding(report.CrowdingIndex)
	for _, f := range report.Flips {
		m.metrics.RecordFlip(f.Symbol, f.From, f.To)
	}
	for range report.Failures {
		m.metrics.RecordError("instrument_run")
	}
}

func (m *WatchlistMonitor) persist(ctx context.Context, snaps []models.Snapshot, flips []models.FlipEvent) {
	if len(snaps) == 0 {
		return
	}
	if m.store != nil {
		if err := m.store.Append(ctx, snaps); err != nil {
			m.log.Error("snapshot append failed", logger.Int("rows", len(snaps)), logger.Error(err))
			if m.metrics != nil {
				m.metrics.RecordError("snapshot_append")
			}
		}
	}
	if m.publisher != nil {
		if err := m.publisher.PublishSnapshots(ctx, snaps); err != nil {
			m.log.Error("snapshot publish failed", logger.Error(err))
		}
		if len(flips) > 0 {
			if err := m.publisher.PublishFlips(ctx, flips); err != nil {
				m.log.Error("flip publish failed", logger.Error(err))
			}
		}
	}
}

// Start runs a cycle immediately and then every refresh until ctx is done.
func (m *WatchlistMonitor) Start(ctx context.Context, refresh time.Duration) {
	if refresh <= 0 {
		refresh = 30 * time.Second
	}
	m.log.Info("watchlist monitor started",
		logger.Strings("symbols", m.cfg.Symbols),
		logger.String("interval", string(m.cfg.Params.Interval)),
		logger.Duration("refresh", refresh))

	ticker := time.NewTicker(refresh)
	defer ticker.Stop()
	for {
		report, _ := m.RunCycle(ctx)
		if report != nil && report.NoValidData {
			m.log.Warn("cycle produced no valid data", logger.Int("failures", len(report.Failures)))
		}
		select {
		case <-ctx.Done():
			m.log.Info("watchlist monitor stopped")
			return
		case <-ticker.C:
		}
	}
}
