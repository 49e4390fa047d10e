package metrics

import (
	"math"

	"ClpWatch/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	clp       *prometheus.GaugeVec
	regime    *prometheus.GaugeVec
	threshold *prometheus.GaugeVec
	crowding  prometheus.Gauge
	flips     *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

// New creates a recorder on the default registry.
func New() *Recorder { return NewWithRegisterer(prometheus.DefaultRegisterer) }

// NewWithRegisterer creates a recorder registering its collectors on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		clp: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "clpwatch_clp",
				Help: "Latest crowded leverage pressure score per symbol",
			},
			[]string{"symbol"},
		),
		regime: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "clpwatch_regime",
				Help: "Latest regime per symbol (0 normal, 1 stress, 2 extreme)",
			},
			[]string{"symbol"},
		),
		threshold: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "clpwatch_threshold",
				Help: "Adaptive CLP thresholds per symbol",
			},
			[]string{"symbol", "level"},
		),
		crowding: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "clpwatch_crowding_index",
				Help: "Cross-asset crowding index of the last cycle (NaN when undefined)",
			},
		),
		flips: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clpwatch_regime_flips_total",
				Help: "Regime changes between consecutive cycles",
			},
			[]string{"symbol", "to"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clpwatch_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clpwatch_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordScore records the latest score, regime and thresholds of a symbol.
func (r *Recorder) RecordScore(symbol string, clp float64, regime models.Regime, thr models.Thresholds) {
	r.clp.WithLabelValues(symbol).Set(clp)
	r.regime.WithLabelValues(symbol).Set(regime.Level())
	r.threshold.WithLabelValues(symbol, "stress").Set(thr.Stress)
	r.threshold.WithLabelValues(symbol, "extreme").Set(thr.Extreme)
}

// RecordCrowding records the crowding index of a cycle.
func (r *Recorder) RecordCrowding(ci models.Float) {
	r.crowding.Set(ci.Or(math.NaN()))
}

// RecordFlip counts a regime change.
func (r *Recorder) RecordFlip(symbol string, _, to models.Regime) {
	r.flips.WithLabelValues(symbol, to.String()).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
