package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clpwatch",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of scoring API endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clpwatch",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by scoring API endpoint",
		},
		[]string{"endpoint"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clpwatch",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Instrument run cache lookups by result",
		},
		[]string{"result"},
	)
)

// Register adds the collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors, CacheLookups)
	})
}
