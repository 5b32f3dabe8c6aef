// Package metrics registers the prometheus collectors exposed by the
// status surface: search throughput, cache hit rate, and worker queue
// depth.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SearchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "arb",
		Name:      "searches_total",
		Help:      "Number of golden-section/grid searches run.",
	})

	CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "arb",
		Name:      "cache_hits_total",
		Help:      "Number of arbitrage cache lookups that found a live entry.",
	})

	CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "arb",
		Name:      "cache_misses_total",
		Help:      "Number of arbitrage cache lookups that found no live entry.",
	})

	WorkerQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "arb",
		Name:      "worker_queue_depth",
		Help:      "Current number of cached opportunities awaiting a worker.",
	})

	SimulatorPoolOutstanding = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "arb",
		Name:      "simulator_pool_outstanding",
		Help:      "Outstanding handle count per simulator pool member.",
	}, []string{"member"})

	OpportunitiesSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "arb",
		Name:      "opportunities_submitted_total",
		Help:      "Number of opportunities submitted for execution.",
	})
)

// Register adds every collector in this package to reg. Call once, from
// cmd/statusd's main, before starting the HTTP server.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		SearchesTotal, CacheHits, CacheMisses, WorkerQueueDepth,
		SimulatorPoolOutstanding, OpportunitiesSubmitted,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
