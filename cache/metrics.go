package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statecache_hits_total",
		Help: "Transition cache hits by tier",
	}, []string{"tier"})

	missesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "statecache_misses_total",
		Help: "Transition cache misses across all tiers",
	})

	evictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statecache_evictions_total",
		Help: "Entries evicted by tier",
	}, []string{"tier"})

	expirationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "statecache_expirations_total",
		Help: "Entries removed by TTL expiry",
	})

	entriesGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "statecache_entries",
		Help: "Live entries by tier",
	}, []string{"tier"})

	capacityGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "statecache_l1_capacity",
		Help: "Current adaptive L1 capacity",
	})
)
