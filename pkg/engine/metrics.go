package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rate_proxy_cache_hits_total",
		Help: "Requests served from the cache fast path",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rate_proxy_cache_misses_total",
		Help: "Requests that missed the cache fast path",
	})

	coalescedHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rate_proxy_coalesced_hits_total",
		Help: "Misses resolved by another replica's write while waiting on the lock",
	})

	unavailableTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_proxy_unavailable_total",
		Help: "Requests the engine refused to answer, by reason",
	}, []string{"reason"})

	refreshUpdated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rate_proxy_refresh_updated_total",
		Help: "Cache entries rewritten by revalidation passes",
	})

	refreshErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rate_proxy_refresh_errors_total",
		Help: "Registry keys a revalidation pass could not refresh",
	})
)
