// Package metrics documents the Prometheus metrics the proxy exports. All
// metrics are defined with promauto in their respective packages to keep
// them next to the code they observe; this package is the reference.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the proxy. All
// metrics are automatically registered via promauto in their packages and
// served on GET /metrics.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// KV metrics (pkg/kv):
//   - rate_proxy_kv_errors_total{operation} (Counter): Redis operation errors
//
// Upstream metrics (pkg/upstream):
//   - rate_proxy_upstream_requests_total{status} (Counter): pricing calls by outcome
//   - rate_proxy_upstream_request_duration_seconds (Histogram): pricing call latency
//
// Quota metrics (pkg/quota):
//   - rate_proxy_api_calls_used (Gauge): calls consumed in the current window
//
// Engine metrics (pkg/engine):
//   - rate_proxy_cache_hits_total (Counter): fast-path hits
//   - rate_proxy_cache_misses_total (Counter): fast-path misses
//   - rate_proxy_coalesced_hits_total (Counter): misses resolved by the double-check
//   - rate_proxy_unavailable_total{reason} (Counter): refused requests by reason
//   - rate_proxy_refresh_updated_total (Counter): entries rewritten by revalidation
//   - rate_proxy_refresh_errors_total (Counter): keys a pass could not refresh
//
// Example Prometheus Queries:
//
//   # Cache hit rate
//   rate(rate_proxy_cache_hits_total[5m]) /
//   (rate(rate_proxy_cache_hits_total[5m]) + rate(rate_proxy_cache_misses_total[5m]))
//
//   # Quota headroom alert
//   rate_proxy_api_calls_used > 900
//
//   # Coalescing effectiveness
//   rate(rate_proxy_coalesced_hits_total[5m]) / rate(rate_proxy_cache_misses_total[5m])
//
//   # P95 upstream latency
//   histogram_quantile(0.95, rate(rate_proxy_upstream_request_duration_seconds_bucket[5m]))
