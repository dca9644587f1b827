// Package metrics provides the Prometheus registry for the ClinicalTrials.gov
// client. All metrics are defined in their respective packages (client,
// cache, ratelimit, pagination) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation, reference and the HTTP handler for
// all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects the metrics registered with Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns an HTTP handler exposing all metrics in the Prometheus
// text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - ctgov_requests_total{endpoint_category, status} (Counter): Upstream attempts by category and HTTP status
//   - ctgov_request_duration_seconds{endpoint_category} (Histogram): Logical request duration including retries
//   - ctgov_errors_total{class} (Counter): Failed attempts by class (validation, not_found, forbidden, rate_limit, server, network, decode)
//
// Retry Metrics (pkg/client):
//   - ctgov_retries_total{error_class} (Counter): Retry attempts by error class
//   - ctgov_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - ctgov_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Cache Metrics (pkg/cache):
//   - ctgov_cache_hits_total{category} (Counter): Cache hits by partition
//   - ctgov_cache_misses_total{category} (Counter): Cache misses by partition
//   - ctgov_cache_entries{category} (Gauge): Live entries per partition
//   - ctgov_cache_clears_total (Counter): Full cache clears
//
// Rate Limit Metrics (pkg/ratelimit):
//   - ctgov_rate_limit_cooldowns_total (Counter): 429 responses that started or extended a cooldown
//   - ctgov_rate_limit_waits_total (Counter): Requests delayed by an active cooldown
//   - ctgov_rate_limit_consecutive_hits (Gauge): Consecutive 429 responses since the last success
//
// Pagination Metrics (pkg/pagination):
//   - ctgov_pages_fetched_total{mode} (Counter): Search pages fetched by mode (all, stream, page)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(ctgov_cache_hits_total[5m])) /
//   (sum(rate(ctgov_cache_hits_total[5m])) + sum(rate(ctgov_cache_misses_total[5m])))
//
//   # Upstream Throttling
//   rate(ctgov_rate_limit_cooldowns_total[5m]) > 0
//
//   # Request Error Rate
//   rate(ctgov_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(ctgov_request_duration_seconds_bucket[5m]))
