// Package telemetry registers the Prometheus metrics emitted by the
// aggregation services and exposes them over HTTP.
package telemetry

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UpstreamDuration tracks data-service round trips by endpoint and outcome.
	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketmover_upstream_request_duration_seconds",
		Help:    "Data service request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	}, []string{"endpoint", "outcome"})

	// CacheLookups counts cache lookups by cache and result (hit, miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketmover_cache_lookups_total",
		Help: "Cache lookups by cache name and result",
	}, []string{"cache", "result"})

	// Superseded counts calls cancelled by a newer call under the same key.
	Superseded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketmover_superseded_calls_total",
		Help: "Calls cancelled because a newer call for the same key started",
	}, []string{"operation"})

	// ParseFailures counts upstream rows dropped at ingestion.
	ParseFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketmover_parse_failures_total",
		Help: "Upstream rows dropped because a field could not be parsed",
	}, []string{"source"})

	// EnrichmentFailures counts optional lookups that degraded.
	EnrichmentFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketmover_enrichment_failures_total",
		Help: "Optional enrichment lookups that failed and were skipped",
	}, []string{"enrichment"})
)

// CacheHit records a cache hit.
func CacheHit(cache string) { CacheLookups.WithLabelValues(cache, "hit").Inc() }

// CacheMiss records a cache miss.
func CacheMiss(cache string) { CacheLookups.WithLabelValues(cache, "miss").Inc() }

// Handler serves the default registry in the Prometheus text format.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
