// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Cache metrics, labelled by resource (coins_page, top_coins, prices, global)
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	StaleFallbacks *prometheus.CounterVec
	Invalidations  *prometheus.CounterVec

	// Upstream fetch metrics
	FetchLatency *prometheus.HistogramVec
	FetchErrors  *prometheus.CounterVec

	// Portfolio metrics
	PriceRefreshes     *prometheus.CounterVec // labelled by mode (debounced, forced)
	RefreshesDebounced prometheus.Counter
	HoldingsMutations  *prometheus.CounterVec // labelled by op (add, update, remove)
	ValuationsRecorded prometheus.Counter

	// List view-model metrics
	LoadRetries   prometheus.Counter
	StaleDiscards prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "coinwatch"
	}

	return &Metrics{
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of fresh cache hits by resource",
		}, []string{"resource"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of cache misses by resource",
		}, []string{"resource"}),
		StaleFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "stale_fallbacks_total",
			Help:      "Total number of stale cache entries served after a failed fetch",
		}, []string{"resource"}),
		Invalidations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Total number of explicit cache invalidations by resource",
		}, []string{"resource"}),

		FetchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "fetch_latency_seconds",
			Help:      "Upstream fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		FetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "fetch_errors_total",
			Help:      "Total number of upstream fetch errors by operation",
		}, []string{"operation"}),

		PriceRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "price_refreshes_total",
			Help:      "Total number of portfolio price refreshes by mode",
		}, []string{"mode"}),
		RefreshesDebounced: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "refreshes_debounced_total",
			Help:      "Total number of refresh attempts suppressed by the debounce window",
		}),
		HoldingsMutations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "holdings_mutations_total",
			Help:      "Total number of holding mutations by operation",
		}, []string{"op"}),
		ValuationsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "valuations_recorded_total",
			Help:      "Total number of valuation history samples recorded",
		}),

		LoadRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coinlist",
			Name:      "load_retries_total",
			Help:      "Total number of initial-load retry attempts",
		}),
		StaleDiscards: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coinlist",
			Name:      "stale_discards_total",
			Help:      "Total number of superseded load results discarded",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
