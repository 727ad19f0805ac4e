package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "watchsource",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "watchsource",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	ResolveRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "watchsource",
		Name:      "resolve_requests_total",
		Help:      "Total source aggregation requests.",
	})

	ResolvePartialTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "watchsource",
		Name:      "resolve_partial_total",
		Help:      "Total aggregation responses with at least one degraded tier.",
	})

	ResolveTierSources = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "watchsource",
		Name:      "resolve_tier_sources",
		Help:      "Number of sources returned per tier per resolve.",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
	}, []string{"tier"})

	TierFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "watchsource",
		Name:      "tier_failures_total",
		Help:      "Total producer failures contained at the aggregator boundary.",
	}, []string{"tier"})

	TorrentIndexFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "watchsource",
		Name:      "torrent_index_failures_total",
		Help:      "Total torrent index lookups that failed or timed out.",
	})

	TorrentIndexCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "watchsource",
		Name:      "torrent_index_cache_hits_total",
		Help:      "Total torrent index lookups served from cache.",
	})

	ReportsFiledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "watchsource",
		Name:      "reports_filed_total",
		Help:      "Total community reports accepted.",
	})

	SourcesFlaggedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "watchsource",
		Name:      "sources_flagged_total",
		Help:      "Total curated sources auto-flagged by a first report.",
	})

	PlaybackTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "watchsource",
		Name:      "playback_transitions_total",
		Help:      "Playback session state transitions by from and to state.",
	}, []string{"from", "to"})
)

// Register registers all metrics on the given registerer. Call once at startup.
func Register(registerer prometheus.Registerer) {
	registerer.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ResolveRequestsTotal,
		ResolvePartialTotal,
		ResolveTierSources,
		TierFailuresTotal,
		TorrentIndexFailures,
		TorrentIndexCacheHits,
		ReportsFiledTotal,
		SourcesFlaggedTotal,
		PlaybackTransitionsTotal,
	)
}
