package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchesTotal     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carona", Name: "searches_total", Help: "Total proximity searches executed"})
	SearchLatency     = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "carona", Name: "search_latency_seconds", Help: "Proximity search latency", Buckets: prometheus.DefBuckets})
	CandidatesScanned = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carona", Name: "match_candidates_scanned_total", Help: "Trip candidates evaluated in phase 2"})
	CandidatesSkipped = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carona", Name: "match_candidates_skipped_total", Help: "Candidates dropped for unusable geometry"})
	TextFallbacks     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carona", Name: "search_text_fallbacks_total", Help: "Searches served by the text fallback matcher"})

	GeocodeCacheHits = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carona", Name: "geocode_cache_hits_total", Help: "Geocode lookups served from cache"})
	GeocodeErrors    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carona", Name: "geocode_errors_total", Help: "Geocode provider failures"})
	RouteFallbacks   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carona", Name: "route_fallbacks_total", Help: "Routes synthesized by the straight-line fallback"})
	RouteCacheHits   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carona", Name: "route_cache_hits_total", Help: "Route lookups served from cache"})

	TripsActive = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "carona", Name: "trips_active", Help: "Number of active trips"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carona", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "carona",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
