package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "code"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_connections",
			Help: "Number of active connections",
		},
	)

	PageCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "page_cache_requests_total",
			Help: "Page cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	PageCacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "page_cache_invalidations_total",
			Help: "Explicit page cache invalidations",
		},
	)

	FollowOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "follow_operations_total",
			Help: "Follow and unfollow calls by outcome",
		},
		[]string{"operation", "result"},
	)

	FeedPageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_page_duration_seconds",
			Help:    "Duration of feed page computation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"feed"},
	)
)
