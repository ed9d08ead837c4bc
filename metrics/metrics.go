// Package metrics exposes Prometheus counters for the watcher.
// They are served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watcher_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Reconciliation
	MonitorRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_monitor_runs_total",
			Help: "Monitor reconciliations by outcome",
		},
		[]string{"status"},
	)

	ListingsObservedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watcher_listings_observed_total",
			Help: "Listings returned by the source across all monitor runs",
		},
	)

	ListingsChangedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watcher_listings_changed_total",
			Help: "Listings that were new or changed price",
		},
	)

	PriceHistoryRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watcher_price_history_rows_total",
			Help: "Price history rows written",
		},
	)

	MatchesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watcher_matches_created_total",
			Help: "Monitor matches created",
		},
	)

	// Batches
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "watcher_batch_duration_seconds",
			Help:    "Time taken to run all active monitors",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	ActiveMonitors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watcher_active_monitors",
			Help: "Active monitors seen by the last batch",
		},
	)

	// Source
	SourceFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_source_fetches_total",
			Help: "Listing source fetches by outcome",
		},
		[]string{"status"},
	)

	// Workers
	NotificationsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watcher_notifications_sent_total",
			Help: "Match digests delivered",
		},
	)

	EnrichmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_enrichments_total",
			Help: "Listing page enrichments by outcome",
		},
		[]string{"status"},
	)
)
