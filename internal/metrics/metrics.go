package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Shares enqueued counter (new dedup keys only)
	SharesEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_shares_enqueued_total",
			Help: "Total number of shares enqueued",
		},
	)

	// Re-enqueues collapsed into an existing item
	SharesDeduped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_shares_deduped_total",
			Help: "Total number of enqueues collapsed into an existing dedup key",
		},
	)

	// Shares delivered upstream and removed
	SharesDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_shares_delivered_total",
			Help: "Total number of shares delivered and dequeued",
		},
	)

	// Failed delivery attempts
	AttemptsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_attempts_failed_total",
			Help: "Total number of failed delivery attempts",
		},
	)

	// Shares removed by the expiry sweep
	SharesExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_shares_expired_total",
			Help: "Total number of shares removed by the expiry sweep",
		},
	)

	// Shares that spent their whole retry budget
	SharesExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_shares_exhausted_total",
			Help: "Total number of shares whose retry budget was exhausted",
		},
	)

	// Flush triggers dropped by the in-flight guard
	FlushesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_flushes_skipped_total",
			Help: "Total number of flush triggers dropped because one was already running",
		},
	)

	// Flush pass duration
	FlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_flush_duration_seconds",
			Help:    "Time taken for one flush pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Storage soft failures (lossy reads/dropped writes)
	StoreErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_store_errors_total",
			Help: "Total number of storage errors absorbed by the queue",
		},
	)
)
