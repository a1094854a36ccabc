package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks outbound price-update calls to commerce platforms.
	PlatformRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platform_update_requests_total",
			Help: "Total number of platform price-update requests (by platform and result).",
		},
		[]string{"platform", "result"}, // result = "ok" | "error"
	)

	// Measures duration of platform price-update calls.
	PlatformRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "platform_update_duration_seconds",
			Help:    "Duration of platform price-update requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"platform"},
	)

	// Tracks proposals ingested, by mode ("add" | "sheet").
	ProposalsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proposals_ingested_total",
			Help: "Total number of pricing proposals written in Pending state.",
		},
		[]string{"mode"},
	)

	// Tracks review decisions.
	ProposalsReviewedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proposals_reviewed_total",
			Help: "Total number of review decisions applied.",
		},
		[]string{"decision"}, // "Approved" | "Rejected"
	)

	// Tracks per-cycle propagation outcomes.
	DispatchItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_items_total",
			Help: "Total propagation items processed, by outcome.",
		},
		[]string{"outcome"}, // "succeeded" | "failed" | "skipped"
	)

	// Tracks notification emails sent by the change notifier.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total change-feed notification emails attempted.",
		},
		[]string{"kind", "result"}, // kind = "created" | "reviewed"
	)

	// Tracks cache hits and misses (proposal cache, floor cache, credentials).
	CacheAccessTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repricer_cache_access_total",
			Help: "Number of cache hits/misses by cache name.",
		},
		[]string{"cache", "result"}, // hit | miss
	)

	// Tracks total errors (aggregated).
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repricer_errors_total",
			Help: "Count of service-level errors by component.",
		},
		[]string{"component", "reason"},
	)

	// Gauges the last successful propagation cycle time (seconds since epoch).
	LastCycleTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_last_cycle_timestamp",
			Help: "Timestamp (unix seconds) of the last completed propagation cycle.",
		},
	)
)

// ObserveDuration records the time taken since start into the given histogram.
func ObserveDuration(v interface{}, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()

	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	default:
		// counters are not meant for duration tracking
	}
}

func IncPlatformRequest(platform, result string) {
	PlatformRequestsTotal.WithLabelValues(platform, result).Inc()
}

func IncIngested(mode string) {
	ProposalsIngestedTotal.WithLabelValues(mode).Inc()
}

func IncReviewed(decision string) {
	ProposalsReviewedTotal.WithLabelValues(decision).Inc()
}

func IncDispatchItem(outcome string) {
	DispatchItemsTotal.WithLabelValues(outcome).Inc()
}

func IncNotification(kind, result string) {
	NotificationsTotal.WithLabelValues(kind, result).Inc()
}

func IncCacheAccess(cache, result string) {
	CacheAccessTotal.WithLabelValues(cache, result).Inc()
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}

func SetLastCycle(t time.Time) {
	LastCycleTimestamp.Set(float64(t.Unix()))
}
