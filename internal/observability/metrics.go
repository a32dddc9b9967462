package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// namespace defines the global prefix for all metrics (e.g., heimdall_...).
const namespace = "heimdall"

// lowLatencyBuckets defines custom buckets for in-process evaluations.
// Standard buckets are too coarse (starting at 5ms), so we go down to 10µs.
// Range: 10µs to 100ms.
var lowLatencyBuckets = []float64{.00001, .00005, .0001, .0005, .001, .002, .005, .010, .025, .050, .100}

var (
	// -------------------------------------------------------------------------
	// HTTP API
	// -------------------------------------------------------------------------

	// APIReqDuration measures the latency of HTTP requests.
	// Metric: heimdall_api_http_handling_seconds
	APIReqDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_handling_seconds",
		Help:      "Time taken to handle HTTP requests in the evaluation API",
		Buckets:   lowLatencyBuckets,
	}, []string{"method", "path"})

	// APIReqTotal counts the total number of HTTP requests.
	// Metric: heimdall_api_http_requests_total
	APIReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests in the evaluation API",
	}, []string{"method", "path", "code"})

	// -------------------------------------------------------------------------
	// EVALUATION (engine + result cache)
	// -------------------------------------------------------------------------

	// EvaluationsTotal counts evaluations by the label that explains the outcome.
	// Metric: heimdall_evaluations_total
	EvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "evaluations_total",
		Help:      "Total flag evaluations partitioned by outcome",
	}, []string{"outcome"}) // matched, default_rule, killed, not_in_split, ...

	// EvaluationDuration measures a single flag evaluation, cache lookup included.
	// Metric: heimdall_evaluation_duration_seconds
	EvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "evaluation",
		Name:      "duration_seconds",
		Help:      "Time taken to evaluate a single flag",
		Buckets:   lowLatencyBuckets,
	})

	// --- Result cache metrics (Otter) ---

	EvaluationCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "evaluation",
		Name:      "cache_hits_total",
		Help:      "Total result cache hits",
	})

	EvaluationCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "evaluation",
		Name:      "cache_misses_total",
		Help:      "Total result cache misses",
	})

	// EvaluationCacheEvictions tracks results removed due to capacity pressure.
	EvaluationCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "evaluation",
		Name:      "cache_evictions_total",
		Help:      "Total results evicted due to capacity pressure",
	})

	// Otter's S3-FIFO tracks item count efficiently, but not byte size.
	EvaluationCacheItems = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "evaluation",
		Name:      "cache_items_count",
		Help:      "Current number of results in the cache",
	})

	// EvaluationCacheDropped tracks writes rejected by the cache.
	EvaluationCacheDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "evaluation",
		Name:      "cache_dropped_total",
		Help:      "Total sets rejected by the result cache",
	})

	// -------------------------------------------------------------------------
	// SNAPSHOT
	// -------------------------------------------------------------------------

	// SnapshotParseFailures counts definitions that could not be compiled.
	// Metric: heimdall_snapshot_parse_failures_total
	SnapshotParseFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      "parse_failures_total",
		Help:      "Total definitions rejected while compiling",
	}, []string{"kind"}) // flag, rule_based_segment

	SnapshotFlags = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      "flags_count",
		Help:      "Number of flags in the live snapshot",
	})

	SnapshotSegments = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      "segments_count",
		Help:      "Number of segments in the live snapshot",
	}, []string{"type"}) // standard, large, rule_based

	// -------------------------------------------------------------------------
	// SYNCER
	// -------------------------------------------------------------------------

	// SyncerCycleDuration measures one fetch-build-swap cycle.
	// Metric: heimdall_syncer_cycle_duration_seconds
	SyncerCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "cycle_duration_seconds",
		Help:      "Time taken to fetch definitions and swap the snapshot",
		Buckets:   prometheus.DefBuckets,
	})

	SyncerCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "cycles_total",
		Help:      "Total synchronization cycles",
	}, []string{"source", "status"}) // success, fail

	// SyncerLastSuccess is the unix time of the last snapshot swap.
	SyncerLastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last successful synchronization",
	})

	// -------------------------------------------------------------------------
	// CONNECTION POOLS (sampled by the pool monitors)
	// -------------------------------------------------------------------------

	RedisPoolConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_connections",
		Help:      "Redis pool connections by state",
	}, []string{"state"}) // total, idle, stale

	RedisPoolHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_hits_total",
		Help:      "Times a free connection was found in the pool",
	})

	RedisPoolMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_misses_total",
		Help:      "Times a new connection had to be dialed",
	})

	RedisPoolTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_timeouts_total",
		Help:      "Times waiting for a pooled connection timed out",
	})

	DatabasePoolConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_connections",
		Help:      "PostgreSQL pool connections by state",
	}, []string{"state"}) // total, idle, in_use, max

	DatabasePoolAcquireCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_acquire_count_total",
		Help:      "Total successful connection acquisitions",
	})

	DatabasePoolAcquireDuration = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_acquire_duration_seconds_total",
		Help:      "Cumulative time spent acquiring connections",
	})

	DatabasePoolWaitCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_wait_count_total",
		Help:      "Acquisitions that had to wait for a free connection",
	})
)
