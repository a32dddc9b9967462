package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter"

	"github.com/rafaeljc/heimdall-evaluator/internal/observability"
	"github.com/rafaeljc/heimdall-evaluator/internal/ruleengine"
)

// ResultCache memoizes evaluation results using a contention-free
// algorithm (S3-FIFO) provided by the 'otter' library.
//
// Evaluation is deterministic for a given snapshot, key and attribute bag, so
// a result keyed by a fingerprint of all four never goes stale. The TTL only
// reclaims memory held by results of superseded snapshots.
type ResultCache struct {
	store otter.Cache[uint64, ruleengine.Result]

	// Last observed otter counters, used to turn cumulative stats into deltas.
	lastEvicted  int64
	lastRejected int64
}

// NewResultCache initializes the cache with strict limits.
// capacity: Max number of results (Hard Cap to prevent OOM).
// ttl: Time-To-Live for results.
func NewResultCache(capacity int, ttl time.Duration) (*ResultCache, error) {
	builder, err := otter.NewBuilder[uint64, ruleengine.Result](capacity)
	if err != nil {
		return nil, fmt.Errorf("invalid result cache capacity: %w", err)
	}

	store, err := builder.CollectStats().WithTTL(ttl).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build result cache: %w", err)
	}

	return &ResultCache{store: store}, nil
}

// Get returns the cached result for fingerprint.
func (c *ResultCache) Get(fingerprint uint64) (ruleengine.Result, bool) {
	res, ok := c.store.Get(fingerprint)
	if ok {
		observability.EvaluationCacheHits.Inc()
	} else {
		observability.EvaluationCacheMisses.Inc()
	}
	return res, ok
}

// Set stores res under fingerprint.
func (c *ResultCache) Set(fingerprint uint64, res ruleengine.Result) {
	c.store.Set(fingerprint, res)
}

// Len returns the number of cached results.
func (c *ResultCache) Len() int {
	return c.store.Size()
}

// Clear drops every cached result.
func (c *ResultCache) Clear() {
	c.store.Clear()
}

// Close gracefully shuts down the cache and its background cleanup goroutines.
func (c *ResultCache) Close() {
	c.store.Close()
}

// RunMetricsCollector publishes occupancy and eviction stats every interval
// until ctx is cancelled. It blocks, so run it in its own goroutine.
func (c *ResultCache) RunMetricsCollector(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

func (c *ResultCache) collect() {
	stats := c.store.Stats()

	observability.EvaluationCacheItems.Set(float64(c.store.Size()))

	if evicted := stats.EvictedCount(); evicted > c.lastEvicted {
		observability.EvaluationCacheEvictions.Add(float64(evicted - c.lastEvicted))
		c.lastEvicted = evicted
	}
	if rejected := stats.RejectedSets(); rejected > c.lastRejected {
		observability.EvaluationCacheDropped.Add(float64(rejected - c.lastRejected))
		c.lastRejected = rejected
	}
}
