package cache_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/heimdall-evaluator/internal/cache"
	"github.com/rafaeljc/heimdall-evaluator/internal/ruleengine"
	"github.com/rafaeljc/heimdall-evaluator/internal/testsupport"
)

func TestResultCache_Metrics(t *testing.T) {
	// Setup: Low capacity cache to force evictions easily
	c, err := cache.NewResultCache(10, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	// 1. Hotpath Metrics (Hits/Misses)
	t.Run("records access metrics", func(t *testing.T) {
		t.Run("misses", func(t *testing.T) {
			testsupport.AssertMetricDelta(t, "heimdall_evaluation_cache_misses_total", nil, 1, func() {
				_, found := c.Get(404)
				assert.False(t, found)
			})
		})

		t.Run("hits", func(t *testing.T) {
			c.Set(1, ruleengine.Result{Treatment: "on", Label: "default rule"})
			testsupport.AssertMetricDelta(t, "heimdall_evaluation_cache_hits_total", nil, 1, func() {
				val, found := c.Get(1)
				assert.True(t, found)
				assert.Equal(t, "on", val.Treatment)
			})
		})
	})

	// 2. Background Metrics (Collector)
	t.Run("async collector metrics", func(t *testing.T) {
		ctx := t.Context()

		// Start collector with fast tick (10ms)
		go c.RunMetricsCollector(ctx, 10*time.Millisecond)

		t.Run("reflects items usage", func(t *testing.T) {
			for i := range 5 {
				c.Set(uint64(100+i), ruleengine.Result{Treatment: "on"})
			}

			require.Eventually(t, func() bool {
				val := testsupport.GetMetricValue(t, "heimdall_evaluation_cache_items_count", nil)
				return val >= 5
			}, 2*time.Second, 50*time.Millisecond, "usage metric failed to update")
		})

		t.Run("reflects evictions", func(t *testing.T) {
			// Flood cache (Capacity 10 -> Write 100) to force eviction
			for i := range 100 {
				c.Set(uint64(1000+i), ruleengine.Result{Treatment: "off"})
			}

			require.Eventually(t, func() bool {
				val := testsupport.GetMetricValue(t, "heimdall_evaluation_cache_evictions_total", nil)
				return val > 0
			}, 2*time.Second, 50*time.Millisecond, "evictions metric failed to increment")
		})

		t.Run("reflects dropped items (stress test)", func(t *testing.T) {
			var wg sync.WaitGroup
			for id := range 20 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := range 100 {
						c.Set(uint64(id*1000+j+10_000), ruleengine.Result{Treatment: "stress"})
					}
				}()
			}
			wg.Wait()

			// It might be 0 if hardware is fast, which is fine
			val := testsupport.GetMetricValue(t, "heimdall_evaluation_cache_dropped_total", nil)
			assert.GreaterOrEqual(t, val, 0.0)
		})
	})
}

func TestResultCache_ClearAndLen(t *testing.T) {
	t.Parallel()

	c, err := cache.NewResultCache(100, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	c.Set(1, ruleengine.Result{Treatment: "on"})
	require.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, 10*time.Millisecond)

	c.Clear()
	_, found := c.Get(1)
	assert.False(t, found)
}

func TestNewResultCache_InvalidCapacity(t *testing.T) {
	t.Parallel()

	_, err := cache.NewResultCache(0, time.Minute)
	assert.Error(t, err)
}
