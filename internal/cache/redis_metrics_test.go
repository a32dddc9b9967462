//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/heimdall-evaluator/internal/cache"
	"github.com/rafaeljc/heimdall-evaluator/internal/snapshot"
	"github.com/rafaeljc/heimdall-evaluator/internal/testsupport"
)

func TestRedisPoolMonitor_Integration(t *testing.T) {
	ctx := context.Background()
	redisCtr, err := testsupport.StartRedisContainer(ctx)
	require.NoError(t, err)
	defer redisCtr.Terminate(ctx)

	endpoint, err := redisCtr.Container.PortEndpoint(ctx, "6379/tcp", "")
	require.NoError(t, err)

	// A small pool makes reuse and exhaustion observable.
	client := redis.NewClient(&redis.Options{Addr: endpoint, PoolSize: 2})
	defer client.Close()

	src := cache.NewRedisSource(client, "metrics")
	defs := snapshot.NewDefinitions("redis")
	defs.Flags["checkout"] = []byte(`{"name":"checkout","conditions":[]}`)
	defs.Segments["beta"] = []string{"alice", "bob"}
	require.NoError(t, src.Publish(ctx, defs))

	monitorCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go cache.RunPoolMonitor(monitorCtx, client, 10*time.Millisecond)

	t.Run("Should report pool state while fetching", func(t *testing.T) {
		for range 5 {
			_, err := src.Fetch(ctx)
			require.NoError(t, err)
		}

		require.Eventually(t, func() bool {
			total := testsupport.GetMetricValue(t, "heimdall_redis_pool_connections", map[string]string{"state": "total"})
			stale := testsupport.GetMetricValue(t, "heimdall_redis_pool_connections", map[string]string{"state": "stale"})
			return total > 0 && stale <= total
		}, 2*time.Second, 10*time.Millisecond, "pool gauges should reflect source traffic")
	})

	t.Run("Should count connection reuse as hits", func(t *testing.T) {
		before := testsupport.GetMetricValue(t, "heimdall_redis_pool_hits_total", nil)

		for range 10 {
			_, err := src.Fetch(ctx)
			require.NoError(t, err)
		}

		require.Eventually(t, func() bool {
			return testsupport.GetMetricValue(t, "heimdall_redis_pool_hits_total", nil) > before
		}, 2*time.Second, 10*time.Millisecond, "sequential fetches must reuse pooled connections")
	})

	t.Run("Should keep timeout counter monotonic", func(t *testing.T) {
		before := testsupport.GetMetricValue(t, "heimdall_redis_pool_timeouts_total", nil)

		expired, cancel := context.WithTimeout(ctx, time.Millisecond)
		defer cancel()
		for range 5 {
			_, _ = src.Fetch(expired)
		}
		time.Sleep(50 * time.Millisecond)

		after := testsupport.GetMetricValue(t, "heimdall_redis_pool_timeouts_total", nil)
		assert.GreaterOrEqual(t, after, before)
	})
}
