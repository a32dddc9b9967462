package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/heimdall-evaluator/internal/observability"
)

// poolStatser is the slice of the go-redis client the monitor needs.
type poolStatser interface {
	PoolStats() *redis.PoolStats
}

// RunPoolMonitor samples the client's connection pool every interval and
// exports it as Prometheus metrics. It blocks until ctx is cancelled.
func RunPoolMonitor(ctx context.Context, client poolStatser, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last redis.PoolStats
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last = recordPoolStats(client.PoolStats(), last)
		}
	}
}

// recordPoolStats publishes gauges as-is and counters as the delta since prev.
func recordPoolStats(stats *redis.PoolStats, prev redis.PoolStats) redis.PoolStats {
	if stats == nil {
		return prev
	}

	observability.RedisPoolConnections.WithLabelValues("total").Set(float64(stats.TotalConns))
	observability.RedisPoolConnections.WithLabelValues("idle").Set(float64(stats.IdleConns))
	observability.RedisPoolConnections.WithLabelValues("stale").Set(float64(stats.StaleConns))

	if stats.Hits > prev.Hits {
		observability.RedisPoolHits.Add(float64(stats.Hits - prev.Hits))
	}
	if stats.Misses > prev.Misses {
		observability.RedisPoolMisses.Add(float64(stats.Misses - prev.Misses))
	}
	if stats.Timeouts > prev.Timeouts {
		observability.RedisPoolTimeouts.Add(float64(stats.Timeouts - prev.Timeouts))
	}
	return *stats
}
