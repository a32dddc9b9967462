package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/heimdall-evaluator/internal/observability"
)

// poolCounters keeps the cumulative pgxpool counters seen at the last sample.
type poolCounters struct {
	acquireCount    int64
	acquireDuration time.Duration
	waitCount       int64
}

// RunPoolMonitor samples the pool every interval and exports it as
// Prometheus metrics. It blocks until ctx is cancelled.
func RunPoolMonitor(ctx context.Context, pool *pgxpool.Pool, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last poolCounters
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last = recordPoolStats(pool.Stat(), last)
		}
	}
}

func recordPoolStats(stat *pgxpool.Stat, prev poolCounters) poolCounters {
	observability.DatabasePoolConnections.WithLabelValues("total").Set(float64(stat.TotalConns()))
	observability.DatabasePoolConnections.WithLabelValues("idle").Set(float64(stat.IdleConns()))
	observability.DatabasePoolConnections.WithLabelValues("in_use").Set(float64(stat.AcquiredConns()))
	observability.DatabasePoolConnections.WithLabelValues("max").Set(float64(stat.MaxConns()))

	cur := poolCounters{
		acquireCount:    stat.AcquireCount(),
		acquireDuration: stat.AcquireDuration(),
		waitCount:       stat.EmptyAcquireCount(),
	}
	if d := cur.acquireCount - prev.acquireCount; d > 0 {
		observability.DatabasePoolAcquireCount.Add(float64(d))
	}
	if d := cur.acquireDuration - prev.acquireDuration; d > 0 {
		observability.DatabasePoolAcquireDuration.Add(d.Seconds())
	}
	if d := cur.waitCount - prev.waitCount; d > 0 {
		observability.DatabasePoolWaitCount.Add(float64(d))
	}
	return cur
}
