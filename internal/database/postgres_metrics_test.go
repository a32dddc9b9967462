//go:build integration

package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/heimdall-evaluator/internal/config"
	"github.com/rafaeljc/heimdall-evaluator/internal/database"
	"github.com/rafaeljc/heimdall-evaluator/internal/testsupport"
)

func TestPostgresPoolMonitor_Integration(t *testing.T) {
	ctx := context.Background()
	pgCtr, err := testsupport.StartPostgresContainer(ctx, "../../migrations")
	require.NoError(t, err)
	defer pgCtr.Terminate(ctx)

	// A tight pool makes saturation deterministic.
	pool, err := database.NewPostgresPool(ctx, &config.DatabaseConfig{
		URL:            pgCtr.ConnectionString,
		MaxConns:       3,
		MinConns:       1,
		ConnectTimeout: 5 * time.Second,
		PingMaxRetries: 3,
		PingBackoff:    500 * time.Millisecond,
	})
	require.NoError(t, err)
	defer pool.Close()

	monitorCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go database.RunPoolMonitor(monitorCtx, pool, 10*time.Millisecond)

	gauge := func(state string) float64 {
		return testsupport.GetMetricValue(t, "heimdall_database_pool_connections", map[string]string{"state": state})
	}

	t.Run("Should export the configured ceiling", func(t *testing.T) {
		require.Eventually(t, func() bool {
			return gauge("max") == 3
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("Should count acquisitions", func(t *testing.T) {
		before := testsupport.GetMetricValue(t, "heimdall_database_pool_acquire_count_total", nil)

		for range 4 {
			conn, err := pool.Acquire(ctx)
			require.NoError(t, err)
			conn.Release()
		}

		require.Eventually(t, func() bool {
			return testsupport.GetMetricValue(t, "heimdall_database_pool_acquire_count_total", nil) >= before+4
		}, 2*time.Second, 10*time.Millisecond)
		require.Greater(t, testsupport.GetMetricValue(t, "heimdall_database_pool_acquire_duration_seconds_total", nil), 0.0)
	})

	t.Run("Should report in-use connections", func(t *testing.T) {
		conn, err := pool.Acquire(ctx)
		require.NoError(t, err)
		defer conn.Release()

		require.Eventually(t, func() bool {
			return gauge("in_use") == 1 && gauge("in_use") <= gauge("total")
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("Should count waits on an exhausted pool", func(t *testing.T) {
		var held []*pgxpool.Conn
		for range 3 {
			c, err := pool.Acquire(ctx)
			require.NoError(t, err)
			held = append(held, c)
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			if c, err := pool.Acquire(ctx); err == nil {
				c.Release()
			}
		}()

		time.Sleep(50 * time.Millisecond)
		for _, c := range held {
			c.Release()
		}

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("blocked acquire never completed")
		}

		require.Eventually(t, func() bool {
			return testsupport.GetMetricValue(t, "heimdall_database_pool_wait_count_total", nil) >= 1
		}, 2*time.Second, 10*time.Millisecond)
	})
}
