// Package testsupport starts throwaway PostgreSQL and Redis instances for the
// integration tests and exposes the metric helpers they assert with.
package testsupport

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/rafaeljc/heimdall-evaluator/internal/config"
	"github.com/rafaeljc/heimdall-evaluator/internal/database"
)

const postgresImage = "postgres:15-alpine"

// PostgresContainer is a migrated database with a pool built by the same
// factory the evaluator uses.
type PostgresContainer struct {
	Container        testcontainers.Container
	DB               *pgxpool.Pool
	ConnectionString string
}

// Reset empties the definition tables so scenarios sharing one container
// start from a blank schema.
func (c *PostgresContainer) Reset(ctx context.Context) error {
	if _, err := c.DB.Exec(ctx, `TRUNCATE flag_definitions, rule_based_segments, segment_members`); err != nil {
		return fmt.Errorf("failed to reset definition tables: %w", err)
	}
	return nil
}

// Terminate closes the pool and removes the container.
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	c.DB.Close()
	return c.Container.Terminate(ctx)
}

// StartPostgresContainer runs PostgreSQL with every *.sql file of
// migrationsDir applied as an init script, in filename order.
func StartPostgresContainer(ctx context.Context, migrationsDir string) (*PostgresContainer, error) {
	scripts, err := migrationScripts(migrationsDir)
	if err != nil {
		return nil, err
	}

	ctr, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase("heimdall_evaluator_test"),
		postgres.WithUsername("evaluator"),
		postgres.WithPassword("evaluator"),
		postgres.WithInitScripts(scripts...),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, &config.DatabaseConfig{
		URL:              connStr,
		ApplicationName:  "heimdall-evaluator-test",
		StatementTimeout: 5 * time.Second,
		MaxConns:         5,
		MinConns:         1,
		MaxConnLifetime:  30 * time.Minute,
		MaxConnIdleTime:  5 * time.Minute,
		ConnectTimeout:   5 * time.Second,
		PingMaxRetries:   3,
		PingBackoff:      500 * time.Millisecond,
	})
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	return &PostgresContainer{Container: ctr, DB: pool, ConnectionString: connStr}, nil
}

// migrationScripts returns the absolute, sorted *.sql paths of dir.
func migrationScripts(dir string) ([]string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve migrations path: %w", err)
	}
	scripts, err := filepath.Glob(filepath.Join(abs, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	if len(scripts) == 0 {
		return nil, fmt.Errorf("no migration files found in %s", abs)
	}
	// 001_, 002_, ... must run in order.
	slices.Sort(scripts)
	return scripts, nil
}
