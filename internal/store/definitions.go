// Package store reads flag definitions from PostgreSQL using the pgx driver.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/heimdall-evaluator/internal/snapshot"
	"github.com/rafaeljc/heimdall-evaluator/internal/validation"
)

// Compile-time check to verify that PostgresSource implements snapshot.Source.
var _ snapshot.Source = (*PostgresSource)(nil)

// PostgresSource loads definitions from the flag_definitions,
// rule_based_segments and segment_members tables.
type PostgresSource struct {
	db *pgxpool.Pool
}

// NewPostgresSource creates a new source with the given connection pool.
func NewPostgresSource(db *pgxpool.Pool) *PostgresSource {
	validation.AssertNotNil(db, "database pool")
	return &PostgresSource{db: db}
}

// Name implements snapshot.Source.
func (s *PostgresSource) Name() string {
	return "postgres"
}

// Fetch reads every table inside one read-only REPEATABLE READ transaction,
// so the three reads observe the same database state.
func (s *PostgresSource) Fetch(ctx context.Context) (*snapshot.Definitions, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin read transaction: %w", err)
	}
	// Read-only: rollback is the normal way to end it.
	defer func() { _ = tx.Rollback(ctx) }()

	defs := snapshot.NewDefinitions(s.Name())

	if err := readBodies(ctx, tx, `SELECT name, body FROM flag_definitions`, defs.Flags); err != nil {
		return nil, fmt.Errorf("failed to read flags: %w", err)
	}
	if err := readBodies(ctx, tx, `SELECT name, body FROM rule_based_segments`, defs.RuleBasedSegments); err != nil {
		return nil, fmt.Errorf("failed to read rule-based segments: %w", err)
	}

	rows, err := tx.Query(ctx, `SELECT segment_name, member_key, large FROM segment_members`)
	if err != nil {
		return nil, fmt.Errorf("failed to read segment members: %w", err)
	}
	defer rows.Close()

	var (
		segment, member string
		large           bool
	)
	_, err = pgx.ForEachRow(rows, []any{&segment, &member, &large}, func() error {
		if large {
			defs.LargeSegments[segment] = append(defs.LargeSegments[segment], member)
		} else {
			defs.Segments[segment] = append(defs.Segments[segment], member)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan segment member row: %w", err)
	}

	return defs, nil
}

func readBodies(ctx context.Context, tx pgx.Tx, query string, into map[string]json.RawMessage) error {
	rows, err := tx.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	var (
		name string
		body []byte
	)
	_, err = pgx.ForEachRow(rows, []any{&name, &body}, func() error {
		// The scan buffer is reused between rows.
		into[name] = json.RawMessage(append([]byte(nil), body...))
		return nil
	})
	return err
}

// PutFlag inserts or replaces a flag body.
func (s *PostgresSource) PutFlag(ctx context.Context, name string, body json.RawMessage) error {
	query := `
		INSERT INTO flag_definitions (name, body)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = now()
	`
	if _, err := s.db.Exec(ctx, query, name, []byte(body)); err != nil {
		return fmt.Errorf("failed to upsert flag %q: %w", name, err)
	}
	return nil
}

// PutRuleBasedSegment inserts or replaces a rule-based segment body.
func (s *PostgresSource) PutRuleBasedSegment(ctx context.Context, name string, body json.RawMessage) error {
	query := `
		INSERT INTO rule_based_segments (name, body)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = now()
	`
	if _, err := s.db.Exec(ctx, query, name, []byte(body)); err != nil {
		return fmt.Errorf("failed to upsert rule-based segment %q: %w", name, err)
	}
	return nil
}

// AddSegmentMembers adds keys to a standard (large=false) or large segment.
// Keys already present are ignored.
func (s *PostgresSource) AddSegmentMembers(ctx context.Context, segment string, large bool, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, key := range keys {
		batch.Queue(`
			INSERT INTO segment_members (segment_name, member_key, large)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, segment, key, large)
	}

	if err := s.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to add members to segment %q: %w", segment, err)
	}
	return nil
}
