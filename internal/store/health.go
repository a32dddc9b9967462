package store

import (
	"context"
	"fmt"
)

// definitionTables are read on every refresh.
var definitionTables = []string{"flag_definitions", "rule_based_segments", "segment_members"}

// Check lets the source gate readiness: the database must answer and the
// migrations must have created every table a refresh reads.
func (s *PostgresSource) Check(ctx context.Context) error {
	var missing []string
	err := s.db.QueryRow(ctx,
		`SELECT coalesce(array_agg(t), '{}') FROM unnest($1::text[]) AS t WHERE to_regclass(t) IS NULL`,
		definitionTables,
	).Scan(&missing)
	if err != nil {
		return fmt.Errorf("postgres schema check: %w", err)
	}
	if len(missing) > 0 {
		return fmt.Errorf("postgres schema is missing tables %v", missing)
	}
	return nil
}
