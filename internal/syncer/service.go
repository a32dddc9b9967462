// Package syncer implements the background worker that keeps the live
// snapshot in step with the configured definitions source.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rafaeljc/heimdall-evaluator/internal/observability"
	"github.com/rafaeljc/heimdall-evaluator/internal/snapshot"
	"github.com/rafaeljc/heimdall-evaluator/internal/validation"
)

// Config holds the configuration for the Syncer service.
type Config struct {
	// Interval is the duration between sync cycles (polling).
	Interval time.Duration
	// FetchTimeout bounds a single fetch from the source.
	FetchTimeout time.Duration
}

// Service orchestrates the synchronization process.
type Service struct {
	logger *slog.Logger
	config Config
	source snapshot.Source
	holder *snapshot.Holder
}

// New creates a new Syncer service.
func New(logger *slog.Logger, cfg Config, source snapshot.Source, holder *snapshot.Holder) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	validation.AssertNotNilInterface(source, "definitions source")
	validation.AssertNotNil(holder, "snapshot holder")

	if cfg.Interval < time.Second {
		cfg.Interval = 30 * time.Second // Safe default
	}
	if cfg.FetchTimeout <= 0 || cfg.FetchTimeout > cfg.Interval {
		cfg.FetchTimeout = cfg.Interval
	}

	return &Service{
		logger: logger.With(slog.String("source", source.Name())),
		config: cfg,
		source: source,
		holder: holder,
	}
}

// Run starts the syncer loop. It blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("starting syncer service",
		slog.Duration("interval", s.config.Interval),
		slog.Duration("fetch_timeout", s.config.FetchTimeout),
	)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run once immediately on startup
	if err := s.Sync(ctx); err != nil {
		s.logger.Error("initial sync failed", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("syncer service stopping...")
			return nil
		case <-ticker.C:
			if err := s.Sync(ctx); err != nil {
				// The previous snapshot stays live; retry on next tick.
				s.logger.Error("sync cycle failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Sync performs a single synchronization cycle: fetch, build, swap.
// On failure the live snapshot is left untouched.
func (s *Service) Sync(ctx context.Context) error {
	start := time.Now()
	defer func() {
		observability.SyncerCycleDuration.Observe(time.Since(start).Seconds())
	}()

	// 1. Read from the source, bounded by the fetch timeout
	fetchCtx, cancel := context.WithTimeout(ctx, s.config.FetchTimeout)
	defs, err := s.source.Fetch(fetchCtx)
	cancel()
	if err != nil {
		observability.SyncerCyclesTotal.WithLabelValues(s.source.Name(), "fail").Inc()
		return fmt.Errorf("failed to fetch definitions: %w", err)
	}

	// 2. Index into an immutable snapshot
	next := snapshot.Build(defs, s.logger)

	// 3. Publish, skipping the swap when nothing changed
	prev := s.holder.Load()
	if prev != nil && prev.Version() == next.Version() {
		observability.SyncerCyclesTotal.WithLabelValues(s.source.Name(), "success").Inc()
		observability.SyncerLastSuccess.SetToCurrentTime()
		s.logger.Debug("sync cycle completed, definitions unchanged",
			slog.String("version", prev.VersionString()),
			slog.Duration("duration", time.Since(start)),
		)
		return nil
	}

	s.holder.Store(next)
	recordSnapshotGauges(next.Stats())
	observability.SyncerCyclesTotal.WithLabelValues(s.source.Name(), "success").Inc()
	observability.SyncerLastSuccess.SetToCurrentTime()

	stats := next.Stats()
	s.logger.Info("snapshot updated",
		slog.String("version", next.VersionString()),
		slog.Int("flags", stats.Flags),
		slog.Int("rule_based_segments", stats.RuleBasedSegments),
		slog.Int("segments", stats.Segments),
		slog.Int("large_segments", stats.LargeSegments),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func recordSnapshotGauges(stats snapshot.Stats) {
	observability.SnapshotFlags.Set(float64(stats.Flags))
	observability.SnapshotSegments.WithLabelValues("standard").Set(float64(stats.Segments))
	observability.SnapshotSegments.WithLabelValues("large").Set(float64(stats.LargeSegments))
	observability.SnapshotSegments.WithLabelValues("rule_based").Set(float64(stats.RuleBasedSegments))
}
