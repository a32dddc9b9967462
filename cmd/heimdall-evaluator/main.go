// Package main initializes and runs the Heimdall evaluator service.
//
// It acts as the composition root: it loads configuration, connects the
// definitions source, keeps the in-memory snapshot synchronized and serves
// flag evaluations over HTTP until a shutdown signal arrives.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rafaeljc/heimdall-evaluator/internal/cache"
	"github.com/rafaeljc/heimdall-evaluator/internal/client"
	"github.com/rafaeljc/heimdall-evaluator/internal/config"
	"github.com/rafaeljc/heimdall-evaluator/internal/database"
	"github.com/rafaeljc/heimdall-evaluator/internal/httpapi"
	"github.com/rafaeljc/heimdall-evaluator/internal/logger"
	"github.com/rafaeljc/heimdall-evaluator/internal/observability"
	"github.com/rafaeljc/heimdall-evaluator/internal/ruleengine"
	"github.com/rafaeljc/heimdall-evaluator/internal/snapshot"
	"github.com/rafaeljc/heimdall-evaluator/internal/store"
	"github.com/rafaeljc/heimdall-evaluator/internal/syncer"
)

// statsInterval is how often pool and cache gauges are refreshed.
const statsInterval = 15 * time.Second

// main is the application entrypoint.
func main() {
	if err := run(); err != nil {
		log.Printf("Fatal error: %v", err)
		os.Exit(1)
	}
}

// run executes the service lifecycle.
func run() error {
	// -------------------------------------------------------------------------
	// 1. Configuration & Logging
	// -------------------------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	appLog := logger.New(&cfg.App)
	slog.SetDefault(appLog)
	cfg.LogConfig(appLog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// -------------------------------------------------------------------------
	// 2. Definitions Source
	// -------------------------------------------------------------------------
	holder := snapshot.NewHolder()
	checkers := []observability.Checker{holder}

	var source snapshot.Source
	switch cfg.Source.Kind {
	case config.SourceKindPostgres:
		pool, err := database.NewPostgresPool(ctx, &cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		defer pool.Close()

		pgSource := store.NewPostgresSource(pool)
		source = pgSource
		checkers = append(checkers, pgSource)
		g.Go(func() error {
			database.RunPoolMonitor(gctx, pool, statsInterval)
			return nil
		})

	default:
		redisClient, err := cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()

		redisSource := cache.NewRedisSource(redisClient, cfg.Source.KeyPrefix)
		source = redisSource
		checkers = append(checkers, redisSource)
		g.Go(func() error {
			cache.RunPoolMonitor(gctx, redisClient, statsInterval)
			return nil
		})
	}

	// -------------------------------------------------------------------------
	// 3. Wiring (Dependency Injection)
	// -------------------------------------------------------------------------
	engine := ruleengine.New(logger.WithComponent(appLog, "engine"), ruleengine.WithMaxDepth(cfg.Engine.MaxDepth))

	var clientOpts []client.Option
	if cfg.Cache.Enabled {
		results, err := cache.NewResultCache(cfg.Cache.Capacity, cfg.Cache.TTL)
		if err != nil {
			return err
		}
		defer results.Close()

		clientOpts = append(clientOpts, client.WithResultCache(results))
		g.Go(func() error {
			results.RunMetricsCollector(gctx, statsInterval)
			return nil
		})
	}

	evaluator := client.New(logger.WithComponent(appLog, "client"), engine, holder, clientOpts...)

	worker := syncer.New(logger.WithComponent(appLog, "syncer"), syncer.Config{
		Interval:     cfg.Source.RefreshInterval,
		FetchTimeout: cfg.Source.FetchTimeout,
	}, source, holder)

	api := httpapi.NewAPI(logger.WithComponent(appLog, "httpapi"), evaluator, httpapi.Config{
		APIKeyHashes: cfg.Server.APIKeyHashes,
		SkipAuth:     !cfg.Server.AuthEnabled(),
		MaxBatchSize: cfg.Server.MaxBatchSize,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})

	obs := observability.NewServer(logger.WithComponent(appLog, "observability"), &cfg.Observability, checkers...)

	// -------------------------------------------------------------------------
	// 4. Run
	// -------------------------------------------------------------------------
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error { return obs.Run(gctx) })
	g.Go(func() error { return serveAPI(gctx, appLog, &cfg.Server, cfg.App.ShutdownTimeout, api.Router) })

	// -------------------------------------------------------------------------
	// 5. Graceful Shutdown
	// -------------------------------------------------------------------------
	err = g.Wait()
	if err != nil {
		appLog.Error("service stopped with error", slog.String("error", err.Error()))
		return err
	}

	appLog.Info("service exited successfully")
	return nil
}

// serveAPI runs the evaluation server until ctx is cancelled, then drains
// in-flight requests within shutdownTimeout.
func serveAPI(ctx context.Context, log *slog.Logger, cfg *config.ServerConfig, shutdownTimeout time.Duration, handler http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Address(),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("evaluation API listening",
			slog.String("addr", srv.Addr),
			slog.Bool("tls", cfg.TLSEnabled),
		)
		if cfg.TLSEnabled {
			errCh <- srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("evaluation API failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutdown signal received, draining evaluation API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("evaluation API shutdown: %w", err)
	}
	return nil
}
