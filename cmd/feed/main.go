// Package main runs the live valuation pipeline: two feed connectors
// (equity, crypto) feeding the throttle/queue/worker coordinator backed by
// Postgres and the ClickHouse bar archive.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"valuation-pipeline/internal/config"
	"valuation-pipeline/internal/domain"
	"valuation-pipeline/internal/feed"
	"valuation-pipeline/internal/observability"
	"valuation-pipeline/internal/pipeline"
	"valuation-pipeline/internal/storage"
	chstore "valuation-pipeline/internal/storage/clickhouse"
	"valuation-pipeline/internal/storage/migrations"
	pgstore "valuation-pipeline/internal/storage/postgres"
	"valuation-pipeline/internal/valuation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := initLogger(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Feed.APIKey == "" {
		logger.Fatal("FEED_API_KEY is required")
	}

	metrics := observability.NewMetrics("")

	// Metrics server
	if cfg.App.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Info("starting metrics server", zap.String("addr", cfg.App.MetricsAddr))
			if err := http.ListenAndServe(cfg.App.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics server error", zap.Error(err))
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals with a forced-exit escape hatch.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		sig := <-sigCh
		logger.Info("received signal, initiating graceful shutdown", zap.String("signal", sig.String()))
		cancel()

		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing immediate shutdown", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	if err := run(ctx, cfg, logger, metrics); err != nil && err != context.Canceled {
		close(done)
		logger.Fatal("pipeline failed", zap.Error(err))
	}
	close(done)
	logger.Info("pipeline stopped")
}

// poolConnHeadroom is added on top of the per-worker connection budget when
// sizing the Postgres pool, covering migrations and startup queries.
const poolConnHeadroom = 2

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) error {
	// The governor admits up to PoolCeiling concurrent workers, and a
	// worker can hold two connections at once: its streaming position
	// cursor plus a value-log transaction when a batch flush fires
	// mid-stream. The pool must cover that or granted workers block
	// inside the driver, which the non-blocking governor exists to
	// prevent.
	maxConns := int32(2*cfg.Pipeline.PoolCeiling) + poolConnHeadroom
	pool, err := pgstore.NewPoolWithMaxConns(ctx, cfg.Postgres.DSN, maxConns)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return fmt.Errorf("postgres migrations: %w", err)
	}
	logger.Info("postgres ready")

	var archive storage.BarArchive
	if cfg.ClickHouse.Enabled {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouse.DSN)
		if err != nil {
			return fmt.Errorf("clickhouse migrations: %w", err)
		}
		defer conn.Close()
		archive = chstore.NewBarArchiveStore(conn)
		logger.Info("clickhouse ready")
	}

	pricer := valuation.NewPriceUpdater(
		pgstore.NewSymbolPriceStore(pool),
		pgstore.NewCatalogStore(pool),
		cfg.Pipeline.SessionGap,
	)
	revaluator := valuation.NewRevaluator(pgstore.NewPositionStore(pool))
	writer := valuation.NewRollupWriter(valuation.RollupWriterOptions{
		PositionLog:  pgstore.NewPositionValueStore(pool),
		AggregateLog: pgstore.NewAggregateValueStore(pool),
		Rollups:      pgstore.NewRollupStore(pool),
		Threshold:    cfg.Pipeline.BatchThreshold,
		Logger:       logger,
	})

	coordinator := pipeline.NewCoordinator(pipeline.CoordinatorOptions{
		Throttle:   pipeline.NewThrottleCache(cfg.Pipeline.CoolDown),
		Queue:      pipeline.NewEventQueue(),
		Governor:   pipeline.NewGovernor(cfg.Pipeline.PoolCeiling),
		Pricer:     pricer,
		Revaluator: revaluator,
		Writer:     writer,
		Archive:    archive,
		OpTimeout:  cfg.Pipeline.OpTimeout,
		Logger:     logger,
		Metrics:    metrics,
	})

	connCfg := feed.DefaultConnectorConfig()
	connCfg.ReconnectDelay = cfg.Feed.ReconnectDelay

	handler := func(bar domain.BarUpdate) { coordinator.HandleBar(ctx, bar) }

	profiles := []feed.Profile{
		feed.EquityProfile(cfg.Feed.EquityEndpoint),
		feed.CryptoProfile(cfg.Feed.CryptoEndpoint),
	}

	errCh := make(chan error, len(profiles))
	for _, profile := range profiles {
		connector := feed.NewConnector(profile, cfg.Feed.APIKey, handler, logger, &connCfg, metrics)
		go func() { errCh <- connector.Run(ctx) }()
	}

	// A fatal connector error (handshake rejection) stops the process; the
	// supervisor restarts it. Cancellation flows here too.
	err = <-errCh

	coordinator.Shutdown(context.Background())
	return err
}

func initLogger(level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch level {
	case "debug":
		cfg = zap.NewDevelopmentConfig()
	case "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
