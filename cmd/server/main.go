// Package main provides the unified analytics service: HTTP query API,
// websocket ingest and Prometheus metrics over a memory or database-backed
// event store.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-analytics-lab/internal/config"
	"market-analytics-lab/internal/costs"
	"market-analytics-lab/internal/engine"
	"market-analytics-lab/internal/eventstore"
	"market-analytics-lab/internal/eventstore/clickhouse"
	"market-analytics-lab/internal/eventstore/memory"
	"market-analytics-lab/internal/eventstore/postgres"
	"market-analytics-lab/internal/observability"
	"market-analytics-lab/internal/querycache"
	"market-analytics-lab/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	log := observability.NewLogger("main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, cleanup, err := createStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("store setup failed")
	}
	defer cleanup()

	metrics := observability.NewMetrics("market_analytics", nil)
	cache := querycache.New(cfg.Cache.Capacity)
	estimator := costs.NewEstimator(cfg.Costs.RowsPerEntityDay, cfg.Costs.AvgRowBytes, cfg.Costs.PricePerByte)
	eng := engine.New(store, cache, estimator, metrics)

	srv := server.New(server.Options{
		Engine:           eng,
		Store:            store,
		Cache:            cache,
		Metrics:          metrics,
		DefaultBudgetUSD: cfg.Costs.DefaultBudgetUSD,
	})

	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("backend", cfg.Store.Backend).Msg("server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSec)*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}

// createStore assembles the event store for the configured backend.
// The db backend keeps bars and trades in ClickHouse and portfolio
// transactions in Postgres, sharing one version counter set.
func createStore(ctx context.Context, cfg *config.Config) (*eventstore.Store, func(), error) {
	if cfg.Store.Backend == config.BackendMemory {
		return memory.NewStore(), func() {}, nil
	}

	conn, err := clickhouse.NewConn(ctx, cfg.Store.ClickHouseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse: %w", err)
	}
	pool, err := postgres.NewPool(ctx, cfg.Store.PostgresDSN)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}

	versions := eventstore.NewVersions()
	store := &eventstore.Store{
		Bars:         clickhouse.NewPriceBarStore(conn, versions),
		Trades:       clickhouse.NewTradeStore(conn, versions),
		Transactions: postgres.NewTransactionStore(pool, versions),
		Versions:     versions,
	}
	cleanup := func() {
		pool.Close()
		conn.Close()
	}
	return store, cleanup, nil
}
