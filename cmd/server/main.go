// Package main runs the unified market-data server:
// - Coin, global and chart repositories over the CoinGecko API
// - Coin list view-model with search
// - Portfolio view-model with persisted holdings and valuation history
// - JSON API, health check and Prometheus metrics
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"coinwatch/internal/auth"
	"coinwatch/internal/coingecko"
	"coinwatch/internal/coinlist"
	"coinwatch/internal/market"
	"coinwatch/internal/observability"
	"coinwatch/internal/portfolio"
	"coinwatch/internal/storage"
	chstore "coinwatch/internal/storage/clickhouse"
	"coinwatch/internal/storage/memory"
	"coinwatch/internal/storage/migrations"
	pgstore "coinwatch/internal/storage/postgres"
)

// appStores holds the storage implementations behind the view-models.
type appStores struct {
	users      storage.UserStore
	assets     storage.AssetStore
	valuations storage.ValuationStore // nil without clickhouse
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	listenAddr := flag.String("listen-addr", envOr("LISTEN_ADDR", ":8080"), "HTTP listen address")
	apiBaseURL := flag.String("api-base-url", envOr("COINGECKO_BASE_URL", coingecko.DefaultBaseURL), "CoinGecko API base URL")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	refreshInterval := flag.Duration("refresh-interval", time.Minute, "Background portfolio price refresh interval")
	metricsNamespace := flag.String("metrics-namespace", "coinwatch", "Prometheus metrics namespace")

	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if !*useMemory && *postgresDSN == "" {
		logger.Error("--postgres-dsn is required (use --use-memory for in-memory storage)")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Error("create stores", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	metrics := observability.NewMetrics(*metricsNamespace)

	client := coingecko.NewClient(coingecko.WithBaseURL(*apiBaseURL))
	coins := market.NewCoinRepository(client, metrics, logger)
	global := market.NewGlobalRepository(client, metrics)
	charts := market.NewChartRepository(client)

	listVM := coinlist.NewViewModel(coins, metrics, logger)
	portfolioVM := portfolio.NewViewModel(stores.assets, stores.valuations, coins, metrics, logger)
	watcher := auth.NewWatcher(stores.users, portfolioVM, logger)

	go watcher.Run(ctx)
	go runRefreshLoop(ctx, portfolioVM, *refreshInterval)

	srv := &apiServer{
		coins:     coins,
		global:    global,
		charts:    charts,
		list:      listVM,
		portfolio: portfolioVM,
		watcher:   watcher,
		logger:    logger,
	}

	httpServer := &http.Server{
		Addr:    *listenAddr,
		Handler: srv.routes(),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", *listenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
			os.Exit(1)
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

// runRefreshLoop triggers the debounced portfolio price refresh on a timer.
// The view-model's own debounce window governs how often a fetch actually
// happens.
func runRefreshLoop(ctx context.Context, vm *portfolio.ViewModel, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			vm.RefreshPrices(ctx)
		}
	}
}

// createStores creates the user, asset and valuation stores and runs
// migrations. The valuation store is optional: without a clickhouse DSN
// history recording is disabled in persistent mode.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*appStores, func(), error) {
	if useMemory {
		assets := memory.NewAssetStore()
		stores := &appStores{
			users:      memory.NewUserStore(assets),
			assets:     assets,
			valuations: memory.NewValuationStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	stores := &appStores{
		users:  pgstore.NewUserStore(pool),
		assets: pgstore.NewAssetStore(pool),
	}
	cleanup := func() { pool.Close() }

	if clickhouseDSN != "" {
		chConn, err := chstore.NewConn(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		if err := migrations.RunClickhouseMigrations(ctx, chConn); err != nil {
			chConn.Close()
			pool.Close()
			return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		stores.valuations = chstore.NewValuationStore(chConn)
		cleanup = func() {
			chConn.Close()
			pool.Close()
		}
	}

	return stores, cleanup, nil
}

// envOr returns the environment variable value, or def when unset.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
