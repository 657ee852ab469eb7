package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"lpAnalytics/internal/chain"
	"lpAnalytics/internal/config"
	"lpAnalytics/internal/observability"
	"lpAnalytics/internal/pricing"
	"lpAnalytics/internal/reserves"
	"lpAnalytics/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "lpanalytics",
		Short:        "Token price history and liquidity pool return analytics",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	populateCmd := &cobra.Command{
		Use:   "populate-prices",
		Short: "Extend the hourly price history of every watched token",
		RunE:  runPopulate,
	}

	populateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	populateCmd.Flags().String("rpc", "", "RPC URL for token decimals missing from the registry")
	populateCmd.Flags().Int("workers", 15, "concurrent token workers")
	populateCmd.Flags().String("recompute-from", "", "recompute every token from timestamp (unix seconds or RFC3339)")
	populateCmd.Flags().StringSlice("token", nil, "limit to currency ids (comma-separated)")
	populateCmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address")
	populateCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	populateCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	populateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(populateCmd)

	summarizeCmd := &cobra.Command{
		Use:   "summarize",
		Short: "Compute windowed LP return summaries",
		RunE:  runSummarize,
	}

	summarizeCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	summarizeCmd.Flags().String("rpc", "", "RPC URL for token decimals missing from the registry")
	summarizeCmd.Flags().StringSlice("summary-type", nil, "summary types (H, D, W, t1d, t7d, t30, M, tq, t12)")
	summarizeCmd.Flags().StringSlice("pool", nil, "limit to pool addresses (comma-separated)")
	summarizeCmd.Flags().Int64("denomination", 1, "denomination currency id")
	summarizeCmd.Flags().Bool("overwrite", false, "recompute windows that already exist")
	summarizeCmd.Flags().Bool("keep-history", false, "keep summaries of previous windows")
	summarizeCmd.Flags().Bool("refresh", false, "refresh the pricing view before running")
	summarizeCmd.Flags().Duration("interval", 0, "rerun on new hourly data at this interval, 0 runs once")
	summarizeCmd.Flags().String("state-file", "", "optional local watermark file for --interval")
	summarizeCmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address")
	summarizeCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	summarizeCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	summarizeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(summarizeCmd)

	indexCmd := &cobra.Command{
		Use:   "price-index",
		Short: "Print a token's price index over a block range",
		RunE:  runPriceIndex,
	}

	indexCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	indexCmd.Flags().String("rpc", "", "RPC URL for token decimals missing from the registry")
	indexCmd.Flags().Int("network", 1, "network id")
	indexCmd.Flags().String("token", "", "token address")
	indexCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	indexCmd.Flags().Uint64("to", 0, "end block (inclusive)")
	indexCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(indexCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a token or LP token price at a block",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	quoteCmd.Flags().String("rpc", "", "RPC URL, used for the latest block and missing decimals")
	quoteCmd.Flags().Int("network", 1, "network id")
	quoteCmd.Flags().String("token", "", "token address")
	quoteCmd.Flags().String("pool", "", "pair address, quotes its LP token")
	quoteCmd.Flags().Uint64("block", 0, "block number, 0 means latest")
	quoteCmd.Flags().Int64("currency", 1, "denomination currency id")
	quoteCmd.Flags().Bool("live", false, "read pair reserves and supply from the rpc node instead of the store")
	quoteCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(quoteCmd)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded schema migrations",
		RunE:  runMigrate,
	}

	migrateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	migrateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(migrateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}

func openStore(ctx context.Context, db config.Database) (*postgres.Store, error) {
	if db.PGDSN == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	store, err := postgres.NewStore(ctx, db.PGDSN, postgres.Options{MaxConns: db.MaxConns})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return store, nil
}

// dialChain connects when an RPC URL is configured. A nil client is returned otherwise.
func dialChain(ctx context.Context, rpcURL string, logger *zap.Logger) (*chain.Client, error) {
	if rpcURL == "" {
		return nil, nil
	}
	client, err := chain.Dial(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	logger.Info("rpc connected", zap.String("chain_id", client.ChainID().String()))
	return client, nil
}

func newReserveReader(store *postgres.Store, client *chain.Client, retry config.Retry, batchSize uint64, logger *zap.Logger) *reserves.Reader {
	var fetcher reserves.DecimalsFetcher
	if client != nil {
		fetcher = reserves.ChainDecimals{Caller: client, Logger: logger}
	}
	return reserves.NewReader(reserves.Config{
		BatchSize:    batchSize,
		MaxRetries:   retry.MaxRetries,
		RetryBackoff: retry.RetryBackoff,
	}, store, fetcher, logger)
}

func newBuilder(store *postgres.Store, reader *reserves.Reader, cfg config.Pricing, logger *zap.Logger) *pricing.Builder {
	return pricing.NewBuilder(pricing.Config{
		MaxNewTokenPools:    cfg.MaxNewTokenPools,
		LiquidityThreshold:  cfg.LiquidityThreshold,
		MinPools:            cfg.MinPools,
		MaxRecursion:        cfg.MaxRecursion,
		MaxDepth:            cfg.MaxDepth,
		MaxPrice:            cfg.MaxPrice,
		MinPoolSizePerBlock: cfg.MinPoolSizePerBlock,
		QuoteLookback:       cfg.QuoteLookback,
		MaxBlockSpan:        cfg.MaxBlockSpan,
	}, store, reader, pricing.NewNativeCache(store, cfg.NativeCacheBlocks), logger)
}

// startMetrics registers the job metrics and serves them when addr is set.
// The returned stop function shuts the server down.
func startMetrics(addr string, logger *zap.Logger) (*observability.Metrics, func()) {
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	if addr == "" {
		return metrics, func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("metrics server listening", zap.String("addr", addr))

	return metrics, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
