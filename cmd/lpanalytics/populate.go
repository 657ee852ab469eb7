package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lpAnalytics/internal/config"
	"lpAnalytics/internal/exchangerate"
)

func runPopulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadPopulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	recomputeFrom, err := config.ParseTime(cfg.RecomputeFrom)
	if err != nil {
		return fmt.Errorf("parse recompute-from: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	chainClient, err := dialChain(ctx, cfg.RPCURL, logger)
	if err != nil {
		return err
	}
	if chainClient != nil {
		defer chainClient.Close()
	}

	metrics, stopMetrics := startMetrics(cfg.MetricsAddr, logger)
	defer stopMetrics()

	reader := newReserveReader(store, chainClient, cfg.Retry, cfg.ReserveBatchSize, logger)
	builder := newBuilder(store, reader, cfg.Pricing, logger)

	populator := exchangerate.NewPopulator(exchangerate.PopulatorConfig{
		Workers:       cfg.Workers,
		RecomputeFrom: recomputeFrom,
		Tokens:        cfg.Tokens,
		MaxBlockSpan:  builder.MaxBlockSpan(),
	}, store, builder, builder.Native(), metrics, logger)

	logger.Info("populate start",
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Int("workers", cfg.Workers),
		zap.Time("recompute_from", recomputeFrom),
		zap.Int64s("tokens", cfg.Tokens),
	)

	_, err = populator.Run(ctx)
	return err
}
