package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lpAnalytics/internal/config"
	"lpAnalytics/internal/exchangerate"
	"lpAnalytics/internal/lp"
	"lpAnalytics/internal/summarizer"
)

func runSummarize(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSummarize(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	pools, err := parseAddresses(cfg.Pools)
	if err != nil {
		return err
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

	reader := newReserveReader(store, chainClient, cfg.Retry, 0, logger)
	engine := lp.NewEngine(store, exchangerate.NewCache(store, logger), reader, lp.SummaryConfig{
		MinPoolsize: cfg.MinPoolsize,
		MaxPoolsize: cfg.MaxPoolsize,
		MinFeeYield: cfg.MinFeeYield,
		MaxFeeYield: cfg.MaxFeeYield,
	}, logger)

	driver := summarizer.NewDriver(summarizer.Config{
		SummaryTypes: cfg.SummaryTypes,
		Pools:        pools,
		Denomination: cfg.Denomination,
		Overwrite:    cfg.Overwrite,
		KeepHistory:  cfg.KeepHistory,
		Refresh:      cfg.Refresh,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, store, engine, metrics, logger)

	logger.Info("summarize start",
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Strings("summary_types", cfg.SummaryTypes),
		zap.Int("pools", len(pools)),
		zap.Int64("denomination", cfg.Denomination),
		zap.Duration("interval", cfg.Interval),
	)

	if cfg.Interval <= 0 {
		_, err := driver.Run(ctx)
		return err
	}

	var watermark summarizer.Watermark
	if cfg.StateFile != "" {
		watermark = &summarizer.FileWatermark{Path: cfg.StateFile}
	} else {
		watermark = &summarizer.DBWatermark{Store: store, Name: cfg.StateName}
	}
	return summarizer.NewScheduler(driver, store, watermark, cfg.Interval, logger).Run(ctx)
}

func parseAddresses(values []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(values))
	for _, value := range values {
		if !common.IsHexAddress(value) {
			return nil, fmt.Errorf("invalid address %q", value)
		}
		out = append(out, common.HexToAddress(value))
	}
	return out, nil
}
