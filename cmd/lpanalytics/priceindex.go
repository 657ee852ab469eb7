package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lpAnalytics/internal/config"
	"lpAnalytics/internal/model"
)

type indexPoint struct {
	Block uint64  `json:"block"`
	Price float64 `json:"price"`
}

func runPriceIndex(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if !common.IsHexAddress(cfg.Token) {
		return fmt.Errorf("token address is required")
	}
	if cfg.To < cfg.From {
		return fmt.Errorf("to block %d before from block %d", cfg.To, cfg.From)
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

	reader := newReserveReader(store, chainClient, cfg.Retry, cfg.ReserveBatchSize, logger)
	builder := newBuilder(store, reader, cfg.Pricing, logger)

	token := model.TokenRef{Address: common.HexToAddress(cfg.Token), Network: cfg.Network}
	enc := json.NewEncoder(cmd.OutOrStdout())
	priced := 0
	span := builder.MaxBlockSpan()
	for start := cfg.From; start <= cfg.To; {
		end := cfg.To
		if end-start >= span {
			end = start + span - 1
		}
		series, err := builder.GetPriceIndex(ctx, token, start, end)
		if err != nil {
			return err
		}
		for block := start; block <= end; block++ {
			price, ok := series.At(block)
			if !ok {
				continue
			}
			if err := enc.Encode(indexPoint{Block: block, Price: price}); err != nil {
				return fmt.Errorf("write index: %w", err)
			}
		}
		priced += series.Valid()
		if end == cfg.To {
			break
		}
		start = end + 1
	}

	logger.Info("price index complete",
		zap.String("token", token.String()),
		zap.Uint64("from", cfg.From),
		zap.Uint64("to", cfg.To),
		zap.Int("priced_blocks", priced),
	)
	return nil
}
