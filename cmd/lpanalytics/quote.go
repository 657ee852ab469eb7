package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"lpAnalytics/internal/chain"
	"lpAnalytics/internal/config"
	"lpAnalytics/internal/dex"
	"lpAnalytics/internal/model"
	"lpAnalytics/internal/pricing"
	"lpAnalytics/internal/reserves"
)

type quoteResult struct {
	Block    uint64           `json:"block"`
	Time     *time.Time       `json:"time,omitempty"`
	Currency int64            `json:"currency_id"`
	Token    string           `json:"token,omitempty"`
	Pool     string           `json:"pool,omitempty"`
	Price    float64          `json:"price"`
	LP       *pricing.LPQuote `json:"lp,omitempty"`
}

func runQuote(cmd *cobra.Command, _ []string) error {
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

	if cfg.Pool == "" && !common.IsHexAddress(cfg.Token) {
		return fmt.Errorf("token or pool address is required")
	}
	if cfg.Pool != "" && !common.IsHexAddress(cfg.Pool) {
		return fmt.Errorf("invalid pool address %q", cfg.Pool)
	}
	if cfg.Live && (cfg.Pool == "" || cfg.RPCURL == "") {
		return fmt.Errorf("--live needs --pool and --rpc")
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

	block := cfg.Block
	if block == 0 {
		if chainClient != nil {
			block, err = chainClient.LatestBlockNumber(ctx)
		} else {
			block, err = store.MaxIndexedBlock(ctx, cfg.Network)
		}
		if err != nil {
			return fmt.Errorf("latest block: %w", err)
		}
	}

	reader := newReserveReader(store, chainClient, cfg.Retry, cfg.ReserveBatchSize, logger)
	quoter := pricing.NewQuoter(newBuilder(store, reader, cfg.Pricing, logger), reader, store)

	result := quoteResult{Block: block, Currency: cfg.Currency}
	if chainClient != nil {
		ts, err := chainClient.BlockTime(ctx, block)
		if err != nil {
			return err
		}
		result.Time = &ts
	}
	var usd float64
	if cfg.Pool != "" {
		lpQuote, err := quoteLP(ctx, cfg, quoter, reader, chainClient, block)
		if err != nil {
			return err
		}
		result.Pool = common.HexToAddress(cfg.Pool).Hex()
		result.LP = &lpQuote
		usd = lpQuote.Price
	} else {
		token := model.TokenRef{Address: common.HexToAddress(cfg.Token), Network: cfg.Network}
		usd, err = quoter.TokenPrice(ctx, token, block)
		if err != nil {
			return err
		}
		result.Token = token.Address.Hex()
	}

	result.Price, err = quoter.Denominate(ctx, usd, cfg.Currency, block)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func quoteLP(ctx context.Context, cfg config.QuoteConfig, quoter *pricing.Quoter, reader *reserves.Reader, client *chain.Client, block uint64) (pricing.LPQuote, error) {
	pair := common.HexToAddress(cfg.Pool)
	if !cfg.Live {
		return quoter.LPTokenPrice(ctx, cfg.Network, pair, block)
	}
	pool, err := reader.Pool(ctx, cfg.Network, pair)
	if err != nil {
		return pricing.LPQuote{}, err
	}
	state, err := dex.FetchPairState(ctx, client, pair, block)
	if err != nil {
		return pricing.LPQuote{}, fmt.Errorf("pair state: %w", err)
	}
	return quoter.LPTokenPriceFromState(ctx, pool, state)
}
