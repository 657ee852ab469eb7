package reserves

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"lpAnalytics/internal/dex"
)

// DecimalsFetcher resolves token decimals missing from the registry.
type DecimalsFetcher interface {
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)
}

// ChainDecimals reads decimals() from the token contract.
type ChainDecimals struct {
	Caller dex.Caller
	Logger *zap.Logger
}

func (c ChainDecimals) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	if c.Caller == nil {
		return 0, fmt.Errorf("chain client is nil")
	}
	meta, err := dex.FetchTokenMeta(ctx, c.Caller, token, c.Logger)
	if err != nil {
		return 0, err
	}
	if c.Logger != nil {
		c.Logger.Debug("decimals read from chain",
			zap.String("token", meta.Address.Hex()),
			zap.String("symbol", meta.Symbol),
			zap.Uint8("decimals", meta.Decimals),
		)
	}
	return meta.Decimals, nil
}

// TokenDecimalsCache caches token decimals by address.
type TokenDecimalsCache struct {
	mu   sync.RWMutex
	data map[common.Address]uint8
}

func NewTokenDecimalsCache() *TokenDecimalsCache {
	return &TokenDecimalsCache{data: make(map[common.Address]uint8)}
}

func (c *TokenDecimalsCache) Get(address common.Address) (uint8, bool) {
	c.mu.RLock()
	decimals, ok := c.data[address]
	c.mu.RUnlock()
	return decimals, ok
}

func (c *TokenDecimalsCache) Set(address common.Address, decimals uint8) {
	c.mu.Lock()
	c.data[address] = decimals
	c.mu.Unlock()
}
