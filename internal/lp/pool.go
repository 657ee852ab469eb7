// Package lp computes liquidity pool returns, impermanent loss and fee yield
// from hourly pool snapshots and token prices.
package lp

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"lpAnalytics/internal/model"
)

// LiquidityPool builds and enriches the hourly return series of one pool.
type LiquidityPool interface {
	// FetchLPData assembles the hourly grid over [start, end). An empty result
	// means the pool has no data in the window.
	FetchLPData(ctx context.Context, start, end time.Time) ([]LpHour, error)
	InferMissingPrices(rows []LpHour)
	ComputeReturns(rows []LpHour)
}

// HourlySource reads hourly pool snapshots.
type HourlySource interface {
	HourlySnapshots(ctx context.Context, pool common.Address, start, end time.Time) ([]model.HourlySnapshot, error)
}

// PriceSource returns a token's hourly prices for the active date range.
type PriceSource interface {
	TokenPriceHistory(ctx context.Context, address common.Address, network int) ([]model.HourlyPrice, error)
}

// DecimalsSource resolves token decimals.
type DecimalsSource interface {
	Decimals(ctx context.Context, token common.Address, registry *uint8) (uint8, error)
}

// Sources bundles what a pool needs to read.
type Sources struct {
	Hourly   HourlySource
	Prices   PriceSource
	Decimals DecimalsSource
}

// NewLiquidityPool returns the implementation for the pool's platform.
func NewLiquidityPool(pool model.Pool, src Sources) (LiquidityPool, error) {
	switch pool.PlatformType {
	case model.PlatformUniswapV2:
		return NewConstantProductPool(pool, src), nil
	default:
		return nil, &model.UnsupportedPlatformError{Platform: pool.PlatformType}
	}
}
