package pricing

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"lpAnalytics/internal/model"
	"lpAnalytics/internal/reserves"
)

// USD is the currency id prices are denominated in by default.
const USD int64 = 1

// PoolReserves resolves pools and their reserves.
type PoolReserves interface {
	Pool(ctx context.Context, network int, address common.Address) (model.Pool, error)
	GetReserves(ctx context.Context, pool model.Pool, start, end uint64) ([]model.ReserveObservation, error)
}

// SupplySource returns the LP token supply recorded at or before a block.
type SupplySource interface {
	LPSupplyAt(ctx context.Context, pool common.Address, block uint64) (*big.Int, bool, error)
}

// LPQuote is the price of one LP token and its inputs.
type LPQuote struct {
	Block    uint64
	Reserve0 float64
	Reserve1 float64
	Price0   float64
	Price1   float64
	Poolsize float64
	Supply   float64
	Price    float64
}

// Quoter answers point-in-time price questions on top of a Builder.
type Quoter struct {
	builder *Builder
	pools   PoolReserves
	supply  SupplySource
}

func NewQuoter(builder *Builder, pools PoolReserves, supply SupplySource) *Quoter {
	return &Quoter{builder: builder, pools: pools, supply: supply}
}

// TokenPrice returns the last USD price of token at or before block.
func (q *Quoter) TokenPrice(ctx context.Context, token model.TokenRef, block uint64) (float64, error) {
	from := uint64(0)
	if block > q.builder.cfg.QuoteLookback {
		from = block - q.builder.cfg.QuoteLookback
	}
	series, err := q.builder.GetPriceIndex(ctx, token, from, block)
	if err != nil {
		return 0, err
	}
	price, _, ok := series.Last(block)
	if !ok {
		return 0, &model.TokenPricesNotFoundError{Token: token.String()}
	}
	return price, nil
}

// Denominate converts a USD price into another currency. Fiat currencies other
// than USD are not priced by pools and are rejected by TokenNotTrackedError.
func (q *Quoter) Denominate(ctx context.Context, usd float64, currency int64, block uint64) (float64, error) {
	if currency == USD || currency == 0 {
		return usd, nil
	}
	rate, err := q.TokenPrice(ctx, model.TokenRef{CurrencyID: currency}, block)
	if err != nil {
		return 0, err
	}
	if rate == 0 {
		return 0, fmt.Errorf("currency %d has zero price at block %d", currency, block)
	}
	return usd / rate, nil
}

// LPTokenPrice prices one LP token of a pair from indexed reserves and supply.
func (q *Quoter) LPTokenPrice(ctx context.Context, network int, pair common.Address, block uint64) (LPQuote, error) {
	pool, err := q.pools.Pool(ctx, network, pair)
	if err != nil {
		return LPQuote{}, err
	}
	observations, err := q.pools.GetReserves(ctx, pool, block, block)
	if err != nil {
		return LPQuote{}, err
	}
	if len(observations) == 0 {
		return LPQuote{}, &model.TokenPricesNotFoundError{Token: pair.Hex()}
	}
	supplyRaw, ok, err := q.supply.LPSupplyAt(ctx, pair, block)
	if err != nil {
		return LPQuote{}, err
	}
	if !ok {
		return LPQuote{}, fmt.Errorf("no lp supply recorded for %s at block %d", pair.Hex(), block)
	}
	obs := observations[len(observations)-1]
	return q.quoteLP(ctx, pool, block, obs.Reserve0, obs.Reserve1, reserves.Normalize(supplyRaw, pool.LPDecimals))
}

// LPTokenPriceFromState prices one LP token from on-chain pair state.
func (q *Quoter) LPTokenPriceFromState(ctx context.Context, pool model.Pool, state model.PairState) (LPQuote, error) {
	if pool.Decimals0 == nil || pool.Decimals1 == nil {
		return LPQuote{}, fmt.Errorf("pool %s has no registry decimals", pool.Address.Hex())
	}
	return q.quoteLP(ctx, pool, state.Block,
		reserves.Normalize(state.Reserve0, *pool.Decimals0),
		reserves.Normalize(state.Reserve1, *pool.Decimals1),
		reserves.Normalize(state.TotalSupply, pool.LPDecimals),
	)
}

func (q *Quoter) quoteLP(ctx context.Context, pool model.Pool, block uint64, r0, r1, supply float64) (LPQuote, error) {
	if supply <= 0 {
		return LPQuote{}, fmt.Errorf("pool %s has no lp supply", pool.Address.Hex())
	}
	p0, err := q.TokenPrice(ctx, model.TokenRef{Address: pool.Token0, Network: pool.Network}, block)
	if err != nil {
		return LPQuote{}, fmt.Errorf("token0 price: %w", err)
	}
	p1, err := q.TokenPrice(ctx, model.TokenRef{Address: pool.Token1, Network: pool.Network}, block)
	if err != nil {
		return LPQuote{}, fmt.Errorf("token1 price: %w", err)
	}
	poolsize := r0*p0 + r1*p1
	return LPQuote{
		Block:    block,
		Reserve0: r0,
		Reserve1: r1,
		Price0:   p0,
		Price1:   p1,
		Poolsize: poolsize,
		Supply:   supply,
		Price:    poolsize / supply,
	}, nil
}
