package pricing

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpAnalytics/internal/model"
	"lpAnalytics/internal/reserves"
)

func u8(v uint8) *uint8 { return &v }

func TestQuoterTokenPriceUsesLastPricedBlock(t *testing.T) {
	f := newFixture()
	cand := stablePool(1, 10, 2)
	f.store.SetCandidates(tokenRef(1), cand)
	f.reserves.add(cand.PoolAddress, obs(100, 100, 250))

	cfg := DefaultConfig()
	cfg.QuoteLookback = 50
	q := NewQuoter(f.builder(cfg), nil, f.store)

	price, err := q.TokenPrice(context.Background(), tokenRef(1), 120)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, price, 1e-9)

	_, err = q.TokenPrice(context.Background(), tokenRef(1), 99)
	var notFound *model.TokenPricesNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestQuoterDenominate(t *testing.T) {
	f := newFixture()
	eth := stablePool(5, 10, 2)
	eth.IsNetworkCurrency = true
	f.store.SetCandidates(model.TokenRef{CurrencyID: 2}, eth)
	f.store.SetNativePrices("eth_price", model.BlockPrice{BlockNumber: 1, Price: 2000})
	q := NewQuoter(f.builder(DefaultConfig()), nil, f.store)

	usd, err := q.Denominate(context.Background(), 500, USD, 10)
	require.NoError(t, err)
	assert.Equal(t, 500.0, usd)

	inEth, err := q.Denominate(context.Background(), 500, 2, 10)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, inEth, 1e-12)
}

func TestQuoterLPTokenPrice(t *testing.T) {
	f := newFixture()
	pair := addr(10)
	pool := model.Pool{
		ID:           1,
		Address:      pair,
		Network:      testNetwork,
		PlatformType: model.PlatformUniswapV2,
		Token0:       addr(1),
		Token1:       addr(2),
		Decimals0:    u8(18),
		Decimals1:    u8(6),
		LPDecimals:   18,
	}
	f.store.AddPool(pool)
	f.store.AddSyncEvents(testNetwork, pair, model.SyncEvent{
		BlockNumber: 50,
		Reserve0:    new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18)),
		Reserve1:    big.NewInt(200_000_000),
	})
	f.store.AddHourly(model.HourlySnapshot{
		Address:        pair,
		OpenTimestamp:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		CloseTimestamp: time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC),
		MaxBlock:       55,
		CloseLPSupply:  new(big.Int).Mul(big.NewInt(40), big.NewInt(1e18)),
	})

	token0 := stablePool(1, 10, 2)
	f.store.SetCandidates(tokenRef(1), token0)
	f.reserves.add(token0.PoolAddress, obs(50, 100, 200))

	usdc := stablePool(2, 20, 2)
	usdc.IsNetworkCurrency = true
	usdc.NativePriceTable = "usd_peg"
	f.store.SetCandidates(tokenRef(2), usdc)
	f.store.SetNativePrices("usd_peg", model.BlockPrice{BlockNumber: 1, Price: 1})

	reader := reserves.NewReader(reserves.Config{}, f.store, nil, nil)
	q := NewQuoter(f.builder(DefaultConfig()), reader, f.store)

	quote, err := q.LPTokenPrice(context.Background(), testNetwork, pair, 60)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, quote.Reserve0, 1e-9)
	assert.InDelta(t, 200.0, quote.Reserve1, 1e-9)
	assert.InDelta(t, 400.0, quote.Poolsize, 1e-9)
	assert.InDelta(t, 40.0, quote.Supply, 1e-9)
	assert.InDelta(t, 10.0, quote.Price, 1e-9)

	state := model.PairState{
		Block:       60,
		Reserve0:    new(big.Int).Mul(big.NewInt(50), big.NewInt(1e18)),
		Reserve1:    big.NewInt(100_000_000),
		TotalSupply: new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18)),
	}
	live, err := q.LPTokenPriceFromState(context.Background(), pool, state)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, live.Price, 1e-9)
}
