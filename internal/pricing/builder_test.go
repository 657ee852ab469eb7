package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpAnalytics/internal/model"
	"lpAnalytics/internal/storage/memory"
)

const testNetwork = 1

type fakeReserves struct {
	pools map[common.Address][]model.ReserveObservation
	calls int
}

func newFakeReserves() *fakeReserves {
	return &fakeReserves{pools: make(map[common.Address][]model.ReserveObservation)}
}

func (f *fakeReserves) add(pool common.Address, obs ...model.ReserveObservation) {
	f.pools[pool] = append(f.pools[pool], obs...)
}

func (f *fakeReserves) GetReservesByAddress(_ context.Context, _ int, address common.Address, start, end uint64) ([]model.ReserveObservation, error) {
	f.calls++
	var out []model.ReserveObservation
	for _, o := range f.pools[address] {
		if o.BlockNumber >= start && o.BlockNumber <= end {
			out = append(out, o)
		}
	}
	return out, nil
}

func obs(block uint64, r0, r1 float64) model.ReserveObservation {
	return model.ReserveObservation{BlockNumber: block, Reserve0: r0, Reserve1: r1}
}

func addr(b byte) common.Address {
	return common.BytesToAddress([]byte{0xaa, b})
}

func tokenRef(b byte) model.TokenRef {
	return model.TokenRef{Address: addr(b), Network: testNetwork}
}

func stablePool(target, pool, counter byte) model.PricingPoolCandidate {
	seen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return model.PricingPoolCandidate{
		TargetTokenAddress:   addr(target),
		PoolAddress:          addr(pool),
		PricingTokenAddress:  addr(counter),
		Network:              testNetwork,
		PlatformType:         model.PlatformUniswapV2,
		LatestPriceTimestamp: &seen,
		IsUSDStable:          true,
		IsPricingToken:       true,
		NativePriceTable:     "eth_price",
	}
}

type fixture struct {
	store    *memory.Store
	reserves *fakeReserves
}

func newFixture() *fixture {
	return &fixture{store: memory.NewStore(), reserves: newFakeReserves()}
}

func (f *fixture) builder(cfg Config) *Builder {
	return NewBuilder(cfg, f.store, f.reserves, NewNativeCache(f.store, 0), nil)
}

func assertConstant(t *testing.T, series model.PriceSeries, start, end uint64, want float64) {
	t.Helper()
	for block := start; block <= end; block++ {
		p, ok := series.At(block)
		require.Truef(t, ok, "block %d unpriced", block)
		assert.InDeltaf(t, want, p, 1e-9, "block %d", block)
	}
}

func TestGetPriceIndexSingleStablePool(t *testing.T) {
	f := newFixture()
	cand := stablePool(1, 10, 2)
	f.store.SetCandidates(tokenRef(1), cand)
	f.reserves.add(cand.PoolAddress, obs(10, 100, 200), obs(15, 100, 200))

	series, err := f.builder(DefaultConfig()).GetPriceIndex(context.Background(), tokenRef(1), 10, 20)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), series.StartBlock)
	assert.Equal(t, 11, series.Len())
	assertConstant(t, series, 10, 20, 2)
}

func TestGetPriceIndexSinglePoolMatchesPoolSeries(t *testing.T) {
	f := newFixture()
	cand := stablePool(1, 10, 2)
	cand.TargetTokenIdx = 1
	f.store.SetCandidates(tokenRef(1), cand)
	f.reserves.add(cand.PoolAddress, obs(12, 300, 100), obs(14, 420, 100), obs(17, 500, 100), obs(18, 450, 100))

	b := f.builder(DefaultConfig())
	series, err := b.GetPriceIndex(context.Background(), tokenRef(1), 10, 20)
	require.NoError(t, err)

	ps, ok, err := b.poolPrice(context.Background(), &request{memo: map[memoKey]model.PriceSeries{}}, cand, 10, 20, 0)
	require.NoError(t, err)
	require.True(t, ok)

	for block := uint64(10); block <= 20; block++ {
		want, wantOK := ps.price.At(block)
		got, gotOK := series.At(block)
		assert.Equal(t, wantOK, gotOK, "block %d", block)
		assert.Equal(t, want, got, "block %d", block)
	}
	_, ok = series.At(11)
	assert.False(t, ok, "blocks before the first observation stay unpriced")
}

func TestGetPriceIndexWeightsByPoolSize(t *testing.T) {
	f := newFixture()
	a := stablePool(1, 10, 2)
	b := stablePool(1, 11, 3)
	f.store.SetCandidates(tokenRef(1), a, b)
	f.reserves.add(a.PoolAddress, obs(10, 100, 200))
	f.reserves.add(b.PoolAddress, obs(10, 10, 40))

	series, err := f.builder(DefaultConfig()).GetPriceIndex(context.Background(), tokenRef(1), 10, 12)
	require.NoError(t, err)

	// price 2 with size 400 and price 4 with size 80
	assertConstant(t, series, 10, 12, (2*400.0+4*80.0)/480.0)
}

func TestGetPriceIndexNativePricedPool(t *testing.T) {
	f := newFixture()
	cand := stablePool(1, 10, 2)
	cand.IsUSDStable = false
	f.store.SetCandidates(tokenRef(1), cand)
	f.store.SetNativePrices("eth_price", model.BlockPrice{BlockNumber: 10, Price: 3000})
	f.reserves.add(cand.PoolAddress, obs(10, 1000, 1))

	series, err := f.builder(DefaultConfig()).GetPriceIndex(context.Background(), tokenRef(1), 10, 14)
	require.NoError(t, err)
	assertConstant(t, series, 10, 14, 3)
}

func TestGetPriceIndexNetworkCurrency(t *testing.T) {
	f := newFixture()
	cand := stablePool(1, 10, 2)
	cand.IsNetworkCurrency = true
	f.store.SetCandidates(tokenRef(1), cand)
	f.store.SetNativePrices("ETH_PRICE",
		model.BlockPrice{BlockNumber: 10, Price: 2000},
		model.BlockPrice{BlockNumber: 12, Price: 2100},
	)

	series, err := f.builder(DefaultConfig()).GetPriceIndex(context.Background(), tokenRef(1), 10, 13)
	require.NoError(t, err)
	assert.Equal(t, []float64{2000, 2000, 2100, 2100}, series.Prices)
	assert.Zero(t, f.reserves.calls)
}

func TestGetPriceIndexNotTracked(t *testing.T) {
	f := newFixture()
	_, err := f.builder(DefaultConfig()).GetPriceIndex(context.Background(), tokenRef(9), 10, 20)

	var notTracked *model.TokenNotTrackedError
	require.True(t, errors.As(err, &notTracked))
}

func TestGetPriceIndexRejectsLongRange(t *testing.T) {
	f := newFixture()
	cand := stablePool(1, 10, 2)
	f.store.SetCandidates(tokenRef(1), cand)
	f.reserves.add(cand.PoolAddress, obs(10, 100, 200))
	cfg := DefaultConfig()
	cfg.MaxBlockSpan = 100
	b := f.builder(cfg)

	_, err := b.GetPriceIndex(context.Background(), tokenRef(1), 10, 110)
	require.ErrorIs(t, err, ErrRangeTooLarge)
	_, err = b.GetPriceIndex(context.Background(), tokenRef(1), 20, 10)
	require.Error(t, err)

	series, err := b.GetPriceIndex(context.Background(), tokenRef(1), 10, 109)
	require.NoError(t, err)
	assert.Equal(t, 100, series.Len())
}

func TestGetPriceIndexDropsOutliers(t *testing.T) {
	f := newFixture()
	cand := stablePool(1, 10, 2)
	f.store.SetCandidates(tokenRef(1), cand)
	f.reserves.add(cand.PoolAddress, obs(10, 1, 2e7))

	series, err := f.builder(DefaultConfig()).GetPriceIndex(context.Background(), tokenRef(1), 10, 12)
	require.NoError(t, err)
	assert.True(t, series.Empty())

	cfg := DefaultConfig()
	cfg.MaxPrice = 1e9
	cfg.MinPoolSizePerBlock = 1e8
	series, err = f.builder(cfg).GetPriceIndex(context.Background(), tokenRef(1), 10, 12)
	require.NoError(t, err)
	assert.True(t, series.Empty(), "pool size 4e7 is below the per-block minimum")
}

func TestGetPriceIndexRecursive(t *testing.T) {
	f := newFixture()
	// token 1 trades against token 3, which trades against a stable.
	viaX := stablePool(1, 10, 3)
	viaX.IsUSDStable = false
	viaX.IsPricingToken = false
	f.store.SetCandidates(tokenRef(1), viaX)
	f.reserves.add(viaX.PoolAddress, obs(10, 100, 20))

	xStable := stablePool(3, 11, 2)
	f.store.SetCandidates(tokenRef(3), xStable)
	f.reserves.add(xStable.PoolAddress, obs(10, 10, 50))

	series, err := f.builder(DefaultConfig()).GetPriceIndex(context.Background(), tokenRef(1), 10, 15)
	require.NoError(t, err)
	assertConstant(t, series, 10, 15, 1)

	cfg := DefaultConfig()
	cfg.MaxRecursion = 0
	series, err = f.builder(cfg).GetPriceIndex(context.Background(), tokenRef(1), 10, 15)
	require.NoError(t, err)
	assert.True(t, series.Empty())
}

func TestGetPriceIndexRecursionStopsAtDepth(t *testing.T) {
	f := newFixture()
	hop := func(target, pool, counter byte) model.PricingPoolCandidate {
		c := stablePool(target, pool, counter)
		c.IsUSDStable = false
		c.IsPricingToken = false
		return c
	}
	first := hop(1, 10, 3)
	second := hop(3, 11, 4)
	f.store.SetCandidates(tokenRef(1), first)
	f.store.SetCandidates(tokenRef(3), second)
	f.store.SetCandidates(tokenRef(4), stablePool(4, 12, 2))
	f.reserves.add(first.PoolAddress, obs(10, 1, 1))
	f.reserves.add(second.PoolAddress, obs(10, 1, 1))
	f.reserves.add(addr(12), obs(10, 1, 1))

	series, err := f.builder(DefaultConfig()).GetPriceIndex(context.Background(), tokenRef(1), 10, 12)
	require.NoError(t, err)
	assert.True(t, series.Empty(), "two hops exceed the default depth")

	cfg := DefaultConfig()
	cfg.MaxDepth = 2
	series, err = f.builder(cfg).GetPriceIndex(context.Background(), tokenRef(1), 10, 12)
	require.NoError(t, err)
	assertConstant(t, series, 10, 12, 1)
}

func TestGetPriceIndexSkipsUntrackedCounterToken(t *testing.T) {
	f := newFixture()
	cand := stablePool(1, 10, 7)
	cand.IsUSDStable = false
	cand.IsPricingToken = false
	f.store.SetCandidates(tokenRef(1), cand)
	f.reserves.add(cand.PoolAddress, obs(10, 1, 1))

	series, err := f.builder(DefaultConfig()).GetPriceIndex(context.Background(), tokenRef(1), 10, 12)
	require.NoError(t, err)
	assert.True(t, series.Empty())
}
