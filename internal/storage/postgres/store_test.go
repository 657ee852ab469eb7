package postgres

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"lpAnalytics/internal/model"
	"lpAnalytics/internal/storage"
)

var (
	day0     = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	pairAddr = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	usdcAddr = common.HexToAddress("0x00000000000000000000000000000000000000B0")
	wethAddr = common.HexToAddress("0x00000000000000000000000000000000000000B1")
)

// setupStore starts a Postgres container, applies the embedded migrations and
// seeds one WETH/USDC pair.
func setupStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := NewStore(ctx, dsn, Options{MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(store.Close)

	applied, err := store.Migrate(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, applied)

	seed := []string{
		`INSERT INTO currency (id, network_id, address, symbol, decimals, is_usd_stable)
		 VALUES (1001, 1, '0x00000000000000000000000000000000000000b0', 'USDC', 6, true)`,
		`INSERT INTO currency (id, network_id, address, symbol, decimals)
		 VALUES (1002, 1, '0x00000000000000000000000000000000000000b1', 'WETH', 18)`,
		`INSERT INTO liquidity_pool (id, network_id, address, name, platform_type, token0_id, token1_id,
		                             created_at_block, created_at, watch_level)
		 VALUES (1, 1, '0x00000000000000000000000000000000000000a1', 'USDC/WETH', 5, 1001, 1002,
		         100, '2024-02-01T00:00:00Z', true)`,
	}
	for _, stmt := range seed {
		_, err := store.pool.Exec(ctx, stmt)
		require.NoError(t, err)
	}
	return store
}

func insertHourly(t *testing.T, s *Store, hour int, r0, r1, supply string, maxBlock int64) {
	t.Helper()
	open := day0.Add(time.Duration(hour) * time.Hour)
	_, err := s.pool.Exec(context.Background(), `
		INSERT INTO hourly_data (address, open_timestamp, close_timestamp,
		                         close_reserves_0, close_reserves_1, num_swaps_0, max_block, close_lp_token_supply)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, 2, $6, $7::numeric)
	`, "0x00000000000000000000000000000000000000a1", open, open.Add(time.Hour), r0, r1, maxBlock, supply)
	require.NoError(t, err)
}

func TestPoolRegistry(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	pool, err := s.GetPool(ctx, 1, pairAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pool.ID)
	assert.Equal(t, usdcAddr, pool.Token0)
	assert.Equal(t, wethAddr, pool.Token1)
	require.NotNil(t, pool.Decimals0)
	assert.Equal(t, uint8(6), *pool.Decimals0)
	assert.Equal(t, uint8(18), pool.LPDecimals)
	assert.Nil(t, pool.LastProcessed)

	_, err = s.GetPool(ctx, 1, common.HexToAddress("0x01"))
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	require.NoError(t, s.TouchPool(ctx, 1, day0))
	pools, err := s.ListPools(ctx, []common.Address{pairAddr})
	require.NoError(t, err)
	require.Len(t, pools, 1)
	require.NotNil(t, pools[0].LastProcessed)
	assert.True(t, day0.Equal(*pools[0].LastProcessed))

	id, ok, err := s.CurrencyID(ctx, 1, wethAddr)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1002), id)
}

func TestHourlySnapshots(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	insertHourly(t, s, -2, "1000000000", "500000000000000000000", "7000", 10)
	insertHourly(t, s, -1, "1100000000", "500000000000000000000", "7000", 20)
	insertHourly(t, s, 0, "1200000000", "400000000000000000000", "7100", 30)
	insertHourly(t, s, 1, "1300000000", "400000000000000000000", "7200", 40)

	snaps, err := s.HourlySnapshots(ctx, pairAddr, day0, day0.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.True(t, day0.Add(-time.Hour).Equal(snaps[0].OpenTimestamp), "prior snapshot leads")
	assert.Equal(t, 0, snaps[0].CloseReserve0.Cmp(big.NewInt(1_100_000_000)))
	want, _ := new(big.Int).SetString("400000000000000000000", 10)
	assert.Equal(t, 0, snaps[1].CloseReserve1.Cmp(want))
	assert.Equal(t, int64(2), snaps[1].NumSwaps0)

	closed, ok, err := s.LastClosedHour(ctx, pairAddr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, day0.Add(time.Hour).Equal(closed))

	latest, ok, err := s.LatestHourlyClose(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, day0.Add(2*time.Hour).Equal(latest))

	supply, ok, err := s.LPSupplyAt(ctx, pairAddr, 35)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(7100), supply.Int64())
}

func TestPriceHistoryAndTargets(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	rows := []model.HourlyPrice{
		{CurrencyID: 1002, BaseCurrency: 1, OpenTimestamp: day0, CloseTimestamp: day0.Add(time.Hour), Open: 3000, High: 3010, Low: 2990, Close: 3005, ATH: 3010},
		{CurrencyID: 1002, BaseCurrency: 1, OpenTimestamp: day0.Add(time.Hour), CloseTimestamp: day0.Add(2 * time.Hour), Open: 3005, High: 3020, Low: 3000, Close: 3015, ATH: 3020},
	}
	require.NoError(t, s.UpsertPriceHistory(ctx, rows))
	rows[1].Close = 3018
	require.NoError(t, s.UpsertPriceHistory(ctx, rows[1:]))

	got, err := s.PriceHistory(ctx, 1002, 1, day0, day0.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 3018.0, got[1].Close)

	require.NoError(t, s.RefreshPricingView(ctx))
	targets, err := s.TargetTokens(ctx)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	var weth model.TargetToken
	for _, tok := range targets {
		if tok.CurrencyID == 1002 {
			weth = tok
		}
	}
	assert.True(t, day0.Add(2*time.Hour).Equal(weth.Start), "resumes after the newest stored hour")
	assert.Equal(t, "eth_price", weth.NativePriceTable)
}

func TestSummariesAndState(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	ret := 1.25
	rec := model.LpSummaryRecord{
		PoolID:                  1,
		SummaryType:             model.SummaryHourly,
		OpenTimestamp:           day0,
		CloseTimestamp:          day0.Add(time.Hour),
		TotalPeriodReturn:       &ret,
		TransactionsPeriod:      3,
		Outlier:                 true,
		Notes:                   []string{"Poolsize too small: 4"},
		ReplicationInstructions: []byte(`{"data_frequency":"H"}`),
	}
	require.NoError(t, s.UpsertSummary(ctx, rec))
	require.NoError(t, s.UpsertSummary(ctx, rec))

	exists, err := s.SummaryExists(ctx, 1, model.SummaryHourly, day0, day0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, exists)

	next := rec
	next.OpenTimestamp, next.CloseTimestamp = day0.Add(time.Hour), day0.Add(2*time.Hour)
	require.NoError(t, s.UpsertSummary(ctx, next))
	deleted, err := s.DeleteStaleSummaries(ctx, 1, model.SummaryHourly, next.OpenTimestamp, next.CloseTimestamp)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, ok, err := s.LoadState(ctx, "lp_summarizer")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, s.SaveState(ctx, "lp_summarizer", 1709251200))
	ts, ok, err := s.LoadState(ctx, "lp_summarizer")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(1709251200), ts)
}
