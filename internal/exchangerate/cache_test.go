package exchangerate

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

type countingStore struct {
	*memory.Store
	loads int
}

func (c *countingStore) PriceHistory(ctx context.Context, currencyID, denomination int64, from, to time.Time) ([]model.HourlyPrice, error) {
	c.loads++
	return c.Store.PriceHistory(ctx, currencyID, denomination, from, to)
}

func seedPrices(t *testing.T, store *memory.Store, id int64, hours int) {
	t.Helper()
	rows := make([]model.HourlyPrice, 0, hours)
	for h := 0; h < hours; h++ {
		row := hourRow(h, float64(h+1), float64(h+2), float64(h), float64(h+1))
		row.CurrencyID = id
		rows = append(rows, row)
	}
	require.NoError(t, store.UpsertPriceHistory(context.Background(), rows))
}

func TestCacheLoadsOnceAndResamples(t *testing.T) {
	mem := memory.NewStore()
	seedPrices(t, mem, 7, 48)
	store := &countingStore{Store: mem}
	cache := NewCache(store, nil)
	cache.SetDateRange(t0, t0.Add(47*time.Hour))
	ctx := context.Background()

	hourly, err := cache.TokenPriceHistoryByID(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, hourly, 48)

	cache.SetFrequency(Daily)
	daily, err := cache.TokenPriceHistoryByID(ctx, 7)
	require.NoError(t, err)
	require.Len(t, daily, 2)
	assert.Equal(t, 1.0, daily[0].Open)
	assert.Equal(t, 24.0, daily[0].Close)
	assert.Equal(t, 1, store.loads)

	cache.SetDenominationCurrency(USD)
	_, err = cache.TokenPriceHistoryByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, store.loads, "same denomination keeps the cache")

	cache.SetDateRange(t0, t0.Add(10*time.Hour))
	cache.SetFrequency(Hourly)
	short, err := cache.TokenPriceHistoryByID(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, short, 11, "range end is inclusive")
	assert.Equal(t, 2, store.loads)
}

func TestCacheErrors(t *testing.T) {
	mem := memory.NewStore()
	cache := NewCache(mem, nil)
	ctx := context.Background()

	_, err := cache.TokenPriceHistoryByID(ctx, 7)
	require.Error(t, err, "missing date range")

	cache.SetDateRange(t0, t0.Add(time.Hour))
	_, err = cache.TokenPriceHistoryByID(ctx, 7)
	var notFound *model.TokenPricesNotFoundError
	require.True(t, errors.As(err, &notFound))

	_, err = cache.TokenPriceHistory(ctx, common.HexToAddress("0xdead"), 1)
	var notTracked *model.TokenNotTrackedError
	require.True(t, errors.As(err, &notTracked))
}

func TestCacheResolvesAddress(t *testing.T) {
	mem := memory.NewStore()
	token := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	mem.SetCurrency(1, token, 9)
	seedPrices(t, mem, 9, 3)

	cache := NewCache(mem, nil)
	cache.SetDateRange(t0, t0.Add(2*time.Hour))
	rows, err := cache.TokenPriceHistory(context.Background(), token, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, int64(9), rows[0].CurrencyID)
}

func TestCacheDenominationChangeClears(t *testing.T) {
	mem := memory.NewStore()
	seedPrices(t, mem, 7, 2)
	store := &countingStore{Store: mem}
	cache := NewCache(store, nil)
	cache.SetDateRange(t0, t0.Add(time.Hour))

	_, err := cache.TokenPriceHistoryByID(context.Background(), 7)
	require.NoError(t, err)

	cache.SetDenominationCurrency(2)
	_, err = cache.TokenPriceHistoryByID(context.Background(), 7)
	var notFound *model.TokenPricesNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, 2, store.loads)
}
