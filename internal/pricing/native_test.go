package pricing

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpAnalytics/internal/model"
	"lpAnalytics/internal/storage/memory"
)

type countingNative struct {
	*memory.Store
	mu     sync.Mutex
	ranges [][2]uint64
}

func (c *countingNative) NativePrices(ctx context.Context, table string, from, to uint64) ([]model.BlockPrice, error) {
	c.mu.Lock()
	c.ranges = append(c.ranges, [2]uint64{from, to})
	c.mu.Unlock()
	return c.Store.NativePrices(ctx, table, from, to)
}

func TestNativeCacheExtendsOnlyMissingSegments(t *testing.T) {
	store := memory.NewStore()
	store.SetNativePrices("eth_price",
		model.BlockPrice{BlockNumber: 5, Price: 10},
		model.BlockPrice{BlockNumber: 10, Price: 20},
		model.BlockPrice{BlockNumber: 18, Price: 30},
	)
	counting := &countingNative{Store: store}
	cache := NewNativeCache(counting, 0)
	ctx := context.Background()

	require.NoError(t, cache.Preload(ctx, "eth_price", 10, 15))
	series, err := cache.Series(ctx, "ETH_PRICE", 11, 13)
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 20, 20}, series.Prices)
	assert.Len(t, counting.ranges, 1)

	series, err = cache.Series(ctx, "eth_price", 5, 20)
	require.NoError(t, err)
	assert.Equal(t, [][2]uint64{{10, 15}, {5, 9}, {16, 20}}, counting.ranges)
	assert.Equal(t, uint64(5), series.StartBlock)

	p, ok := series.At(7)
	require.True(t, ok)
	assert.Equal(t, 10.0, p)
	p, ok = series.At(19)
	require.True(t, ok)
	assert.Equal(t, 30.0, p)
}

func TestNativeCacheRejectsBadInput(t *testing.T) {
	cache := NewNativeCache(memory.NewStore(), 0)
	_, err := cache.Series(context.Background(), "", 1, 2)
	require.Error(t, err)
	_, err = cache.Series(context.Background(), "eth_price", 5, 2)
	require.Error(t, err)
}

func TestNativeCacheConcurrentReaders(t *testing.T) {
	store := memory.NewStore()
	store.SetNativePrices("eth_price", model.BlockPrice{BlockNumber: 0, Price: 1})
	cache := NewNativeCache(store, 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			series, err := cache.Series(context.Background(), "eth_price", 0, uint64(100+i*10))
			assert.NoError(t, err)
			p, ok := series.At(50)
			assert.True(t, ok)
			assert.Equal(t, 1.0, p)
		}(i)
	}
	wg.Wait()
}

func TestNativeCacheResetsPastBlockLimit(t *testing.T) {
	store := memory.NewStore()
	store.SetNativePrices("eth_price",
		model.BlockPrice{BlockNumber: 0, Price: 1},
		model.BlockPrice{BlockNumber: 100, Price: 2},
	)
	counting := &countingNative{Store: store}
	cache := NewNativeCache(counting, 50)
	ctx := context.Background()

	_, err := cache.Series(ctx, "eth_price", 0, 60)
	require.Error(t, err)

	_, err = cache.Series(ctx, "eth_price", 0, 40)
	require.NoError(t, err)
	series, err := cache.Series(ctx, "eth_price", 100, 120)
	require.NoError(t, err)
	assert.Equal(t, [][2]uint64{{0, 40}, {100, 120}}, counting.ranges)
	p, ok := series.At(110)
	require.True(t, ok)
	assert.Equal(t, 2.0, p)

	// The earlier range was dropped and is loaded again.
	_, err = cache.Series(ctx, "eth_price", 10, 20)
	require.NoError(t, err)
	assert.Len(t, counting.ranges, 3)
}
