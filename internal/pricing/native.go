package pricing

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"lpAnalytics/internal/model"
	"lpAnalytics/internal/storage"
)

// DefaultNativeCacheBlocks bounds each cached table to about 8MB.
const DefaultNativeCacheBlocks = 1_000_000

// NativeCache holds per-network native currency price series for the life of a run.
// Loaded series are never mutated after they are published, so slices handed to
// callers stay valid while other goroutines extend the cache.
// A table never spans more than maxBlocks; a request that would grow it past
// that replaces the cached series with the requested range.
type NativeCache struct {
	store     storage.NativePriceStore
	maxBlocks uint64

	mu     sync.RWMutex
	tables map[string]model.PriceSeries
}

// NewNativeCache creates a cache holding at most maxBlocks per table.
// Zero means DefaultNativeCacheBlocks.
func NewNativeCache(store storage.NativePriceStore, maxBlocks uint64) *NativeCache {
	if maxBlocks == 0 {
		maxBlocks = DefaultNativeCacheBlocks
	}
	return &NativeCache{store: store, maxBlocks: maxBlocks, tables: make(map[string]model.PriceSeries)}
}

// Preload loads [start, end] of a table ahead of concurrent readers.
func (c *NativeCache) Preload(ctx context.Context, table string, start, end uint64) error {
	_, err := c.Series(ctx, table, start, end)
	return err
}

// Series returns the native price series of a table over [start, end], loading
// and merging any part not cached yet. Blocks without a row carry the previous price.
func (c *NativeCache) Series(ctx context.Context, table string, start, end uint64) (model.PriceSeries, error) {
	if table == "" {
		return model.PriceSeries{}, fmt.Errorf("native price table is empty")
	}
	if end < start {
		return model.PriceSeries{}, fmt.Errorf("end block %d before start block %d", end, start)
	}
	if end-start+1 > c.maxBlocks {
		return model.PriceSeries{}, fmt.Errorf("native prices %s: %d blocks over cache limit %d", table, end-start+1, c.maxBlocks)
	}
	key := strings.ToLower(table)

	c.mu.RLock()
	cached, ok := c.tables[key]
	c.mu.RUnlock()
	if ok && covers(cached, start, end) {
		return cached.Slice(start, end), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cached, ok = c.tables[key]
	if ok && covers(cached, start, end) {
		return cached.Slice(start, end), nil
	}

	if ok && cached.Len() > 0 && mergedSpan(cached, start, end) > c.maxBlocks {
		ok = false
	}
	merged, err := c.extend(ctx, key, cached, ok, start, end)
	if err != nil {
		return model.PriceSeries{}, err
	}
	c.tables[key] = merged
	return merged.Slice(start, end), nil
}

func (c *NativeCache) extend(ctx context.Context, table string, cached model.PriceSeries, ok bool, start, end uint64) (model.PriceSeries, error) {
	newStart, newEnd := start, end
	type segment struct{ from, to uint64 }
	var missing []segment
	if !ok || cached.Len() == 0 {
		missing = append(missing, segment{start, end})
	} else {
		if cached.StartBlock < newStart {
			newStart = cached.StartBlock
		}
		if cached.EndBlock() > newEnd {
			newEnd = cached.EndBlock()
		}
		if start < cached.StartBlock {
			missing = append(missing, segment{start, cached.StartBlock - 1})
		}
		if end > cached.EndBlock() {
			missing = append(missing, segment{cached.EndBlock() + 1, end})
		}
	}

	out := model.NewPriceSeries(newStart, newEnd)
	if ok {
		copy(out.Prices[cached.StartBlock-newStart:], cached.Prices)
	}
	for _, seg := range missing {
		points, err := c.store.NativePrices(ctx, table, seg.from, seg.to)
		if err != nil {
			return model.PriceSeries{}, fmt.Errorf("native prices %s %d-%d: %w", table, seg.from, seg.to, err)
		}
		for _, p := range points {
			out.Set(p.BlockNumber, p.Price)
		}
	}
	fillForward(out.Prices)
	return out, nil
}

func mergedSpan(s model.PriceSeries, start, end uint64) uint64 {
	lo, hi := min(s.StartBlock, start), max(s.EndBlock(), end)
	return hi - lo + 1
}

func covers(s model.PriceSeries, start, end uint64) bool {
	return s.Len() > 0 && s.StartBlock <= start && s.EndBlock() >= end
}
