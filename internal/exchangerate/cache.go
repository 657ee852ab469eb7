// Package exchangerate serves and populates hourly token price history.
package exchangerate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"lpAnalytics/internal/model"
	"lpAnalytics/internal/storage"
)

// USD is the default denomination currency id.
const USD int64 = 1

// Store is what the cache reads.
type Store interface {
	storage.PriceHistoryStore
	storage.CurrencyStore
}

type currencyKey struct {
	network int
	address string
}

// Cache keeps token price histories for one date range and denomination in
// memory and hands them out resampled to the active frequency.
type Cache struct {
	store  Store
	logger *zap.Logger

	mu           sync.Mutex
	start, end   time.Time
	denomination int64
	freq         Frequency
	prices       map[int64][]model.HourlyPrice
	ids          map[currencyKey]int64
}

func NewCache(store Store, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		store:        store,
		logger:       logger,
		denomination: USD,
		freq:         Hourly,
		prices:       make(map[int64][]model.HourlyPrice),
		ids:          make(map[currencyKey]int64),
	}
}

// SetDateRange selects the hours [start, end] and drops cached histories.
func (c *Cache) SetDateRange(start, end time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = start.UTC()
	c.end = end.UTC()
	c.prices = make(map[int64][]model.HourlyPrice)
}

// SetDenominationCurrency changes the quote currency. Cached histories are
// dropped when it differs from the current one.
func (c *Cache) SetDenominationCurrency(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == c.denomination {
		return
	}
	c.denomination = id
	c.prices = make(map[int64][]model.HourlyPrice)
}

// SetFrequency changes the resampling frequency of returned histories.
func (c *Cache) SetFrequency(f Frequency) {
	c.mu.Lock()
	c.freq = f
	c.mu.Unlock()
}

// TokenPriceHistory resolves a token address to its currency id and returns its history.
func (c *Cache) TokenPriceHistory(ctx context.Context, address common.Address, network int) ([]model.HourlyPrice, error) {
	key := currencyKey{network: network, address: strings.ToLower(address.Hex())}

	c.mu.Lock()
	id, ok := c.ids[key]
	c.mu.Unlock()
	if !ok {
		var (
			found bool
			err   error
		)
		id, found, err = c.store.CurrencyID(ctx, network, address)
		if err != nil {
			return nil, fmt.Errorf("currency id: %w", err)
		}
		if !found {
			return nil, &model.TokenNotTrackedError{Token: key.address}
		}
		c.mu.Lock()
		c.ids[key] = id
		c.mu.Unlock()
	}
	return c.TokenPriceHistoryByID(ctx, id)
}

// TokenPriceHistoryByID returns the hourly history of a currency resampled to
// the active frequency. The returned slice must not be modified.
func (c *Cache) TokenPriceHistoryByID(ctx context.Context, id int64) ([]model.HourlyPrice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.start.IsZero() || c.end.IsZero() {
		return nil, fmt.Errorf("exchange rate date range is not set")
	}
	if c.end.Before(c.start) {
		return nil, fmt.Errorf("exchange rate range end %s before start %s", c.end, c.start)
	}

	rows, ok := c.prices[id]
	if !ok {
		var err error
		rows, err = c.store.PriceHistory(ctx, id, c.denomination, c.start, c.end.Add(time.Hour))
		if err != nil {
			return nil, fmt.Errorf("price history %d: %w", id, err)
		}
		fillZeroPrices(rows)
		c.prices[id] = rows
		c.logger.Debug("price history loaded",
			zap.Int64("currency_id", id),
			zap.Int64("denomination", c.denomination),
			zap.Int("rows", len(rows)),
		)
	}
	if len(rows) == 0 {
		return nil, &model.TokenPricesNotFoundError{Token: fmt.Sprintf("currency:%d", id)}
	}
	return Resample(rows, c.freq), nil
}
