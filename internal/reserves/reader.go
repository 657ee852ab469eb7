// Package reserves reads a pool's reserve history in human-readable units.
package reserves

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lpAnalytics/internal/model"
	"lpAnalytics/internal/retry"
	"lpAnalytics/internal/storage"
)

const defaultBatchSize = 250_000

// Store is the subset of storage the reader needs.
type Store interface {
	GetPool(ctx context.Context, network int, address common.Address) (model.Pool, error)
	storage.SyncEventStore
}

// Config controls chunking and retries of store reads.
type Config struct {
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

type poolKey struct {
	network int
	address common.Address
}

// Reader returns normalized reserve observations for a pool.
type Reader struct {
	cfg      Config
	store    Store
	fetcher  DecimalsFetcher
	decimals *TokenDecimalsCache
	retry    retry.Policy
	logger   *zap.Logger

	mu    sync.RWMutex
	pools map[poolKey]model.Pool
}

// NewReader builds a reader. fetcher may be nil when every pool has registry decimals.
func NewReader(cfg Config, store Store, fetcher DecimalsFetcher, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &Reader{
		cfg:      cfg,
		store:    store,
		fetcher:  fetcher,
		decimals: NewTokenDecimalsCache(),
		retry: retry.Policy{
			MaxRetries: cfg.MaxRetries,
			Backoff:    cfg.RetryBackoff,
			Logger:     logger,
		},
		logger: logger,
		pools:    make(map[poolKey]model.Pool),
	}
}

// Pool returns registry data for a pool, cached for the life of the reader.
func (r *Reader) Pool(ctx context.Context, network int, address common.Address) (model.Pool, error) {
	key := poolKey{network, address}
	r.mu.RLock()
	pool, ok := r.pools[key]
	r.mu.RUnlock()
	if ok {
		return pool, nil
	}

	err := r.retry.Do(ctx, "get pool", func(ctx context.Context) error {
		var err error
		pool, err = r.store.GetPool(ctx, network, address)
		if errors.Is(err, storage.ErrNotFound) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return model.Pool{}, err
	}

	r.mu.Lock()
	r.pools[key] = pool
	r.mu.Unlock()
	return pool, nil
}

// GetReservesByAddress looks the pool up and returns its reserves over [start, end].
func (r *Reader) GetReservesByAddress(ctx context.Context, network int, address common.Address, start, end uint64) ([]model.ReserveObservation, error) {
	pool, err := r.Pool(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return r.GetReserves(ctx, pool, start, end)
}

// GetReserves returns reserves over [start, end] sorted by block, one observation per block.
// When the window opens after the pool was created, the last observation before start is
// carried at start unless an in-range observation already sits there. An empty result is
// not an error.
func (r *Reader) GetReserves(ctx context.Context, pool model.Pool, start, end uint64) ([]model.ReserveObservation, error) {
	if pool.PlatformType != model.PlatformUniswapV2 {
		return nil, &model.UnsupportedPlatformError{Platform: pool.PlatformType}
	}
	if end < start {
		return nil, fmt.Errorf("end block %d before start block %d", end, start)
	}

	decimals0, err := r.tokenDecimals(ctx, pool.Token0, pool.Decimals0)
	if err != nil {
		return nil, fmt.Errorf("token0 decimals: %w", err)
	}
	decimals1, err := r.tokenDecimals(ctx, pool.Token1, pool.Decimals1)
	if err != nil {
		return nil, fmt.Errorf("token1 decimals: %w", err)
	}

	ranges, err := SplitRange(start, end, r.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	var events []model.SyncEvent
	for _, br := range ranges {
		var chunk []model.SyncEvent
		err := r.retry.Do(ctx, "sync events", func(ctx context.Context) error {
			var err error
			chunk, err = r.store.SyncEvents(ctx, pool.Network, pool.Address, br.From, br.To)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("sync events %d-%d: %w", br.From, br.To, err)
		}
		events = append(events, chunk...)
	}
	events = latestPerBlock(events)

	if start > pool.CreatedAtBlock && (len(events) == 0 || events[0].BlockNumber != start) {
		var (
			prior model.SyncEvent
			found bool
		)
		err := r.retry.Do(ctx, "prior sync event", func(ctx context.Context) error {
			var err error
			prior, found, err = r.store.LastSyncBefore(ctx, pool.Network, pool.Address, start)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("prior sync event: %w", err)
		}
		if found {
			prior.BlockNumber = start
			events = append([]model.SyncEvent{prior}, events...)
		}
	}

	out := make([]model.ReserveObservation, 0, len(events))
	for _, ev := range events {
		out = append(out, model.ReserveObservation{
			BlockNumber: ev.BlockNumber,
			Reserve0:    Normalize(ev.Reserve0, decimals0),
			Reserve1:    Normalize(ev.Reserve1, decimals1),
		})
	}

	r.logger.Debug("reserves loaded",
		zap.String("pool", pool.Address.Hex()),
		zap.Uint64("start", start),
		zap.Uint64("end", end),
		zap.Int("observations", len(out)),
	)
	return out, nil
}

// Normalize divides a raw integer amount by 10^decimals.
func Normalize(raw *big.Int, decimals uint8) float64 {
	if raw == nil {
		return 0
	}
	return decimal.NewFromBigInt(raw, -int32(decimals)).InexactFloat64()
}

// Decimals returns registry decimals when present, else the cached or on-chain value.
func (r *Reader) Decimals(ctx context.Context, token common.Address, registry *uint8) (uint8, error) {
	return r.tokenDecimals(ctx, token, registry)
}

func (r *Reader) tokenDecimals(ctx context.Context, token common.Address, registry *uint8) (uint8, error) {
	if registry != nil {
		return *registry, nil
	}
	if decimals, ok := r.decimals.Get(token); ok {
		return decimals, nil
	}
	if r.fetcher == nil {
		return 0, fmt.Errorf("decimals unknown for token %s", token.Hex())
	}
	decimals, err := r.fetcher.TokenDecimals(ctx, token)
	if err != nil {
		return 0, err
	}
	r.decimals.Set(token, decimals)
	return decimals, nil
}

// latestPerBlock keeps the highest log index of every block.
func latestPerBlock(events []model.SyncEvent) []model.SyncEvent {
	if len(events) == 0 {
		return events
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].LogIndex < events[j].LogIndex
	})
	out := events[:0]
	for i, ev := range events {
		if i+1 < len(events) && events[i+1].BlockNumber == ev.BlockNumber {
			continue
		}
		out = append(out, ev)
	}
	return out
}
