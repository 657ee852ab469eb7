package storage

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"lpAnalytics/internal/model"
)

// PoolStore reads the pool registry and moves the per-pool watermark.
type PoolStore interface {
	GetPool(ctx context.Context, network int, address common.Address) (model.Pool, error)
	// ListPools returns pools ordered by last processed (never processed first), then id.
	// An empty address list selects every pool.
	ListPools(ctx context.Context, addresses []common.Address) ([]model.Pool, error)
	TouchPool(ctx context.Context, poolID int64, at time.Time) error
}

// SyncEventStore reads raw reserve updates.
type SyncEventStore interface {
	// SyncEvents returns events with from <= block <= to, ordered by block then log index.
	SyncEvents(ctx context.Context, network int, pool common.Address, from, to uint64) ([]model.SyncEvent, error)
	// LastSyncBefore returns the newest event strictly before block.
	LastSyncBefore(ctx context.Context, network int, pool common.Address, block uint64) (model.SyncEvent, bool, error)
}

// CandidateStore reads pricing-pool candidates and the tokens that need hourly prices.
type CandidateStore interface {
	PricingCandidates(ctx context.Context, token model.TokenRef) ([]model.PricingPoolCandidate, error)
	TargetTokens(ctx context.Context) ([]model.TargetToken, error)
	RefreshPricingView(ctx context.Context) error
}

// NativePriceStore reads a per-network native currency price table.
type NativePriceStore interface {
	NativePrices(ctx context.Context, table string, from, to uint64) ([]model.BlockPrice, error)
}

// CurrencyStore resolves token addresses to internal currency ids.
type CurrencyStore interface {
	CurrencyID(ctx context.Context, network int, address common.Address) (int64, bool, error)
}

// PriceHistoryStore reads and writes hourly token prices.
type PriceHistoryStore interface {
	// PriceHistory returns rows with from <= open_timestamp < to ordered by open_timestamp.
	PriceHistory(ctx context.Context, currencyID, denomination int64, from, to time.Time) ([]model.HourlyPrice, error)
	UpsertPriceHistory(ctx context.Context, rows []model.HourlyPrice) error
}

// BlockHourStore maps hours to block ranges.
type BlockHourStore interface {
	// BlockHours returns one entry per complete hour starting at or after from.
	BlockHours(ctx context.Context, network int, from time.Time) ([]model.HourBlocks, error)
	MaxIndexedBlock(ctx context.Context, network int) (uint64, error)
}

// HourlyStore reads the hourly roll-up table.
type HourlyStore interface {
	// HourlySnapshots returns the last snapshot closing at or before start followed by
	// every snapshot opening in [start, end), ordered by open_timestamp.
	HourlySnapshots(ctx context.Context, pool common.Address, start, end time.Time) ([]model.HourlySnapshot, error)
	// LastClosedHour returns the close timestamp of the second newest snapshot of a pool.
	LastClosedHour(ctx context.Context, pool common.Address) (time.Time, bool, error)
	LatestHourlyClose(ctx context.Context) (time.Time, bool, error)
	LPSupplyAt(ctx context.Context, pool common.Address, block uint64) (*big.Int, bool, error)
}

// SummaryStore persists LP summary records.
type SummaryStore interface {
	SummaryExists(ctx context.Context, poolID int64, summaryType string, open, close time.Time) (bool, error)
	UpsertSummary(ctx context.Context, rec model.LpSummaryRecord) error
	// DeleteStaleSummaries removes rows of the pool and type whose window differs from [open, close).
	DeleteStaleSummaries(ctx context.Context, poolID int64, summaryType string, open, close time.Time) (int64, error)
}

// StateStore persists named watermarks.
type StateStore interface {
	LoadState(ctx context.Context, name string) (uint64, bool, error)
	SaveState(ctx context.Context, name string, ts uint64) error
}
