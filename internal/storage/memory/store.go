// Package memory provides in-memory storage implementations for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"lpAnalytics/internal/model"
	"lpAnalytics/internal/storage"
)

var (
	_ storage.PoolStore         = (*Store)(nil)
	_ storage.SyncEventStore    = (*Store)(nil)
	_ storage.CandidateStore    = (*Store)(nil)
	_ storage.NativePriceStore  = (*Store)(nil)
	_ storage.CurrencyStore     = (*Store)(nil)
	_ storage.PriceHistoryStore = (*Store)(nil)
	_ storage.BlockHourStore    = (*Store)(nil)
	_ storage.HourlyStore       = (*Store)(nil)
	_ storage.SummaryStore      = (*Store)(nil)
	_ storage.StateStore        = (*Store)(nil)
)

type poolKey struct {
	network int
	address common.Address
}

type priceKey struct {
	currency     int64
	denomination int64
	open         int64
}

type summaryKey struct {
	poolID      int64
	summaryType string
	close       int64
}

// Store keeps every table in maps guarded by one mutex.
type Store struct {
	mu sync.RWMutex

	pools      map[poolKey]model.Pool
	syncs      map[poolKey][]model.SyncEvent
	candidates map[string][]model.PricingPoolCandidate
	targets    []model.TargetToken
	native     map[string][]model.BlockPrice
	currencies map[poolKey]int64
	prices     map[priceKey]model.HourlyPrice
	blockHours map[int][]model.HourBlocks
	hourly     map[common.Address][]model.HourlySnapshot
	summaries  map[summaryKey]model.LpSummaryRecord
	state      map[string]uint64
	touched    map[int64]time.Time

	// Refreshes counts RefreshPricingView calls.
	Refreshes int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		pools:      make(map[poolKey]model.Pool),
		syncs:      make(map[poolKey][]model.SyncEvent),
		candidates: make(map[string][]model.PricingPoolCandidate),
		native:     make(map[string][]model.BlockPrice),
		currencies: make(map[poolKey]int64),
		prices:     make(map[priceKey]model.HourlyPrice),
		blockHours: make(map[int][]model.HourBlocks),
		hourly:     make(map[common.Address][]model.HourlySnapshot),
		summaries:  make(map[summaryKey]model.LpSummaryRecord),
		state:      make(map[string]uint64),
		touched:    make(map[int64]time.Time),
	}
}

// AddPool registers a pool.
func (s *Store) AddPool(pool model.Pool) {
	s.mu.Lock()
	s.pools[poolKey{pool.Network, pool.Address}] = pool
	s.mu.Unlock()
}

// AddSyncEvents appends sync events for a pool.
func (s *Store) AddSyncEvents(network int, pool common.Address, events ...model.SyncEvent) {
	s.mu.Lock()
	key := poolKey{network, pool}
	s.syncs[key] = append(s.syncs[key], events...)
	sort.SliceStable(s.syncs[key], func(i, j int) bool {
		a, b := s.syncs[key][i], s.syncs[key][j]
		if a.BlockNumber != b.BlockNumber {
			return a.BlockNumber < b.BlockNumber
		}
		return a.LogIndex < b.LogIndex
	})
	s.mu.Unlock()
}

// SetCandidates replaces the candidate list for a token.
func (s *Store) SetCandidates(token model.TokenRef, candidates ...model.PricingPoolCandidate) {
	s.mu.Lock()
	s.candidates[token.String()] = candidates
	s.mu.Unlock()
}

// SetTargetTokens replaces the populator's token list.
func (s *Store) SetTargetTokens(tokens ...model.TargetToken) {
	s.mu.Lock()
	s.targets = tokens
	s.mu.Unlock()
}

// SetNativePrices replaces a native price table.
func (s *Store) SetNativePrices(table string, prices ...model.BlockPrice) {
	s.mu.Lock()
	s.native[strings.ToLower(table)] = prices
	s.mu.Unlock()
}

// SetCurrency maps a token address to a currency id.
func (s *Store) SetCurrency(network int, address common.Address, id int64) {
	s.mu.Lock()
	s.currencies[poolKey{network, address}] = id
	s.mu.Unlock()
}

// SetBlockHours replaces the hour to block map of a network.
func (s *Store) SetBlockHours(network int, hours ...model.HourBlocks) {
	s.mu.Lock()
	s.blockHours[network] = hours
	s.mu.Unlock()
}

// AddHourly appends hourly snapshots.
func (s *Store) AddHourly(rows ...model.HourlySnapshot) {
	s.mu.Lock()
	for _, row := range rows {
		s.hourly[row.Address] = append(s.hourly[row.Address], row)
	}
	for addr := range s.hourly {
		list := s.hourly[addr]
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].OpenTimestamp.Before(list[j].OpenTimestamp)
		})
	}
	s.mu.Unlock()
}

// Summaries returns stored summaries ordered by pool, type, and close timestamp.
func (s *Store) Summaries() []model.LpSummaryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.LpSummaryRecord, 0, len(s.summaries))
	for _, rec := range s.summaries {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PoolID != out[j].PoolID {
			return out[i].PoolID < out[j].PoolID
		}
		if out[i].SummaryType != out[j].SummaryType {
			return out[i].SummaryType < out[j].SummaryType
		}
		return out[i].CloseTimestamp.Before(out[j].CloseTimestamp)
	})
	return out
}

// Touched returns the watermark set by TouchPool.
func (s *Store) Touched(poolID int64) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.touched[poolID]
	return at, ok
}

func (s *Store) GetPool(_ context.Context, network int, address common.Address) (model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pool, ok := s.pools[poolKey{network, address}]
	if !ok {
		return model.Pool{}, fmt.Errorf("pool %s: %w", address.Hex(), storage.ErrNotFound)
	}
	return pool, nil
}

func (s *Store) ListPools(_ context.Context, addresses []common.Address) ([]model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	filter := make(map[common.Address]struct{}, len(addresses))
	for _, addr := range addresses {
		filter[addr] = struct{}{}
	}
	out := make([]model.Pool, 0, len(s.pools))
	for _, pool := range s.pools {
		if len(filter) > 0 {
			if _, ok := filter[pool.Address]; !ok {
				continue
			}
		}
		out = append(out, pool)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastProcessed, out[j].LastProcessed
		switch {
		case a == nil && b != nil:
			return true
		case a != nil && b == nil:
			return false
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) TouchPool(_ context.Context, poolID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched[poolID] = at
	for key, pool := range s.pools {
		if pool.ID == poolID {
			ts := at
			pool.LastProcessed = &ts
			s.pools[key] = pool
		}
	}
	return nil
}

func (s *Store) SyncEvents(_ context.Context, network int, pool common.Address, from, to uint64) ([]model.SyncEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.SyncEvent
	for _, ev := range s.syncs[poolKey{network, pool}] {
		if ev.BlockNumber >= from && ev.BlockNumber <= to {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *Store) LastSyncBefore(_ context.Context, network int, pool common.Address, block uint64) (model.SyncEvent, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		last  model.SyncEvent
		found bool
	)
	for _, ev := range s.syncs[poolKey{network, pool}] {
		if ev.BlockNumber < block {
			last = ev
			found = true
		}
	}
	return last, found, nil
}

func (s *Store) PricingCandidates(_ context.Context, token model.TokenRef) ([]model.PricingPoolCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.candidates[token.String()]
	out := make([]model.PricingPoolCandidate, len(list))
	copy(out, list)
	return out, nil
}

func (s *Store) TargetTokens(_ context.Context) ([]model.TargetToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.TargetToken, len(s.targets))
	copy(out, s.targets)
	return out, nil
}

func (s *Store) RefreshPricingView(_ context.Context) error {
	s.mu.Lock()
	s.Refreshes++
	s.mu.Unlock()
	return nil
}

func (s *Store) NativePrices(_ context.Context, table string, from, to uint64) ([]model.BlockPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.BlockPrice
	for _, p := range s.native[strings.ToLower(table)] {
		if p.BlockNumber >= from && p.BlockNumber <= to {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BlockNumber < out[j].BlockNumber })
	return out, nil
}

func (s *Store) CurrencyID(_ context.Context, network int, address common.Address) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.currencies[poolKey{network, address}]
	return id, ok, nil
}

func (s *Store) PriceHistory(_ context.Context, currencyID, denomination int64, from, to time.Time) ([]model.HourlyPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.HourlyPrice
	for key, row := range s.prices {
		if key.currency != currencyID || key.denomination != denomination {
			continue
		}
		if row.OpenTimestamp.Before(from) || !row.OpenTimestamp.Before(to) {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTimestamp.Before(out[j].OpenTimestamp) })
	return out, nil
}

func (s *Store) UpsertPriceHistory(_ context.Context, rows []model.HourlyPrice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		s.prices[priceKey{row.CurrencyID, row.BaseCurrency, row.OpenTimestamp.Unix()}] = row
	}
	return nil
}

func (s *Store) BlockHours(_ context.Context, network int, from time.Time) ([]model.HourBlocks, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.HourBlocks
	for _, h := range s.blockHours[network] {
		if !h.Hour.Before(from) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *Store) MaxIndexedBlock(_ context.Context, network int) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var max uint64
	for key, events := range s.syncs {
		if key.network != network {
			continue
		}
		for _, ev := range events {
			if ev.BlockNumber > max {
				max = ev.BlockNumber
			}
		}
	}
	return max, nil
}

func (s *Store) HourlySnapshots(_ context.Context, pool common.Address, start, end time.Time) ([]model.HourlySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.hourly[pool]
	var (
		out   []model.HourlySnapshot
		prior *model.HourlySnapshot
	)
	for i := range rows {
		row := rows[i]
		if !row.CloseTimestamp.After(start) && row.OpenTimestamp.Before(start) {
			prior = &rows[i]
			continue
		}
		if !row.OpenTimestamp.Before(start) && row.OpenTimestamp.Before(end) {
			out = append(out, row)
		}
	}
	if prior != nil {
		out = append([]model.HourlySnapshot{*prior}, out...)
	}
	return out, nil
}

func (s *Store) LastClosedHour(_ context.Context, pool common.Address) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.hourly[pool]
	if len(rows) < 2 {
		return time.Time{}, false, nil
	}
	closes := make([]time.Time, len(rows))
	for i, row := range rows {
		closes[i] = row.CloseTimestamp
	}
	sort.Slice(closes, func(i, j int) bool { return closes[i].After(closes[j]) })
	return closes[1], true, nil
}

func (s *Store) LatestHourlyClose(_ context.Context) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		latest time.Time
		found  bool
	)
	for _, rows := range s.hourly {
		for _, row := range rows {
			if !found || row.CloseTimestamp.After(latest) {
				latest = row.CloseTimestamp
				found = true
			}
		}
	}
	return latest, found, nil
}

func (s *Store) LPSupplyAt(_ context.Context, pool common.Address, block uint64) (*big.Int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		supply *big.Int
		best   uint64
	)
	for _, row := range s.hourly[pool] {
		if row.MaxBlock <= block && row.CloseLPSupply != nil && (supply == nil || row.MaxBlock >= best) {
			supply = row.CloseLPSupply
			best = row.MaxBlock
		}
	}
	if supply == nil {
		return nil, false, nil
	}
	return new(big.Int).Set(supply), true, nil
}

func (s *Store) SummaryExists(_ context.Context, poolID int64, summaryType string, open, close time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.summaries[summaryKey{poolID, summaryType, close.Unix()}]
	return ok && rec.OpenTimestamp.Equal(open), nil
}

func (s *Store) UpsertSummary(_ context.Context, rec model.LpSummaryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[summaryKey{rec.PoolID, rec.SummaryType, rec.CloseTimestamp.Unix()}] = rec
	return nil
}

func (s *Store) DeleteStaleSummaries(_ context.Context, poolID int64, summaryType string, open, close time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key, rec := range s.summaries {
		if key.poolID != poolID || key.summaryType != summaryType {
			continue
		}
		if rec.OpenTimestamp.Equal(open) && rec.CloseTimestamp.Equal(close) {
			continue
		}
		delete(s.summaries, key)
		n++
	}
	return n, nil
}

func (s *Store) LoadState(_ context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.state[name]
	return ts, ok, nil
}

func (s *Store) SaveState(_ context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	s.mu.Lock()
	s.state[name] = ts
	s.mu.Unlock()
	return nil
}
