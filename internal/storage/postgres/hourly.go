package postgres

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"lpAnalytics/internal/model"
)

// HourlySnapshots returns the snapshot closing at or before start, then every
// snapshot opening in [start, end).
func (s *Store) HourlySnapshots(ctx context.Context, pool common.Address, start, end time.Time) ([]model.HourlySnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		(SELECT open_timestamp, close_timestamp,
		        close_reserves_0::text, close_reserves_1::text,
		        num_swaps_0, num_swaps_1, num_mints, num_burns,
		        mints_0::text, mints_1::text, burns_0::text, burns_1::text,
		        volume_0::text, volume_1::text, max_block, close_lp_token_supply::text
		   FROM hourly_data
		  WHERE lower(address) = $1 AND close_timestamp <= $2 AND open_timestamp < $2
		  ORDER BY close_timestamp DESC
		  LIMIT 1)
		UNION ALL
		(SELECT open_timestamp, close_timestamp,
		        close_reserves_0::text, close_reserves_1::text,
		        num_swaps_0, num_swaps_1, num_mints, num_burns,
		        mints_0::text, mints_1::text, burns_0::text, burns_1::text,
		        volume_0::text, volume_1::text, max_block, close_lp_token_supply::text
		   FROM hourly_data
		  WHERE lower(address) = $1 AND open_timestamp >= $2 AND open_timestamp < $3)
		ORDER BY open_timestamp
	`, addressKey(pool), utc(start), utc(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.HourlySnapshot
	for rows.Next() {
		var (
			snap                           model.HourlySnapshot
			r0, r1, m0, m1, b0, b1, v0, v1 string
			supply                         *string
			maxBlock                       int64
		)
		if err := rows.Scan(
			&snap.OpenTimestamp, &snap.CloseTimestamp,
			&r0, &r1,
			&snap.NumSwaps0, &snap.NumSwaps1, &snap.NumMints, &snap.NumBurns,
			&m0, &m1, &b0, &b1,
			&v0, &v1, &maxBlock, &supply,
		); err != nil {
			return nil, err
		}
		snap.Address = pool
		snap.OpenTimestamp = snap.OpenTimestamp.UTC()
		snap.CloseTimestamp = snap.CloseTimestamp.UTC()
		snap.MaxBlock = uint64(maxBlock)

		targets := []struct {
			text *string
			dst  **big.Int
		}{
			{&r0, &snap.CloseReserve0}, {&r1, &snap.CloseReserve1},
			{&m0, &snap.Mints0}, {&m1, &snap.Mints1},
			{&b0, &snap.Burns0}, {&b1, &snap.Burns1},
			{&v0, &snap.Volume0}, {&v1, &snap.Volume1},
			{supply, &snap.CloseLPSupply},
		}
		for _, t := range targets {
			v, err := parseNumeric(t.text)
			if err != nil {
				return nil, err
			}
			*t.dst = v
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// LastClosedHour returns the close timestamp of the second newest snapshot,
// the newest one being possibly incomplete.
func (s *Store) LastClosedHour(ctx context.Context, pool common.Address) (time.Time, bool, error) {
	var ts time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT close_timestamp FROM hourly_data
		WHERE lower(address) = $1
		ORDER BY close_timestamp DESC
		OFFSET 1 LIMIT 1
	`, addressKey(pool)).Scan(&ts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return ts.UTC(), true, nil
}

// LatestHourlyClose returns the newest close timestamp over every pool.
func (s *Store) LatestHourlyClose(ctx context.Context) (time.Time, bool, error) {
	var ts *time.Time
	if err := s.pool.QueryRow(ctx, `SELECT max(close_timestamp) FROM hourly_data`).Scan(&ts); err != nil {
		return time.Time{}, false, err
	}
	if ts == nil {
		return time.Time{}, false, nil
	}
	return ts.UTC(), true, nil
}

// LPSupplyAt returns the LP token supply of the newest snapshot whose max block is at or before block.
func (s *Store) LPSupplyAt(ctx context.Context, pool common.Address, block uint64) (*big.Int, bool, error) {
	var text *string
	err := s.pool.QueryRow(ctx, `
		SELECT close_lp_token_supply::text FROM hourly_data
		WHERE lower(address) = $1 AND max_block <= $2 AND close_lp_token_supply IS NOT NULL
		ORDER BY max_block DESC
		LIMIT 1
	`, addressKey(pool), int64(block)).Scan(&text)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	supply, err := parseNumeric(text)
	if err != nil {
		return nil, false, err
	}
	return supply, supply != nil, nil
}
