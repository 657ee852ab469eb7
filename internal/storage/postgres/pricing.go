package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"lpAnalytics/internal/model"
)

const candidateColumns = `
	target_token_address, target_token_id, platform_type, pool_name, pool_address,
	network, pricing_token_address, latest_price_timestamp, pool_created_at,
	created_at_block, target_token_idx, watch_level, is_usd_stable,
	is_pricing_token, is_network_currency, latest_poolsize,
	native_price_table, network_token_symbol`

// PricingCandidates returns every registered pricing pool for a token.
func (s *Store) PricingCandidates(ctx context.Context, token model.TokenRef) ([]model.PricingPoolCandidate, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if token.ByID() {
		rows, err = s.pool.Query(ctx, `SELECT`+candidateColumns+`
			FROM fungible_token_pricing
			WHERE target_token_id = $1
			ORDER BY pool_address, target_token_idx`, token.CurrencyID)
	} else {
		rows, err = s.pool.Query(ctx, `SELECT`+candidateColumns+`
			FROM fungible_token_pricing
			WHERE network = $1 AND lower(target_token_address) = $2
			ORDER BY pool_address, target_token_idx`, token.Network, addressKey(token.Address))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PricingPoolCandidate
	for rows.Next() {
		var (
			c                                 model.PricingPoolCandidate
			targetAddr, poolAddr, pricingAddr *string
			latest                            *time.Time
			createdAtBlock                    int64
		)
		if err := rows.Scan(
			&targetAddr, &c.TargetTokenID, &c.PlatformType, &c.PoolName, &poolAddr,
			&c.Network, &pricingAddr, &latest, &c.PoolCreatedAt,
			&createdAtBlock, &c.TargetTokenIdx, &c.WatchLevel, &c.IsUSDStable,
			&c.IsPricingToken, &c.IsNetworkCurrency, &c.LatestPoolSize,
			&c.NativePriceTable, &c.NetworkTokenSymbol,
		); err != nil {
			return nil, err
		}
		if targetAddr != nil {
			c.TargetTokenAddress = common.HexToAddress(*targetAddr)
		}
		if poolAddr != nil {
			c.PoolAddress = common.HexToAddress(*poolAddr)
		}
		if pricingAddr != nil {
			c.PricingTokenAddress = common.HexToAddress(*pricingAddr)
		}
		if latest != nil {
			ts := latest.UTC()
			c.LatestPriceTimestamp = &ts
		}
		c.PoolCreatedAt = c.PoolCreatedAt.UTC()
		c.CreatedAtBlock = uint64(createdAtBlock)
		out = append(out, c)
	}
	return out, rows.Err()
}

// TargetTokens returns tokens with at least one watched pricing pool, with ATH carry-over state.
func (s *Store) TargetTokens(ctx context.Context) ([]model.TargetToken, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.target_token_address, t.network, t.target_token_id,
		       t.latest_price_timestamp, t.first_pool_created_at,
		       er.ath, er.hrs_since_ath, t.native_price_table
		FROM (
			SELECT target_token_address, network, target_token_id,
			       max(latest_price_timestamp) AS latest_price_timestamp,
			       min(pool_created_at) AS first_pool_created_at,
			       min(native_price_table) AS native_price_table
			FROM fungible_token_pricing
			WHERE watch_level
			GROUP BY target_token_address, network, target_token_id
		) t
		LEFT JOIN LATERAL (
			SELECT ath, hrs_since_ath
			FROM exchange_rate
			WHERE base_currency_id = t.target_token_id AND currency_id = 1
			ORDER BY open_timestamp DESC
			LIMIT 1
		) er ON true
		ORDER BY t.target_token_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TargetToken
	for rows.Next() {
		var (
			tok       model.TargetToken
			addr      *string
			latest    *time.Time
			firstPool time.Time
		)
		if err := rows.Scan(&addr, &tok.Network, &tok.CurrencyID, &latest, &firstPool, &tok.LatestATH, &tok.LatestHoursSince, &tok.NativePriceTable); err != nil {
			return nil, err
		}
		if addr != nil {
			tok.Address = common.HexToAddress(*addr)
		}
		if latest != nil {
			tok.Start = latest.UTC().Add(time.Hour).Truncate(time.Hour)
		} else {
			tok.Start = firstPool.UTC().Truncate(time.Hour)
		}
		out = append(out, tok)
	}
	return out, rows.Err()
}

// RefreshPricingView rebuilds the fungible_token_pricing materialized view.
func (s *Store) RefreshPricingView(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `REFRESH MATERIALIZED VIEW fungible_token_pricing`)
	return err
}

// NativePrices reads a per-network native price table in [from, to].
func (s *Store) NativePrices(ctx context.Context, table string, from, to uint64) ([]model.BlockPrice, error) {
	ident := pgx.Identifier{table}.Sanitize()
	rows, err := s.pool.Query(ctx, `
		SELECT block_number, price FROM `+ident+`
		WHERE block_number BETWEEN $1 AND $2
		ORDER BY block_number
	`, int64(from), int64(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BlockPrice
	for rows.Next() {
		var (
			block int64
			price float64
		)
		if err := rows.Scan(&block, &price); err != nil {
			return nil, err
		}
		out = append(out, model.BlockPrice{BlockNumber: uint64(block), Price: price})
	}
	return out, rows.Err()
}

// CurrencyID resolves a token address to its currency id.
func (s *Store) CurrencyID(ctx context.Context, network int, address common.Address) (int64, bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		SELECT id FROM currency WHERE network_id = $1 AND lower(address) = $2
	`, network, addressKey(address)).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}
