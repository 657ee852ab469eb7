package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"lpAnalytics/internal/model"
	"lpAnalytics/internal/storage"
)

const poolColumns = `
	lp.id, lp.address, lp.network_id, lp.name, lp.platform_type,
	t0.address, t1.address, t0.decimals, t1.decimals, lp.lp_decimals,
	lp.created_at_block, lp.created_at, lp.last_processed`

const poolFrom = `
	FROM liquidity_pool lp
	JOIN currency t0 ON t0.id = lp.token0_id
	JOIN currency t1 ON t1.id = lp.token1_id`

func scanPool(row pgx.Row) (model.Pool, error) {
	var (
		pool                    model.Pool
		address, token0, token1 *string
		decimals0, decimals1    *int16
		lpDecimals              int16
		createdAtBlock          int64
		lastProcessed           *time.Time
	)
	if err := row.Scan(
		&pool.ID, &address, &pool.Network, &pool.Name, &pool.PlatformType,
		&token0, &token1, &decimals0, &decimals1, &lpDecimals,
		&createdAtBlock, &pool.CreatedAt, &lastProcessed,
	); err != nil {
		return model.Pool{}, err
	}
	if address != nil {
		pool.Address = common.HexToAddress(*address)
	}
	if token0 != nil {
		pool.Token0 = common.HexToAddress(*token0)
	}
	if token1 != nil {
		pool.Token1 = common.HexToAddress(*token1)
	}
	if decimals0 != nil {
		d := uint8(*decimals0)
		pool.Decimals0 = &d
	}
	if decimals1 != nil {
		d := uint8(*decimals1)
		pool.Decimals1 = &d
	}
	pool.LPDecimals = uint8(lpDecimals)
	pool.CreatedAtBlock = uint64(createdAtBlock)
	pool.CreatedAt = pool.CreatedAt.UTC()
	if lastProcessed != nil {
		ts := lastProcessed.UTC()
		pool.LastProcessed = &ts
	}
	return pool, nil
}

// GetPool loads a pool by network and address.
func (s *Store) GetPool(ctx context.Context, network int, address common.Address) (model.Pool, error) {
	row := s.pool.QueryRow(ctx, `SELECT`+poolColumns+poolFrom+`
		WHERE lp.network_id = $1 AND lower(lp.address) = $2`,
		network, addressKey(address))
	pool, err := scanPool(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Pool{}, fmt.Errorf("pool %s: %w", address.Hex(), storage.ErrNotFound)
		}
		return model.Pool{}, err
	}
	return pool, nil
}

// ListPools returns pools ordered by last_processed (nulls first) then id.
func (s *Store) ListPools(ctx context.Context, addresses []common.Address) ([]model.Pool, error) {
	query := `SELECT` + poolColumns + poolFrom
	args := []any{}
	if len(addresses) > 0 {
		keys := make([]string, 0, len(addresses))
		for _, addr := range addresses {
			keys = append(keys, addressKey(addr))
		}
		query += ` WHERE lower(lp.address) = ANY($1)`
		args = append(args, keys)
	}
	query += ` ORDER BY lp.last_processed ASC NULLS FIRST, lp.id ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Pool
	for rows.Next() {
		pool, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pool)
	}
	return out, rows.Err()
}

// TouchPool moves the pool watermark.
func (s *Store) TouchPool(ctx context.Context, poolID int64, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE liquidity_pool SET last_processed = $2 WHERE id = $1`, poolID, utc(at))
	return err
}

func addressKey(address common.Address) string {
	return strings.ToLower(address.Hex())
}
