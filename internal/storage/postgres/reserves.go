package postgres

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"lpAnalytics/internal/model"
)

// SyncEvents returns sync events of a pool in [from, to] ordered by block and log index.
func (s *Store) SyncEvents(ctx context.Context, network int, pool common.Address, from, to uint64) ([]model.SyncEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT block_number, log_index, reserve0::text, reserve1::text
		FROM sync_event
		WHERE network_id = $1 AND lower(pool_address) = $2
		  AND block_number BETWEEN $3 AND $4
		ORDER BY block_number, log_index
	`, network, addressKey(pool), int64(from), int64(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SyncEvent
	for rows.Next() {
		ev, err := scanSyncEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// LastSyncBefore returns the newest sync event strictly before block.
func (s *Store) LastSyncBefore(ctx context.Context, network int, pool common.Address, block uint64) (model.SyncEvent, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT block_number, log_index, reserve0::text, reserve1::text
		FROM sync_event
		WHERE network_id = $1 AND lower(pool_address) = $2 AND block_number < $3
		ORDER BY block_number DESC, log_index DESC
		LIMIT 1
	`, network, addressKey(pool), int64(block))
	ev, err := scanSyncEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.SyncEvent{}, false, nil
		}
		return model.SyncEvent{}, false, err
	}
	return ev, true, nil
}

func scanSyncEvent(row pgx.Row) (model.SyncEvent, error) {
	var (
		block    int64
		logIndex int32
		r0Text   string
		r1Text   string
	)
	if err := row.Scan(&block, &logIndex, &r0Text, &r1Text); err != nil {
		return model.SyncEvent{}, err
	}
	r0, err := parseNumeric(&r0Text)
	if err != nil {
		return model.SyncEvent{}, err
	}
	r1, err := parseNumeric(&r1Text)
	if err != nil {
		return model.SyncEvent{}, err
	}
	return model.SyncEvent{
		BlockNumber: uint64(block),
		LogIndex:    uint(logIndex),
		Reserve0:    r0,
		Reserve1:    r1,
	}, nil
}
