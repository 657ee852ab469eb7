package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"lpAnalytics/internal/model"
)

// PriceHistory returns hourly prices with from <= open_timestamp < to.
func (s *Store) PriceHistory(ctx context.Context, currencyID, denomination int64, from, to time.Time) ([]model.HourlyPrice, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT open_timestamp, close_timestamp, open, high, low, close, ath, hrs_since_ath
		FROM exchange_rate
		WHERE base_currency_id = $1 AND currency_id = $2
		  AND open_timestamp >= $3 AND open_timestamp < $4
		ORDER BY open_timestamp
	`, currencyID, denomination, utc(from), utc(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.HourlyPrice
	for rows.Next() {
		row := model.HourlyPrice{CurrencyID: currencyID, BaseCurrency: denomination}
		if err := rows.Scan(
			&row.OpenTimestamp, &row.CloseTimestamp,
			&row.Open, &row.High, &row.Low, &row.Close,
			&row.ATH, &row.HoursSinceATH,
		); err != nil {
			return nil, err
		}
		row.OpenTimestamp = row.OpenTimestamp.UTC()
		row.CloseTimestamp = row.CloseTimestamp.UTC()
		out = append(out, row)
	}
	return out, rows.Err()
}

// UpsertPriceHistory inserts or updates hourly prices.
func (s *Store) UpsertPriceHistory(ctx context.Context, prices []model.HourlyPrice) error {
	if len(prices) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range prices {
		batch.Queue(`
			INSERT INTO exchange_rate (
				base_currency_id, currency_id, open_timestamp, close_timestamp,
				open, high, low, close, ath, hrs_since_ath, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now())
			ON CONFLICT (base_currency_id, currency_id, open_timestamp)
			DO UPDATE SET
				close_timestamp = EXCLUDED.close_timestamp,
				open = EXCLUDED.open,
				high = EXCLUDED.high,
				low = EXCLUDED.low,
				close = EXCLUDED.close,
				ath = EXCLUDED.ath,
				hrs_since_ath = EXCLUDED.hrs_since_ath,
				updated_at = now()
		`,
			p.CurrencyID,
			p.BaseCurrency,
			utc(p.OpenTimestamp),
			utc(p.CloseTimestamp),
			p.Open,
			p.High,
			p.Low,
			p.Close,
			p.ATH,
			p.HoursSinceATH,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range prices {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// BlockHours returns the block range of each complete hour starting at or after from.
func (s *Store) BlockHours(ctx context.Context, network int, from time.Time) ([]model.HourBlocks, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT hour, block_number + 1, lead(block_number) OVER (ORDER BY hour)
		FROM block_hours
		WHERE network_id = $1 AND hour >= $2
		ORDER BY hour
	`, network, utc(from))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.HourBlocks
	for rows.Next() {
		var (
			hour  time.Time
			start int64
			end   *int64
		)
		if err := rows.Scan(&hour, &start, &end); err != nil {
			return nil, err
		}
		// the newest hour is still open
		if end == nil {
			continue
		}
		out = append(out, model.HourBlocks{
			Hour:       hour.UTC(),
			StartBlock: uint64(start),
			EndBlock:   uint64(*end),
		})
	}
	return out, rows.Err()
}

// MaxIndexedBlock returns the newest block with a sync event on a network.
func (s *Store) MaxIndexedBlock(ctx context.Context, network int) (uint64, error) {
	var block *int64
	if err := s.pool.QueryRow(ctx, `SELECT max(block_number) FROM sync_event WHERE network_id = $1`, network).Scan(&block); err != nil {
		return 0, err
	}
	if block == nil {
		return 0, nil
	}
	return uint64(*block), nil
}
