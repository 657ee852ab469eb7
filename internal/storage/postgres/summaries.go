package postgres

import (
	"context"
	"time"

	"lpAnalytics/internal/model"
)

// SummaryExists reports whether a summary for the exact window is stored.
func (s *Store) SummaryExists(ctx context.Context, poolID int64, summaryType string, open, close time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM lp_summary
			WHERE liquidity_pool_id = $1 AND summary_type = $2
			  AND open_timestamp = $3 AND close_timestamp = $4
		)
	`, poolID, summaryType, utc(open), utc(close)).Scan(&exists)
	return exists, err
}

// UpsertSummary inserts or replaces the summary keyed by pool, type, and close timestamp.
func (s *Store) UpsertSummary(ctx context.Context, rec model.LpSummaryRecord) error {
	notes := rec.Notes
	if notes == nil {
		notes = []string{}
	}
	var replication any
	if len(rec.ReplicationInstructions) > 0 {
		replication = string(rec.ReplicationInstructions)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO lp_summary (
			liquidity_pool_id, summary_type, open_timestamp, close_timestamp,
			total_period_return, yield_on_lp_fees, price_change_ret, hodl_return,
			fees_apy, total_apy, impermanent_loss_level, impermanent_loss_impact,
			volume, transactions_period, poolsize, open_poolsize, close_poolsize,
			open_reserves_0, open_reserves_1, close_reserves_0, close_reserves_1,
			open_price_0, open_price_1, high_price_0, high_price_1,
			low_price_0, low_price_1, close_price_0, close_price_1,
			outlier, notes, replication_instructions, updated_at
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,
			$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32::jsonb,now()
		)
		ON CONFLICT (liquidity_pool_id, summary_type, close_timestamp)
		DO UPDATE SET
			open_timestamp = EXCLUDED.open_timestamp,
			total_period_return = EXCLUDED.total_period_return,
			yield_on_lp_fees = EXCLUDED.yield_on_lp_fees,
			price_change_ret = EXCLUDED.price_change_ret,
			hodl_return = EXCLUDED.hodl_return,
			fees_apy = EXCLUDED.fees_apy,
			total_apy = EXCLUDED.total_apy,
			impermanent_loss_level = EXCLUDED.impermanent_loss_level,
			impermanent_loss_impact = EXCLUDED.impermanent_loss_impact,
			volume = EXCLUDED.volume,
			transactions_period = EXCLUDED.transactions_period,
			poolsize = EXCLUDED.poolsize,
			open_poolsize = EXCLUDED.open_poolsize,
			close_poolsize = EXCLUDED.close_poolsize,
			open_reserves_0 = EXCLUDED.open_reserves_0,
			open_reserves_1 = EXCLUDED.open_reserves_1,
			close_reserves_0 = EXCLUDED.close_reserves_0,
			close_reserves_1 = EXCLUDED.close_reserves_1,
			open_price_0 = EXCLUDED.open_price_0,
			open_price_1 = EXCLUDED.open_price_1,
			high_price_0 = EXCLUDED.high_price_0,
			high_price_1 = EXCLUDED.high_price_1,
			low_price_0 = EXCLUDED.low_price_0,
			low_price_1 = EXCLUDED.low_price_1,
			close_price_0 = EXCLUDED.close_price_0,
			close_price_1 = EXCLUDED.close_price_1,
			outlier = EXCLUDED.outlier,
			notes = EXCLUDED.notes,
			replication_instructions = EXCLUDED.replication_instructions,
			updated_at = now()
	`,
		rec.PoolID,
		rec.SummaryType,
		utc(rec.OpenTimestamp),
		utc(rec.CloseTimestamp),
		rec.TotalPeriodReturn,
		rec.YieldOnLPFees,
		rec.PriceChangeReturn,
		rec.HodlReturn,
		rec.FeesAPY,
		rec.TotalAPY,
		rec.ImpermanentLossLevel,
		rec.ImpermanentLossImpact,
		rec.Volume,
		rec.TransactionsPeriod,
		rec.Poolsize,
		rec.OpenPoolsize,
		rec.ClosePoolsize,
		rec.OpenReserve0,
		rec.OpenReserve1,
		rec.CloseReserve0,
		rec.CloseReserve1,
		rec.OpenPrice0,
		rec.OpenPrice1,
		rec.HighPrice0,
		rec.HighPrice1,
		rec.LowPrice0,
		rec.LowPrice1,
		rec.ClosePrice0,
		rec.ClosePrice1,
		rec.Outlier,
		notes,
		replication,
	)
	return err
}

// DeleteStaleSummaries removes rows of a pool and type whose window is not [open, close).
func (s *Store) DeleteStaleSummaries(ctx context.Context, poolID int64, summaryType string, open, close time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM lp_summary
		WHERE liquidity_pool_id = $1 AND summary_type = $2
		  AND NOT (open_timestamp = $3 AND close_timestamp = $4)
	`, poolID, summaryType, utc(open), utc(close))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
