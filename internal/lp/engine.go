package lp

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lpAnalytics/internal/exchangerate"
	"lpAnalytics/internal/model"
)

// Engine builds return series and window summaries for pools. It shares one
// price cache across calls and is not safe for concurrent use.
type Engine struct {
	hourly   HourlySource
	prices   *exchangerate.Cache
	decimals DecimalsSource
	cfg      SummaryConfig
	logger   *zap.Logger
}

func NewEngine(hourly HourlySource, prices *exchangerate.Cache, decimals DecimalsSource, cfg SummaryConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		hourly:   hourly,
		prices:   prices,
		decimals: decimals,
		cfg:      cfg,
		logger:   logger,
	}
}

// Series returns the pool's return series over [start, end) folded to freq.
// A pool without snapshots in the window yields an empty series.
func (e *Engine) Series(ctx context.Context, pool model.Pool, start, end time.Time, freq exchangerate.Frequency) ([]LpHour, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("window end %s not after start %s", end, start)
	}
	lp, err := NewLiquidityPool(pool, Sources{Hourly: e.hourly, Prices: e.prices, Decimals: e.decimals})
	if err != nil {
		return nil, err
	}

	e.prices.SetFrequency(exchangerate.Hourly)
	e.prices.SetDateRange(start, end.Add(-time.Hour))

	rows, err := lp.FetchLPData(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	lp.ComputeReturns(rows)

	e.logger.Debug("lp series built",
		zap.String("pool", pool.Address.Hex()),
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Int("hours", len(rows)),
	)
	return Aggregate(rows, freq), nil
}

// Summary computes the window summary of a pool denominated in the given
// currency. The bool is false when the window holds no data.
func (e *Engine) Summary(ctx context.Context, pool model.Pool, summaryType string, start, end time.Time, denomination int64) (model.LpSummaryRecord, bool, error) {
	e.prices.SetDenominationCurrency(denomination)
	rows, err := e.Series(ctx, pool, start, end, exchangerate.Hourly)
	if err != nil {
		return model.LpSummaryRecord{}, false, err
	}
	row, ok := Window(rows)
	if !ok {
		return model.LpSummaryRecord{}, false, nil
	}
	return Summarize(e.cfg, pool, summaryType, row, start, end, denomination), true, nil
}
