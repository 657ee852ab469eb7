// Package summarizer computes windowed LP summaries for every registered pool
// and keeps the summary table current.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"lpAnalytics/internal/model"
	"lpAnalytics/internal/observability"
	"lpAnalytics/internal/retry"
	"lpAnalytics/internal/storage"
)

const summarizeJob = "summarize"

// Engine computes one summary record. *lp.Engine satisfies it.
type Engine interface {
	Summary(ctx context.Context, pool model.Pool, summaryType string, start, end time.Time, denomination int64) (model.LpSummaryRecord, bool, error)
}

// Store is what the driver reads and writes.
type Store interface {
	storage.PoolStore
	storage.SummaryStore
	LastClosedHour(ctx context.Context, pool common.Address) (time.Time, bool, error)
	RefreshPricingView(ctx context.Context) error
}

// Config controls a summarize run.
type Config struct {
	SummaryTypes []string
	// Pools limits the run to these addresses when non-empty.
	Pools        []common.Address
	Denomination int64
	Overwrite    bool
	KeepHistory  bool
	Refresh      bool
	MaxRetries   int
	RetryBackoff time.Duration
}

// Stats counts pool windows by outcome.
type Stats struct {
	Processed int
	Skipped   int
	Failed    int
	Outliers  int
}

// Driver walks the pools and writes one summary per pool and summary type.
type Driver struct {
	cfg     Config
	store   Store
	engine  Engine
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewDriver(cfg Config, store Store, engine Engine, metrics *observability.Metrics, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Denomination == 0 {
		cfg.Denomination = 1
	}
	return &Driver{
		cfg:     cfg,
		store:   store,
		engine:  engine,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Run summarizes every selected pool for every configured summary type.
func (d *Driver) Run(ctx context.Context) (Stats, error) {
	started := time.Now()
	stats, err := d.run(ctx)
	d.metrics.RecordRun(summarizeJob, time.Since(started).Seconds(), err)
	return stats, err
}

func (d *Driver) run(ctx context.Context) (Stats, error) {
	var stats Stats
	if d.store == nil || d.engine == nil {
		return stats, fmt.Errorf("summarizer store and engine are required")
	}
	if len(d.cfg.SummaryTypes) == 0 {
		return stats, fmt.Errorf("no summary types configured")
	}
	for _, code := range d.cfg.SummaryTypes {
		if _, ok := model.LookupSummaryType(code); !ok {
			return stats, fmt.Errorf("unknown summary type %q", code)
		}
	}

	runID := uuid.NewString()
	logger := d.logger.With(zap.String("run_id", runID))

	if d.cfg.Refresh {
		if err := d.store.RefreshPricingView(ctx); err != nil {
			return stats, fmt.Errorf("refresh pricing view: %w", err)
		}
		logger.Info("pricing view refreshed")
	}

	pools, err := d.store.ListPools(ctx, d.cfg.Pools)
	if err != nil {
		return stats, fmt.Errorf("list pools: %w", err)
	}
	logger.Info("summarize start",
		zap.Int("pools", len(pools)),
		zap.Strings("summary_types", d.cfg.SummaryTypes),
		zap.Bool("overwrite", d.cfg.Overwrite),
	)

	for _, pool := range pools {
		for _, summaryType := range d.cfg.SummaryTypes {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			outcome, err := d.summarizePool(ctx, logger, pool, summaryType, &stats)
			if err != nil {
				stats.Failed++
				logger.Warn("summarize pool",
					zap.Error(err),
					zap.Int64("pool_id", pool.ID),
					zap.String("pool", pool.Address.Hex()),
					zap.String("summary_type", summaryType),
				)
				outcome = observability.OutcomeFailed
			}
			d.metrics.RecordUnit(summarizeJob, outcome)
		}
	}

	logger.Info("summarize complete",
		zap.Int("processed", stats.Processed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Int("outliers", stats.Outliers),
	)
	return stats, nil
}

func (d *Driver) summarizePool(ctx context.Context, logger *zap.Logger, pool model.Pool, summaryType string, stats *Stats) (string, error) {
	anchor, ok, err := d.store.LastClosedHour(ctx, pool.Address)
	if err != nil {
		return "", fmt.Errorf("last closed hour: %w", err)
	}
	if !ok {
		stats.Skipped++
		logger.Debug("pool has no closed hour", zap.Int64("pool_id", pool.ID))
		return observability.OutcomeSkipped, nil
	}

	start, end, err := WindowFor(summaryType, anchor)
	if err != nil {
		return "", err
	}

	if !d.cfg.Overwrite {
		exists, err := d.store.SummaryExists(ctx, pool.ID, summaryType, start, end)
		if err != nil {
			return "", fmt.Errorf("summary exists: %w", err)
		}
		if exists {
			stats.Skipped++
			return observability.OutcomeSkipped, nil
		}
	}

	rec, ok, err := d.engine.Summary(ctx, pool, summaryType, start, end, d.cfg.Denomination)
	if err != nil {
		var (
			notTracked *model.TokenNotTrackedError
			notFound   *model.TokenPricesNotFoundError
		)
		if errors.As(err, &notTracked) || errors.As(err, &notFound) {
			logger.Debug("pool prices unavailable", zap.Int64("pool_id", pool.ID), zap.Error(err))
			return d.skip(ctx, pool, stats)
		}
		return "", err
	}
	if !ok {
		return d.skip(ctx, pool, stats)
	}

	policy := retry.Policy{MaxRetries: d.cfg.MaxRetries, Backoff: d.cfg.RetryBackoff, Logger: logger}
	err = policy.Do(ctx, "upsert summary", func(ctx context.Context) error {
		return d.store.UpsertSummary(ctx, rec)
	})
	if err != nil {
		return "", fmt.Errorf("upsert summary: %w", err)
	}
	d.metrics.RecordSummary(summaryType, rec.Outlier)
	if rec.Outlier {
		stats.Outliers++
		logger.Info("summary flagged",
			zap.Int64("pool_id", pool.ID),
			zap.String("summary_type", summaryType),
			zap.Strings("notes", rec.Notes),
		)
	}

	if !d.cfg.KeepHistory {
		n, err := d.store.DeleteStaleSummaries(ctx, pool.ID, summaryType, start, end)
		if err != nil {
			return "", fmt.Errorf("delete stale summaries: %w", err)
		}
		d.metrics.RecordStaleDeleted(n)
	}

	if err := d.store.TouchPool(ctx, pool.ID, d.now().UTC()); err != nil {
		return "", fmt.Errorf("touch pool: %w", err)
	}
	stats.Processed++
	return observability.OutcomeProcessed, nil
}

// skip advances the pool watermark so pools without data rotate to the back.
func (d *Driver) skip(ctx context.Context, pool model.Pool, stats *Stats) (string, error) {
	if err := d.store.TouchPool(ctx, pool.ID, d.now().UTC()); err != nil {
		return "", fmt.Errorf("touch pool: %w", err)
	}
	stats.Skipped++
	return observability.OutcomeSkipped, nil
}
