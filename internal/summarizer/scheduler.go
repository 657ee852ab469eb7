package summarizer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// LatestCloser reports the newest hourly close across all pools.
type LatestCloser interface {
	LatestHourlyClose(ctx context.Context) (time.Time, bool, error)
}

// Runner is one summarize pass. *Driver satisfies it.
type Runner interface {
	Run(ctx context.Context) (Stats, error)
}

// Scheduler reruns the driver whenever new hourly data lands.
type Scheduler struct {
	runner    Runner
	latest    LatestCloser
	watermark Watermark
	interval  time.Duration
	logger    *zap.Logger
}

func NewScheduler(runner Runner, latest LatestCloser, watermark Watermark, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		runner:    runner,
		latest:    latest,
		watermark: watermark,
		interval:  interval,
		logger:    logger,
	}
}

// Run ticks until ctx is cancelled. The first tick fires immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("scheduler interval must be > 0")
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("summarize tick failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Tick runs the driver once if the latest hourly close moved past the
// watermark. It reports whether a run happened.
func (s *Scheduler) Tick(ctx context.Context) (bool, error) {
	latest, ok, err := s.latest.LatestHourlyClose(ctx)
	if err != nil {
		return false, fmt.Errorf("latest hourly close: %w", err)
	}
	if !ok {
		s.logger.Debug("no hourly data yet")
		return false, nil
	}

	last, found, err := s.watermark.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load watermark: %w", err)
	}
	if found && !latest.After(last) {
		s.logger.Debug("no new hourly data", zap.Time("latest", latest))
		return false, nil
	}

	stats, err := s.runner.Run(ctx)
	if err != nil {
		return false, err
	}
	if err := s.watermark.Save(ctx, latest); err != nil {
		return true, fmt.Errorf("save watermark: %w", err)
	}
	s.logger.Info("summarize tick",
		zap.Time("latest_close", latest),
		zap.Int("processed", stats.Processed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return true, nil
}
