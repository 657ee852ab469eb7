package exchangerate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lpAnalytics/internal/model"
	"lpAnalytics/internal/observability"
	"lpAnalytics/internal/pricing"
	"lpAnalytics/internal/storage"
)

const (
	DefaultWorkers = 15
	populateJob    = "populate-prices"
)

// PriceIndexer builds block-level price indexes.
type PriceIndexer interface {
	GetPriceIndex(ctx context.Context, token model.TokenRef, start, end uint64) (model.PriceSeries, error)
}

// NativePreloader warms the native price cache before workers start.
type NativePreloader interface {
	Preload(ctx context.Context, table string, start, end uint64) error
}

// PopulatorStore is what the populator reads and writes.
type PopulatorStore interface {
	TargetTokens(ctx context.Context) ([]model.TargetToken, error)
	storage.BlockHourStore
	storage.PriceHistoryStore
}

// PopulatorConfig controls a populator run.
type PopulatorConfig struct {
	Workers int
	// RecomputeFrom overrides every token's start hour when set.
	RecomputeFrom time.Time
	// Tokens limits the run to these currency ids when non-empty.
	Tokens []int64
	// MaxBlockSpan is the longest block range priced by one index request.
	// Longer histories are priced in consecutive chunks of whole hours.
	MaxBlockSpan uint64
}

// PopulatorStats counts tokens by outcome.
type PopulatorStats struct {
	Processed int64
	Skipped   int64
	Failed    int64
	Rows      int64
}

// Populator extends the hourly price history of every watched token.
type Populator struct {
	cfg     PopulatorConfig
	store   PopulatorStore
	indexer PriceIndexer
	native  NativePreloader
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewPopulator(cfg PopulatorConfig, store PopulatorStore, indexer PriceIndexer, native NativePreloader, metrics *observability.Metrics, logger *zap.Logger) *Populator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.MaxBlockSpan == 0 {
		cfg.MaxBlockSpan = pricing.DefaultMaxBlockSpan
	}
	return &Populator{
		cfg:     cfg,
		store:   store,
		indexer: indexer,
		native:  native,
		metrics: metrics,
		logger:  logger,
	}
}

type job struct {
	token model.TargetToken
	hours []model.HourBlocks
}

// Run prices every target token hour by hour from its start and upserts the rows.
// Failures of single tokens are logged and counted; only setup errors abort the run.
func (p *Populator) Run(ctx context.Context) (PopulatorStats, error) {
	started := time.Now()
	stats, err := p.run(ctx)
	p.metrics.RecordRun(populateJob, time.Since(started).Seconds(), err)
	return stats, err
}

func (p *Populator) run(ctx context.Context) (PopulatorStats, error) {
	var stats PopulatorStats

	tokens, err := p.store.TargetTokens(ctx)
	if err != nil {
		return stats, fmt.Errorf("load target tokens: %w", err)
	}
	tokens = p.filter(tokens)

	byNetwork := make(map[int][]model.TargetToken)
	var networks []int
	for _, tok := range tokens {
		if !p.cfg.RecomputeFrom.IsZero() {
			tok.Start = p.cfg.RecomputeFrom.UTC().Truncate(time.Hour)
		}
		if _, ok := byNetwork[tok.Network]; !ok {
			networks = append(networks, tok.Network)
		}
		byNetwork[tok.Network] = append(byNetwork[tok.Network], tok)
	}
	sort.Ints(networks)

	p.logger.Info("populate prices start",
		zap.Int("tokens", len(tokens)),
		zap.Int("networks", len(networks)),
		zap.Int("workers", p.cfg.Workers),
	)

	for _, network := range networks {
		jobs, skipped, err := p.prepare(ctx, network, byNetwork[network])
		if err != nil {
			return stats, err
		}
		stats.Skipped += skipped
		for i := int64(0); i < skipped; i++ {
			p.metrics.RecordUnit(populateJob, observability.OutcomeSkipped)
		}
		if err := p.dispatch(ctx, jobs, &stats); err != nil {
			return stats, err
		}
	}

	p.logger.Info("populate prices complete",
		zap.Int64("processed", stats.Processed),
		zap.Int64("skipped", stats.Skipped),
		zap.Int64("failed", stats.Failed),
		zap.Int64("rows", stats.Rows),
	)
	return stats, nil
}

func (p *Populator) filter(tokens []model.TargetToken) []model.TargetToken {
	if len(p.cfg.Tokens) == 0 {
		return tokens
	}
	keep := make(map[int64]struct{}, len(p.cfg.Tokens))
	for _, id := range p.cfg.Tokens {
		keep[id] = struct{}{}
	}
	out := tokens[:0]
	for _, tok := range tokens {
		if _, ok := keep[tok.CurrencyID]; ok {
			out = append(out, tok)
		}
	}
	return out
}

// prepare loads the network's hour ranges once and cuts them per token.
func (p *Populator) prepare(ctx context.Context, network int, tokens []model.TargetToken) ([]job, int64, error) {
	earliest := tokens[0].Start
	for _, tok := range tokens[1:] {
		if tok.Start.Before(earliest) {
			earliest = tok.Start
		}
	}

	hours, err := p.store.BlockHours(ctx, network, earliest)
	if err != nil {
		return nil, 0, fmt.Errorf("block hours network %d: %w", network, err)
	}
	if len(hours) == 0 {
		p.logger.Info("no complete hours to price", zap.Int("network", network), zap.Time("from", earliest))
		return nil, int64(len(tokens)), nil
	}

	if table := nativeTable(tokens); table != "" && p.native != nil {
		first := chunkHours(hours, p.cfg.MaxBlockSpan)[0]
		if err := p.native.Preload(ctx, table, first[0].StartBlock, first[len(first)-1].EndBlock); err != nil {
			return nil, 0, fmt.Errorf("preload native prices %s: %w", table, err)
		}
	}

	var (
		jobs    []job
		skipped int64
	)
	for _, tok := range tokens {
		idx := sort.Search(len(hours), func(i int) bool { return !hours[i].Hour.Before(tok.Start) })
		if idx == len(hours) {
			skipped++
			continue
		}
		jobs = append(jobs, job{token: tok, hours: hours[idx:]})
	}
	return jobs, skipped, nil
}

func nativeTable(tokens []model.TargetToken) string {
	for _, tok := range tokens {
		if tok.NativePriceTable != "" {
			return tok.NativePriceTable
		}
	}
	return ""
}

// dispatch hands job i to worker i % workers.
func (p *Populator) dispatch(ctx context.Context, jobs []job, stats *PopulatorStats) error {
	if len(jobs) == 0 {
		return nil
	}
	workers := p.cfg.Workers
	if workers > len(jobs) {
		workers = len(jobs)
	}
	queues := make([][]job, workers)
	for i, j := range jobs {
		queues[i%workers] = append(queues[i%workers], j)
	}

	g, gctx := errgroup.WithContext(ctx)
	for w := range queues {
		queue := queues[w]
		g.Go(func() error {
			for _, j := range queue {
				if err := gctx.Err(); err != nil {
					return err
				}
				rows, err := p.populateToken(gctx, j)
				switch {
				case err == nil && rows == 0:
					atomic.AddInt64(&stats.Skipped, 1)
					p.metrics.RecordUnit(populateJob, observability.OutcomeSkipped)
				case err == nil:
					atomic.AddInt64(&stats.Processed, 1)
					atomic.AddInt64(&stats.Rows, int64(rows))
					p.metrics.RecordUnit(populateJob, observability.OutcomeProcessed)
				case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
					return err
				case isSkippable(err):
					atomic.AddInt64(&stats.Skipped, 1)
					p.metrics.RecordUnit(populateJob, observability.OutcomeSkipped)
					p.logger.Info("token skipped", zap.Int64("currency_id", j.token.CurrencyID), zap.Error(err))
				default:
					atomic.AddInt64(&stats.Failed, 1)
					p.metrics.RecordUnit(populateJob, observability.OutcomeFailed)
					p.logger.Warn("token failed",
						zap.Int64("currency_id", j.token.CurrencyID),
						zap.String("address", j.token.Address.Hex()),
						zap.Error(err),
					)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func isSkippable(err error) bool {
	var (
		notTracked *model.TokenNotTrackedError
		notFound   *model.TokenPricesNotFoundError
	)
	return errors.As(err, &notTracked) || errors.As(err, &notFound)
}

// chunkHours splits consecutive hours into runs spanning at most maxSpan blocks.
// An hour longer than maxSpan gets a run of its own.
func chunkHours(hours []model.HourBlocks, maxSpan uint64) [][]model.HourBlocks {
	var out [][]model.HourBlocks
	from := 0
	for i := 1; i <= len(hours); i++ {
		if i < len(hours) && hours[i].EndBlock-hours[from].StartBlock+1 <= maxSpan {
			continue
		}
		out = append(out, hours[from:i])
		from = i
	}
	return out
}

// populateToken returns the number of rows written.
// A chunk without prices is skipped; the token is skipped only when every chunk is.
func (p *Populator) populateToken(ctx context.Context, j job) (int, error) {
	ref := model.TokenRef{CurrencyID: j.token.CurrencyID, Address: j.token.Address, Network: j.token.Network}

	var (
		rows    []model.HourlyPrice
		skipErr error
	)
	for _, chunk := range chunkHours(j.hours, p.cfg.MaxBlockSpan) {
		start, end := chunk[0].StartBlock, chunk[len(chunk)-1].EndBlock
		began := time.Now()
		series, err := p.indexer.GetPriceIndex(ctx, ref, start, end)
		p.metrics.RecordPriceIndex(time.Since(began).Seconds())
		if isSkippable(err) {
			skipErr = err
			continue
		}
		if err != nil {
			return 0, err
		}
		if series.Empty() {
			continue
		}
		rows = append(rows, HourlyOHLC(series, chunk, j.token.CurrencyID, USD)...)
	}
	if len(rows) == 0 {
		if skipErr != nil {
			return 0, skipErr
		}
		p.logger.Debug("empty price index", zap.Int64("currency_id", j.token.CurrencyID))
		return 0, nil
	}
	ComputeATH(rows, j.token.LatestATH, j.token.LatestHoursSince)

	if err := p.store.UpsertPriceHistory(ctx, rows); err != nil {
		return 0, fmt.Errorf("upsert price history: %w", err)
	}
	p.metrics.RecordPriceRows(len(rows))
	p.logger.Debug("token priced",
		zap.Int64("currency_id", j.token.CurrencyID),
		zap.Int("rows", len(rows)),
		zap.Time("from", rows[0].OpenTimestamp),
		zap.Time("to", rows[len(rows)-1].OpenTimestamp),
	)
	return len(rows), nil
}
