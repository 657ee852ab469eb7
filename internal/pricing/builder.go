// Package pricing builds block-level USD price indexes for tokens from pool reserves.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"lpAnalytics/internal/model"
)

// ErrRangeTooLarge is returned for requests longer than Config.MaxBlockSpan.
var ErrRangeTooLarge = errors.New("block range too large")

// CandidateSource lists the pricing pools registered for a token.
type CandidateSource interface {
	PricingCandidates(ctx context.Context, token model.TokenRef) ([]model.PricingPoolCandidate, error)
}

// ReserveSource returns normalized pool reserves.
type ReserveSource interface {
	GetReservesByAddress(ctx context.Context, network int, address common.Address, start, end uint64) ([]model.ReserveObservation, error)
}

// Builder computes liquidity-weighted price indexes. It is safe for concurrent
// use: recursion budget and memo live in a per-call request.
type Builder struct {
	cfg        Config
	candidates CandidateSource
	reserves   ReserveSource
	native     *NativeCache
	logger     *zap.Logger
}

func NewBuilder(cfg Config, candidates CandidateSource, reserves ReserveSource, native *NativeCache, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		cfg:        cfg.withDefaults(),
		candidates: candidates,
		reserves:   reserves,
		native:     native,
		logger:     logger,
	}
}

// Native exposes the shared native price cache.
func (b *Builder) Native() *NativeCache {
	return b.native
}

// MaxBlockSpan is the longest range GetPriceIndex accepts.
func (b *Builder) MaxBlockSpan() uint64 {
	return b.cfg.MaxBlockSpan
}

type memoKey struct {
	token      string
	start, end uint64
	depth      int
}

type request struct {
	memo       map[memoKey]model.PriceSeries
	recursions int
}

// poolSeries is one pool's implied price and pool size over a dense block range.
type poolSeries struct {
	pool  common.Address
	price model.PriceSeries
	size  []float64
}

// GetPriceIndex returns the USD price of token for every block in [start, end].
// Blocks no pool could price are NaN; a series with no priced block means the
// token cannot be priced over the range.
func (b *Builder) GetPriceIndex(ctx context.Context, token model.TokenRef, start, end uint64) (model.PriceSeries, error) {
	if end < start {
		return model.PriceSeries{}, fmt.Errorf("end block %d before start block %d", end, start)
	}
	if span := end - start + 1; span > b.cfg.MaxBlockSpan {
		return model.PriceSeries{}, fmt.Errorf("%d blocks from %d, limit %d: %w", span, start, b.cfg.MaxBlockSpan, ErrRangeTooLarge)
	}
	req := &request{memo: make(map[memoKey]model.PriceSeries)}
	return b.priceIndex(ctx, req, token, start, end, 0)
}

func (b *Builder) priceIndex(ctx context.Context, req *request, token model.TokenRef, start, end uint64, depth int) (model.PriceSeries, error) {
	key := memoKey{token: token.String(), start: start, end: end, depth: depth}
	if cached, ok := req.memo[key]; ok {
		return cached, nil
	}

	candidates, err := b.candidates.PricingCandidates(ctx, token)
	if err != nil {
		return model.PriceSeries{}, err
	}
	selected, err := SelectCandidates(candidates, start, token.String(), b.cfg)
	if err != nil {
		return model.PriceSeries{}, err
	}

	if selected[0].IsNetworkCurrency {
		series, err := b.native.Series(ctx, selected[0].NativePriceTable, start, end)
		if err != nil {
			return model.PriceSeries{}, err
		}
		req.memo[key] = series
		return series, nil
	}

	var pools []poolSeries
	for _, cand := range selected {
		ps, ok, err := b.poolPrice(ctx, req, cand, start, end, depth)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return model.PriceSeries{}, ctxErr
			}
			b.logger.Warn("pricing pool skipped",
				zap.String("token", token.String()),
				zap.String("pool", cand.PoolAddress.Hex()),
				zap.Error(err),
			)
			continue
		}
		if ok {
			pools = append(pools, ps)
		}
	}

	series := combine(pools, start, end)
	b.logger.Debug("price index built",
		zap.String("token", token.String()),
		zap.Uint64("start", start),
		zap.Uint64("end", end),
		zap.Int("depth", depth),
		zap.Int("candidates", len(selected)),
		zap.Int("pools", len(pools)),
		zap.Int("priced_blocks", series.Valid()),
	)
	req.memo[key] = series
	return series, nil
}

// poolPrice derives one pool's implied target-token price. ok is false when the
// pool has nothing usable over the range.
func (b *Builder) poolPrice(ctx context.Context, req *request, cand model.PricingPoolCandidate, start, end uint64, depth int) (poolSeries, bool, error) {
	observations, err := b.reserves.GetReservesByAddress(ctx, cand.Network, cand.PoolAddress, start, end)
	if err != nil {
		return poolSeries{}, false, err
	}

	n := 0
	blocks := make([]uint64, 0, len(observations))
	target := make([]float64, 0, len(observations))
	pricing := make([]float64, 0, len(observations))
	ratio := make([]float64, 0, len(observations))
	for _, obs := range observations {
		if obs.Reserve0 <= 0 || obs.Reserve1 <= 0 {
			continue
		}
		blocks = append(blocks, obs.BlockNumber)
		if cand.TargetTokenIdx == 0 {
			target = append(target, obs.Reserve0)
			pricing = append(pricing, obs.Reserve1)
			ratio = append(ratio, obs.Reserve1/obs.Reserve0)
		} else {
			target = append(target, obs.Reserve1)
			pricing = append(pricing, obs.Reserve0)
			ratio = append(ratio, obs.Reserve0/obs.Reserve1)
		}
		n++
	}
	if n == 0 {
		return poolSeries{}, false, nil
	}

	priceAt, ok, err := b.pricingTokenPrice(ctx, req, cand, blocks[0], end, depth)
	if err != nil || !ok {
		return poolSeries{}, false, err
	}

	window := smoothingWindow(n)
	target = rollingMedian(target, window)
	pricing = rollingMedian(pricing, window)
	ratio = rollingMedian(ratio, window)

	kept := make([]int, 0, n)
	for i, block := range blocks {
		p, ok := priceAt(block)
		if !ok {
			continue
		}
		if pricing[i]*p*2 <= b.cfg.MinPoolSizePerBlock {
			continue
		}
		if ratio[i]*p >= b.cfg.MaxPrice {
			continue
		}
		kept = append(kept, i)
	}
	if len(kept) == 0 {
		return poolSeries{}, false, nil
	}

	from := blocks[kept[0]]
	if from < start {
		from = start
	}
	out := poolSeries{
		pool:  cand.PoolAddress,
		price: model.NewPriceSeries(from, end),
		size:  make([]float64, end-from+1),
	}
	cursor := 0
	for block := from; block <= end; block++ {
		for cursor+1 < len(kept) && blocks[kept[cursor+1]] <= block {
			cursor++
		}
		idx := kept[cursor]
		p, ok := priceAt(block)
		if !ok {
			out.size[block-from] = math.NaN()
			continue
		}
		out.price.Set(block, ratio[idx]*p)
		out.size[block-from] = pricing[idx] * p * 2
	}
	return out, true, nil
}

// pricingTokenPrice resolves the USD price of the pool's counter token.
func (b *Builder) pricingTokenPrice(ctx context.Context, req *request, cand model.PricingPoolCandidate, start, end uint64, depth int) (func(uint64) (float64, bool), bool, error) {
	switch {
	case cand.IsUSDStable:
		return func(uint64) (float64, bool) { return 1, true }, true, nil
	case cand.IsPricingToken:
		series, err := b.native.Series(ctx, cand.NativePriceTable, start, end)
		if err != nil {
			return nil, false, err
		}
		return series.At, true, nil
	}

	if req.recursions >= b.cfg.MaxRecursion || depth >= b.cfg.MaxDepth {
		b.logger.Debug("recursion limit reached",
			zap.String("pool", cand.PoolAddress.Hex()),
			zap.Int("recursions", req.recursions),
			zap.Int("depth", depth),
		)
		return nil, false, nil
	}
	req.recursions++

	ref := model.TokenRef{Address: cand.PricingTokenAddress, Network: cand.Network}
	series, err := b.priceIndex(ctx, req, ref, start, end, depth+1)
	if err != nil {
		var notTracked *model.TokenNotTrackedError
		if errors.As(err, &notTracked) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if series.Empty() {
		return nil, false, nil
	}
	return series.At, true, nil
}

// combine averages pool prices per block weighted by pool size. Blocks whose
// total weight is zero stay unpriced.
func combine(pools []poolSeries, start, end uint64) model.PriceSeries {
	out := model.NewPriceSeries(start, end)
	if len(pools) == 1 {
		for block := pools[0].price.StartBlock; block <= end; block++ {
			if p, ok := pools[0].price.At(block); ok {
				out.Set(block, p)
			}
		}
		return out
	}

	for block := start; block <= end; block++ {
		var weighted, total float64
		for _, ps := range pools {
			p, ok := ps.price.At(block)
			if !ok {
				continue
			}
			w := ps.size[block-ps.price.StartBlock]
			if math.IsNaN(w) || w <= 0 {
				continue
			}
			weighted += p * w
			total += w
		}
		if total > 0 {
			out.Set(block, weighted/total)
		}
	}
	return out
}
