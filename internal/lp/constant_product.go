package lp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"lpAnalytics/internal/model"
	"lpAnalytics/internal/reserves"
)

// ConstantProductPool is a UniswapV2 style pair.
type ConstantProductPool struct {
	pool model.Pool
	src  Sources
}

func NewConstantProductPool(pool model.Pool, src Sources) *ConstantProductPool {
	return &ConstantProductPool{pool: pool, src: src}
}

type closeState struct {
	reserve0 float64
	reserve1 float64
	supply   float64
}

// FetchLPData joins hourly snapshots with both tokens' hourly prices on a
// complete hourly grid. Hours without a snapshot carry the previous close and
// report no activity.
func (p *ConstantProductPool) FetchLPData(ctx context.Context, start, end time.Time) ([]LpHour, error) {
	start, end = start.UTC(), end.UTC()
	snaps, err := p.src.Hourly.HourlySnapshots(ctx, p.pool.Address, start, end)
	if err != nil {
		return nil, fmt.Errorf("hourly snapshots: %w", err)
	}
	snaps = dedupeSnapshots(snaps)
	if len(snaps) == 0 {
		return nil, nil
	}

	states, err := p.normalize(ctx, snaps)
	if err != nil {
		return nil, err
	}

	seedIsPrior := snaps[0].OpenTimestamp.Before(start)
	gridStart := start.Truncate(time.Hour)
	if first := openHour(snaps[0]); first.After(gridStart) {
		gridStart = first
	}
	gridEnd := end.Add(-time.Hour)
	if gridEnd.Before(gridStart) {
		return nil, nil
	}

	// Snapshots are placed in the hour they open in, so the first grid hour
	// always has one at or before it.
	var rows []LpHour
	cursor := -1
	for h := gridStart; !h.After(gridEnd); h = h.Add(time.Hour) {
		for cursor+1 < len(snaps) && !openHour(snaps[cursor+1]).After(h) {
			cursor++
		}
		row := newLpHour(h)
		state := states[cursor]
		row.CloseReserve0 = state.reserve0
		row.CloseReserve1 = state.reserve1
		row.CloseLPSupply = state.supply

		snap := snaps[cursor]
		if openHour(snap).Equal(h) && (cursor > 0 || !seedIsPrior) {
			row.NumSwaps0 = snap.NumSwaps0
			row.NumSwaps1 = snap.NumSwaps1
			row.NumMints = snap.NumMints
			row.NumBurns = snap.NumBurns
			row.Volume0 = reserves.Normalize(snap.Volume0, p.decimals0())
			row.Volume1 = reserves.Normalize(snap.Volume1, p.decimals1())
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	rows[0].OpenReserve0 = states[0].reserve0
	rows[0].OpenReserve1 = states[0].reserve1
	rows[0].OpenLPSupply = states[0].supply
	for i := 1; i < len(rows); i++ {
		rows[i].OpenReserve0 = rows[i-1].CloseReserve0
		rows[i].OpenReserve1 = rows[i-1].CloseReserve1
		rows[i].OpenLPSupply = rows[i-1].CloseLPSupply
	}

	prices0, err := p.tokenPrices(ctx, p.pool.Token0)
	if err != nil {
		return nil, fmt.Errorf("token0 prices: %w", err)
	}
	prices1, err := p.tokenPrices(ctx, p.pool.Token1)
	if err != nil {
		return nil, fmt.Errorf("token1 prices: %w", err)
	}
	if len(prices0) == 0 && len(prices1) == 0 {
		return nil, &model.TokenPricesNotFoundError{Token: p.pool.Address.Hex()}
	}
	joinPrices(rows, 0, prices0)
	joinPrices(rows, 1, prices1)
	p.InferMissingPrices(rows)

	computeBaseMetrics(rows)
	computeActivity(rows)
	return rows, nil
}

func (p *ConstantProductPool) decimals0() uint8 {
	if p.pool.Decimals0 == nil {
		return 18
	}
	return *p.pool.Decimals0
}

func (p *ConstantProductPool) decimals1() uint8 {
	if p.pool.Decimals1 == nil {
		return 18
	}
	return *p.pool.Decimals1
}

// normalize converts raw snapshot amounts and fills missing supply both ways.
func (p *ConstantProductPool) normalize(ctx context.Context, snaps []model.HourlySnapshot) ([]closeState, error) {
	if p.src.Decimals != nil {
		d0, err := p.src.Decimals.Decimals(ctx, p.pool.Token0, p.pool.Decimals0)
		if err != nil {
			return nil, fmt.Errorf("token0 decimals: %w", err)
		}
		d1, err := p.src.Decimals.Decimals(ctx, p.pool.Token1, p.pool.Decimals1)
		if err != nil {
			return nil, fmt.Errorf("token1 decimals: %w", err)
		}
		p.pool.Decimals0, p.pool.Decimals1 = &d0, &d1
	}

	states := make([]closeState, len(snaps))
	supply := make([]float64, len(snaps))
	for i, s := range snaps {
		states[i] = closeState{
			reserve0: normalizeOrNaN(s.CloseReserve0, p.decimals0()),
			reserve1: normalizeOrNaN(s.CloseReserve1, p.decimals1()),
		}
		supply[i] = normalizeOrNaN(s.CloseLPSupply, p.pool.LPDecimals)
	}
	fillForward(supply)
	fillBackward(supply)
	reserve0 := make([]float64, len(states))
	reserve1 := make([]float64, len(states))
	for i := range states {
		states[i].supply = supply[i]
		reserve0[i] = states[i].reserve0
		reserve1[i] = states[i].reserve1
	}
	fillForward(reserve0)
	fillForward(reserve1)
	for i := range states {
		states[i].reserve0 = reserve0[i]
		states[i].reserve1 = reserve1[i]
	}
	return states, nil
}

func (p *ConstantProductPool) tokenPrices(ctx context.Context, token common.Address) ([]model.HourlyPrice, error) {
	rows, err := p.src.Prices.TokenPriceHistory(ctx, token, p.pool.Network)
	if err != nil {
		var (
			notTracked *model.TokenNotTrackedError
			notFound   *model.TokenPricesNotFoundError
		)
		if errors.As(err, &notTracked) || errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, err
	}
	return rows, nil
}

// InferMissingPrices fills a token's missing open and close price from the other
// token assuming both reserves hold equal value, then carries prices forward
// and backward. Inferred hours get high and low from their open and close.
func (p *ConstantProductPool) InferMissingPrices(rows []LpHour) {
	if len(rows) == 0 {
		return
	}
	type side struct {
		price   func(*LpHour, int) *float64
		reserve func(*LpHour, int) float64
	}
	sides := []side{
		{
			price: func(h *LpHour, token int) *float64 {
				if token == 0 {
					return &h.OpenPrice0
				}
				return &h.OpenPrice1
			},
			reserve: func(h *LpHour, token int) float64 {
				if token == 0 {
					return h.OpenReserve0
				}
				return h.OpenReserve1
			},
		},
		{
			price: func(h *LpHour, token int) *float64 {
				if token == 0 {
					return &h.ClosePrice0
				}
				return &h.ClosePrice1
			},
			reserve: func(h *LpHour, token int) float64 {
				if token == 0 {
					return h.CloseReserve0
				}
				return h.CloseReserve1
			},
		},
	}

	for _, s := range sides {
		for i := 0; i < 2; i++ {
			j := 1 - i
			for k := range rows {
				h := &rows[k]
				pi, pj := s.price(h, i), s.price(h, j)
				if math.IsNaN(*pj) && !math.IsNaN(*pi) {
					*pj = div(s.reserve(h, i)*(*pi), s.reserve(h, j))
				}
			}
		}
		for token := 0; token < 2; token++ {
			values := make([]float64, len(rows))
			for k := range rows {
				values[k] = *s.price(&rows[k], token)
			}
			fillForward(values)
			fillBackward(values)
			for k := range rows {
				*s.price(&rows[k], token) = values[k]
			}
		}
	}

	for k := range rows {
		h := &rows[k]
		if math.IsNaN(h.HighPrice0) {
			h.HighPrice0 = math.Max(h.OpenPrice0, h.ClosePrice0)
		}
		if math.IsNaN(h.LowPrice0) {
			h.LowPrice0 = math.Min(h.OpenPrice0, h.ClosePrice0)
		}
		if math.IsNaN(h.HighPrice1) {
			h.HighPrice1 = math.Max(h.OpenPrice1, h.ClosePrice1)
		}
		if math.IsNaN(h.LowPrice1) {
			h.LowPrice1 = math.Min(h.OpenPrice1, h.ClosePrice1)
		}
	}
}

// ComputeReturns derives cumulative indices relative to the first row's open
// and the per-period returns of a position of the opening LP supply.
func (p *ConstantProductPool) ComputeReturns(rows []LpHour) {
	if len(rows) == 0 {
		return
	}
	first := rows[0]
	initReserve0, initReserve1 := first.OpenReserve0, first.OpenReserve1
	initPrice0, initPrice1 := first.OpenPrice0, first.OpenPrice1
	initLPPrice := first.OpenLPTokenPrice
	initialRatio := div(initReserve1, initReserve0)

	invested := first.OpenLPSupply
	initInvestment := div(invested, first.CloseLPSupply) * first.OpenPoolsize
	share0 := div(invested, first.OpenLPSupply)
	initK := initReserve1 * initReserve0 * share0 * share0

	for i := range rows {
		r := &rows[i]
		currentRatio := div(r.CloseReserve1, r.CloseReserve0)
		poolShare := div(invested, r.CloseLPSupply)

		r.TotalCROI = div(r.CloseLPTokenPrice, initLPPrice) - 1
		r.InvestmentGrowth = r.TotalCROI + 1

		r.HodlToken0CROI = div(r.ClosePrice0, initPrice0) - 1
		r.HodlToken1CROI = div(r.ClosePrice1, initPrice1) - 1
		r.HodlCROI = (div(r.ClosePrice1, initPrice1)+div(r.ClosePrice0, initPrice0))/2 - 1

		r.ImpermanentLossLevel = ImpermanentLoss(currentRatio, initialRatio)
		r.ImpermanentLossImpact = r.ImpermanentLossLevel * (1 + r.HodlCROI)
		r.PriceChangeCROI = r.ImpermanentLossImpact + r.HodlCROI

		reserve0NoFees := math.Sqrt(div(initK, currentRatio))
		r.AccumulatedToken1Fees = poolShare*r.CloseReserve1 - div(initK, reserve0NoFees)
		r.Token1FeesCROI = div(r.AccumulatedToken1Fees*r.ClosePrice1, initInvestment)
		r.AccumulatedToken0Fees = poolShare*r.CloseReserve0 - reserve0NoFees
		r.Token0FeesCROI = div(r.AccumulatedToken0Fees*r.ClosePrice0, initInvestment)
		r.FeesCROI = r.Token1FeesCROI + r.Token0FeesCROI
	}

	for i := range rows {
		r := &rows[i]
		if i == 0 {
			r.TotalPeriodReturn = r.TotalCROI
			r.HodlReturn = r.HodlCROI
			r.Token0PriceReturn = r.HodlToken0CROI
			r.Token1PriceReturn = r.HodlToken1CROI
			r.PriceChangeReturn = r.PriceChangeCROI
			r.Token0FeesReturn = r.Token0FeesCROI
			r.Token1FeesReturn = r.Token1FeesCROI
			r.YieldOnLPFees = r.FeesCROI
			continue
		}
		prev := &rows[i-1]
		r.TotalPeriodReturn = pctChange(prev.TotalCROI+1, r.TotalCROI+1)
		r.HodlReturn = pctChange(prev.HodlCROI+1, r.HodlCROI+1)
		r.Token0PriceReturn = pctChange(prev.ClosePrice0, r.ClosePrice0)
		r.Token1PriceReturn = pctChange(prev.ClosePrice1, r.ClosePrice1)
		r.PriceChangeReturn = pctChange(prev.PriceChangeCROI+1, r.PriceChangeCROI+1)
		r.Token0FeesReturn = pctChange(prev.Token0FeesCROI+1, r.Token0FeesCROI+1)
		r.Token1FeesReturn = pctChange(prev.Token1FeesCROI+1, r.Token1FeesCROI+1)
		r.YieldOnLPFees = pctChange(prev.FeesCROI+1, r.FeesCROI+1)
	}
}

// ImpermanentLoss is the constant-product loss against holding when the
// reserve ratio moves from initial to current. It is zero for no move and
// negative otherwise.
func ImpermanentLoss(current, initial float64) float64 {
	priceRatio := div(initial, current)
	return 2*math.Sqrt(priceRatio)/(1+priceRatio) - 1
}

func pctChange(prev, cur float64) float64 {
	return div(cur, prev) - 1
}

func joinPrices(rows []LpHour, token int, prices []model.HourlyPrice) {
	if len(prices) == 0 {
		return
	}
	byHour := make(map[int64]model.HourlyPrice, len(prices))
	for _, pr := range prices {
		byHour[pr.OpenTimestamp.Unix()] = pr
	}
	for i := range rows {
		pr, ok := byHour[rows[i].OpenTimestamp.Unix()]
		if !ok {
			continue
		}
		fields := rows[i].priceFields(token)
		*fields[0] = pr.Open
		*fields[1] = pr.High
		*fields[2] = pr.Low
		*fields[3] = pr.Close
		*fields[4] = pr.ATH
		*fields[5] = float64(pr.HoursSinceATH)
	}
}

// dedupeSnapshots keeps the last snapshot of each open hour, ordered by open time.
func openHour(s model.HourlySnapshot) time.Time {
	return s.OpenTimestamp.UTC().Truncate(time.Hour)
}

// dedupeSnapshots keeps the last snapshot of every open hour.
func dedupeSnapshots(snaps []model.HourlySnapshot) []model.HourlySnapshot {
	out := make([]model.HourlySnapshot, 0, len(snaps))
	for _, s := range snaps {
		if n := len(out); n > 0 && openHour(out[n-1]).Equal(openHour(s)) {
			out[n-1] = s
			continue
		}
		out = append(out, s)
	}
	return out
}

func normalizeOrNaN(raw *big.Int, decimals uint8) float64 {
	if raw == nil {
		return math.NaN()
	}
	return reserves.Normalize(raw, decimals)
}

func fillForward(values []float64) {
	last := math.NaN()
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = last
			continue
		}
		last = v
	}
}

func fillBackward(values []float64) {
	next := math.NaN()
	for i := len(values) - 1; i >= 0; i-- {
		if math.IsNaN(values[i]) {
			values[i] = next
			continue
		}
		next = values[i]
	}
}
