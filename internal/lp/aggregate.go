package lp

import (
	"math"

	"lpAnalytics/internal/exchangerate"
)

type field func(*LpHour) *float64

type reducer func([]float64) float64

type fieldRule struct {
	get    field
	reduce reducer
}

var aggregationRules = []fieldRule{
	{func(h *LpHour) *float64 { return &h.Volume0 }, sumOf},
	{func(h *LpHour) *float64 { return &h.Volume1 }, sumOf},

	{func(h *LpHour) *float64 { return &h.OpenReserve0 }, firstOf},
	{func(h *LpHour) *float64 { return &h.OpenReserve1 }, firstOf},
	{func(h *LpHour) *float64 { return &h.OpenLPSupply }, firstOf},
	{func(h *LpHour) *float64 { return &h.OpenPrice0 }, firstOf},
	{func(h *LpHour) *float64 { return &h.OpenPrice1 }, firstOf},
	{func(h *LpHour) *float64 { return &h.OpenReserveRatio }, firstOf},

	{func(h *LpHour) *float64 { return &h.CloseReserve0 }, lastOf},
	{func(h *LpHour) *float64 { return &h.CloseReserve1 }, lastOf},
	{func(h *LpHour) *float64 { return &h.CloseLPSupply }, lastOf},
	{func(h *LpHour) *float64 { return &h.ClosePrice0 }, lastOf},
	{func(h *LpHour) *float64 { return &h.ClosePrice1 }, lastOf},
	{func(h *LpHour) *float64 { return &h.CloseReserveRatio }, lastOf},
	{func(h *LpHour) *float64 { return &h.HoursSinceATH0 }, lastOf},
	{func(h *LpHour) *float64 { return &h.HoursSinceATH1 }, lastOf},
	{func(h *LpHour) *float64 { return &h.TotalCROI }, lastOf},
	{func(h *LpHour) *float64 { return &h.InvestmentGrowth }, lastOf},
	{func(h *LpHour) *float64 { return &h.HodlCROI }, lastOf},
	{func(h *LpHour) *float64 { return &h.HodlToken0CROI }, lastOf},
	{func(h *LpHour) *float64 { return &h.HodlToken1CROI }, lastOf},
	{func(h *LpHour) *float64 { return &h.ImpermanentLossLevel }, lastOf},
	{func(h *LpHour) *float64 { return &h.ImpermanentLossImpact }, lastOf},
	{func(h *LpHour) *float64 { return &h.PriceChangeCROI }, lastOf},
	{func(h *LpHour) *float64 { return &h.AccumulatedToken0Fees }, lastOf},
	{func(h *LpHour) *float64 { return &h.AccumulatedToken1Fees }, lastOf},
	{func(h *LpHour) *float64 { return &h.Token0FeesCROI }, lastOf},
	{func(h *LpHour) *float64 { return &h.Token1FeesCROI }, lastOf},
	{func(h *LpHour) *float64 { return &h.FeesCROI }, lastOf},

	{func(h *LpHour) *float64 { return &h.HighPrice0 }, maxOf},
	{func(h *LpHour) *float64 { return &h.HighPrice1 }, maxOf},
	{func(h *LpHour) *float64 { return &h.AllTimeHigh0 }, maxOf},
	{func(h *LpHour) *float64 { return &h.AllTimeHigh1 }, maxOf},

	{func(h *LpHour) *float64 { return &h.LowPrice0 }, minOf},
	{func(h *LpHour) *float64 { return &h.LowPrice1 }, minOf},

	{func(h *LpHour) *float64 { return &h.TotalPeriodReturn }, AggregateReturn},
	{func(h *LpHour) *float64 { return &h.PriceChangeReturn }, AggregateReturn},
	{func(h *LpHour) *float64 { return &h.MiscReturn }, AggregateReturn},
	{func(h *LpHour) *float64 { return &h.Token0PriceReturn }, AggregateReturn},
	{func(h *LpHour) *float64 { return &h.Token1PriceReturn }, AggregateReturn},
	{func(h *LpHour) *float64 { return &h.HodlReturn }, AggregateReturn},
	{func(h *LpHour) *float64 { return &h.YieldOnLPFees }, AggregateReturn},
	{func(h *LpHour) *float64 { return &h.Token0FeesReturn }, AggregateReturn},
	{func(h *LpHour) *float64 { return &h.Token1FeesReturn }, AggregateReturn},
}

// Aggregate folds an hourly series into freq buckets and recomputes the base
// currency metrics. Hourly frequency returns rows unchanged.
func Aggregate(rows []LpHour, freq exchangerate.Frequency) []LpHour {
	if freq.IsHourly() || len(rows) == 0 {
		return rows
	}
	var (
		out    []LpHour
		from   int
		bucket = freq.Bucket(rows[0].OpenTimestamp)
	)
	for i := 1; i <= len(rows); i++ {
		if i < len(rows) && freq.Bucket(rows[i].OpenTimestamp).Equal(bucket) {
			continue
		}
		out = append(out, aggregateGroup(rows[from:i]))
		from = i
		if i < len(rows) {
			bucket = freq.Bucket(rows[i].OpenTimestamp)
		}
	}
	computeBaseMetrics(out)
	return out
}

// Window folds the whole series into a single row.
func Window(rows []LpHour) (LpHour, bool) {
	if len(rows) == 0 {
		return LpHour{}, false
	}
	out := []LpHour{aggregateGroup(rows)}
	computeBaseMetrics(out)
	return out[0], true
}

// AggregateReturn compounds period returns: prod(1+r) - 1. Missing values are
// skipped; a series with none present is missing.
func AggregateReturn(returns []float64) float64 {
	product, seen := 1.0, false
	for _, r := range returns {
		if math.IsNaN(r) {
			continue
		}
		product *= 1 + r
		seen = true
	}
	if !seen {
		return math.NaN()
	}
	return product - 1
}

func aggregateGroup(group []LpHour) LpHour {
	out := LpHour{
		OpenTimestamp:  group[0].OpenTimestamp,
		CloseTimestamp: group[len(group)-1].CloseTimestamp,
	}
	for _, h := range group {
		out.NumSwaps0 += h.NumSwaps0
		out.NumSwaps1 += h.NumSwaps1
		out.NumMints += h.NumMints
		out.NumBurns += h.NumBurns
		out.NumLiquidityEvents += h.NumLiquidityEvents
		out.NumSwaps += h.NumSwaps
		out.TransactionsPeriod += h.TransactionsPeriod
	}

	values := make([]float64, len(group))
	for _, rule := range aggregationRules {
		for i := range group {
			values[i] = *rule.get(&group[i])
		}
		*rule.get(&out) = rule.reduce(values)
	}
	return out
}

func sumOf(values []float64) float64 {
	var total float64
	for _, v := range values {
		if !math.IsNaN(v) {
			total += v
		}
	}
	return total
}

func firstOf(values []float64) float64 {
	for _, v := range values {
		if !math.IsNaN(v) {
			return v
		}
	}
	return math.NaN()
}

func lastOf(values []float64) float64 {
	for i := len(values) - 1; i >= 0; i-- {
		if !math.IsNaN(values[i]) {
			return values[i]
		}
	}
	return math.NaN()
}

func maxOf(values []float64) float64 {
	out := math.NaN()
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(out) || v > out {
			out = v
		}
	}
	return out
}

func minOf(values []float64) float64 {
	out := math.NaN()
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(out) || v < out {
			out = v
		}
	}
	return out
}
