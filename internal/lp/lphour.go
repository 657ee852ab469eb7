package lp

import (
	"math"
	"time"
)

// LpHour is one period of a pool's return series. Prices and derived metrics
// use NaN for missing values.
type LpHour struct {
	OpenTimestamp  time.Time
	CloseTimestamp time.Time

	NumSwaps0 int64
	NumSwaps1 int64
	NumMints  int64
	NumBurns  int64
	Volume0   float64
	Volume1   float64

	OpenReserve0  float64
	OpenReserve1  float64
	CloseReserve0 float64
	CloseReserve1 float64
	OpenLPSupply  float64
	CloseLPSupply float64

	OpenPrice0     float64
	HighPrice0     float64
	LowPrice0      float64
	ClosePrice0    float64
	AllTimeHigh0   float64
	HoursSinceATH0 float64
	OpenPrice1     float64
	HighPrice1     float64
	LowPrice1      float64
	ClosePrice1    float64
	AllTimeHigh1   float64
	HoursSinceATH1 float64

	// base currency metrics
	OpenReserveRatio  float64
	CloseReserveRatio float64
	OpenReserve0Base  float64
	OpenReserve1Base  float64
	CloseReserve0Base float64
	CloseReserve1Base float64
	Volume0Base       float64
	Volume1Base       float64
	Volume            float64
	OpenPoolsize      float64
	ClosePoolsize     float64
	OpenLPTokenPrice  float64
	CloseLPTokenPrice float64

	NumLiquidityEvents int64
	NumSwaps           int64
	TransactionsPeriod int64

	// cumulative indices relative to the series open
	TotalCROI             float64
	InvestmentGrowth      float64
	HodlCROI              float64
	HodlToken0CROI        float64
	HodlToken1CROI        float64
	ImpermanentLossLevel  float64
	ImpermanentLossImpact float64
	PriceChangeCROI       float64
	AccumulatedToken0Fees float64
	AccumulatedToken1Fees float64
	Token0FeesCROI        float64
	Token1FeesCROI        float64
	FeesCROI              float64

	// period returns
	TotalPeriodReturn float64
	HodlReturn        float64
	Token0PriceReturn float64
	Token1PriceReturn float64
	PriceChangeReturn float64
	Token0FeesReturn  float64
	Token1FeesReturn  float64
	YieldOnLPFees     float64
	MiscReturn        float64
}

func newLpHour(open time.Time) LpHour {
	h := LpHour{OpenTimestamp: open, CloseTimestamp: open.Add(time.Hour)}
	for _, f := range h.priceFields(0) {
		*f = math.NaN()
	}
	for _, f := range h.priceFields(1) {
		*f = math.NaN()
	}
	return h
}

// priceFields returns open, high, low, close, ath and hours since ath of one token.
func (h *LpHour) priceFields(token int) []*float64 {
	if token == 0 {
		return []*float64{&h.OpenPrice0, &h.HighPrice0, &h.LowPrice0, &h.ClosePrice0, &h.AllTimeHigh0, &h.HoursSinceATH0}
	}
	return []*float64{&h.OpenPrice1, &h.HighPrice1, &h.LowPrice1, &h.ClosePrice1, &h.AllTimeHigh1, &h.HoursSinceATH1}
}

// computeBaseMetrics derives USD values, pool sizes and LP token prices.
func computeBaseMetrics(rows []LpHour) {
	for i := range rows {
		r := &rows[i]
		r.CloseReserve0Base = r.ClosePrice0 * r.CloseReserve0
		r.CloseReserve1Base = r.ClosePrice1 * r.CloseReserve1
		r.Volume0Base = r.ClosePrice0 * r.Volume0
		r.Volume1Base = r.ClosePrice1 * r.Volume1
		r.Volume = r.Volume0Base + r.Volume1Base
		r.OpenReserve0Base = r.OpenPrice0 * r.OpenReserve0
		r.OpenReserve1Base = r.OpenPrice1 * r.OpenReserve1
		r.ClosePoolsize = r.CloseReserve0Base + r.CloseReserve1Base
		r.OpenPoolsize = r.OpenReserve0Base + r.OpenReserve1Base
		r.CloseLPTokenPrice = div(r.ClosePoolsize, r.CloseLPSupply)
		r.OpenLPTokenPrice = div(r.OpenPoolsize, r.OpenLPSupply)
	}
}

func computeActivity(rows []LpHour) {
	for i := range rows {
		r := &rows[i]
		r.NumLiquidityEvents = r.NumBurns + r.NumMints
		r.NumSwaps = r.NumSwaps0 + r.NumSwaps1
		r.TransactionsPeriod = r.NumLiquidityEvents + r.NumSwaps
		r.MiscReturn = 0
		r.OpenReserveRatio = div(r.OpenReserve0, r.OpenReserve1)
		r.CloseReserveRatio = div(r.CloseReserve0, r.CloseReserve1)
	}
}

// div treats division by zero as missing, like a float frame that maps inf to NaN.
func div(a, b float64) float64 {
	if b == 0 {
		return math.NaN()
	}
	q := a / b
	if math.IsInf(q, 0) {
		return math.NaN()
	}
	return q
}
