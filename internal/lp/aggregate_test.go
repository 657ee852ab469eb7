package lp

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpAnalytics/internal/exchangerate"
)

func syntheticSeries(hours int) []LpHour {
	rows := make([]LpHour, hours)
	for h := range rows {
		r := newLpHour(t0.Add(time.Duration(h) * time.Hour))
		r.NumSwaps0 = 1
		r.NumSwaps = 1
		r.TransactionsPeriod = 1
		r.Volume0 = 2
		r.OpenReserve0, r.OpenReserve1 = float64(100+h), 50
		r.CloseReserve0, r.CloseReserve1 = float64(101+h), 50
		r.OpenLPSupply, r.CloseLPSupply = 10, 10
		r.OpenPrice0, r.ClosePrice0 = float64(h+1), float64(h+2)
		r.HighPrice0, r.LowPrice0 = float64(h+3), float64(h)
		r.OpenPrice1, r.ClosePrice1, r.HighPrice1, r.LowPrice1 = 1, 1, 1, 1
		r.TotalCROI = float64(h)
		r.TotalPeriodReturn = 0.01
		r.YieldOnLPFees = math.NaN()
		rows[h] = r
	}
	computeBaseMetrics(rows)
	return rows
}

func TestAggregateHourlyPassthrough(t *testing.T) {
	rows := syntheticSeries(5)
	out := Aggregate(rows, exchangerate.Hourly)
	require.Len(t, out, 5)
	assert.Same(t, &rows[0], &out[0])
}

func TestAggregateDaily(t *testing.T) {
	rows := syntheticSeries(48)
	daily := Aggregate(rows, exchangerate.Daily)
	require.Len(t, daily, 2)

	d := daily[0]
	assert.Equal(t, t0, d.OpenTimestamp)
	assert.Equal(t, t0.Add(24*time.Hour), d.CloseTimestamp)
	assert.Equal(t, int64(24), d.NumSwaps0)
	assert.Equal(t, int64(24), d.TransactionsPeriod)
	assert.Equal(t, 48.0, d.Volume0)
	assert.Equal(t, 100.0, d.OpenReserve0)
	assert.Equal(t, 124.0, d.CloseReserve0)
	assert.Equal(t, 1.0, d.OpenPrice0)
	assert.Equal(t, 25.0, d.ClosePrice0)
	assert.Equal(t, 26.0, d.HighPrice0)
	assert.Equal(t, 0.0, d.LowPrice0)
	assert.Equal(t, 23.0, d.TotalCROI)
	assert.InDelta(t, math.Pow(1.01, 24)-1, d.TotalPeriodReturn, 1e-12)
	assert.True(t, math.IsNaN(d.YieldOnLPFees))

	// base metrics follow the aggregated prices and reserves
	assert.InDelta(t, 25.0*124+50, d.ClosePoolsize, 1e-9)
	assert.InDelta(t, 25.0*48, d.Volume0Base, 1e-9)
	assert.InDelta(t, (25.0*124+50)/10, d.CloseLPTokenPrice, 1e-9)
}

func TestAggregateFirstAndLastMatchHourly(t *testing.T) {
	rows := syntheticSeries(24 * 9)
	weekly := Aggregate(rows, exchangerate.Weekly)
	require.NotEmpty(t, weekly)
	assert.Equal(t, rows[0].OpenPrice0, weekly[0].OpenPrice0)
	assert.Equal(t, rows[len(rows)-1].ClosePrice0, weekly[len(weekly)-1].ClosePrice0)
	assert.Equal(t, rows[len(rows)-1].CloseTimestamp, weekly[len(weekly)-1].CloseTimestamp)

	var swaps int64
	for _, w := range weekly {
		swaps += w.NumSwaps0
	}
	assert.Equal(t, int64(len(rows)), swaps)
}

func TestWindowFoldsEverything(t *testing.T) {
	rows := syntheticSeries(30)
	w, ok := Window(rows)
	require.True(t, ok)
	assert.Equal(t, t0, w.OpenTimestamp)
	assert.Equal(t, t0.Add(30*time.Hour), w.CloseTimestamp)
	assert.Equal(t, int64(30), w.TransactionsPeriod)

	_, ok = Window(nil)
	assert.False(t, ok)
}

func TestAggregateReturnCompounds(t *testing.T) {
	assert.InDelta(t, -0.01, AggregateReturn([]float64{0.1, -0.1, math.NaN()}), 1e-12)
	assert.InDelta(t, 0.0, AggregateReturn([]float64{0, 0}), 1e-15)
	assert.True(t, math.IsNaN(AggregateReturn([]float64{math.NaN()})))
	assert.True(t, math.IsNaN(AggregateReturn(nil)))

	// compounding split series equals compounding the whole
	returns := []float64{0.02, -0.03, 0.05, 0.01, -0.02, 0.04}
	whole := AggregateReturn(returns)
	parts := AggregateReturn([]float64{AggregateReturn(returns[:2]), AggregateReturn(returns[2:])})
	assert.InDelta(t, whole, parts, 1e-12)
}

func TestAggregateIsIdempotentOnBuckets(t *testing.T) {
	rows := syntheticSeries(72)
	once := Aggregate(rows, exchangerate.Daily)
	twice := Aggregate(once, exchangerate.Daily)
	require.Len(t, twice, len(once))
	for i := range once {
		assert.Equal(t, once[i].OpenTimestamp, twice[i].OpenTimestamp)
		assert.Equal(t, once[i].CloseReserve0, twice[i].CloseReserve0)
		assert.InDelta(t, once[i].TotalPeriodReturn, twice[i].TotalPeriodReturn, 1e-12)
	}
}
