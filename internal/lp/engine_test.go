package lp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpAnalytics/internal/exchangerate"
	"lpAnalytics/internal/model"
	"lpAnalytics/internal/storage/memory"
)

func TestEngineSummary(t *testing.T) {
	store, cache := feeFixture(t)
	engine := NewEngine(store, cache, nil, DefaultSummaryConfig(), nil)

	rec, ok, err := engine.Summary(context.Background(), testPool(), model.SummaryTrailingDay, t0, t0.Add(3*time.Hour), exchangerate.USD)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, t0, rec.OpenTimestamp)
	assert.Equal(t, t0.Add(3*time.Hour), rec.CloseTimestamp)
	require.NotNil(t, rec.TotalPeriodReturn)
	assert.InDelta(t, 1.0, *rec.TotalPeriodReturn, 1e-9)
	assert.InDelta(t, 1.0, *rec.YieldOnLPFees, 1e-9)
	assert.InDelta(t, 0.0, *rec.HodlReturn, 1e-9)
	assert.Equal(t, int64(4), rec.TransactionsPeriod)
	assert.InDelta(t, 4040.0, *rec.ClosePoolsize, 1e-9)
	assert.InDelta(t, 4000.0, *rec.OpenPoolsize, 1e-9)
	assert.False(t, rec.Outlier)
}

func TestEngineSummaryNoData(t *testing.T) {
	store := memory.NewStore()
	engine := NewEngine(store, exchangerate.NewCache(store, nil), nil, DefaultSummaryConfig(), nil)
	_, ok, err := engine.Summary(context.Background(), testPool(), model.SummaryHourly, t0, t0.Add(time.Hour), exchangerate.USD)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngineSeriesDaily(t *testing.T) {
	store, cache := feeFixture(t)
	engine := NewEngine(store, cache, nil, DefaultSummaryConfig(), nil)
	rows, err := engine.Series(context.Background(), testPool(), t0, t0.Add(3*time.Hour), exchangerate.Daily)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 0.01, rows[0].TotalPeriodReturn, 1e-12)

	_, err = engine.Series(context.Background(), testPool(), t0, t0, exchangerate.Hourly)
	assert.Error(t, err)
}
