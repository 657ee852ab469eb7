package exchangerate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpAnalytics/internal/model"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func hourRow(h int, open, high, low, close float64) model.HourlyPrice {
	ts := t0.Add(time.Duration(h) * time.Hour)
	return model.HourlyPrice{
		CurrencyID:     7,
		BaseCurrency:   USD,
		OpenTimestamp:  ts,
		CloseTimestamp: ts.Add(time.Hour),
		Open:           open,
		High:           high,
		Low:            low,
		Close:          close,
		ATH:            high,
		HoursSinceATH:  int64(h),
	}
}

func TestResampleDaily(t *testing.T) {
	var rows []model.HourlyPrice
	for h := 0; h < 48; h++ {
		p := float64(h + 1)
		rows = append(rows, hourRow(h, p, p+0.5, p-0.5, p+0.25))
	}
	// no rows on day three, one row on day four
	rows = append(rows, hourRow(80, 9, 10, 8, 9.5))

	got := Resample(rows, Daily)
	require.Len(t, got, 3)

	day1 := got[0]
	assert.Equal(t, t0, day1.OpenTimestamp)
	assert.Equal(t, t0.Add(24*time.Hour), day1.CloseTimestamp)
	assert.Equal(t, 1.0, day1.Open)
	assert.Equal(t, 24.25, day1.Close)
	assert.Equal(t, 24.5, day1.High)
	assert.Equal(t, 0.5, day1.Low)
	assert.Equal(t, int64(23), day1.HoursSinceATH)
	assert.Equal(t, 24.5, day1.ATH)

	assert.Equal(t, t0.Add(80*time.Hour), got[2].OpenTimestamp)
	assert.Equal(t, 9.5, got[2].Close)
}

func TestResampleHourlyIsPassthrough(t *testing.T) {
	rows := []model.HourlyPrice{hourRow(0, 1, 1, 1, 1), hourRow(1, 2, 2, 2, 2)}
	assert.Equal(t, rows, Resample(rows, Hourly))
	assert.Empty(t, Resample(nil, Daily))
}

func TestFillZeroPrices(t *testing.T) {
	rows := []model.HourlyPrice{
		hourRow(0, 0, 0, 0, 0),
		hourRow(1, 2, 3, 1, 2.5),
		hourRow(2, 0, 0, 0, 0),
		hourRow(3, 4, 0, 3, 4),
	}
	fillZeroPrices(rows)

	assert.Zero(t, rows[0].Close, "leading zeros stay")
	assert.Equal(t, 2.5, rows[2].Close)
	assert.Equal(t, 2.0, rows[2].Open)
	assert.Equal(t, 3.0, rows[2].High)
	assert.Equal(t, 3.0, rows[3].High)
	assert.Equal(t, 3.0, rows[3].ATH)
	assert.Equal(t, int64(2), rows[2].HoursSinceATH)
}
