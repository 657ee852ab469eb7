package exchangerate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"lpAnalytics/internal/model"
)

func highs(values ...float64) []model.HourlyPrice {
	rows := make([]model.HourlyPrice, len(values))
	for i, v := range values {
		rows[i].High = v
	}
	return rows
}

func athOf(rows []model.HourlyPrice) ([]float64, []int64) {
	ath := make([]float64, len(rows))
	hours := make([]int64, len(rows))
	for i, r := range rows {
		ath[i] = r.ATH
		hours[i] = r.HoursSinceATH
	}
	return ath, hours
}

func TestComputeATHFirstPricing(t *testing.T) {
	rows := highs(1, 3, 2, 2, 5, 4)
	ComputeATH(rows, nil, nil)

	ath, hours := athOf(rows)
	assert.Equal(t, []float64{1, 3, 3, 3, 5, 5}, ath)
	assert.Equal(t, []int64{0, 0, 1, 2, 0, 1}, hours)
}

func TestComputeATHCarriesPriorHoursUntilNewHigh(t *testing.T) {
	prior, priorHours := 10.0, int64(5)
	rows := highs(4, 6, 12, 11)
	ComputeATH(rows, &prior, &priorHours)

	ath, hours := athOf(rows)
	assert.Equal(t, []float64{10, 10, 12, 12}, ath)
	assert.Equal(t, []int64{6, 7, 0, 1}, hours)
}

func TestComputeATHNoNewHigh(t *testing.T) {
	prior, priorHours := 10.0, int64(0)
	rows := highs(1, 2, 3)
	ComputeATH(rows, &prior, &priorHours)

	_, hours := athOf(rows)
	assert.Equal(t, []int64{1, 2, 3}, hours)
}

func TestComputeATHNewHighOnFirstRow(t *testing.T) {
	prior, priorHours := 10.0, int64(40)
	rows := highs(11, 9)
	ComputeATH(rows, &prior, &priorHours)

	ath, hours := athOf(rows)
	assert.Equal(t, []float64{11, 11}, ath)
	assert.Equal(t, []int64{0, 1}, hours)
}
