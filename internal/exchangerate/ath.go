package exchangerate

import "lpAnalytics/internal/model"

// ComputeATH fills ATH and HoursSinceATH of hourly rows ordered by open time.
// priorATH and priorHours describe the token's state before the first row; a nil
// priorATH means the token was never priced.
func ComputeATH(rows []model.HourlyPrice, priorATH *float64, priorHours *int64) {
	if len(rows) == 0 {
		return
	}
	var (
		ath   float64
		hours int64
	)
	if priorATH != nil {
		ath = *priorATH
		if priorHours != nil {
			hours = *priorHours
		}
	}
	prior := ath

	running := ath
	var count int64
	for i := range rows {
		if rows[i].High > running {
			running = rows[i].High
		}
		if i > 0 && running != rows[i-1].ATH {
			count = 0
		}
		rows[i].ATH = running
		rows[i].HoursSinceATH = count
		count++
	}

	if rows[0].ATH != prior {
		return
	}
	for i := range rows {
		if i > 0 && rows[i].HoursSinceATH == 0 {
			break
		}
		rows[i].HoursSinceATH += hours + 1
	}
}
