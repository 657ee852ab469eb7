package exchangerate

import (
	"lpAnalytics/internal/model"
)

// Resample folds hourly prices into freq buckets. Rows must be ordered by open
// timestamp. Buckets without rows are omitted.
func Resample(rows []model.HourlyPrice, freq Frequency) []model.HourlyPrice {
	if freq.IsHourly() || len(rows) == 0 {
		return rows
	}

	out := make([]model.HourlyPrice, 0, len(rows))
	var (
		cur    model.HourlyPrice
		bucket = freq.Bucket(rows[0].OpenTimestamp)
	)
	cur = rows[0]
	for _, row := range rows[1:] {
		b := freq.Bucket(row.OpenTimestamp)
		if !b.Equal(bucket) {
			out = append(out, cur)
			cur = row
			bucket = b
			continue
		}
		cur.CloseTimestamp = row.CloseTimestamp
		cur.Close = row.Close
		cur.ATH = row.ATH
		cur.HoursSinceATH = row.HoursSinceATH
		if row.High > cur.High {
			cur.High = row.High
		}
		if row.Low < cur.Low {
			cur.Low = row.Low
		}
	}
	return append(out, cur)
}

// fillZeroPrices carries the previous non-zero value over zero prices, field by field.
func fillZeroPrices(rows []model.HourlyPrice) {
	fields := []func(*model.HourlyPrice) *float64{
		func(r *model.HourlyPrice) *float64 { return &r.Open },
		func(r *model.HourlyPrice) *float64 { return &r.High },
		func(r *model.HourlyPrice) *float64 { return &r.Low },
		func(r *model.HourlyPrice) *float64 { return &r.Close },
		func(r *model.HourlyPrice) *float64 { return &r.ATH },
	}
	for _, field := range fields {
		var last float64
		for i := range rows {
			v := field(&rows[i])
			if *v == 0 {
				*v = last
				continue
			}
			last = *v
		}
	}
}
