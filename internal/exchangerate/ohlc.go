package exchangerate

import (
	"time"

	"lpAnalytics/internal/model"
)

// HourlyOHLC summarizes a block price series per hour. Hours without a priced
// block are dropped.
func HourlyOHLC(series model.PriceSeries, hours []model.HourBlocks, currencyID, denomination int64) []model.HourlyPrice {
	out := make([]model.HourlyPrice, 0, len(hours))
	for _, h := range hours {
		var (
			row   model.HourlyPrice
			found bool
		)
		for block := h.StartBlock; block <= h.EndBlock; block++ {
			p, ok := series.At(block)
			if !ok {
				continue
			}
			if !found {
				row = model.HourlyPrice{Open: p, High: p, Low: p}
				found = true
			}
			if p > row.High {
				row.High = p
			}
			if p < row.Low {
				row.Low = p
			}
			row.Close = p
		}
		if !found {
			continue
		}
		row.CurrencyID = currencyID
		row.BaseCurrency = denomination
		row.OpenTimestamp = h.Hour.UTC()
		row.CloseTimestamp = row.OpenTimestamp.Add(time.Hour)
		out = append(out, row)
	}
	return out
}
