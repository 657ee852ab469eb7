package lp

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"lpAnalytics/internal/model"
)

const replicationTimeLayout = "2006-01-02 15:04:05"

// SummaryConfig holds the QA thresholds applied to every summary.
type SummaryConfig struct {
	MinPoolsize float64
	MaxPoolsize float64
	MinFeeYield float64
	MaxFeeYield float64
}

// DefaultSummaryConfig returns the production thresholds.
func DefaultSummaryConfig() SummaryConfig {
	return SummaryConfig{
		MinPoolsize: 40,
		MaxPoolsize: 1e10,
		MinFeeYield: 0,
		MaxFeeYield: 9200,
	}
}

type replication struct {
	StartDate             string `json:"start_date"`
	EndDate               string `json:"end_date"`
	CalculationCurrencyID int64  `json:"calculation_currency_id"`
	DataFrequency         string `json:"data_frequency"`
}

// Summarize turns one aggregated window row into a summary record. Returns and
// APYs are expressed in percent and every float is rounded with RoundFloat.
func Summarize(cfg SummaryConfig, pool model.Pool, summaryType string, row LpHour, start, end time.Time, denomination int64) model.LpSummaryRecord {
	days := end.Sub(start).Hours() / 24
	totalAPY := annualize(row.TotalPeriodReturn, days)
	feesAPY := annualize(row.YieldOnLPFees, days)

	rec := model.LpSummaryRecord{
		PoolID:                pool.ID,
		SummaryType:           summaryType,
		OpenTimestamp:         start.UTC(),
		CloseTimestamp:        end.UTC(),
		TotalPeriodReturn:     percent(row.TotalPeriodReturn),
		YieldOnLPFees:         percent(row.YieldOnLPFees),
		PriceChangeReturn:     percent(row.PriceChangeReturn),
		HodlReturn:            percent(row.HodlReturn),
		FeesAPY:               percent(feesAPY),
		TotalAPY:              percent(totalAPY),
		ImpermanentLossLevel:  percent(row.ImpermanentLossLevel),
		ImpermanentLossImpact: percent(row.ImpermanentLossImpact),
		Volume:                rounded(row.Volume),
		TransactionsPeriod:    row.TransactionsPeriod,
		Poolsize:              rounded(row.ClosePoolsize),
		OpenPoolsize:          rounded(row.OpenPoolsize),
		ClosePoolsize:         rounded(row.ClosePoolsize),
		OpenReserve0:          rounded(row.OpenReserve0),
		OpenReserve1:          rounded(row.OpenReserve1),
		CloseReserve0:         rounded(row.CloseReserve0),
		CloseReserve1:         rounded(row.CloseReserve1),
		OpenPrice0:            rounded(row.OpenPrice0),
		OpenPrice1:            rounded(row.OpenPrice1),
		HighPrice0:            rounded(row.HighPrice0),
		HighPrice1:            rounded(row.HighPrice1),
		LowPrice0:             rounded(row.LowPrice0),
		LowPrice1:             rounded(row.LowPrice1),
		ClosePrice0:           rounded(row.ClosePrice0),
		ClosePrice1:           rounded(row.ClosePrice1),
	}

	rec.Notes = qualityNotes(cfg, rec)
	if len(rec.Notes) > 0 {
		rec.Outlier = true
		payload, err := json.Marshal(replication{
			StartDate:             start.UTC().Format(replicationTimeLayout),
			EndDate:               end.UTC().Format(replicationTimeLayout),
			CalculationCurrencyID: denomination,
			DataFrequency:         summaryType,
		})
		if err == nil {
			rec.ReplicationInstructions = payload
		}
	}
	return rec
}

func qualityNotes(cfg SummaryConfig, rec model.LpSummaryRecord) []string {
	var notes []string
	if rec.Poolsize != nil {
		size := *rec.Poolsize
		if size < cfg.MinPoolsize {
			notes = append(notes, fmt.Sprintf("Poolsize too small: %s", formatNote(size)))
		}
		if size > cfg.MaxPoolsize {
			notes = append(notes, fmt.Sprintf("Poolsize too big: %s", formatNote(size)))
		}
	}
	if rec.YieldOnLPFees != nil {
		y := *rec.YieldOnLPFees
		if y < cfg.MinFeeYield || y > cfg.MaxFeeYield {
			notes = append(notes, fmt.Sprintf("yield_on_lp_fees is an outlier: %s", formatNote(y)))
		}
	}
	return notes
}

func formatNote(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func annualize(ret, days float64) float64 {
	if days <= 0 {
		return math.NaN()
	}
	return math.Pow(1+ret, 365/days) - 1
}

func percent(v float64) *float64 {
	return rounded(v * 100)
}

func rounded(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	r := RoundFloat(v)
	return &r
}

// RoundFloat keeps three decimals past the first digit above the unit scale:
// 1234.56789 becomes 1234.568 and 0.000123456 becomes 0.0001235. Values too small
// to reach a non-zero digit within 30 places are returned as is.
func RoundFloat(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	for depth := 0; depth <= 30; depth++ {
		if math.Abs(x*math.Pow10(depth)) > 1 {
			return roundTo(x, 3+depth)
		}
	}
	return x
}

func roundTo(x float64, places int) float64 {
	scale := math.Pow10(places)
	return math.RoundToEven(x*scale) / scale
}
