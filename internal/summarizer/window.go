package summarizer

import (
	"fmt"
	"time"

	"lpAnalytics/internal/model"
)

// WindowFor returns the [start, end) reporting window of a summary type
// anchored at the pool's last closed hour.
func WindowFor(summaryType string, anchor time.Time) (time.Time, time.Time, error) {
	anchor = anchor.UTC()
	hour := anchor.Truncate(time.Hour)
	day := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, time.UTC)

	switch summaryType {
	case model.SummaryHourly:
		return hour.Add(-time.Hour), hour, nil
	case model.SummaryTrailingDay:
		return hour.AddDate(0, 0, -1), hour, nil
	case model.SummaryDaily:
		return day.AddDate(0, 0, -1), day, nil
	case model.SummaryWeekly:
		return day.AddDate(0, 0, -7), day, nil
	case model.SummaryTrailingWeek:
		return hour.AddDate(0, 0, -7), hour, nil
	case model.SummaryMonthly:
		end := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, time.UTC)
		return end.AddDate(0, -1, 0), end, nil
	case model.SummaryTrailingMonth:
		return hour.AddDate(0, 0, -30), hour, nil
	case model.SummaryTrailingQuarter:
		return hour.AddDate(0, -3, 0), hour, nil
	case model.SummaryTrailingTwelveMo:
		return hour.AddDate(0, -12, 0), hour, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown summary type %q", summaryType)
	}
}
