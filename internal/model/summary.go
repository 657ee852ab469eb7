package model

import "time"

// SummaryType codes.
const (
	SummaryHourly           = "H"
	SummaryDaily            = "D"
	SummaryWeekly           = "W"
	SummaryTrailingDay      = "t1d"
	SummaryTrailingWeek     = "t7d"
	SummaryTrailingMonth    = "t30"
	SummaryMonthly          = "M"
	SummaryTrailingQuarter  = "tq"
	SummaryTrailingTwelveMo = "t12"
)

// SummaryType is a reporting frequency in the summary catalog.
type SummaryType struct {
	Code        string
	Description string
	Frequency   string
}

// SummaryTypes is the fixed catalog, in display order.
var SummaryTypes = []SummaryType{
	{Code: SummaryHourly, Description: "Hourly", Frequency: "H"},
	{Code: SummaryDaily, Description: "Daily", Frequency: "D"},
	{Code: SummaryWeekly, Description: "Weekly", Frequency: "W"},
	{Code: SummaryTrailingDay, Description: "Trailing 1 day", Frequency: "H"},
	{Code: SummaryTrailingWeek, Description: "Trailing 7 days", Frequency: "D"},
	{Code: SummaryTrailingMonth, Description: "Trailing 30 days", Frequency: "D"},
	{Code: SummaryMonthly, Description: "Monthly", Frequency: "M"},
	{Code: SummaryTrailingQuarter, Description: "Trailing quarter", Frequency: "W"},
	{Code: SummaryTrailingTwelveMo, Description: "Trailing 12 months", Frequency: "M"},
}

// LookupSummaryType returns the catalog entry for code.
func LookupSummaryType(code string) (SummaryType, bool) {
	for _, st := range SummaryTypes {
		if st.Code == code {
			return st, true
		}
	}
	return SummaryType{}, false
}

// LpSummaryRecord is one computed summary row. Nil pointers are stored as NULL.
type LpSummaryRecord struct {
	PoolID                  int64
	SummaryType             string
	OpenTimestamp           time.Time
	CloseTimestamp          time.Time
	TotalPeriodReturn       *float64
	YieldOnLPFees           *float64
	PriceChangeReturn       *float64
	HodlReturn              *float64
	FeesAPY                 *float64
	TotalAPY                *float64
	ImpermanentLossLevel    *float64
	ImpermanentLossImpact   *float64
	Volume                  *float64
	TransactionsPeriod      int64
	Poolsize                *float64
	OpenPoolsize            *float64
	ClosePoolsize           *float64
	OpenReserve0            *float64
	OpenReserve1            *float64
	CloseReserve0           *float64
	CloseReserve1           *float64
	OpenPrice0              *float64
	OpenPrice1              *float64
	HighPrice0              *float64
	HighPrice1              *float64
	LowPrice0               *float64
	LowPrice1               *float64
	ClosePrice0             *float64
	ClosePrice1             *float64
	Outlier                 bool
	Notes                   []string
	ReplicationInstructions []byte
}
