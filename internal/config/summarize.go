package config

import (
	"time"

	"github.com/spf13/pflag"
)

// SummarizeConfig holds configuration for the LP summarizer.
type SummarizeConfig struct {
	Database
	Retry
	RPCURL       string
	SummaryTypes []string
	Pools        []string
	Denomination int64
	Overwrite    bool
	KeepHistory  bool
	Refresh      bool
	// Interval reruns the summarizer on new hourly data when > 0.
	Interval    time.Duration
	StateFile   string
	StateName   string
	MinPoolsize float64
	MaxPoolsize float64
	MinFeeYield float64
	MaxFeeYield float64
	MetricsAddr string
	LogLevel    string
}

// LoadSummarize merges config file, environment variables, and flags into SummarizeConfig.
func LoadSummarize(cfgFile string, flags *pflag.FlagSet) (SummarizeConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"summary-type":  []string{"H", "D", "W", "t1d", "t7d", "t30", "M", "tq", "t12"},
		"denomination":  int64(1),
		"state-name":    "lp_summarizer",
		"min-poolsize":  40.0,
		"max-poolsize":  1e10,
		"min-fee-yield": 0.0,
		"max-fee-yield": 9200.0,
	})
	if err != nil {
		return SummarizeConfig{}, err
	}

	return SummarizeConfig{
		Database:     database(v),
		Retry:        retry(v),
		RPCURL:       v.GetString("rpc"),
		SummaryTypes: getStringSlice(v, "summary-type"),
		Pools:        getStringSlice(v, "pool"),
		Denomination: v.GetInt64("denomination"),
		Overwrite:    v.GetBool("overwrite"),
		KeepHistory:  v.GetBool("keep-history"),
		Refresh:      v.GetBool("refresh"),
		Interval:     v.GetDuration("interval"),
		StateFile:    v.GetString("state-file"),
		StateName:    v.GetString("state-name"),
		MinPoolsize:  v.GetFloat64("min-poolsize"),
		MaxPoolsize:  v.GetFloat64("max-poolsize"),
		MinFeeYield:  v.GetFloat64("min-fee-yield"),
		MaxFeeYield:  v.GetFloat64("max-fee-yield"),
		MetricsAddr:  v.GetString("metrics-addr"),
		LogLevel:     v.GetString("log-level"),
	}, nil
}
