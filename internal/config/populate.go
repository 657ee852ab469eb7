package config

import (
	"github.com/spf13/pflag"
)

// PopulateConfig holds configuration for the hourly price populator.
type PopulateConfig struct {
	Database
	Retry
	Pricing
	RPCURL        string
	Workers       int
	RecomputeFrom string
	Tokens        []int64
	MetricsAddr   string
	LogLevel      string
}

// LoadPopulate merges config file, environment variables, and flags into PopulateConfig.
func LoadPopulate(cfgFile string, flags *pflag.FlagSet) (PopulateConfig, error) {
	v, err := newViper(cfgFile, flags, withPricingDefaults(map[string]interface{}{
		"workers": 15,
	}))
	if err != nil {
		return PopulateConfig{}, err
	}

	tokens, err := getInt64Slice(v, "token")
	if err != nil {
		return PopulateConfig{}, err
	}

	return PopulateConfig{
		Database:      database(v),
		Retry:         retry(v),
		Pricing:       pricing(v),
		RPCURL:        v.GetString("rpc"),
		Workers:       v.GetInt("workers"),
		RecomputeFrom: v.GetString("recompute-from"),
		Tokens:        tokens,
		MetricsAddr:   v.GetString("metrics-addr"),
		LogLevel:      v.GetString("log-level"),
	}, nil
}
