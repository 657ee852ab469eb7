package config

import (
	"github.com/spf13/pflag"
)

// QuoteConfig holds configuration for the price-index and quote commands.
type QuoteConfig struct {
	Database
	Retry
	Pricing
	RPCURL   string
	Network  int
	Token    string
	Pool     string
	From     uint64
	To       uint64
	Block    uint64
	Currency int64
	Live     bool
	LogLevel string
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := newViper(cfgFile, flags, withPricingDefaults(map[string]interface{}{
		"network":  1,
		"currency": int64(1),
	}))
	if err != nil {
		return QuoteConfig{}, err
	}

	return QuoteConfig{
		Database: database(v),
		Retry:    retry(v),
		Pricing:  pricing(v),
		RPCURL:   v.GetString("rpc"),
		Network:  v.GetInt("network"),
		Token:    v.GetString("token"),
		Pool:     v.GetString("pool"),
		From:     v.GetUint64("from"),
		To:       v.GetUint64("to"),
		Block:    v.GetUint64("block"),
		Currency: v.GetInt64("currency"),
		Live:     v.GetBool("live"),
		LogLevel: v.GetString("log-level"),
	}, nil
}

// MigrateConfig holds configuration for schema migrations.
type MigrateConfig struct {
	Database
	LogLevel string
}

// LoadMigrate merges config file, environment variables, and flags into MigrateConfig.
func LoadMigrate(cfgFile string, flags *pflag.FlagSet) (MigrateConfig, error) {
	v, err := newViper(cfgFile, flags, nil)
	if err != nil {
		return MigrateConfig{}, err
	}
	return MigrateConfig{
		Database: database(v),
		LogLevel: v.GetString("log-level"),
	}, nil
}
