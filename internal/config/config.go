// Package config loads command configuration from flags, LPANALYTICS_*
// environment variables and an optional config file.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "LPANALYTICS"

// Database holds the Postgres connection settings shared by every command.
type Database struct {
	PGDSN    string
	MaxConns int32
}

// Retry controls store call retries.
type Retry struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

// Pricing holds the price index limits.
type Pricing struct {
	MaxNewTokenPools    int
	LiquidityThreshold  float64
	MinPools            int
	MaxRecursion        int
	MaxDepth            int
	MaxPrice            float64
	MinPoolSizePerBlock float64
	QuoteLookback       uint64
	ReserveBatchSize    uint64
	MaxBlockSpan        uint64
	NativeCacheBlocks   uint64
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	v.SetDefault("max-conns", 8)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

var pricingDefaults = map[string]interface{}{
	"max-new-token-pools":     6,
	"liquidity-threshold":     200_000.0,
	"min-pools":               3,
	"max-recursion":           2,
	"max-depth":               1,
	"max-price":               1e7,
	"min-pool-size-per-block": 0.0,
	"quote-lookback":          uint64(7200),
	"reserve-batch-size":      uint64(250_000),
	"max-block-span":          uint64(50_400),
	"native-cache-blocks":     uint64(1_000_000),
}

func withPricingDefaults(extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(pricingDefaults)+len(extra))
	for k, v := range pricingDefaults {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func database(v *viper.Viper) Database {
	return Database{
		PGDSN:    v.GetString("pg-dsn"),
		MaxConns: v.GetInt32("max-conns"),
	}
}

func retry(v *viper.Viper) Retry {
	return Retry{
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
	}
}

func pricing(v *viper.Viper) Pricing {
	return Pricing{
		MaxNewTokenPools:    v.GetInt("max-new-token-pools"),
		LiquidityThreshold:  v.GetFloat64("liquidity-threshold"),
		MinPools:            v.GetInt("min-pools"),
		MaxRecursion:        v.GetInt("max-recursion"),
		MaxDepth:            v.GetInt("max-depth"),
		MaxPrice:            v.GetFloat64("max-price"),
		MinPoolSizePerBlock: v.GetFloat64("min-pool-size-per-block"),
		QuoteLookback:       v.GetUint64("quote-lookback"),
		ReserveBatchSize:    v.GetUint64("reserve-batch-size"),
		MaxBlockSpan:        v.GetUint64("max-block-span"),
		NativeCacheBlocks:   v.GetUint64("native-cache-blocks"),
	}
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func getInt64Slice(v *viper.Viper, key string) ([]int64, error) {
	items := getStringSlice(v, key)
	out := make([]int64, 0, len(items))
	for _, item := range items {
		id, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid id %q", key, item)
		}
		out = append(out, id)
	}
	return out, nil
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	if strings.TrimSpace(input) == "" {
		return 0, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseUint(input, 10, 64)
		if err != nil {
			return 0, err
		}
		return val, nil
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return uint64(tm.Unix()), nil
}

// ParseTime is ParseTimestamp returning a UTC time. Empty input yields the zero time.
func ParseTime(input string) (time.Time, error) {
	ts, err := ParseTimestamp(input)
	if err != nil || ts == 0 {
		return time.Time{}, err
	}
	return time.Unix(int64(ts), 0).UTC(), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
