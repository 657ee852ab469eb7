package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summarizeFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("summarize", pflag.ContinueOnError)
	fs.String("pg-dsn", "", "")
	fs.StringSlice("summary-type", nil, "")
	fs.StringSlice("pool", nil, "")
	fs.Bool("overwrite", false, "")
	fs.Duration("interval", 0, "")
	return fs
}

func TestLoadSummarizeDefaults(t *testing.T) {
	cfg, err := LoadSummarize("", summarizeFlags())
	require.NoError(t, err)
	assert.Len(t, cfg.SummaryTypes, 9)
	assert.Equal(t, int64(1), cfg.Denomination)
	assert.Equal(t, 40.0, cfg.MinPoolsize)
	assert.Equal(t, 9200.0, cfg.MaxFeeYield)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Overwrite)
}

func TestLoadSummarizeFlagsAndEnv(t *testing.T) {
	t.Setenv("LPANALYTICS_PG_DSN", "postgres://env")
	t.Setenv("LPANALYTICS_KEEP_HISTORY", "true")

	fs := summarizeFlags()
	require.NoError(t, fs.Parse([]string{"--summary-type=H,t1d", "--pool", "0xabc, 0xdef", "--overwrite", "--interval=5m"}))

	cfg, err := LoadSummarize("", fs)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env", cfg.PGDSN)
	assert.True(t, cfg.KeepHistory)
	assert.Equal(t, []string{"H", "t1d"}, cfg.SummaryTypes)
	assert.Equal(t, []string{"0xabc", "0xdef"}, cfg.Pools)
	assert.True(t, cfg.Overwrite)
	assert.Equal(t, 5*time.Minute, cfg.Interval)
}

func TestLoadPopulateConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pg-dsn: postgres://file\nworkers: 4\ntoken: \"7, 9\"\nmax-depth: 2\nmax-block-span: 3600\n"), 0o644))

	cfg, err := LoadPopulate(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres://file", cfg.PGDSN)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, []int64{7, 9}, cfg.Tokens)
	assert.Equal(t, 2, cfg.MaxDepth)
	assert.Equal(t, 200_000.0, cfg.LiquidityThreshold)
	assert.Equal(t, uint64(3600), cfg.MaxBlockSpan)
	assert.Equal(t, uint64(1_000_000), cfg.NativeCacheBlocks)

	require.NoError(t, os.WriteFile(path, []byte("token: x\n"), 0o644))
	_, err = LoadPopulate(path, nil)
	assert.Error(t, err)

	_, err = LoadPopulate(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("1709251200")
	require.NoError(t, err)
	assert.Equal(t, uint64(1709251200), ts)

	ts, err = ParseTimestamp("2024-03-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, uint64(1709251200), ts)

	ts, err = ParseTimestamp(" ")
	require.NoError(t, err)
	assert.Zero(t, ts)

	_, err = ParseTimestamp("yesterday")
	assert.Error(t, err)

	tm, err := ParseTime("2024-03-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), tm)

	tm, err = ParseTime("")
	require.NoError(t, err)
	assert.True(t, tm.IsZero())
}
