package pricing

const (
	DefaultMaxNewTokenPools    = 6
	DefaultLiquidityThreshold  = 200_000
	DefaultMinPools            = 3
	DefaultMaxRecursion        = 2
	DefaultMaxDepth            = 1
	DefaultMaxPrice            = 1e7
	DefaultMinPoolSizePerBlock = 0
	DefaultQuoteLookback       = 7200
	// About one week of 12s blocks.
	DefaultMaxBlockSpan = 50_400
)

// Config holds the pool selection and outlier limits of the builder.
type Config struct {
	// MaxNewTokenPools caps the pools used for a token priced for the first time.
	MaxNewTokenPools int
	// LiquidityThreshold is the cumulative pool size the selected pools must exceed.
	LiquidityThreshold float64
	MinPools           int
	// MaxRecursion bounds recursive lookups per top-level request.
	MaxRecursion int
	MaxDepth     int
	// MaxPrice drops implied prices at or above it.
	MaxPrice float64
	// MinPoolSizePerBlock drops observations whose pool size is at or below it.
	MinPoolSizePerBlock float64
	// QuoteLookback is how many blocks a quote searches back for the last price.
	QuoteLookback uint64
	// MaxBlockSpan caps the blocks of one GetPriceIndex request. Every series
	// built for a request is dense, so a request holds at most
	// (1 + MaxRecursion) token series plus one series per selected pool, each of
	// MaxBlockSpan float64s. Longer ranges are walked in chunks by the caller.
	MaxBlockSpan uint64
}

// DefaultConfig returns production limits.
func DefaultConfig() Config {
	return Config{
		MaxNewTokenPools:    DefaultMaxNewTokenPools,
		LiquidityThreshold:  DefaultLiquidityThreshold,
		MinPools:            DefaultMinPools,
		MaxRecursion:        DefaultMaxRecursion,
		MaxDepth:            DefaultMaxDepth,
		MaxPrice:            DefaultMaxPrice,
		MinPoolSizePerBlock: DefaultMinPoolSizePerBlock,
		QuoteLookback:       DefaultQuoteLookback,
		MaxBlockSpan:        DefaultMaxBlockSpan,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxNewTokenPools <= 0 {
		c.MaxNewTokenPools = d.MaxNewTokenPools
	}
	if c.LiquidityThreshold <= 0 {
		c.LiquidityThreshold = d.LiquidityThreshold
	}
	if c.MinPools <= 0 {
		c.MinPools = d.MinPools
	}
	if c.MaxRecursion < 0 {
		c.MaxRecursion = d.MaxRecursion
	}
	if c.MaxDepth < 0 {
		c.MaxDepth = d.MaxDepth
	}
	if c.MaxPrice <= 0 {
		c.MaxPrice = d.MaxPrice
	}
	if c.QuoteLookback == 0 {
		c.QuoteLookback = d.QuoteLookback
	}
	if c.MaxBlockSpan == 0 {
		c.MaxBlockSpan = d.MaxBlockSpan
	}
	if c.QuoteLookback >= c.MaxBlockSpan {
		c.QuoteLookback = c.MaxBlockSpan - 1
	}
	return c
}
