package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PlatformUniswapV2 identifies constant-product two-token pairs in the pool registry.
const PlatformUniswapV2 = 5

// Pool is a registered two-token pair.
type Pool struct {
	ID             int64
	Address        common.Address
	Network        int
	Name           string
	PlatformType   int
	Token0         common.Address
	Token1         common.Address
	Decimals0      *uint8
	Decimals1      *uint8
	LPDecimals     uint8
	CreatedAtBlock uint64
	CreatedAt      time.Time
	LastProcessed  *time.Time
}
