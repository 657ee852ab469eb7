package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// HourlySnapshot is the hourly roll-up of a pool's events, produced upstream.
type HourlySnapshot struct {
	Address        common.Address
	OpenTimestamp  time.Time
	CloseTimestamp time.Time
	CloseReserve0  *big.Int
	CloseReserve1  *big.Int
	NumSwaps0      int64
	NumSwaps1      int64
	NumMints       int64
	NumBurns       int64
	Mints0         *big.Int
	Mints1         *big.Int
	Burns0         *big.Int
	Burns1         *big.Int
	Volume0        *big.Int
	Volume1        *big.Int
	MaxBlock       uint64
	CloseLPSupply  *big.Int
}
