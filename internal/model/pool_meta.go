package model

import "math/big"

// PairState is the on-chain state of a constant-product pair at a block.
type PairState struct {
	Block       uint64
	Reserve0    *big.Int
	Reserve1    *big.Int
	TotalSupply *big.Int
}
