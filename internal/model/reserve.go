package model

import "math/big"

// SyncEvent is a raw reserve update emitted by a pair contract.
type SyncEvent struct {
	BlockNumber uint64
	LogIndex    uint
	Reserve0    *big.Int
	Reserve1    *big.Int
}

// ReserveObservation holds reserves normalized by token decimals.
type ReserveObservation struct {
	BlockNumber uint64
	Reserve0    float64
	Reserve1    float64
}
