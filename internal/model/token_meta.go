package model

import "github.com/ethereum/go-ethereum/common"

// TokenMeta is what the token contract reports about itself. Symbol may be empty.
type TokenMeta struct {
	Address  common.Address
	Decimals uint8
	Symbol   string
}
