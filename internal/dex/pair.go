package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"lpAnalytics/internal/model"
)

// FetchPairState reads reserves and LP supply of a pair at block. Block 0 means latest.
func FetchPairState(ctx context.Context, caller Caller, pair common.Address, block uint64) (model.PairState, error) {
	state := model.PairState{Block: block}
	if caller == nil {
		return state, fmt.Errorf("chain client is nil")
	}
	parsed, err := PairABI()
	if err != nil {
		return state, fmt.Errorf("parse pair abi: %w", err)
	}

	var blockPtr *big.Int
	if block > 0 {
		blockPtr = new(big.Int).SetUint64(block)
	}

	values, err := callMethod(ctx, caller, pair, parsed, "getReserves", blockPtr)
	if err != nil {
		return state, err
	}
	if len(values) < 2 {
		return state, fmt.Errorf("getReserves returned %d values", len(values))
	}
	if state.Reserve0, err = asBigInt(values[0]); err != nil {
		return state, fmt.Errorf("reserve0: %w", err)
	}
	if state.Reserve1, err = asBigInt(values[1]); err != nil {
		return state, fmt.Errorf("reserve1: %w", err)
	}

	values, err = callMethod(ctx, caller, pair, parsed, "totalSupply", blockPtr)
	if err != nil {
		return state, err
	}
	if state.TotalSupply, err = asBigInt(values[0]); err != nil {
		return state, fmt.Errorf("total supply: %w", err)
	}
	return state, nil
}
