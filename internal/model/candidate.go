package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TokenRef identifies a token either by contract address and network or by currency id.
type TokenRef struct {
	Address    common.Address
	Network    int
	CurrencyID int64
}

// ByID reports whether the reference uses the internal currency id.
func (t TokenRef) ByID() bool {
	return t.CurrencyID > 0
}

func (t TokenRef) String() string {
	if t.ByID() {
		return fmt.Sprintf("currency:%d", t.CurrencyID)
	}
	return fmt.Sprintf("%d:%s", t.Network, strings.ToLower(t.Address.Hex()))
}

// PricingPoolCandidate associates a target token with a pool that can price it.
type PricingPoolCandidate struct {
	TargetTokenAddress   common.Address
	TargetTokenID        int64
	PlatformType         int
	PoolName             string
	PoolAddress          common.Address
	Network              int
	PricingTokenAddress  common.Address
	LatestPriceTimestamp *time.Time
	PoolCreatedAt        time.Time
	CreatedAtBlock       uint64
	TargetTokenIdx       int
	WatchLevel           bool
	IsUSDStable          bool
	IsPricingToken       bool
	IsNetworkCurrency    bool
	LatestPoolSize       float64
	NativePriceTable     string
	NetworkTokenSymbol   string
}

// TargetToken is a token the price populator keeps an hourly history for.
type TargetToken struct {
	Address          common.Address
	Network          int
	CurrencyID       int64
	Start            time.Time
	LatestATH        *float64
	LatestHoursSince *int64
	NativePriceTable string
}
