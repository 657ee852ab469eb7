package model

import "fmt"

// TokenNotTrackedError means no pricing source is registered for a token.
type TokenNotTrackedError struct {
	Token string
	Block uint64
}

func (e *TokenNotTrackedError) Error() string {
	if e.Block > 0 {
		return fmt.Sprintf("token %s is not tracked at block %d", e.Token, e.Block)
	}
	return fmt.Sprintf("token %s is not tracked", e.Token)
}

// TokenPricesNotFoundError means a price history loaded empty for the requested range.
type TokenPricesNotFoundError struct {
	Token string
}

func (e *TokenPricesNotFoundError) Error() string {
	return fmt.Sprintf("no prices found for token %s", e.Token)
}

// UnsupportedPlatformError means a pool is not a constant-product pair.
type UnsupportedPlatformError struct {
	Platform int
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform type %d", e.Platform)
}
