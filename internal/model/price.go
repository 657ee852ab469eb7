package model

import (
	"math"
	"time"
)

// BlockPrice is a USD price at a block.
type BlockPrice struct {
	BlockNumber uint64
	Price       float64
}

// PriceSeries is a dense per-block USD price series. NaN marks a block without a price.
type PriceSeries struct {
	StartBlock uint64
	Prices     []float64
}

// NewPriceSeries allocates a series covering [start, end] with every block unpriced.
func NewPriceSeries(start, end uint64) PriceSeries {
	if end < start {
		return PriceSeries{StartBlock: start}
	}
	prices := make([]float64, end-start+1)
	for i := range prices {
		prices[i] = math.NaN()
	}
	return PriceSeries{StartBlock: start, Prices: prices}
}

// Len returns the number of blocks covered.
func (s PriceSeries) Len() int {
	return len(s.Prices)
}

// EndBlock returns the last covered block.
func (s PriceSeries) EndBlock() uint64 {
	if len(s.Prices) == 0 {
		return s.StartBlock
	}
	return s.StartBlock + uint64(len(s.Prices)) - 1
}

// At returns the price at block and whether it is present.
func (s PriceSeries) At(block uint64) (float64, bool) {
	if block < s.StartBlock || block > s.EndBlock() || len(s.Prices) == 0 {
		return 0, false
	}
	p := s.Prices[block-s.StartBlock]
	if math.IsNaN(p) {
		return 0, false
	}
	return p, true
}

// Set stores a price for block. Blocks outside the series are ignored.
func (s PriceSeries) Set(block uint64, price float64) {
	if block < s.StartBlock || len(s.Prices) == 0 || block > s.EndBlock() {
		return
	}
	s.Prices[block-s.StartBlock] = price
}

// Valid counts priced blocks.
func (s PriceSeries) Valid() int {
	n := 0
	for _, p := range s.Prices {
		if !math.IsNaN(p) {
			n++
		}
	}
	return n
}

// Empty reports whether no block carries a price.
func (s PriceSeries) Empty() bool {
	return s.Valid() == 0
}

// Slice returns the sub-series covering [from, to], clamped to the series bounds.
func (s PriceSeries) Slice(from, to uint64) PriceSeries {
	if len(s.Prices) == 0 {
		return PriceSeries{StartBlock: from}
	}
	if from < s.StartBlock {
		from = s.StartBlock
	}
	if to > s.EndBlock() {
		to = s.EndBlock()
	}
	if to < from {
		return PriceSeries{StartBlock: from}
	}
	return PriceSeries{
		StartBlock: from,
		Prices:     s.Prices[from-s.StartBlock : to-s.StartBlock+1],
	}
}

// Last returns the newest priced block at or before block.
func (s PriceSeries) Last(block uint64) (float64, uint64, bool) {
	if len(s.Prices) == 0 || block < s.StartBlock {
		return 0, 0, false
	}
	if block > s.EndBlock() {
		block = s.EndBlock()
	}
	for b := block; ; b-- {
		if p, ok := s.At(b); ok {
			return p, b, true
		}
		if b == s.StartBlock {
			break
		}
	}
	return 0, 0, false
}

// HourBlocks maps an hour bucket to its inclusive block range.
type HourBlocks struct {
	Hour       time.Time
	StartBlock uint64
	EndBlock   uint64
}

// HourlyPrice is one row of a token's hourly price history.
type HourlyPrice struct {
	CurrencyID     int64
	BaseCurrency   int64
	OpenTimestamp  time.Time
	CloseTimestamp time.Time
	Open           float64
	High           float64
	Low            float64
	Close          float64
	ATH            float64
	HoursSinceATH  int64
}
