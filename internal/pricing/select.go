package pricing

import (
	"sort"

	"lpAnalytics/internal/model"
)

// SelectCandidates picks the pools used to price a token from block onwards.
// The order of the input matters: the first eligible candidate decides whether
// the token is the network currency.
func SelectCandidates(candidates []model.PricingPoolCandidate, block uint64, token string, cfg Config) ([]model.PricingPoolCandidate, error) {
	cfg = cfg.withDefaults()

	eligible := make([]model.PricingPoolCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.CreatedAtBlock <= block {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return nil, &model.TokenNotTrackedError{Token: token, Block: block}
	}

	if eligible[0].IsNetworkCurrency {
		return eligible[:1], nil
	}

	if eligible[0].LatestPriceTimestamp == nil {
		sort.SliceStable(eligible, func(i, j int) bool {
			a, b := eligible[i], eligible[j]
			if a.IsPricingToken != b.IsPricingToken {
				return a.IsPricingToken
			}
			if !a.PoolCreatedAt.Equal(b.PoolCreatedAt) {
				return a.PoolCreatedAt.Before(b.PoolCreatedAt)
			}
			if a.WatchLevel != b.WatchLevel {
				return a.WatchLevel
			}
			if a.IsNetworkCurrency != b.IsNetworkCurrency {
				return a.IsNetworkCurrency
			}
			return false
		})
		if len(eligible) > cfg.MaxNewTokenPools {
			eligible = eligible[:cfg.MaxNewTokenPools]
		}
		return eligible, nil
	}

	eligible = preferred(eligible, func(c model.PricingPoolCandidate) bool { return c.WatchLevel })
	eligible = preferred(eligible, func(c model.PricingPoolCandidate) bool { return c.IsPricingToken })

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].LatestPoolSize > eligible[j].LatestPoolSize
	})

	var (
		cumulative float64
		below      int
	)
	for _, c := range eligible {
		cumulative += c.LatestPoolSize
		if cumulative < cfg.LiquidityThreshold {
			below++
		}
	}
	n := below + 1
	if n < cfg.MinPools {
		n = cfg.MinPools
	}
	if n > len(eligible) {
		n = len(eligible)
	}
	return eligible[:n], nil
}

// preferred narrows candidates to those matching keep, unless none match.
func preferred(candidates []model.PricingPoolCandidate, keep func(model.PricingPoolCandidate) bool) []model.PricingPoolCandidate {
	out := make([]model.PricingPoolCandidate, 0, len(candidates))
	for _, c := range candidates {
		if keep(c) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return candidates
	}
	return out
}
