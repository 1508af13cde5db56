package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// oddsPlaces is the precision odds quotes are rounded to.
const oddsPlaces int32 = 8

// quote derives decimal odds from an outcome's stake and the total pool.
// With implied probability p = stake/pool the odds are 1/p - 1, computed here
// as pool/stake - 1 to avoid rounding p first. No stake means unbounded odds.
func quote(stake, pool decimal.Decimal) domain.Odds {
	if !stake.IsPositive() || !pool.IsPositive() {
		return domain.UnboundedOdds()
	}
	return domain.NewOdds(pool.DivRound(stake, oddsPlaces).Sub(decimal.NewFromInt(1)))
}

// ImpliedProbability returns stake/pool, or zero when the pool is empty.
func ImpliedProbability(stake, pool decimal.Decimal) decimal.Decimal {
	if !pool.IsPositive() {
		return decimal.Zero
	}
	return stake.DivRound(pool, oddsPlaces)
}
