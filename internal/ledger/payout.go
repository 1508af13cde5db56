package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// splitPool divides winningPool among the winning bets in proportion to stake.
// Stakes are summed per bettor first, so a bettor with several winning bets
// gets one payout. Each payout is truncated to the currency unit given by
// places; the remainder is returned as breakage and belongs to the house.
// Breakage is never negative, so the payouts never exceed the pool.
func splitPool(roundID string, winners []domain.Bet, winningPool, winningStake decimal.Decimal, places int32) ([]domain.Payout, decimal.Decimal) {
	order := make([]string, 0, len(winners))
	stakes := make(map[string]decimal.Decimal, len(winners))
	for _, b := range winners {
		if _, seen := stakes[b.BettorID]; !seen {
			order = append(order, b.BettorID)
			stakes[b.BettorID] = decimal.Zero
		}
		stakes[b.BettorID] = stakes[b.BettorID].Add(b.Amount)
	}

	payouts := make([]domain.Payout, 0, len(order))
	paid := decimal.Zero
	for _, bettor := range order {
		stake := stakes[bettor]
		amount, _ := stake.Mul(winningPool).QuoRem(winningStake, places)
		payouts = append(payouts, domain.Payout{
			RoundID:  roundID,
			BettorID: bettor,
			Stake:    stake,
			Amount:   amount,
		})
		paid = paid.Add(amount)
	}
	return payouts, winningPool.Sub(paid)
}
