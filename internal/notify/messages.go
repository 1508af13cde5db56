package notify

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// RoundOpened formats the alert for a freshly opened round.
func RoundOpened(roundID string, p domain.RoundParams) (title, message string) {
	maxBet := "none"
	if p.MaximumBet.Valid {
		maxBet = p.MaximumBet.Decimal.String()
	}
	return "Round opened",
		fmt.Sprintf("Round %s: commission %s, min bet %s, max bet %s",
			roundID, p.HouseCommission, p.MinimumBet, maxBet)
}

// BettingClosed formats the alert sent when a round stops taking bets.
func BettingClosed(stats domain.Stats) (title, message string) {
	return "Betting closed",
		fmt.Sprintf("Round %s: pool %s across %d bets", stats.RoundID, stats.TotalPool, stats.BetCount)
}

// RoundSettled formats the settlement summary with the payout table.
func RoundSettled(s domain.Settlement) (title, message string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Round %s won by %s\n", s.RoundID, s.WinningOutcome)
	fmt.Fprintf(&b, "Pool %s, house %s, paid %s", s.TotalPool, s.HouseTake, s.WinningPool.Sub(s.Breakage))
	if !s.Breakage.IsZero() {
		fmt.Fprintf(&b, ", breakage %s", s.Breakage)
	}
	for _, p := range s.PayoutList {
		fmt.Fprintf(&b, "\n%s: %s", p.BettorID, p.Amount)
	}
	return "Round settled", b.String()
}

// HouseRetained formats the alert for a winner nobody backed.
func HouseRetained(s domain.Settlement) (title, message string) {
	return "Pool retained by house",
		fmt.Sprintf("Round %s: no bets on winner %s, house keeps %s",
			s.RoundID, s.WinningOutcome, s.TotalPool)
}
