package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoundStatus represents the lifecycle state of a betting round.
type RoundStatus string

const (
	RoundStatusOpen    RoundStatus = "open"
	RoundStatusClosed  RoundStatus = "closed"
	RoundStatusSettled RoundStatus = "settled"
)

// Bet is an accepted wager. It is never modified after acceptance.
type Bet struct {
	ID        string          `json:"id"`
	RoundID   string          `json:"round_id"`
	BettorID  string          `json:"bettor_id"`
	OutcomeID string          `json:"outcome_id"`
	Amount    decimal.Decimal `json:"amount"`
	Odds      Odds            `json:"odds_at_acceptance"`
	PlacedAt  time.Time       `json:"placed_at"`
}

// OutcomeTotal is the cumulative stake on one outcome.
type OutcomeTotal struct {
	OutcomeID string          `json:"outcome_id"`
	Total     decimal.Decimal `json:"total"`
}

// OutcomeOdds pairs an outcome with its current decimal odds.
type OutcomeOdds struct {
	OutcomeID string `json:"outcome_id"`
	Odds      Odds   `json:"odds"`
}

// RoundParams are the fixed parameters of a round.
type RoundParams struct {
	HouseCommission decimal.Decimal     `json:"house_commission"`
	MinimumBet      decimal.Decimal     `json:"minimum_bet"`
	MaximumBet      decimal.NullDecimal `json:"maximum_bet"` // Valid=false means unbounded
}

// Stats is a point-in-time snapshot of a round. All slices are copies.
type Stats struct {
	RoundID         string              `json:"round_id"`
	Status          RoundStatus         `json:"status"`
	TotalPool       decimal.Decimal     `json:"total_pool"`
	BetCount        int                 `json:"bet_count"`
	Odds            []OutcomeOdds       `json:"odds"`
	OutcomeTotals   []OutcomeTotal      `json:"outcome_totals"`
	HouseCommission decimal.Decimal     `json:"house_commission"`
	MinimumBet      decimal.Decimal     `json:"minimum_bet"`
	MaximumBet      decimal.NullDecimal `json:"maximum_bet"`
	WinningOutcome  string              `json:"winning_outcome,omitempty"`
}

// Round is the journaled record of a betting round.
type Round struct {
	ID             string          `json:"id"`
	Status         RoundStatus     `json:"status"`
	Params         RoundParams     `json:"params"`
	Outcomes       []OutcomeTotal  `json:"outcomes"`
	TotalPool      decimal.Decimal `json:"total_pool"`
	BetCount       int             `json:"bet_count"`
	WinningOutcome string          `json:"winning_outcome,omitempty"`
	HouseTake      decimal.Decimal `json:"house_take"`
	Breakage       decimal.Decimal `json:"breakage"`
	ArchivePath    string          `json:"archive_path,omitempty"`
	OpenedAt       time.Time       `json:"opened_at"`
	ClosedAt       *time.Time      `json:"closed_at,omitempty"`
	SettledAt      *time.Time      `json:"settled_at,omitempty"`
}

// Payout is the amount owed to one winning bettor.
type Payout struct {
	RoundID  string          `json:"round_id"`
	BettorID string          `json:"bettor_id"`
	Stake    decimal.Decimal `json:"stake"`
	Amount   decimal.Decimal `json:"amount"`
}

// Settlement is the result of paying out a closed round. The sum of the
// payouts, HouseTake and Breakage always equals TotalPool; when nobody backed
// the winner HouseTake is the whole pool.
type Settlement struct {
	RoundID        string                     `json:"round_id"`
	WinningOutcome string                     `json:"winning_outcome"`
	TotalPool      decimal.Decimal            `json:"total_pool"`
	HouseTake      decimal.Decimal            `json:"house_take"`
	WinningPool    decimal.Decimal            `json:"winning_pool"`
	WinningStake   decimal.Decimal            `json:"winning_stake"`
	Payouts        map[string]decimal.Decimal `json:"payouts"`
	PayoutList     []Payout                   `json:"payout_list"`
	Breakage       decimal.Decimal            `json:"breakage"`
	SettledAt      time.Time                  `json:"settled_at"`
}

// HouseRetained reports whether nobody staked on the winner, in which case
// the house keeps the entire pool.
func (s Settlement) HouseRetained() bool {
	return len(s.PayoutList) == 0
}
