package domain

import "time"

// Bus channels and streams.
const (
	ChannelBets   = "bets"
	ChannelOdds   = "odds"
	ChannelRounds = "rounds"

	StreamRounds = "stream:rounds"
)

// Round event types.
const (
	EventRoundOpened   = "round_opened"
	EventOutcomeAdded  = "outcome_added"
	EventBetAccepted   = "bet_accepted"
	EventOddsUpdated   = "odds_updated"
	EventBettingClosed = "betting_closed"
	EventRoundSettled  = "round_settled"
)

// RoundEvent is the envelope published for every accepted mutation.
type RoundEvent struct {
	Type      string         `json:"type"`
	RoundID   string         `json:"round_id"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
