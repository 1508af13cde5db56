// Package ledger implements the pari-mutuel round ledger: the state machine
// that registers outcomes, accepts bets, quotes floating odds, closes betting,
// and splits the pool among winners. It is in-memory and synchronous; all
// mutations are serialised behind a single lock so the odds quoted to a bettor
// always match the pool state that bettor joined.
package ledger

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// DefaultCurrencyPlaces is the number of decimal places payouts are truncated to.
const DefaultCurrencyPlaces int32 = 2

var (
	// DefaultHouseCommission is the commission used when none is configured.
	DefaultHouseCommission = decimal.RequireFromString("0.15")
	// DefaultMinimumBet is the minimum stake used when none is configured.
	DefaultMinimumBet = decimal.NewFromInt(1)
)

// DefaultParams returns a 15% commission, a minimum bet of 1 and no maximum.
func DefaultParams() domain.RoundParams {
	return domain.RoundParams{
		HouseCommission: DefaultHouseCommission,
		MinimumBet:      DefaultMinimumBet,
	}
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithClock overrides the clock used to timestamp bets and settlements.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator overrides how bet IDs are minted.
func WithIDGenerator(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

// WithCurrencyPlaces sets the smallest currency unit payouts are truncated to.
func WithCurrencyPlaces(places int32) Option {
	return func(l *Ledger) { l.places = places }
}

// Ledger owns all state for one betting round.
type Ledger struct {
	mu sync.RWMutex

	roundID string
	params  domain.RoundParams
	status  domain.RoundStatus

	outcomes  []string // registration order
	totals    map[string]decimal.Decimal
	bets      []domain.Bet // acceptance order
	byOutcome map[string][]int
	pool      decimal.Decimal
	winner    string

	places int32
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// New creates a ledger with an open, empty round.
func New(roundID string, params domain.RoundParams, logger *slog.Logger, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		places: DefaultCurrencyPlaces,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
		logger: logger.With(slog.String("component", "ledger")),
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := l.Reset(roundID, params); err != nil {
		return nil, err
	}
	return l, nil
}

// Reset discards every bet, outcome and total and reopens the ledger as a
// fresh round. Invalid params leave the current round untouched.
func (l *Ledger) Reset(roundID string, params domain.RoundParams) error {
	if err := ValidateParams(params); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.roundID = roundID
	l.params = params
	l.status = domain.RoundStatusOpen
	l.outcomes = nil
	l.totals = make(map[string]decimal.Decimal)
	l.bets = nil
	l.byOutcome = make(map[string][]int)
	l.pool = decimal.Zero
	l.winner = ""
	return nil
}

// ValidateParams checks round parameters without touching any ledger.
func ValidateParams(p domain.RoundParams) error {
	if p.HouseCommission.IsNegative() || p.HouseCommission.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: house commission %s must be in [0, 1)", domain.ErrConfig, p.HouseCommission)
	}
	if p.MinimumBet.IsNegative() {
		return fmt.Errorf("%w: minimum bet %s must not be negative", domain.ErrConfig, p.MinimumBet)
	}
	if p.MaximumBet.Valid {
		if !p.MaximumBet.Decimal.IsPositive() {
			return fmt.Errorf("%w: maximum bet %s must be positive", domain.ErrConfig, p.MaximumBet.Decimal)
		}
		if p.MaximumBet.Decimal.LessThan(p.MinimumBet) {
			return fmt.Errorf("%w: maximum bet %s below minimum bet %s",
				domain.ErrConfig, p.MaximumBet.Decimal, p.MinimumBet)
		}
	}
	return nil
}

// RoundID returns the identifier of the current round.
func (l *Ledger) RoundID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.roundID
}

// Status returns the current lifecycle status.
func (l *Ledger) Status() domain.RoundStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}

// AddOutcome registers an outcome with zero stake.
func (l *Ledger) AddOutcome(outcomeID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.status != domain.RoundStatusOpen {
		return fmt.Errorf("ledger: add outcome %q: %w (status %s)", outcomeID, domain.ErrInvalidState, l.status)
	}
	if outcomeID == "" {
		return fmt.Errorf("ledger: add outcome: %w: empty id", domain.ErrUnknownOutcome)
	}
	if _, ok := l.totals[outcomeID]; ok {
		return fmt.Errorf("ledger: add outcome %q: %w", outcomeID, domain.ErrDuplicateOutcome)
	}

	l.outcomes = append(l.outcomes, outcomeID)
	l.totals[outcomeID] = decimal.Zero
	l.byOutcome[outcomeID] = []int{}

	l.logger.Debug("outcome registered",
		slog.String("round_id", l.roundID),
		slog.String("outcome_id", outcomeID),
	)
	return nil
}

// ValidateBet reports whether a bet of amount on outcomeID would be accepted
// right now. It never mutates the ledger.
func (l *Ledger) ValidateBet(amount decimal.Decimal, outcomeID string) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.validateLocked(amount, outcomeID)
}

func (l *Ledger) validateLocked(amount decimal.Decimal, outcomeID string) error {
	if l.status != domain.RoundStatusOpen {
		return fmt.Errorf("ledger: betting is not open: %w (status %s)", domain.ErrInvalidState, l.status)
	}
	if !amount.IsPositive() || amount.LessThan(l.params.MinimumBet) {
		return fmt.Errorf("ledger: %w: %s < %s", domain.ErrBetTooSmall, amount, l.params.MinimumBet)
	}
	if l.params.MaximumBet.Valid && amount.GreaterThan(l.params.MaximumBet.Decimal) {
		return fmt.Errorf("ledger: %w: %s > %s", domain.ErrBetTooLarge, amount, l.params.MaximumBet.Decimal)
	}
	// Bets are only accepted on registered outcomes, including before the
	// first outcome is registered.
	if _, ok := l.totals[outcomeID]; !ok {
		return fmt.Errorf("ledger: outcome %q: %w", outcomeID, domain.ErrUnknownOutcome)
	}
	return nil
}

// PlaceBet validates and records a bet. The returned Bet carries the odds
// quoted from the pool as it stood immediately before this bet; the decimal
// is the total pool after acceptance.
func (l *Ledger) PlaceBet(bettorID, outcomeID string, amount decimal.Decimal) (domain.Bet, decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if bettorID == "" {
		return domain.Bet{}, decimal.Zero, fmt.Errorf("ledger: place bet: %w: empty id", domain.ErrInvalidBettor)
	}
	if err := l.validateLocked(amount, outcomeID); err != nil {
		return domain.Bet{}, decimal.Zero, err
	}

	bet := domain.Bet{
		ID:        l.newID(),
		RoundID:   l.roundID,
		BettorID:  bettorID,
		OutcomeID: outcomeID,
		Amount:    amount,
		Odds:      quote(l.totals[outcomeID], l.pool),
		PlacedAt:  l.now(),
	}

	l.bets = append(l.bets, bet)
	l.byOutcome[outcomeID] = append(l.byOutcome[outcomeID], len(l.bets)-1)
	l.totals[outcomeID] = l.totals[outcomeID].Add(amount)
	l.pool = l.pool.Add(amount)

	l.logger.Info("bet accepted",
		slog.String("round_id", l.roundID),
		slog.String("bet_id", bet.ID),
		slog.String("bettor_id", bettorID),
		slog.String("outcome_id", outcomeID),
		slog.String("amount", amount.String()),
		slog.String("odds", bet.Odds.String()),
		slog.String("total_pool", l.pool.String()),
	)

	return bet, l.pool, nil
}

// CalculateOdds returns the current decimal odds of every outcome in
// registration order. It may be called in any status.
func (l *Ledger) CalculateOdds() []domain.OutcomeOdds {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.oddsLocked()
}

func (l *Ledger) oddsLocked() []domain.OutcomeOdds {
	out := make([]domain.OutcomeOdds, 0, len(l.outcomes))
	for _, id := range l.outcomes {
		out = append(out, domain.OutcomeOdds{OutcomeID: id, Odds: quote(l.totals[id], l.pool)})
	}
	return out
}

// CloseBetting stops accepting bets and outcomes.
func (l *Ledger) CloseBetting() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.status != domain.RoundStatusOpen {
		return fmt.Errorf("ledger: close betting: %w (status %s)", domain.ErrInvalidState, l.status)
	}
	l.status = domain.RoundStatusClosed

	l.logger.Info("betting closed",
		slog.String("round_id", l.roundID),
		slog.String("total_pool", l.pool.String()),
		slog.Int("bet_count", len(l.bets)),
	)
	return nil
}

// CalculatePayouts settles a closed round on winningOutcome. It can succeed
// only once per round; the round is settled only when it returns nil error.
func (l *Ledger) CalculatePayouts(winningOutcome string) (domain.Settlement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.status != domain.RoundStatusClosed {
		return domain.Settlement{}, fmt.Errorf("ledger: calculate payouts: %w (status %s)", domain.ErrInvalidState, l.status)
	}
	winningStake, ok := l.totals[winningOutcome]
	if !ok {
		return domain.Settlement{}, fmt.Errorf("ledger: winning outcome %q: %w", winningOutcome, domain.ErrUnknownOutcome)
	}

	winningPool := l.pool.Mul(decimal.NewFromInt(1).Sub(l.params.HouseCommission))
	s := domain.Settlement{
		RoundID:        l.roundID,
		WinningOutcome: winningOutcome,
		TotalPool:      l.pool,
		HouseTake:      l.pool.Sub(winningPool),
		WinningPool:    winningPool,
		WinningStake:   winningStake,
		Payouts:        map[string]decimal.Decimal{},
		PayoutList:     []domain.Payout{},
		Breakage:       decimal.Zero,
		SettledAt:      l.now(),
	}

	if winningStake.IsPositive() {
		winners := make([]domain.Bet, 0, len(l.byOutcome[winningOutcome]))
		for _, idx := range l.byOutcome[winningOutcome] {
			winners = append(winners, l.bets[idx])
		}
		s.PayoutList, s.Breakage = splitPool(l.roundID, winners, winningPool, winningStake, l.places)
		for _, p := range s.PayoutList {
			s.Payouts[p.BettorID] = p.Amount
		}
	} else {
		s.HouseTake = l.pool
	}

	l.winner = winningOutcome
	l.status = domain.RoundStatusSettled

	if s.HouseRetained() {
		l.logger.Info("no winning bets placed; pool retained by house",
			slog.String("round_id", l.roundID),
			slog.String("winning_outcome", winningOutcome),
			slog.String("total_pool", l.pool.String()),
		)
	} else {
		l.logger.Info("round settled",
			slog.String("round_id", l.roundID),
			slog.String("winning_outcome", winningOutcome),
			slog.String("winning_pool", winningPool.String()),
			slog.Int("winners", len(s.PayoutList)),
			slog.String("breakage", s.Breakage.String()),
		)
	}
	return s, nil
}

// Statistics returns a detached snapshot of the round.
func (l *Ledger) Statistics() domain.Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	totals := make([]domain.OutcomeTotal, 0, len(l.outcomes))
	for _, id := range l.outcomes {
		totals = append(totals, domain.OutcomeTotal{OutcomeID: id, Total: l.totals[id]})
	}

	return domain.Stats{
		RoundID:         l.roundID,
		Status:          l.status,
		TotalPool:       l.pool,
		BetCount:        len(l.bets),
		Odds:            l.oddsLocked(),
		OutcomeTotals:   totals,
		HouseCommission: l.params.HouseCommission,
		MinimumBet:      l.params.MinimumBet,
		MaximumBet:      l.params.MaximumBet,
		WinningOutcome:  l.winner,
	}
}

// Params returns the parameters the current round was opened with.
func (l *Ledger) Params() domain.RoundParams {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.params
}

// Bets returns accepted bets in acceptance order. A non-empty outcomeID
// restricts the result to bets on that outcome.
func (l *Ledger) Bets(outcomeID string) []domain.Bet {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if outcomeID == "" {
		out := make([]domain.Bet, len(l.bets))
		copy(out, l.bets)
		return out
	}
	idxs := l.byOutcome[outcomeID]
	out := make([]domain.Bet, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, l.bets[i])
	}
	return out
}
