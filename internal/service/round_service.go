package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/parimutuel/internal/domain"
	"github.com/alanyoungcy/parimutuel/internal/ledger"
	"github.com/alanyoungcy/parimutuel/internal/notify"
)

// DefaultLockTTL is the expiry of the active-round lock between renewals.
const DefaultLockTTL = 30 * time.Second

// ActiveRoundLock is held by the replica running an unsettled round, so only
// one replica takes bets at a time.
const ActiveRoundLock = "round:active"

// Notifier delivers operator alerts.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// RoundOverrides replaces individual default parameters when a round opens.
// Nil fields keep the configured default.
type RoundOverrides struct {
	HouseCommission *decimal.Decimal
	MinimumBet      *decimal.Decimal
	MaximumBet      *decimal.NullDecimal
}

// PlacedBet is an accepted bet together with the pool it produced.
type PlacedBet struct {
	Bet       domain.Bet      `json:"bet"`
	TotalPool decimal.Decimal `json:"total_pool"`
}

// RoundService runs one active ledger per process and mirrors every accepted
// mutation into the journal, cache, bus, audit log, notifier and archive.
// Every backing service is optional. Once the ledger has accepted a mutation,
// a failing side effect is logged and never reported to the caller.
type RoundService struct {
	mu     sync.RWMutex
	active *ledger.Ledger
	lease  *roundLease

	// leaseMu orders lease changes against round swaps.
	leaseMu sync.Mutex

	defaults   domain.RoundParams
	ledgerOpts []ledger.Option
	newRoundID func() string
	now        func() time.Time

	rounds   domain.RoundStore
	bets     domain.BetStore
	payouts  domain.PayoutStore
	audit    domain.AuditStore
	stats    domain.StatsCache
	bus      domain.SignalBus
	locks    domain.LockManager
	lockTTL  time.Duration
	archiver domain.RoundArchiver
	blobs    domain.BlobReader
	notifier Notifier
	replay   *betReplay

	baseLogger *slog.Logger
	logger     *slog.Logger
}

// roundLease is this replica's hold on ActiveRoundLock.
type roundLease struct {
	release func()
	stop    chan struct{}
}

// NewRoundService creates a RoundService with no active round. Rounds opened
// without overrides use defaults; payouts truncate to places decimal places.
func NewRoundService(defaults domain.RoundParams, places int32, logger *slog.Logger) *RoundService {
	s := &RoundService{
		defaults:   defaults,
		ledgerOpts: []ledger.Option{ledger.WithCurrencyPlaces(places)},
		newRoundID: func() string { return uuid.New().String() },
		now:        func() time.Time { return time.Now().UTC() },
		lockTTL:    DefaultLockTTL,
		baseLogger: logger,
		logger:     logger.With(slog.String("component", "round_service")),
	}
	s.replay = newBetReplay(DefaultReplayTTL, func() time.Time { return s.now() })
	return s
}

// WithJournal persists rounds, bets and payouts.
func (s *RoundService) WithJournal(rounds domain.RoundStore, bets domain.BetStore, payouts domain.PayoutStore) *RoundService {
	s.rounds, s.bets, s.payouts = rounds, bets, payouts
	return s
}

// WithAudit records lifecycle transitions in the audit log.
func (s *RoundService) WithAudit(audit domain.AuditStore) *RoundService {
	s.audit = audit
	return s
}

// WithStatsCache publishes a snapshot after every mutation.
func (s *RoundService) WithStatsCache(stats domain.StatsCache) *RoundService {
	s.stats = stats
	return s
}

// WithSignalBus publishes round events and keeps the replay stream.
func (s *RoundService) WithSignalBus(bus domain.SignalBus) *RoundService {
	s.bus = bus
	return s
}

// WithLocks makes opening a round take ActiveRoundLock, renewed every ttl/3
// until the round settles.
func (s *RoundService) WithLocks(locks domain.LockManager, ttl time.Duration) *RoundService {
	s.locks = locks
	if ttl > 0 {
		s.lockTTL = ttl
	}
	return s
}

// WithArchive uploads settled rounds and serves them back through reader.
func (s *RoundService) WithArchive(archiver domain.RoundArchiver, reader domain.BlobReader) *RoundService {
	s.archiver, s.blobs = archiver, reader
	return s
}

// WithNotifier sends operator alerts on lifecycle transitions.
func (s *RoundService) WithNotifier(n Notifier) *RoundService {
	s.notifier = n
	return s
}

// WithLedgerOptions appends options applied to every ledger the service opens.
func (s *RoundService) WithLedgerOptions(opts ...ledger.Option) *RoundService {
	s.ledgerOpts = append(s.ledgerOpts, opts...)
	return s
}

// WithClock overrides the clock used for journal timestamps and new ledgers.
func (s *RoundService) WithClock(now func() time.Time) *RoundService {
	s.now = now
	s.ledgerOpts = append(s.ledgerOpts, ledger.WithClock(now))
	return s
}

// WithRoundIDs overrides how round IDs are minted.
func (s *RoundService) WithRoundIDs(newID func() string) *RoundService {
	s.newRoundID = newID
	return s
}

func (s *RoundService) current() (*ledger.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return nil, domain.ErrNoActiveRound
	}
	return s.active, nil
}

// Params returns the parameters new rounds open with when nothing is
// overridden.
func (s *RoundService) Params() domain.RoundParams { return s.defaults }

// OpenRound discards the active round, if any, and opens a fresh one with the
// defaults merged with overrides. With a lock manager configured it fails
// with ErrLockHeld while another replica runs a round.
func (s *RoundService) OpenRound(ctx context.Context, overrides RoundOverrides) (domain.Stats, error) {
	params := s.defaults
	if overrides.HouseCommission != nil {
		params.HouseCommission = *overrides.HouseCommission
	}
	if overrides.MinimumBet != nil {
		params.MinimumBet = *overrides.MinimumBet
	}
	if overrides.MaximumBet != nil {
		params.MaximumBet = *overrides.MaximumBet
	}

	roundID := s.newRoundID()
	l, err := ledger.New(roundID, params, s.baseLogger, s.ledgerOpts...)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("round_service: open round: %w", err)
	}

	s.leaseMu.Lock()
	if err := s.acquireLease(ctx, roundID); err != nil {
		s.leaseMu.Unlock()
		return domain.Stats{}, fmt.Errorf("round_service: open round: %w", err)
	}
	s.mu.Lock()
	prev := s.active
	s.active = l
	s.mu.Unlock()
	s.leaseMu.Unlock()

	if prev != nil {
		if st := prev.Statistics(); st.Status != domain.RoundStatusSettled {
			s.logger.WarnContext(ctx, "unsettled round discarded",
				slog.String("round_id", st.RoundID),
				slog.String("status", string(st.Status)),
				slog.Int("bet_count", st.BetCount),
			)
			if s.stats != nil {
				s.sideEffect(ctx, "invalidate cached stats", st.RoundID, s.stats.Invalidate(ctx, st.RoundID))
			}
		}
	}

	stats := l.Statistics()
	if s.rounds != nil {
		round := domain.Round{
			ID:        roundID,
			Status:    domain.RoundStatusOpen,
			Params:    params,
			TotalPool: decimal.Zero,
			OpenedAt:  s.now(),
		}
		s.sideEffect(ctx, "journal round", roundID, s.rounds.Create(ctx, round))
	}
	s.auditLog(ctx, "round.opened", map[string]any{
		"round_id":         roundID,
		"house_commission": params.HouseCommission.String(),
		"minimum_bet":      params.MinimumBet.String(),
	})
	s.cacheStats(ctx, stats)
	s.publish(ctx, domain.ChannelRounds, domain.EventRoundOpened, roundID, map[string]any{"params": params}, true)
	title, msg := notify.RoundOpened(roundID, params)
	s.alert(ctx, notify.EventRoundOpened, title, msg)

	s.logger.InfoContext(ctx, "round opened", slog.String("round_id", roundID))
	return stats, nil
}

// AddOutcome registers an outcome on the active round.
func (s *RoundService) AddOutcome(ctx context.Context, outcomeID string) (domain.Stats, error) {
	l, err := s.current()
	if err != nil {
		return domain.Stats{}, fmt.Errorf("round_service: add outcome: %w", err)
	}
	if err := l.AddOutcome(outcomeID); err != nil {
		return domain.Stats{}, err
	}

	stats := l.Statistics()
	if s.rounds != nil {
		pos := slices.IndexFunc(stats.OutcomeTotals, func(t domain.OutcomeTotal) bool { return t.OutcomeID == outcomeID })
		s.sideEffect(ctx, "journal outcome", stats.RoundID, s.rounds.AddOutcome(ctx, stats.RoundID, outcomeID, pos))
	}
	s.cacheStats(ctx, stats)
	s.publish(ctx, domain.ChannelRounds, domain.EventOutcomeAdded, stats.RoundID, map[string]any{"outcome_id": outcomeID}, false)
	s.publishOdds(ctx, stats)
	return stats, nil
}

// ValidateBet reports whether the bet would be accepted right now.
func (s *RoundService) ValidateBet(_ context.Context, amount decimal.Decimal, outcomeID string) error {
	l, err := s.current()
	if err != nil {
		return fmt.Errorf("round_service: validate bet: %w", err)
	}
	return l.ValidateBet(amount, outcomeID)
}

// PlaceBet records a bet on the active round.
func (s *RoundService) PlaceBet(ctx context.Context, bettorID, outcomeID string, amount decimal.Decimal) (PlacedBet, error) {
	l, err := s.current()
	if err != nil {
		return PlacedBet{}, fmt.Errorf("round_service: place bet: %w", err)
	}
	return s.placeOn(ctx, l, bettorID, outcomeID, amount)
}

// placeOn places the bet on l, which may no longer be the active round.
func (s *RoundService) placeOn(ctx context.Context, l *ledger.Ledger, bettorID, outcomeID string, amount decimal.Decimal) (PlacedBet, error) {
	bet, pool, err := l.PlaceBet(bettorID, outcomeID, amount)
	if err != nil {
		return PlacedBet{}, err
	}

	if s.bets != nil {
		s.sideEffect(ctx, "journal bet", bet.RoundID, s.bets.Insert(ctx, bet))
	}
	stats := l.Statistics()
	s.cacheStats(ctx, stats)
	s.publish(ctx, domain.ChannelBets, domain.EventBetAccepted, bet.RoundID, map[string]any{
		"bet":        bet,
		"total_pool": pool,
	}, true)
	s.publishOdds(ctx, stats)
	return PlacedBet{Bet: bet, TotalPool: pool}, nil
}

// CloseBetting stops the active round from taking bets.
func (s *RoundService) CloseBetting(ctx context.Context) (domain.Stats, error) {
	l, err := s.current()
	if err != nil {
		return domain.Stats{}, fmt.Errorf("round_service: close betting: %w", err)
	}
	if err := l.CloseBetting(); err != nil {
		return domain.Stats{}, err
	}

	stats := l.Statistics()
	if s.rounds != nil {
		s.sideEffect(ctx, "journal close", stats.RoundID,
			s.rounds.UpdateStatus(ctx, stats.RoundID, domain.RoundStatusClosed, s.now()))
	}
	s.auditLog(ctx, "round.closed", map[string]any{
		"round_id":   stats.RoundID,
		"total_pool": stats.TotalPool.String(),
		"bet_count":  stats.BetCount,
	})
	s.cacheStats(ctx, stats)
	s.publish(ctx, domain.ChannelRounds, domain.EventBettingClosed, stats.RoundID, map[string]any{
		"total_pool": stats.TotalPool,
		"bet_count":  stats.BetCount,
	}, true)
	title, msg := notify.BettingClosed(stats)
	s.alert(ctx, notify.EventBettingClosed, title, msg)
	return stats, nil
}

// Settle pays out the active round on winningOutcome and gives up
// ActiveRoundLock so any replica may open the next round.
func (s *RoundService) Settle(ctx context.Context, winningOutcome string) (domain.Settlement, error) {
	l, err := s.current()
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("round_service: settle: %w", err)
	}
	roundID := l.RoundID()

	st, err := l.CalculatePayouts(winningOutcome)
	if err != nil {
		return domain.Settlement{}, err
	}
	s.releaseLeaseFor(l)

	if s.rounds != nil {
		s.sideEffect(ctx, "journal settlement", roundID, s.rounds.Settle(ctx, st))
	}
	if s.payouts != nil && len(st.PayoutList) > 0 {
		s.sideEffect(ctx, "journal payouts", roundID, s.payouts.InsertBatch(ctx, st.PayoutList))
	}
	if s.archiver != nil {
		path, err := s.archiver.ArchiveRound(ctx, st, l.Bets(""))
		s.sideEffect(ctx, "archive round", roundID, err)
		if err == nil && s.rounds != nil {
			s.sideEffect(ctx, "journal archive path", roundID, s.rounds.SetArchivePath(ctx, roundID, path))
		}
	}
	s.auditLog(ctx, "round.settled", map[string]any{
		"round_id":        roundID,
		"winning_outcome": st.WinningOutcome,
		"total_pool":      st.TotalPool.String(),
		"house_take":      st.HouseTake.String(),
		"breakage":        st.Breakage.String(),
		"winners":         len(st.PayoutList),
	})
	s.cacheStats(ctx, l.Statistics())
	s.publish(ctx, domain.ChannelRounds, domain.EventRoundSettled, roundID, map[string]any{
		"winning_outcome": st.WinningOutcome,
		"payouts":         st.Payouts,
		"house_take":      st.HouseTake,
		"breakage":        st.Breakage,
	}, true)

	if st.HouseRetained() {
		title, msg := notify.HouseRetained(st)
		s.alert(ctx, notify.EventHouseRetained, title, msg)
	} else {
		title, msg := notify.RoundSettled(st)
		s.alert(ctx, notify.EventRoundSettled, title, msg)
	}
	return st, nil
}

// Statistics returns a snapshot of the active round.
func (s *RoundService) Statistics(_ context.Context) (domain.Stats, error) {
	l, err := s.current()
	if err != nil {
		return domain.Stats{}, fmt.Errorf("round_service: statistics: %w", err)
	}
	return l.Statistics(), nil
}

// Odds returns the odds board of the active round.
func (s *RoundService) Odds(_ context.Context) ([]domain.OutcomeOdds, error) {
	l, err := s.current()
	if err != nil {
		return nil, fmt.Errorf("round_service: odds: %w", err)
	}
	return l.CalculateOdds(), nil
}

// Bets returns the active round's bets, optionally only those on outcomeID.
func (s *RoundService) Bets(_ context.Context, outcomeID string) ([]domain.Bet, error) {
	l, err := s.current()
	if err != nil {
		return nil, fmt.Errorf("round_service: bets: %w", err)
	}
	return l.Bets(outcomeID), nil
}

// RoundStats returns the live snapshot of round id. The active round is read
// from the local ledger; any other round, such as one run by another replica,
// comes from the shared stats cache.
func (s *RoundService) RoundStats(ctx context.Context, id string) (domain.Stats, error) {
	if l, err := s.current(); err == nil && l.RoundID() == id {
		return l.Statistics(), nil
	}
	if s.stats == nil {
		return domain.Stats{}, fmt.Errorf("round_service: round stats %q: %w", id, domain.ErrNotFound)
	}
	stats, err := s.stats.GetStats(ctx, id)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("round_service: round stats %q: %w", id, err)
	}
	return stats, nil
}

// ListRounds returns journaled rounds, newest first.
func (s *RoundService) ListRounds(ctx context.Context, opts domain.ListOpts) ([]domain.Round, error) {
	if s.rounds == nil {
		return nil, fmt.Errorf("round_service: list rounds: journal %w", domain.ErrUnavailable)
	}
	rounds, err := s.rounds.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("round_service: list rounds: %w", err)
	}
	return rounds, nil
}

// GetRound returns one journaled round.
func (s *RoundService) GetRound(ctx context.Context, id string) (domain.Round, error) {
	if s.rounds == nil {
		return domain.Round{}, fmt.Errorf("round_service: get round: journal %w", domain.ErrUnavailable)
	}
	r, err := s.rounds.GetByID(ctx, id)
	if err != nil {
		return domain.Round{}, fmt.Errorf("round_service: get round %q: %w", id, err)
	}
	return r, nil
}

// RoundBets returns the journaled bets of a round in acceptance order.
func (s *RoundService) RoundBets(ctx context.Context, id string, opts domain.ListOpts) ([]domain.Bet, error) {
	if s.bets == nil {
		return nil, fmt.Errorf("round_service: round bets: journal %w", domain.ErrUnavailable)
	}
	bets, err := s.bets.ListByRound(ctx, id, opts)
	if err != nil {
		return nil, fmt.Errorf("round_service: round bets %q: %w", id, err)
	}
	return bets, nil
}

// RoundPayouts returns the journaled payouts of a round.
func (s *RoundService) RoundPayouts(ctx context.Context, id string) ([]domain.Payout, error) {
	if s.payouts == nil {
		return nil, fmt.Errorf("round_service: round payouts: journal %w", domain.ErrUnavailable)
	}
	payouts, err := s.payouts.ListByRound(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("round_service: round payouts %q: %w", id, err)
	}
	return payouts, nil
}

// Archive opens the archived JSONL of a settled round. The caller closes it.
func (s *RoundService) Archive(ctx context.Context, id string) (io.ReadCloser, error) {
	if s.blobs == nil || s.rounds == nil {
		return nil, fmt.Errorf("round_service: archive: blob store %w", domain.ErrUnavailable)
	}
	r, err := s.rounds.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("round_service: archive %q: %w", id, err)
	}
	if r.ArchivePath == "" {
		return nil, fmt.Errorf("round_service: archive %q: %w", id, domain.ErrNotFound)
	}
	body, err := s.blobs.Get(ctx, r.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("round_service: archive %q: %w", id, err)
	}
	return body, nil
}

// Events replays the durable round stream after the given entry ID.
func (s *RoundService) Events(ctx context.Context, after string, count int) ([]domain.StreamMessage, error) {
	if s.bus == nil {
		return nil, fmt.Errorf("round_service: events: signal bus %w", domain.ErrUnavailable)
	}
	msgs, err := s.bus.StreamRead(ctx, domain.StreamRounds, after, count)
	if err != nil {
		return nil, fmt.Errorf("round_service: events: %w", err)
	}
	return msgs, nil
}

// Close releases ActiveRoundLock if this replica holds it.
func (s *RoundService) Close() {
	s.leaseMu.Lock()
	s.mu.Lock()
	le := s.lease
	s.lease = nil
	s.mu.Unlock()
	s.leaseMu.Unlock()
	le.end()
}

// acquireLease takes ActiveRoundLock unless this replica already holds it.
// Only ErrLockHeld is returned; other lock failures are reported and the
// round opens unguarded. Callers hold leaseMu.
func (s *RoundService) acquireLease(ctx context.Context, roundID string) error {
	if s.locks == nil {
		return nil
	}
	s.mu.RLock()
	held := s.lease != nil
	s.mu.RUnlock()
	if held {
		return nil
	}

	release, lost, err := s.locks.Hold(ctx, ActiveRoundLock, s.lockTTL)
	switch {
	case errors.Is(err, domain.ErrLockHeld):
		return err
	case err != nil:
		s.sideEffect(ctx, "acquire active round lock", roundID, err)
		return nil
	}

	le := &roundLease{release: release, stop: make(chan struct{})}
	s.mu.Lock()
	s.lease = le
	s.mu.Unlock()
	go s.watchLease(context.WithoutCancel(ctx), le, lost)
	return nil
}

// releaseLeaseFor gives up the lease once l, the round it guarded, is done.
// A round opened since then keeps it.
func (s *RoundService) releaseLeaseFor(l *ledger.Ledger) {
	s.leaseMu.Lock()
	s.mu.Lock()
	var le *roundLease
	if s.active == l {
		le, s.lease = s.lease, nil
	}
	s.mu.Unlock()
	s.leaseMu.Unlock()
	le.end()
}

// watchLease drops a lease that the lock manager reports lost, so the next
// OpenRound has to win the lock again.
func (s *RoundService) watchLease(ctx context.Context, le *roundLease, lost <-chan struct{}) {
	select {
	case <-le.stop:
		return
	case <-lost:
	}
	s.mu.Lock()
	roundID := ""
	if s.active != nil {
		roundID = s.active.RoundID()
	}
	if s.lease == le {
		s.lease = nil
	}
	s.mu.Unlock()
	s.sideEffect(ctx, "hold active round lock", roundID, domain.ErrLockHeld)
}

func (le *roundLease) end() {
	if le == nil {
		return
	}
	close(le.stop)
	le.release()
}

func (s *RoundService) publishOdds(ctx context.Context, stats domain.Stats) {
	s.publish(ctx, domain.ChannelOdds, domain.EventOddsUpdated, stats.RoundID, map[string]any{
		"odds":       stats.Odds,
		"total_pool": stats.TotalPool,
	}, false)
}

// publish sends a round event on channel and, when durable, appends it to
// the replay stream.
func (s *RoundService) publish(ctx context.Context, channel, eventType, roundID string, payload map[string]any, durable bool) {
	if s.bus == nil {
		return
	}
	data, err := json.Marshal(domain.RoundEvent{
		Type:      eventType,
		RoundID:   roundID,
		Payload:   payload,
		CreatedAt: s.now(),
	})
	if err != nil {
		s.sideEffect(ctx, "encode "+eventType, roundID, err)
		return
	}
	s.sideEffect(ctx, "publish "+eventType, roundID, s.bus.Publish(ctx, channel, data))
	if durable {
		s.sideEffect(ctx, "stream "+eventType, roundID, s.bus.StreamAppend(ctx, domain.StreamRounds, data))
	}
}

func (s *RoundService) cacheStats(ctx context.Context, stats domain.Stats) {
	if s.stats == nil {
		return
	}
	s.sideEffect(ctx, "cache stats", stats.RoundID, s.stats.SetStats(ctx, stats))
}

func (s *RoundService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *RoundService) alert(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// sideEffect logs and alerts on a failed follow-up to an accepted ledger
// mutation.
func (s *RoundService) sideEffect(ctx context.Context, what, roundID string, err error) {
	if err == nil {
		return
	}
	s.logger.ErrorContext(ctx, what+" failed",
		slog.String("round_id", roundID),
		slog.String("error", err.Error()),
	)
	s.alert(ctx, notify.EventError, "Round side effect failed",
		fmt.Sprintf("%s for round %s: %v", what, roundID, err))
}
