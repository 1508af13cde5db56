package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultReplayTTL is how long a bet placed under an idempotency key is
// remembered.
const DefaultReplayTTL = 10 * time.Minute

// replayCleanupThreshold triggers a sweep of expired keys on insert.
const replayCleanupThreshold = 1024

// replayEntry serialises requests sharing one key through mu. done, placed
// and at are written under both mu and betReplay.mu.
type replayEntry struct {
	mu     sync.Mutex
	done   bool
	placed PlacedBet
	at     time.Time
}

// betReplay remembers bets placed under client-supplied idempotency keys so a
// retried request returns the original bet instead of placing a second one.
// Requests with different keys never wait on each other.
type betReplay struct {
	mu   sync.Mutex
	seen map[string]*replayEntry
	ttl  time.Duration
	now  func() time.Time
}

func newBetReplay(ttl time.Duration, now func() time.Time) *betReplay {
	return &betReplay{seen: make(map[string]*replayEntry), ttl: ttl, now: now}
}

// entry returns the live entry for key, creating one when there is none or
// the remembered bet has expired.
func (r *betReplay) entry(key string) *replayEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if e, ok := r.seen[key]; ok && !r.expired(e, now) {
		return e
	}
	if len(r.seen) >= replayCleanupThreshold {
		r.cleanupLocked(now)
	}
	e := &replayEntry{at: now}
	r.seen[key] = e
	return e
}

// do returns the bet remembered under key, or runs place and remembers its
// result when there is none. A failed place is not remembered; the next
// request with the key runs place again.
func (r *betReplay) do(key string, place func() (PlacedBet, error)) (PlacedBet, bool, error) {
	e := r.entry(key)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return e.placed, true, nil
	}

	placed, err := place()
	if err != nil {
		return PlacedBet{}, false, err
	}
	r.mu.Lock()
	e.placed, e.at, e.done = placed, r.now(), true
	r.mu.Unlock()
	return placed, false, nil
}

// expired reports whether a placed bet has outlived the TTL. Callers hold
// r.mu, which guards done and at.
func (r *betReplay) expired(e *replayEntry, now time.Time) bool {
	return e.done && now.Sub(e.at) >= r.ttl
}

// cleanupLocked drops keys older than the TTL, including keys whose
// placement failed. Requests already holding a dropped entry finish against
// it.
func (r *betReplay) cleanupLocked(now time.Time) {
	for k, e := range r.seen {
		if now.Sub(e.at) >= r.ttl {
			delete(r.seen, k)
		}
	}
}

// PlaceBetOnce places a bet at most once per idempotency key within a round.
// The key is bound to the round that is active when the request arrives, and
// the bet lands in that same round even if another round opens meanwhile. A
// repeated key returns the original bet with replayed set. An empty key
// behaves like PlaceBet.
func (s *RoundService) PlaceBetOnce(ctx context.Context, key, bettorID, outcomeID string, amount decimal.Decimal) (PlacedBet, bool, error) {
	l, err := s.current()
	if err != nil {
		return PlacedBet{}, false, fmt.Errorf("round_service: place bet: %w", err)
	}
	if key == "" {
		placed, err := s.placeOn(ctx, l, bettorID, outcomeID, amount)
		return placed, false, err
	}
	return s.replay.do(l.RoundID()+"/"+key, func() (PlacedBet, error) {
		return s.placeOn(ctx, l, bettorID, outcomeID, amount)
	})
}
