package ledger

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

var fixedNow = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, d(want).Equal(got), append([]any{"want %s, got %s", want, got}, msgAndArgs...)...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLedger(t *testing.T, params domain.RoundParams) *Ledger {
	t.Helper()
	seq := 0
	l, err := New("round-1", params, discardLogger(),
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { seq++; return fmt.Sprintf("bet-%d", seq) }),
	)
	require.NoError(t, err)
	return l
}

func raceParams() domain.RoundParams {
	return domain.RoundParams{
		HouseCommission: d("0.15"),
		MinimumBet:      d("5"),
		MaximumBet:      decimal.NewNullDecimal(d("1000")),
	}
}

// horseRace registers H1..H3 and places the four bets of the reference race.
func horseRace(t *testing.T) *Ledger {
	t.Helper()
	l := newTestLedger(t, raceParams())
	for _, o := range []string{"H1", "H2", "H3"} {
		require.NoError(t, l.AddOutcome(o))
	}
	place := func(bettor, outcome, amount string) {
		_, _, err := l.PlaceBet(bettor, outcome, d(amount))
		require.NoError(t, err)
	}
	place("player1", "H1", "100")
	place("player2", "H2", "200")
	place("player3", "H1", "150")
	place("player4", "H3", "50")
	return l
}

// checkInvariants verifies the structural invariants of the ledger.
func checkInvariants(t *testing.T, l *Ledger) {
	t.Helper()
	l.mu.RLock()
	defer l.mu.RUnlock()

	sumTotals := decimal.Zero
	for _, v := range l.totals {
		sumTotals = sumTotals.Add(v)
	}
	sumBets := decimal.Zero
	for _, b := range l.bets {
		sumBets = sumBets.Add(b.Amount)
	}
	assert.True(t, l.pool.Equal(sumTotals), "pool %s != sum of outcome totals %s", l.pool, sumTotals)
	assert.True(t, l.pool.Equal(sumBets), "pool %s != sum of bets %s", l.pool, sumBets)

	assert.Len(t, l.byOutcome, len(l.totals))
	assert.Len(t, l.outcomes, len(l.totals))
	for o, idxs := range l.byOutcome {
		_, ok := l.totals[o]
		assert.True(t, ok, "bets indexed under unregistered outcome %q", o)
		stake := decimal.Zero
		for _, i := range idxs {
			assert.Equal(t, o, l.bets[i].OutcomeID)
			stake = stake.Add(l.bets[i].Amount)
		}
		assert.True(t, stake.Equal(l.totals[o]), "outcome %q total mismatch", o)
	}
}

func TestNew_RejectsInvalidCommission(t *testing.T) {
	for _, c := range []string{"-0.01", "1", "1.5"} {
		p := DefaultParams()
		p.HouseCommission = d(c)
		_, err := New("r", p, discardLogger())
		assert.ErrorIs(t, err, domain.ErrConfig, "commission %s", c)
	}

	p := DefaultParams()
	p.HouseCommission = decimal.Zero
	_, err := New("r", p, discardLogger())
	assert.NoError(t, err)
}

func TestNew_RejectsInvalidBounds(t *testing.T) {
	tests := []struct {
		name   string
		params domain.RoundParams
	}{
		{"negative minimum", domain.RoundParams{MinimumBet: d("-1")}},
		{"zero maximum", domain.RoundParams{MinimumBet: d("1"), MaximumBet: decimal.NewNullDecimal(decimal.Zero)}},
		{"maximum below minimum", domain.RoundParams{MinimumBet: d("10"), MaximumBet: decimal.NewNullDecimal(d("5"))}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New("r", tc.params, discardLogger())
			assert.ErrorIs(t, err, domain.ErrConfig)
		})
	}
}

func TestNew_StartsOpenAndEmpty(t *testing.T) {
	l := newTestLedger(t, DefaultParams())

	stats := l.Statistics()
	assert.Equal(t, "round-1", stats.RoundID)
	assert.Equal(t, domain.RoundStatusOpen, stats.Status)
	assert.True(t, stats.TotalPool.IsZero())
	assert.Zero(t, stats.BetCount)
	assert.Empty(t, stats.Odds)
	assert.Empty(t, stats.OutcomeTotals)
	assert.Empty(t, stats.WinningOutcome)
	assertDecimal(t, "0.15", stats.HouseCommission)
	assertDecimal(t, "1", stats.MinimumBet)
	assert.False(t, stats.MaximumBet.Valid)
}

func TestAddOutcome_RejectsDuplicate(t *testing.T) {
	l := newTestLedger(t, raceParams())
	require.NoError(t, l.AddOutcome("H1"))
	_, _, err := l.PlaceBet("p1", "H1", d("10"))
	require.NoError(t, err)

	err = l.AddOutcome("H1")
	assert.ErrorIs(t, err, domain.ErrDuplicateOutcome)

	// The stake on H1 survives the rejected re-registration.
	assertDecimal(t, "10", l.Statistics().OutcomeTotals[0].Total)
	checkInvariants(t, l)
}

func TestAddOutcome_RejectsEmptyID(t *testing.T) {
	l := newTestLedger(t, raceParams())
	assert.ErrorIs(t, l.AddOutcome(""), domain.ErrUnknownOutcome)
}

func TestAddOutcome_AllowedWhileOpenAfterBets(t *testing.T) {
	l := newTestLedger(t, raceParams())
	require.NoError(t, l.AddOutcome("H1"))
	_, _, err := l.PlaceBet("p1", "H1", d("10"))
	require.NoError(t, err)

	require.NoError(t, l.AddOutcome("H2"))
	odds := l.CalculateOdds()
	require.Len(t, odds, 2)
	assert.True(t, odds[1].Odds.Unbounded())
}

func TestPlaceBet_BeforeAnyOutcomeIsRejected(t *testing.T) {
	l := newTestLedger(t, raceParams())

	_, _, err := l.PlaceBet("p1", "anything", d("10"))
	assert.ErrorIs(t, err, domain.ErrUnknownOutcome)
	assert.ErrorIs(t, l.ValidateBet(d("10"), "anything"), domain.ErrUnknownOutcome)
	assert.Zero(t, l.Statistics().BetCount)
}

func TestPlaceBet_UnknownOutcome(t *testing.T) {
	l := horseRace(t)
	_, _, err := l.PlaceBet("p9", "H9", d("10"))
	assert.ErrorIs(t, err, domain.ErrUnknownOutcome)
}

func TestPlaceBet_EmptyBettor(t *testing.T) {
	l := horseRace(t)
	_, _, err := l.PlaceBet("", "H1", d("10"))
	assert.ErrorIs(t, err, domain.ErrInvalidBettor)
}

func TestPlaceBet_MinimumBoundary(t *testing.T) {
	l := newTestLedger(t, raceParams())
	require.NoError(t, l.AddOutcome("H1"))

	_, _, err := l.PlaceBet("p1", "H1", d("5"))
	assert.NoError(t, err)

	_, _, err = l.PlaceBet("p1", "H1", d("4.99"))
	assert.ErrorIs(t, err, domain.ErrBetTooSmall)

	_, _, err = l.PlaceBet("p1", "H1", d("4.9999999"))
	assert.ErrorIs(t, err, domain.ErrBetTooSmall)
}

func TestPlaceBet_MaximumBoundary(t *testing.T) {
	l := newTestLedger(t, raceParams())
	require.NoError(t, l.AddOutcome("H1"))

	_, _, err := l.PlaceBet("p1", "H1", d("1000"))
	assert.NoError(t, err)

	_, _, err = l.PlaceBet("p1", "H1", d("1000.01"))
	assert.ErrorIs(t, err, domain.ErrBetTooLarge)
}

func TestPlaceBet_UnboundedMaximum(t *testing.T) {
	l := newTestLedger(t, DefaultParams())
	require.NoError(t, l.AddOutcome("H1"))

	_, _, err := l.PlaceBet("whale", "H1", d("1000000000"))
	assert.NoError(t, err)
}

func TestPlaceBet_NonPositiveAmountWithZeroMinimum(t *testing.T) {
	l := newTestLedger(t, domain.RoundParams{HouseCommission: d("0.1")})
	require.NoError(t, l.AddOutcome("H1"))

	for _, amt := range []string{"0", "-5"} {
		_, _, err := l.PlaceBet("p1", "H1", d(amt))
		assert.ErrorIs(t, err, domain.ErrBetTooSmall, "amount %s", amt)
	}
}

func TestPlaceBet_RejectionLeavesLedgerUnchanged(t *testing.T) {
	l := horseRace(t)
	before := l.Statistics()
	betsBefore := l.Bets("")

	_, _, err := l.PlaceBet("p5", "H1", d("1"))
	require.Error(t, err)
	_, _, err = l.PlaceBet("p5", "H1", d("5000"))
	require.Error(t, err)
	_, _, err = l.PlaceBet("p5", "nope", d("10"))
	require.Error(t, err)

	assert.Equal(t, before, l.Statistics())
	assert.Equal(t, betsBefore, l.Bets(""))
}

func TestPlaceBet_QuotesOddsBeforeBetJoinsPool(t *testing.T) {
	l := newTestLedger(t, raceParams())
	require.NoError(t, l.AddOutcome("H1"))
	require.NoError(t, l.AddOutcome("H2"))

	bet, pool, err := l.PlaceBet("p1", "H1", d("100"))
	require.NoError(t, err)
	assert.True(t, bet.Odds.Unbounded(), "first bet on an empty outcome is quoted unbounded")
	assertDecimal(t, "100", pool)

	bet, pool, err = l.PlaceBet("p2", "H2", d("300"))
	require.NoError(t, err)
	assert.True(t, bet.Odds.Unbounded())
	assertDecimal(t, "400", pool)

	// H1 holds 100 of 400 before this bet: 400/100 - 1 = 3.
	bet, pool, err = l.PlaceBet("p3", "H1", d("100"))
	require.NoError(t, err)
	odds, ok := bet.Odds.Decimal()
	require.True(t, ok)
	assertDecimal(t, "3", odds)
	assertDecimal(t, "500", pool)

	assert.Equal(t, "bet-3", bet.ID)
	assert.Equal(t, "round-1", bet.RoundID)
	assert.Equal(t, fixedNow, bet.PlacedAt)
}

func TestPoolInvariantAfterManyBets(t *testing.T) {
	l := newTestLedger(t, DefaultParams())
	outcomes := []string{"A", "B", "C", "D"}
	for _, o := range outcomes {
		require.NoError(t, l.AddOutcome(o))
	}
	amounts := []string{"1", "2.5", "3.33", "10", "0.99", "7.01", "100", "1.01"}
	count := 0
	for i := 0; i < 40; i++ {
		amt := d(amounts[i%len(amounts)])
		_, _, err := l.PlaceBet(fmt.Sprintf("p%d", i%7), outcomes[i%len(outcomes)], amt)
		if amt.LessThan(DefaultMinimumBet) {
			require.ErrorIs(t, err, domain.ErrBetTooSmall)
			continue
		}
		require.NoError(t, err)
		count++
		checkInvariants(t, l)
	}
	assert.Equal(t, count, l.Statistics().BetCount)
	assert.Len(t, l.Bets(""), count)
}

func TestCalculateOdds_ZeroStakeIsUnbounded(t *testing.T) {
	l := newTestLedger(t, raceParams())
	require.NoError(t, l.AddOutcome("H1"))
	require.NoError(t, l.AddOutcome("H2"))

	for _, o := range l.CalculateOdds() {
		assert.True(t, o.Odds.Unbounded(), o.OutcomeID)
	}

	_, _, err := l.PlaceBet("p1", "H1", d("50"))
	require.NoError(t, err)
	odds := l.CalculateOdds()
	require.Len(t, odds, 2)
	assertDecimal(t, "0", mustOdds(t, odds[0].Odds))
	assert.True(t, odds[1].Odds.Unbounded())
}

func TestCalculateOdds_ReferenceRace(t *testing.T) {
	l := horseRace(t)
	odds := l.CalculateOdds()
	require.Len(t, odds, 3)

	assert.Equal(t, "H1", odds[0].OutcomeID)
	assertDecimal(t, "1", mustOdds(t, odds[0].Odds))
	assertDecimal(t, "1.5", mustOdds(t, odds[1].Odds))
	assertDecimal(t, "9", mustOdds(t, odds[2].Odds))
}

func TestReadsAreIdempotent(t *testing.T) {
	l := horseRace(t)
	assert.Equal(t, l.CalculateOdds(), l.CalculateOdds())
	assert.Equal(t, l.Statistics(), l.Statistics())

	require.NoError(t, l.CloseBetting())
	assert.Equal(t, l.Statistics(), l.Statistics())
}

func TestStatistics_IsDetachedCopy(t *testing.T) {
	l := horseRace(t)
	stats := l.Statistics()
	stats.OutcomeTotals[0].Total = d("999999")
	stats.Odds[0].Odds = domain.UnboundedOdds()

	fresh := l.Statistics()
	assertDecimal(t, "250", fresh.OutcomeTotals[0].Total)
	assert.False(t, fresh.Odds[0].Odds.Unbounded())
}

func TestStatistics_ReferenceRace(t *testing.T) {
	l := horseRace(t)
	stats := l.Statistics()

	assertDecimal(t, "500", stats.TotalPool)
	assert.Equal(t, 4, stats.BetCount)
	assert.Equal(t, domain.RoundStatusOpen, stats.Status)
	require.Len(t, stats.OutcomeTotals, 3)
	assertDecimal(t, "250", stats.OutcomeTotals[0].Total)
	assertDecimal(t, "200", stats.OutcomeTotals[1].Total)
	assertDecimal(t, "50", stats.OutcomeTotals[2].Total)
	assertDecimal(t, "0.15", stats.HouseCommission)
}

func TestStateMachine_ClosedAndSettledRejectMutations(t *testing.T) {
	l := horseRace(t)

	_, err := l.CalculatePayouts("H1")
	assert.ErrorIs(t, err, domain.ErrInvalidState, "payouts while open")

	require.NoError(t, l.CloseBetting())
	assertClosedToMutations(t, l)

	_, err = l.CalculatePayouts("H1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoundStatusSettled, l.Status())
	assertClosedToMutations(t, l)

	_, err = l.CalculatePayouts("H1")
	assert.ErrorIs(t, err, domain.ErrInvalidState, "second payout call")
}

func assertClosedToMutations(t *testing.T, l *Ledger) {
	t.Helper()
	_, _, err := l.PlaceBet("late", "H1", d("10"))
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.ErrorIs(t, l.ValidateBet(d("10"), "H1"), domain.ErrInvalidState)
	assert.ErrorIs(t, l.AddOutcome("H4"), domain.ErrInvalidState)
	assert.ErrorIs(t, l.CloseBetting(), domain.ErrInvalidState)
}

func TestCalculatePayouts_ReferenceRace(t *testing.T) {
	l := horseRace(t)
	require.NoError(t, l.CloseBetting())

	s, err := l.CalculatePayouts("H1")
	require.NoError(t, err)

	assertDecimal(t, "500", s.TotalPool)
	assertDecimal(t, "425", s.WinningPool)
	assertDecimal(t, "75", s.HouseTake)
	assertDecimal(t, "250", s.WinningStake)
	require.Len(t, s.Payouts, 2)
	assertDecimal(t, "170", s.Payouts["player1"])
	assertDecimal(t, "255", s.Payouts["player3"])
	assertDecimal(t, "0", s.Breakage)

	require.Len(t, s.PayoutList, 2)
	assert.Equal(t, "player1", s.PayoutList[0].BettorID)
	assertDecimal(t, "100", s.PayoutList[0].Stake)

	stats := l.Statistics()
	assert.Equal(t, domain.RoundStatusSettled, stats.Status)
	assert.Equal(t, "H1", stats.WinningOutcome)
	assert.Equal(t, fixedNow, s.SettledAt)
}

func TestCalculatePayouts_UnknownWinnerLeavesRoundClosed(t *testing.T) {
	l := horseRace(t)
	require.NoError(t, l.CloseBetting())

	_, err := l.CalculatePayouts("H9")
	assert.ErrorIs(t, err, domain.ErrUnknownOutcome)
	assert.Equal(t, domain.RoundStatusClosed, l.Status())
	assert.Empty(t, l.Statistics().WinningOutcome)

	_, err = l.CalculatePayouts("H2")
	assert.NoError(t, err)
}

func TestCalculatePayouts_ZeroStakeWinnerKeepsPool(t *testing.T) {
	l := newTestLedger(t, raceParams())
	require.NoError(t, l.AddOutcome("H1"))
	require.NoError(t, l.AddOutcome("H2"))
	_, _, err := l.PlaceBet("p1", "H1", d("100"))
	require.NoError(t, err)
	require.NoError(t, l.CloseBetting())

	s, err := l.CalculatePayouts("H2")
	require.NoError(t, err)
	assert.Empty(t, s.Payouts)
	assert.True(t, s.HouseRetained())
	assertDecimal(t, "85", s.WinningPool)
	assertDecimal(t, "100", s.HouseTake)
	assertDecimal(t, "0", s.Breakage)
	assertDecimal(t, "100", sumPayouts(s).Add(s.HouseTake).Add(s.Breakage))
	assert.Equal(t, domain.RoundStatusSettled, l.Status())
}

func TestCalculatePayouts_PoolIsFullyAccounted(t *testing.T) {
	l := horseRace(t)
	require.NoError(t, l.CloseBetting())
	s, err := l.CalculatePayouts("H1")
	require.NoError(t, err)
	assert.True(t, s.TotalPool.Equal(sumPayouts(s).Add(s.HouseTake).Add(s.Breakage)),
		"payouts %s + house %s + breakage %s != pool %s", sumPayouts(s), s.HouseTake, s.Breakage, s.TotalPool)
}

func sumPayouts(s domain.Settlement) decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.PayoutList {
		total = total.Add(p.Amount)
	}
	return total
}

func TestCalculatePayouts_AggregatesPerBettor(t *testing.T) {
	l := newTestLedger(t, domain.RoundParams{HouseCommission: d("0.1"), MinimumBet: d("1")})
	require.NoError(t, l.AddOutcome("yes"))
	require.NoError(t, l.AddOutcome("no"))
	for _, b := range []struct{ who, on, amt string }{
		{"alice", "yes", "10"},
		{"bob", "no", "50"},
		{"alice", "yes", "30"},
		{"carol", "yes", "10"},
	} {
		_, _, err := l.PlaceBet(b.who, b.on, d(b.amt))
		require.NoError(t, err)
	}
	require.NoError(t, l.CloseBetting())

	s, err := l.CalculatePayouts("yes")
	require.NoError(t, err)

	// 100 * 0.9 = 90 split over 50 staked on yes: 1.8 per unit.
	require.Len(t, s.Payouts, 2)
	assertDecimal(t, "72", s.Payouts["alice"])
	assertDecimal(t, "18", s.Payouts["carol"])
}

func TestCalculatePayouts_TruncatesAndReportsBreakage(t *testing.T) {
	l := newTestLedger(t, domain.RoundParams{HouseCommission: decimal.Zero, MinimumBet: d("1")})
	require.NoError(t, l.AddOutcome("win"))
	require.NoError(t, l.AddOutcome("lose"))
	for _, who := range []string{"a", "b", "c"} {
		_, _, err := l.PlaceBet(who, "win", d("1"))
		require.NoError(t, err)
	}
	_, _, err := l.PlaceBet("z", "lose", d("97"))
	require.NoError(t, err)
	require.NoError(t, l.CloseBetting())

	s, err := l.CalculatePayouts("win")
	require.NoError(t, err)
	for _, who := range []string{"a", "b", "c"} {
		assertDecimal(t, "33.33", s.Payouts[who])
	}
	assertDecimal(t, "0.01", s.Breakage)
}

func TestCalculatePayouts_SumMatchesWinningPool(t *testing.T) {
	commissions := []string{"0", "0.05", "0.15", "0.175", "0.3333"}
	stakes := []string{"1", "7.77", "13.13", "2.5", "99.99", "3.01", "42"}

	for _, c := range commissions {
		t.Run("commission="+c, func(t *testing.T) {
			l := newTestLedger(t, domain.RoundParams{HouseCommission: d(c), MinimumBet: d("1")})
			for _, o := range []string{"A", "B", "C"} {
				require.NoError(t, l.AddOutcome(o))
			}
			winners := map[string]bool{}
			for i, s := range stakes {
				outcome := []string{"A", "B", "C"}[i%3]
				bettor := fmt.Sprintf("p%d", i)
				if outcome == "A" {
					winners[bettor] = true
				}
				_, _, err := l.PlaceBet(bettor, outcome, d(s))
				require.NoError(t, err)
			}
			require.NoError(t, l.CloseBetting())

			s, err := l.CalculatePayouts("A")
			require.NoError(t, err)

			sum := decimal.Zero
			for _, v := range s.Payouts {
				sum = sum.Add(v)
			}
			want := s.TotalPool.Mul(decimal.NewFromInt(1).Sub(d(c)))
			assert.True(t, s.WinningPool.Equal(want))
			assert.True(t, sum.Add(s.Breakage).Equal(want), "payouts + breakage must equal winning pool")
			assert.False(t, s.Breakage.IsNegative())
			tolerance := d("0.01").Mul(decimal.NewFromInt(int64(len(winners))))
			assert.True(t, s.Breakage.LessThan(tolerance), "breakage %s exceeds %s", s.Breakage, tolerance)
		})
	}
}

func TestReset_DiscardsPriorRound(t *testing.T) {
	l := horseRace(t)
	require.NoError(t, l.CloseBetting())
	old := l.Statistics()

	require.NoError(t, l.Reset("round-2", DefaultParams()))
	stats := l.Statistics()
	assert.Equal(t, "round-2", stats.RoundID)
	assert.Equal(t, domain.RoundStatusOpen, stats.Status)
	assert.True(t, stats.TotalPool.IsZero())
	assert.Empty(t, stats.OutcomeTotals)
	assert.Empty(t, l.Bets(""))

	// Earlier snapshots are detached and keep their values.
	assertDecimal(t, "500", old.TotalPool)
}

func TestReset_InvalidParamsKeepCurrentRound(t *testing.T) {
	l := horseRace(t)
	bad := DefaultParams()
	bad.HouseCommission = d("1")

	assert.ErrorIs(t, l.Reset("round-2", bad), domain.ErrConfig)
	assert.Equal(t, "round-1", l.RoundID())
	assert.Equal(t, 4, l.Statistics().BetCount)
}

func TestBets_FilterByOutcome(t *testing.T) {
	l := horseRace(t)
	h1 := l.Bets("H1")
	require.Len(t, h1, 2)
	assert.Equal(t, "player1", h1[0].BettorID)
	assert.Equal(t, "player3", h1[1].BettorID)
	assert.Empty(t, l.Bets("H9"))
}

func TestConcurrentBetsKeepInvariants(t *testing.T) {
	l, err := New("round-c", DefaultParams(), discardLogger())
	require.NoError(t, err)
	require.NoError(t, l.AddOutcome("A"))
	require.NoError(t, l.AddOutcome("B"))

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			outcome := []string{"A", "B"}[w%2]
			for i := 0; i < perWorker; i++ {
				_, _, err := l.PlaceBet(fmt.Sprintf("w%d", w), outcome, d("2.5"))
				assert.NoError(t, err)
				_ = l.CalculateOdds()
				_ = l.Statistics()
			}
		}(w)
	}
	wg.Wait()

	stats := l.Statistics()
	assert.Equal(t, workers*perWorker, stats.BetCount)
	assertDecimal(t, "1000", stats.TotalPool)
	checkInvariants(t, l)
}

func mustOdds(t *testing.T, o domain.Odds) decimal.Decimal {
	t.Helper()
	v, ok := o.Decimal()
	require.True(t, ok, "odds unexpectedly unbounded")
	return v
}
