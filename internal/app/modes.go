package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/parimutuel/internal/server"
	"github.com/alanyoungcy/parimutuel/internal/server/handler"
	"github.com/alanyoungcy/parimutuel/internal/server/ws"
	"github.com/alanyoungcy/parimutuel/internal/service"
)

// demoBet is one wager of the scripted demo round.
type demoBet struct {
	bettor  string
	outcome string
	amount  int64
}

var (
	demoOutcomes = []string{"Horse1", "Horse2", "Horse3"}
	demoBets     = []demoBet{
		{"player1", "Horse1", 100},
		{"player2", "Horse2", 200},
		{"player3", "Horse1", 150},
		{"player4", "Horse3", 50},
	}
	demoWinner = "Horse1"

	demoMinimumBet = decimal.NewFromInt(5)
	demoMaximumBet = decimal.NewNullDecimal(decimal.NewFromInt(1000))
)

// DemoMode plays one scripted round against the ledger and logs the odds
// board, the statistics and the payouts. The round takes bets between 5 and
// 1000 whatever the configured defaults; commission stays configurable. It
// needs no infrastructure.
func (a *App) DemoMode(ctx context.Context, svc *service.RoundService) error {
	a.logger.InfoContext(ctx, "starting demo mode")

	overrides := service.RoundOverrides{MinimumBet: &demoMinimumBet, MaximumBet: &demoMaximumBet}
	if _, err := svc.OpenRound(ctx, overrides); err != nil {
		return fmt.Errorf("demo: %w", err)
	}
	for _, o := range demoOutcomes {
		if _, err := svc.AddOutcome(ctx, o); err != nil {
			return fmt.Errorf("demo: %w", err)
		}
	}
	for _, b := range demoBets {
		placed, err := svc.PlaceBet(ctx, b.bettor, b.outcome, decimal.NewFromInt(b.amount))
		if err != nil {
			return fmt.Errorf("demo: %w", err)
		}
		a.logger.InfoContext(ctx, "demo bet placed",
			slog.String("bettor_id", b.bettor),
			slog.String("outcome_id", b.outcome),
			slog.String("odds_at_acceptance", placed.Bet.Odds.String()),
			slog.String("total_pool", placed.TotalPool.String()),
		)
	}

	odds, err := svc.Odds(ctx)
	if err != nil {
		return fmt.Errorf("demo: %w", err)
	}
	for _, o := range odds {
		a.logger.InfoContext(ctx, "demo odds",
			slog.String("outcome_id", o.OutcomeID),
			slog.String("odds", o.Odds.String()),
		)
	}

	if _, err := svc.CloseBetting(ctx); err != nil {
		return fmt.Errorf("demo: %w", err)
	}
	st, err := svc.Settle(ctx, demoWinner)
	if err != nil {
		return fmt.Errorf("demo: %w", err)
	}

	stats, err := svc.Statistics(ctx)
	if err != nil {
		return fmt.Errorf("demo: %w", err)
	}
	a.logger.InfoContext(ctx, "demo round statistics",
		slog.String("round_id", stats.RoundID),
		slog.String("status", string(stats.Status)),
		slog.String("total_pool", stats.TotalPool.String()),
		slog.Int("bet_count", stats.BetCount),
		slog.String("house_commission", stats.HouseCommission.String()),
		slog.String("minimum_bet", stats.MinimumBet.String()),
		slog.String("maximum_bet", stats.MaximumBet.Decimal.String()),
	)
	for _, p := range st.PayoutList {
		a.logger.InfoContext(ctx, "demo payout",
			slog.String("bettor_id", p.BettorID),
			slog.String("stake", p.Stake.String()),
			slog.String("amount", p.Amount.String()),
		)
	}
	a.logger.InfoContext(ctx, "demo complete",
		slog.String("winning_outcome", st.WinningOutcome),
		slog.String("house_take", st.HouseTake.String()),
		slog.String("breakage", st.Breakage.String()),
	)
	return nil
}

// ServerMode serves the HTTP and WebSocket API until ctx is cancelled. In
// full mode the round service additionally journals and archives.
func (a *App) ServerMode(ctx context.Context, svc *service.RoundService, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode",
		slog.Bool("journal", deps.RoundStore != nil),
		slog.Bool("archive", deps.Archiver != nil),
	)

	g, ctx := errgroup.WithContext(ctx)

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.base, ws.Config{
			Mode:           a.cfg.Mode,
			AllowedOrigins: a.cfg.Server.CORSOrigins,
			Snapshot: func(ctx context.Context) (any, error) {
				return svc.Statistics(ctx)
			},
		})
		g.Go(func() error { return hub.Run(ctx) })
	}

	httpLog := a.base.With(slog.String("component", "handler"))
	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(deps.HealthChecks, httpLog),
		Round:   handler.NewRoundHandler(svc, httpLog),
		History: handler.NewHistoryHandler(svc, httpLog),
	}
	srv := server.NewServer(server.Config{
		Port:               a.cfg.Server.Port,
		CORSOrigins:        a.cfg.Server.CORSOrigins,
		APIKey:             a.cfg.Server.APIKey,
		RateLimitPerMinute: a.cfg.Server.RateLimitPerMinute,
	}, handlers, deps.RateLimiter, hub, a.base)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		timeout := a.cfg.Server.ShutdownTimeout.Duration
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
