// Package app provides the top-level application lifecycle for the
// pari-mutuel round service. It wires the configured backends (Postgres
// journal, Redis cache and bus, S3 archive, notifications) into the round
// service and runs the selected mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/parimutuel/internal/config"
	"github.com/alanyoungcy/parimutuel/internal/service"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	// base is the untagged logger handed to components, which add their own
	// component attribute.
	base    *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
		base:   logger,
	}
}

// Run wires the dependencies the mode needs, runs the mode and blocks until it
// finishes or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.base)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	svc := a.newRoundService(deps)
	a.closers = append(a.closers, svc.Close)

	switch strings.ToLower(a.cfg.Mode) {
	case "demo":
		return a.DemoMode(ctx, svc)
	case "server", "full":
		return a.ServerMode(ctx, svc, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// newRoundService attaches every wired backend to a fresh round service.
func (a *App) newRoundService(deps *Dependencies) *service.RoundService {
	svc := service.NewRoundService(a.cfg.Round.Params(), int32(a.cfg.Round.CurrencyPlaces), a.base).
		WithNotifier(deps.Notifier)
	if deps.RoundStore != nil {
		svc.WithJournal(deps.RoundStore, deps.BetStore, deps.PayoutStore).WithAudit(deps.AuditStore)
	}
	if deps.SignalBus != nil {
		svc.WithStatsCache(deps.StatsCache).
			WithSignalBus(deps.SignalBus).
			WithLocks(deps.LockManager, a.cfg.Redis.LockTTL.Duration)
	}
	if deps.Archiver != nil {
		svc.WithArchive(deps.Archiver, deps.BlobReader)
	}
	return svc
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
