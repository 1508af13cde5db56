// Package server exposes the round service over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/parimutuel/internal/domain"
	"github.com/alanyoungcy/parimutuel/internal/server/handler"
	"github.com/alanyoungcy/parimutuel/internal/server/middleware"
	"github.com/alanyoungcy/parimutuel/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port               int
	CORSOrigins        []string
	APIKey             string // if empty, authentication is disabled
	RateLimitPerMinute int    // bet placements per client IP; 0 disables
}

// Handlers aggregates all HTTP handlers that the server registers.
type Handlers struct {
	Health  *handler.HealthHandler
	Round   *handler.RoundHandler
	History *handler.HistoryHandler
}

// Server is the HTTP + WebSocket API of the round ledger.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in CORS, logging and
// auth middleware. limiter and wsHub may be nil.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           NewHandler(cfg, handlers, limiter, wsHub, logger),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(cfg Config, handlers Handlers, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Active round.
	rh := handlers.Round
	mux.HandleFunc("GET /api/round", rh.GetRound)
	mux.HandleFunc("POST /api/round", rh.OpenRound)
	mux.HandleFunc("POST /api/round/outcomes", rh.AddOutcome)
	mux.HandleFunc("GET /api/round/odds", rh.GetOdds)
	mux.HandleFunc("POST /api/round/bets/validate", rh.ValidateBet)
	mux.Handle("POST /api/round/bets",
		middleware.RateLimit(limiter, "bets", cfg.RateLimitPerMinute, time.Minute, logger)(http.HandlerFunc(rh.PlaceBet)))
	mux.HandleFunc("GET /api/round/bets", rh.ListBets)
	mux.HandleFunc("GET /api/round/events", rh.ListEvents)
	mux.HandleFunc("POST /api/round/close", rh.CloseBetting)
	mux.HandleFunc("POST /api/round/settle", rh.Settle)

	// History.
	if hh := handlers.History; hh != nil {
		mux.HandleFunc("GET /api/rounds", hh.ListRounds)
		mux.HandleFunc("GET /api/rounds/{id}", hh.GetRound)
		mux.HandleFunc("GET /api/rounds/{id}/stats", hh.GetRoundStats)
		mux.HandleFunc("GET /api/rounds/{id}/bets", hh.ListBets)
		mux.HandleFunc("GET /api/rounds/{id}/payouts", hh.ListPayouts)
		mux.HandleFunc("GET /api/rounds/{id}/archive", hh.GetArchive)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
