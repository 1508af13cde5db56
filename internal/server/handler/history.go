package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// HistoryService defines the journal and archive reads the history handler
// requires.
type HistoryService interface {
	ListRounds(ctx context.Context, opts domain.ListOpts) ([]domain.Round, error)
	GetRound(ctx context.Context, id string) (domain.Round, error)
	RoundBets(ctx context.Context, id string, opts domain.ListOpts) ([]domain.Bet, error)
	RoundPayouts(ctx context.Context, id string) ([]domain.Payout, error)
	Archive(ctx context.Context, id string) (io.ReadCloser, error)
	RoundStats(ctx context.Context, id string) (domain.Stats, error)
}

// HistoryHandler serves journaled and archived rounds.
type HistoryHandler struct {
	history HistoryService
	logger  *slog.Logger
}

// NewHistoryHandler creates a HistoryHandler with the given service and logger.
func NewHistoryHandler(history HistoryService, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{history: history, logger: logger}
}

// ListRounds returns journaled rounds, newest first.
// GET /api/rounds?limit=50&offset=0
func (h *HistoryHandler) ListRounds(w http.ResponseWriter, r *http.Request) {
	rounds, err := h.history.ListRounds(r.Context(), parseListOpts(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "list rounds", err)
		return
	}
	if rounds == nil {
		rounds = []domain.Round{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rounds": rounds})
}

// GetRound returns one journaled round.
// GET /api/rounds/{id}
func (h *HistoryHandler) GetRound(w http.ResponseWriter, r *http.Request) {
	round, err := h.history.GetRound(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "get round", err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

// GetRoundStats returns the live snapshot of a round, including rounds run
// by other replicas.
// GET /api/rounds/{id}/stats
func (h *HistoryHandler) GetRoundStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.history.RoundStats(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "get round stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ListBets returns the journaled bets of a round.
// GET /api/rounds/{id}/bets?limit=50&offset=0
func (h *HistoryHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	bets, err := h.history.RoundBets(r.Context(), r.PathValue("id"), parseListOpts(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "list round bets", err)
		return
	}
	if bets == nil {
		bets = []domain.Bet{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bets": bets})
}

// ListPayouts returns the journaled payouts of a round.
// GET /api/rounds/{id}/payouts
func (h *HistoryHandler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	payouts, err := h.history.RoundPayouts(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "list payouts", err)
		return
	}
	if payouts == nil {
		payouts = []domain.Payout{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"payouts": payouts})
}

// GetArchive streams the archived JSONL of a settled round.
// GET /api/rounds/{id}/archive
func (h *HistoryHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	body, err := h.history.Archive(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "get archive", err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "handler: archive stream interrupted",
			slog.String("round_id", r.PathValue("id")),
			slog.String("error", err.Error()),
		)
	}
}
