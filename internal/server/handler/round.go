package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/parimutuel/internal/domain"
	"github.com/alanyoungcy/parimutuel/internal/service"
)

// RoundService defines the methods the round handler requires from the
// service layer.
type RoundService interface {
	OpenRound(ctx context.Context, overrides service.RoundOverrides) (domain.Stats, error)
	AddOutcome(ctx context.Context, outcomeID string) (domain.Stats, error)
	ValidateBet(ctx context.Context, amount decimal.Decimal, outcomeID string) error
	PlaceBetOnce(ctx context.Context, key, bettorID, outcomeID string, amount decimal.Decimal) (service.PlacedBet, bool, error)
	CloseBetting(ctx context.Context) (domain.Stats, error)
	Settle(ctx context.Context, winningOutcome string) (domain.Settlement, error)
	Statistics(ctx context.Context) (domain.Stats, error)
	Odds(ctx context.Context) ([]domain.OutcomeOdds, error)
	Bets(ctx context.Context, outcomeID string) ([]domain.Bet, error)
	Events(ctx context.Context, after string, count int) ([]domain.StreamMessage, error)
}

// RoundHandler serves the active-round endpoints.
type RoundHandler struct {
	rounds RoundService
	logger *slog.Logger
}

// NewRoundHandler creates a RoundHandler with the given service and logger.
func NewRoundHandler(rounds RoundService, logger *slog.Logger) *RoundHandler {
	return &RoundHandler{rounds: rounds, logger: logger}
}

type openRoundRequest struct {
	HouseCommission *decimal.Decimal `json:"house_commission"`
	MinimumBet      *decimal.Decimal `json:"minimum_bet"`
	MaximumBet      *decimal.Decimal `json:"maximum_bet"` // 0 removes the cap
}

type outcomeRequest struct {
	OutcomeID string `json:"outcome_id"`
}

type validateBetRequest struct {
	OutcomeID string          `json:"outcome_id"`
	Amount    decimal.Decimal `json:"amount"`
}

type placeBetRequest struct {
	BettorID  string          `json:"bettor_id"`
	OutcomeID string          `json:"outcome_id"`
	Amount    decimal.Decimal `json:"amount"`
}

type settleRequest struct {
	WinningOutcome string `json:"winning_outcome"`
}

// GetRound returns statistics of the active round.
// GET /api/round
func (h *RoundHandler) GetRound(w http.ResponseWriter, r *http.Request) {
	stats, err := h.rounds.Statistics(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "get round", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// OpenRound discards the active round and opens a new one. The body is
// optional.
// POST /api/round
func (h *RoundHandler) OpenRound(w http.ResponseWriter, r *http.Request) {
	var req openRoundRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	overrides := service.RoundOverrides{
		HouseCommission: req.HouseCommission,
		MinimumBet:      req.MinimumBet,
	}
	if req.MaximumBet != nil {
		maxBet := decimal.NullDecimal{}
		if !req.MaximumBet.IsZero() {
			maxBet = decimal.NewNullDecimal(*req.MaximumBet)
		}
		overrides.MaximumBet = &maxBet
	}

	stats, err := h.rounds.OpenRound(r.Context(), overrides)
	if err != nil {
		writeServiceError(w, r, h.logger, "open round", err)
		return
	}
	writeJSON(w, http.StatusCreated, stats)
}

// AddOutcome registers an outcome on the active round.
// POST /api/round/outcomes
func (h *RoundHandler) AddOutcome(w http.ResponseWriter, r *http.Request) {
	var req outcomeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stats, err := h.rounds.AddOutcome(r.Context(), req.OutcomeID)
	if err != nil {
		writeServiceError(w, r, h.logger, "add outcome", err)
		return
	}
	writeJSON(w, http.StatusCreated, stats)
}

// GetOdds returns the odds board of the active round.
// GET /api/round/odds
func (h *RoundHandler) GetOdds(w http.ResponseWriter, r *http.Request) {
	odds, err := h.rounds.Odds(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "get odds", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"odds": odds})
}

// ValidateBet reports whether a bet would be accepted without placing it.
// Rejections are answered with 200 and the reason so clients can pre-check.
// POST /api/round/bets/validate
func (h *RoundHandler) ValidateBet(w http.ResponseWriter, r *http.Request) {
	var req validateBetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err := h.rounds.ValidateBet(r.Context(), req.Amount, req.OutcomeID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"valid": true})
	case errors.Is(err, domain.ErrNoActiveRound), statusFor(err) == http.StatusInternalServerError:
		writeServiceError(w, r, h.logger, "validate bet", err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "reason": err.Error()})
	}
}

// PlaceBet records a bet on the active round. A retried request carrying the
// same Idempotency-Key header gets the original bet back with 200.
// POST /api/round/bets
func (h *RoundHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var req placeBetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	key := r.Header.Get("Idempotency-Key")
	placed, replayed, err := h.rounds.PlaceBetOnce(r.Context(), key, req.BettorID, req.OutcomeID, req.Amount)
	if err != nil {
		writeServiceError(w, r, h.logger, "place bet", err)
		return
	}
	if replayed {
		writeJSON(w, http.StatusOK, placed)
		return
	}
	writeJSON(w, http.StatusCreated, placed)
}

// ListBets returns accepted bets of the active round.
// GET /api/round/bets?outcome_id=...
func (h *RoundHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	bets, err := h.rounds.Bets(r.Context(), r.URL.Query().Get("outcome_id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "list bets", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bets": bets})
}

// CloseBetting stops the active round from taking bets.
// POST /api/round/close
func (h *RoundHandler) CloseBetting(w http.ResponseWriter, r *http.Request) {
	stats, err := h.rounds.CloseBetting(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "close betting", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Settle pays out the active round.
// POST /api/round/settle
func (h *RoundHandler) Settle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := h.rounds.Settle(r.Context(), req.WinningOutcome)
	if err != nil {
		writeServiceError(w, r, h.logger, "settle", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type eventResponse struct {
	ID    string             `json:"id"`
	Event *domain.RoundEvent `json:"event,omitempty"`
	Raw   string             `json:"raw,omitempty"`
}

// ListEvents replays the durable round event stream.
// GET /api/round/events?after=<stream id>&count=100
func (h *RoundHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	count := 100
	if v := q.Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "count must be a positive integer")
			return
		}
		count = min(n, 1000)
	}

	msgs, err := h.rounds.Events(r.Context(), q.Get("after"), count)
	if err != nil {
		writeServiceError(w, r, h.logger, "list events", err)
		return
	}

	out := make([]eventResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, decodeEvent(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

func decodeEvent(m domain.StreamMessage) eventResponse {
	var ev domain.RoundEvent
	if err := json.Unmarshal(m.Payload, &ev); err != nil {
		return eventResponse{ID: m.ID, Raw: string(m.Payload)}
	}
	return eventResponse{ID: m.ID, Event: &ev}
}
