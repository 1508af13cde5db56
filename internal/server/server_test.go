package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/parimutuel/internal/ledger"
	"github.com/alanyoungcy/parimutuel/internal/server/handler"
	"github.com/alanyoungcy/parimutuel/internal/service"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, nil
}

func newTestHandler(t *testing.T, cfg Config, limiter *denyLimiter) http.Handler {
	t.Helper()
	logger := discardLogger()
	svc := service.NewRoundService(ledger.DefaultParams(), 2, logger)
	handlers := Handlers{
		Health:  handler.NewHealthHandler(nil, logger),
		Round:   handler.NewRoundHandler(svc, logger),
		History: handler.NewHistoryHandler(svc, logger),
	}
	if limiter != nil {
		return NewHandler(cfg, handlers, limiter, nil, logger)
	}
	return NewHandler(cfg, handlers, nil, nil, logger)
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestServer_RoundLifecycle(t *testing.T) {
	h := newTestHandler(t, Config{}, nil)

	rec := do(t, h, http.MethodGet, "/api/round", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "no active round yet")

	rec = do(t, h, http.MethodPost, "/api/round", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	for _, o := range []string{"Horse1", "Horse2", "Horse3"} {
		rec = do(t, h, http.MethodPost, "/api/round/outcomes", `{"outcome_id":"`+o+`"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec = do(t, h, http.MethodPost, "/api/round/outcomes", `{"outcome_id":"Horse1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	bets := []string{
		`{"bettor_id":"player1","outcome_id":"Horse1","amount":"100"}`,
		`{"bettor_id":"player2","outcome_id":"Horse2","amount":200}`,
		`{"bettor_id":"player3","outcome_id":"Horse1","amount":"150"}`,
		`{"bettor_id":"player4","outcome_id":"Horse3","amount":"50"}`,
	}
	for _, b := range bets {
		rec = do(t, h, http.MethodPost, "/api/round/bets", b)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	assert.Equal(t, "500", decode(t, rec)["total_pool"])

	rec = do(t, h, http.MethodGet, "/api/round/odds", "")
	require.Equal(t, http.StatusOK, rec.Code)
	odds := decode(t, rec)["odds"].([]any)
	require.Len(t, odds, 3)
	assert.Equal(t, "1", odds[0].(map[string]any)["odds"])
	assert.Equal(t, "9", odds[2].(map[string]any)["odds"])

	rec = do(t, h, http.MethodGet, "/api/round/bets?outcome_id=Horse1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["bets"], 2)

	rec = do(t, h, http.MethodPost, "/api/round/settle", `{"winning_outcome":"Horse1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code, "settling an open round")

	rec = do(t, h, http.MethodPost, "/api/round/close", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/round/bets", bets[0])
	assert.Equal(t, http.StatusConflict, rec.Code, "betting after close")

	rec = do(t, h, http.MethodPost, "/api/round/settle", `{"winning_outcome":"Horse1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	payouts := decode(t, rec)["payouts"].(map[string]any)
	assert.Equal(t, "170", payouts["player1"])
	assert.Equal(t, "255", payouts["player3"])
}

func TestServer_BetErrorMapping(t *testing.T) {
	h := newTestHandler(t, Config{}, nil)
	maxBody := `{"house_commission":"0.15","minimum_bet":"5","maximum_bet":"1000"}`
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/round", maxBody).Code)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/round/outcomes", `{"outcome_id":"A"}`).Code)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"below minimum", `{"bettor_id":"p","outcome_id":"A","amount":"4.99"}`, http.StatusUnprocessableEntity},
		{"above maximum", `{"bettor_id":"p","outcome_id":"A","amount":"1000.01"}`, http.StatusUnprocessableEntity},
		{"unknown outcome", `{"bettor_id":"p","outcome_id":"Z","amount":"10"}`, http.StatusNotFound},
		{"empty bettor", `{"bettor_id":"","outcome_id":"A","amount":"10"}`, http.StatusBadRequest},
		{"bad json", `{"bettor_id":`, http.StatusBadRequest},
		{"unknown field", `{"bettor":"p","outcome_id":"A","amount":"10"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/round/bets", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestServer_IdempotentBetPlacement(t *testing.T) {
	h := newTestHandler(t, Config{}, nil)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/round", "").Code)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/round/outcomes", `{"outcome_id":"A"}`).Code)

	body := `{"bettor_id":"p","outcome_id":"A","amount":"5"}`
	first := do(t, h, http.MethodPost, "/api/round/bets", body, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, first.Code)
	retry := do(t, h, http.MethodPost, "/api/round/bets", body, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusOK, retry.Code)
	assert.JSONEq(t, first.Body.String(), retry.Body.String())

	rec := do(t, h, http.MethodGet, "/api/round", "")
	assert.Equal(t, float64(1), decode(t, rec)["bet_count"])
}

func TestServer_OpenRoundRejectsBadParams(t *testing.T) {
	h := newTestHandler(t, Config{}, nil)
	rec := do(t, h, http.MethodPost, "/api/round", `{"house_commission":"1.5"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "house commission")
}

func TestServer_ValidateBet(t *testing.T) {
	h := newTestHandler(t, Config{}, nil)
	assert.Equal(t, http.StatusNotFound,
		do(t, h, http.MethodPost, "/api/round/bets/validate", `{"outcome_id":"A","amount":"5"}`).Code)

	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/round", "").Code)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/round/outcomes", `{"outcome_id":"A"}`).Code)

	rec := do(t, h, http.MethodPost, "/api/round/bets/validate", `{"outcome_id":"A","amount":"5"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["valid"])

	rec = do(t, h, http.MethodPost, "/api/round/bets/validate", `{"outcome_id":"A","amount":"0.5"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, false, out["valid"])
	assert.Contains(t, out["reason"], "below minimum")
}

func TestServer_RoundStatsByID(t *testing.T) {
	h := newTestHandler(t, Config{}, nil)
	rec := do(t, h, http.MethodPost, "/api/round", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	id, _ := decode(t, rec)["round_id"].(string)
	require.NotEmpty(t, id)

	rec = do(t, h, http.MethodGet, "/api/rounds/"+id+"/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, decode(t, rec)["round_id"])

	rec = do(t, h, http.MethodGet, "/api/rounds/unknown/stats", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_HistoryUnavailableWithoutJournal(t *testing.T) {
	h := newTestHandler(t, Config{}, nil)
	for _, path := range []string{"/api/rounds", "/api/rounds/r1", "/api/rounds/r1/payouts", "/api/rounds/r1/archive", "/api/round/events"} {
		rec := do(t, h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestServer_AuthGuardsMutations(t *testing.T) {
	h := newTestHandler(t, Config{APIKey: "secret"}, nil)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/health", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/api/round", "").Code)
	assert.Equal(t, http.StatusUnauthorized,
		do(t, h, http.MethodPost, "/api/round", "", "Authorization", "Bearer wrong").Code)
	assert.Equal(t, http.StatusCreated,
		do(t, h, http.MethodPost, "/api/round", "", "Authorization", "Bearer secret").Code)
	assert.Equal(t, http.StatusOK,
		do(t, h, http.MethodGet, "/api/round", "").Code, "reads need no key")
}

func TestServer_RateLimitedBets(t *testing.T) {
	h := newTestHandler(t, Config{RateLimitPerMinute: 1}, &denyLimiter{})
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/round", "").Code)

	rec := do(t, h, http.MethodPost, "/api/round/bets", `{"bettor_id":"p","outcome_id":"A","amount":"5"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealth_ReportsDependencies(t *testing.T) {
	logger := discardLogger()
	hh := handler.NewHealthHandler(map[string]handler.Pinger{
		"redis":    handler.PingFunc(func(context.Context) error { return nil }),
		"postgres": failingPinger{},
	}, logger)

	rec := httptest.NewRecorder()
	hh.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "degraded", out["status"])
	deps := out["dependencies"].(map[string]any)
	assert.Equal(t, "ok", deps["redis"])
	assert.Equal(t, "down", deps["postgres"])
}

func TestServer_CORSPreflight(t *testing.T) {
	h := newTestHandler(t, Config{CORSOrigins: []string{"https://tote.example"}}, nil)
	rec := do(t, h, http.MethodOptions, "/api/round/bets", "", "Origin", "https://tote.example")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://tote.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, h, http.MethodOptions, "/api/round/bets", "", "Origin", "https://evil.example")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
