package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// BetStore implements domain.BetStore using PostgreSQL.
type BetStore struct {
	pool *pgxpool.Pool
}

// NewBetStore creates a new BetStore backed by the given connection pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

// Insert journals an accepted bet and bumps the outcome and round totals in
// the same transaction, so the journaled pool always equals the sum of bets.
func (s *BetStore) Insert(ctx context.Context, b domain.Bet) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin insert bet %s: %w", b.ID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertBet = `
		INSERT INTO bets (id, round_id, bettor_id, outcome_id, amount, odds_at_acceptance, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.Exec(ctx, insertBet,
		b.ID, b.RoundID, b.BettorID, b.OutcomeID, b.Amount, oddsToNull(b.Odds), b.PlacedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: insert bet %s: %w", b.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: insert bet %s: %w", b.ID, err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE round_outcomes SET total = total + $3 WHERE round_id = $1 AND outcome_id = $2`,
		b.RoundID, b.OutcomeID, b.Amount,
	); err != nil {
		return fmt.Errorf("postgres: bump outcome total %s/%s: %w", b.RoundID, b.OutcomeID, err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE rounds SET total_pool = total_pool + $2, bet_count = bet_count + 1 WHERE id = $1`,
		b.RoundID, b.Amount,
	); err != nil {
		return fmt.Errorf("postgres: bump round pool %s: %w", b.RoundID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit bet %s: %w", b.ID, err)
	}
	return nil
}

// ListByRound returns the bets of a round in acceptance order.
func (s *BetStore) ListByRound(ctx context.Context, roundID string, opts domain.ListOpts) ([]domain.Bet, error) {
	query, args := listQuery(`
		SELECT id, round_id, bettor_id, outcome_id, amount, odds_at_acceptance, placed_at
		FROM bets WHERE round_id = $1`, []any{roundID}, "placed_at", "seq", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets %s: %w", roundID, err)
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		var b domain.Bet
		var odds decimal.NullDecimal
		if err := rows.Scan(&b.ID, &b.RoundID, &b.BettorID, &b.OutcomeID, &b.Amount, &odds, &b.PlacedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan bet: %w", err)
		}
		b.Odds = oddsFromNull(odds)
		bets = append(bets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list bets rows: %w", err)
	}
	return bets, nil
}

// Unbounded odds are stored as NULL.
func oddsToNull(o domain.Odds) decimal.NullDecimal {
	v, ok := o.Decimal()
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(v)
}

func oddsFromNull(n decimal.NullDecimal) domain.Odds {
	if !n.Valid {
		return domain.UnboundedOdds()
	}
	return domain.NewOdds(n.Decimal)
}
