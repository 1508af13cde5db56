package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// PayoutStore implements domain.PayoutStore using PostgreSQL.
type PayoutStore struct {
	pool *pgxpool.Pool
}

// NewPayoutStore creates a new PayoutStore backed by the given connection pool.
func NewPayoutStore(pool *pgxpool.Pool) *PayoutStore {
	return &PayoutStore{pool: pool}
}

// InsertBatch writes every payout of a settlement in a single batch. The
// slice order is kept in the position column.
func (s *PayoutStore) InsertBatch(ctx context.Context, payouts []domain.Payout) error {
	if len(payouts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO payouts (round_id, bettor_id, position, stake, amount)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (round_id, bettor_id) DO NOTHING`

	for i, p := range payouts {
		batch.Queue(query, p.RoundID, p.BettorID, i, p.Stake, p.Amount)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range payouts {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert payout batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListByRound returns the payouts of a round in settlement order.
func (s *PayoutStore) ListByRound(ctx context.Context, roundID string) ([]domain.Payout, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT round_id, bettor_id, stake, amount FROM payouts WHERE round_id = $1 ORDER BY position`,
		roundID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list payouts %s: %w", roundID, err)
	}
	defer rows.Close()

	var payouts []domain.Payout
	for rows.Next() {
		var p domain.Payout
		if err := rows.Scan(&p.RoundID, &p.BettorID, &p.Stake, &p.Amount); err != nil {
			return nil, fmt.Errorf("postgres: scan payout: %w", err)
		}
		payouts = append(payouts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list payouts rows: %w", err)
	}
	return payouts, nil
}
