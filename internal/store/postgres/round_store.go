package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// RoundStore implements domain.RoundStore using PostgreSQL.
type RoundStore struct {
	pool *pgxpool.Pool
}

// NewRoundStore creates a new RoundStore backed by the given connection pool.
func NewRoundStore(pool *pgxpool.Pool) *RoundStore {
	return &RoundStore{pool: pool}
}

// Create inserts a round together with any outcomes it already carries.
func (s *RoundStore) Create(ctx context.Context, r domain.Round) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin create round %s: %w", r.ID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const query = `
		INSERT INTO rounds (
			id, status, house_commission, minimum_bet, maximum_bet,
			total_pool, bet_count, opened_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = tx.Exec(ctx, query,
		r.ID, string(r.Status),
		r.Params.HouseCommission, r.Params.MinimumBet, r.Params.MaximumBet,
		r.TotalPool, r.BetCount, r.OpenedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: create round %s: %w", r.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create round %s: %w", r.ID, err)
	}

	if len(r.Outcomes) > 0 {
		batch := &pgx.Batch{}
		for i, o := range r.Outcomes {
			batch.Queue(`INSERT INTO round_outcomes (round_id, outcome_id, position, total) VALUES ($1, $2, $3, $4)`,
				r.ID, o.OutcomeID, i, o.Total)
		}
		br := tx.SendBatch(ctx, batch)
		for i := range r.Outcomes {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("postgres: create round %s outcome %d: %w", r.ID, i, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("postgres: create round %s outcomes: %w", r.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit create round %s: %w", r.ID, err)
	}
	return nil
}

// AddOutcome registers an outcome with zero stake at the given position.
func (s *RoundStore) AddOutcome(ctx context.Context, roundID, outcomeID string, position int) error {
	const query = `INSERT INTO round_outcomes (round_id, outcome_id, position) VALUES ($1, $2, $3)`
	if _, err := s.pool.Exec(ctx, query, roundID, outcomeID, position); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: add outcome %s/%s: %w", roundID, outcomeID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: add outcome %s/%s: %w", roundID, outcomeID, err)
	}
	return nil
}

// UpdateStatus moves a round to status, stamping closed_at or settled_at.
func (s *RoundStore) UpdateStatus(ctx context.Context, roundID string, status domain.RoundStatus, at time.Time) error {
	var query string
	switch status {
	case domain.RoundStatusClosed:
		query = `UPDATE rounds SET status = $2, closed_at = $3 WHERE id = $1`
	case domain.RoundStatusSettled:
		query = `UPDATE rounds SET status = $2, settled_at = $3 WHERE id = $1`
	default:
		query = `UPDATE rounds SET status = $2, opened_at = $3 WHERE id = $1`
	}
	tag, err := s.pool.Exec(ctx, query, roundID, string(status), at)
	if err != nil {
		return fmt.Errorf("postgres: update round %s status: %w", roundID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Settle records the settlement summary on the round row. Payouts are written
// separately through PayoutStore.
func (s *RoundStore) Settle(ctx context.Context, st domain.Settlement) error {
	const query = `
		UPDATE rounds SET
			status          = 'settled',
			winning_outcome = $2,
			total_pool      = $3,
			house_take      = $4,
			breakage        = $5,
			settled_at      = $6
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		st.RoundID, st.WinningOutcome, st.TotalPool, st.HouseTake, st.Breakage, st.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: settle round %s: %w", st.RoundID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetArchivePath stores where the settled round was archived.
func (s *RoundStore) SetArchivePath(ctx context.Context, roundID, path string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE rounds SET archive_path = $2 WHERE id = $1`, roundID, path)
	if err != nil {
		return fmt.Errorf("postgres: set archive path %s: %w", roundID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const roundCols = `id, status, house_commission, minimum_bet, maximum_bet,
	total_pool, bet_count, winning_outcome, house_take, breakage, archive_path,
	opened_at, closed_at, settled_at`

// scanRound scans a single round row into a domain.Round.
func scanRound(row pgx.Row) (domain.Round, error) {
	var (
		r                   domain.Round
		status              string
		winner, archive     *string
		houseTake, breakage decimal.NullDecimal
	)
	err := row.Scan(
		&r.ID, &status,
		&r.Params.HouseCommission, &r.Params.MinimumBet, &r.Params.MaximumBet,
		&r.TotalPool, &r.BetCount, &winner, &houseTake, &breakage, &archive,
		&r.OpenedAt, &r.ClosedAt, &r.SettledAt,
	)
	if err != nil {
		return domain.Round{}, err
	}
	r.Status = domain.RoundStatus(status)
	if winner != nil {
		r.WinningOutcome = *winner
	}
	if archive != nil {
		r.ArchivePath = *archive
	}
	r.HouseTake = houseTake.Decimal
	r.Breakage = breakage.Decimal
	return r, nil
}

// GetByID retrieves a round and its outcomes in registration order.
func (s *RoundStore) GetByID(ctx context.Context, id string) (domain.Round, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+roundCols+` FROM rounds WHERE id = $1`, id)
	r, err := scanRound(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Round{}, domain.ErrNotFound
		}
		return domain.Round{}, fmt.Errorf("postgres: get round %s: %w", id, err)
	}

	outcomes, err := s.outcomes(ctx, []string{id})
	if err != nil {
		return domain.Round{}, err
	}
	r.Outcomes = outcomes[id]
	return r, nil
}

// List returns rounds newest first with pagination and optional time filtering.
func (s *RoundStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Round, error) {
	query, args := listQuery(`SELECT `+roundCols+` FROM rounds WHERE TRUE`, nil, "opened_at", "opened_at DESC", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rounds: %w", err)
	}
	defer rows.Close()

	var rounds []domain.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan round: %w", err)
		}
		rounds = append(rounds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list rounds rows: %w", err)
	}
	if len(rounds) == 0 {
		return rounds, nil
	}

	ids := make([]string, len(rounds))
	for i, r := range rounds {
		ids[i] = r.ID
	}
	outcomes, err := s.outcomes(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range rounds {
		rounds[i].Outcomes = outcomes[rounds[i].ID]
	}
	return rounds, nil
}

// outcomes loads the outcome totals of every given round, keyed by round id.
func (s *RoundStore) outcomes(ctx context.Context, roundIDs []string) (map[string][]domain.OutcomeTotal, error) {
	const query = `
		SELECT round_id, outcome_id, total
		FROM round_outcomes
		WHERE round_id = ANY($1)
		ORDER BY round_id, position`

	rows, err := s.pool.Query(ctx, query, roundIDs)
	if err != nil {
		return nil, fmt.Errorf("postgres: list outcomes: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.OutcomeTotal, len(roundIDs))
	for rows.Next() {
		var roundID string
		var o domain.OutcomeTotal
		if err := rows.Scan(&roundID, &o.OutcomeID, &o.Total); err != nil {
			return nil, fmt.Errorf("postgres: scan outcome: %w", err)
		}
		out[roundID] = append(out[roundID], o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list outcomes rows: %w", err)
	}
	return out, nil
}

// isUniqueViolation reports whether err is a Postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
