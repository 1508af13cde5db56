package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// RoundStore persists round metadata and lifecycle transitions.
type RoundStore interface {
	Create(ctx context.Context, round Round) error
	AddOutcome(ctx context.Context, roundID, outcomeID string, position int) error
	UpdateStatus(ctx context.Context, roundID string, status RoundStatus, at time.Time) error
	Settle(ctx context.Context, s Settlement) error
	SetArchivePath(ctx context.Context, roundID, path string) error
	GetByID(ctx context.Context, id string) (Round, error)
	List(ctx context.Context, opts ListOpts) ([]Round, error)
}

// BetStore journals accepted bets.
type BetStore interface {
	Insert(ctx context.Context, bet Bet) error
	ListByRound(ctx context.Context, roundID string, opts ListOpts) ([]Bet, error)
}

// PayoutStore persists settlement payouts.
type PayoutStore interface {
	InsertBatch(ctx context.Context, payouts []Payout) error
	ListByRound(ctx context.Context, roundID string) ([]Payout, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
