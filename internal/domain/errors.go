package domain

import "errors"

// Round ledger errors. Each is a distinct kind so callers can map it with
// errors.Is; the ledger wraps them with context.
var (
	ErrConfig           = errors.New("invalid round configuration")
	ErrInvalidState     = errors.New("operation not allowed in current round status")
	ErrBetTooSmall      = errors.New("bet amount below minimum")
	ErrBetTooLarge      = errors.New("bet amount above maximum")
	ErrUnknownOutcome   = errors.New("unknown outcome")
	ErrDuplicateOutcome = errors.New("outcome already registered")
	ErrInvalidBettor    = errors.New("invalid bettor id")
	ErrNoActiveRound    = errors.New("no active round")
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")
	ErrUnavailable   = errors.New("backing service not configured")
)
