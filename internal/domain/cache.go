package domain

import (
	"context"
	"time"
)

// StatsCache holds the latest published snapshot of each round.
type StatsCache interface {
	SetStats(ctx context.Context, stats Stats) error
	GetStats(ctx context.Context, roundID string) (Stats, error)
	Invalidate(ctx context.Context, roundID string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	// Hold takes key and keeps renewing it for ttl until release is called.
	// lost is closed if the lock expires or is taken over before release.
	// A key held elsewhere returns ErrLockHeld.
	Hold(ctx context.Context, key string, ttl time.Duration) (release func(), lost <-chan struct{}, err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string `json:"id"`
	Payload []byte `json:"payload"`
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
