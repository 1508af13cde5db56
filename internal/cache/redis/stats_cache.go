package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// StatsCache implements domain.StatsCache. Each round's latest snapshot is a
// JSON blob in a hash so readers on other replicas can serve it without
// touching the ledger.
//
// Key schema:
//
//	round:stats:{id} - hash with fields "data" (JSON Stats) and "status"
type StatsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStatsCache creates a StatsCache. A non-positive ttl keeps entries until
// they are invalidated.
func NewStatsCache(c *Client, ttl time.Duration) *StatsCache {
	return &StatsCache{rdb: c.Underlying(), ttl: ttl}
}

func statsKey(roundID string) string { return "round:stats:" + roundID }

// SetStats replaces the cached snapshot of stats.RoundID.
func (sc *StatsCache) SetStats(ctx context.Context, stats domain.Stats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("redis: marshal stats %s: %w", stats.RoundID, err)
	}

	key := statsKey(stats.RoundID)
	pipe := sc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data, "status", string(stats.Status))
	if sc.ttl > 0 {
		pipe.Expire(ctx, key, sc.ttl)
	} else {
		pipe.Persist(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set stats %s: %w", stats.RoundID, err)
	}
	return nil
}

// GetStats returns the cached snapshot, or domain.ErrNotFound on a miss.
func (sc *StatsCache) GetStats(ctx context.Context, roundID string) (domain.Stats, error) {
	data, err := sc.rdb.HGet(ctx, statsKey(roundID), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Stats{}, domain.ErrNotFound
		}
		return domain.Stats{}, fmt.Errorf("redis: get stats %s: %w", roundID, err)
	}

	var stats domain.Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return domain.Stats{}, fmt.Errorf("redis: unmarshal stats %s: %w", roundID, err)
	}
	return stats, nil
}

// Invalidate drops the cached snapshot.
func (sc *StatsCache) Invalidate(ctx context.Context, roundID string) error {
	if err := sc.rdb.Del(ctx, statsKey(roundID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate stats %s: %w", roundID, err)
	}
	return nil
}

var _ domain.StatsCache = (*StatsCache)(nil)
