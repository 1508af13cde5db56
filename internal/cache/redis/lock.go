package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// unlockLua deletes the lock only while it still holds the caller's token.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// extendLua pushes the expiry out only while the lock holds the caller's
// token. It returns 0 once the lock has been lost.
const extendLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`

// lockCallTimeout bounds the renew and release calls, which run detached
// from the caller's context.
const lockCallTimeout = 5 * time.Second

// LockManager implements domain.LockManager with SET NX PX, a token-checked
// renewal loop and a token-checked release. The round service holds
// "round:active" for as long as a replica runs an unsettled round.
type LockManager struct {
	rdb      *redis.Client
	unlockSc *redis.Script
	extendSc *redis.Script
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:      c.Underlying(),
		unlockSc: redis.NewScript(unlockLua),
		extendSc: redis.NewScript(extendLua),
	}
}

func lockKey(key string) string { return "lock:" + key }

// Hold takes the lock for ttl and renews it every ttl/3 in the background.
// It returns domain.ErrLockHeld when someone else holds it. release stops the
// renewal and deletes the lock if it is still ours; it is idempotent.
func (lm *LockManager) Hold(ctx context.Context, key string, ttl time.Duration) (func(), <-chan struct{}, error) {
	token := uuid.NewString()
	lk := lockKey(key)

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, nil, fmt.Errorf("redis: lock %s: %w", key, domain.ErrLockHeld)
	}

	bg := context.WithoutCancel(ctx)
	stop := make(chan struct{})
	lost := make(chan struct{})
	go lm.renew(bg, lk, token, ttl, stop, lost)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			uctx, cancel := context.WithTimeout(bg, lockCallTimeout)
			defer cancel()
			_ = lm.unlockSc.Run(uctx, lm.rdb, []string{lk}, token).Err()
		})
	}
	return release, lost, nil
}

// renew extends the lock until stop closes. A failed call is retried on the
// next tick; a foreign or missing token closes lost and ends the loop.
func (lm *LockManager) renew(ctx context.Context, lk, token string, ttl time.Duration, stop <-chan struct{}, lost chan<- struct{}) {
	interval := ttl / 3
	if interval <= 0 {
		interval = ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		rctx, cancel := context.WithTimeout(ctx, lockCallTimeout)
		n, err := lm.extendSc.Run(rctx, lm.rdb, []string{lk}, token, ttl.Milliseconds()).Int()
		cancel()
		if err != nil {
			continue
		}
		if n == 0 {
			close(lost)
			return
		}
	}
}

var _ domain.LockManager = (*LockManager)(nil)
