package locking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefixLock = "frontpage:lock:"

	defaultLockTTL      = 30 * time.Second
	defaultPollInterval = 50 * time.Millisecond
)

// releaseScript deletes the key only while it still carries our owner id.
// string.find runs in plain mode so hyphens in the uuid are not patterns.
var releaseScript = redis.NewScript(`
local val = redis.call("get", KEYS[1])
if val and string.find(val, ARGV[1], 1, true) == 1 then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker locks keys across processes with SET NX and a TTL. A crashed
// owner's lock expires after the TTL.
type RedisLocker struct {
	client       redis.UniversalClient
	ownerID      string
	ttl          time.Duration
	pollInterval time.Duration
}

// RedisLockerConfig configures a RedisLocker.
type RedisLockerConfig struct {
	TTL          time.Duration
	PollInterval time.Duration
}

// NewRedisLocker returns a locker with a fresh owner id.
func NewRedisLocker(client redis.UniversalClient, cfg RedisLockerConfig) *RedisLocker {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultLockTTL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &RedisLocker{
		client:       client,
		ownerID:      uuid.New().String(),
		ttl:          cfg.TTL,
		pollInterval: cfg.PollInterval,
	}
}

// OwnerID identifies this locker in lock values.
func (l *RedisLocker) OwnerID() string {
	return l.ownerID
}

// Acquire polls until the lock is set or ctx is done.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (Lock, error) {
	lockKey := keyPrefixLock + key
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		value := fmt.Sprintf("%s:%d", l.ownerID, time.Now().UnixNano())
		acquired, err := l.client.SetNX(ctx, lockKey, value, l.ttl).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if acquired {
			return &redisLock{client: l.client, key: lockKey, owner: l.ownerID + ":"}, nil
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrLockNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}
}

type redisLock struct {
	mu       sync.Mutex
	client   redis.UniversalClient
	key      string
	owner    string
	released bool
}

func (r *redisLock) Release(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil
	}
	r.released = true
	err := releaseScript.Run(ctx, r.client, []string{r.key}, r.owner).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
