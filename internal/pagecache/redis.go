package pagecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/conneroisu/frontpage/internal/page"
)

// DefaultRedisPrefix prefixes every key written by RedisStore.
const DefaultRedisPrefix = "frontpage:page:"

// RedisStore shares pages between instances through Redis.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps client. An empty prefix uses DefaultRedisPrefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Get returns the page stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) (*page.CachedPage, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get cached page: %w", err)
	}
	p, err := page.DecodeCachedPage(data)
	if errors.Is(err, page.ErrCachedPageVersion) {
		return nil, ErrMiss
	}
	return p, err
}

// Set stores p under key with ttl. A zero ttl stores without expiry.
func (s *RedisStore) Set(ctx context.Context, key string, p *page.CachedPage, ttl time.Duration) error {
	data, err := p.Encode()
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("set cached page: %w", err)
	}
	return nil
}

// Flush deletes every key under the store's prefix.
func (s *RedisStore) Flush(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("scan cached pages: %w", err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete cached pages: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
