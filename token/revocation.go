package token

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RevokedTokenCache remembers revoked access tokens by jti until they expire.
type RevokedTokenCache interface {
	Add(ctx context.Context, jti string, exp time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// InMemoryRevokedTokenCache keeps revocations in the process; expired
// entries are dropped as they are looked up.
type InMemoryRevokedTokenCache struct {
	revoked map[string]time.Time
	nowFunc func() time.Time
	mu      sync.Mutex
}

func NewInMemoryRevokedTokenCache(nowFunc func() time.Time) *InMemoryRevokedTokenCache {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &InMemoryRevokedTokenCache{
		revoked: make(map[string]time.Time),
		nowFunc: nowFunc,
	}
}

func (c *InMemoryRevokedTokenCache) Add(_ context.Context, jti string, exp time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[jti] = exp
	return nil
}

func (c *InMemoryRevokedTokenCache) IsRevoked(_ context.Context, jti string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	exp, ok := c.revoked[jti]
	if !ok {
		return false, nil
	}
	if c.nowFunc().After(exp) {
		delete(c.revoked, jti)
		return false, nil
	}
	return true, nil
}

// RedisRevokedTokenCache shares revocations between backend instances; each
// entry carries a TTL matching the token's remaining lifetime.
type RedisRevokedTokenCache struct {
	client  redis.UniversalClient
	prefix  string
	nowFunc func() time.Time
}

func NewRedisRevokedTokenCache(client redis.UniversalClient, prefix string) *RedisRevokedTokenCache {
	return &RedisRevokedTokenCache{client: client, prefix: prefix + "revoked:", nowFunc: time.Now}
}

func (c *RedisRevokedTokenCache) Add(ctx context.Context, jti string, exp time.Time) error {
	ttl := exp.Sub(c.nowFunc())
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, c.prefix+jti, 1, ttl).Err(); err != nil {
		return errors.Wrap(err, "RedisRevokedTokenCache.Add")
	}
	return nil
}

func (c *RedisRevokedTokenCache) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := c.client.Exists(ctx, c.prefix+jti).Result()
	if err != nil {
		return false, errors.Wrap(err, "RedisRevokedTokenCache.IsRevoked")
	}
	return n > 0, nil
}
