package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/videostreampro/adserver/config"
)

// IdentityCache is a Redis-backed TTL cache of verified viewer
// identities, keyed by token hash. Invalidate removes every cached entry
// for a user on logout.
type IdentityCache interface {
	Get(ctx context.Context, token string) (*Identity, error)
	Set(ctx context.Context, token string, identity *Identity) error
	Invalidate(ctx context.Context, userID string) error
}

// IdentityCacheImpl implements IdentityCache on go-redis
type IdentityCacheImpl struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewIdentityCache creates a new identity cache instance
func NewIdentityCache(client *redis.Client, cfg *config.AuthProviderConfig, prefix string) IdentityCache {
	return &IdentityCacheImpl{
		client: client,
		prefix: prefix,
		ttl:    cfg.CacheTTL,
	}
}

func (c *IdentityCacheImpl) tokenKey(token string) string {
	// Tokens are secrets; only their hash is used as a cache key.
	sum := sha256.Sum256([]byte(token))
	return c.prefix + "identity:token:" + hex.EncodeToString(sum[:])
}

func (c *IdentityCacheImpl) userKey(userID string) string {
	return c.prefix + "identity:user:" + userID
}

// Get returns the cached identity for a token, or nil on a miss
func (c *IdentityCacheImpl) Get(ctx context.Context, token string) (*Identity, error) {
	data, err := c.client.Get(ctx, c.tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read identity cache: %w", err)
	}

	var identity Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return nil, fmt.Errorf("failed to decode cached identity: %w", err)
	}
	return &identity, nil
}

// Set caches the identity for a token and indexes the token under the
// user for later invalidation
func (c *IdentityCacheImpl) Set(ctx context.Context, token string, identity *Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}

	key := c.tokenKey(token)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, data, c.ttl)
	pipe.SAdd(ctx, c.userKey(identity.UserID), key)
	pipe.Expire(ctx, c.userKey(identity.UserID), c.ttl)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to write identity cache: %w", err)
	}
	return nil
}

// Invalidate drops every cached token entry for the user
func (c *IdentityCacheImpl) Invalidate(ctx context.Context, userID string) error {
	userKey := c.userKey(userID)
	keys, err := c.client.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to list cached tokens for user: %w", err)
	}

	pipe := c.client.TxPipeline()
	for _, key := range keys {
		pipe.Del(ctx, key)
	}
	pipe.Del(ctx, userKey)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to invalidate identity cache: %w", err)
	}
	return nil
}
