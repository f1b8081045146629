package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zeventbooks/eventpulse/internal/model"
)

// Auth cache settings.
const (
	authKeyPrefix = "auth:"

	// AuthContextTTL bounds how long a revoked key keeps working.
	AuthContextTTL = 5 * time.Minute
)

// GetAuthContext retrieves a cached auth context by hashed key.
// Returns ErrCacheMiss when not cached.
func (c *Cache) GetAuthContext(ctx context.Context, hashedKey string) (*model.AuthContext, error) {
	data, err := c.client.Get(ctx, authKeyPrefix+hashedKey).Result()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var authCtx model.AuthContext
	if err := json.Unmarshal([]byte(data), &authCtx); err != nil {
		return nil, fmt.Errorf("unmarshal auth context: %w", err)
	}

	return &authCtx, nil
}

// SetAuthContext caches an auth context keyed by hashed API key.
func (c *Cache) SetAuthContext(ctx context.Context, hashedKey string, authCtx *model.AuthContext) error {
	data, err := json.Marshal(authCtx)
	if err != nil {
		return fmt.Errorf("marshal auth context: %w", err)
	}

	if err := c.client.Set(ctx, authKeyPrefix+hashedKey, data, AuthContextTTL).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

// DeleteAuthContext evicts a cached auth context (key revocation).
func (c *Cache) DeleteAuthContext(ctx context.Context, hashedKey string) error {
	if err := c.client.Del(ctx, authKeyPrefix+hashedKey).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}
