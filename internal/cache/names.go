package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Name cache keys and TTL. Display names change rarely; a short TTL
// bounds staleness after a rename without hammering the registry.
const (
	sponsorNameKeyPrefix = "name:sponsor:"
	eventNameKeyPrefix   = "name:event:"

	// DefaultNameTTL is the TTL for cached display names.
	DefaultNameTTL = 5 * time.Minute
)

// GetSponsorName retrieves a cached sponsor display name.
// Returns ErrCacheMiss when not cached.
func (c *Cache) GetSponsorName(ctx context.Context, sponsorID string) (string, error) {
	return c.getName(ctx, sponsorNameKeyPrefix+sponsorID)
}

// SetSponsorName caches a sponsor display name.
func (c *Cache) SetSponsorName(ctx context.Context, sponsorID, name string) error {
	return c.setName(ctx, sponsorNameKeyPrefix+sponsorID, name)
}

// GetEventName retrieves a cached event display name.
// Returns ErrCacheMiss when not cached.
func (c *Cache) GetEventName(ctx context.Context, eventID string) (string, error) {
	return c.getName(ctx, eventNameKeyPrefix+eventID)
}

// SetEventName caches an event display name.
func (c *Cache) SetEventName(ctx context.Context, eventID, name string) error {
	return c.setName(ctx, eventNameKeyPrefix+eventID, name)
}

func (c *Cache) getName(ctx context.Context, key string) (string, error) {
	name, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return name, nil
}

func (c *Cache) setName(ctx context.Context, key, name string) error {
	if err := c.client.Set(ctx, key, name, DefaultNameTTL).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
