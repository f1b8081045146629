package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeventbooks/eventpulse/internal/model"
)

// Cache key prefixes and TTLs.
const (
	shortlinkKeyPrefix = "shortlink:"
	negCacheKeySuffix  = ":neg"

	// DefaultShortlinkTTL is the TTL for cached shortlink data.
	// Shortlinks are immutable, so a long TTL is safe.
	DefaultShortlinkTTL = 24 * time.Hour

	// NegativeCacheTTL is the TTL for negative cache entries.
	NegativeCacheTTL = 5 * time.Minute
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")

	// ErrNegativeHit marks a token known not to exist.
	ErrNegativeHit = errors.New("negative cache hit")
)

// GetShortlink retrieves a shortlink from cache by token.
// Returns ErrCacheMiss if not cached, ErrNegativeHit if the token is
// cached as nonexistent.
func (c *Cache) GetShortlink(ctx context.Context, token string) (*model.CachedShortlink, error) {
	key := shortlinkKeyPrefix + token

	neg, err := c.client.Exists(ctx, key+negCacheKeySuffix).Result()
	if err == nil && neg > 0 {
		return nil, ErrNegativeHit
	}

	result, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}

	if len(result) == 0 {
		return nil, ErrCacheMiss
	}

	return &model.CachedShortlink{
		TargetURL: result["target_url"],
		EventID:   result["event_id"],
		Surface:   result["surface"],
		SponsorID: result["sponsor_id"],
		CreatedAt: result["created_at"],
	}, nil
}

// SetShortlink stores a shortlink in cache.
func (c *Cache) SetShortlink(ctx context.Context, link *model.Shortlink) error {
	key := shortlinkKeyPrefix + link.Token
	cached := link.ToCachedShortlink()

	fields := map[string]any{
		"target_url": cached.TargetURL,
		"event_id":   cached.EventID,
		"surface":    cached.Surface,
		"created_at": cached.CreatedAt,
	}
	if cached.SponsorID != "" {
		fields["sponsor_id"] = cached.SponsorID
	}

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, DefaultShortlinkTTL)
	pipe.Del(ctx, key+negCacheKeySuffix)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache shortlink: %w", err)
	}

	return nil
}

// SetShortlinkNegative caches the fact that a token does not exist, so
// repeated probes for bogus tokens skip the database.
func (c *Cache) SetShortlinkNegative(ctx context.Context, token string) error {
	key := shortlinkKeyPrefix + token + negCacheKeySuffix
	if err := c.client.Set(ctx, key, "1", NegativeCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}
	return nil
}
