package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces limiter state in Redis.
const keyPrefix = "ratelimit:"

// fixedWindowScript atomically admits up to max(0, cap-count) of the
// requested units and bumps the window counter. The window key expires
// at the end of the window, which implements the rollover.
var fixedWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local requested = tonumber(ARGV[1])
	local cap = tonumber(ARGV[2])
	local window = tonumber(ARGV[3])  -- seconds

	local count = tonumber(redis.call('GET', key) or '0')
	local remaining = cap - count
	if remaining < 0 then
		remaining = 0
	end

	local granted = requested
	if granted > remaining then
		granted = remaining
	end

	if granted > 0 then
		redis.call('INCRBY', key, granted)
	end
	if redis.call('TTL', key) < 0 then
		redis.call('EXPIRE', key, window)
	end

	local ttl = redis.call('TTL', key)
	return {granted, remaining - granted, ttl}
`)

// RedisLimiter is a fixed-window limiter with shared state in Redis,
// safe under concurrent requests from multiple instances.
type RedisLimiter struct {
	client *redis.Client
	scope  string
	cfg    Config
}

// NewRedisLimiter creates a limiter for one scope ("admin", "ingest",
// "redirect", ...). Scopes keep independent counters per key.
func NewRedisLimiter(client *redis.Client, scope string, cfg Config) *RedisLimiter {
	return &RedisLimiter{client: client, scope: scope, cfg: cfg}
}

// TakeN admits up to n units for the key within the current window.
// Fails open on Redis errors: the full request is granted rather than
// rejecting legitimate traffic on backend trouble.
func (l *RedisLimiter) TakeN(ctx context.Context, key string, n int) (*Result, error) {
	if n <= 0 {
		return &Result{Granted: 0, Remaining: int64(l.cfg.Cap)}, nil
	}

	redisKey := keyPrefix + l.scope + ":" + key

	values, err := fixedWindowScript.Run(ctx, l.client,
		[]string{redisKey},
		n, l.cfg.Cap, int(l.cfg.Window.Seconds()),
	).Int64Slice()
	if err != nil {
		// Fail open.
		return &Result{
			Granted:   n,
			Remaining: int64(l.cfg.Cap),
			ResetAt:   time.Now().Add(l.cfg.Window),
		}, nil
	}

	granted := int(values[0])
	remaining := values[1]
	ttl := time.Duration(values[2]) * time.Second
	if ttl < 0 {
		ttl = l.cfg.Window
	}

	result := &Result{
		Granted:   granted,
		Remaining: remaining,
		ResetAt:   time.Now().Add(ttl),
	}
	if granted < n {
		result.RetryAfter = ttl
	}

	return result, nil
}
