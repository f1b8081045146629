package ratelimit

import (
	"context"
	"sync"
	"time"
)

// window tracks one key's counter within the current fixed window.
type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a single-process fixed-window limiter. Used in tests
// and for local development without Redis.
type MemoryLimiter struct {
	mu      sync.Mutex
	cfg     Config
	windows map[string]*window
	now     func() time.Time
}

// NewMemoryLimiter creates an in-memory limiter with the given config.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	return &MemoryLimiter{
		cfg:     cfg,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// SetClock overrides the time source for tests.
func (l *MemoryLimiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// TakeN admits up to n units for the key within the current window.
func (l *MemoryLimiter) TakeN(ctx context.Context, key string, n int) (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.cfg.Window)}
		l.windows[key] = w
	}

	remaining := l.cfg.Cap - w.count
	if remaining < 0 {
		remaining = 0
	}

	granted := n
	if granted > remaining {
		granted = remaining
	}
	w.count += granted

	result := &Result{
		Granted:   granted,
		Remaining: int64(remaining - granted),
		ResetAt:   w.resetAt,
	}
	if granted < n {
		result.RetryAfter = w.resetAt.Sub(now)
	}

	return result, nil
}
