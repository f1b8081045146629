// Package ratelimit provides fixed-window rate limiting.
// The limiter is an explicit component instantiated with a window
// configuration and injected where needed; no ambient global state.
package ratelimit

import (
	"context"
	"time"
)

// Config holds the window parameters for one limiter scope.
type Config struct {
	Cap    int           // admitted units per window
	Window time.Duration // window length
}

// Result describes the outcome of a TakeN call.
type Result struct {
	Granted    int           // units admitted (0..n)
	Remaining  int64         // units left in the current window
	ResetAt    time.Time     // when the window rolls over
	RetryAfter time.Duration // zero on a full grant
}

// Limiter admits up to Cap units per key per window.
//
// TakeN atomically grants min(n, remaining) units for the key. Partial
// grants let batch ingestion accept the head of an oversized batch and
// reject the remainder. A race that occasionally over-admits by one is
// acceptable; under-admitting is not, so implementations fail open on
// backend errors.
type Limiter interface {
	TakeN(ctx context.Context, key string, n int) (*Result, error)
}
