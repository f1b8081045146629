// Package buffer provides the client-side event batcher used by
// display agents and other embedded surfaces. Events are queued locally
// and flushed to the ingestion endpoint in batches.
package buffer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zeventbooks/eventpulse/internal/ingest"
	"github.com/zeventbooks/eventpulse/internal/metrics"
)

const (
	// DefaultFlushInterval is the time between automatic flushes.
	DefaultFlushInterval = 5 * time.Second
	// DefaultMaxQueueSize bounds the local queue. When full, the oldest
	// events are evicted first.
	DefaultMaxQueueSize = 500
	// closeFlushTimeout bounds the final flush during teardown.
	closeFlushTimeout = 3 * time.Second
)

// Sink receives flushed batches. Implemented by HTTPSink in production
// and by fakes in tests.
type Sink interface {
	Send(ctx context.Context, batch ingest.Batch) error
}

// Buffer accumulates events and flushes them as batches. Events are
// only removed from the queue once the sink acknowledges a flush, so a
// failed flush retries the same events on the next tick. Events
// recorded while a flush is in flight land in a fresh queue and are
// never lost to the outcome of that flush.
type Buffer struct {
	sink      Sink
	sessionID string
	logger    *slog.Logger
	metrics   metrics.Recorder

	flushInterval time.Duration
	maxQueueSize  int

	mu      sync.Mutex
	queue   []ingest.RawEvent
	visible []string
	dropped int64
	started bool
}

// New creates a buffer bound to one session.
func New(sink Sink, sessionID string, logger *slog.Logger, recorder metrics.Recorder) *Buffer {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Buffer{
		sink:          sink,
		sessionID:     sessionID,
		logger:        logger.With("component", "buffer"),
		metrics:       recorder,
		flushInterval: DefaultFlushInterval,
		maxQueueSize:  DefaultMaxQueueSize,
	}
}

// SetFlushInterval overrides the default flush interval.
func (b *Buffer) SetFlushInterval(interval time.Duration) {
	if interval > 0 {
		b.flushInterval = interval
	}
}

// SetMaxQueueSize overrides the default queue bound.
func (b *Buffer) SetMaxQueueSize(size int) {
	if size > 0 {
		b.maxQueueSize = size
	}
}

// SetVisibleSponsors records the sponsor set currently rendered. The
// set is attached to every flushed batch for attribution checks on the
// server side.
func (b *Buffer) SetVisibleSponsors(sponsorIDs []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.visible = append([]string(nil), sponsorIDs...)
}

// Record queues one event. When the queue is full the oldest events are
// evicted to make room, and the drop is counted.
//
// Every event gets a nonce at record time. A flush that failed after
// the server stored the batch retries the same nonces, so the replay
// deduplicates instead of double counting.
func (b *Buffer) Record(event ingest.RawEvent) {
	if event.Nonce == "" {
		event.Nonce = uuid.NewString()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.queue = append(b.queue, event)
	for len(b.queue) > b.maxQueueSize {
		b.queue = b.queue[1:]
		b.dropped++
		b.metrics.IncBufferDropped()
	}
	b.metrics.SetBufferQueueDepth(int64(len(b.queue)))
}

// Dropped returns the number of events evicted from a full queue.
func (b *Buffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Len returns the current queue depth.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Flush sends the queued events to the sink. On failure the events are
// put back at the head of the queue so the next flush retries them,
// behind nothing recorded since.
func (b *Buffer) Flush(ctx context.Context) error {
	b.mu.Lock()
	if len(b.queue) == 0 {
		b.mu.Unlock()
		return nil
	}
	pending := b.queue
	visible := b.visible
	b.queue = nil
	b.mu.Unlock()

	err := b.sink.Send(ctx, ingest.Batch{
		SessionID:         b.sessionID,
		VisibleSponsorIDs: visible,
		Events:            pending,
	})

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		// Requeue unacked events ahead of anything recorded during the
		// flush, evicting overflow oldest-first.
		b.queue = append(pending, b.queue...)
		for len(b.queue) > b.maxQueueSize {
			b.queue = b.queue[1:]
			b.dropped++
			b.metrics.IncBufferDropped()
		}
		b.metrics.SetBufferQueueDepth(int64(len(b.queue)))
		return err
	}

	b.metrics.SetBufferQueueDepth(int64(len(b.queue)))
	return nil
}

// Run starts the flush loop. Blocks until the context is cancelled,
// then performs a final flush before returning.
func (b *Buffer) Run(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return errors.New("buffer already started")
	}
	b.started = true
	b.mu.Unlock()

	b.logger.Info("buffer flush loop started", "interval", b.flushInterval)

	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("buffer stopping, flushing remaining events", "queued", b.Len())
			flushCtx, cancel := context.WithTimeout(context.Background(), closeFlushTimeout)
			defer cancel()
			if err := b.Flush(flushCtx); err != nil {
				b.logger.Warn("final flush failed", "error", err, "lost", b.Len())
			}
			return ctx.Err()
		case <-ticker.C:
			if err := b.Flush(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					continue
				}
				b.logger.Warn("flush failed, events retained", "error", err, "queued", b.Len())
			}
		}
	}
}
