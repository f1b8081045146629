// Package ingest validates and stores batches of raw analytics events.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zeventbooks/eventpulse/internal/metrics"
	"github.com/zeventbooks/eventpulse/internal/model"
	"github.com/zeventbooks/eventpulse/internal/ratelimit"
	"github.com/zeventbooks/eventpulse/internal/store"
)

// DefaultMaxBatchSize caps a single ingestion call. Oversized batches
// are rejected outright rather than processed partially into a timeout.
const DefaultMaxBatchSize = 200

// Service errors.
var (
	ErrEmptyBatch    = errors.New("batch contains no events")
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")
)

// Error codes surfaced per event in a batch result.
const (
	CodeBadInput    = "BAD_INPUT"
	CodeRateLimited = "RATE_LIMITED"
)

// RawEvent is a client-supplied event before validation. Client
// timestamps are deliberately absent from this shape: the server stamps
// every accepted fact at ingestion time.
type RawEvent struct {
	EventID   string  `json:"event_id"`
	Surface   string  `json:"surface"`
	Metric    string  `json:"metric"`
	Value     float64 `json:"value,omitempty"`
	SponsorID string  `json:"sponsor_id,omitempty"`
	Token     string  `json:"token,omitempty"`
	SessionID string  `json:"session_id,omitempty"` // defaults to the batch session

	// Nonce identifies this fact across retransmissions. Clients that
	// retry flushes (the buffer) set one per event so a replayed batch
	// deduplicates; when absent the server generates one, making the
	// fact unconditionally distinct.
	Nonce string `json:"nonce,omitempty"`
}

// Batch is one ingestion call: a set of raw events plus the visible
// sponsor set the rendering layer reported at batch time.
type Batch struct {
	SessionID         string
	VisibleSponsorIDs []string
	Events            []RawEvent
}

// EventError reports why one event in a batch was rejected.
type EventError struct {
	Index   int    `json:"index"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result summarizes a batch ingestion: valid events are stored even
// when siblings are rejected (partial batch success).
type Result struct {
	Accepted int          `json:"accepted"`
	Rejected int          `json:"rejected"`
	Deduped  int          `json:"deduped,omitempty"`
	Errors   []EventError `json:"errors,omitempty"`
}

// Service validates, rate-limits, stamps, and stores analytics events.
type Service struct {
	store        store.Store
	limiter      ratelimit.Limiter
	logger       *slog.Logger
	metrics      metrics.Recorder
	maxBatchSize int
	now          func() time.Time
}

// New creates an ingestion service. The limiter bounds accepted events
// per session per window; pass nil to disable rate limiting.
func New(st store.Store, limiter ratelimit.Limiter, logger *slog.Logger, recorder metrics.Recorder) *Service {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Service{
		store:        st,
		limiter:      limiter,
		logger:       logger.With("component", "ingest"),
		metrics:      recorder,
		maxBatchSize: DefaultMaxBatchSize,
		now:          time.Now,
	}
}

// SetMaxBatchSize overrides the default batch cap.
func (s *Service) SetMaxBatchSize(size int) {
	if size > 0 {
		s.maxBatchSize = size
	}
}

// SetClock overrides the time source for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// IngestBatch validates each event individually and stores the valid
// ones. Invalid siblings are reported per index, never rolled back as a
// whole. Returns ErrEmptyBatch / ErrBatchTooLarge for calls that are
// rejected outright.
func (s *Service) IngestBatch(ctx context.Context, batch Batch) (*Result, error) {
	if len(batch.Events) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(batch.Events) > s.maxBatchSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(batch.Events), s.maxBatchSize)
	}

	visible := make(map[string]bool, len(batch.VisibleSponsorIDs))
	for _, id := range batch.VisibleSponsorIDs {
		visible[id] = true
	}

	result := &Result{}
	now := s.now().UTC()

	// Validation pass. Events that survive it are candidates for the
	// per-session rate limit below.
	candidates := make([]candidate, 0, len(batch.Events))

	for i, raw := range batch.Events {
		event, err := s.buildEvent(raw, batch.SessionID, visible, now)
		if err != nil {
			result.Rejected++
			result.Errors = append(result.Errors, EventError{
				Index:   i,
				Code:    CodeBadInput,
				Message: err.Error(),
			})
			s.metrics.IncEventRejected(CodeBadInput)
			continue
		}
		candidates = append(candidates, candidate{index: i, event: event})
	}

	// Rate limiting: each session may spend at most Cap events per
	// window. A partial grant accepts the head of the batch and rejects
	// the remainder with RATE_LIMITED.
	granted := s.grantBySession(ctx, candidates)

	accepted := make([]*model.AnalyticsEvent, 0, len(candidates))
	for i, c := range candidates {
		if !granted[i] {
			result.Rejected++
			result.Errors = append(result.Errors, EventError{
				Index:   c.index,
				Code:    CodeRateLimited,
				Message: "session event quota exceeded for this window",
			})
			s.metrics.IncEventRejected(CodeRateLimited)
			continue
		}
		accepted = append(accepted, c.event)
	}

	if len(accepted) > 0 {
		stored, err := s.store.Append(ctx, accepted)
		if err != nil {
			return nil, fmt.Errorf("append events: %w", err)
		}
		result.Accepted = len(accepted)
		result.Deduped = len(accepted) - stored

		for _, event := range accepted {
			s.metrics.IncEventIngested(string(event.Metric))
		}
	}

	s.metrics.ObserveIngestBatchSize(len(batch.Events))
	s.logger.Debug("batch ingested",
		"accepted", result.Accepted,
		"rejected", result.Rejected,
		"deduped", result.Deduped,
	)

	return result, nil
}

// IngestOne stores a single event (shortlink clicks, sparse surfaces).
func (s *Service) IngestOne(ctx context.Context, raw RawEvent, visibleSponsorIDs []string) (*Result, error) {
	return s.IngestBatch(ctx, Batch{
		SessionID:         raw.SessionID,
		VisibleSponsorIDs: visibleSponsorIDs,
		Events:            []RawEvent{raw},
	})
}

// buildEvent validates a raw event and produces the server-stamped fact.
func (s *Service) buildEvent(raw RawEvent, batchSession string, visible map[string]bool, now time.Time) (*model.AnalyticsEvent, error) {
	sessionID := raw.SessionID
	if sessionID == "" {
		sessionID = batchSession
	}

	nonce := raw.Nonce
	if nonce == "" {
		nonce = uuid.NewString()
	}

	event := &model.AnalyticsEvent{
		EventID:   raw.EventID,
		Surface:   model.Surface(raw.Surface),
		Metric:    model.Metric(raw.Metric),
		Value:     raw.Value,
		SponsorID: raw.SponsorID,
		Token:     raw.Token,
		SessionID: sessionID,
		Nonce:     nonce,
		Timestamp: now,
	}

	if err := event.Validate(); err != nil {
		return nil, err
	}

	// Attribution integrity: a sponsor-attributed fact is only accepted
	// when the sponsor was in the visible set the caller reported.
	if event.SponsorID != "" && !visible[event.SponsorID] {
		return nil, fmt.Errorf("sponsor %q not in visible sponsor set", event.SponsorID)
	}

	event.Normalize()
	event.DedupKey = event.ComputeDedupKey()

	return event, nil
}

// candidate is an event that passed validation, paired with its
// position in the original batch.
type candidate struct {
	index int
	event *model.AnalyticsEvent
}

// grantBySession consults the limiter once per distinct session and
// marks which candidates were admitted, preserving batch order.
func (s *Service) grantBySession(ctx context.Context, candidates []candidate) []bool {
	granted := make([]bool, len(candidates))
	if s.limiter == nil {
		for i := range granted {
			granted[i] = true
		}
		return granted
	}

	counts := make(map[string]int)
	for _, c := range candidates {
		counts[c.event.SessionID]++
	}

	grants := make(map[string]int, len(counts))
	for session, n := range counts {
		res, err := s.limiter.TakeN(ctx, session, n)
		if err != nil {
			// Fail open on limiter trouble.
			s.logger.Warn("rate limiter error, admitting batch", "error", err)
			grants[session] = n
			continue
		}
		grants[session] = res.Granted
	}

	for i, c := range candidates {
		session := c.event.SessionID
		if grants[session] > 0 {
			grants[session]--
			granted[i] = true
		}
	}

	return granted
}
