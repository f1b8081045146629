// Package store provides the append-only analytics event store.
// The store is the single source of truth for all aggregation; facts
// are never updated or deleted once appended.
package store

import (
	"context"
	"time"

	"github.com/zeventbooks/eventpulse/internal/model"
)

// Filter narrows a Query over the event log. Zero values mean "any".
type Filter struct {
	EventID   string
	SponsorID string
	Surface   model.Surface
	Metric    model.Metric
	From      time.Time // inclusive
	To        time.Time // exclusive
}

// Matches reports whether an event passes the filter.
func (f Filter) Matches(e *model.AnalyticsEvent) bool {
	if f.EventID != "" && e.EventID != f.EventID {
		return false
	}
	if f.SponsorID != "" && e.SponsorID != f.SponsorID {
		return false
	}
	if f.Surface != "" && e.Surface != f.Surface {
		return false
	}
	if f.Metric != "" && e.Metric != f.Metric {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.Timestamp.Before(f.To) {
		return false
	}
	return true
}

// Store is the append-only event log. Appends from concurrent callers
// are independent, order-insensitive facts; readers may observe a
// snapshot that misses very recent writes.
type Store interface {
	// Append stores the given events, assigning record IDs. Duplicate
	// dedup keys are silently dropped. Returns the number of events
	// actually stored.
	Append(ctx context.Context, events []*model.AnalyticsEvent) (int, error)

	// Query returns the events matching the filter, ordered by
	// timestamp ascending (ties broken by record ID).
	Query(ctx context.Context, filter Filter) ([]*model.AnalyticsEvent, error)
}
