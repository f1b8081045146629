package store

import (
	"context"
	"sort"
	"sync"

	"github.com/zeventbooks/eventpulse/internal/model"
)

// Memory is an in-process event store with the same append-only and
// dedup semantics as the Postgres store. Used for tests and local
// development; facts do not survive a restart.
type Memory struct {
	mu     sync.RWMutex
	events []*model.AnalyticsEvent
	seen   map[string]bool // dedup keys
}

// NewMemory creates an empty in-memory event store.
func NewMemory() *Memory {
	return &Memory{seen: make(map[string]bool)}
}

// Append stores events, dropping duplicates by dedup key.
func (s *Memory) Append(ctx context.Context, events []*model.AnalyticsEvent) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, event := range events {
		if event.DedupKey != "" && s.seen[event.DedupKey] {
			continue
		}
		if event.ID == "" {
			event.ID = newRecordID(event.Timestamp)
		}
		copied := *event
		s.events = append(s.events, &copied)
		if event.DedupKey != "" {
			s.seen[event.DedupKey] = true
		}
		inserted++
	}

	return inserted, nil
}

// Query returns matching events ordered by timestamp then record ID.
func (s *Memory) Query(ctx context.Context, filter Filter) ([]*model.AnalyticsEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*model.AnalyticsEvent
	for _, event := range s.events {
		if filter.Matches(event) {
			copied := *event
			matched = append(matched, &copied)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})

	return matched, nil
}

// Len returns the number of stored facts.
func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
