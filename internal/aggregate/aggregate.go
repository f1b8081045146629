// Package aggregate computes roll-ups over the analytics event store.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/zeventbooks/eventpulse/internal/metrics"
	"github.com/zeventbooks/eventpulse/internal/model"
	"github.com/zeventbooks/eventpulse/internal/store"
)

// Query scopes an aggregation pass. Zero values aggregate everything.
type Query struct {
	EventID   string
	SponsorID string
	From      time.Time
	To        time.Time
}

// Accumulator holds the running counters for one grouping key.
// Accumulators are associative: two accumulators over disjoint event
// sets merge by field-wise addition, which keeps the door open for
// per-day materialized roll-ups later.
type Accumulator struct {
	Impressions  int64
	Clicks       int64
	QRScans      int64
	Signups      int64
	DwellSeconds float64
}

// Add folds a single event into the accumulator.
func (a *Accumulator) Add(e *model.AnalyticsEvent) {
	switch e.Metric {
	case model.MetricImpression:
		a.Impressions++
	case model.MetricClick:
		a.Clicks++
	case model.MetricQRScan:
		a.QRScans++
	case model.MetricSignup:
		a.Signups++
	case model.MetricDwell:
		a.DwellSeconds += e.Value
	}
}

// Merge folds another accumulator into this one.
func (a *Accumulator) Merge(other Accumulator) {
	a.Impressions += other.Impressions
	a.Clicks += other.Clicks
	a.QRScans += other.QRScans
	a.Signups += other.Signups
	a.DwellSeconds += other.DwellSeconds
}

// Rollup is the raw result of one aggregation pass, before name
// enrichment. Maps are keyed by the grouping identifier.
type Rollup struct {
	Global     Accumulator
	BySurface  map[model.Surface]*Accumulator
	BySponsor  map[string]*Accumulator
	ByEvent    map[string]*Accumulator
	EventCount int // facts scanned
}

// Engine runs read-only streaming aggregation over the event store.
// It never writes to the store and may run concurrently with appends;
// a pass reflects a snapshot that can miss very recent writes.
type Engine struct {
	store   store.Store
	logger  *slog.Logger
	metrics metrics.Recorder
}

// New creates an aggregation engine over a store.
func New(st store.Store, logger *slog.Logger, recorder metrics.Recorder) *Engine {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Engine{
		store:   st,
		logger:  logger.With("component", "aggregate"),
		metrics: recorder,
	}
}

// Aggregate makes a single streaming pass over the filtered event
// sequence, maintaining the four accumulator groups. The result is
// deterministic for a fixed event set: no randomness, and consumers
// order map keys with SortedSponsorIDs/SortedEventIDs/SortedSurfaces.
func (e *Engine) Aggregate(ctx context.Context, q Query) (*Rollup, error) {
	start := time.Now()

	events, err := e.store.Query(ctx, store.Filter{
		EventID:   q.EventID,
		SponsorID: q.SponsorID,
		From:      q.From,
		To:        q.To,
	})
	if err != nil {
		return nil, fmt.Errorf("query event store: %w", err)
	}

	rollup := &Rollup{
		BySurface: make(map[model.Surface]*Accumulator),
		BySponsor: make(map[string]*Accumulator),
		ByEvent:   make(map[string]*Accumulator),
	}

	for _, event := range events {
		rollup.Global.Add(event)
		rollup.EventCount++

		acc := rollup.BySurface[event.Surface]
		if acc == nil {
			acc = &Accumulator{}
			rollup.BySurface[event.Surface] = acc
		}
		acc.Add(event)

		if event.SponsorID != "" {
			acc := rollup.BySponsor[event.SponsorID]
			if acc == nil {
				acc = &Accumulator{}
				rollup.BySponsor[event.SponsorID] = acc
			}
			acc.Add(event)
		}

		acc = rollup.ByEvent[event.EventID]
		if acc == nil {
			acc = &Accumulator{}
			rollup.ByEvent[event.EventID] = acc
		}
		acc.Add(event)
	}

	duration := time.Since(start)
	e.metrics.ObserveAggregateDuration(duration)
	e.logger.Debug("aggregation pass complete",
		"events", rollup.EventCount,
		"duration_ms", float64(duration.Microseconds())/1000,
	)

	return rollup, nil
}

// SortedSponsorIDs returns sponsor keys in report order: impressions
// descending, then ID ascending for a stable tiebreak.
func (r *Rollup) SortedSponsorIDs() []string {
	return sortedKeys(r.BySponsor)
}

// SortedEventIDs returns event keys in report order.
func (r *Rollup) SortedEventIDs() []string {
	return sortedKeys(r.ByEvent)
}

// SortedSurfaces returns surface keys in report order.
func (r *Rollup) SortedSurfaces() []model.Surface {
	keys := make([]model.Surface, 0, len(r.BySurface))
	for k := range r.BySurface {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := r.BySurface[keys[i]], r.BySurface[keys[j]]
		if a.Impressions != b.Impressions {
			return a.Impressions > b.Impressions
		}
		return keys[i] < keys[j]
	})
	return keys
}

func sortedKeys(m map[string]*Accumulator) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := m[keys[i]], m[keys[j]]
		if a.Impressions != b.Impressions {
			return a.Impressions > b.Impressions
		}
		return keys[i] < keys[j]
	})
	return keys
}
