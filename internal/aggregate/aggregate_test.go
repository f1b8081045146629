package aggregate

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/zeventbooks/eventpulse/internal/model"
	"github.com/zeventbooks/eventpulse/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedStore(t *testing.T, events []*model.AnalyticsEvent) *store.Memory {
	t.Helper()
	st := store.NewMemory()
	if _, err := st.Append(context.Background(), events); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return st
}

func event(eventID string, surface model.Surface, metric model.Metric, value float64, sponsorID, sessionID string, ts time.Time) *model.AnalyticsEvent {
	return &model.AnalyticsEvent{
		EventID:   eventID,
		Surface:   surface,
		Metric:    metric,
		Value:     value,
		SponsorID: sponsorID,
		SessionID: sessionID,
		Timestamp: ts,
	}
}

func TestAccumulatorAdd(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var acc Accumulator
	acc.Add(event("e", model.SurfacePublic, model.MetricImpression, 1, "", "s", now))
	acc.Add(event("e", model.SurfacePublic, model.MetricImpression, 1, "", "s", now))
	acc.Add(event("e", model.SurfacePublic, model.MetricClick, 1, "", "s", now))
	acc.Add(event("e", model.SurfacePublic, model.MetricQRScan, 1, "", "s", now))
	acc.Add(event("e", model.SurfacePublic, model.MetricSignup, 1, "", "s", now))
	acc.Add(event("e", model.SurfaceDisplay, model.MetricDwell, 12.5, "", "s", now))
	acc.Add(event("e", model.SurfaceDisplay, model.MetricDwell, 7.5, "", "s", now))

	want := Accumulator{Impressions: 2, Clicks: 1, QRScans: 1, Signups: 1, DwellSeconds: 20}
	if acc != want {
		t.Errorf("accumulator = %+v, want %+v", acc, want)
	}
}

func TestAccumulatorAddIgnoresUncountedMetrics(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var acc Accumulator
	acc.Add(event("e", model.SurfaceDisplay, model.MetricBlockedEmbed, 1, "", "s", now))
	acc.Add(event("e", model.SurfacePoster, model.MetricPrint, 1, "", "s", now))

	if acc != (Accumulator{}) {
		t.Errorf("diagnostic metrics should not move counters, got %+v", acc)
	}
}

func TestAccumulatorMerge(t *testing.T) {
	a := Accumulator{Impressions: 10, Clicks: 2, DwellSeconds: 5}
	b := Accumulator{Impressions: 3, Clicks: 1, QRScans: 4, Signups: 2, DwellSeconds: 2.5}

	a.Merge(b)

	want := Accumulator{Impressions: 13, Clicks: 3, QRScans: 4, Signups: 2, DwellSeconds: 7.5}
	if a != want {
		t.Errorf("merged = %+v, want %+v", a, want)
	}
}

func TestAggregateGroups(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	st := seedStore(t, []*model.AnalyticsEvent{
		event("evt-1", model.SurfacePublic, model.MetricImpression, 1, "sp-1", "s1", now),
		event("evt-1", model.SurfacePublic, model.MetricClick, 1, "sp-1", "s1", now.Add(time.Second)),
		event("evt-1", model.SurfaceDisplay, model.MetricImpression, 1, "sp-2", "s2", now.Add(2*time.Second)),
		event("evt-2", model.SurfaceDisplay, model.MetricImpression, 1, "", "s3", now.Add(3*time.Second)),
	})

	engine := New(st, testLogger(), nil)
	rollup, err := engine.Aggregate(context.Background(), Query{})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	if rollup.EventCount != 4 {
		t.Errorf("expected 4 facts scanned, got %d", rollup.EventCount)
	}
	if rollup.Global.Impressions != 3 || rollup.Global.Clicks != 1 {
		t.Errorf("unexpected global counters: %+v", rollup.Global)
	}

	if acc := rollup.BySurface[model.SurfacePublic]; acc == nil || acc.Impressions != 1 || acc.Clicks != 1 {
		t.Errorf("unexpected public surface counters: %+v", acc)
	}
	if acc := rollup.BySurface[model.SurfaceDisplay]; acc == nil || acc.Impressions != 2 {
		t.Errorf("unexpected display surface counters: %+v", acc)
	}

	// Unattributed facts never land in the sponsor group.
	if len(rollup.BySponsor) != 2 {
		t.Errorf("expected 2 sponsor groups, got %d", len(rollup.BySponsor))
	}
	if acc := rollup.BySponsor["sp-1"]; acc == nil || acc.Impressions != 1 || acc.Clicks != 1 {
		t.Errorf("unexpected sp-1 counters: %+v", acc)
	}

	if len(rollup.ByEvent) != 2 {
		t.Errorf("expected 2 event groups, got %d", len(rollup.ByEvent))
	}
}

func TestAggregateWithQueryFilter(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	st := seedStore(t, []*model.AnalyticsEvent{
		event("evt-1", model.SurfacePublic, model.MetricImpression, 1, "", "s1", now),
		event("evt-2", model.SurfacePublic, model.MetricImpression, 1, "", "s2", now.Add(time.Hour)),
	})

	engine := New(st, testLogger(), nil)

	rollup, err := engine.Aggregate(context.Background(), Query{EventID: "evt-2"})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if rollup.EventCount != 1 {
		t.Errorf("expected 1 fact for evt-2, got %d", rollup.EventCount)
	}

	windowed, err := engine.Aggregate(context.Background(), Query{
		From: now.Add(30 * time.Minute),
		To:   now.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if windowed.EventCount != 1 {
		t.Errorf("expected 1 fact inside window, got %d", windowed.EventCount)
	}
}

func TestSortedKeysOrder(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var events []*model.AnalyticsEvent
	addImpressions := func(sponsorID string, n int) {
		for i := 0; i < n; i++ {
			events = append(events, event("evt-1", model.SurfacePublic, model.MetricImpression, 1, sponsorID,
				"s", now.Add(time.Duration(len(events))*time.Second)))
		}
	}
	addImpressions("sp-c", 2)
	addImpressions("sp-a", 2)
	addImpressions("sp-b", 5)

	st := seedStore(t, events)
	engine := New(st, testLogger(), nil)
	rollup, err := engine.Aggregate(context.Background(), Query{})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	// Impressions descending, ties broken by ID ascending.
	want := []string{"sp-b", "sp-a", "sp-c"}
	if got := rollup.SortedSponsorIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("SortedSponsorIDs() = %v, want %v", got, want)
	}
}

func TestAggregateDeterministic(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	st := seedStore(t, []*model.AnalyticsEvent{
		event("evt-1", model.SurfacePublic, model.MetricImpression, 1, "sp-1", "s1", now),
		event("evt-1", model.SurfaceDisplay, model.MetricImpression, 1, "sp-2", "s2", now),
		event("evt-2", model.SurfacePoster, model.MetricQRScan, 1, "", "s3", now),
	})

	engine := New(st, testLogger(), nil)

	first, err := engine.Aggregate(context.Background(), Query{})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	for i := 0; i < 5; i++ {
		again, err := engine.Aggregate(context.Background(), Query{})
		if err != nil {
			t.Fatalf("aggregate: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("aggregation not deterministic on pass %d", i)
		}
		if !reflect.DeepEqual(first.SortedSponsorIDs(), again.SortedSponsorIDs()) {
			t.Fatalf("sponsor order not deterministic on pass %d", i)
		}
	}
}

func TestAggregateEmptyStore(t *testing.T) {
	engine := New(store.NewMemory(), testLogger(), nil)

	rollup, err := engine.Aggregate(context.Background(), Query{})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if rollup.EventCount != 0 {
		t.Errorf("expected no facts, got %d", rollup.EventCount)
	}
	if len(rollup.SortedSurfaces()) != 0 || len(rollup.SortedSponsorIDs()) != 0 || len(rollup.SortedEventIDs()) != 0 {
		t.Error("empty rollup should produce empty key lists")
	}
}
