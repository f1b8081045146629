// Package report assembles the aggregate analytics report served to
// organizers and export consumers.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zeventbooks/eventpulse/internal/aggregate"
	"github.com/zeventbooks/eventpulse/internal/metrics"
	"github.com/zeventbooks/eventpulse/internal/model"
)

// Builder turns a raw aggregation roll-up into the report document:
// name enrichment, derived CTR, deterministic ordering and a build
// timestamp. Reports are derived data and are rebuilt on every call.
type Builder struct {
	engine  *aggregate.Engine
	names   *NameResolver
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// NewBuilder creates a report builder.
func NewBuilder(engine *aggregate.Engine, names *NameResolver, logger *slog.Logger, recorder metrics.Recorder) *Builder {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Builder{
		engine:  engine,
		names:   names,
		logger:  logger.With("component", "report"),
		metrics: recorder,
		now:     time.Now,
	}
}

// SetClock overrides the time source for tests.
func (b *Builder) SetClock(now func() time.Time) {
	b.now = now
}

// Build runs an aggregation pass and assembles the report. The same
// underlying event set always yields the same report body; only
// lastUpdatedISO varies between calls.
func (b *Builder) Build(ctx context.Context, q aggregate.Query) (*model.AggregateReport, error) {
	rollup, err := b.engine.Aggregate(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}

	report := &model.AggregateReport{
		Summary: model.Summary{
			Impressions:  rollup.Global.Impressions,
			Clicks:       rollup.Global.Clicks,
			QRScans:      rollup.Global.QRScans,
			Signups:      rollup.Global.Signups,
			DwellSeconds: rollup.Global.DwellSeconds,
		},
		Surfaces:       make([]model.SurfaceStats, 0, len(rollup.BySurface)),
		Sponsors:       make([]model.SponsorStats, 0, len(rollup.BySponsor)),
		Events:         make([]model.EventStats, 0, len(rollup.ByEvent)),
		LastUpdatedISO: b.now().UTC().Format(time.RFC3339),
	}

	for _, surface := range rollup.SortedSurfaces() {
		acc := rollup.BySurface[surface]
		report.Surfaces = append(report.Surfaces, model.SurfaceStats{
			Surface:      surface,
			Impressions:  acc.Impressions,
			Clicks:       acc.Clicks,
			QRScans:      acc.QRScans,
			DwellSeconds: acc.DwellSeconds,
		})
	}

	for _, sponsorID := range rollup.SortedSponsorIDs() {
		acc := rollup.BySponsor[sponsorID]
		report.Sponsors = append(report.Sponsors, model.SponsorStats{
			SponsorID:   sponsorID,
			DisplayName: b.names.SponsorName(ctx, sponsorID),
			Impressions: acc.Impressions,
			Clicks:      acc.Clicks,
			CTR:         model.CTR(acc.Clicks, acc.Impressions),
		})
	}

	for _, eventID := range rollup.SortedEventIDs() {
		acc := rollup.ByEvent[eventID]
		report.Events = append(report.Events, model.EventStats{
			EventID:      eventID,
			DisplayName:  b.names.EventName(ctx, eventID),
			Impressions:  acc.Impressions,
			Clicks:       acc.Clicks,
			SignupsCount: acc.Signups,
			CTR:          model.CTR(acc.Clicks, acc.Impressions),
		})
	}

	b.metrics.IncReportBuilt()
	b.logger.Debug("report built",
		"events_scanned", rollup.EventCount,
		"sponsors", len(report.Sponsors),
		"event_rows", len(report.Events),
	)

	return report, nil
}
