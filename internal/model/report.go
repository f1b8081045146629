// Package model defines domain entities for the application.
package model

// Summary holds the global counters across all surfaces.
type Summary struct {
	Impressions  int64   `json:"impressions"`
	Clicks       int64   `json:"clicks"`
	QRScans      int64   `json:"qr_scans"`
	Signups      int64   `json:"signups"`
	DwellSeconds float64 `json:"dwell_seconds"`
}

// SurfaceStats holds the per-surface counters.
type SurfaceStats struct {
	Surface      Surface `json:"surface"`
	Impressions  int64   `json:"impressions"`
	Clicks       int64   `json:"clicks"`
	QRScans      int64   `json:"qr_scans"`
	DwellSeconds float64 `json:"dwell_seconds"`
}

// SponsorStats holds per-sponsor counters with derived CTR and a
// resolved display name (falls back to the raw ID when the sponsor is
// no longer in the registry).
type SponsorStats struct {
	SponsorID   string  `json:"sponsor_id"`
	DisplayName string  `json:"display_name"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	CTR         float64 `json:"ctr"`
}

// EventStats holds per-event counters with derived CTR.
type EventStats struct {
	EventID      string  `json:"event_id"`
	DisplayName  string  `json:"display_name"`
	Impressions  int64   `json:"impressions"`
	Clicks       int64   `json:"clicks"`
	SignupsCount int64   `json:"signups_count"`
	CTR          float64 `json:"ctr"`
}

// AggregateReport is the derived roll-up document returned to callers.
// It is recomputed on demand, never persisted as authoritative state.
// Arrays are always present (possibly empty), never null.
type AggregateReport struct {
	Summary        Summary        `json:"summary"`
	Surfaces       []SurfaceStats `json:"surfaces"`
	Sponsors       []SponsorStats `json:"sponsors"`
	Events         []EventStats   `json:"events"`
	LastUpdatedISO string         `json:"lastUpdatedISO"` // Time the report was built, not the data
}

// CTR returns clicks/impressions, clamped to 0 when there are no
// impressions. Clicks are not required to be bounded by impressions:
// the two are logged on independent code paths.
func CTR(clicks, impressions int64) float64 {
	if impressions <= 0 {
		return 0
	}
	return float64(clicks) / float64(impressions)
}
