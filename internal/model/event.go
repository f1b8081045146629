// Package model defines domain entities for the application.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Surface identifies the rendering context that produced an analytics fact.
type Surface string

const (
	SurfacePublic      Surface = "public"
	SurfaceDisplay     Surface = "display"
	SurfacePoster      Surface = "poster"
	SurfaceFormCheckIn Surface = "form-check-in"
	SurfaceFormWalkIn  Surface = "form-walk-in"
	SurfaceFormSurvey  Surface = "form-survey"
)

// ValidSurfaces contains all recognized surface values.
var ValidSurfaces = []Surface{
	SurfacePublic,
	SurfaceDisplay,
	SurfacePoster,
	SurfaceFormCheckIn,
	SurfaceFormWalkIn,
	SurfaceFormSurvey,
}

// IsValid checks if the surface is a recognized value.
func (s Surface) IsValid() bool {
	for _, v := range ValidSurfaces {
		if s == v {
			return true
		}
	}
	return false
}

// Metric identifies the kind of interaction an analytics fact records.
type Metric string

const (
	MetricImpression   Metric = "impression"
	MetricClick        Metric = "click"
	MetricQRScan       Metric = "qr_scan"
	MetricSignup       Metric = "signup"
	MetricDwell        Metric = "dwell"
	MetricBlockedEmbed Metric = "blocked_embed"
	MetricPrint        Metric = "print"
)

// ValidMetrics contains all recognized metric values.
var ValidMetrics = []Metric{
	MetricImpression,
	MetricClick,
	MetricQRScan,
	MetricSignup,
	MetricDwell,
	MetricBlockedEmbed,
	MetricPrint,
}

// IsValid checks if the metric is a recognized value.
func (m Metric) IsValid() bool {
	for _, v := range ValidMetrics {
		if m == v {
			return true
		}
	}
	return false
}

// AnalyticsEvent is a single immutable analytics fact.
// Facts are append-only: once stored they are never updated or deleted.
type AnalyticsEvent struct {
	ID string `json:"id"` // ULID (time-sortable)

	// DedupKey suppresses duplicates from retried batch flushes
	// (at-least-once delivery). Derived server-side, never supplied
	// by clients.
	DedupKey string `json:"-"`

	// Nonce makes this fact distinguishable from other facts of the
	// same kind in the same session. Clients that retransmit (the
	// buffer) supply one per event; the server generates one for
	// nonce-less events so they never collide with each other.
	Nonce string `json:"-"`

	EventID   string  `json:"event_id"`             // Promoted event this fact belongs to
	Surface   Surface `json:"surface"`              // Rendering context
	Metric    Metric  `json:"metric"`               // Interaction kind
	Value     float64 `json:"value"`                // Dwell seconds, or 1 for counters
	SponsorID string  `json:"sponsor_id,omitempty"` // Set when attributable to a sponsor
	Token     string  `json:"token,omitempty"`      // Shortlink token for resolver clicks
	SessionID string  `json:"session_id"`           // Client-generated viewing session

	// Timestamp is stamped server-side at ingestion. Client clocks
	// are never trusted for ordering or windowing.
	Timestamp time.Time `json:"timestamp"`
}

// Validate checks the per-metric variant rules for an event.
// Counter metrics carry value 1, dwell carries positive seconds, and
// only clicks may reference a shortlink token.
func (e *AnalyticsEvent) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if e.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if !e.Surface.IsValid() {
		return fmt.Errorf("unrecognized surface %q", e.Surface)
	}
	if !e.Metric.IsValid() {
		return fmt.Errorf("unrecognized metric %q", e.Metric)
	}

	switch e.Metric {
	case MetricDwell:
		if e.Value <= 0 {
			return fmt.Errorf("dwell requires a positive value")
		}
		if e.Token != "" {
			return fmt.Errorf("dwell cannot carry a token")
		}
	case MetricClick:
		// Clicks are counters; token is optional (resolver clicks).
	default:
		if e.Token != "" {
			return fmt.Errorf("%s cannot carry a token", e.Metric)
		}
	}

	return nil
}

// Normalize applies server-side canonicalization: counter metrics are
// forced to value 1 regardless of what the client sent.
func (e *AnalyticsEvent) Normalize() {
	if e.Metric != MetricDwell {
		e.Value = 1
	}
}

// ComputeDedupKey derives the duplicate-suppression key for the event.
// A retransmitted event carries the same nonce and collapses onto the
// same key; two distinct facts never share one, even when every other
// field matches (a carousel re-showing the same sponsor emits a fresh
// impression each cycle).
func (e *AnalyticsEvent) ComputeDedupKey() string {
	return strings.Join([]string{
		e.SessionID,
		string(e.Surface),
		string(e.Metric),
		e.EventID,
		e.SponsorID,
		e.Token,
		e.Nonce,
	}, "|")
}
