// Package dto defines request and response shapes for the HTTP API.
package dto

import (
	"github.com/zeventbooks/eventpulse/internal/ingest"
	"github.com/zeventbooks/eventpulse/internal/model"
)

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	OK      bool   `json:"ok"`
	Code    string `json:"code"`
	Message string `json:"message"`
	CorrID  string `json:"corr_id,omitempty"`
}

// IngestRequest is the body of POST /v1/ingest.
type IngestRequest struct {
	SessionID         string            `json:"session_id"`
	VisibleSponsorIDs []string          `json:"visible_sponsor_ids,omitempty"`
	Events            []ingest.RawEvent `json:"events"`
}

// IngestResponse reports a batch outcome. Partial success is normal:
// Accepted and Rejected together cover every submitted event. Logged
// is the short answer (did anything land), the counts are the details.
type IngestResponse struct {
	OK       bool                `json:"ok"`
	Logged   bool                `json:"logged"`
	Accepted int                 `json:"accepted"`
	Rejected int                 `json:"rejected"`
	Deduped  int                 `json:"deduped"`
	Errors   []ingest.EventError `json:"errors,omitempty"`
}

// CreateShortlinkRequest is the body of POST /v1/shortlinks.
type CreateShortlinkRequest struct {
	TargetURL string `json:"target_url"`
	EventID   string `json:"event_id"`
	Surface   string `json:"surface,omitempty"`
	SponsorID string `json:"sponsor_id,omitempty"`
}

// ShortlinkResponse is the wire shape of a shortlink.
type ShortlinkResponse struct {
	OK        bool   `json:"ok"`
	Token     string `json:"token"`
	ShortURL  string `json:"short_url"`
	TargetURL string `json:"target_url"`
	EventID   string `json:"event_id"`
	Surface   string `json:"surface"`
	SponsorID string `json:"sponsor_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ReportResponse wraps the aggregate report in the success envelope.
type ReportResponse struct {
	OK     bool                   `json:"ok"`
	Report *model.AggregateReport `json:"report"`
}
