package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/zeventbooks/eventpulse/internal/aggregate"
	"github.com/zeventbooks/eventpulse/internal/handler/dto"
	"github.com/zeventbooks/eventpulse/internal/middleware"
	"github.com/zeventbooks/eventpulse/internal/report"
)

// ReportHandler serves aggregate analytics reports.
type ReportHandler struct {
	builder *report.Builder
	logger  *slog.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(builder *report.Builder, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		builder: builder,
		logger:  logger,
	}
}

// Get handles GET /v1/reports.
//
// Query parameters: event_id, sponsor_id, from, to (RFC 3339). All are
// optional; an unscoped request aggregates everything.
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := aggregate.Query{
		EventID:   r.URL.Query().Get("event_id"),
		SponsorID: r.URL.Query().Get("sponsor_id"),
	}

	if err := middleware.ValidateIdentifier(q.EventID); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadInput, "event_id: "+err.Error())
		return
	}
	if err := middleware.ValidateIdentifier(q.SponsorID); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadInput, "sponsor_id: "+err.Error())
		return
	}

	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, CodeBadInput, "from must be RFC 3339")
			return
		}
		q.From = t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, CodeBadInput, "to must be RFC 3339")
			return
		}
		q.To = t
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		writeError(w, r, http.StatusBadRequest, CodeBadInput, "to must not precede from")
		return
	}

	rep, err := h.builder.Build(r.Context(), q)
	if err != nil {
		h.logger.Error("report build failed",
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "An internal error occurred")
		return
	}

	writeJSON(w, http.StatusOK, dto.ReportResponse{
		OK:     true,
		Report: rep,
	})
}
