package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/zeventbooks/eventpulse/internal/handler/dto"
	"github.com/zeventbooks/eventpulse/internal/ingest"
	"github.com/zeventbooks/eventpulse/internal/middleware"
)

// IngestHandler handles analytics event ingestion.
type IngestHandler struct {
	svc    *ingest.Service
	logger *slog.Logger
}

// NewIngestHandler creates a new IngestHandler.
func NewIngestHandler(svc *ingest.Service, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{
		svc:    svc,
		logger: logger,
	}
}

// Ingest handles POST /v1/ingest.
//
// The endpoint is public: clients are anonymous display surfaces, so
// admission control is the per-session rate limit inside the service,
// not API keys. A 200 response can still carry per-event rejections.
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req dto.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadInput, "Invalid JSON body")
		return
	}

	if req.SessionID == "" {
		writeError(w, r, http.StatusBadRequest, CodeBadInput, "session_id is required")
		return
	}
	if err := middleware.ValidateIdentifier(req.SessionID); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadInput, "session_id: "+err.Error())
		return
	}

	result, err := h.svc.IngestBatch(r.Context(), ingest.Batch{
		SessionID:         req.SessionID,
		VisibleSponsorIDs: req.VisibleSponsorIDs,
		Events:            req.Events,
	})
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrEmptyBatch):
			writeError(w, r, http.StatusBadRequest, CodeBadInput, "Batch contains no events")
		case errors.Is(err, ingest.ErrBatchTooLarge):
			writeError(w, r, http.StatusRequestEntityTooLarge, CodeBadInput, "Batch exceeds maximum size")
		default:
			h.logger.Error("ingest failed",
				"error", err,
				"session_id", req.SessionID,
				"request_id", middleware.GetRequestID(r.Context()),
			)
			writeError(w, r, http.StatusInternalServerError, CodeInternal, "An internal error occurred")
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.IngestResponse{
		OK:       true,
		Logged:   result.Accepted > 0,
		Accepted: result.Accepted,
		Rejected: result.Rejected,
		Deduped:  result.Deduped,
		Errors:   result.Errors,
	})
}
