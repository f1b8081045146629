package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zeventbooks/eventpulse/internal/handler/dto"
	"github.com/zeventbooks/eventpulse/internal/middleware"
	"github.com/zeventbooks/eventpulse/internal/model"
	"github.com/zeventbooks/eventpulse/internal/shortlink"
)

// ShortlinkHandler manages shortlink CRUD endpoints.
type ShortlinkHandler struct {
	svc    *shortlink.Service
	logger *slog.Logger
}

// NewShortlinkHandler creates a new ShortlinkHandler.
func NewShortlinkHandler(svc *shortlink.Service, logger *slog.Logger) *ShortlinkHandler {
	return &ShortlinkHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /v1/shortlinks. Requires write scope.
func (h *ShortlinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateShortlinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadInput, "Invalid JSON body")
		return
	}

	if err := middleware.ValidateTargetURL(req.TargetURL); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadInput, err.Error())
		return
	}
	if err := middleware.ValidateIdentifier(req.EventID); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadInput, "event_id: "+err.Error())
		return
	}
	if err := middleware.ValidateIdentifier(req.SponsorID); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadInput, "sponsor_id: "+err.Error())
		return
	}

	link, err := h.svc.Create(r.Context(), shortlink.CreateInput{
		TargetURL: req.TargetURL,
		EventID:   req.EventID,
		Surface:   model.Surface(req.Surface),
		SponsorID: req.SponsorID,
	})
	if err != nil {
		switch {
		case errors.Is(err, shortlink.ErrInvalidTarget),
			errors.Is(err, shortlink.ErrInvalidEventID),
			errors.Is(err, shortlink.ErrURLTooLong):
			writeError(w, r, http.StatusBadRequest, CodeBadInput, err.Error())
		default:
			h.logger.Error("shortlink creation failed",
				"error", err,
				"request_id", middleware.GetRequestID(r.Context()),
			)
			writeError(w, r, http.StatusInternalServerError, CodeInternal, "An internal error occurred")
		}
		return
	}

	writeJSON(w, http.StatusCreated, h.toResponse(link))
}

// Get handles GET /v1/shortlinks/{token}. Requires read scope.
func (h *ShortlinkHandler) Get(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := middleware.ValidateToken(token); err != nil {
		writeError(w, r, http.StatusNotFound, CodeNotFound, "Shortlink not found")
		return
	}

	link, err := h.svc.Resolve(r.Context(), token)
	if err != nil {
		if errors.Is(err, shortlink.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, CodeNotFound, "Shortlink not found")
			return
		}
		h.logger.Error("shortlink lookup failed",
			"token", token,
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "An internal error occurred")
		return
	}

	writeJSON(w, http.StatusOK, h.toResponse(link))
}

func (h *ShortlinkHandler) toResponse(link *model.Shortlink) dto.ShortlinkResponse {
	return dto.ShortlinkResponse{
		OK:        true,
		Token:     link.Token,
		ShortURL:  h.svc.ShortURL(link.Token),
		TargetURL: link.TargetURL,
		EventID:   link.EventID,
		Surface:   string(link.Surface),
		SponsorID: link.SponsorID,
		CreatedAt: link.CreatedAt.UTC().Format(time.RFC3339),
	}
}
