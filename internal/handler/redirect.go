package handler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zeventbooks/eventpulse/internal/ingest"
	"github.com/zeventbooks/eventpulse/internal/metrics"
	"github.com/zeventbooks/eventpulse/internal/middleware"
	"github.com/zeventbooks/eventpulse/internal/model"
	"github.com/zeventbooks/eventpulse/internal/shortlink"
)

// LinkResolver resolves shortlink tokens. Satisfied by
// *shortlink.Service.
type LinkResolver interface {
	Resolve(ctx context.Context, token string) (*model.Shortlink, error)
}

// RedirectHandler resolves shortlink tokens and logs the click.
type RedirectHandler struct {
	links   LinkResolver
	ingest  *ingest.Service
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// NewRedirectHandler creates a new RedirectHandler.
func NewRedirectHandler(links LinkResolver, ingestSvc *ingest.Service, logger *slog.Logger, recorder metrics.Recorder) *RedirectHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &RedirectHandler{
		links:   links,
		ingest:  ingestSvc,
		logger:  logger,
		metrics: recorder,
		now:     time.Now,
	}
}

// SetClock overrides the time source for tests.
func (h *RedirectHandler) SetClock(now func() time.Time) {
	h.now = now
}

// Redirect handles GET /r/{token}.
//
// The click is logged synchronously before the redirect is issued so a
// crash cannot lose it, but a logging failure never blocks the visitor:
// the redirect wins.
func (h *RedirectHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := middleware.ValidateToken(token); err != nil {
		h.metrics.IncRedirect("invalid_token")
		h.writeError(w, r, http.StatusNotFound, CodeNotFound, "Link not found")
		return
	}

	start := time.Now()

	link, err := h.links.Resolve(r.Context(), token)
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, shortlink.ErrNotFound) {
			h.logger.Info("redirect_not_found",
				"token", token,
				"duration_ms", float64(duration.Microseconds())/1000,
			)
			h.metrics.IncRedirect("not_found")
			h.writeError(w, r, http.StatusNotFound, CodeNotFound, "Link not found")
			return
		}

		h.logger.Error("redirect_error",
			"token", token,
			"error", err,
			"duration_ms", float64(duration.Microseconds())/1000,
		)
		h.metrics.IncRedirect("error")
		h.writeError(w, r, http.StatusInternalServerError, CodeInternal, "An internal error occurred")
		return
	}

	h.logClick(r, link)

	h.logger.Info("redirect_success",
		"token", token,
		"event_id", link.EventID,
		"duration_ms", float64(duration.Microseconds())/1000,
	)
	h.metrics.IncRedirect("success")

	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Cache-Control", "private, max-age=0")

	http.Redirect(w, r, link.TargetURL, http.StatusFound)
}

// logClick records the click fact for the resolved shortlink. Failures
// are logged and swallowed.
//
// The nonce is the current minute, so a visitor hammering the same
// link collapses to one click per minute while clicks in later minutes
// count again.
func (h *RedirectHandler) logClick(r *http.Request, link *model.Shortlink) {
	raw := ingest.RawEvent{
		EventID:   link.EventID,
		Surface:   string(link.Surface),
		Metric:    string(model.MetricClick),
		SponsorID: link.SponsorID,
		Token:     link.Token,
		SessionID: h.visitorSession(r),
		Nonce:     fmt.Sprintf("m%d", h.now().UTC().Truncate(time.Minute).Unix()),
	}

	var visible []string
	if link.SponsorID != "" {
		// The shortlink's own attribution stands in for the visible set;
		// there is no rendering context on the redirect path.
		visible = []string{link.SponsorID}
	}

	result, err := h.ingest.IngestOne(r.Context(), raw, visible)
	switch {
	case err != nil:
		h.logger.Warn("click logging failed",
			"token", link.Token,
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		h.metrics.IncRedirectClickLogged("error")
	case result.Accepted == 0:
		h.metrics.IncRedirectClickLogged("rejected")
	case result.Deduped > 0:
		h.metrics.IncRedirectClickLogged("deduped")
	default:
		h.metrics.IncRedirectClickLogged("logged")
	}
}

// visitorSession derives a stable pseudonymous session ID for redirect
// visitors from IP, user agent and day. No raw IP is ever stored.
func (h *RedirectHandler) visitorSession(r *http.Request) string {
	day := h.now().UTC().Format("2006-01-02")
	sum := sha256.Sum256([]byte(getClientIP(r) + "|" + r.Header.Get("User-Agent") + "|" + day))
	return "visitor-" + hex.EncodeToString(sum[:8])
}

// writeError writes an error response with cache suppression headers.
func (h *RedirectHandler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=0")
	writeError(w, r, status, code, message)
}

// getClientIP extracts the client IP address from the request.
func getClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		// Take the first IP in the chain
		for i := 0; i < len(ip); i++ {
			if ip[i] == ',' {
				return ip[:i]
			}
		}
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
