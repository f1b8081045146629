package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zeventbooks/eventpulse/internal/ingest"
	"github.com/zeventbooks/eventpulse/internal/model"
	"github.com/zeventbooks/eventpulse/internal/shortlink"
	"github.com/zeventbooks/eventpulse/internal/store"
)

type fakeResolver struct {
	links map[string]*model.Shortlink
	err   error
}

func (f *fakeResolver) Resolve(_ context.Context, token string) (*model.Shortlink, error) {
	if f.err != nil {
		return nil, f.err
	}
	if link, ok := f.links[token]; ok {
		return link, nil
	}
	return nil, shortlink.ErrNotFound
}

func newRedirectTestEnv(resolver *fakeResolver) (*chi.Mux, *store.Memory, *RedirectHandler) {
	st := store.NewMemory()
	ingestSvc := ingest.New(st, nil, testLogger(), nil)
	// Pin both clocks so click nonces and stamps are stable in tests.
	fixed := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	ingestSvc.SetClock(func() time.Time { return fixed })
	h := NewRedirectHandler(resolver, ingestSvc, testLogger(), nil)
	h.SetClock(func() time.Time { return fixed })

	router := chi.NewRouter()
	router.Get("/r/{token}", h.Redirect)
	return router, st, h
}

func testShortlink() *model.Shortlink {
	return &model.Shortlink{
		Token:     "abc123XY",
		TargetURL: "https://example.com/sponsors/acme",
		EventID:   "evt-1",
		Surface:   model.SurfacePublic,
		SponsorID: "sp-acme",
		CreatedAt: time.Now().UTC(),
	}
}

func TestRedirectLogsClickAndRedirects(t *testing.T) {
	link := testShortlink()
	router, st, _ := newRedirectTestEnv(&fakeResolver{links: map[string]*model.Shortlink{link.Token: link}})

	req := httptest.NewRequest(http.MethodGet, "/r/abc123XY", nil)
	req.Header.Set("User-Agent", "test-agent")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != link.TargetURL {
		t.Errorf("expected redirect to %s, got %s", link.TargetURL, loc)
	}

	// The click fact is stored before the redirect is issued.
	events, err := st.Query(context.Background(), store.Filter{})
	if err != nil {
		t.Fatalf("query store: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 click fact, got %d", len(events))
	}
	click := events[0]
	if click.Metric != model.MetricClick {
		t.Errorf("expected click metric, got %s", click.Metric)
	}
	if click.Token != link.Token || click.EventID != link.EventID || click.SponsorID != link.SponsorID {
		t.Errorf("click fact missing shortlink attribution: %+v", click)
	}
	if click.SessionID == "" {
		t.Error("click fact should carry a visitor session")
	}
}

func TestRedirectUnknownToken(t *testing.T) {
	router, st, _ := newRedirectTestEnv(&fakeResolver{})

	req := httptest.NewRequest(http.MethodGet, "/r/nosuch12", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	assertErrorEnvelope(t, rec, CodeNotFound)
	if st.Len() != 0 {
		t.Errorf("no click should be logged for unknown tokens")
	}
}

func TestRedirectInvalidToken(t *testing.T) {
	router, _, _ := newRedirectTestEnv(&fakeResolver{})

	req := httptest.NewRequest(http.MethodGet, "/r/a!", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for malformed token, got %d", rec.Code)
	}
}

func TestRedirectResolverError(t *testing.T) {
	router, _, _ := newRedirectTestEnv(&fakeResolver{err: errors.New("database down")})

	req := httptest.NewRequest(http.MethodGet, "/r/abc123XY", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	assertErrorEnvelope(t, rec, CodeInternal)
}

func TestRedirectSurvivesClickLoggingFailure(t *testing.T) {
	link := testShortlink()
	// A nil-store ingest service would panic; instead use a link whose
	// sponsor cannot validate, so the click is rejected but the visitor
	// is still redirected.
	broken := *link
	broken.Surface = model.Surface("nonsense")
	router, st, _ := newRedirectTestEnv(&fakeResolver{links: map[string]*model.Shortlink{link.Token: &broken}})

	req := httptest.NewRequest(http.MethodGet, "/r/abc123XY", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("redirect must win over click logging, got %d", rec.Code)
	}
	if st.Len() != 0 {
		t.Errorf("invalid click should not be stored")
	}
}

func TestRedirectDeduplicatesRepeatClicks(t *testing.T) {
	link := testShortlink()
	router, st, h := newRedirectTestEnv(&fakeResolver{links: map[string]*model.Shortlink{link.Token: link}})

	hit := func() {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/r/abc123XY", nil)
		req.Header.Set("User-Agent", "same-agent")
		req.RemoteAddr = "203.0.113.9:1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rec.Code)
		}
	}

	for i := 0; i < 3; i++ {
		hit()
	}

	// Same visitor, token and minute: one stored fact.
	if st.Len() != 1 {
		t.Fatalf("expected repeat clicks deduplicated to 1 fact, got %d", st.Len())
	}

	// A click in the next minute counts again.
	h.SetClock(func() time.Time {
		return time.Date(2026, 3, 1, 12, 1, 30, 0, time.UTC)
	})
	hit()
	if st.Len() != 2 {
		t.Fatalf("expected a later-minute click to count, got %d facts", st.Len())
	}
}
