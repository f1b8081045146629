//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/zeventbooks/eventpulse/internal/auth"
	"github.com/zeventbooks/eventpulse/internal/model"
	"github.com/zeventbooks/eventpulse/internal/repository"
)

type shortlinkResponse struct {
	OK        bool   `json:"ok"`
	Token     string `json:"token"`
	ShortURL  string `json:"short_url"`
	TargetURL string `json:"target_url"`
	EventID   string `json:"event_id"`
}

type ingestResponse struct {
	OK       bool `json:"ok"`
	Accepted int  `json:"accepted"`
	Rejected int  `json:"rejected"`
	Deduped  int  `json:"deduped"`
}

type reportResponse struct {
	OK     bool `json:"ok"`
	Report struct {
		Summary struct {
			Impressions int64 `json:"impressions"`
			Clicks      int64 `json:"clicks"`
		} `json:"summary"`
		LastUpdatedISO string `json:"lastUpdatedISO"`
	} `json:"report"`
}

func TestE2ESmoke(t *testing.T) {
	baseURL := envOrDefault("EVENTPULSE_BASE_URL", "http://localhost:8080")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatalf("DATABASE_URL is required for e2e tests")
	}

	apiKey := bootstrapAdminKey(t, dbURL, []string{model.ScopeAdmin})
	eventID := fmt.Sprintf("e2e-evt-%d", time.Now().UnixNano())

	// Create a shortlink for the event.
	link := createShortlink(t, baseURL, apiKey, eventID)

	// Resolve it: the visitor is redirected and a click fact is logged.
	assertRedirect(t, baseURL, link.Token, link.TargetURL)

	// Ingest a small impression batch from a fake public page session.
	ingestImpressions(t, baseURL, eventID, 4)

	// The report rolls up both paths.
	waitForReport(t, baseURL, apiKey, eventID)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func bootstrapAdminKey(t *testing.T, dbURL string, scopes []string) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	defer repo.Close()

	generated, err := auth.GenerateAPIKey(auth.EnvLive)
	if err != nil {
		t.Fatalf("generate api key: %v", err)
	}

	apiKey := &model.APIKey{
		ID:        ulid.Make().String(),
		KeyHash:   generated.Hash,
		KeyPrefix: generated.Prefix,
		Scopes:    scopes,
		Name:      "e2e-bootstrap",
		CreatedAt: time.Now().UTC(),
	}

	if err := repo.CreateAPIKey(ctx, apiKey); err != nil {
		t.Fatalf("create api key: %v", err)
	}

	return generated.Plaintext
}

func createShortlink(t *testing.T, baseURL, apiKey, eventID string) shortlinkResponse {
	t.Helper()

	payload := map[string]any{
		"target_url": "https://example.com/e2e",
		"event_id":   eventID,
		"surface":    "poster",
	}

	var resp shortlinkResponse
	status := doJSON(t, http.MethodPost, baseURL+"/v1/shortlinks", apiKey, payload, &resp)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 from shortlink create, got %d", status)
	}
	if resp.Token == "" || resp.ShortURL == "" {
		t.Fatalf("shortlink create response missing fields: %+v", resp)
	}
	return resp
}

func assertRedirect(t *testing.T, baseURL, token, destination string) {
	t.Helper()

	client := &http.Client{
		Timeout: 10 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/r/%s", baseURL, token), nil)
	if err != nil {
		t.Fatalf("create redirect request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("redirect request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}

	location := resp.Header.Get("Location")
	if location != destination {
		t.Fatalf("expected Location %q, got %q", destination, location)
	}
}

func ingestImpressions(t *testing.T, baseURL, eventID string, count int) {
	t.Helper()

	events := make([]map[string]any, 0, count)
	for i := 0; i < count; i++ {
		events = append(events, map[string]any{
			"event_id": eventID,
			"surface":  "public",
			"metric":   "impression",
			// Distinct sub-sessions keep the facts out of dedup's way.
			"session_id": fmt.Sprintf("e2e-sess-%d-%d", time.Now().UnixNano(), i),
		})
	}

	payload := map[string]any{
		"session_id": fmt.Sprintf("e2e-sess-%d", time.Now().UnixNano()),
		"events":     events,
	}

	var resp ingestResponse
	status := doJSON(t, http.MethodPost, baseURL+"/v1/ingest", "", payload, &resp)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from ingest, got %d", status)
	}
	if resp.Accepted != count {
		t.Fatalf("expected %d accepted, got %+v", count, resp)
	}
}

func waitForReport(t *testing.T, baseURL, apiKey, eventID string) {
	t.Helper()

	endpoint := fmt.Sprintf("%s/v1/reports?event_id=%s", baseURL, eventID)

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		var resp reportResponse
		status := doJSON(t, http.MethodGet, endpoint, apiKey, nil, &resp)
		if status == http.StatusOK && resp.Report.Summary.Impressions >= 4 && resp.Report.Summary.Clicks >= 1 {
			if resp.Report.LastUpdatedISO == "" {
				t.Fatalf("report missing lastUpdatedISO")
			}
			return
		}
		time.Sleep(250 * time.Millisecond)
	}

	t.Fatalf("report did not include ingested facts in time")
}

func doJSON(t *testing.T, method, url, apiKey string, body any, out any) int {
	t.Helper()

	var buf io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		buf = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, buf)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		decoder := json.NewDecoder(resp.Body)
		if err := decoder.Decode(out); err != nil && resp.ContentLength != 0 {
			t.Fatalf("decode response: %v", err)
		}
	}

	return resp.StatusCode
}

// TestE2EIngestRateLimitPartialGrant validates that an oversized burst
// from one session is partially admitted, not rejected wholesale.
func TestE2EIngestRateLimitPartialGrant(t *testing.T) {
	baseURL := envOrDefault("EVENTPULSE_BASE_URL", "http://localhost:8080")

	sessionID := fmt.Sprintf("e2e-burst-%d", time.Now().UnixNano())

	// Default session cap is 600 per minute. Send 650 events from one
	// session and expect roughly the cap admitted with the rest
	// rejected as RATE_LIMITED.
	const batchSize = 650
	events := make([]map[string]any, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		events = append(events, map[string]any{
			"event_id": fmt.Sprintf("e2e-evt-%d", i),
			"surface":  "public",
			"metric":   "impression",
		})
	}

	// The default max batch size is 200, so split into chunks.
	total := ingestResponse{}
	for start := 0; start < batchSize; start += 200 {
		end := start + 200
		if end > batchSize {
			end = batchSize
		}
		payload := map[string]any{
			"session_id": sessionID,
			"events":     events[start:end],
		}
		var resp ingestResponse
		status := doJSON(t, http.MethodPost, baseURL+"/v1/ingest", "", payload, &resp)
		if status != http.StatusOK {
			t.Fatalf("expected 200 from ingest, got %d", status)
		}
		total.Accepted += resp.Accepted
		total.Rejected += resp.Rejected
	}

	if total.Rejected == 0 {
		t.Fatalf("expected the session cap to reject part of the burst, got %+v", total)
	}
	if total.Accepted == 0 {
		t.Fatalf("expected the head of the burst admitted, got %+v", total)
	}
}

// TestE2ENoSecretsInResponses validates that API keys are not echoed
// back in error or success responses.
func TestE2ENoSecretsInResponses(t *testing.T) {
	baseURL := envOrDefault("EVENTPULSE_BASE_URL", "http://localhost:8080")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatalf("DATABASE_URL is required for e2e tests")
	}

	bootstrapKey := bootstrapAdminKey(t, dbURL, []string{model.ScopeAdmin})

	client := &http.Client{Timeout: 10 * time.Second}

	fakeKey := "ek_live_abc123_" + strings.Repeat("a", 32)
	req, err := http.NewRequest(http.MethodGet, baseURL+"/v1/reports", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+fakeKey)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if strings.Contains(string(body), fakeKey) {
		t.Error("error response leaked the Authorization header value")
	}

	req2, err := http.NewRequest(http.MethodGet, baseURL+"/v1/reports", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req2.Header.Set("Authorization", "Bearer "+bootstrapKey)

	resp2, err := client.Do(req2)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body2, _ := io.ReadAll(resp2.Body)
	resp2.Body.Close()

	if strings.Contains(string(body2), bootstrapKey) {
		t.Error("successful response echoed back the API key")
	}
}
