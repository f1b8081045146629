package buffer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/zeventbooks/eventpulse/internal/ingest"
)

// HTTP client timeouts for batch delivery.
const (
	clientTimeout         = 30 * time.Second
	dialTimeout           = 10 * time.Second
	tlsHandshakeTimeout   = 10 * time.Second
	responseHeaderTimeout = 15 * time.Second
)

// HTTPSink delivers batches to the ingestion endpoint over HTTP.
type HTTPSink struct {
	client    *http.Client
	ingestURL string
}

// NewHTTPSink creates a sink posting to the given ingest URL.
func NewHTTPSink(ingestURL string) *HTTPSink {
	return &HTTPSink{
		client: &http.Client{
			Timeout: clientTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   dialTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   tlsHandshakeTimeout,
				ResponseHeaderTimeout: responseHeaderTimeout,
				MaxIdleConns:          10,
				MaxIdleConnsPerHost:   2,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		ingestURL: ingestURL,
	}
}

// batchPayload is the wire shape of an ingestion request.
type batchPayload struct {
	SessionID         string            `json:"session_id"`
	VisibleSponsorIDs []string          `json:"visible_sponsor_ids,omitempty"`
	Events            []ingest.RawEvent `json:"events"`
}

// Send posts the batch. Any non-2xx status is an error so the buffer
// retains the events; per-event rejections inside a 2xx response are
// final and not retried.
func (s *HTTPSink) Send(ctx context.Context, batch ingest.Batch) error {
	body, err := json.Marshal(batchPayload{
		SessionID:         batch.SessionID,
		VisibleSponsorIDs: batch.VisibleSponsorIDs,
		Events:            batch.Events,
	})
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.ingestURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Eventpulse-Agent/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	defer resp.Body.Close()

	// Drain body to allow connection reuse.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ingest endpoint returned HTTP %d", resp.StatusCode)
	}

	return nil
}
