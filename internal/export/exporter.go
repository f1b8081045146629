package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/zeventbooks/eventpulse/internal/aggregate"
	"github.com/zeventbooks/eventpulse/internal/metrics"
	"github.com/zeventbooks/eventpulse/internal/report"
)

const (
	// DefaultExportInterval is the time between report snapshots.
	DefaultExportInterval = 15 * time.Minute

	// HTTP client timeouts for snapshot delivery.
	clientTimeout         = 30 * time.Second
	dialTimeout           = 10 * time.Second
	tlsHandshakeTimeout   = 10 * time.Second
	responseHeaderTimeout = 15 * time.Second
)

// Header names for export requests.
const (
	HeaderSignature = "X-Eventpulse-Signature"
	HeaderTimestamp = "X-Eventpulse-Timestamp"
	HeaderExportID  = "X-Eventpulse-Export-Id"
)

// Exporter periodically builds the aggregate report and delivers it to
// an external consumer as a signed HTTPS POST.
type Exporter struct {
	builder     *report.Builder
	targetURL   string
	secret      string
	client      *http.Client
	logger      *slog.Logger
	metrics     metrics.Recorder
	interval    time.Duration
	maxAttempts int
	started     bool
}

// NewExporter creates an exporter. The target URL is validated against
// the SSRF rules up front so a misconfigured destination fails at
// startup, not at the first delivery.
func NewExporter(builder *report.Builder, targetURL, secret string, logger *slog.Logger, recorder metrics.Recorder) (*Exporter, error) {
	if err := ValidateTargetURL(targetURL); err != nil {
		return nil, fmt.Errorf("invalid export target: %w", err)
	}
	if secret == "" {
		return nil, errors.New("export secret is required")
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return &Exporter{
		builder:   builder,
		targetURL: targetURL,
		secret:    secret,
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
			// Redirects are refused so a compromised receiver cannot
			// bounce the delivery to an internal address.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:      logger.With("component", "export"),
		metrics:     recorder,
		interval:    DefaultExportInterval,
		maxAttempts: DefaultMaxAttempts,
	}, nil
}

// SetInterval overrides the default export interval.
func (e *Exporter) SetInterval(interval time.Duration) {
	if interval > 0 {
		e.interval = interval
	}
}

// SetMaxAttempts overrides the default attempt cap.
func (e *Exporter) SetMaxAttempts(n int) {
	if n > 0 {
		e.maxAttempts = n
	}
}

// Run starts the export loop. Blocks until the context is cancelled.
func (e *Exporter) Run(ctx context.Context) error {
	if e.started {
		return errors.New("exporter already started")
	}
	e.started = true

	e.logger.Info("export loop started",
		"target_host", ExtractHost(e.targetURL),
		"interval", e.interval,
	)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("export loop stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := e.ExportOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				e.logger.Error("export failed", "error", err)
			}
		}
	}
}

// ExportOnce builds a fresh report and delivers it, retrying transient
// failures with backoff. A snapshot that exhausts its attempts is
// abandoned; the next tick builds a newer one.
func (e *Exporter) ExportOnce(ctx context.Context) error {
	snapshot, err := e.builder.Build(ctx, aggregate.Query{})
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	exportID := uuid.NewString()

	var lastErr error
	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(NextRetryDelay(attempt - 1)):
			}
		}

		if lastErr = e.deliver(ctx, exportID, payload); lastErr == nil {
			e.metrics.IncExportDelivery("success")
			return nil
		}

		e.logger.Warn("export delivery attempt failed",
			"export_id", exportID,
			"attempt", attempt+1,
			"error", lastErr,
		)
		e.metrics.IncExportDelivery("failed")
	}

	e.metrics.IncExportDelivery("exhausted")
	return fmt.Errorf("export exhausted after %d attempts: %w", e.maxAttempts, lastErr)
}

func (e *Exporter) deliver(ctx context.Context, exportID string, payload []byte) error {
	timestamp := time.Now().Unix()
	signature := GenerateSignature(e.secret, timestamp, payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.targetURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, signature)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(timestamp, 10))
	req.Header.Set(HeaderExportID, exportID)
	req.Header.Set("User-Agent", "Eventpulse-Export/1.0")

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Drain body to allow connection reuse.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	e.logger.Info("report exported",
		"export_id", exportID,
		"target_host", ExtractHost(e.targetURL),
		"http_status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}
