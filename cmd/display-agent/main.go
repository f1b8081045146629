// Package main is a forwarding agent for display surfaces. It reads
// analytics events as JSON lines on stdin, buffers them locally and
// flushes batches to the ingestion endpoint. Kiosk renderers that
// cannot speak HTTP themselves pipe their event stream through it.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/google/uuid"

	"github.com/zeventbooks/eventpulse/internal/buffer"
	"github.com/zeventbooks/eventpulse/internal/ingest"
)

type agentConfig struct {
	IngestURL         string        `env:"INGEST_URL,required"`
	SessionID         string        `env:"SESSION_ID" envDefault:""`
	FlushInterval     time.Duration `env:"FLUSH_INTERVAL" envDefault:"5s"`
	MaxQueueSize      int           `env:"MAX_QUEUE_SIZE" envDefault:"500"`
	VisibleSponsorIDs string        `env:"VISIBLE_SPONSOR_IDS" envDefault:""`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
}

func main() {
	cfg := &agentConfig{}
	if err := env.Parse(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse config: %v\n", err)
		os.Exit(1)
	}

	if cfg.SessionID == "" {
		cfg.SessionID = "agent-" + uuid.NewString()
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))

	sink := buffer.NewHTTPSink(cfg.IngestURL)
	buf := buffer.New(sink, cfg.SessionID, logger, nil)
	buf.SetFlushInterval(cfg.FlushInterval)
	buf.SetMaxQueueSize(cfg.MaxQueueSize)
	if sponsors := splitList(cfg.VisibleSponsorIDs); len(sponsors) > 0 {
		buf.SetVisibleSponsors(sponsors)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("display agent started",
		"session_id", cfg.SessionID,
		"ingest_url", cfg.IngestURL,
		"flush_interval", cfg.FlushInterval,
	)

	// stdin reader feeds the buffer; the flush loop drains it. A closed
	// stdin ends the agent after a final flush.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		readEvents(os.Stdin, buf, logger)
	}()

	runDone := make(chan error, 1)
	go func() {
		runDone <- buf.Run(ctx)
	}()

	select {
	case <-readDone:
		logger.Info("input closed, shutting down")
		stop()
		<-runDone
	case <-runDone:
	}

	if dropped := buf.Dropped(); dropped > 0 {
		logger.Warn("events were dropped from a full queue", "dropped", dropped)
	}
}

// readEvents parses one JSON event per line and queues it. Malformed
// lines are logged and skipped so one bad event never stalls the
// stream.
func readEvents(r *os.File, buf *buffer.Buffer, logger *slog.Logger) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var event ingest.RawEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			logger.Warn("skipping malformed event line", "error", err)
			continue
		}
		buf.Record(event)
	}

	if err := scanner.Err(); err != nil {
		logger.Error("reading input failed", "error", err)
	}
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
