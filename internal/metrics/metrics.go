// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Ingestion pipeline
	IncEventIngested(metric string) // stored fact, labeled by metric kind
	IncEventRejected(code string)   // per-event rejection, labeled by error code
	ObserveIngestBatchSize(size int)

	// Shortlink redirects
	IncRedirect(outcome string)           // "ok" or "not_found"
	IncRedirectClickLogged(status string) // "success" or "dropped"

	// Reporting
	ObserveAggregateDuration(duration time.Duration)
	IncReportBuilt()

	// Rate limiting
	IncRateLimited(scope string) // "admin", "ingest", "redirect"

	// Client-side buffer (display agent)
	IncBufferDropped()
	SetBufferQueueDepth(depth int64)

	// Report export
	IncExportDelivery(status string) // "success" or "failed"
}
