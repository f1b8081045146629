package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncEventIngested is a no-op.
func (n *NoopRecorder) IncEventIngested(metric string) {}

// IncEventRejected is a no-op.
func (n *NoopRecorder) IncEventRejected(code string) {}

// ObserveIngestBatchSize is a no-op.
func (n *NoopRecorder) ObserveIngestBatchSize(size int) {}

// IncRedirect is a no-op.
func (n *NoopRecorder) IncRedirect(outcome string) {}

// IncRedirectClickLogged is a no-op.
func (n *NoopRecorder) IncRedirectClickLogged(status string) {}

// ObserveAggregateDuration is a no-op.
func (n *NoopRecorder) ObserveAggregateDuration(duration time.Duration) {}

// IncReportBuilt is a no-op.
func (n *NoopRecorder) IncReportBuilt() {}

// IncRateLimited is a no-op.
func (n *NoopRecorder) IncRateLimited(scope string) {}

// IncBufferDropped is a no-op.
func (n *NoopRecorder) IncBufferDropped() {}

// SetBufferQueueDepth is a no-op.
func (n *NoopRecorder) SetBufferQueueDepth(depth int64) {}

// IncExportDelivery is a no-op.
func (n *NoopRecorder) IncExportDelivery(status string) {}
