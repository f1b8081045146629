package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	EventsIngested      map[string]uint64
	EventsRejected      map[string]uint64
	IngestBatchCount    uint64
	IngestBatchTotal    uint64
	Redirects           map[string]uint64
	RedirectClickLogged map[string]uint64
	AggregateCount      uint64
	AggregateTotalNs    int64
	ReportsBuilt        uint64
	RateLimited         map[string]uint64
	BufferDropped       uint64
	BufferQueueDepth    int64
	ExportDeliveries    map[string]uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu                  sync.Mutex
	eventsIngested      map[string]uint64
	eventsRejected      map[string]uint64
	ingestBatchCount    uint64
	ingestBatchTotal    uint64
	redirects           map[string]uint64
	redirectClickLogged map[string]uint64
	aggregateCount      uint64
	aggregateTotalNs    int64
	reportsBuilt        uint64
	rateLimited         map[string]uint64
	bufferDropped       uint64
	bufferQueueDepth    int64
	exportDeliveries    map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		eventsIngested:      make(map[string]uint64),
		eventsRejected:      make(map[string]uint64),
		redirects:           make(map[string]uint64),
		redirectClickLogged: make(map[string]uint64),
		rateLimited:         make(map[string]uint64),
		exportDeliveries:    make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		EventsIngested:      copyCounts(m.eventsIngested),
		EventsRejected:      copyCounts(m.eventsRejected),
		IngestBatchCount:    m.ingestBatchCount,
		IngestBatchTotal:    m.ingestBatchTotal,
		Redirects:           copyCounts(m.redirects),
		RedirectClickLogged: copyCounts(m.redirectClickLogged),
		AggregateCount:      m.aggregateCount,
		AggregateTotalNs:    m.aggregateTotalNs,
		ReportsBuilt:        m.reportsBuilt,
		RateLimited:         copyCounts(m.rateLimited),
		BufferDropped:       m.bufferDropped,
		BufferQueueDepth:    atomic.LoadInt64(&m.bufferQueueDepth),
		ExportDeliveries:    copyCounts(m.exportDeliveries),
	}
}

// IncEventIngested increments the stored-fact counter for a metric kind.
func (m *InMemoryRecorder) IncEventIngested(metric string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventsIngested[metric]++
}

// IncEventRejected increments the rejection counter for an error code.
func (m *InMemoryRecorder) IncEventRejected(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventsRejected[code]++
}

// ObserveIngestBatchSize records a batch size observation.
func (m *InMemoryRecorder) ObserveIngestBatchSize(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingestBatchCount++
	m.ingestBatchTotal += uint64(size)
}

// IncRedirect increments the redirect counter for an outcome.
func (m *InMemoryRecorder) IncRedirect(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redirects[outcome]++
}

// IncRedirectClickLogged increments the redirect click-log counter.
func (m *InMemoryRecorder) IncRedirectClickLogged(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redirectClickLogged[status]++
}

// ObserveAggregateDuration records an aggregation pass duration.
func (m *InMemoryRecorder) ObserveAggregateDuration(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggregateCount++
	m.aggregateTotalNs += duration.Nanoseconds()
}

// IncReportBuilt increments the built-report counter.
func (m *InMemoryRecorder) IncReportBuilt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reportsBuilt++
}

// IncRateLimited increments the rate-limit denial counter for a scope.
func (m *InMemoryRecorder) IncRateLimited(scope string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimited[scope]++
}

// IncBufferDropped increments the buffer eviction counter.
func (m *InMemoryRecorder) IncBufferDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bufferDropped++
}

// SetBufferQueueDepth records the current buffer depth.
func (m *InMemoryRecorder) SetBufferQueueDepth(depth int64) {
	atomic.StoreInt64(&m.bufferQueueDepth, depth)
}

// IncExportDelivery increments the export delivery counter.
func (m *InMemoryRecorder) IncExportDelivery(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exportDeliveries[status]++
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
