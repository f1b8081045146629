package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder exposes Recorder events as Prometheus metrics.
type PrometheusRecorder struct {
	eventsIngested      *prometheus.CounterVec
	eventsRejected      *prometheus.CounterVec
	ingestBatchSize     prometheus.Histogram
	redirects           *prometheus.CounterVec
	redirectClickLogged *prometheus.CounterVec
	aggregateDuration   prometheus.Histogram
	reportsBuilt        prometheus.Counter
	rateLimited         *prometheus.CounterVec
	bufferDropped       prometheus.Counter
	bufferQueueDepth    prometheus.Gauge
	exportDeliveries    *prometheus.CounterVec
}

// NewPrometheus creates a Recorder registered on the given registerer.
// Pass nil to register on the default registry.
func NewPrometheus(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		eventsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventpulse_events_ingested_total",
			Help: "Total number of analytics facts stored, labelled by metric kind.",
		}, []string{"metric"}),
		eventsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventpulse_events_rejected_total",
			Help: "Total number of events rejected at ingestion, labelled by error code.",
		}, []string{"code"}),
		ingestBatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "eventpulse_ingest_batch_size",
			Help:    "Distribution of ingestion batch sizes.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 200},
		}),
		redirects: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventpulse_redirects_total",
			Help: "Total number of shortlink redirect requests, labelled by outcome.",
		}, []string{"outcome"}),
		redirectClickLogged: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventpulse_redirect_clicks_logged_total",
			Help: "Total number of click facts emitted by the redirect path.",
		}, []string{"status"}),
		aggregateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "eventpulse_aggregate_duration_seconds",
			Help:    "Time spent in a full aggregation pass.",
			Buckets: prometheus.DefBuckets,
		}),
		reportsBuilt: factory.NewCounter(prometheus.CounterOpts{
			Name: "eventpulse_reports_built_total",
			Help: "Total number of aggregate reports built.",
		}),
		rateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventpulse_rate_limited_total",
			Help: "Total number of rate-limit denials, labelled by scope.",
		}, []string{"scope"}),
		bufferDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "eventpulse_buffer_dropped_total",
			Help: "Total number of buffered events evicted oldest-first.",
		}),
		bufferQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "eventpulse_buffer_queue_depth",
			Help: "Current number of events waiting in the client buffer.",
		}),
		exportDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventpulse_export_deliveries_total",
			Help: "Total number of report export deliveries, labelled by status.",
		}, []string{"status"}),
	}
}

// IncEventIngested increments the stored-fact counter.
func (p *PrometheusRecorder) IncEventIngested(metric string) {
	p.eventsIngested.WithLabelValues(metric).Inc()
}

// IncEventRejected increments the rejection counter.
func (p *PrometheusRecorder) IncEventRejected(code string) {
	p.eventsRejected.WithLabelValues(code).Inc()
}

// ObserveIngestBatchSize records a batch size observation.
func (p *PrometheusRecorder) ObserveIngestBatchSize(size int) {
	p.ingestBatchSize.Observe(float64(size))
}

// IncRedirect increments the redirect counter.
func (p *PrometheusRecorder) IncRedirect(outcome string) {
	p.redirects.WithLabelValues(outcome).Inc()
}

// IncRedirectClickLogged increments the redirect click-log counter.
func (p *PrometheusRecorder) IncRedirectClickLogged(status string) {
	p.redirectClickLogged.WithLabelValues(status).Inc()
}

// ObserveAggregateDuration records an aggregation pass duration.
func (p *PrometheusRecorder) ObserveAggregateDuration(duration time.Duration) {
	p.aggregateDuration.Observe(duration.Seconds())
}

// IncReportBuilt increments the built-report counter.
func (p *PrometheusRecorder) IncReportBuilt() {
	p.reportsBuilt.Inc()
}

// IncRateLimited increments the rate-limit denial counter.
func (p *PrometheusRecorder) IncRateLimited(scope string) {
	p.rateLimited.WithLabelValues(scope).Inc()
}

// IncBufferDropped increments the buffer eviction counter.
func (p *PrometheusRecorder) IncBufferDropped() {
	p.bufferDropped.Inc()
}

// SetBufferQueueDepth records the current buffer depth.
func (p *PrometheusRecorder) SetBufferQueueDepth(depth int64) {
	p.bufferQueueDepth.Set(float64(depth))
}

// IncExportDelivery increments the export delivery counter.
func (p *PrometheusRecorder) IncExportDelivery(status string) {
	p.exportDeliveries.WithLabelValues(status).Inc()
}
