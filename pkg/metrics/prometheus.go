// Package metrics provides Prometheus metrics for the staggerline service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Ingestion
	eventsIngested  *prometheus.CounterVec
	eventsDuplicate prometheus.Counter
	eventsDropped   prometheus.Counter
	purifyMarkers   prometheus.Counter
	noPriorStagger  prometheus.Counter

	// Queue
	queueCapacity    prometheus.Gauge
	queueSize        prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueues    prometheus.Counter
	queueDrops       *prometheus.CounterVec

	// Encounters / projection
	encountersActive  prometheus.Gauge
	encountersOpened  prometheus.Counter
	encountersClosed  prometheus.Counter
	projectionLatency prometheus.Histogram

	// Archive
	archiveWrites prometheus.Counter
	archiveErrors prometheus.Counter

	// Live stream
	wsClients prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid the default Go collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "staggerline",
		subsystem:        "encounter",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.eventsIngested = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_ingested_total",
		Help:      "Total events accepted into a tracker, by kind",
	}, []string{"kind"})

	m.eventsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_duplicate_total",
		Help:      "Total duplicate events rejected by the replay deduper",
	})

	m.eventsDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_dropped_total",
		Help:      "Total events dropped because the target encounter was unknown",
	})

	m.purifyMarkers = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "purify_markers_total",
		Help:      "Total purification markers recorded",
	})

	m.noPriorStagger = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "no_prior_stagger_total",
		Help:      "Total purifies skipped because no stagger event preceded them",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Configured capacity of each ingest queue shard",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Current number of events waiting in ingest queues",
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_utilization",
		Help:      "Ingest queue fill ratio (0.0-1.0)",
	})

	m.queueEnqueues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueues_total",
		Help:      "Total successful enqueues",
	})

	m.queueDrops = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_drops_total",
		Help:      "Total enqueue failures, by reason",
	}, []string{"reason"})

	m.encountersActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active",
		Help:      "Number of encounters currently tracked",
	})

	m.encountersOpened = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "opened_total",
		Help:      "Total encounters opened",
	})

	m.encountersClosed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "closed_total",
		Help:      "Total encounters closed",
	})

	m.projectionLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "projection_latency_milliseconds",
		Help:      "Histogram of series projection latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.archiveWrites = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "archive_writes_total",
		Help:      "Total reports persisted to the archive",
	})

	m.archiveErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "archive_errors_total",
		Help:      "Total archive read/write failures",
	})

	m.wsClients = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ws_clients",
		Help:      "Number of connected live-series websocket clients",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests, by endpoint, method and status",
	}, []string{"endpoint", "method", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_milliseconds",
		Help:      "Histogram of HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method"})
}

// GetRegistry returns the custom registry served by the metrics endpoint.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package-level helpers operating on the global manager.

func RecordEventIngested(kind string) { globalManager.eventsIngested.WithLabelValues(kind).Inc() }
func RecordEventDuplicate()           { globalManager.eventsDuplicate.Inc() }
func RecordEventDropped()             { globalManager.eventsDropped.Inc() }
func RecordPurifyMarker()             { globalManager.purifyMarkers.Inc() }
func RecordNoPriorStagger()           { globalManager.noPriorStagger.Inc() }

func UpdateQueueCapacity(n int)          { globalManager.queueCapacity.Set(float64(n)) }
func UpdateQueueSize(n int)              { globalManager.queueSize.Set(float64(n)) }
func UpdateQueueUtilization(r float64)   { globalManager.queueUtilization.Set(r) }
func RecordQueueEnqueue()                { globalManager.queueEnqueues.Inc() }
func RecordQueueDrop(reason string)      { globalManager.queueDrops.WithLabelValues(reason).Inc() }
func UpdateEncountersActive(n int)       { globalManager.encountersActive.Set(float64(n)) }
func RecordEncounterOpened()             { globalManager.encountersOpened.Inc() }
func RecordEncounterClosed()             { globalManager.encountersClosed.Inc() }
func RecordProjectionLatency(ms float64) { globalManager.projectionLatency.Observe(ms) }

func RecordArchiveWrite() { globalManager.archiveWrites.Inc() }
func RecordArchiveError() { globalManager.archiveErrors.Inc() }
func UpdateWSClients(n int) {
	globalManager.wsClients.Set(float64(n))
}

func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func RecordHTTPRequestDuration(endpoint, method string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method).Observe(ms)
}
