package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the tour service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	blobOps        *prometheus.CounterVec
	blobLatency    *prometheus.HistogramVec
	docOps         *prometheus.CounterVec
	resolutions    *prometheus.CounterVec
	fetchAttempts  *prometheus.CounterVec
	bundleOps      *prometheus.CounterVec
	bundleBytes    prometheus.Histogram
	submissionOps  *prometheus.CounterVec
	transientCount prometheus.Gauge
	cacheLookups   *prometheus.CounterVec
	cacheBytes     prometheus.Gauge
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the collectors registered with the default registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New creates and registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		blobOps: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tour_blob_operations_total",
				Help: "Blob Store operations by namespace, operation and result",
			},
			[]string{"namespace", "op", "result"},
		),
		blobLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tour_blob_operation_latency_ms",
				Help:    "Latency of Blob Store operations in milliseconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 1000},
			},
			[]string{"op"},
		),
		docOps: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tour_document_operations_total",
				Help: "Scene Document Store saves and loads by result",
			},
			[]string{"op", "result"},
		),
		resolutions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tour_asset_resolutions_total",
				Help: "Storage key resolutions during rehydration (hit or miss)",
			},
			[]string{"result"},
		),
		fetchAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tour_remote_fetch_attempts_total",
				Help: "Remote asset downloads by path (direct or proxy) and result",
			},
			[]string{"path", "result"},
		),
		bundleOps: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tour_bundle_operations_total",
				Help: "Bundle exports and imports by result",
			},
			[]string{"op", "result"},
		),
		bundleBytes: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tour_bundle_size_bytes",
				Help:    "Size of exported bundles",
				Buckets: prometheus.ExponentialBuckets(64*1024, 4, 8),
			},
		),
		submissionOps: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tour_submission_operations_total",
				Help: "Submission server actions by result",
			},
			[]string{"action", "result"},
		),
		transientCount: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "tour_transient_handles",
				Help: "Number of live transient asset handles",
			},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tour_blob_cache_lookups_total",
				Help: "Blob read cache lookups (hit, miss or bypass)",
			},
			[]string{"result"},
		),
		cacheBytes: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "tour_blob_cache_size_bytes",
				Help: "Bytes held by the blob read cache",
			},
		),
	}
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// ObserveBlobOp records one Blob Store call.
func (m *Metrics) ObserveBlobOp(namespace, op string, ok bool, start time.Time) {
	if m == nil {
		return
	}
	m.blobOps.WithLabelValues(namespace, op, result(ok)).Inc()
	m.blobLatency.WithLabelValues(op).Observe(float64(time.Since(start).Microseconds()) / 1000.0)
}

func (m *Metrics) ObserveDocumentOp(op string, ok bool) {
	if m == nil {
		return
	}
	m.docOps.WithLabelValues(op, result(ok)).Inc()
}

// ObserveResolution records a storage key lookup; hit is false on a miss.
func (m *Metrics) ObserveResolution(hit bool) {
	if m == nil {
		return
	}
	label := "miss"
	if hit {
		label = "hit"
	}
	m.resolutions.WithLabelValues(label).Inc()
}

func (m *Metrics) ObserveFetch(path string, ok bool) {
	if m == nil {
		return
	}
	m.fetchAttempts.WithLabelValues(path, result(ok)).Inc()
}

func (m *Metrics) ObserveBundle(op string, ok bool, size int64) {
	if m == nil {
		return
	}
	m.bundleOps.WithLabelValues(op, result(ok)).Inc()
	if ok && op == "export" && size > 0 {
		m.bundleBytes.Observe(float64(size))
	}
}

func (m *Metrics) ObserveSubmission(action string, ok bool) {
	if m == nil {
		return
	}
	m.submissionOps.WithLabelValues(action, result(ok)).Inc()
}

func (m *Metrics) SetTransientCount(n int) {
	if m == nil {
		return
	}
	m.transientCount.Set(float64(n))
}

// ObserveCacheLookup records a blob read cache lookup. outcome is "hit",
// "miss" or "bypass".
func (m *Metrics) ObserveCacheLookup(outcome string, cachedBytes int64) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(outcome).Inc()
	m.cacheBytes.Set(float64(cachedBytes))
}
