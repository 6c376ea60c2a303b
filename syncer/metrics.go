package syncer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector provides observability hooks for the adapter.
type MetricsCollector interface {
	// RecordSyncDuration records how long a reconciliation pass took.
	RecordSyncDuration(op string, d time.Duration)

	// RecordRecordsUploaded records how many records a pass uploaded.
	RecordRecordsUploaded(count int)

	// RecordMirrorFailure records a swallowed local-mirror write failure.
	RecordMirrorFailure(collection string)

	// RecordSyncErrors records reconciliation errors by collection.
	RecordSyncErrors(collection, reason string)

	// SetUnconfirmedUploads exposes the count of records uploaded without
	// a confirmed local cloudId rewrite.
	SetUnconfirmedUploads(count int)
}

// NoOpMetricsCollector is a stub implementation that discards metrics.
type NoOpMetricsCollector struct{}

func (*NoOpMetricsCollector) RecordSyncDuration(op string, d time.Duration) {}
func (*NoOpMetricsCollector) RecordRecordsUploaded(count int)               {}
func (*NoOpMetricsCollector) RecordMirrorFailure(collection string)         {}
func (*NoOpMetricsCollector) RecordSyncErrors(collection, reason string)    {}
func (*NoOpMetricsCollector) SetUnconfirmedUploads(count int)               {}

// PrometheusCollector implements MetricsCollector on prometheus primitives.
type PrometheusCollector struct {
	syncDuration       *prometheus.HistogramVec
	recordsUploaded    prometheus.Counter
	mirrorFailures     *prometheus.CounterVec
	syncErrors         *prometheus.CounterVec
	unconfirmedUploads prometheus.Gauge
}

// NewPrometheusCollector creates and registers the adapter metrics on reg.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fitlocker",
			Subsystem: "syncer",
			Name:      "sync_duration_seconds",
			Help:      "Duration of reconciliation passes.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		recordsUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fitlocker",
			Subsystem: "syncer",
			Name:      "records_uploaded_total",
			Help:      "Records uploaded to the remote store by reconciliation.",
		}),
		mirrorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fitlocker",
			Subsystem: "syncer",
			Name:      "mirror_failures_total",
			Help:      "Local mirror writes that failed after a successful remote write.",
		}, []string{"collection"}),
		syncErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fitlocker",
			Subsystem: "syncer",
			Name:      "sync_errors_total",
			Help:      "Reconciliation errors by collection and reason.",
		}, []string{"collection", "reason"}),
		unconfirmedUploads: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fitlocker",
			Subsystem: "syncer",
			Name:      "unconfirmed_uploads",
			Help:      "Records uploaded without a confirmed local cloudId rewrite.",
		}),
	}
	reg.MustRegister(c.syncDuration, c.recordsUploaded, c.mirrorFailures, c.syncErrors, c.unconfirmedUploads)
	return c
}

func (c *PrometheusCollector) RecordSyncDuration(op string, d time.Duration) {
	c.syncDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (c *PrometheusCollector) RecordRecordsUploaded(count int) {
	c.recordsUploaded.Add(float64(count))
}

func (c *PrometheusCollector) RecordMirrorFailure(collection string) {
	c.mirrorFailures.WithLabelValues(collection).Inc()
}

func (c *PrometheusCollector) RecordSyncErrors(collection, reason string) {
	c.syncErrors.WithLabelValues(collection, reason).Inc()
}

func (c *PrometheusCollector) SetUnconfirmedUploads(count int) {
	c.unconfirmedUploads.Set(float64(count))
}
