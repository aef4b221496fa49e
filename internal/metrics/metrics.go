// Package metrics exposes Prometheus instrumentation for both halves of the
// pipeline: the storefront tracker and the collection server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tracker records storefront-side pipeline activity. It satisfies
// tracking.Telemetry.
type Tracker struct {
	eventsTracked    *prometheus.CounterVec
	eventsDropped    *prometheus.CounterVec
	flushes          *prometheus.CounterVec
	flushDuration    prometheus.Histogram
	queueDepth       prometheus.Gauge
	criticalFailures prometheus.Counter
}

// NewTracker registers tracker metrics on reg.
func NewTracker(reg prometheus.Registerer) *Tracker {
	f := promauto.With(reg)
	return &Tracker{
		eventsTracked: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopsphere_tracker_events_total",
				Help: "Events accepted into the pending queue",
			},
			[]string{"type"},
		),
		eventsDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopsphere_tracker_events_dropped_total",
				Help: "Events discarded before delivery",
			},
			[]string{"reason"}, // "invalid", "overflow", "panic"
		),
		flushes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopsphere_tracker_flushes_total",
				Help: "Batch flush attempts by outcome",
			},
			[]string{"outcome"},
		),
		flushDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "shopsphere_tracker_flush_duration_seconds",
				Help:    "Duration of successful batch flushes",
				Buckets: prometheus.DefBuckets,
			},
		),
		queueDepth: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "shopsphere_tracker_queue_depth",
				Help: "Events currently waiting in the pending queue",
			},
		),
		criticalFailures: f.NewCounter(
			prometheus.CounterOpts{
				Name: "shopsphere_tracker_critical_send_failures_total",
				Help: "Immediate critical-event sends that failed",
			},
		),
	}
}

func (t *Tracker) EventTracked(eventType string) {
	t.eventsTracked.WithLabelValues(eventType).Inc()
}

func (t *Tracker) EventsDropped(reason string, n int) {
	t.eventsDropped.WithLabelValues(reason).Add(float64(n))
}

func (t *Tracker) FlushSucceeded(_ int, d time.Duration) {
	t.flushes.WithLabelValues("success").Inc()
	t.flushDuration.Observe(d.Seconds())
}

func (t *Tracker) FlushFailed(_ int) {
	t.flushes.WithLabelValues("failure").Inc()
}

func (t *Tracker) CriticalSendFailed() {
	t.criticalFailures.Inc()
}

func (t *Tracker) QueueDepth(n int) {
	t.queueDepth.Set(float64(n))
}

// Ingest records collection-server activity.
type Ingest struct {
	received   *prometheus.CounterVec
	duplicates prometheus.Counter
	rejected   *prometheus.CounterVec
}

// NewIngest registers ingestion metrics on reg.
func NewIngest(reg prometheus.Registerer) *Ingest {
	f := promauto.With(reg)
	return &Ingest{
		received: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopsphere_ingest_events_total",
				Help: "Events stored by the collection endpoints",
			},
			[]string{"endpoint"},
		),
		duplicates: f.NewCounter(
			prometheus.CounterOpts{
				Name: "shopsphere_ingest_duplicate_events_total",
				Help: "Redelivered events ignored by event id",
			},
		),
		rejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopsphere_ingest_rejected_events_total",
				Help: "Events rejected during ingestion",
			},
			[]string{"reason"},
		),
	}
}

func (i *Ingest) Received(endpoint string, n int) {
	i.received.WithLabelValues(endpoint).Add(float64(n))
}

func (i *Ingest) Duplicates(n int) {
	i.duplicates.Add(float64(n))
}

func (i *Ingest) Rejected(reason string, n int) {
	i.rejected.WithLabelValues(reason).Add(float64(n))
}
