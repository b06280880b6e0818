// Package metrics exposes Prometheus collectors for the sync engine:
// run outcomes, record counts, resilience behavior and health signals.
//
// # Basic Usage
//
//	// Count a finished run
//	metrics.SyncRuns.WithLabelValues("crm-a", "success").Inc()
//
//	// Time a sync phase
//	timer := metrics.NewTimer("candidate_sync")
//	syncCandidates()
//	metrics.SyncDuration.WithLabelValues("crm-a").Observe(timer.Stop().Seconds())
//
// All collectors register themselves on the default registry; exposition
// is the caller's concern.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncRuns counts finished sync runs.
	// Labels: source, outcome (success/partial/failed)
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talentsync_sync_runs_total",
			Help: "Total number of finished sync runs",
		},
		[]string{"source", "outcome"},
	)

	// SyncedRecords counts records seen by sync phases.
	// Labels: source, phase (jobs/candidates/webhook), status
	// (created/updated/failed)
	SyncedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talentsync_records_synced_total",
			Help: "Total number of records synced",
		},
		[]string{"source", "phase", "status"},
	)

	// SyncDuration tracks end-to-end run durations in seconds.
	// Labels: source
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "talentsync_sync_duration_seconds",
			Help: "Sync run duration in seconds",
			Buckets: []float64{
				0.1, // fixture and cache-warm runs
				0.5,
				1,
				5,
				15,
				60,
				300, // full syncs of large sources
				900,
			},
		},
		[]string{"source"},
	)

	// BreakerState reports each source's breaker as a coded gauge:
	// 0 closed, 1 open, 2 half-open.
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "talentsync_breaker_state",
			Help: "Circuit breaker state per source (0=closed, 1=open, 2=half_open)",
		},
		[]string{"source"},
	)

	// BreakerTransitions counts breaker state changes.
	// Labels: source, from, to
	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talentsync_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"source", "from", "to"},
	)

	// RetryAttempts counts retried operations.
	// Labels: source, operation
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talentsync_retry_attempts_total",
			Help: "Total retry attempts",
		},
		[]string{"source", "operation"},
	)

	// DuplicatesFlagged counts records flagged as duplicates after merge.
	// Labels: source
	DuplicatesFlagged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talentsync_duplicates_flagged_total",
			Help: "Total records flagged as duplicates",
		},
		[]string{"source"},
	)

	// ConflictsResolved counts conflict decisions.
	// Labels: strategy, resolution (local/remote/manual)
	ConflictsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talentsync_conflicts_resolved_total",
			Help: "Total conflicts resolved",
		},
		[]string{"strategy", "resolution"},
	)

	// WebhooksReceived counts webhook deliveries.
	// Labels: source, status (ok/invalid_signature/error)
	WebhooksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talentsync_webhooks_received_total",
			Help: "Total webhook deliveries",
		},
		[]string{"source", "status"},
	)

	// AlertsEmitted counts alerts sent to sinks.
	// Labels: source, severity
	AlertsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talentsync_alerts_emitted_total",
			Help: "Total alerts emitted",
		},
		[]string{"source", "severity"},
	)

	// SourceHealthState reports evaluated health as a coded gauge:
	// 0 healthy, 1 warning, 2 critical, 3 stale.
	SourceHealthState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "talentsync_source_health_state",
			Help: "Source health (0=healthy, 1=warning, 2=critical, 3=stale)",
		},
		[]string{"source"},
	)

	// WatermarkAge reports how far behind each source's watermark is.
	WatermarkAge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "talentsync_watermark_age_seconds",
			Help: "Age of the last successful sync watermark in seconds",
		},
		[]string{"source"},
	)
)

// Timer measures one operation from creation to Stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer starts timing immediately. The name is for log correlation.
func NewTimer(name string) *Timer {
	return &Timer{start: time.Now(), name: name}
}

// Stop returns the elapsed time since creation. Stopping repeatedly
// returns the running total each time.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
