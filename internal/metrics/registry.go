// Package metrics is the Prometheus metrics registry ambient to the
// certification pipeline: stage durations, retry counts, and certification
// decisions, exposed on the optional "serve" front end's /metrics endpoint.
// Grounded on internal/performance's promauto-based instrumentation
// (ParallelProcessor/WorkScheduler/WorkStealer all build their own
// *prometheus.CounterVec/Histogram via promauto at construction time); this
// package collapses that pattern into one registry shared by every pipeline
// collaborator instead of one metrics struct per component, since the
// certification pipeline has a single run-shaped hot path rather than a
// worker pool.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles every metric the pipeline emits.
type Registry struct {
	CertificationsTotal *prometheus.CounterVec
	ConfidenceScore     *prometheus.HistogramVec
	StageDuration       *prometheus.HistogramVec
	DeltasDetected      *prometheus.CounterVec
	RetriesTotal        *prometheus.CounterVec
	FleetSyncRuns       *prometheus.CounterVec
}

// NewRegistry builds a Registry against reg. Tests should pass a fresh
// prometheus.NewRegistry() so repeated construction across test cases
// doesn't panic on duplicate registration against the process-wide default.
func NewRegistry(reg prometheus.Registerer) *Registry {
	f := promauto.With(reg)
	return &Registry{
		CertificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certguard_certifications_total",
			Help: "Certification runs completed, labeled by terminal decision.",
		}, []string{"service_id", "environment", "decision"}),
		ConfidenceScore: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certguard_confidence_score",
			Help:    "Confidence score (0-100) assigned to each certification run.",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 75, 80, 85, 90, 95, 100},
		}, []string{"service_id", "environment"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certguard_stage_duration_seconds",
			Help:    "Duration of each Run Orchestrator pipeline stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		DeltasDetected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certguard_deltas_detected_total",
			Help: "Deltas produced by the Drift Engine, labeled by category.",
		}, []string{"category"}),
		RetriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certguard_retries_total",
			Help: "Retry attempts issued by the shared retry helper, labeled by caller.",
		}, []string{"caller"}),
		FleetSyncRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certguard_fleet_sync_runs_total",
			Help: "Fleet Sync runs, labeled by terminal status.",
		}, []string{"status"}),
	}
}

// Default is the process-wide registry, built against prometheus's own
// default registerer the same way internal/performance's metrics structs
// register themselves with promauto's package-level default.
var Default = NewRegistry(prometheus.DefaultRegisterer)

// ObserveStage records how long a named pipeline stage took, measured from
// start to the call site.
func (r *Registry) ObserveStage(stage string, start time.Time) {
	r.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RecordCertification records a terminal certification decision and its
// confidence score for (serviceID, environment).
func (r *Registry) RecordCertification(serviceID, environment, decision string, score int) {
	r.CertificationsTotal.WithLabelValues(serviceID, environment, decision).Inc()
	r.ConfidenceScore.WithLabelValues(serviceID, environment).Observe(float64(score))
}

// RecordDeltas increments DeltasDetected once per delta category present in
// counts, where counts maps a category name to how many deltas of that
// category the Drift Engine produced in one run.
func (r *Registry) RecordDeltas(counts map[string]int) {
	for category, n := range counts {
		r.DeltasDetected.WithLabelValues(category).Add(float64(n))
	}
}

// RecordRetry increments RetriesTotal for caller, the component name issuing
// the retry (e.g. "forge", "store").
func (r *Registry) RecordRetry(caller string) {
	r.RetriesTotal.WithLabelValues(caller).Inc()
}

// RecordFleetSync increments FleetSyncRuns for status, Fleet Sync's terminal
// result ("success", "no_change", "failed").
func (r *Registry) RecordFleetSync(status string) {
	r.FleetSyncRuns.WithLabelValues(status).Inc()
}
