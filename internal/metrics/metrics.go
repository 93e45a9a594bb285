// Package metrics exposes workflow progress as Prometheus metrics. Runs are short-lived
// batch jobs, so the CLI writes the registry to a node-exporter textfile after each run
// instead of serving it.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/workflow"
)

const namespace = "ees_analytics"

// Run outcome label values.
const (
	OutcomeReported  = "reported"
	OutcomeNoSuccess = "no_success"
	OutcomeFailed    = "failed"
)

// WorkflowMetrics contains a set of functions invoked at different stages of a run.
type WorkflowMetrics struct {
	OnRunStart      func(actor string, files, batches int)
	OnBatchFinished func(actor string, status workflow.BatchStatus, files int, duration time.Duration)
	OnRunComplete   func(actor string, summary workflow.RunSummary)
}

// NewWorkflowMetrics registers the collectors with reg. A nil reg returns nil.
func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	if reg == nil {
		return nil
	}

	filesDiscovered := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "files_discovered_total",
		Help:      "Request files picked up for processing",
	}, []string{"actor"})

	batchesPlanned := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batches_planned_total",
		Help:      "Batches planned across all runs",
	}, []string{"actor"})

	batchesFinished := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batches_total",
		Help:      "Batches that reached a final state, by status",
	}, []string{"actor", "status"})

	filesFinished := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "files_total",
		Help:      "Request files that reached a final state, by batch status",
	}, []string{"actor", "status"})

	batchDuration := promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "batch_duration_seconds",
		Help:      "Time from the first move of a batch to its final state",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	}, []string{"actor", "status"})

	quarantineFailures := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quarantine_failures_total",
		Help:      "Failed batches that could not be moved to the failures directory",
	}, []string{"actor"})

	runs := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Runs that found work, by outcome",
	}, []string{"actor", "outcome"})

	lastRun := promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the most recent run with work started",
	}, []string{"actor"})

	lastRunDuration := promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_duration_seconds",
		Help:      "Duration of the most recent run with work",
	}, []string{"actor"})

	return &WorkflowMetrics{
		OnRunStart: func(actor string, files, batches int) {
			filesDiscovered.WithLabelValues(actor).Add(float64(files))
			batchesPlanned.WithLabelValues(actor).Add(float64(batches))
		},
		OnBatchFinished: func(actor string, status workflow.BatchStatus, files int, duration time.Duration) {
			batchesFinished.WithLabelValues(actor, string(status)).Inc()
			filesFinished.WithLabelValues(actor, string(status)).Add(float64(files))
			batchDuration.WithLabelValues(actor, string(status)).Observe(duration.Seconds())
		},
		OnRunComplete: func(actor string, summary workflow.RunSummary) {
			quarantineFailures.WithLabelValues(actor).Add(float64(summary.QuarantineFailures))
			runs.WithLabelValues(actor, Outcome(summary)).Inc()
			lastRun.WithLabelValues(actor).Set(float64(summary.StartedAt.Unix()))
			lastRunDuration.WithLabelValues(actor).Set(summary.DurationSeconds)
		},
	}
}

// Outcome classifies a completed run for the runs_total metric.
func Outcome(summary workflow.RunSummary) string {
	switch {
	case summary.SystemicError != "":
		return OutcomeFailed
	case summary.ReportsGenerated:
		return OutcomeReported
	default:
		return OutcomeNoSuccess
	}
}

// WriteTextfile atomically writes every metric gathered by g to path in the text exposition format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
