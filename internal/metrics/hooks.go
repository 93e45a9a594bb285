package metrics

import (
	"time"

	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/workflow"
)

// Hooks records metrics for one actor and forwards every event to the next Hooks.
type Hooks struct {
	actor   string
	metrics *WorkflowMetrics
	next    workflow.Hooks
}

var _ workflow.Hooks = (*Hooks)(nil)

// NewHooks wraps next. A nil metrics value records nothing; a nil next forwards nowhere.
func NewHooks(actor string, metrics *WorkflowMetrics, next workflow.Hooks) *Hooks {
	if next == nil {
		next = &workflow.NoOpHooks{}
	}
	return &Hooks{actor: actor, metrics: metrics, next: next}
}

// OnRunStart implements workflow.Hooks.
func (h *Hooks) OnRunStart(plan workflow.RunPlan) error {
	if h.metrics != nil {
		h.metrics.OnRunStart(h.actor, plan.FileCount(), len(plan.Batches))
	}
	return h.next.OnRunStart(plan)
}

// OnBatchStatusUpdate implements workflow.Hooks. Only final states are recorded.
func (h *Hooks) OnBatchStatusUpdate(batch workflow.Batch, status workflow.BatchStatus, message string, duration time.Duration) error {
	if h.metrics != nil && status.IsFinal() {
		h.metrics.OnBatchFinished(h.actor, status, batch.Size(), duration)
	}
	return h.next.OnBatchStatusUpdate(batch, status, message, duration)
}

// OnRunComplete implements workflow.Hooks.
func (h *Hooks) OnRunComplete(summary workflow.RunSummary) error {
	if h.metrics != nil {
		h.metrics.OnRunComplete(h.actor, summary)
	}
	return h.next.OnRunComplete(summary)
}
