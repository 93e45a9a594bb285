package hooks

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/workflow"
)

// --- TUI Message Structs ---

// RunStartMsg signals that an actor's batches have been planned.
type RunStartMsg struct {
	Actor string
	Plan  workflow.RunPlan
}

// BatchStatusUpdateMsg signals a change in a batch's processing status.
type BatchStatusUpdateMsg struct {
	Actor    string
	Batch    workflow.Batch
	Status   workflow.BatchStatus
	Message  string
	Duration time.Duration
}

// RunCompleteMsg signals the completion of one actor's run.
type RunCompleteMsg struct {
	Actor   string
	Summary workflow.RunSummary
}

// --- Hook Implementation ---

// CLIHooks implements the workflow.Hooks interface, bridging orchestrator events
// to the CLI's UI layer (TUI or logger).
type CLIHooks struct {
	logger         *slog.Logger
	actor          string
	tuiEnabled     bool
	verboseEnabled bool
	tuiProgram     TUIProgram
}

// TUIProgram defines the interface needed to interact with the Bubble Tea program.
// *tea.Program satisfies it.
type TUIProgram interface {
	Send(msg tea.Msg)
}

// NoOpTUIProgram provides a default null implementation.
type NoOpTUIProgram struct{}

// Send implements TUIProgram.
func (n *NoOpTUIProgram) Send(msg tea.Msg) {}

// NewCLIHooks creates hooks for a single actor. A nil tuiProg is replaced with NoOpTUIProgram.
func NewCLIHooks(logger *slog.Logger, actor string, tuiEnabled, verboseEnabled bool, tuiProg TUIProgram) *CLIHooks {
	if tuiProg == nil {
		tuiProg = &NoOpTUIProgram{}
	}
	return &CLIHooks{
		logger:         logger.With(slog.String("actor", actor)),
		actor:          actor,
		tuiEnabled:     tuiEnabled,
		verboseEnabled: verboseEnabled,
		tuiProgram:     tuiProg,
	}
}

// OnRunStart implements workflow.Hooks.
func (h *CLIHooks) OnRunStart(plan workflow.RunPlan) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(RunStartMsg{Actor: h.actor, Plan: plan})
		return nil
	}
	h.logger.Info("Batches planned",
		slog.String("correlationId", plan.CorrelationID),
		slog.Int("batches", len(plan.Batches)),
		slog.Int("files", plan.FileCount()))
	return nil
}

// OnBatchStatusUpdate implements workflow.Hooks.
func (h *CLIHooks) OnBatchStatusUpdate(batch workflow.Batch, status workflow.BatchStatus, message string, duration time.Duration) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(BatchStatusUpdateMsg{
			Actor:    h.actor,
			Batch:    batch,
			Status:   status,
			Message:  message,
			Duration: duration,
		})
		return nil
	}
	if !h.verboseEnabled {
		return nil
	}

	attrs := []any{
		slog.Int("batch", batch.Ordinal),
		slog.Int("files", batch.Size()),
		slog.String("status", string(status)),
	}
	switch status {
	case workflow.BatchSucceeded:
		h.logger.Info("Batch status", append(attrs, slog.Duration("duration", duration))...)
	case workflow.BatchQuarantined:
		h.logger.Warn("Batch status", append(attrs, slog.String("reason", message))...)
	default:
		h.logger.Debug("Batch status", attrs...)
	}
	return nil
}

// OnRunComplete implements workflow.Hooks. In non-TUI mode the summary is rendered by the caller.
func (h *CLIHooks) OnRunComplete(summary workflow.RunSummary) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(RunCompleteMsg{Actor: h.actor, Summary: summary})
	}
	return nil
}

var (
	_ workflow.Hooks = (*CLIHooks)(nil)
	_ TUIProgram     = (*tea.Program)(nil)
)
