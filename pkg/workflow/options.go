package workflow

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/engine"
)

// Hooks defines callbacks for progress updates during a run.
// Methods are called from the orchestrator's single control flow, never concurrently
// within one run, but a Hooks value shared between orchestrators must be thread-safe.
type Hooks interface {
	OnRunStart(plan RunPlan) error
	OnBatchStatusUpdate(batch Batch, status BatchStatus, message string, duration time.Duration) error
	OnRunComplete(summary RunSummary) error
}

// NoOpHooks provides a default, do-nothing implementation of the Hooks interface.
type NoOpHooks struct{}

// OnRunStart implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnRunStart(plan RunPlan) error { return nil }

// OnBatchStatusUpdate implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnBatchStatusUpdate(batch Batch, status BatchStatus, message string, duration time.Duration) error {
	return nil
}

// OnRunComplete implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnRunComplete(summary RunSummary) error { return nil }

// Options holds all configuration for an Orchestrator.
type Options struct {
	// --- Batching ---
	BatchSize   int  `mapstructure:"batchSize"`   // Files per batch (0 = DefaultBatchSize)
	Concurrency int  `mapstructure:"concurrency"` // Parallel moves per batch (0 = runtime.NumCPU())
	DisableLock bool `mapstructure:"disableLock"` // Skip the advisory source directory lock

	// --- Injected Dependencies ---
	Logger           slog.Handler     `mapstructure:"-"` // Required: Logging backend
	FileStore        FileStore        `mapstructure:"-"` // Optional: defaults to the OS filesystem
	EngineOpener     engine.Opener    `mapstructure:"-"` // Optional: defaults to an in-memory DuckDB
	NewCorrelationID func() string    `mapstructure:"-"` // Optional: defaults to uuid.NewString
	Clock            func() time.Time `mapstructure:"-"` // Optional: defaults to time.Now
	EventHooks       Hooks            `mapstructure:"-"` // Optional: defaults to NoOpHooks
}

// withDefaults returns a copy of opts with every unset optional collaborator replaced by its
// production default. It does not validate.
func (opts Options) withDefaults() Options {
	if opts.BatchSize == 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.FileStore == nil {
		opts.FileStore = NewOSFileStore()
	}
	if opts.EngineOpener == nil {
		opts.EngineOpener = engine.NewDuckDBOpener("")
	}
	if opts.NewCorrelationID == nil {
		opts.NewCorrelationID = uuid.NewString
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.EventHooks == nil {
		opts.EventHooks = &NoOpHooks{}
	}
	return opts
}
