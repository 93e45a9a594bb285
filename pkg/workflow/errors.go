package workflow

import "errors"

// --- Exported Error Variables ---
// Callers can check against these using errors.Is. Only configuration, locking and
// systemic failures are ever returned from Orchestrator.Run; batch level failures are
// logged, quarantined and reported through Hooks instead.

var (
	// ErrConfigValidation indicates that the provided Options failed validation in NewOrchestrator,
	// or that Run was called with a nil Actor.
	ErrConfigValidation = errors.New("invalid workflow options provided")

	// ErrRunInProgress indicates that another run currently holds the advisory lock for the
	// source directory. Nothing has been moved when this is returned.
	ErrRunInProgress = errors.New("another run is already processing this source directory")

	// ErrDiscovery indicates the source directory could not be inspected for pending files.
	ErrDiscovery = errors.New("failed to discover pending request files")

	// ErrEngineOpen indicates the analytical engine connection for the run could not be opened.
	ErrEngineOpen = errors.New("failed to open analytical engine connection")

	// ErrStoreInitialization wraps any error returned by Actor.InitializeStore.
	// This is a systemic failure: no request files are moved when it occurs.
	ErrStoreInitialization = errors.New("failed to initialize analytical store")

	// ErrReportGeneration wraps any error raised while creating the reports directory or
	// returned by Actor.CreateReports. Batches already ingested are not rolled back.
	ErrReportGeneration = errors.New("failed to generate reports")

	// ErrBatchMaterialization indicates one or more request files could not be moved into
	// their batch directory. The batch is quarantined; it never reaches the caller.
	ErrBatchMaterialization = errors.New("failed to materialize batch")

	// ErrBatchIngestion wraps an error (or recovered panic) from Actor.ProcessSourceFiles.
	// The batch is quarantined; it never reaches the caller.
	ErrBatchIngestion = errors.New("batch ingestion failed")

	// ErrQuarantine indicates a failed batch could not be relocated to the failures area.
	// The orchestrator logs and swallows it.
	ErrQuarantine = errors.New("failed to quarantine batch")
)
