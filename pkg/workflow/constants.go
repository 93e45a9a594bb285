package workflow

// Constants defining default values for Options.
// These are also used as Viper defaults by the CLI configuration layer.
const (
	// DefaultBatchSize is the number of request files placed into each batch.
	DefaultBatchSize = 100
	// DefaultConcurrency bounds the parallel file moves within a batch. 0 means runtime.NumCPU().
	DefaultConcurrency = 0
	// DefaultDisableLock leaves the advisory source directory lock enabled.
	DefaultDisableLock = false
)

// Directory and file names used inside an Actor's source directory.
const (
	// ProcessingDirName is the temporary root holding ordinal-named batch directories during a run.
	ProcessingDirName = "processing"
	// FailuresDirName is the root under which quarantined batches are kept, one subtree per run.
	FailuresDirName = "failures"
	// OrphanedDirName receives a processing directory left behind by an interrupted earlier run.
	OrphanedDirName = "orphaned"
	// LockFileName is the advisory lock file held in the source directory while a run is active.
	LockFileName = ".ees-analytics.lock"
)

// ReportTimestampLayout is the sortable UTC timestamp used as the report file prefix (yyyyMMdd-HHmmss).
const ReportTimestampLayout = "20060102-150405"
