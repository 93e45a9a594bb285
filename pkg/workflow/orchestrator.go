package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/engine"
)

// Orchestrator drives one Actor through discovery, batching, ingestion, quarantine,
// cleanup and report generation.
type Orchestrator struct {
	opts       Options
	logger     *slog.Logger
	planner    *BatchPlanner
	quarantine *QuarantineManager
}

// run holds the state of a single invocation of Orchestrator.Run.
type run struct {
	correlationID string
	sourceDir     string
	reportsDir    string
	tempRoot      string
	failuresRoot  string
	batches       []Batch
	startedAt     time.Time
}

// NewOrchestrator validates opts, fills in default collaborators and returns a ready Orchestrator.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("%w: Logger implementation (slog.Handler) cannot be nil", ErrConfigValidation)
	}
	if opts.BatchSize < 0 {
		return nil, fmt.Errorf("%w: batch size cannot be negative (got %d)", ErrConfigValidation, opts.BatchSize)
	}
	if opts.Concurrency < 0 {
		return nil, fmt.Errorf("%w: concurrency cannot be negative (got %d)", ErrConfigValidation, opts.Concurrency)
	}
	opts = opts.withDefaults()

	return &Orchestrator{
		opts:       opts,
		logger:     slog.New(opts.Logger).With(slog.String("component", "orchestrator")),
		planner:    NewBatchPlanner(opts.FileStore, opts.Concurrency, opts.Logger),
		quarantine: NewQuarantineManager(opts.FileStore, opts.Logger),
	}, nil
}

// Run processes every pending request file in actor's source directory.
//
// It returns nil when there is no work or when the run completed, even if every batch was
// quarantined. Errors are returned only for lock contention, discovery and orphan recovery
// failures, engine connection failures, store initialization failures, report generation
// failures and cancellation. A cancelled run stops before its next batch.
func (o *Orchestrator) Run(ctx context.Context, actor Actor) (err error) {
	if actor == nil {
		return fmt.Errorf("%w: actor cannot be nil", ErrConfigValidation)
	}
	store := o.opts.FileStore
	r := &run{
		sourceDir:  actor.SourceDirectory(),
		reportsDir: actor.ReportsDirectory(),
		startedAt:  o.opts.Clock(),
	}
	r.tempRoot = filepath.Join(r.sourceDir, ProcessingDirName)
	logger := o.logger.With(slog.String("sourceDir", r.sourceDir))

	// --- Discovery ---
	exists, err := store.Exists(r.sourceDir)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrDiscovery, r.sourceDir, err)
	}
	if !exists {
		logger.Info("Source directory does not exist; nothing to process")
		return nil
	}

	files, err := o.pendingFiles(r.sourceDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logger.Info("No pending request files; nothing to process")
		return nil
	}

	if !o.opts.DisableLock {
		release, lockErr := acquireLock(store, r.sourceDir, logger)
		if lockErr != nil {
			return lockErr
		}
		defer release()

		// Files listed before the lock may have been taken by a run that has since finished.
		if files, err = o.pendingFiles(r.sourceDir); err != nil {
			return err
		}
		if len(files) == 0 {
			logger.Info("No pending request files; nothing to process")
			return nil
		}
	}

	summary := RunSummary{
		SourceDirectory:  r.sourceDir,
		ReportsDirectory: r.reportsDir,
		StartedAt:        r.startedAt,
		FilesDiscovered:  len(files),
	}
	defer func() {
		if err != nil {
			summary.SystemicError = err.Error()
		}
		summary.DurationSeconds = o.opts.Clock().Sub(r.startedAt).Seconds()
		if hookErr := o.opts.EventHooks.OnRunComplete(summary); hookErr != nil {
			logger.Warn("Error reported by OnRunComplete hook", slog.String("hookError", hookErr.Error()))
		}
	}()

	r.correlationID = o.opts.NewCorrelationID()
	r.failuresRoot = FailuresRoot(r.sourceDir, r.correlationID)
	summary.CorrelationID = r.correlationID
	logger = logger.With(slog.String("correlationId", r.correlationID))

	if err := o.recoverOrphanedProcessingDir(r, logger); err != nil {
		logger.Error("Orphaned processing directory could not be recovered; no files were moved", slog.Any("error", err))
		return err
	}

	// --- Engine & store ---
	conn, err := o.opts.EngineOpener(ctx)
	if err != nil {
		logger.Error("Failed to open analytical engine", slog.Any("error", err))
		return fmt.Errorf("%w: %w", ErrEngineOpen, err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("Failed to close analytical engine connection", slog.Any("error", closeErr))
		}
	}()

	if err := actor.InitializeStore(ctx, conn); err != nil {
		logger.Error("Store initialization failed; no files were moved", slog.Any("error", err))
		return fmt.Errorf("%w: %w", ErrStoreInitialization, err)
	}

	// --- Planning ---
	r.batches, err = PlanBatches(files, o.opts.BatchSize, r.tempRoot)
	if err != nil {
		return err
	}
	summary.BatchCount = len(r.batches)
	logger.Info("Run started", slog.Int("files", len(files)), slog.Int("batches", len(r.batches)), slog.Int("batchSize", o.opts.BatchSize))
	if hookErr := o.opts.EventHooks.OnRunStart(RunPlan{
		CorrelationID:    r.correlationID,
		SourceDirectory:  r.sourceDir,
		ReportsDirectory: r.reportsDir,
		Batches:          r.batches,
	}); hookErr != nil {
		logger.Warn("Error reported by OnRunStart hook", slog.String("hookError", hookErr.Error()))
	}

	// --- Batches ---
	processed := 0
	for _, batch := range r.batches {
		if ctx.Err() != nil {
			break
		}
		result := o.processBatch(ctx, r, batch, actor, conn, logger)
		summary.add(result)
		if result.Status == BatchQuarantined && errors.Is(result.Err, ErrQuarantine) {
			summary.QuarantineFailures++
		}
		processed++
	}
	interrupted := ctx.Err()
	if interrupted != nil {
		logger.Warn("Run interrupted; unprocessed files stay in the source directory",
			slog.Int("processedBatches", processed),
			slog.Int("remainingBatches", len(r.batches)-processed))
	}

	// --- Cleanup ---
	if delErr := store.DeleteDir(r.tempRoot, true); delErr != nil {
		logger.Warn("Failed to remove processing directory", slog.String("path", r.tempRoot), slog.Any("error", delErr))
	}

	if summary.SucceededCount == 0 {
		logger.Warn("No batch succeeded; reports were not generated", slog.Int("quarantined", summary.QuarantinedCount))
		if interrupted != nil {
			return fmt.Errorf("run interrupted: %w", interrupted)
		}
		return nil
	}

	// Ingested batches were removed with the processing directory, so they are reported
	// even when the run was interrupted.
	reportCtx := ctx
	if interrupted != nil {
		reportCtx = context.WithoutCancel(ctx)
	}

	// --- Reports ---
	if err := store.CreateDir(r.reportsDir); err != nil {
		logger.Error("Failed to create reports directory", slog.String("path", r.reportsDir), slog.Any("error", err))
		return fmt.Errorf("%w: cannot create %q: %w", ErrReportGeneration, r.reportsDir, err)
	}
	prefix := filepath.Join(r.reportsDir, o.opts.Clock().UTC().Format(ReportTimestampLayout))
	summary.ReportPrefix = prefix
	if err := actor.CreateReports(reportCtx, prefix, conn); err != nil {
		logger.Error("Report generation failed", slog.String("prefix", prefix), slog.Any("error", err))
		return fmt.Errorf("%w: %w", ErrReportGeneration, err)
	}
	summary.ReportsGenerated = true

	logger.Info("Run complete",
		slog.Int("succeeded", summary.SucceededCount),
		slog.Int("quarantined", summary.QuarantinedCount),
		slog.String("reportPrefix", prefix))
	if interrupted != nil {
		return fmt.Errorf("run interrupted: %w", interrupted)
	}
	return nil
}

// pendingFiles lists the regular files in sourceDir, excluding the advisory lock file.
func (o *Orchestrator) pendingFiles(sourceDir string) ([]string, error) {
	names, err := o.opts.FileStore.ListFiles(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrDiscovery, sourceDir, err)
	}
	files := names[:0]
	for _, name := range names {
		if name == LockFileName {
			continue
		}
		files = append(files, name)
	}
	return files, nil
}

// recoverOrphanedProcessingDir moves a processing directory left by an interrupted run into
// this run's failures root, so its files are kept and the ordinals of this run start clean.
// An error means the old batch directories are still in place and the run must not plan.
func (o *Orchestrator) recoverOrphanedProcessingDir(r *run, logger *slog.Logger) error {
	store := o.opts.FileStore
	exists, err := store.Exists(r.tempRoot)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrDiscovery, r.tempRoot, err)
	}
	if !exists {
		return nil
	}
	dst := filepath.Join(r.failuresRoot, OrphanedDirName)
	if err := store.CreateDir(r.failuresRoot); err != nil {
		return fmt.Errorf("%w: cannot create %q for orphaned processing directory: %w", ErrDiscovery, r.failuresRoot, err)
	}
	if err := store.Move(r.tempRoot, dst); err != nil {
		return fmt.Errorf("%w: cannot move orphaned processing directory %q: %w", ErrDiscovery, r.tempRoot, err)
	}
	logger.Warn("Recovered processing directory left by an interrupted run", slog.String("path", dst))
	return nil
}

// processBatch runs the per-batch pipeline: materialize, ingest, then succeed or quarantine.
// It never returns an error; the outcome is in the BatchResult.
func (o *Orchestrator) processBatch(ctx context.Context, r *run, batch Batch, actor Actor, conn engine.Conn, logger *slog.Logger) BatchResult {
	start := time.Now()
	batchLogger := logger.With(slog.Int("batch", batch.Ordinal))
	o.notify(batch, BatchMoving, "", 0, batchLogger)

	err := o.planner.Materialize(ctx, r.sourceDir, batch)
	if err == nil {
		o.notify(batch, BatchProcessing, "", time.Since(start), batchLogger)
		err = o.ingest(ctx, actor, batch, conn)
	}
	if err == nil {
		duration := time.Since(start)
		batchLogger.Info("Batch ingested", slog.Int("files", batch.Size()), slog.Duration("duration", duration))
		o.notify(batch, BatchSucceeded, "", duration, batchLogger)
		return BatchResult{Batch: batch, Status: BatchSucceeded, Duration: duration}
	}

	batchLogger.Error("Batch failed; quarantining", slog.Int("files", batch.Size()), slog.Any("error", err))
	if qErr := o.quarantine.Quarantine(batch.Dir, r.failuresRoot, batch.Ordinal); qErr != nil {
		batchLogger.Error("Failed to quarantine batch", slog.String("batchDir", batch.Dir), slog.Any("error", qErr))
		err = errors.Join(err, qErr)
	}
	duration := time.Since(start)
	o.notify(batch, BatchQuarantined, err.Error(), duration, batchLogger)
	return BatchResult{Batch: batch, Status: BatchQuarantined, Err: err, Duration: duration}
}

// ingest calls the actor's ingestion hook, turning a panic into an ErrBatchIngestion error.
func (o *Orchestrator) ingest(ctx context.Context, actor Actor, batch Batch, conn engine.Conn) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: batch %d: panic: %v", ErrBatchIngestion, batch.Ordinal, rec)
		}
	}()
	if ingestErr := actor.ProcessSourceFiles(ctx, batch.Glob(), conn); ingestErr != nil {
		return fmt.Errorf("%w: batch %d: %w", ErrBatchIngestion, batch.Ordinal, ingestErr)
	}
	return nil
}

func (o *Orchestrator) notify(batch Batch, status BatchStatus, message string, duration time.Duration, logger *slog.Logger) {
	if hookErr := o.opts.EventHooks.OnBatchStatusUpdate(batch, status, message, duration); hookErr != nil {
		logger.Warn("Error reported by OnBatchStatusUpdate hook", slog.String("status", string(status)), slog.String("hookError", hookErr.Error()))
	}
}
