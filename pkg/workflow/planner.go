package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// Batch is a fixed-size group of pending request files materialized into its own directory.
type Batch struct {
	// Ordinal is 1-based and contiguous within a run, in discovery order.
	Ordinal int `json:"ordinal"`
	// Files holds the file names (not paths) owned by this batch.
	Files []string `json:"files"`
	// Dir is the isolated directory the files are moved into: <temp root>/<ordinal>.
	Dir string `json:"dir"`
}

// Glob returns the glob path handed to Actor.ProcessSourceFiles for this batch.
func (b Batch) Glob() string {
	return filepath.Join(b.Dir, "*")
}

// Size returns the number of files in the batch.
func (b Batch) Size() int {
	return len(b.Files)
}

// PlanBatches partitions files into ceil(len(files)/batchSize) batches rooted at tempRoot.
// The input is copied and sorted lexicographically first, so the same set of names always
// yields the same partitioning and ordinals. It does not touch the filesystem.
func PlanBatches(files []string, batchSize int, tempRoot string) ([]Batch, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", ErrConfigValidation, batchSize)
	}
	sorted := make([]string, len(files))
	copy(sorted, files)
	sort.Strings(sorted)

	batches := make([]Batch, 0, (len(sorted)+batchSize-1)/batchSize)
	for start := 0; start < len(sorted); start += batchSize {
		end := start + batchSize
		if end > len(sorted) {
			end = len(sorted)
		}
		ordinal := len(batches) + 1
		batches = append(batches, Batch{
			Ordinal: ordinal,
			Files:   sorted[start:end:end],
			Dir:     filepath.Join(tempRoot, strconv.Itoa(ordinal)),
		})
	}
	return batches, nil
}

// BatchPlanner materializes planned batches by moving their files out of the source
// directory into each batch's isolated directory.
type BatchPlanner struct {
	store       FileStore
	concurrency int
	logger      *slog.Logger
}

// NewBatchPlanner creates a BatchPlanner. concurrency <= 0 means runtime.NumCPU().
func NewBatchPlanner(store FileStore, concurrency int, loggerHandler slog.Handler) *BatchPlanner {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &BatchPlanner{
		store:       store,
		concurrency: concurrency,
		logger:      slog.New(loggerHandler).With(slog.String("component", "planner")),
	}
}

// Materialize creates batch.Dir and moves every file of the batch from sourceDir into it.
// Moves are independent and run on a bounded worker pool. Every move is attempted even if
// some fail; the failures are returned together wrapped in ErrBatchMaterialization.
// A moved file is never moved back.
func (p *BatchPlanner) Materialize(ctx context.Context, sourceDir string, batch Batch) error {
	if err := p.store.CreateDir(batch.Dir); err != nil {
		return fmt.Errorf("%w: batch %d: cannot create directory %q: %w", ErrBatchMaterialization, batch.Ordinal, batch.Dir, err)
	}

	var (
		mu     sync.Mutex
		merr   *multierror.Error
		record = func(err error) {
			mu.Lock()
			merr = multierror.Append(merr, err)
			mu.Unlock()
		}
	)

	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)
	for _, name := range batch.Files {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					record(fmt.Errorf("move %q: panic: %v", name, r))
				}
			}()
			if err := ctx.Err(); err != nil {
				record(fmt.Errorf("move %q: %w", name, err))
				return nil
			}
			src := filepath.Join(sourceDir, name)
			dst := filepath.Join(batch.Dir, name)
			if err := p.store.Move(src, dst); err != nil {
				record(fmt.Errorf("move %q: %w", name, err))
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := merr.ErrorOrNil(); err != nil {
		p.logger.Debug("Batch materialized with errors",
			slog.Int("batch", batch.Ordinal),
			slog.Int("failedMoves", merr.Len()),
			slog.Int("files", batch.Size()))
		return fmt.Errorf("%w: batch %d: %w", ErrBatchMaterialization, batch.Ordinal, err)
	}
	p.logger.Debug("Batch materialized", slog.Int("batch", batch.Ordinal), slog.Int("files", batch.Size()), slog.String("dir", batch.Dir))
	return nil
}
