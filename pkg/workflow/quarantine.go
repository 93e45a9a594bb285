package workflow

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
)

// QuarantineManager relocates the directory of a failed batch into the failures area so
// its files can be inspected later.
type QuarantineManager struct {
	store  FileStore
	logger *slog.Logger
}

// NewQuarantineManager creates a QuarantineManager.
func NewQuarantineManager(store FileStore, loggerHandler slog.Handler) *QuarantineManager {
	return &QuarantineManager{
		store:  store,
		logger: slog.New(loggerHandler).With(slog.String("component", "quarantine")),
	}
}

// FailuresRoot returns <sourceDir>/failures/<correlationID>.
func FailuresRoot(sourceDir, correlationID string) string {
	return filepath.Join(sourceDir, FailuresDirName, correlationID)
}

// Quarantine ensures failuresRoot exists and moves batchDir to failuresRoot/<ordinal>.
// Errors are returned wrapped in ErrQuarantine; the Orchestrator logs and swallows them.
func (q *QuarantineManager) Quarantine(batchDir, failuresRoot string, ordinal int) error {
	if err := q.store.CreateDir(failuresRoot); err != nil {
		return fmt.Errorf("%w: cannot create failures directory %q: %w", ErrQuarantine, failuresRoot, err)
	}
	dst := filepath.Join(failuresRoot, strconv.Itoa(ordinal))
	if err := q.store.Move(batchDir, dst); err != nil {
		return fmt.Errorf("%w: cannot move %q to %q: %w", ErrQuarantine, batchDir, dst, err)
	}
	q.logger.Info("Batch quarantined", slog.Int("batch", ordinal), slog.String("path", dst))
	return nil
}
