package workflow

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// acquireLock takes the advisory lock for sourceDir when the store supports it.
// The returned release func is always non-nil.
func acquireLock(store FileStore, sourceDir string, logger *slog.Logger) (release func(), err error) {
	noop := func() {}
	locker, ok := store.(Locker)
	if !ok {
		logger.Debug("FileStore does not support locking; continuing without advisory lock", slog.String("sourceDir", sourceDir))
		return noop, nil
	}

	lockPath := filepath.Join(sourceDir, LockFileName)
	owner := lockOwner()
	unlock, err := locker.TryLock(lockPath, owner)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return noop, fmt.Errorf("%w: lock file %q exists", ErrRunInProgress, lockPath)
		}
		return noop, fmt.Errorf("%w: cannot create lock file %q: %w", ErrDiscovery, lockPath, err)
	}
	logger.Debug("Advisory lock acquired", slog.String("path", lockPath), slog.String("owner", owner))

	return func() {
		if unlockErr := unlock(); unlockErr != nil {
			logger.Warn("Failed to release advisory lock", slog.String("path", lockPath), slog.Any("error", unlockErr))
		}
	}, nil
}

func lockOwner() string {
	host, _ := os.Hostname()
	return host + ":" + strconv.Itoa(os.Getpid()) + ":" + time.Now().UTC().Format(time.RFC3339)
}
