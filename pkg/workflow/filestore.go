package workflow

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/afero"
)

// FileStore defines the directory and file primitives the workflow consumes.
// Paths are always absolute or relative to the process working directory; the
// store never interprets them.
type FileStore interface {
	// Exists reports whether a file or directory exists at path.
	Exists(path string) (bool, error)
	// CreateDir creates path and any missing parents. Existing directories are not an error.
	CreateDir(path string) error
	// DeleteDir removes path. With recursive set, everything beneath it is removed too.
	// A missing directory is not an error.
	DeleteDir(path string, recursive bool) error
	// ListFiles returns the names (not paths) of the regular files directly inside dir,
	// sorted lexicographically. Subdirectories are not included.
	ListFiles(dir string) ([]string, error)
	// Move renames src to dst. It works for files and directories.
	Move(src, dst string) error
}

// Locker is an optional FileStore capability used for the advisory source directory lock.
// TryLock must fail with an error matching os.ErrExist if the lock is already held.
type Locker interface {
	TryLock(path string, owner string) (unlock func() error, err error)
}

// AferoFileStore implements FileStore and Locker on top of an afero.Fs.
// The production default wraps the host filesystem; tests substitute afero.NewMemMapFs().
type AferoFileStore struct {
	fs afero.Fs
}

var (
	_ FileStore = (*AferoFileStore)(nil)
	_ Locker    = (*AferoFileStore)(nil)
)

// NewAferoFileStore creates a FileStore backed by fs. A nil fs means the host filesystem.
func NewAferoFileStore(fs afero.Fs) *AferoFileStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &AferoFileStore{fs: fs}
}

// NewOSFileStore creates a FileStore backed by the host filesystem.
func NewOSFileStore() *AferoFileStore {
	return NewAferoFileStore(afero.NewOsFs())
}

// Fs exposes the underlying afero filesystem.
func (s *AferoFileStore) Fs() afero.Fs { return s.fs }

// Exists implements FileStore.
func (s *AferoFileStore) Exists(path string) (bool, error) {
	return afero.Exists(s.fs, path)
}

// CreateDir implements FileStore.
func (s *AferoFileStore) CreateDir(path string) error {
	return s.fs.MkdirAll(path, 0o755)
}

// DeleteDir implements FileStore.
func (s *AferoFileStore) DeleteDir(path string, recursive bool) error {
	if recursive {
		return s.fs.RemoveAll(path)
	}
	err := s.fs.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// ListFiles implements FileStore.
func (s *AferoFileStore) ListFiles(dir string) ([]string, error) {
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !entry.Mode().IsRegular() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Move implements FileStore.
func (s *AferoFileStore) Move(src, dst string) error {
	return s.fs.Rename(src, dst)
}

// TryLock implements Locker by exclusively creating the lock file. The owner string is
// written into the file so a stale lock can be traced back to the run that left it.
func (s *AferoFileStore) TryLock(path string, owner string) (func() error, error) {
	f, err := s.fs.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	_, writeErr := f.WriteString(owner)
	closeErr := f.Close()
	if writeErr != nil || closeErr != nil {
		_ = s.fs.Remove(path)
		return nil, fmt.Errorf("failed to write lock file %q: %w", path, errors.Join(writeErr, closeErr))
	}
	return func() error {
		if err := s.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}, nil
}
