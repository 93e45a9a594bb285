package requestfile

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
)

// Preparer normalises and validates every request file of a batch in place, so the
// analytical engine only ever reads clean UTF-8 JSON.
type Preparer struct {
	fs         afero.Fs
	normalizer *Normalizer
	validator  *Validator
	logger     *slog.Logger
}

// NewPreparer creates a Preparer. A nil validator skips schema validation; a nil fs means
// the host filesystem.
func NewPreparer(fs afero.Fs, normalizer *Normalizer, validator *Validator, loggerHandler slog.Handler) *Preparer {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if normalizer == nil {
		normalizer = NewNormalizer("")
	}
	return &Preparer{
		fs:         fs,
		normalizer: normalizer,
		validator:  validator,
		logger:     slog.New(loggerHandler).With(slog.String("component", "requestfile")),
	}
}

// Prepare processes every file matched by globPath and returns how many were found.
// All files are examined; problems are returned together so a quarantined batch lists
// every bad file at once. Files are rewritten as UTF-8 only when the whole batch is valid,
// so a failed batch keeps the bytes the producer wrote.
func (p *Preparer) Prepare(globPath string) (int, error) {
	matches, err := afero.Glob(p.fs, globPath)
	if err != nil {
		return 0, fmt.Errorf("glob %q: %w", globPath, err)
	}
	sort.Strings(matches)

	var (
		merr     *multierror.Error
		rewrites []rewrite
	)
	count := 0
	for _, path := range matches {
		info, statErr := p.fs.Stat(path)
		if statErr != nil {
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", filepath.Base(path), statErr))
			continue
		}
		if info.IsDir() {
			continue
		}
		count++
		rw, prepErr := p.checkFile(path, info.Mode().Perm())
		if prepErr != nil {
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", filepath.Base(path), prepErr))
			continue
		}
		if rw != nil {
			rewrites = append(rewrites, *rw)
		}
	}
	if err := merr.ErrorOrNil(); err != nil {
		return count, err
	}

	for _, rw := range rewrites {
		if err := afero.WriteFile(p.fs, rw.path, rw.content, rw.perm); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("%s: rewrite as utf-8: %w", filepath.Base(rw.path), err))
			continue
		}
		p.logger.Debug("Request file converted to UTF-8", slog.String("path", rw.path), slog.String("from", rw.from))
	}
	return count, merr.ErrorOrNil()
}

// rewrite is a pending UTF-8 conversion of one request file.
type rewrite struct {
	path    string
	content []byte
	perm    os.FileMode
	from    string
}

// checkFile normalises and validates one file without touching it. A non-nil rewrite means
// the file's bytes differ from its UTF-8 form.
func (p *Preparer) checkFile(path string, perm os.FileMode) (*rewrite, error) {
	content, err := afero.ReadFile(p.fs, path)
	if err != nil {
		return nil, err
	}
	normalized, encodingName, err := p.normalizer.Normalize(content)
	if err != nil {
		return nil, err
	}
	if p.validator != nil {
		if err := p.validator.Validate(normalized); err != nil {
			return nil, err
		}
	}
	if bytes.Equal(normalized, content) {
		return nil, nil
	}
	return &rewrite{path: path, content: normalized, perm: perm, from: encodingName}, nil
}
