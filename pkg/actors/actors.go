// Package actors lists the workflow Actors shipped with the service and builds them by name.
package actors

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/afero"

	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/actors/downloads"
	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/actors/publicapi"
	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/requestfile"
	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/workflow"
)

// ErrUnknownActor indicates a requested actor name is not registered.
var ErrUnknownActor = errors.New("unknown actor")

// Options are shared by every actor constructor.
type Options struct {
	DataRoot        string
	Fs              afero.Fs     // nil means the host filesystem
	DefaultEncoding string       // fallback for request files that are neither UTF-8 nor BOM-marked
	Logger          slog.Handler // Required
}

type factory func(opts Options, normalizer *requestfile.Normalizer) (workflow.Actor, error)

var registry = map[string]factory{
	publicapi.Name: func(opts Options, n *requestfile.Normalizer) (workflow.Actor, error) {
		return publicapi.New(opts.DataRoot, opts.Fs, n, opts.Logger)
	},
	downloads.Name: func(opts Options, n *requestfile.Normalizer) (workflow.Actor, error) {
		return downloads.New(opts.DataRoot, opts.Fs, n, opts.Logger)
	},
}

// Names returns every registered actor name, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the named actor.
func New(name string, opts Options) (workflow.Actor, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownActor, name, Names())
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("%w: logger handler cannot be nil", workflow.ErrConfigValidation)
	}
	return f(opts, requestfile.NewNormalizer(opts.DefaultEncoding))
}
