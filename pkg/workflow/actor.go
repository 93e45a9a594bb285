package workflow

import (
	"context"

	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/engine"
)

// Actor supplies everything that is specific to one kind of request file: where the files
// arrive, where reports go, and how the analytical store is prepared, fed and exported.
// One implementation exists per kind of request file; the Orchestrator knows nothing about
// what is being counted.
//
// All hooks receive the connection opened for the current run. Implementations must not
// retain it after Run returns.
type Actor interface {
	// SourceDirectory is the directory upstream producers drop pending request files into.
	SourceDirectory() string
	// ReportsDirectory is the directory report files are written to.
	ReportsDirectory() string
	// InitializeStore creates the tables or other state needed for this run.
	// An error here is fatal for the run.
	InitializeStore(ctx context.Context, conn engine.Conn) error
	// ProcessSourceFiles ingests every file matched by globPath (one batch).
	// An error here quarantines the batch and the run continues.
	ProcessSourceFiles(ctx context.Context, globPath string, conn engine.Conn) error
	// CreateReports exports the accumulated state. pathPrefix is
	// "<reports dir>/<yyyyMMdd-HHmmss>"; the Actor appends its own suffix and extension.
	// An error here is fatal for the run.
	CreateReports(ctx context.Context, pathPrefix string, conn engine.Conn) error
}
