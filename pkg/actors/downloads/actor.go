// Package downloads implements the workflow Actor for public zip download requests.
package downloads

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/engine"
	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/requestfile"
	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/workflow"
)

// Name identifies this actor on the command line and in configuration.
const Name = "public-zip-downloads"

const (
	table        = "zip_downloads"
	reportSuffix = "_public-zip-downloads"
)

//go:embed schema.yaml
var schemaYAML []byte

var columns = []engine.Column{
	{Name: "publicationName", Type: "VARCHAR"},
	{Name: "releaseVersionId", Type: "VARCHAR"},
	{Name: "releaseName", Type: "VARCHAR"},
	{Name: "releaseLabel", Type: "VARCHAR"},
	{Name: "subjectId", Type: "VARCHAR"},
	{Name: "dataSetTitle", Type: "VARCHAR"},
	{Name: "fromPage", Type: "VARCHAR"},
}

// A release-wide zip has no subjectId; it still hashes distinctly per release version.
const reportSQL = `SELECT
    md5(concat_ws('|', releaseVersionId, coalesce(subjectId, ''))) AS zipDownloadHash,
    publicationName,
    releaseVersionId,
    releaseName,
    releaseLabel,
    subjectId,
    dataSetTitle,
    fromPage,
    count(*) AS downloads
FROM zip_downloads
GROUP BY ALL
ORDER BY publicationName, releaseVersionId, subjectId NULLS FIRST, fromPage`

// Actor processes public zip download request files.
type Actor struct {
	dataRoot string
	preparer *requestfile.Preparer
	logger   *slog.Logger
}

var _ workflow.Actor = (*Actor)(nil)

// New creates the actor. Request files are expected under <dataRoot>/public/zip-downloads.
func New(dataRoot string, fs afero.Fs, normalizer *requestfile.Normalizer, loggerHandler slog.Handler) (*Actor, error) {
	validator, err := requestfile.LoadSchemaYAML(schemaYAML)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", Name, err)
	}
	return &Actor{
		dataRoot: dataRoot,
		preparer: requestfile.NewPreparer(fs, normalizer, validator, loggerHandler),
		logger:   slog.New(loggerHandler).With(slog.String("component", "actor"), slog.String("actor", Name)),
	}, nil
}

// SourceDirectory implements workflow.Actor.
func (a *Actor) SourceDirectory() string {
	return filepath.Join(a.dataRoot, "public", "zip-downloads")
}

// ReportsDirectory implements workflow.Actor.
func (a *Actor) ReportsDirectory() string {
	return filepath.Join(a.dataRoot, "reports", "public", "zip-downloads")
}

// InitializeStore implements workflow.Actor.
func (a *Actor) InitializeStore(ctx context.Context, conn engine.Conn) error {
	return engine.CreateTable(ctx, conn, table, columns)
}

// ProcessSourceFiles implements workflow.Actor.
func (a *Actor) ProcessSourceFiles(ctx context.Context, globPath string, conn engine.Conn) error {
	n, err := a.preparer.Prepare(globPath)
	if err != nil {
		return err
	}
	if n == 0 {
		a.logger.Warn("No request files matched", slog.String("glob", globPath))
		return nil
	}
	rows, err := engine.IngestJSON(ctx, conn, table, columns, globPath)
	if err != nil {
		return err
	}
	a.logger.Debug("Zip downloads ingested", slog.Int("files", n), slog.Int64("rows", rows))
	return nil
}

// CreateReports implements workflow.Actor. Downloads are aggregated per zip file and page.
func (a *Actor) CreateReports(ctx context.Context, pathPrefix string, conn engine.Conn) error {
	return engine.ExportParquet(ctx, conn, reportSQL, pathPrefix+reportSuffix+engine.ParquetExtension)
}
