// Package publicapi implements the workflow Actor for captured public API data set queries.
package publicapi

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
const Name = "public-api-queries"

const (
	table         = "public_api_queries"
	queriesReport = "_public-api-queries"
	summaryReport = "_public-api-query-summaries"
)

//go:embed schema.yaml
var schemaYAML []byte

var columns = []engine.Column{
	{Name: "dataSetId", Type: "VARCHAR"},
	{Name: "dataSetVersionId", Type: "VARCHAR"},
	{Name: "dataSetVersion", Type: "VARCHAR"},
	{Name: "previewToken", Type: "JSON"},
	{Name: "query", Type: "JSON"},
	{Name: "resultsCount", Type: "BIGINT"},
	{Name: "totalRowsCount", Type: "BIGINT"},
	{Name: "startTime", Type: "TIMESTAMP"},
	{Name: "endTime", Type: "TIMESTAMP"},
}

const queriesSQL = `SELECT
    dataSetId,
    dataSetVersionId,
    dataSetVersion,
    md5(CAST(query AS VARCHAR)) AS queryHash,
    CAST(query AS VARCHAR) AS query,
    previewToken IS NOT NULL AS previewTokenUsed,
    resultsCount,
    totalRowsCount,
    startTime,
    endTime
FROM public_api_queries
ORDER BY startTime, source_file`

const summarySQL = `SELECT
    dataSetId,
    dataSetVersionId,
    dataSetVersion,
    md5(CAST(query AS VARCHAR)) AS queryHash,
    count(*) AS queryExecutions,
    min(startTime) AS firstExecuted,
    max(endTime) AS lastExecuted,
    avg(resultsCount) AS meanResultsCount
FROM public_api_queries
GROUP BY ALL
ORDER BY dataSetId, dataSetVersionId, queryHash`

// Actor processes public API query request files.
type Actor struct {
	dataRoot string
	preparer *requestfile.Preparer
	logger   *slog.Logger
}

var _ workflow.Actor = (*Actor)(nil)

// New creates the actor. Request files are expected under <dataRoot>/public-api/queries.
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
	return filepath.Join(a.dataRoot, "public-api", "queries")
}

// ReportsDirectory implements workflow.Actor.
func (a *Actor) ReportsDirectory() string {
	return filepath.Join(a.dataRoot, "reports", "public-api", "queries")
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
	a.logger.Debug("Queries ingested", slog.Int("files", n), slog.Int64("rows", rows))
	return nil
}

// CreateReports implements workflow.Actor. It writes <prefix>_public-api-queries.parquet
// with one row per query and <prefix>_public-api-query-summaries.parquet with one row per
// distinct query of each data set version.
func (a *Actor) CreateReports(ctx context.Context, pathPrefix string, conn engine.Conn) error {
	if err := engine.ExportParquet(ctx, conn, queriesSQL, pathPrefix+queriesReport+engine.ParquetExtension); err != nil {
		return err
	}
	return engine.ExportParquet(ctx, conn, summarySQL, pathPrefix+summaryReport+engine.ParquetExtension)
}
