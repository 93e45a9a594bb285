package downloads_test

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfe-analytical-services/explore-education-statistics-sub068/internal/testutil"
	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/actors/downloads"
	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/engine"
	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/requestfile"
	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/workflow"
)

func newActor(t *testing.T, fs afero.Fs) *downloads.Actor {
	t.Helper()
	a, err := downloads.New("/data", fs, nil, slog.NewTextHandler(&bytes.Buffer{}, nil))
	require.NoError(t, err)
	return a
}

func TestActor_Directories(t *testing.T) {
	a := newActor(t, afero.NewMemMapFs())
	assert.Equal(t, filepath.Join("/data", "public", "zip-downloads"), a.SourceDirectory())
	assert.Equal(t, filepath.Join("/data", "reports", "public", "zip-downloads"), a.ReportsDirectory())
}

func TestActor_ProcessSourceFiles(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		wantErr bool
	}{
		{
			name:    "release zip",
			content: `{"publicationName":"Pupil absence","releaseVersionId":"r1","releaseName":"2023/24","fromPage":"ReleaseDownloads"}`,
		},
		{
			name:    "data set zip",
			content: `{"publicationName":"Pupil absence","releaseVersionId":"r1","releaseName":"2023/24","releaseLabel":null,"subjectId":"s1","dataSetTitle":"Absence by school","fromPage":"DataSetPage"}`,
		},
		{
			name:    "unknown page",
			content: `{"publicationName":"Pupil absence","releaseVersionId":"r1","releaseName":"2023/24","fromPage":"Homepage"}`,
			wantErr: true,
		},
		{
			name:    "missing publication",
			content: `{"releaseVersionId":"r1","releaseName":"2023/24","fromPage":"DataCatalogue"}`,
			wantErr: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "/b/1/d.json", []byte(tc.content), 0o644))
			conn := &testutil.FakeConn{}

			err := newActor(t, fs).ProcessSourceFiles(context.Background(), "/b/1/*", conn)
			if tc.wantErr {
				assert.ErrorIs(t, err, requestfile.ErrInvalidRequest)
				assert.Empty(t, conn.Queries())
				return
			}
			require.NoError(t, err)
			require.Len(t, conn.Queries(), 1)
			assert.Contains(t, conn.Queries()[0], `INSERT INTO "zip_downloads"`)
		})
	}
}

func TestActor_InitializeAndReport(t *testing.T) {
	conn := &testutil.FakeConn{}
	a := newActor(t, afero.NewMemMapFs())
	ctx := context.Background()

	require.NoError(t, a.InitializeStore(ctx, conn))
	require.NoError(t, a.CreateReports(ctx, "/r/20240101-000000", conn))

	queries := conn.Queries()
	require.Len(t, queries, 2)
	assert.Contains(t, queries[0], `CREATE OR REPLACE TABLE "zip_downloads"`)
	assert.Contains(t, queries[1], "TO '/r/20240101-000000_public-zip-downloads.parquet'")
	assert.Contains(t, queries[1], "GROUP BY ALL")
}

// TestActor_ReportsCoverOnlyTheirOwnRun runs twice against one DuckDB file. It needs cgo
// and is skipped with -short.
func TestActor_ReportsCoverOnlyTheirOwnRun(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping DuckDB integration test in short mode")
	}
	ctx := context.Background()
	root := t.TempDir()
	handler := slog.NewTextHandler(&bytes.Buffer{}, nil)
	a, err := downloads.New(root, afero.NewOsFs(), nil, handler)
	require.NoError(t, err)

	days := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	for _, day := range days {
		testutil.CreateDummyFile(t, filepath.Join(a.SourceDirectory(), "r.json"),
			`{"publicationName":"Pupil absence","releaseVersionId":"r1","releaseName":"2023/24","fromPage":"ReleaseDownloads"}`)
		o, err := workflow.NewOrchestrator(workflow.Options{
			Logger:       handler,
			EngineOpener: engine.NewDuckDBOpener(filepath.Join(root, "analytics.duckdb")),
			Clock:        func() time.Time { return day },
		})
		require.NoError(t, err)
		require.NoError(t, o.Run(ctx, a))
	}

	db, err := sql.Open(engine.DriverName, "")
	require.NoError(t, err)
	defer db.Close()

	report := filepath.Join(a.ReportsDirectory(), "20240102-000000_public-zip-downloads.parquet")
	var downloadsCount int64
	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT sum(downloads) FROM read_parquet("+engine.QuoteLiteral(report)+")").Scan(&downloadsCount))
	assert.Equal(t, int64(1), downloadsCount)
}
