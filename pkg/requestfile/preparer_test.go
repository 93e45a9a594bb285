package requestfile_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/requestfile"
)

func TestPreparer_Prepare(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/b/1/a.json", append([]byte{0xEF, 0xBB, 0xBF}, []byte(`{"dataSetId":"x","startTime":"t"}`)...), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/b/1/b.json", []byte(`{"dataSetId":"y","startTime":"t"}`), 0o644))
	require.NoError(t, fs.MkdirAll("/b/1/nested", 0o755))

	v, err := requestfile.LoadSchemaYAML([]byte(testSchemaYAML))
	require.NoError(t, err)
	logBuf := &bytes.Buffer{}
	p := requestfile.NewPreparer(fs, nil, v, slog.NewTextHandler(logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	n, err := p.Prepare("/b/1/*")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rewritten, err := afero.ReadFile(fs, "/b/1/a.json")
	require.NoError(t, err)
	assert.Equal(t, `{"dataSetId":"x","startTime":"t"}`, string(rewritten), "BOM stripped in place")
	assert.Contains(t, logBuf.String(), "Request file converted to UTF-8")
}

func TestPreparer_Prepare_ReportsEveryInvalidFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/b/2/good.json", []byte(`{"dataSetId":"y","startTime":"t"}`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/b/2/missing-field.json", []byte(`{"dataSetId":"y"}`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/b/2/broken.json", []byte(`{`), 0o644))

	v, err := requestfile.LoadSchemaYAML([]byte(testSchemaYAML))
	require.NoError(t, err)
	p := requestfile.NewPreparer(fs, requestfile.NewNormalizer(""), v, slog.NewTextHandler(&bytes.Buffer{}, nil))

	n, err := p.Prepare("/b/2/*")
	assert.Equal(t, 3, n)
	require.Error(t, err)
	assert.ErrorIs(t, err, requestfile.ErrInvalidRequest)
	assert.Contains(t, err.Error(), "missing-field.json")
	assert.Contains(t, err.Error(), "broken.json")
	assert.NotContains(t, err.Error(), "good.json")
}

func TestPreparer_Prepare_NoValidator(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/b/3/x.json", []byte(`anything`), 0o644))
	p := requestfile.NewPreparer(fs, nil, nil, slog.NewTextHandler(&bytes.Buffer{}, nil))

	n, err := p.Prepare("/b/3/*")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPreparer_Prepare_NoMatches(t *testing.T) {
	p := requestfile.NewPreparer(afero.NewMemMapFs(), nil, nil, slog.NewTextHandler(&bytes.Buffer{}, nil))
	n, err := p.Prepare("/nothing/*")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPreparer_Prepare_InvalidBatchKeepsOriginalBytes(t *testing.T) {
	fs := afero.NewMemMapFs()
	withBOM := append([]byte{0xEF, 0xBB, 0xBF}, []byte(`{"dataSetId":"x","startTime":"t"}`)...)
	require.NoError(t, afero.WriteFile(fs, "/b/4/a.json", withBOM, 0o644))
	require.NoError(t, afero.WriteFile(fs, "/b/4/b.json", []byte(`{"dataSetId":"y"}`), 0o644))

	v, err := requestfile.LoadSchemaYAML([]byte(testSchemaYAML))
	require.NoError(t, err)
	p := requestfile.NewPreparer(fs, nil, v, slog.NewTextHandler(&bytes.Buffer{}, nil))

	_, err = p.Prepare("/b/4/*")
	require.ErrorIs(t, err, requestfile.ErrInvalidRequest)

	content, err := afero.ReadFile(fs, "/b/4/a.json")
	require.NoError(t, err)
	assert.Equal(t, withBOM, content, "valid file in a failed batch is left as written")
}
