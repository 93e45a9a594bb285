package actors_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/actors"
	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/workflow"
)

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"public-api-queries", "public-zip-downloads"}, actors.Names())
}

func TestNew(t *testing.T) {
	opts := actors.Options{DataRoot: "/data", Fs: afero.NewMemMapFs(), Logger: slog.NewTextHandler(&bytes.Buffer{}, nil)}
	for _, name := range actors.Names() {
		a, err := actors.New(name, opts)
		require.NoError(t, err, name)
		assert.NotEmpty(t, a.SourceDirectory())
		assert.NotEqual(t, a.SourceDirectory(), a.ReportsDirectory())
	}

	_, err := actors.New("nope", opts)
	assert.ErrorIs(t, err, actors.ErrUnknownActor)

	_, err = actors.New("public-api-queries", actors.Options{DataRoot: "/data"})
	assert.ErrorIs(t, err, workflow.ErrConfigValidation)
}
