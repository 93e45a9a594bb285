package requestfile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xeipuuv/gojsonschema"

	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/requestfile"
)

const testSchemaYAML = `
$schema: "http://json-schema.org/draft-07/schema#"
type: object
required: [dataSetId, startTime]
properties:
  dataSetId:
    type: string
    minLength: 1
  startTime:
    type: string
  resultsCount:
    type: integer
    minimum: 0
`

func TestLoadSchemaYAML_Validate(t *testing.T) {
	v, err := requestfile.LoadSchemaYAML([]byte(testSchemaYAML))
	require.NoError(t, err)

	assert.NoError(t, v.Validate([]byte(`{"dataSetId":"ds-1","startTime":"2024-01-01T00:00:00Z","resultsCount":3}`)))

	err = v.Validate([]byte(`{"dataSetId":"","resultsCount":-1}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, requestfile.ErrInvalidRequest)
	assert.Contains(t, err.Error(), "startTime")
	assert.Contains(t, err.Error(), "resultsCount")
}

func TestValidate_MalformedJSON(t *testing.T) {
	v, err := requestfile.LoadSchemaYAML([]byte(testSchemaYAML))
	require.NoError(t, err)

	err = v.Validate([]byte(`{"dataSetId":`))
	assert.ErrorIs(t, err, requestfile.ErrInvalidRequest)
}

func TestLoadSchemaYAML_Invalid(t *testing.T) {
	_, err := requestfile.LoadSchemaYAML([]byte("type: [unclosed"))
	assert.ErrorIs(t, err, requestfile.ErrSchema)

	_, err = requestfile.LoadSchemaYAML([]byte(""))
	assert.ErrorIs(t, err, requestfile.ErrSchema)

	_, err = requestfile.LoadSchemaYAML([]byte("type: 42"))
	assert.ErrorIs(t, err, requestfile.ErrSchema)
}

func TestNewValidator_JSONSchema(t *testing.T) {
	v, err := requestfile.NewValidator(gojsonschema.NewStringLoader(`{"type":"array"}`))
	require.NoError(t, err)
	assert.NoError(t, v.Validate([]byte(`[1,2]`)))
	assert.ErrorIs(t, v.Validate([]byte(`{}`)), requestfile.ErrInvalidRequest)
}
