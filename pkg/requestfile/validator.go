package requestfile

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Validator checks request documents against a compiled JSON schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles the schema provided by loader.
func NewValidator(loader gojsonschema.JSONLoader) (*Validator, error) {
	schema, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchema, err)
	}
	return &Validator{schema: schema}, nil
}

// LoadSchemaYAML compiles a JSON schema authored as YAML.
func LoadSchemaYAML(data []byte) (*Validator, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchema, err)
	}
	if len(doc) == 0 {
		return nil, fmt.Errorf("%w: schema document is empty", ErrSchema)
	}
	return NewValidator(gojsonschema.NewGoLoader(doc))
}

// Validate checks a UTF-8 JSON document. Every violation is reported in the returned error,
// which wraps ErrInvalidRequest.
func (v *Validator) Validate(content []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(content))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if result.Valid() {
		return nil
	}
	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(violations, "; "))
}
