package loader

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
})

// Schema returns the JSON schema suite documents are validated against.
func Schema() []byte {
	return schemaJSON
}

// Parse validates data against the document schema and decodes it.
func Parse(data []byte) (*Document, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ValidationError{Errors: []string{fmt.Sprintf("invalid YAML: %v", err)}}
	}
	if raw == nil {
		return nil, &ValidationError{Errors: []string{"document is empty"}}
	}
	if err := validate(raw); err != nil {
		return nil, err
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ValidationError{Errors: []string{err.Error()}}
	}
	return &doc, nil
}

func validate(raw any) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compiling document schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return &ValidationError{Errors: []string{err.Error()}}
	}
	if result.Valid() {
		return nil
	}
	verr := &ValidationError{}
	for _, e := range result.Errors() {
		verr.Errors = append(verr.Errors, e.String())
	}
	return verr
}
