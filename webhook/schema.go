package webhook

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// validateSchema checks a verified payload against the configured schema.
func (v *Verifier) validateSchema(body []byte) error {
	schemaLoader := gojsonschema.NewBytesLoader(v.schema)
	documentLoader := gojsonschema.NewBytesLoader(body)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &PayloadError{Err: fmt.Errorf("schema validation failed: %w", err)}
	}
	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, fmt.Sprintf("%s: %s", desc.Context().String(), desc.Description()))
	}
	return &PayloadError{Violations: violations}
}
