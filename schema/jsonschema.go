package schema

import (
	"encoding/json"
	"fmt"

	jsonschema "github.com/google/jsonschema-go/jsonschema"
)

// StructuredValidator wraps a compiled JSON Schema used to validate the
// `dict` shape more precisely than the tag→predicate table in
// Validate. Ports do not carry one; the http node builds one from its
// `response_schema` config and applies it to the decoded JSON response
// body.
type StructuredValidator struct {
	schema *jsonschema.Schema
}

// NewStructuredValidator compiles a JSON Schema document (such as an
// http node's `response_schema` config value) into a
// StructuredValidator.
func NewStructuredValidator(doc []byte) (*StructuredValidator, error) {
	var raw jsonschema.Schema
	if err := json.Unmarshal(doc, &raw); err != nil {
		return nil, fmt.Errorf("schema: invalid json schema document: %w", err)
	}
	if _, err := raw.Resolve(nil); err != nil {
		return nil, fmt.Errorf("schema: resolving json schema: %w", err)
	}
	return &StructuredValidator{schema: &raw}, nil
}

// Validate checks payload (already known to be `dict` or `list` shaped
// per the atomic tag table) against the compiled JSON Schema.
func (v *StructuredValidator) Validate(payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("schema: payload not json-representable: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return err
	}
	resolved, err := v.schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("schema: resolving json schema: %w", err)
	}
	if err := resolved.Validate(decoded); err != nil {
		return fmt.Errorf("schema: json schema validation failed: %w", err)
	}
	return nil
}
