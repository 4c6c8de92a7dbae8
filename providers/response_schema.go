package providers

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// jsonSchemaWrapper mirrors the "json_schema" response_format envelope
// (OpenAI-compatible): the caller-supplied schema lives under "schema",
// alongside a name and an optional strict flag.
type jsonSchemaWrapper struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
}

// validateResponseJSONSchema checks that a response_format's json_schema
// payload is itself a syntactically valid JSON Schema document, so a
// malformed schema is rejected at the request boundary instead of being
// forwarded to a provider that may accept or silently ignore it.
func validateResponseJSONSchema(raw json.RawMessage) error {
	if len(raw) == 0 {
		return fmt.Errorf("json_schema response format requires a schema")
	}

	var wrapper jsonSchemaWrapper
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return fmt.Errorf("invalid json_schema envelope: %w", err)
	}
	if len(wrapper.Schema) == 0 {
		return fmt.Errorf("json_schema response format is missing \"schema\"")
	}

	compiler := jsonschema.NewCompiler()
	const resourceURL = "response-format.json"
	if err := compiler.AddResource(resourceURL, bytes.NewReader(wrapper.Schema)); err != nil {
		return fmt.Errorf("invalid json schema: %w", err)
	}
	if _, err := compiler.Compile(resourceURL); err != nil {
		return fmt.Errorf("invalid json schema: %w", err)
	}
	return nil
}
