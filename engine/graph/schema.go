package graph

import (
	"encoding/json"
	"fmt"
	"sync"

	invopop "github.com/invopop/jsonschema"
	kjschema "github.com/kaptinlin/jsonschema"
)

// documentReflector mirrors the schemagen conventions used across the rest
// of the platform: required fields come from struct tags, nested types are
// referenced, and unknown fields are tolerated so newer documents still
// load on older engines.
func documentReflector() *invopop.Reflector {
	return &invopop.Reflector{
		RequiredFromJSONSchemaTags: true,
		AllowAdditionalProperties:  true,
		DoNotReference:             false,
	}
}

// DocumentJSONSchema returns the JSON Schema describing the persisted
// workflow document shape, generated from the Document struct.
func DocumentJSONSchema() ([]byte, error) {
	schema := documentReflector().Reflect(&Document{})
	raw, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document schema: %w", err)
	}
	return raw, nil
}

var (
	compiledSchemaOnce sync.Once
	compiledSchema     *kjschema.Schema
	compiledSchemaErr  error
)

func documentSchema() (*kjschema.Schema, error) {
	compiledSchemaOnce.Do(func() {
		raw, err := DocumentJSONSchema()
		if err != nil {
			compiledSchemaErr = err
			return
		}
		compiledSchema, compiledSchemaErr = kjschema.NewCompiler().Compile(raw)
	})
	return compiledSchema, compiledSchemaErr
}

// checkDocumentBytes validates a raw JSON document against the generated
// schema before the struct-level parse, so a malformed document fails with
// a structured offense list instead of a decoder error deep inside an
// unrelated field.
func checkDocumentBytes(raw []byte) error {
	schema, err := documentSchema()
	if err != nil {
		return newValidationError("schema_compile", err.Error())
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("failed to parse workflow document: %w", err)
	}
	result := schema.Validate(instance)
	if result.IsValid() {
		return nil
	}
	offenses := collectSchemaOffenses(result.ToList(), nil)
	if len(offenses) == 0 {
		offenses = []string{"document does not match the workflow schema"}
	}
	return newValidationError("schema_mismatch", fmt.Sprintf("%v", offenses))
}

func collectSchemaOffenses(list *kjschema.List, acc []string) []string {
	if list == nil {
		return acc
	}
	for _, msg := range list.Errors {
		acc = append(acc, fmt.Sprintf("%s: %s", list.InstanceLocation, msg))
	}
	for i := range list.Details {
		acc = collectSchemaOffenses(&list.Details[i], acc)
	}
	return acc
}
