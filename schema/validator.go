// Package schema reflects JSON schemas from Go types and validates data
// against them.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator validates data against one compiled JSON Schema.
type Validator struct {
	schema *jsonschema.Schema
}

// Compile compiles a schema document registered under name.
func Compile(name string, data []byte) (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource %s: %w", name, err)
	}

	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	return &Validator{schema: schema}, nil
}

// Validate validates any value that can be marshaled to JSON.
func (v *Validator) Validate(data interface{}) error {
	// The schema expects plain JSON-like values, not Go structs.
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data to JSON for validation: %w", err)
	}
	return v.ValidateJSON(jsonData)
}

// ValidateJSON validates a raw JSON document.
func (v *Validator) ValidateJSON(raw []byte) error {
	var dataToValidate interface{}
	if err := json.Unmarshal(raw, &dataToValidate); err != nil {
		return fmt.Errorf("failed to unmarshal JSON for validation: %w", err)
	}

	if err := v.schema.Validate(dataToValidate); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			var errorMessages []string
			collectErrors(validationErr, &errorMessages)
			return fmt.Errorf("schema validation failed:\n%s", strings.Join(errorMessages, "\n"))
		}
		return fmt.Errorf("schema validation failed: %w", err)
	}

	return nil
}

// collectErrors recursively collects all validation errors into a slice
func collectErrors(err *jsonschema.ValidationError, messages *[]string) {
	if err.InstanceLocation != "" || len(err.Causes) == 0 {
		*messages = append(*messages, fmt.Sprintf("- %s: %s", location(err.InstanceLocation), err.Message))
	}
	for _, cause := range err.Causes {
		collectErrors(cause, messages)
	}
}

func location(l string) string {
	if l == "" {
		return "/"
	}
	return l
}
