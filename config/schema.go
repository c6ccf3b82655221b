package config

import (
	"encoding/json"
	"sync"

	"github.com/grovetools/pulse/schema"
	"github.com/invopop/jsonschema"
)

// GenerateSchema generates the JSON Schema for pulse.yml. Unknown top-level
// keys are allowed so extensions such as logging validate.
func GenerateSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: true,
		ExpandedStruct:            true,
		FieldNameTag:              "yaml",
	}

	s := r.Reflect(&Config{})
	s.Title = "Pulse Configuration"
	s.Description = "Schema for pulse.yml / pulse.toml."
	s.Version = "http://json-schema.org/draft-07/schema#"

	return json.MarshalIndent(s, "", "  ")
}

// SchemaValidator validates decoded configuration documents against the
// generated schema.
type SchemaValidator struct {
	validator *schema.Validator
}

var (
	validatorOnce sync.Once
	validatorInst *schema.Validator
	validatorErr  error
)

// NewSchemaValidator returns a validator for the configuration schema. The
// schema is compiled once per process.
func NewSchemaValidator() (*SchemaValidator, error) {
	validatorOnce.Do(func() {
		var data []byte
		data, validatorErr = GenerateSchema()
		if validatorErr != nil {
			return
		}
		validatorInst, validatorErr = schema.Compile("pulse.schema.json", data)
	})
	if validatorErr != nil {
		return nil, validatorErr
	}
	return &SchemaValidator{validator: validatorInst}, nil
}

// Validate validates configuration data against the schema.
func (v *SchemaValidator) Validate(configData interface{}) error {
	return v.validator.Validate(configData)
}
