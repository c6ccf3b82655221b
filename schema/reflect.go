//go:generate go run ../tools/schema-generator --out definitions

package schema

import (
	"encoding/json"
	"sync"

	"github.com/grovetools/pulse/pkg/models"
	"github.com/invopop/jsonschema"
)

// Reflect generates a draft-07 schema for v. Property names come from the
// given struct tag ("json" or "yaml").
func Reflect(v interface{}, tag, title, description string) ([]byte, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		ExpandedStruct:            true,
		FieldNameTag:              tag,
	}
	s := r.Reflect(v)
	s.Title = title
	s.Description = description
	s.Version = "http://json-schema.org/draft-07/schema#"
	return json.MarshalIndent(s, "", "  ")
}

var (
	batchOnce      sync.Once
	batchSchema    []byte
	batchValidator *Validator
	batchErr       error
)

func loadBatch() {
	batchSchema, batchErr = Reflect(&models.IngestRequest{}, "json",
		"Pulse Ingest Batch", "One batch of records for an item section.")
	if batchErr != nil {
		return
	}
	batchValidator, batchErr = Compile("batch.json", batchSchema)
}

// BatchSchema returns the JSON schema for ingest batches.
func BatchSchema() ([]byte, error) {
	batchOnce.Do(loadBatch)
	return batchSchema, batchErr
}

// ValidateBatch validates a decoded batch document (a map from YAML, TOML or
// JSON) against the ingest batch schema.
func ValidateBatch(doc interface{}) error {
	batchOnce.Do(loadBatch)
	if batchErr != nil {
		return batchErr
	}
	return batchValidator.Validate(doc)
}
