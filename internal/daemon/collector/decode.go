package collector

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/grovetools/pulse/errors"
	"github.com/grovetools/pulse/pkg/models"
	"github.com/grovetools/pulse/schema"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Formats maps supported batch file extensions to their decoder name.
var Formats = map[string]string{
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".toml": "toml",
}

// DecodeDocument parses raw data in the given format into a generic value.
func DecodeDocument(data []byte, format string) (interface{}, error) {
	var doc interface{}
	var err error
	switch format {
	case "json":
		err = json.Unmarshal(data, &doc)
	case "yaml":
		err = yaml.Unmarshal(data, &doc)
	case "toml":
		var table map[string]interface{}
		err = toml.Unmarshal(data, &table)
		doc = table
	default:
		return nil, fmt.Errorf("unsupported format '%s'", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", format, err)
	}
	return doc, nil
}

// BatchFromDocument turns a decoded document into a validated ingest request.
// The document is either a list of records or a map with an items list.
// section, when non-empty, is the section implied by the source (a file
// name); a conflicting section in the document is an error.
func BatchFromDocument(doc interface{}, section string) (models.IngestRequest, error) {
	body := map[string]interface{}{}
	switch d := doc.(type) {
	case []interface{}:
		body["items"] = d
	case map[string]interface{}:
		for k, v := range d {
			body[k] = v
		}
	case nil:
		body["items"] = []interface{}{}
	default:
		return models.IngestRequest{}, errors.Newf(errors.ErrCodeInvalidInput, "batch must be a list or a map, got %T", doc)
	}

	if section != "" {
		if s, ok := body["section"].(string); ok && s != "" && !sameSection(s, section) {
			return models.IngestRequest{}, errors.Newf(errors.ErrCodeInvalidInput,
				"batch declares section '%s' but source is '%s'", s, section)
		}
		body["section"] = section
	}

	if err := schema.ValidateBatch(body); err != nil {
		return models.IngestRequest{}, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid batch")
	}

	// Round-trip through JSON so YAML and TOML scalars (timestamps, integer
	// widths) reach items in the same shape as JSON input.
	raw, err := json.Marshal(body)
	if err != nil {
		return models.IngestRequest{}, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid batch")
	}
	var req models.IngestRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return models.IngestRequest{}, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid batch")
	}
	if err := req.Validate(); err != nil {
		return models.IngestRequest{}, errors.Wrap(err, errors.ErrCodeInvalidSection, "invalid batch")
	}
	return req, nil
}

// ToBatch converts a validated request into a Batch.
func ToBatch(req models.IngestRequest, source string) (Batch, error) {
	sec, err := models.ParseSection(req.Section)
	if err != nil {
		return Batch{}, err
	}
	if req.Source != "" {
		source = req.Source
	}
	return Batch{Section: sec, Items: req.ToItems(), Source: source}, nil
}

// SectionForFile returns the item section named by a batch file, e.g.
// "priorities.yml", and its format.
func SectionForFile(path string) (models.Section, string, bool) {
	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))
	format, ok := Formats[ext]
	if !ok {
		return "", "", false
	}
	sec, err := models.ParseSection(strings.TrimSuffix(base, filepath.Ext(base)))
	if err != nil || !sec.HoldsItems() {
		return "", "", false
	}
	return sec, format, true
}

func sameSection(a, b string) bool {
	sa, errA := models.ParseSection(a)
	sb, errB := models.ParseSection(b)
	return errA == nil && errB == nil && sa == sb
}
