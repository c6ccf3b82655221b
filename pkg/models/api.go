package models

import (
	"fmt"
	"strings"
	"time"
)

// IngestRequest is one batch of records for an item section. It is the body
// of POST /api/ingest, one line of a feed file, and the decoded form of an
// inbox file.
type IngestRequest struct {
	Section string           `json:"section" yaml:"section" toml:"section" jsonschema:"required,minLength=1,description=Item section the batch replaces"`
	Items   []map[string]any `json:"items" yaml:"items" toml:"items" jsonschema:"required,description=Records; each becomes one item's fields"`
	Source  string           `json:"source,omitempty" yaml:"source,omitempty" toml:"source,omitempty" jsonschema:"description=Name of the producer, for logs and status"`
}

// Validate checks the request outside of schema validation.
func (r IngestRequest) Validate() error {
	sec, err := ParseSection(r.Section)
	if err != nil {
		return err
	}
	if !sec.HoldsItems() {
		return fmt.Errorf("section '%s' does not hold items", r.Section)
	}
	return nil
}

// ToItems converts the records to items with no code or key assigned.
// A string "key" field is used as the caller-supplied natural key.
func (r IngestRequest) ToItems() []Item {
	items := make([]Item, 0, len(r.Items))
	for _, rec := range r.Items {
		it := Item{Fields: cloneMap(rec)}
		if k, ok := rec["key"].(string); ok && strings.TrimSpace(k) != "" {
			it.Key = k
			delete(it.Fields, "key")
		}
		items = append(items, it)
	}
	return items
}

// IngestResponse reports the snapshot produced by an ingest.
type IngestResponse struct {
	Section string   `json:"section"`
	Version uint64   `json:"version"`
	Codes   []string `json:"codes"`
}

// CommandRequest is the body of POST /api/command.
type CommandRequest struct {
	Line string `json:"line"`
}

// CodeEntry is one row of GET /api/codes.
type CodeEntry struct {
	Code      string    `json:"code"`
	Category  string    `json:"category"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
	// Present reports whether the item is in the current snapshot.
	Present bool `json:"present"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string    `json:"status"`
	PID         int       `json:"pid"`
	Version     uint64    `json:"version"`
	Subscribers int       `json:"subscribers"`
	StartedAt   time.Time `json:"started_at"`
	Uptime      string    `json:"uptime"`
}

// AckMessage is sent by websocket clients to report the last version they
// processed.
type AckMessage struct {
	Type    string `json:"type"`
	Version uint64 `json:"version"`
}

// VerbInfo describes one command verb for GET /api/verbs.
type VerbInfo struct {
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases,omitempty"`
	Code        string   `json:"code"`
	Description string   `json:"description,omitempty"`
}

// ErrorResponse is the JSON body of every non-2xx API response.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}
