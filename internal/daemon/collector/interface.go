// Package collector provides the background producers that feed item batches
// into the daemon.
package collector

import (
	"context"

	"github.com/grovetools/pulse/pkg/models"
)

// Batch is a full replacement for one item section.
type Batch struct {
	Section models.Section
	Items   []models.Item
	// Source names the producer, e.g. "inbox:priorities.yml".
	Source string
	// Err reports a source that could not be read or decoded. A batch with
	// Err set carries no items and changes no section.
	Err error
}

// Collector is a background worker that reads an external source and emits
// batches.
type Collector interface {
	// Name returns the collector's name for logging and status.
	Name() string

	// Run blocks until ctx is canceled, sending batches on updates.
	Run(ctx context.Context, updates chan<- Batch) error
}

// Refresher is implemented by collectors that can rescan on demand.
type Refresher interface {
	Refresh()
}

// send delivers b unless ctx is canceled first.
func send(ctx context.Context, updates chan<- Batch, b Batch) bool {
	select {
	case updates <- b:
		return true
	case <-ctx.Done():
		return false
	}
}
