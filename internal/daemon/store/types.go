// Package store holds the daemon's current operational snapshot and is the
// only write path for it.
package store

import (
	"context"

	"github.com/grovetools/pulse/pkg/models"
)

// Assigner mints and resolves item codes. *registry.Registry satisfies it.
type Assigner interface {
	Assign(ctx context.Context, c models.Category, key string) (models.Code, error)
	Resolve(code models.Code) (string, error)
}

// Publisher receives every accepted snapshot, in version order.
type Publisher interface {
	Publish(snap *models.Snapshot)
}

// Mutator edits a private copy of one item. Changes to Code, Category or Key
// are discarded. Returning an error aborts the write.
type Mutator func(item *models.Item) error

// UpdateType names the kind of write that produced a snapshot. It is logged
// with every accepted write.
type UpdateType string

const (
	UpdateSection   UpdateType = "section"
	UpdateItem      UpdateType = "item"
	UpdateSummary   UpdateType = "summary"
	UpdateStatus    UpdateType = "status"
	UpdateCollector UpdateType = "collector"
)
