// Package daemon provides a client for the pulse daemon's HTTP API over its
// Unix socket. All state lives in the daemon process, so there is no
// in-process fallback: when the daemon is down, New reports
// DAEMON_NOT_RUNNING and callers tell the user to start it.
package daemon

import (
	"context"

	"github.com/grovetools/pulse/internal/daemon/command"
	"github.com/grovetools/pulse/internal/daemon/server"
	"github.com/grovetools/pulse/pkg/models"
)

// Client defines the interface for interacting with the pulse daemon.
type Client interface {
	// State returns the current snapshot.
	State(ctx context.Context) (*models.Snapshot, error)

	// Items returns one item section and the snapshot version it came from.
	Items(ctx context.Context, section models.Section) ([]models.Item, uint64, error)

	// Command runs a piped command line and returns one outcome per segment.
	Command(ctx context.Context, line string) (*command.Report, error)

	// Ingest replaces one item section with the given records.
	Ingest(ctx context.Context, req models.IngestRequest) (*models.IngestResponse, error)

	// Codes lists the persisted code table. An empty category lists all.
	Codes(ctx context.Context, category string) ([]models.CodeEntry, error)

	// Verbs lists the registered command verbs.
	Verbs(ctx context.Context) ([]models.VerbInfo, error)

	// Config returns the configuration the daemon is running with.
	Config(ctx context.Context) (*server.RunningConfig, error)

	// Refresh asks every collector to rescan its source.
	Refresh(ctx context.Context) error

	// Health returns daemon liveness information.
	Health(ctx context.Context) (*models.HealthResponse, error)

	// StreamState subscribes to snapshots over Server-Sent Events.
	// The channel is closed when the context is cancelled or the
	// connection is lost.
	StreamState(ctx context.Context) (<-chan StateUpdate, error)

	// WatchState subscribes over a websocket and acknowledges each snapshot
	// after it has been handed to the caller.
	WatchState(ctx context.Context) (<-chan StateUpdate, error)

	// IsRunning returns true if the daemon is available and responding.
	IsRunning() bool

	// Close cleans up any resources used by the client.
	Close() error
}

// StateUpdate is one event pushed from the daemon to a subscriber.
type StateUpdate struct {
	Snapshot *models.Snapshot `json:"snapshot,omitempty"`
	// Dropped is set on the final update when the daemon cut the
	// subscription because the client fell behind. Reconnect to resync.
	Dropped bool `json:"dropped,omitempty"`
}
