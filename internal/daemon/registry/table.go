package registry

import (
	"context"
	"sync"
	"time"

	"github.com/grovetools/pulse/pkg/models"
)

// Entry is one row of the code-mapping table.
type Entry struct {
	Category  models.Category `json:"category"`
	Seq       int             `json:"seq"`
	Key       string          `json:"key"`
	CreatedAt time.Time       `json:"created_at"`
}

// Code returns the code this row minted.
func (e Entry) Code() models.Code {
	return models.NewCode(e.Category, e.Seq)
}

// Table is the durable backing store for the registry. Rows are only ever
// appended; Append must not return until the row is durable.
type Table interface {
	// Load returns every persisted row. A missing or empty table yields no rows.
	Load(ctx context.Context) ([]Entry, error)

	// Append durably records one new row.
	Append(ctx context.Context, e Entry) error

	// Close releases the backing store.
	Close() error
}

// Flusher is implemented by tables that buffer writes.
type Flusher interface {
	Flush(ctx context.Context) error
}

// MemoryTable is an in-process Table. It survives Registry.Close so tests can
// reopen a registry over the same rows to simulate a restart.
type MemoryTable struct {
	mu      sync.Mutex
	rows    []Entry
	failErr error
}

// NewMemoryTable returns a table pre-populated with rows.
func NewMemoryTable(rows ...Entry) *MemoryTable {
	return &MemoryTable{rows: append([]Entry(nil), rows...)}
}

// Load implements Table.
func (m *MemoryTable) Load(ctx context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.rows...), nil
}

// Append implements Table.
func (m *MemoryTable) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.rows = append(m.rows, e)
	return nil
}

// Close implements Table. Rows are kept.
func (m *MemoryTable) Close() error { return nil }

// FailWith makes every following Append return err until cleared with nil.
func (m *MemoryTable) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// Rows returns a copy of the persisted rows.
func (m *MemoryTable) Rows() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.rows...)
}
