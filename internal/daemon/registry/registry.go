// Package registry assigns short stable codes to items and resolves codes
// back to the natural key of the item they were minted for.
package registry

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grovetools/pulse/errors"
	"github.com/grovetools/pulse/pkg/models"
	"github.com/sirupsen/logrus"
)

// index is the in-memory view of one category. mu serializes Assign for the
// category and guards both maps and next.
type index struct {
	mu    sync.RWMutex
	next  int
	byKey map[string]int
	bySeq map[int]Entry
}

// Registry maps (category, natural key) to codes. Assignment is serialized per
// category; categories do not block each other.
type Registry struct {
	table   Table
	logger  *logrus.Entry
	now     func() time.Time
	indexes map[models.Category]*index

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithClock overrides the timestamp source for new rows.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// Open builds a registry over table and loads every persisted row before
// returning, so numbering continues after the highest persisted sequence.
func Open(ctx context.Context, table Table, opts ...Option) (*Registry, error) {
	r := &Registry{
		table:   table,
		logger:  logrus.NewEntry(logrus.StandardLogger()),
		now:     time.Now,
		indexes: make(map[models.Category]*index, len(models.Categories)),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, c := range models.Categories {
		r.indexes[c] = &index{
			next:  1,
			byKey: make(map[string]int),
			bySeq: make(map[int]Entry),
		}
	}
	if err := r.load(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) load(ctx context.Context) error {
	rows, err := r.table.Load(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodePersistence, "failed to load code table")
	}

	skipped := 0
	for _, row := range rows {
		idx, ok := r.indexes[row.Category]
		if !ok || row.Seq < 1 {
			skipped++
			continue
		}
		// Skipped rows still hold their seq; it is never minted again.
		if row.Seq >= idx.next {
			idx.next = row.Seq + 1
		}
		if row.Key == "" {
			skipped++
			continue
		}
		if _, dup := idx.bySeq[row.Seq]; dup {
			skipped++
			continue
		}
		if _, dup := idx.byKey[row.Key]; dup {
			skipped++
			continue
		}
		idx.bySeq[row.Seq] = row
		idx.byKey[row.Key] = row.Seq
	}

	if skipped > 0 {
		r.logger.WithField("skipped", skipped).Warn("Ignored invalid rows in code table")
	}
	r.logger.WithField("codes", len(rows)-skipped).Debug("Loaded code table")
	return nil
}

// Assign returns the code for key in category c, minting and persisting a new
// one when the key has never been seen. A persistence failure leaves the
// registry unchanged and is returned as PERSISTENCE_FAILURE.
func (r *Registry) Assign(ctx context.Context, c models.Category, key string) (models.Code, error) {
	idx, ok := r.indexes[c]
	if !ok {
		return models.Code{}, errors.Newf(errors.ErrCodeInvalidInput, "unknown category '%s'", c)
	}
	if strings.TrimSpace(key) == "" {
		return models.Code{}, errors.New(errors.ErrCodeInvalidInput, "natural key is required")
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if seq, ok := idx.byKey[key]; ok {
		return models.NewCode(c, seq), nil
	}

	entry := Entry{
		Category:  c,
		Seq:       idx.next,
		Key:       key,
		CreatedAt: r.now().UTC(),
	}
	if err := r.table.Append(ctx, entry); err != nil {
		return models.Code{}, errors.PersistenceFailure(entry.Code().String(), err)
	}

	idx.bySeq[entry.Seq] = entry
	idx.byKey[key] = entry.Seq
	idx.next++

	r.logger.WithFields(logrus.Fields{
		"code": entry.Code().String(),
		"key":  key,
	}).Debug("Minted code")
	return entry.Code(), nil
}

// Resolve returns the natural key a code was minted for. Codes that were never
// minted, or whose letter is not a registered category, are CODE_NOT_FOUND.
func (r *Registry) Resolve(code models.Code) (string, error) {
	idx, ok := r.indexes[code.Category]
	if !ok {
		return "", errors.CodeNotFound(code.String())
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	entry, ok := idx.bySeq[code.Seq]
	if !ok {
		return "", errors.CodeNotFound(code.String())
	}
	return entry.Key, nil
}

// ResolveString parses text as a code and resolves it.
func (r *Registry) ResolveString(text string) (models.Code, string, error) {
	code, err := models.ParseCode(text)
	if err != nil {
		return models.Code{}, "", errors.Wrap(err, errors.ErrCodeCodeNotFound, "cannot resolve code").
			WithDetail("code", text)
	}
	key, err := r.Resolve(code)
	return code, key, err
}

// Lookup returns the existing code for a key without minting one.
func (r *Registry) Lookup(c models.Category, key string) (models.Code, bool) {
	idx, ok := r.indexes[c]
	if !ok {
		return models.Code{}, false
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	seq, ok := idx.byKey[key]
	if !ok {
		return models.Code{}, false
	}
	return models.NewCode(c, seq), true
}

// Entries returns every minted code ordered by category then sequence.
func (r *Registry) Entries() []Entry {
	var out []Entry
	for _, c := range models.Categories {
		idx := r.indexes[c]
		idx.mu.RLock()
		for _, e := range idx.bySeq {
			out = append(out, e)
		}
		idx.mu.RUnlock()
	}
	order := make(map[models.Category]int, len(models.Categories))
	for i, c := range models.Categories {
		order[c] = i
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return order[out[i].Category] < order[out[j].Category]
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// Counts returns the number of minted codes per category.
func (r *Registry) Counts() map[models.Category]int {
	out := make(map[models.Category]int, len(r.indexes))
	for c, idx := range r.indexes {
		idx.mu.RLock()
		out[c] = len(idx.bySeq)
		idx.mu.RUnlock()
	}
	return out
}

// Flush forces buffered rows to disk for tables that buffer.
func (r *Registry) Flush(ctx context.Context) error {
	if f, ok := r.table.(Flusher); ok {
		if err := f.Flush(ctx); err != nil {
			return errors.Wrap(err, errors.ErrCodePersistence, "failed to flush code table")
		}
	}
	return nil
}

// Close releases the backing table. It is safe to call more than once.
func (r *Registry) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.table.Close()
	})
	return r.closeErr
}
