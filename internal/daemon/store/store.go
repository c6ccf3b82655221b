package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/grovetools/pulse/errors"
	"github.com/grovetools/pulse/pkg/models"
	"github.com/sirupsen/logrus"
)

// Store keeps the current snapshot behind an atomic pointer. Reads never
// block; writes are serialized by mu and each accepted write swaps in a new
// snapshot whose version is exactly one higher.
type Store struct {
	mu        sync.Mutex
	current   atomic.Pointer[models.Snapshot]
	codes     Assigner
	publisher Publisher
	logger    *logrus.Entry
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock overrides the snapshot timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a Store holding the empty version-zero snapshot.
func New(codes Assigner, opts ...Option) *Store {
	s := &Store{
		codes:  codes,
		logger: logrus.NewEntry(logrus.StandardLogger()),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(models.Empty())
	return s
}

// SetPublisher wires the broadcast target. It must be called before the
// first write that should be observed.
func (s *Store) SetPublisher(p Publisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publisher = p
}

// Current returns the latest published snapshot. The result must be treated
// as read-only.
func (s *Store) Current() *models.Snapshot {
	return s.current.Load()
}

// Version returns the version of the current snapshot.
func (s *Store) Version() uint64 {
	return s.current.Load().Version
}

// ReplaceSection replaces the items of one item section. Every item gets a
// natural key and a code before the swap; if any code cannot be assigned the
// write is abandoned and nothing is published.
func (s *Store) ReplaceSection(ctx context.Context, section models.Section, items []models.Item) (uint64, error) {
	category, ok := section.Category()
	if !ok {
		return 0, errors.InvalidSection(string(section))
	}

	next := models.CloneItems(items)
	if next == nil {
		next = []models.Item{}
	}
	for i := range next {
		next[i].Category = category
		next[i].Code = models.Code{}
	}
	if err := models.AssignKeys(category, next); err != nil {
		return 0, err
	}
	for i := range next {
		code, err := s.codes.Assign(ctx, category, next[i].Key)
		if err != nil {
			return 0, err
		}
		next[i].Code = code
	}

	return s.commit(UpdateSection, func(snap *models.Snapshot) error {
		snap.WithItems(section, next)
		return nil
	})
}

// ApplyItemUpdate runs mutate against a copy of the item identified by code
// and publishes the result.
func (s *Store) ApplyItemUpdate(ctx context.Context, code models.Code, mutate Mutator) (uint64, error) {
	_, version, err := s.EditItem(ctx, code, mutate)
	return version, err
}

// EditItem is ApplyItemUpdate that also returns the item as committed in
// that version, unaffected by later writes.
func (s *Store) EditItem(ctx context.Context, code models.Code, mutate Mutator) (models.Item, uint64, error) {
	key, err := s.codes.Resolve(code)
	if err != nil {
		return models.Item{}, 0, err
	}
	if err := ctx.Err(); err != nil {
		return models.Item{}, 0, err
	}

	var committed models.Item
	version, err := s.commit(UpdateItem, func(snap *models.Snapshot) error {
		section := code.Category.Section()
		current := snap.Items(section)
		item, idx, ok := snap.FindByKey(code.Category, key)
		if !ok {
			return errors.ItemNotFound(code.String(), key)
		}

		edited := item.Clone()
		if err := mutate(&edited); err != nil {
			return err
		}
		edited.Code = item.Code
		edited.Category = item.Category
		edited.Key = item.Key

		items := make([]models.Item, len(current))
		copy(items, current)
		items[idx] = edited
		snap.WithItems(section, items)
		committed = edited.Clone()
		return nil
	})
	if err != nil {
		return models.Item{}, 0, err
	}
	return committed, version, nil
}

// SetSummary replaces the active summary.
func (s *Store) SetSummary(ctx context.Context, summary models.Summary) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	summary = summary.Clone()
	if summary.UpdatedAt.IsZero() {
		summary.UpdatedAt = s.now().UTC()
	}
	return s.commit(UpdateSummary, func(snap *models.Snapshot) error {
		snap.Summary = summary
		return nil
	})
}

// SetStatus replaces the system status section.
func (s *Store) SetStatus(ctx context.Context, status models.Status) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	status = status.Clone()
	return s.commit(UpdateStatus, func(snap *models.Snapshot) error {
		snap.Status = status
		return nil
	})
}

// UpdateCollectorStatus records the outcome of one collector run in the
// status section, keeping the other collectors' entries.
func (s *Store) UpdateCollectorStatus(ctx context.Context, cs models.CollectorStatus) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if cs.Name == "" {
		return 0, errors.New(errors.ErrCodeInvalidInput, "collector name is required")
	}
	return s.commit(UpdateCollector, func(snap *models.Snapshot) error {
		status := snap.Status.Clone()
		if status.Collectors == nil {
			status.Collectors = make(map[string]models.CollectorStatus)
		}
		status.Collectors[cs.Name] = cs
		snap.Status = status
		return nil
	})
}

// Lookup returns the current item for code. It reports CODE_NOT_FOUND when
// the code was never minted and ITEM_NOT_FOUND when the item is no longer in
// the snapshot.
func (s *Store) Lookup(code models.Code) (models.Item, error) {
	key, err := s.codes.Resolve(code)
	if err != nil {
		return models.Item{}, err
	}
	item, _, ok := s.Current().FindByKey(code.Category, key)
	if !ok {
		return models.Item{}, errors.ItemNotFound(code.String(), key)
	}
	return item.Clone(), nil
}

// commit derives the next snapshot from the current one, lets apply edit it,
// swaps it in and publishes it, all under the write lock.
func (s *Store) commit(kind UpdateType, apply func(*models.Snapshot) error) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.Load().Derive(s.now().UTC())
	if err := apply(next); err != nil {
		return 0, err
	}
	s.current.Store(next)

	s.logger.WithFields(logrus.Fields{
		"update":  kind,
		"version": next.Version,
	}).Debug("Applied update")

	if s.publisher != nil {
		s.publisher.Publish(next)
	}
	return next.Version, nil
}
