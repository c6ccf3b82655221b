package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"

	"github.com/grovetools/pulse/errors"
	"github.com/grovetools/pulse/internal/daemon/registry"
	"github.com/grovetools/pulse/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	versions []uint64
}

func (r *recorder) Publish(snap *models.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.versions = append(r.versions, snap.Version)
}

func (r *recorder) seen() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint64(nil), r.versions...)
}

func newStore(t *testing.T) (*Store, *registry.MemoryTable, *recorder) {
	t.Helper()
	tbl := registry.NewMemoryTable()
	reg, err := registry.Open(context.Background(), tbl)
	require.NoError(t, err)
	st := New(reg)
	rec := &recorder{}
	st.SetPublisher(rec)
	return st, tbl, rec
}

func priority(title string) models.Item {
	return models.Item{Fields: map[string]any{"title": title}}
}

func TestNewStoreStartsEmpty(t *testing.T) {
	st, _, _ := newStore(t)
	snap := st.Current()
	assert.Equal(t, uint64(0), snap.Version)
	assert.Empty(t, snap.Priorities)
	assert.NotNil(t, snap.Calendar)
}

func TestReplaceSectionAssignsCodesAndBumpsVersion(t *testing.T) {
	ctx := context.Background()
	st, _, rec := newStore(t)

	v, err := st.ReplaceSection(ctx, models.SectionPriorities, []models.Item{priority("Ship it"), priority("Review")})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	snap := st.Current()
	require.Len(t, snap.Priorities, 2)
	assert.Equal(t, "P1", snap.Priorities[0].Code.String())
	assert.Equal(t, "P2", snap.Priorities[1].Code.String())
	assert.Equal(t, models.CategoryPriority, snap.Priorities[1].Category)
	assert.Equal(t, "review", snap.Priorities[1].Key)

	v, err = st.ReplaceSection(ctx, models.SectionPriorities, []models.Item{priority("Review"), priority("New")})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v)
	assert.Equal(t, "P2", st.Current().Priorities[0].Code.String())
	assert.Equal(t, "P3", st.Current().Priorities[1].Code.String())

	assert.Equal(t, []uint64{1, 2}, rec.seen())
}

func TestReplaceSectionCodesStayUniqueWithSuffixedKeys(t *testing.T) {
	st, _, _ := newStore(t)
	_, err := st.ReplaceSection(context.Background(), models.SectionPriorities, []models.Item{
		priority("X"), priority("X"), priority("x#2"),
	})
	require.NoError(t, err)

	items := st.Current().Priorities
	require.Len(t, items, 3)
	codes := make(map[string]bool)
	for _, it := range items {
		codes[it.Code.String()] = true
		got, err := st.Lookup(it.Code)
		require.NoError(t, err)
		assert.Equal(t, it.Key, got.Key)
	}
	assert.Len(t, codes, 3)
}

func TestReplaceSectionKeepsOtherSections(t *testing.T) {
	ctx := context.Background()
	st, _, _ := newStore(t)

	_, err := st.ReplaceSection(ctx, models.SectionCommitments, []models.Item{
		{Fields: map[string]any{"title": "Report", "owner": "ana", "due": "2026-10-20"}},
	})
	require.NoError(t, err)
	_, err = st.SetSummary(ctx, models.Summary{Text: "busy day"})
	require.NoError(t, err)
	_, err = st.ReplaceSection(ctx, models.SectionCalendar, []models.Item{
		{Fields: map[string]any{"title": "Standup", "start": "2026-10-16T09:00:00Z"}},
	})
	require.NoError(t, err)

	snap := st.Current()
	assert.Len(t, snap.Commitments, 1)
	assert.Len(t, snap.Calendar, 1)
	assert.Equal(t, "busy day", snap.Summary.Text)
	assert.Equal(t, uint64(3), snap.Version)
}

func TestPublishedSnapshotsAreNotMutated(t *testing.T) {
	ctx := context.Background()
	st, _, _ := newStore(t)

	input := []models.Item{priority("First")}
	_, err := st.ReplaceSection(ctx, models.SectionPriorities, input)
	require.NoError(t, err)
	before := st.Current()

	input[0].Fields["title"] = "changed by caller"
	assert.Equal(t, "First", before.Priorities[0].Title())

	_, err = st.ApplyItemUpdate(ctx, before.Priorities[0].Code, func(item *models.Item) error {
		item.Set("status", "done")
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), before.Version)
	assert.Empty(t, before.Priorities[0].Field("status"))
	assert.Equal(t, "done", st.Current().Priorities[0].Field("status"))
	assert.Equal(t, uint64(2), st.Current().Version)
}

func TestReplaceSectionErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("non item section", func(t *testing.T) {
		st, _, rec := newStore(t)
		_, err := st.ReplaceSection(ctx, models.SectionSummary, nil)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidSection))
		assert.Empty(t, rec.seen())
	})

	t.Run("item without key", func(t *testing.T) {
		st, _, rec := newStore(t)
		_, err := st.ReplaceSection(ctx, models.SectionPriorities, []models.Item{{Fields: map[string]any{}}})
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
		assert.Empty(t, rec.seen())
	})

	t.Run("persistence failure", func(t *testing.T) {
		st, tbl, rec := newStore(t)
		tbl.FailWith(stderrors.New("disk full"))
		_, err := st.ReplaceSection(ctx, models.SectionPriorities, []models.Item{priority("x")})
		assert.True(t, errors.Is(err, errors.ErrCodePersistence))
		assert.Equal(t, uint64(0), st.Version())
		assert.Empty(t, rec.seen())
	})
}

func TestApplyItemUpdate(t *testing.T) {
	ctx := context.Background()
	st, _, _ := newStore(t)
	_, err := st.ReplaceSection(ctx, models.SectionPriorities, []models.Item{priority("a"), priority("b")})
	require.NoError(t, err)

	t.Run("identity fields are restored", func(t *testing.T) {
		_, err := st.ApplyItemUpdate(ctx, models.NewCode(models.CategoryPriority, 2), func(item *models.Item) error {
			item.Key = "hijack"
			item.Code = models.NewCode(models.CategoryPriority, 99)
			item.Set("status", "done")
			return nil
		})
		require.NoError(t, err)
		got, err := st.Lookup(models.NewCode(models.CategoryPriority, 2))
		require.NoError(t, err)
		assert.Equal(t, "b", got.Key)
		assert.Equal(t, "P2", got.Code.String())
		assert.Equal(t, "done", got.Field("status"))
	})

	t.Run("mutator error leaves version", func(t *testing.T) {
		before := st.Version()
		_, err := st.ApplyItemUpdate(ctx, models.NewCode(models.CategoryPriority, 1), func(item *models.Item) error {
			item.Set("status", "broken")
			return fmt.Errorf("nope")
		})
		require.Error(t, err)
		assert.Equal(t, before, st.Version())
		got, err := st.Lookup(models.NewCode(models.CategoryPriority, 1))
		require.NoError(t, err)
		assert.Empty(t, got.Field("status"))
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := st.ApplyItemUpdate(ctx, models.NewCode(models.CategoryPriority, 42), func(*models.Item) error { return nil })
		assert.True(t, errors.Is(err, errors.ErrCodeCodeNotFound))
	})

	t.Run("item gone from snapshot", func(t *testing.T) {
		_, err := st.ReplaceSection(ctx, models.SectionPriorities, []models.Item{priority("b")})
		require.NoError(t, err)
		_, err = st.ApplyItemUpdate(ctx, models.NewCode(models.CategoryPriority, 1), func(*models.Item) error { return nil })
		assert.True(t, errors.Is(err, errors.ErrCodeItemNotFound))

		_, err = st.Lookup(models.NewCode(models.CategoryPriority, 1))
		assert.True(t, errors.Is(err, errors.ErrCodeItemNotFound))
	})
}

func TestEditItemReturnsCommittedItem(t *testing.T) {
	ctx := context.Background()
	st, _, _ := newStore(t)
	_, err := st.ReplaceSection(ctx, models.SectionPriorities, []models.Item{priority("a")})
	require.NoError(t, err)
	code := models.NewCode(models.CategoryPriority, 1)

	item, version, err := st.EditItem(ctx, code, func(it *models.Item) error {
		it.Set("status", "done")
		it.Key = "hijack"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, st.Version(), version)
	assert.Equal(t, "a", item.Key)
	assert.Equal(t, "P1", item.Code.String())

	_, err = st.ApplyItemUpdate(ctx, code, func(it *models.Item) error {
		it.Set("status", "reopened")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", item.Field("status"))
}

func TestUpdateCollectorStatusMerges(t *testing.T) {
	ctx := context.Background()
	st, _, _ := newStore(t)

	_, err := st.UpdateCollectorStatus(ctx, models.CollectorStatus{Name: "inbox", Items: 3})
	require.NoError(t, err)
	_, err = st.UpdateCollectorStatus(ctx, models.CollectorStatus{Name: "feed", Error: "boom"})
	require.NoError(t, err)
	_, err = st.SetStatus(ctx, models.Status{Message: "ok", Collectors: st.Current().Status.Collectors})
	require.NoError(t, err)

	status := st.Current().Status
	assert.Equal(t, "ok", status.Message)
	assert.Len(t, status.Collectors, 2)
	assert.Equal(t, 3, status.Collectors["inbox"].Items)

	_, err = st.UpdateCollectorStatus(ctx, models.CollectorStatus{})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestConcurrentWritesPublishInOrder(t *testing.T) {
	ctx := context.Background()
	st, _, rec := newStore(t)

	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := st.SetSummary(ctx, models.Summary{Text: fmt.Sprintf("%d-%d", w, i)}); err != nil {
					t.Errorf("set summary: %v", err)
				}
				_ = st.Current().Version
			}
		}(w)
	}
	wg.Wait()

	seen := rec.seen()
	require.Len(t, seen, writers*perWriter)
	for i, v := range seen {
		assert.Equal(t, uint64(i+1), v)
	}
}
