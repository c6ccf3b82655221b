package actions

import (
	"context"
	"testing"
	"time"

	"github.com/grovetools/pulse/errors"
	"github.com/grovetools/pulse/internal/daemon/command"
	"github.com/grovetools/pulse/internal/daemon/registry"
	"github.com/grovetools/pulse/internal/daemon/store"
	"github.com/grovetools/pulse/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	calls int
	err   error
}

func (r *countingRefresher) Refresh(context.Context) error {
	r.calls++
	return r.err
}

var fixedNow = time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*command.Runner, *store.Store, *countingRefresher) {
	t.Helper()
	ctx := context.Background()

	reg, err := registry.Open(ctx, registry.NewMemoryTable())
	require.NoError(t, err)
	st := store.New(reg)
	_, err = st.ReplaceSection(ctx, models.SectionPriorities, []models.Item{
		{Fields: map[string]any{"title": "Ship release"}},
	})
	require.NoError(t, err)
	_, err = st.ReplaceSection(ctx, models.SectionCommitments, []models.Item{
		{Fields: map[string]any{"title": "Quarterly report", "owner": "ana", "due": "2026-10-20"}},
	})
	require.NoError(t, err)

	verbs := command.NewRegistry()
	ref := &countingRefresher{}
	require.NoError(t, Register(verbs, st, ref, WithClock(func() time.Time { return fixedNow })))
	return command.NewRunner(verbs, reg, st, "", command.PolicyContinue, nil), st, ref
}

func TestDoneAndAliases(t *testing.T) {
	runner, st, _ := setup(t)

	out := runner.Run(context.Background(), "approve P1")
	require.Len(t, out, 1)
	require.Equal(t, command.KindOK, out[0].Kind, out[0].Error)
	assert.Equal(t, "P1 marked done", out[0].Message)
	assert.Equal(t, "done", out[0].Item.Field(FieldStatus))

	item, err := st.Lookup(models.NewCode(models.CategoryPriority, 1))
	require.NoError(t, err)
	assert.Equal(t, StatusDone, item.Field(FieldStatus))
}

// racingWriter commits another edit right after each EditItem, the way a
// concurrent command would.
type racingWriter struct {
	*store.Store
}

func (w racingWriter) EditItem(ctx context.Context, code models.Code, mutate store.Mutator) (models.Item, uint64, error) {
	item, version, err := w.Store.EditItem(ctx, code, mutate)
	if err != nil {
		return item, version, err
	}
	_, err = w.Store.ApplyItemUpdate(ctx, code, func(it *models.Item) error {
		it.Set(FieldStatus, "reopened")
		return nil
	})
	return item, version, err
}

func TestOutcomeShowsCommittedItem(t *testing.T) {
	ctx := context.Background()
	reg, err := registry.Open(ctx, registry.NewMemoryTable())
	require.NoError(t, err)
	st := store.New(reg)
	_, err = st.ReplaceSection(ctx, models.SectionPriorities, []models.Item{
		{Fields: map[string]any{"title": "Ship release"}},
	})
	require.NoError(t, err)

	verbs := command.NewRegistry()
	require.NoError(t, Register(verbs, racingWriter{st}, nil))
	runner := command.NewRunner(verbs, reg, st, "", command.PolicyContinue, nil)

	out := runner.Run(ctx, "done P1")
	require.Len(t, out, 1)
	require.Equal(t, command.KindOK, out[0].Kind, out[0].Error)
	require.NotNil(t, out[0].Item)
	assert.Equal(t, StatusDone, out[0].Item.Field(FieldStatus))
	assert.Equal(t, st.Version()-1, out[0].Version)

	current, err := st.Lookup(models.NewCode(models.CategoryPriority, 1))
	require.NoError(t, err)
	assert.Equal(t, "reopened", current.Field(FieldStatus))
}

func TestSnoozeNoteStatus(t *testing.T) {
	runner, st, _ := setup(t)
	ctx := context.Background()

	out := runner.Run(ctx, "snooze M1 2d | note M1 call ana first | note M1 then send | status M1 blocked on data")
	for _, o := range out {
		require.Equal(t, command.KindOK, o.Kind, o.Error)
	}

	item, err := st.Lookup(models.NewCode(models.CategoryCommitment, 1))
	require.NoError(t, err)
	assert.Equal(t, "2026-10-18T08:00:00Z", item.Field(FieldSnoozedUntil))
	assert.Equal(t, []any{"call ana first", "then send"}, item.Fields[FieldNotes])
	assert.Equal(t, "blocked on data", item.Field(FieldStatus))

	brief := runner.Run(ctx, "show M1")
	require.Equal(t, command.KindOK, brief[0].Kind)
	assert.Equal(t, "M1 Quarterly report (ana) due 2026-10-20 [blocked on data] snoozed until 2026-10-18T08:00:00Z (2 notes)", brief[0].Message)
}

func TestHandlerInputErrors(t *testing.T) {
	runner, st, _ := setup(t)
	before := st.Version()

	out := runner.Run(context.Background(), "snooze P1 soon | note P1 | status P1")
	for _, o := range out {
		assert.Equal(t, command.KindHandlerError, o.Kind)
		assert.Equal(t, errors.ErrCodeInvalidInput, o.ErrorCode)
	}
	assert.Equal(t, before, st.Version())
}

func TestRefreshAndSummary(t *testing.T) {
	runner, st, ref := setup(t)

	out := runner.Run(context.Background(), "refresh | summary focus on P1 today")
	require.Equal(t, command.KindOK, out[0].Kind)
	require.Equal(t, command.KindOK, out[1].Kind)
	assert.Equal(t, 1, ref.calls)
	assert.Equal(t, "focus on P1 today", st.Current().Summary.Text)
	assert.Equal(t, out[1].Version, st.Version())
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"90m", 90 * time.Minute, false},
		{"1d", 24 * time.Hour, false},
		{"1h30m", 90 * time.Minute, false},
		{"", 0, true},
		{"-1h", 0, true},
		{"0d", 0, true},
		{"tomorrow", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
