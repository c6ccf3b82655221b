package command

import (
	"context"
	"fmt"
	"testing"

	"github.com/grovetools/pulse/errors"
	"github.com/grovetools/pulse/internal/daemon/registry"
	"github.com/grovetools/pulse/internal/daemon/store"
	"github.com/grovetools/pulse/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	reg   *registry.Registry
	store *store.Store
	verbs *Registry
	calls []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	reg, err := registry.Open(ctx, registry.NewMemoryTable())
	require.NoError(t, err)
	st := store.New(reg)

	_, err = st.ReplaceSection(ctx, models.SectionCalendar, []models.Item{
		{Fields: map[string]any{"title": "Standup", "start": "2026-10-16T09:00:00Z"}},
		{Fields: map[string]any{"title": "Lunch", "start": "2026-10-16T12:00:00Z"}},
		{Fields: map[string]any{"title": "Review", "start": "2026-10-16T15:00:00Z"}},
	})
	require.NoError(t, err)
	_, err = st.ReplaceSection(ctx, models.SectionPriorities, []models.Item{
		{Fields: map[string]any{"title": "Ship release"}},
	})
	require.NoError(t, err)

	f := &fixture{reg: reg, store: st, verbs: NewRegistry()}
	record := func(ctx context.Context, cmd Resolved) (Result, error) {
		f.calls = append(f.calls, fmt.Sprintf("%s %s", cmd.Verb, cmd.Code))
		return Result{Message: "ok"}, nil
	}
	require.NoError(t, f.verbs.Register("approve", HandlerFunc(func(ctx context.Context, cmd Resolved) (Result, error) {
		f.calls = append(f.calls, "approve "+cmd.Code)
		v, err := st.ApplyItemUpdate(ctx, cmd.Target, func(it *models.Item) error {
			it.Set("status", "done")
			return nil
		})
		if err != nil {
			return Result{}, err
		}
		return Result{Message: "approved", Version: v}, nil
	}), RequireCode()))
	require.NoError(t, f.verbs.Register("refresh", HandlerFunc(record)))
	require.NoError(t, f.verbs.Register("brief", HandlerFunc(record)))
	require.NoError(t, f.verbs.Register("fail", HandlerFunc(func(context.Context, Resolved) (Result, error) {
		return Result{}, fmt.Errorf("handler exploded")
	})))
	return f
}

func (f *fixture) runner(policy Policy) *Runner {
	return NewRunner(f.verbs, f.reg, f.store, "", policy, nil)
}

func kinds(outcomes []Outcome) []Kind {
	out := make([]Kind, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.Kind
	}
	return out
}

func TestRunUnresolvedCodeDoesNotStopPipe(t *testing.T) {
	f := newFixture(t)
	outcomes := f.runner(PolicyContinue).Run(context.Background(), "approve P7 | refresh | brief C3")

	require.Len(t, outcomes, 3)
	assert.Equal(t, []Kind{KindUnresolvedCode, KindOK, KindOK}, kinds(outcomes))
	assert.Equal(t, errors.ErrCodeCodeNotFound, outcomes[0].ErrorCode)
	assert.Equal(t, "P7", outcomes[0].Code)
	assert.Equal(t, []string{"refresh ", "brief C3"}, f.calls)

	require.NotNil(t, outcomes[2].Item)
	assert.Equal(t, "Review", outcomes[2].Item.Title())
	assert.True(t, Failed(outcomes))
}

func TestRunSuccessfulPipe(t *testing.T) {
	f := newFixture(t)
	outcomes := f.runner(PolicyContinue).Run(context.Background(), "approve P1 | brief P1")

	assert.Equal(t, []Kind{KindOK, KindOK}, kinds(outcomes))
	assert.Equal(t, uint64(3), outcomes[0].Version)
	assert.Equal(t, "done", outcomes[1].Item.Field("status"))
	assert.False(t, Failed(outcomes))
}

func TestRunFailFast(t *testing.T) {
	t.Run("parse error runs nothing", func(t *testing.T) {
		f := newFixture(t)
		outcomes := f.runner(PolicyFailFast).Run(context.Background(), "brief C1 | bogus | refresh")

		assert.Equal(t, []Kind{KindSkipped, KindParseError, KindSkipped}, kinds(outcomes))
		assert.Empty(t, f.calls)
	})

	t.Run("first failure stops later segments", func(t *testing.T) {
		f := newFixture(t)
		outcomes := f.runner(PolicyFailFast).Run(context.Background(), "approve P1 | approve P7 | brief C3")

		assert.Equal(t, []Kind{KindOK, KindUnresolvedCode, KindSkipped}, kinds(outcomes))
		assert.Equal(t, []string{"approve P1"}, f.calls)
		// The first segment is not undone.
		item, err := f.store.Lookup(models.NewCode(models.CategoryPriority, 1))
		require.NoError(t, err)
		assert.Equal(t, "done", item.Field("status"))
	})
}

func TestRunContinueReportsParseErrorsInPlace(t *testing.T) {
	f := newFixture(t)
	outcomes := f.runner(PolicyContinue).Run(context.Background(), "brief C1 | bogus | fail")

	assert.Equal(t, []Kind{KindOK, KindParseError, KindHandlerError}, kinds(outcomes))
	assert.Equal(t, 2, outcomes[1].Index)
	assert.Equal(t, "bogus", outcomes[1].Segment)
	assert.Equal(t, errors.ErrCodeHandlerFailed, outcomes[2].ErrorCode)
	assert.Equal(t, "handler exploded", outcomes[2].Error)
}

func TestRunItemNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// C2 ages out of the calendar but stays minted.
	_, err := f.store.ReplaceSection(ctx, models.SectionCalendar, []models.Item{
		{Fields: map[string]any{"title": "Standup", "start": "2026-10-16T09:00:00Z"}},
	})
	require.NoError(t, err)

	outcomes := f.runner(PolicyContinue).Run(ctx, "brief C2 | brief C9")
	assert.Equal(t, []Kind{KindItemNotFound, KindUnresolvedCode}, kinds(outcomes))
	assert.Equal(t, errors.ErrCodeItemNotFound, outcomes[0].ErrorCode)
}

func TestResolverErrors(t *testing.T) {
	f := newFixture(t)
	r := Resolver{Codes: f.reg, Items: f.store}

	res, err := r.Resolve(Command{Verb: "refresh"})
	require.NoError(t, err)
	assert.Nil(t, res.Item)
	assert.True(t, res.Target.IsZero())

	_, err = r.Resolve(Command{Verb: "brief", Code: "Z1"})
	var unresolved *UnresolvedCodeError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "Z1", unresolved.Code)
	assert.True(t, errors.Is(err, errors.ErrCodeCodeNotFound))

	_, err = r.Resolve(Command{Verb: "brief", Code: "P0"})
	require.ErrorAs(t, err, &unresolved)

	res, err = r.Resolve(Command{Verb: "brief", Code: "C2"})
	require.NoError(t, err)
	assert.Equal(t, "Lunch", res.Item.Title())

	// The resolved item is a private copy.
	res.Item.Set("title", "changed")
	again, err := r.Resolve(Command{Verb: "brief", Code: "C2"})
	require.NoError(t, err)
	assert.Equal(t, "Lunch", again.Item.Title())
}
