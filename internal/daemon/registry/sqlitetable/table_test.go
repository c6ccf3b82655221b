package sqlitetable

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/pulse/internal/daemon/registry"
	"github.com/grovetools/pulse/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableAppendAndLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "codes.db")

	tbl, err := Open(ctx, path)
	require.NoError(t, err)

	rows, err := tbl.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)

	at := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	require.NoError(t, tbl.Append(ctx, registry.Entry{Category: models.CategoryPriority, Seq: 1, Key: "a", CreatedAt: at}))
	require.NoError(t, tbl.Append(ctx, registry.Entry{Category: models.CategoryPriority, Seq: 2, Key: "b", CreatedAt: at}))

	err = tbl.Append(ctx, registry.Entry{Category: models.CategoryPriority, Seq: 3, Key: "a", CreatedAt: at})
	assert.True(t, errors.Is(err, ErrDuplicate))
	require.NoError(t, tbl.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	rows, err = reopened.Load(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "P1", rows[0].Code().String())
	assert.Equal(t, "b", rows[1].Key)
	assert.True(t, rows[0].CreatedAt.Equal(at))
}

func TestRegistryRestartOverSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "codes.db")

	tbl, err := Open(ctx, path)
	require.NoError(t, err)
	reg, err := registry.Open(ctx, tbl)
	require.NoError(t, err)

	first, err := reg.Assign(ctx, models.CategoryPriority, "k1")
	require.NoError(t, err)
	_, err = reg.Assign(ctx, models.CategoryPriority, "k2")
	require.NoError(t, err)
	require.NoError(t, reg.Close())

	tbl, err = Open(ctx, path)
	require.NoError(t, err)
	reg, err = registry.Open(ctx, tbl)
	require.NoError(t, err)
	defer reg.Close()

	again, err := reg.Assign(ctx, models.CategoryPriority, "k1")
	require.NoError(t, err)
	assert.Equal(t, "P1", first.String())
	assert.Equal(t, first, again)

	next, err := reg.Assign(ctx, models.CategoryPriority, "k3")
	require.NoError(t, err)
	assert.Equal(t, "P3", next.String())
}
