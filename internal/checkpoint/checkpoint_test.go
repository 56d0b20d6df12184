package checkpoint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Minute)
)

func TestCheckpoint_LoadAbsentDoesNotWrite(t *testing.T) {
	store := NewMemoryStore()
	cp := New(store, "genre_data", nil)

	got, err := cp.Load(context.Background())
	require.NoError(t, err)

	assert.True(t, got.Equal(MinWatermark))
	assert.Zero(t, store.Writes())
	exists, _ := store.Exists(context.Background(), "genre_data")
	assert.False(t, exists)
}

func TestCheckpoint_LoadExisting(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, "person_data", State{UpdatedAt: t1}))

	cp := New(store, "person_data", nil)
	got, err := cp.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.Equal(t1))
	assert.True(t, cp.Last().Equal(t1))
	assert.Equal(t, "person_data", cp.Key())
}

func TestCheckpoint_CommitIsMonotonic(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	cp := New(store, "film_work_data", nil)
	_, err := cp.Load(ctx)
	require.NoError(t, err)

	committed, err := cp.Commit(ctx, t1)
	require.NoError(t, err)
	assert.True(t, committed)

	// Equal value is not rewritten
	committed, err = cp.Commit(ctx, t1)
	require.NoError(t, err)
	assert.False(t, committed)

	// Regression is skipped
	committed, err = cp.Commit(ctx, t0)
	require.NoError(t, err)
	assert.False(t, committed)

	assert.Equal(t, 1, store.Writes())
	st, err := store.Get(ctx, "film_work_data")
	require.NoError(t, err)
	assert.True(t, st.UpdatedAt.Equal(t1))
	assert.True(t, cp.Last().Equal(t1))
}

func TestCheckpoint_CommitEqualInOtherZone(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	cp := New(store, "k", nil)
	_, err := cp.Commit(ctx, t1)
	require.NoError(t, err)

	committed, err := cp.Commit(ctx, t1.In(time.FixedZone("X", 5*3600)))
	require.NoError(t, err)
	assert.False(t, committed)
}

func TestCheckpoint_CommitError(t *testing.T) {
	store := newFlakyStore(1, errors.New("boom"))
	cp := New(store, "k", nil)

	committed, err := cp.Commit(context.Background(), t1)
	assert.False(t, committed)
	assert.ErrorContains(t, err, "commit checkpoint k")
	assert.True(t, cp.Last().Equal(MinWatermark), "failed commit must not advance")
}

func TestCheckpoint_LoadError(t *testing.T) {
	store := newFlakyStore(1, errors.New("boom"))
	cp := New(store, "k", nil)

	_, err := cp.Load(context.Background())
	assert.ErrorContains(t, err, "load checkpoint k")
}
