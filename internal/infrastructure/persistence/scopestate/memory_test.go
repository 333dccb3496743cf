package scopestate

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarident/clarident-go/internal/domain/scope"
)

func TestCompareAndSwapInsert(t *testing.T) {
	clk := clock.NewMock()
	store := NewMemoryStore(clk)
	ctx := context.Background()

	swapped, err := store.CompareAndSwap(ctx, "p1", nil, Record{Selection: scope.All()}, time.Hour)
	require.NoError(t, err)
	assert.True(t, swapped)

	record, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, scope.All(), record.Selection)
}

func TestCompareAndSwapInsertLosesRace(t *testing.T) {
	clk := clock.NewMock()
	store := NewMemoryStore(clk)
	ctx := context.Background()

	_, err := store.CompareAndSwap(ctx, "p1", nil, Record{Selection: scope.All()}, time.Hour)
	require.NoError(t, err)

	// Second initializer expects absence and must lose.
	swapped, err := store.CompareAndSwap(ctx, "p1", nil, Record{Selection: scope.Single("clinic-a")}, time.Hour)
	require.NoError(t, err)
	assert.False(t, swapped)

	record, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, scope.All(), record.Selection)
}

func TestCompareAndSwapReplace(t *testing.T) {
	clk := clock.NewMock()
	store := NewMemoryStore(clk)
	ctx := context.Background()

	_, err := store.CompareAndSwap(ctx, "p1", nil, Record{Selection: scope.All()}, time.Hour)
	require.NoError(t, err)

	old := &Record{Selection: scope.All()}
	swapped, err := store.CompareAndSwap(ctx, "p1", old, Record{Selection: scope.Single("clinic-b")}, time.Hour)
	require.NoError(t, err)
	assert.True(t, swapped)

	// A writer still holding the superseded expectation loses.
	swapped, err = store.CompareAndSwap(ctx, "p1", old, Record{Selection: scope.Single("clinic-a")}, time.Hour)
	require.NoError(t, err)
	assert.False(t, swapped)
}

func TestRecordExpires(t *testing.T) {
	clk := clock.NewMock()
	store := NewMemoryStore(clk)
	ctx := context.Background()

	_, err := store.CompareAndSwap(ctx, "p1", nil, Record{Selection: scope.All()}, time.Hour)
	require.NoError(t, err)

	clk.Add(2 * time.Hour)

	record, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, record)

	// After expiry the slot behaves as absent for CAS purposes.
	swapped, err := store.CompareAndSwap(ctx, "p1", nil, Record{Selection: scope.Single("clinic-a")}, time.Hour)
	require.NoError(t, err)
	assert.True(t, swapped)
}

func TestDelete(t *testing.T) {
	clk := clock.NewMock()
	store := NewMemoryStore(clk)
	ctx := context.Background()

	_, err := store.CompareAndSwap(ctx, "p1", nil, Record{Selection: scope.All()}, time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "p1"))

	record, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, record)
}
