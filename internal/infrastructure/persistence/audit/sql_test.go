package audit

import (
	"context"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainaudit "github.com/clarident/clarident-go/internal/domain/audit"
	"github.com/clarident/clarident-go/internal/domain/scope"
	"github.com/clarident/clarident-go/internal/infrastructure/persistence/database"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := database.NewConnection("sqlite3", t.TempDir()+"/audit.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLStore(db)
	require.NoError(t, err)
	return store
}

func entryAt(id, principalID string, at time.Time) domainaudit.ScopeSwitch {
	return domainaudit.ScopeSwitch{
		ID:            id,
		PrincipalID:   principalID,
		From:          scope.All(),
		To:            scope.Single("clinic-b"),
		CorrelationID: "req-" + id,
		CreatedAt:     at,
	}
}

func TestAppendAndQueryRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, entryAt("01A", "admin-1", at)))

	entries, err := store.Query(ctx, domainaudit.Filter{PrincipalID: "admin-1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, "01A", got.ID)
	assert.Equal(t, scope.All(), got.From)
	assert.Equal(t, scope.Single("clinic-b"), got.To)
	assert.Equal(t, "req-01A", got.CorrelationID)
	assert.Equal(t, at, got.CreatedAt)
}

func TestQueryFiltersByPrincipalAndTime(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, entryAt("01A", "admin-1", base)))
	require.NoError(t, store.Append(ctx, entryAt("01B", "admin-1", base.Add(time.Hour))))
	require.NoError(t, store.Append(ctx, entryAt("01C", "frontdesk-1", base.Add(2*time.Hour))))

	entries, err := store.Query(ctx, domainaudit.Filter{PrincipalID: "admin-1"})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = store.Query(ctx, domainaudit.Filter{
		From: base.Add(30 * time.Minute),
		To:   base.Add(90 * time.Minute),
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "01B", entries[0].ID)
}

func TestQueryNewestFirstWithLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"01A", "01B", "01C"} {
		require.NoError(t, store.Append(ctx, entryAt(id, "admin-1", base.Add(time.Duration(i)*time.Hour))))
	}

	entries, err := store.Query(ctx, domainaudit.Filter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "01C", entries[0].ID)
	assert.Equal(t, "01B", entries[1].ID)
}
