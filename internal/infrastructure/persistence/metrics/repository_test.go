package metrics

import (
	"context"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/clarident/clarident-go/internal/domain/metrics"
	"github.com/clarident/clarident-go/internal/domain/scope"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/logging"
	"github.com/clarident/clarident-go/internal/infrastructure/persistence/database"
)

func seedDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewConnection("sqlite3", t.TempDir()+"/metrics.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE appointments (
			id INTEGER PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			starts_at INTEGER NOT NULL,
			status TEXT NOT NULL,
			is_new_patient INTEGER NOT NULL DEFAULT 0,
			production_cents INTEGER NOT NULL DEFAULT 0,
			collections_cents INTEGER NOT NULL DEFAULT 0,
			rating INTEGER
		)`)
	require.NoError(t, err)

	june := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC).Unix()
	may := time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC).Unix()
	insert := `INSERT INTO appointments
		(tenant_id, starts_at, status, is_new_patient, production_cents, collections_cents, rating)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	rows := []struct {
		tenant     string
		at         int64
		status     string
		newPatient int
		prod, coll int64
		rating     any
	}{
		{"clinic-a", june, "completed", 1, 70000, 65000, 5},
		{"clinic-a", june, "completed", 0, 50000, 45000, 4},
		{"clinic-a", june, "cancelled", 0, 0, 0, nil},
		{"clinic-b", june, "completed", 1, 80000, 70000, 3},
		{"clinic-b", may, "completed", 0, 60000, 60000, 4},
	}
	for _, r := range rows {
		_, err = db.Exec(insert, r.tenant, r.at, r.status, r.newPatient, r.prod, r.coll, r.rating)
		require.NoError(t, err)
	}
	return db
}

func junePeriod() domain.Period {
	return domain.Period{Year: 2025, Month: time.June}
}

func TestScopeRowsGroupsAllTenants(t *testing.T) {
	db := seedDB(t)
	repo := NewSQLRepository(db, logging.NewTestLogger())

	rows, err := repo.ScopeRows(context.Background(), scope.All(), junePeriod())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	a := rows["clinic-a"]
	assert.Equal(t, int64(120000), a.ProductionCents)
	assert.Equal(t, int64(110000), a.CollectionsCents)
	assert.Equal(t, int64(3), a.AppointmentsTotal)
	assert.Equal(t, int64(2), a.AppointmentsCompleted)
	assert.Equal(t, int64(1), a.NewPatients)
	assert.Equal(t, int64(9), a.RatingSum)
	assert.Equal(t, int64(2), a.RatingCount)

	b := rows["clinic-b"]
	assert.Equal(t, int64(80000), b.ProductionCents)
	assert.Equal(t, int64(1), b.AppointmentsTotal)
}

func TestScopeRowsSingleTenantIsolation(t *testing.T) {
	db := seedDB(t)
	repo := NewSQLRepository(db, logging.NewTestLogger())

	rows, err := repo.ScopeRows(context.Background(), scope.Single("clinic-b"), junePeriod())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotContains(t, rows, "clinic-a")
	assert.Equal(t, int64(80000), rows["clinic-b"].ProductionCents)
}

func TestScopeRowsRespectsPeriodBounds(t *testing.T) {
	db := seedDB(t)
	repo := NewSQLRepository(db, logging.NewTestLogger())

	rows, err := repo.ScopeRows(context.Background(), scope.Single("clinic-b"), domain.Period{Year: 2025, Month: time.May})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(60000), rows["clinic-b"].ProductionCents)
}

func TestScopeRowsEmptyPeriod(t *testing.T) {
	db := seedDB(t)
	repo := NewSQLRepository(db, logging.NewTestLogger())

	rows, err := repo.ScopeRows(context.Background(), scope.All(), domain.Period{Year: 2024, Month: time.January})
	require.NoError(t, err)
	assert.Empty(t, rows)
}
