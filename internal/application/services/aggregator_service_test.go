package services

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarident/clarident-go/internal/domain/metrics"
	"github.com/clarident/clarident-go/internal/domain/scope"
	"github.com/clarident/clarident-go/internal/infrastructure/caching/manager"
	"github.com/clarident/clarident-go/internal/infrastructure/caching/stores"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/logging"
	"github.com/clarident/clarident-go/pkg/config"
)

// stubRepo serves canned grouped rows per period, filtered the way the bound
// connection's row policy would filter them.
type stubRepo struct {
	rows    map[string]map[string]metrics.MetricSet
	queries int
	err     error
}

func (r *stubRepo) ScopeRows(ctx context.Context, sel scope.Selection, period metrics.Period) (map[string]metrics.MetricSet, error) {
	r.queries++
	if r.err != nil {
		return nil, r.err
	}
	byTenant := r.rows[period.String()]
	out := make(map[string]metrics.MetricSet)
	for tenantID, set := range byTenant {
		if sel.Kind == scope.KindSingle && tenantID != sel.TenantID {
			continue
		}
		out[tenantID] = set
	}
	return out, nil
}

func june() metrics.Period {
	p, _ := metrics.ParsePeriod("2025-06")
	return p
}

func newAggFixture(t *testing.T) (*AggregatorService, *clock.Mock, *manager.Manager) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	logger := logging.NewTestLogger()
	cache := manager.NewManager(clk, logger, stores.NewMemoryStore(logger))
	return NewAggregatorService(cache, logger, clk), clk, cache
}

func twoClinicRows() map[string]map[string]metrics.MetricSet {
	return map[string]map[string]metrics.MetricSet{
		"2025-06": {
			"clinic-a": {
				ProductionCents:       120000,
				CollectionsCents:      110000,
				AppointmentsTotal:     40,
				AppointmentsCompleted: 36,
				NewPatients:           5,
				RatingSum:             180,
				RatingCount:           40,
			},
			"clinic-b": {
				ProductionCents:       80000,
				CollectionsCents:      70000,
				AppointmentsTotal:     10,
				AppointmentsCompleted: 8,
				NewPatients:           2,
				RatingSum:             30,
				RatingCount:           10,
			},
		},
		"2025-05": {
			"clinic-a": {ProductionCents: 100000, AppointmentsTotal: 30, AppointmentsCompleted: 30},
			"clinic-b": {ProductionCents: 60000, AppointmentsTotal: 12, AppointmentsCompleted: 6},
		},
	}
}

func TestComputeAllScope(t *testing.T) {
	svc, _, _ := newAggFixture(t)
	repo := &stubRepo{rows: twoClinicRows()}

	agg, err := svc.Compute(context.Background(), repo, scope.All(), june())
	require.NoError(t, err)

	assert.Equal(t, int64(200000), agg.Totals.ProductionCents)
	assert.Equal(t, int64(180000), agg.Totals.CollectionsCents)
	require.Len(t, agg.Breakdown, 2)
	assert.Equal(t, int64(120000), agg.Breakdown["clinic-a"].ProductionCents)
	assert.Equal(t, int64(80000), agg.Breakdown["clinic-b"].ProductionCents)
	assert.False(t, agg.Stale)

	// Breakdown sums to the system-wide total for every metric.
	var summed metrics.MetricSet
	for _, set := range agg.Breakdown {
		summed.Add(set)
	}
	assert.Equal(t, agg.Totals, summed)
}

func TestComputeWeightedRating(t *testing.T) {
	svc, _, _ := newAggFixture(t)
	repo := &stubRepo{rows: twoClinicRows()}

	agg, err := svc.Compute(context.Background(), repo, scope.All(), june())
	require.NoError(t, err)

	// clinic-a averages 4.5 over 40 ratings, clinic-b 3.0 over 10. The
	// naive mean of averages would be 3.75; weighted by volume it is 4.2.
	assert.InDelta(t, 4.2, agg.Totals.AvgRating(), 1e-9)
}

func TestComputeSingleScopeIsolation(t *testing.T) {
	svc, _, _ := newAggFixture(t)
	repo := &stubRepo{rows: twoClinicRows()}

	agg, err := svc.Compute(context.Background(), repo, scope.Single("clinic-b"), june())
	require.NoError(t, err)

	require.Len(t, agg.Breakdown, 1)
	assert.Equal(t, int64(80000), agg.Breakdown["clinic-b"].ProductionCents)
	assert.Equal(t, int64(80000), agg.Totals.ProductionCents)
	assert.NotContains(t, agg.Breakdown, "clinic-a")
}

func TestComputeTrends(t *testing.T) {
	svc, _, _ := newAggFixture(t)
	repo := &stubRepo{rows: twoClinicRows()}

	agg, err := svc.Compute(context.Background(), repo, scope.All(), june())
	require.NoError(t, err)

	// 160000 -> 200000 cents month over month.
	trend := agg.Trends["production_cents"]
	require.True(t, trend.Defined)
	assert.InDelta(t, 0.25, trend.Pct, 1e-9)

	// May booked no new patients, so the trend is undefined, not an error.
	assert.False(t, agg.Trends["new_patients"].Defined)
}

func TestComputeInsufficientData(t *testing.T) {
	svc, _, _ := newAggFixture(t)
	repo := &stubRepo{rows: map[string]map[string]metrics.MetricSet{}}

	_, err := svc.Compute(context.Background(), repo, scope.All(), june())
	assert.ErrorIs(t, err, metrics.ErrInsufficientData)
}

func TestComputeServesFromCache(t *testing.T) {
	svc, _, _ := newAggFixture(t)
	repo := &stubRepo{rows: twoClinicRows()}

	first, err := svc.Compute(context.Background(), repo, scope.All(), june())
	require.NoError(t, err)
	queriesAfterFirst := repo.queries

	second, err := svc.Compute(context.Background(), repo, scope.All(), june())
	require.NoError(t, err)
	assert.Equal(t, queriesAfterFirst, repo.queries, "second compute should not hit the datastore")
	assert.Equal(t, first.Totals, second.Totals)
}

func TestComputeTimeoutFallsBackToStale(t *testing.T) {
	svc, clk, _ := newAggFixture(t)
	repo := &stubRepo{rows: twoClinicRows()}
	ctx := context.Background()

	fresh, err := svc.Compute(ctx, repo, scope.All(), june())
	require.NoError(t, err)

	// Let the cached result expire, then make the datastore too slow.
	clk.Add(config.DashboardTTL + time.Minute)
	repo.err = context.DeadlineExceeded

	agg, err := svc.Compute(ctx, repo, scope.All(), june())
	require.NoError(t, err)
	assert.True(t, agg.Stale)
	assert.Equal(t, fresh.Totals, agg.Totals)
	assert.Equal(t, fresh.ComputedAt, agg.ComputedAt)
}

func TestComputeTimeoutWithoutFallback(t *testing.T) {
	svc, _, _ := newAggFixture(t)
	repo := &stubRepo{err: context.DeadlineExceeded}

	_, err := svc.Compute(context.Background(), repo, scope.All(), june())
	assert.ErrorIs(t, err, metrics.ErrAggregationTimeout)
}
