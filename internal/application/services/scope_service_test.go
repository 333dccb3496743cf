package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainaudit "github.com/clarident/clarident-go/internal/domain/audit"
	"github.com/clarident/clarident-go/internal/domain/scope"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/logging"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/monitoring"
	auditstore "github.com/clarident/clarident-go/internal/infrastructure/persistence/audit"
	"github.com/clarident/clarident-go/internal/infrastructure/persistence/scopestate"
	"github.com/clarident/clarident-go/internal/infrastructure/ratelimit"
)

type stubDirectory struct {
	tenants  map[string]scope.Tenant
	elevated map[string]bool
}

func (d *stubDirectory) ListTenants(ctx context.Context, p scope.Principal) ([]scope.Tenant, error) {
	if !p.Elevated && len(p.Entitlements) == 0 {
		return nil, scope.ErrNotFound
	}
	var out []scope.Tenant
	for _, t := range d.tenants {
		if p.Elevated || p.Entitled(t.ID) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (d *stubDirectory) IsEntitled(ctx context.Context, p scope.Principal, tenantID string) (bool, error) {
	return p.Entitled(tenantID), nil
}

func (d *stubDirectory) Exists(ctx context.Context, tenantID string) (bool, error) {
	t, ok := d.tenants[tenantID]
	return ok && t.Active, nil
}

func (d *stubDirectory) IsElevated(ctx context.Context, principalID string) (bool, error) {
	return d.elevated[principalID], nil
}

func newTestDirectory() *stubDirectory {
	return &stubDirectory{
		tenants: map[string]scope.Tenant{
			"clinic-a": {ID: "clinic-a", Name: "Clinic A", Active: true},
			"clinic-b": {ID: "clinic-b", Name: "Clinic B", Active: true},
		},
		elevated: map[string]bool{"admin-1": true},
	}
}

type scopeFixture struct {
	service *ScopeService
	records *scopestate.MemoryStore
	audits  *auditstore.MemoryStore
	clk     *clock.Mock
}

func newScopeFixture(t *testing.T) *scopeFixture {
	t.Helper()
	clk := clock.NewMock()
	records := scopestate.NewMemoryStore(clk)
	audits := auditstore.NewMemoryStore()
	limiter := ratelimit.NewFixedWindow(3, time.Minute, clk)
	service := NewScopeService(newTestDirectory(), records, audits, limiter, logging.NewTestLogger(), clk)
	return &scopeFixture{service: service, records: records, audits: audits, clk: clk}
}

var (
	admin = scope.Principal{
		ID:           "admin-1",
		Elevated:     true,
		Entitlements: []string{"clinic-a", "clinic-b"},
		HomeTenant:   "clinic-a",
	}
	frontdesk = scope.Principal{
		ID:           "frontdesk-1",
		Entitlements: []string{"clinic-a"},
		HomeTenant:   "clinic-a",
	}
)

func TestGetScopeDefaults(t *testing.T) {
	f := newScopeFixture(t)
	ctx := context.Background()

	sel, err := f.service.GetScope(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, scope.All(), sel)

	sel, err = f.service.GetScope(ctx, frontdesk)
	require.NoError(t, err)
	assert.Equal(t, scope.Single("clinic-a"), sel)
}

func TestGetScopeIdempotent(t *testing.T) {
	f := newScopeFixture(t)
	ctx := context.Background()

	first, err := f.service.GetScope(ctx, admin)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := f.service.GetScope(ctx, admin)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestGetScopeNoEntitlements(t *testing.T) {
	f := newScopeFixture(t)

	_, err := f.service.GetScope(context.Background(), scope.Principal{ID: "ghost-1"})
	assert.ErrorIs(t, err, scope.ErrNotFound)
}

func TestSetScopeSwitchesAndAudits(t *testing.T) {
	f := newScopeFixture(t)
	ctx := context.Background()

	sel, err := f.service.SetScope(ctx, admin, scope.Single("clinic-b"), "req-1")
	require.NoError(t, err)
	assert.Equal(t, scope.Single("clinic-b"), sel)

	got, err := f.service.GetScope(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, scope.Single("clinic-b"), got)

	entries, err := f.audits.Query(ctx, domainaudit.Filter{PrincipalID: "admin-1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, scope.All(), entries[0].From)
	assert.Equal(t, scope.Single("clinic-b"), entries[0].To)
	assert.Equal(t, "req-1", entries[0].CorrelationID)
	assert.NotEmpty(t, entries[0].ID)
}

func TestSetScopeForbiddenForNonElevatedAll(t *testing.T) {
	f := newScopeFixture(t)
	ctx := context.Background()

	_, err := f.service.SetScope(ctx, frontdesk, scope.All(), "req-1")
	assert.ErrorIs(t, err, scope.ErrForbidden)

	// Prior scope is retained and nothing was audited.
	got, err := f.service.GetScope(ctx, frontdesk)
	require.NoError(t, err)
	assert.Equal(t, scope.Single("clinic-a"), got)
	assert.Equal(t, 0, f.audits.Len())
}

func TestSetScopeForbiddenForUnentitledTenant(t *testing.T) {
	f := newScopeFixture(t)

	_, err := f.service.SetScope(context.Background(), frontdesk, scope.Single("clinic-b"), "req-1")
	assert.ErrorIs(t, err, scope.ErrForbidden)
}

func TestSetScopeUnknownTenant(t *testing.T) {
	f := newScopeFixture(t)

	_, err := f.service.SetScope(context.Background(), admin, scope.Single("clinic-zz"), "req-1")
	assert.ErrorIs(t, err, scope.ErrUnknownTenant)
	assert.Equal(t, 0, f.audits.Len())
}

func TestSetScopeRateLimited(t *testing.T) {
	f := newScopeFixture(t)
	ctx := context.Background()

	targets := []scope.Selection{scope.Single("clinic-a"), scope.Single("clinic-b"), scope.All()}
	for i := 0; i < 3; i++ {
		_, err := f.service.SetScope(ctx, admin, targets[i], "req")
		require.NoError(t, err)
	}

	_, err := f.service.SetScope(ctx, admin, scope.Single("clinic-a"), "req")
	assert.ErrorIs(t, err, scope.ErrRateLimited)

	// A different principal in the same window is unaffected.
	_, err = f.service.SetScope(ctx, frontdesk, scope.Single("clinic-a"), "req")
	require.NoError(t, err)

	// The window resets with time.
	f.clk.Add(time.Minute)
	_, err = f.service.SetScope(ctx, admin, scope.Single("clinic-a"), "req")
	require.NoError(t, err)
}

func TestSetScopeFailsWhenAuditFails(t *testing.T) {
	f := newScopeFixture(t)
	ctx := context.Background()

	_, err := f.service.GetScope(ctx, admin)
	require.NoError(t, err)

	f.audits.FailAppends = errors.New("disk full")
	_, err = f.service.SetScope(ctx, admin, scope.Single("clinic-b"), "req-1")
	require.Error(t, err)

	// The switch was rolled back: durable state never outruns the trail.
	got, err := f.service.GetScope(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, scope.All(), got)
}

func TestSetScopeCountsAcceptedOutcome(t *testing.T) {
	f := newScopeFixture(t)
	ctx := context.Background()

	accepted := monitoring.ScopeSwitchesTotal.WithLabelValues("accepted")
	before := testutil.ToFloat64(accepted)

	_, err := f.service.SetScope(ctx, admin, scope.Single("clinic-b"), "req-1")
	require.NoError(t, err)

	assert.Equal(t, before+1, testutil.ToFloat64(accepted))
}
