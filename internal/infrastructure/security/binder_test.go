package security

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarident/clarident-go/internal/domain/scope"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/logging"
)

const (
	testSetStmt   = "SELECT set_config('app.current_tenant', ?, false)"
	testClearStmt = "SELECT set_config('app.current_tenant', '', false)"
	testBypass    = "rls_bypass"
)

type recordingConn struct {
	statements []string
	args       [][]any
}

func (c *recordingConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	c.statements = append(c.statements, query)
	c.args = append(c.args, args)
	return nil, nil
}

func (c *recordingConn) lastArg() any {
	if len(c.args) == 0 || len(c.args[len(c.args)-1]) == 0 {
		return nil
	}
	return c.args[len(c.args)-1][0]
}

type elevationDirectory struct {
	elevated map[string]bool
	err      error
}

func (d *elevationDirectory) ListTenants(ctx context.Context, p scope.Principal) ([]scope.Tenant, error) {
	return nil, nil
}

func (d *elevationDirectory) IsEntitled(ctx context.Context, p scope.Principal, tenantID string) (bool, error) {
	return p.Entitled(tenantID), nil
}

func (d *elevationDirectory) Exists(ctx context.Context, tenantID string) (bool, error) {
	return true, nil
}

func (d *elevationDirectory) IsElevated(ctx context.Context, principalID string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	return d.elevated[principalID], nil
}

func newTestBinder(dir scope.Directory) *Binder {
	return NewBinder(dir, logging.NewTestLogger(), testSetStmt, testClearStmt, testBypass)
}

func TestBindSingleTenant(t *testing.T) {
	binder := newTestBinder(&elevationDirectory{})
	conn := &recordingConn{}

	bound, err := binder.Bind(context.Background(), conn, scope.Principal{ID: "u1"}, scope.Single("clinic-a"))
	require.NoError(t, err)
	require.NotNil(t, bound)
	assert.Equal(t, "clinic-a", conn.lastArg())
}

func TestBindAllVerifiesElevationFreshly(t *testing.T) {
	dir := &elevationDirectory{elevated: map[string]bool{"admin-1": true}}
	binder := newTestBinder(dir)
	conn := &recordingConn{}

	bound, err := binder.Bind(context.Background(), conn, scope.Principal{ID: "admin-1", Elevated: true}, scope.All())
	require.NoError(t, err)
	require.NotNil(t, bound)
	assert.Equal(t, testBypass, conn.lastArg())
}

func TestBindAllFailsClosedWhenNotElevated(t *testing.T) {
	// The token still claims elevation; the datastore no longer agrees.
	dir := &elevationDirectory{elevated: map[string]bool{}}
	binder := newTestBinder(dir)
	conn := &recordingConn{}
	principal := scope.Principal{ID: "admin-1", Elevated: true, HomeTenant: "clinic-a"}

	bound, err := binder.Bind(context.Background(), conn, principal, scope.All())
	assert.ErrorIs(t, err, scope.ErrSecurityDowngrade)
	require.NotNil(t, bound)
	assert.Equal(t, "clinic-a", conn.lastArg(), "must bind home tenant, never the bypass value")
}

func TestBindAllFailsClosedOnVerificationError(t *testing.T) {
	dir := &elevationDirectory{err: errors.New("datastore down")}
	binder := newTestBinder(dir)
	conn := &recordingConn{}
	principal := scope.Principal{ID: "admin-1", Elevated: true, HomeTenant: "clinic-a"}

	bound, err := binder.Bind(context.Background(), conn, principal, scope.All())
	assert.ErrorIs(t, err, scope.ErrSecurityDowngrade)
	require.NotNil(t, bound)
	assert.Equal(t, "clinic-a", conn.lastArg())
}

func TestBindFailsWithoutFallbackTenant(t *testing.T) {
	dir := &elevationDirectory{elevated: map[string]bool{}}
	binder := newTestBinder(dir)
	conn := &recordingConn{}

	bound, err := binder.Bind(context.Background(), conn, scope.Principal{ID: "ghost-1"}, scope.All())
	assert.ErrorIs(t, err, scope.ErrSecurityDowngrade)
	assert.Nil(t, bound)
	assert.Empty(t, conn.statements, "nothing safe can be bound")
}

func TestBindUnknownKindFailsClosed(t *testing.T) {
	binder := newTestBinder(&elevationDirectory{})
	conn := &recordingConn{}
	principal := scope.Principal{ID: "u1", HomeTenant: "clinic-a"}

	bound, err := binder.Bind(context.Background(), conn, principal, scope.Selection{Kind: "everything"})
	assert.ErrorIs(t, err, scope.ErrSecurityDowngrade)
	require.NotNil(t, bound)
	assert.Equal(t, "clinic-a", conn.lastArg())
}

func TestReleaseClearsAttribute(t *testing.T) {
	binder := newTestBinder(&elevationDirectory{})
	conn := &recordingConn{}

	bound, err := binder.Bind(context.Background(), conn, scope.Principal{ID: "u1"}, scope.Single("clinic-a"))
	require.NoError(t, err)

	require.NoError(t, bound.Release(context.Background()))
	assert.Equal(t, testClearStmt, conn.statements[len(conn.statements)-1])
}
