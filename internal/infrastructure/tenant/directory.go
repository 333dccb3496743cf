// Package tenant provides the tenant directory: which clinics exist and
// which of them a principal may view.
package tenant

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clarident/clarident-go/internal/domain/scope"
	"github.com/clarident/clarident-go/internal/infrastructure/caching/interfaces"
	"github.com/clarident/clarident-go/internal/infrastructure/caching/types"
	"github.com/clarident/clarident-go/internal/infrastructure/persistence/database"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/logging"
	"github.com/clarident/clarident-go/pkg/config"
)

const (
	activeTenantsKey     = "directory:tenants:active"
	entitlementKeyPrefix = "directory:entitlement:"
)

// Interface assertion.
var _ scope.Directory = (*Directory)(nil)

// Directory is the SQL-backed tenant directory. Read-only; lookups go
// through the cache manager with a short TTL because the tenant list changes
// rarely.
type Directory struct {
	db     *database.DB
	cache  interfaces.Cache
	logger *logging.ChanneledLogger
}

// NewDirectory creates the directory service.
func NewDirectory(db *database.DB, cache interfaces.Cache, logger *logging.ChanneledLogger) *Directory {
	return &Directory{db: db, cache: cache, logger: logger}
}

// activeTenants returns all active tenants, cache-assisted.
func (d *Directory) activeTenants(ctx context.Context) ([]scope.Tenant, error) {
	if entry, found := d.cache.Get(ctx, activeTenantsKey, types.TierMemory); found {
		var tenants []scope.Tenant
		if err := json.Unmarshal(entry.Payload, &tenants); err == nil {
			return tenants, nil
		}
		// Unreadable cached payload; fall through to the datastore.
		d.cache.Invalidate(ctx, activeTenantsKey)
	}

	start := time.Now()
	const query = `SELECT id, name, active FROM tenants WHERE active = 1 ORDER BY id`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query active tenants: %w", err)
	}
	defer rows.Close()

	var tenants []scope.Tenant
	for rows.Next() {
		var t scope.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Active); err != nil {
			return nil, fmt.Errorf("scan tenant row: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenant rows: %w", err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		d.logger.LogSlowQuery(query, duration, "system")
	}

	if payload, err := json.Marshal(tenants); err == nil {
		d.cache.Set(ctx, activeTenantsKey, payload, []types.Tier{types.TierMemory, types.TierDurable}, config.DirectoryTTL)
	}

	return tenants, nil
}

// ListTenants returns the active tenants visible to the principal. A
// non-elevated principal with zero entitlements is a misconfigured account
// and yields ErrNotFound.
func (d *Directory) ListTenants(ctx context.Context, p scope.Principal) ([]scope.Tenant, error) {
	if !p.Elevated && len(p.Entitlements) == 0 {
		return nil, scope.ErrNotFound
	}

	active, err := d.activeTenants(ctx)
	if err != nil {
		return nil, err
	}

	if p.Elevated {
		return active, nil
	}

	entitled := make([]scope.Tenant, 0, len(p.Entitlements))
	for _, t := range active {
		if p.Entitled(t.ID) {
			entitled = append(entitled, t)
		}
	}
	return entitled, nil
}

// IsEntitled reports whether the principal may view tenantID: always true
// for elevated principals, otherwise the static entitlement set intersected
// with active tenants. Verdicts for non-elevated principals are cached per
// principal/tenant pair under a short TTL; the memory tier only, these never
// need to survive a restart.
func (d *Directory) IsEntitled(ctx context.Context, p scope.Principal, tenantID string) (bool, error) {
	if p.Elevated {
		return true, nil
	}

	key := entitlementKeyPrefix + p.ID + ":" + tenantID
	if entry, found := d.cache.Get(ctx, key, types.TierMemory); found {
		return string(entry.Payload) == "1", nil
	}

	entitled := p.Entitled(tenantID)
	if entitled {
		active, err := d.Exists(ctx, tenantID)
		if err != nil {
			return false, err
		}
		entitled = active
	}

	payload := []byte("0")
	if entitled {
		payload = []byte("1")
	}
	d.cache.Set(ctx, key, payload, []types.Tier{types.TierMemory}, config.EntitlementTTL)

	return entitled, nil
}

// Exists reports whether tenantID names an active tenant.
func (d *Directory) Exists(ctx context.Context, tenantID string) (bool, error) {
	active, err := d.activeTenants(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range active {
		if t.ID == tenantID {
			return true, nil
		}
	}
	return false, nil
}

// IsElevated re-reads the elevation flag straight from the datastore. The
// session security binder depends on this never being served from cache.
func (d *Directory) IsElevated(ctx context.Context, principalID string) (bool, error) {
	const query = `SELECT elevated FROM principals WHERE id = ?`

	var elevated bool
	err := d.db.QueryRowContext(ctx, query, principalID).Scan(&elevated)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query principal elevation: %w", err)
	}
	return elevated, nil
}

// InvalidateDirectoryCache drops cached directory lookups, called when the
// external administrative workflow changes the tenant roster or a
// principal's entitlements.
func (d *Directory) InvalidateDirectoryCache(ctx context.Context) {
	d.cache.Invalidate(ctx, activeTenantsKey)
	d.cache.InvalidatePrefix(ctx, entitlementKeyPrefix)
}
