// Package scope defines the tenant viewing context for a principal and the
// ports used to validate it.
package scope

import "context"

// Kind discriminates the two viewing contexts a principal can hold.
type Kind string

const (
	// KindSingle scopes every query to one tenant.
	KindSingle Kind = "single"
	// KindAll is the cross-tenant view, valid only for elevated principals.
	KindAll Kind = "all"
)

// Selection is the tagged scope variant. TenantID is set only for KindSingle.
type Selection struct {
	Kind     Kind   `json:"kind"`
	TenantID string `json:"tenantId,omitempty"`
}

// Single returns a selection scoped to one tenant.
func Single(tenantID string) Selection {
	return Selection{Kind: KindSingle, TenantID: tenantID}
}

// All returns the cross-tenant selection.
func All() Selection {
	return Selection{Kind: KindAll}
}

// String renders the selection for log lines and cache keys.
func (s Selection) String() string {
	if s.Kind == KindSingle {
		return string(s.Kind) + ":" + s.TenantID
	}
	return string(s.Kind)
}

// Equal reports whether two selections name the same viewing context.
func (s Selection) Equal(other Selection) bool {
	return s.Kind == other.Kind && s.TenantID == other.TenantID
}

// IsValidKind reports whether k is one of the known scope kinds.
func IsValidKind(k Kind) bool {
	return k == KindSingle || k == KindAll
}

// Tenant is one managed clinic. Immutable once referenced by historical
// metrics; lifecycle is owned by an external administrative workflow.
type Tenant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Principal is an already-authenticated actor. Authentication itself is an
// external collaborator; this core only consumes the identity.
type Principal struct {
	ID           string   `json:"id"`
	Elevated     bool     `json:"elevated"`
	Entitlements []string `json:"entitlements"`
	HomeTenant   string   `json:"homeTenant"`
}

// Home returns the principal's home tenant, falling back to the first
// entitlement when the claim is absent.
func (p Principal) Home() string {
	if p.HomeTenant != "" {
		return p.HomeTenant
	}
	if len(p.Entitlements) > 0 {
		return p.Entitlements[0]
	}
	return ""
}

// Entitled reports whether tenantID is in the principal's static entitlement
// set. Elevated principals are entitled to every tenant.
func (p Principal) Entitled(tenantID string) bool {
	if p.Elevated {
		return true
	}
	for _, id := range p.Entitlements {
		if id == tenantID {
			return true
		}
	}
	return false
}

// DefaultSelection is the initialization rule: elevated principals start on
// the cross-tenant view, everyone else on their home tenant.
func (p Principal) DefaultSelection() Selection {
	if p.Elevated {
		return All()
	}
	return Single(p.Home())
}

// Directory resolves which tenants a principal may access. Read-only;
// implementations are expected to consult the cache manager with a short TTL
// before hitting the datastore.
type Directory interface {
	// ListTenants returns the active tenants visible to the principal.
	// Returns ErrNotFound for a non-elevated principal with zero
	// entitlements (a misconfigured account, not a transient error).
	ListTenants(ctx context.Context, p Principal) ([]Tenant, error)

	// IsEntitled reports whether the principal may view tenantID. Always
	// true for elevated principals.
	IsEntitled(ctx context.Context, p Principal, tenantID string) (bool, error)

	// Exists reports whether tenantID names an active tenant.
	Exists(ctx context.Context, tenantID string) (bool, error)

	// IsElevated re-reads the principal's elevation flag from the
	// datastore, bypassing every cache. The session security binder calls
	// this immediately before setting the row-filter bypass attribute.
	IsElevated(ctx context.Context, principalID string) (bool, error)
}
