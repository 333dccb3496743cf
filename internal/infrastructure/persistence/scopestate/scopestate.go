// Package scopestate persists the active scope selection per principal.
//
// Writes go through compare-and-swap so concurrent switches for the same
// principal resolve deterministically: the losing writer observes a stale
// expected value and retries against the winner's record.
package scopestate

import (
	"context"
	"time"

	"github.com/clarident/clarident-go/internal/domain/scope"
)

// Record is one principal's persisted scope selection.
type Record struct {
	Selection scope.Selection `json:"selection"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Store is the scope-record persistence port.
//
// CompareAndSwap matches old against the stored record by selection only
// (UpdatedAt is informational). old == nil means "store only if absent".
// It returns false without error when the expectation does not hold.
type Store interface {
	Get(ctx context.Context, principalID string) (*Record, error)
	CompareAndSwap(ctx context.Context, principalID string, old *Record, new Record, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, principalID string) error
}

// SameSelection reports whether a stored record matches the expected one for
// CAS purposes.
func SameSelection(stored Record, expected *Record) bool {
	if expected == nil {
		return false
	}
	return stored.Selection.Kind == expected.Selection.Kind &&
		stored.Selection.TenantID == expected.Selection.TenantID
}
