// Package interfaces defines the contracts between the cache manager and the
// tier stores.
package interfaces

import (
	"context"
	"time"

	"github.com/clarident/clarident-go/internal/infrastructure/caching/types"
)

// Store is one cache tier. All mutations must be atomic per key; cross-key
// sweeps may be observed one removal at a time.
type Store interface {
	// Tier identifies which layer this store backs.
	Tier() types.Tier

	// Get returns the entry for key, or false when absent. Stores do not
	// judge logical expiry; the manager does.
	Get(ctx context.Context, key string) (*types.Entry, bool, error)

	// Set writes the entry, overwriting any previous value for its key.
	Set(ctx context.Context, entry *types.Entry) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every entry whose key starts with prefix and
	// returns how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// Keys returns a snapshot of all keys currently held.
	Keys(ctx context.Context) ([]string, error)

	// Len returns the current entry count.
	Len(ctx context.Context) (int, error)
}

// Cache is the surface the rest of the system uses. Implemented by the
// manager; components receive it by reference, never through a global.
type Cache interface {
	Get(ctx context.Context, key string, preferred types.Tier) (*types.Entry, bool)
	GetStale(ctx context.Context, key string) (*types.Entry, bool)
	Set(ctx context.Context, key string, payload []byte, tiers []types.Tier, ttl time.Duration) bool
	Invalidate(ctx context.Context, key string)
	InvalidatePrefix(ctx context.Context, prefix string) int
}
