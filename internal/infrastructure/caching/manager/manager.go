// Package manager provides the tiered cache with fallback, promotion, and
// prefix invalidation.
package manager

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/clarident/clarident-go/internal/infrastructure/caching/interfaces"
	"github.com/clarident/clarident-go/internal/infrastructure/caching/types"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/logging"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/monitoring"
)

// Interface assertion to ensure Manager implements the cache surface.
var _ interfaces.Cache = (*Manager)(nil)

// Manager fronts the tier stores. Lookups check the caller's preferred tier
// first, then fall back through the canonical order; a fallback hit is
// promoted into the preferred tier so subsequent reads are fast. A logically
// expired entry is treated as absent in every tier.
type Manager struct {
	stores map[types.Tier]interfaces.Store
	clock  clock.Clock
	logger *logging.ChanneledLogger
}

// NewManager wires the available tier stores. A tier may be absent (e.g. no
// redis in a dev deployment); lookups simply skip it.
func NewManager(clk clock.Clock, logger *logging.ChanneledLogger, tierStores ...interfaces.Store) *Manager {
	stores := make(map[types.Tier]interfaces.Store, len(tierStores))
	names := make([]string, 0, len(tierStores))
	for _, s := range tierStores {
		stores[s.Tier()] = s
		names = append(names, string(s.Tier()))
	}

	if logger != nil {
		logger.Cache().Info("Initializing cache manager", "tiers", names)
	}

	return &Manager{
		stores: stores,
		clock:  clk,
		logger: logger,
	}
}

// Store exposes a tier store for the cleanup worker.
func (m *Manager) Store(tier types.Tier) (interfaces.Store, bool) {
	s, ok := m.stores[tier]
	return s, ok
}

// Tiers returns the tiers this manager actually holds, in fallback order.
func (m *Manager) Tiers() []types.Tier {
	tiers := make([]types.Tier, 0, len(m.stores))
	for _, tier := range types.FallbackOrder {
		if _, ok := m.stores[tier]; ok {
			tiers = append(tiers, tier)
		}
	}
	return tiers
}

// lookupOrder yields preferred first, then the remaining tiers in canonical
// fallback order.
func (m *Manager) lookupOrder(preferred types.Tier) []types.Tier {
	order := make([]types.Tier, 0, len(types.FallbackOrder))
	if _, ok := m.stores[preferred]; ok {
		order = append(order, preferred)
	}
	for _, tier := range types.FallbackOrder {
		if tier == preferred {
			continue
		}
		if _, ok := m.stores[tier]; ok {
			order = append(order, tier)
		}
	}
	return order
}

// Get returns the entry for key, checking preferred first and falling back
// through the other tiers. Store errors degrade to the next tier rather than
// failing the lookup.
func (m *Manager) Get(ctx context.Context, key string, preferred types.Tier) (*types.Entry, bool) {
	start := m.clock.Now()
	now := start

	for _, tier := range m.lookupOrder(preferred) {
		store := m.stores[tier]
		entry, found, err := store.Get(ctx, key)
		if err != nil {
			if m.logger != nil {
				m.logger.Cache().Warn("Tier lookup failed, falling back", "tier", tier, "key", key, "error", err)
			}
			continue
		}
		if !found {
			continue
		}
		if entry.Expired(now) {
			// Absent to callers; physical removal belongs to the cleanup
			// pass so GetStale can still reach it in degraded mode.
			continue
		}

		if tier != preferred && m.promote(ctx, entry, preferred, now) {
			monitoring.CacheRequestsTotal.WithLabelValues(string(tier), "promoted").Inc()
		} else {
			monitoring.CacheRequestsTotal.WithLabelValues(string(tier), "hit").Inc()
		}
		if m.logger != nil {
			m.logger.LogCacheOperation("get", key, string(tier), true, m.clock.Now().Sub(start))
		}
		return entry, true
	}

	monitoring.CacheRequestsTotal.WithLabelValues(string(preferred), "miss").Inc()
	if m.logger != nil {
		m.logger.LogCacheOperation("get", key, string(preferred), false, m.clock.Now().Sub(start))
	}
	return nil, false
}

// GetStale returns the entry for key even when logically expired. Degraded
// mode only: the aggregation-timeout fallback prefers stale data over no
// data. Callers must mark the result as stale.
func (m *Manager) GetStale(ctx context.Context, key string) (*types.Entry, bool) {
	for _, tier := range types.FallbackOrder {
		store, ok := m.stores[tier]
		if !ok {
			continue
		}
		entry, found, err := store.Get(ctx, key)
		if err != nil || !found {
			continue
		}
		return entry, true
	}
	return nil, false
}

// promote copies a fallback hit into the preferred tier with its remaining
// TTL, the self-healing cache-warming property. Reports whether the copy
// actually landed; a missing preferred tier or a failed write is a plain
// fallback hit, not a promotion.
func (m *Manager) promote(ctx context.Context, entry *types.Entry, preferred types.Tier, now time.Time) bool {
	store, ok := m.stores[preferred]
	if !ok {
		return false
	}
	remaining := entry.TTLRemaining(now)
	if remaining <= 0 {
		return false
	}

	copied := *entry
	copied.Tier = preferred
	if err := store.Set(ctx, &copied); err != nil {
		if m.logger != nil {
			m.logger.Cache().Warn("Promotion failed", "tier", preferred, "key", entry.Key, "error", err)
		}
		return false
	}
	return true
}

// Set writes the payload into the given tiers with the same expiry. Returns
// true when at least one tier accepted the write.
func (m *Manager) Set(ctx context.Context, key string, payload []byte, tiers []types.Tier, ttl time.Duration) bool {
	now := m.clock.Now().UTC()
	entry := &types.Entry{
		Key:       key,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	wrote := false
	for _, tier := range tiers {
		store, ok := m.stores[tier]
		if !ok {
			continue
		}
		if err := store.Set(ctx, entry); err != nil {
			if m.logger != nil {
				m.logger.Cache().Warn("Tier write failed", "tier", tier, "key", key, "error", err)
			}
			continue
		}
		wrote = true
	}
	return wrote
}

// Invalidate removes key from every tier.
func (m *Manager) Invalidate(ctx context.Context, key string) {
	for _, store := range m.stores {
		if err := store.Delete(ctx, key); err != nil && m.logger != nil {
			m.logger.Cache().Warn("Invalidation failed", "tier", store.Tier(), "key", key, "error", err)
		}
	}
}

// InvalidatePrefix removes every entry whose key starts with prefix from
// every tier, returning the total removed. Used when a tenant's underlying
// data changes; individual removals may be observed one at a time.
func (m *Manager) InvalidatePrefix(ctx context.Context, prefix string) int {
	start := m.clock.Now()
	total := 0
	for _, store := range m.stores {
		removed, err := store.DeletePrefix(ctx, prefix)
		if err != nil && m.logger != nil {
			m.logger.Cache().Warn("Prefix invalidation failed", "tier", store.Tier(), "prefix", prefix, "error", err)
		}
		total += removed
	}
	if m.logger != nil {
		m.logger.Cache().Info("Prefix invalidated", "prefix", prefix, "removed", total, "duration", m.clock.Now().Sub(start))
	}
	return total
}
