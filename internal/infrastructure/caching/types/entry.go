// Package types defines the cache entry and tier vocabulary shared by the
// tier stores and the manager.
package types

import "time"

// Tier names one cache layer. Lookup falls back through the canonical order
// memory, durable, backup.
type Tier string

const (
	// TierMemory is the fast volatile tier. Entries may disappear at any
	// time; cheapest to read.
	TierMemory Tier = "memory"
	// TierDurable survives process restart and is the fallback of record.
	TierDurable Tier = "durable"
	// TierBackup is the last resort, read only when the other tiers are
	// unavailable. Degraded-mode operation, not fast-path use.
	TierBackup Tier = "backup"
)

// FallbackOrder is the canonical tier check order.
var FallbackOrder = []Tier{TierMemory, TierDurable, TierBackup}

// Entry wraps one cached payload. An entry whose expiry has passed is treated
// as absent regardless of which tier still physically holds it.
type Entry struct {
	Key       string    `json:"key"`
	Payload   []byte    `json:"payload"`
	Tier      Tier      `json:"tier"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Hits      int64     `json:"hits"`
}

// Expired reports whether the entry is logically expired at now. Store-level
// deletion may lag; callers never serve an expired entry.
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// TTLRemaining returns the time the entry has left to live at now, or zero
// when expired. Used when promoting an entry into a faster tier so the copy
// keeps the original expiry.
func (e *Entry) TTLRemaining(now time.Time) time.Duration {
	if e.Expired(now) {
		return 0
	}
	return e.ExpiresAt.Sub(now)
}
