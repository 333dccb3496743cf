// Package caching provides the tiered cache and related utilities.
package caching

import "sync"

// FlightLock prevents "thundering herd" recomputation by ensuring only one
// aggregation pass runs for a given cache key at a time. Constructed once and
// injected; there is no ambient global instance.
type FlightLock struct {
	mu    sync.Mutex
	locks map[string]struct{}
}

// NewFlightLock creates a new instance of a FlightLock.
func NewFlightLock() *FlightLock {
	return &FlightLock{
		locks: make(map[string]struct{}),
	}
}

// TryLock attempts to acquire the lock for a key. It returns true if the lock
// was acquired, and false if the lock is already held. Non-blocking.
func (l *FlightLock) TryLock(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.locks[key]; exists {
		return false
	}

	l.locks[key] = struct{}{}
	return true
}

// Unlock releases the lock for a key. Call with defer in the goroutine that
// acquired it.
func (l *FlightLock) Unlock(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.locks, key)
}
