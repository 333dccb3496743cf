package scopestate

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Interface assertion.
var _ Store = (*MemoryStore)(nil)

type memoryRecord struct {
	record    Record
	expiresAt time.Time
}

// MemoryStore keeps scope records in process memory. Used standalone when
// Redis is disabled and in tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
	clk     clock.Clock
}

// NewMemoryStore creates a new in-memory scope record store.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryStore{
		records: make(map[string]memoryRecord),
		clk:     clk,
	}
}

// Get returns the principal's record, or nil when absent or expired.
func (s *MemoryStore) Get(ctx context.Context, principalID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.records[principalID]
	if !ok {
		return nil, nil
	}
	if s.clk.Now().After(entry.expiresAt) {
		delete(s.records, principalID)
		return nil, nil
	}
	record := entry.record
	return &record, nil
}

// CompareAndSwap stores new only when the current record matches old.
func (s *MemoryStore) CompareAndSwap(ctx context.Context, principalID string, old *Record, new Record, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	entry, exists := s.records[principalID]
	if exists && now.After(entry.expiresAt) {
		delete(s.records, principalID)
		exists = false
	}

	if exists {
		if !SameSelection(entry.record, old) {
			return false, nil
		}
	} else if old != nil {
		return false, nil
	}

	s.records[principalID] = memoryRecord{
		record:    new,
		expiresAt: now.Add(ttl),
	}
	return true, nil
}

// Delete removes the principal's record.
func (s *MemoryStore) Delete(ctx context.Context, principalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, principalID)
	return nil
}
