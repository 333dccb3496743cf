// Package stores provides the concrete cache tier implementations.
package stores

import (
	"context"
	"strings"
	"sync"

	"github.com/clarident/clarident-go/internal/infrastructure/caching/types"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/logging"
)

// MemoryStore is the fast volatile tier: a mutex-guarded map local to the
// process. Contents do not survive restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*types.Entry
	logger  *logging.ChanneledLogger
}

// NewMemoryStore creates the volatile tier store.
func NewMemoryStore(logger *logging.ChanneledLogger) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*types.Entry),
		logger:  logger,
	}
}

func (s *MemoryStore) Tier() types.Tier { return types.TierMemory }

func (s *MemoryStore) Get(_ context.Context, key string) (*types.Entry, bool, error) {
	s.mu.RLock()
	entry, exists := s.entries[key]
	s.mu.RUnlock()
	if !exists {
		return nil, false, nil
	}

	s.mu.Lock()
	entry.Hits++
	copied := *entry
	s.mu.Unlock()
	return &copied, true, nil
}

func (s *MemoryStore) Set(_ context.Context, entry *types.Entry) error {
	copied := *entry
	copied.Tier = types.TierMemory

	s.mu.Lock()
	s.entries[entry.Key] = &copied
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}
