package audit

import (
	"context"
	"sort"
	"sync"

	domain "github.com/clarident/clarident-go/internal/domain/audit"
)

// Interface assertion.
var _ domain.Store = (*MemoryStore)(nil)

// MemoryStore keeps audit entries in memory. Used in tests and single-node
// development setups.
type MemoryStore struct {
	mu      sync.Mutex
	entries []domain.ScopeSwitch

	// FailAppends makes Append return this error when set. Tests use it to
	// exercise the durability path.
	FailAppends error
}

// NewMemoryStore creates an empty in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append records one scope switch.
func (s *MemoryStore) Append(ctx context.Context, entry domain.ScopeSwitch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAppends != nil {
		return s.FailAppends
	}
	s.entries = append(s.entries, entry)
	return nil
}

// Query returns matching entries newest first.
func (s *MemoryStore) Query(ctx context.Context, filter domain.Filter) ([]domain.ScopeSwitch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []domain.ScopeSwitch
	for _, entry := range s.entries {
		if filter.PrincipalID != "" && entry.PrincipalID != filter.PrincipalID {
			continue
		}
		if !filter.From.IsZero() && entry.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !entry.CreatedAt.Before(filter.To) {
			continue
		}
		matched = append(matched, entry)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// Len reports how many entries have been appended.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
