package services

import (
	"context"
	"fmt"

	domainaudit "github.com/clarident/clarident-go/internal/domain/audit"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/logging"
)

// defaultAuditLimit caps unbounded audit queries.
const defaultAuditLimit = 100

// AuditService exposes the read side of the scope-switch trail for compliance
// review. Writes happen inside ScopeService so durability stays coupled to the
// switch itself.
type AuditService struct {
	store  domainaudit.Store
	logger *logging.ChanneledLogger
}

// NewAuditService creates the audit service.
func NewAuditService(store domainaudit.Store, logger *logging.ChanneledLogger) *AuditService {
	return &AuditService{store: store, logger: logger}
}

// Query returns matching scope switches newest first. A zero limit is replaced
// with the default cap.
func (s *AuditService) Query(ctx context.Context, filter domainaudit.Filter) ([]domainaudit.ScopeSwitch, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultAuditLimit
	}
	entries, err := s.store.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query audit trail: %w", err)
	}
	return entries, nil
}
