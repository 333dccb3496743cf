// Package audit defines the append-only scope-switch trail. Records carry
// enough to answer "who viewed which tenant's data, through which scope, and
// when" for compliance review.
package audit

import (
	"context"
	"time"

	"github.com/clarident/clarident-go/internal/domain/scope"
)

// ScopeSwitch is one immutable audit line. Never mutated or deleted by this
// core; retention and rotation are external concerns.
type ScopeSwitch struct {
	ID            string          `json:"id"`
	PrincipalID   string          `json:"principalId"`
	From          scope.Selection `json:"from"`
	To            scope.Selection `json:"to"`
	CorrelationID string          `json:"correlationId"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Filter narrows audit queries. Zero values mean "no constraint".
type Filter struct {
	PrincipalID string
	From        time.Time
	To          time.Time
	Limit       int
}

// Store persists scope switches. Append must be durable before it returns:
// a scope change and its audit record are transactionally linked, so a failed
// append fails the whole switch.
type Store interface {
	Append(ctx context.Context, rec ScopeSwitch) error
	Query(ctx context.Context, f Filter) ([]ScopeSwitch, error)
}
