// Package services contains the application layer: orchestration over the
// domain ports, one service per concern.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"

	domainaudit "github.com/clarident/clarident-go/internal/domain/audit"
	"github.com/clarident/clarident-go/internal/domain/scope"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/logging"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/monitoring"
	"github.com/clarident/clarident-go/internal/infrastructure/persistence/scopestate"
	"github.com/clarident/clarident-go/internal/infrastructure/ratelimit"
	"github.com/clarident/clarident-go/internal/infrastructure/security"
	"github.com/clarident/clarident-go/pkg/config"
)

// casAttempts bounds the last-writer-wins retry loop. Contention on a single
// principal's record is two browser tabs, not a thundering herd.
const casAttempts = 5

// ScopeService owns every read and write of a principal's scope selection.
type ScopeService struct {
	directory scope.Directory
	records   scopestate.Store
	audits    domainaudit.Store
	limiter   *ratelimit.FixedWindow
	logger    *logging.ChanneledLogger
	clk       clock.Clock
}

// NewScopeService creates the scope service.
func NewScopeService(
	directory scope.Directory,
	records scopestate.Store,
	audits domainaudit.Store,
	limiter *ratelimit.FixedWindow,
	logger *logging.ChanneledLogger,
	clk clock.Clock,
) *ScopeService {
	if clk == nil {
		clk = clock.New()
	}
	return &ScopeService{
		directory: directory,
		records:   records,
		audits:    audits,
		limiter:   limiter,
		logger:    logger,
		clk:       clk,
	}
}

// GetScope returns the principal's persisted scope, lazily initializing it to
// the default on first use. Repeated calls without an intervening SetScope
// always return the same value.
func (s *ScopeService) GetScope(ctx context.Context, principal scope.Principal) (scope.Selection, error) {
	record, err := s.records.Get(ctx, principal.ID)
	if err != nil {
		return scope.Selection{}, fmt.Errorf("read scope record: %w", err)
	}
	if record != nil {
		return record.Selection, nil
	}

	def := principal.DefaultSelection()
	if def.Kind == scope.KindSingle && def.TenantID == "" {
		return scope.Selection{}, fmt.Errorf("principal %s has no entitlements: %w", principal.ID, scope.ErrNotFound)
	}

	swapped, err := s.records.CompareAndSwap(ctx, principal.ID, nil, scopestate.Record{
		Selection: def,
		UpdatedAt: s.clk.Now().UTC(),
	}, config.ScopeRecordTTL)
	if err != nil {
		return scope.Selection{}, fmt.Errorf("persist default scope: %w", err)
	}
	if !swapped {
		// A concurrent request initialized the record first; its value is
		// now the durable one.
		record, err = s.records.Get(ctx, principal.ID)
		if err != nil {
			return scope.Selection{}, fmt.Errorf("re-read scope record: %w", err)
		}
		if record != nil {
			return record.Selection, nil
		}
	}
	return def, nil
}

// SetScope switches the principal to the requested selection. The rate check
// runs before any validation or persistence work. The audit write is part of
// the success path: if it fails, the switch is rolled back and the call fails.
func (s *ScopeService) SetScope(ctx context.Context, principal scope.Principal, requested scope.Selection, correlationID string) (scope.Selection, error) {
	if !s.limiter.Allow(principal.ID) {
		s.reject(principal, requested, "rate_limited")
		return scope.Selection{}, scope.ErrRateLimited
	}

	if err := s.validate(ctx, principal, requested); err != nil {
		outcome := "forbidden"
		if errors.Is(err, scope.ErrUnknownTenant) {
			outcome = "unknown_tenant"
		}
		s.reject(principal, requested, outcome)
		return scope.Selection{}, err
	}

	previous, err := s.GetScope(ctx, principal)
	if err != nil {
		return scope.Selection{}, err
	}

	newRecord := scopestate.Record{
		Selection: requested,
		UpdatedAt: s.clk.Now().UTC(),
	}
	if err := s.persist(ctx, principal.ID, previous, newRecord); err != nil {
		monitoring.ScopeSwitchesTotal.WithLabelValues("error").Inc()
		return scope.Selection{}, err
	}

	entry := domainaudit.ScopeSwitch{
		ID:            security.GenerateULID(),
		PrincipalID:   principal.ID,
		From:          previous,
		To:            requested,
		CorrelationID: correlationID,
		CreatedAt:     s.clk.Now().UTC(),
	}
	if err := s.audits.Append(ctx, entry); err != nil {
		// The switch and its audit trail stand or fall together. Roll the
		// record back so the durable state never outruns the trail.
		s.rollback(ctx, principal.ID, requested, previous)
		monitoring.ScopeSwitchesTotal.WithLabelValues("error").Inc()
		return scope.Selection{}, fmt.Errorf("audit scope switch: %w", err)
	}

	monitoring.ScopeSwitchesTotal.WithLabelValues("accepted").Inc()
	s.logger.LogScopeSwitch(principal.ID, previous.String(), requested.String(), true, "")
	return requested, nil
}

func (s *ScopeService) validate(ctx context.Context, principal scope.Principal, requested scope.Selection) error {
	switch requested.Kind {
	case scope.KindAll:
		if !principal.Elevated {
			return scope.ErrForbidden
		}
		return nil
	case scope.KindSingle:
		exists, err := s.directory.Exists(ctx, requested.TenantID)
		if err != nil {
			return fmt.Errorf("check tenant exists: %w", err)
		}
		if !exists {
			return scope.ErrUnknownTenant
		}
		entitled, err := s.directory.IsEntitled(ctx, principal, requested.TenantID)
		if err != nil {
			return fmt.Errorf("check entitlement: %w", err)
		}
		if !entitled {
			return scope.ErrForbidden
		}
		return nil
	default:
		return scope.ErrUnknownTenant
	}
}

// persist writes newRecord over previous with last-writer-wins semantics:
// on a lost race the expected value is refreshed and the write retried.
func (s *ScopeService) persist(ctx context.Context, principalID string, previous scope.Selection, newRecord scopestate.Record) error {
	expected := &scopestate.Record{Selection: previous}
	for attempt := 0; attempt < casAttempts; attempt++ {
		swapped, err := s.records.CompareAndSwap(ctx, principalID, expected, newRecord, config.ScopeRecordTTL)
		if err != nil {
			return fmt.Errorf("persist scope record: %w", err)
		}
		if swapped {
			return nil
		}
		current, err := s.records.Get(ctx, principalID)
		if err != nil {
			return fmt.Errorf("re-read scope record: %w", err)
		}
		expected = current
	}
	return fmt.Errorf("persist scope record for %s: contention exhausted retries", principalID)
}

// rollback undoes a scope write whose audit append failed. A lost rollback
// race means another switch already landed; that switch carries its own
// trail, so the record is left alone.
func (s *ScopeService) rollback(ctx context.Context, principalID string, written, previous scope.Selection) {
	_, err := s.records.CompareAndSwap(ctx, principalID, &scopestate.Record{Selection: written}, scopestate.Record{
		Selection: previous,
		UpdatedAt: s.clk.Now().UTC(),
	}, config.ScopeRecordTTL)
	if err != nil && s.logger != nil {
		s.logger.Audit().Error("Scope rollback failed",
			"principalId", principalID,
			"error", err.Error(),
		)
	}
}

func (s *ScopeService) reject(principal scope.Principal, requested scope.Selection, outcome string) {
	monitoring.ScopeSwitchesTotal.WithLabelValues(outcome).Inc()
	if s.logger != nil {
		s.logger.LogScopeSwitch(principal.ID, "", requested.String(), false, outcome)
	}
}
