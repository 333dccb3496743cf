// Package audit provides persistence for the scope-switch audit trail.
//
// The trail is append-only. Nothing in the codebase updates or deletes rows
// once written.
package audit

import (
	"context"
	"fmt"
	"time"

	domain "github.com/clarident/clarident-go/internal/domain/audit"
	"github.com/clarident/clarident-go/internal/domain/scope"
	"github.com/clarident/clarident-go/internal/infrastructure/persistence/database"
)

// Interface assertion.
var _ domain.Store = (*SQLStore)(nil)

// SQLStore writes audit entries to the primary database. Append returns only
// after the row is committed, so callers can treat a nil error as durable.
type SQLStore struct {
	db *database.DB
}

// NewSQLStore creates the audit store and ensures its table exists.
func NewSQLStore(db *database.DB) (*SQLStore, error) {
	store := &SQLStore{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_scope_switches (
			id TEXT PRIMARY KEY,
			principal_id TEXT NOT NULL,
			from_kind TEXT NOT NULL,
			from_tenant TEXT NOT NULL DEFAULT '',
			to_kind TEXT NOT NULL,
			to_tenant TEXT NOT NULL DEFAULT '',
			correlation_id TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("create audit table: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_audit_scope_switches_principal
		ON audit_scope_switches (principal_id, created_at)`)
	if err != nil {
		return fmt.Errorf("create audit index: %w", err)
	}
	return nil
}

// Append durably records one scope switch.
func (s *SQLStore) Append(ctx context.Context, entry domain.ScopeSwitch) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_scope_switches
			(id, principal_id, from_kind, from_tenant, to_kind, to_tenant, correlation_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.PrincipalID,
		string(entry.From.Kind),
		entry.From.TenantID,
		string(entry.To.Kind),
		entry.To.TenantID,
		entry.CorrelationID,
		entry.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// Query returns matching entries newest first.
func (s *SQLStore) Query(ctx context.Context, filter domain.Filter) ([]domain.ScopeSwitch, error) {
	query := `
		SELECT id, principal_id, from_kind, from_tenant, to_kind, to_tenant, correlation_id, created_at
		FROM audit_scope_switches
		WHERE 1=1`
	var args []any

	if filter.PrincipalID != "" {
		query += ` AND principal_id = ?`
		args = append(args, filter.PrincipalID)
	}
	if !filter.From.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.From.Unix())
	}
	if !filter.To.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, filter.To.Unix())
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.ScopeSwitch
	for rows.Next() {
		var (
			entry                              domain.ScopeSwitch
			fromKind, toKind                   string
			createdAt                          int64
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.PrincipalID,
			&fromKind,
			&entry.From.TenantID,
			&toKind,
			&entry.To.TenantID,
			&entry.CorrelationID,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.From.Kind = scope.Kind(fromKind)
		entry.To.Kind = scope.Kind(toKind)
		entry.CreatedAt = time.Unix(createdAt, 0).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}
