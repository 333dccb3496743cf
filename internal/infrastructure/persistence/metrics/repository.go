// Package metrics provides the concrete SQL-based implementation of the
// aggregator's row source.
//
// PURPOSE: read grouped KPI rows for a scope and period in a single query.
// The cross-tenant scope groups by tenant instead of fanning out one query
// per tenant.
package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domain "github.com/clarident/clarident-go/internal/domain/metrics"
	"github.com/clarident/clarident-go/internal/domain/scope"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/logging"
	"github.com/clarident/clarident-go/pkg/config"
)

// Querier is the slice of a bound connection the repository needs. *sql.Conn
// satisfies it; queries run on the request's bound connection so the storage
// engine's row policy applies to every row returned.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Interface assertion.
var _ domain.Repository = (*SQLRepository)(nil)

// SQLRepository reads appointment-ledger rows grouped by tenant. Constructed
// per request around that request's bound connection.
type SQLRepository struct {
	conn   Querier
	logger *logging.ChanneledLogger
}

// NewSQLRepository creates a new instance of the repository.
func NewSQLRepository(conn Querier, logger *logging.ChanneledLogger) *SQLRepository {
	return &SQLRepository{conn: conn, logger: logger}
}

const scopeRowsQuery = `
	SELECT tenant_id,
	       COALESCE(SUM(production_cents), 0),
	       COALESCE(SUM(collections_cents), 0),
	       COUNT(*),
	       COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
	       COALESCE(SUM(CASE WHEN is_new_patient = 1 THEN 1 ELSE 0 END), 0),
	       COALESCE(SUM(CASE WHEN rating IS NOT NULL THEN rating ELSE 0 END), 0),
	       COALESCE(SUM(CASE WHEN rating IS NOT NULL THEN 1 ELSE 0 END), 0)
	FROM appointments
	WHERE starts_at >= ? AND starts_at < ?`

// ScopeRows returns the per-tenant metric sets for the selection and period
// with exactly one query. An empty map means no qualifying rows.
func (r *SQLRepository) ScopeRows(ctx context.Context, sel scope.Selection, period domain.Period) (map[string]domain.MetricSet, error) {
	query := scopeRowsQuery
	args := []any{period.Start().Unix(), period.End().Unix()}

	// The row policy on the bound connection already filters non-bypass
	// sessions; the explicit predicate keeps the single-tenant plan narrow.
	if sel.Kind == scope.KindSingle {
		query += ` AND tenant_id = ?`
		args = append(args, sel.TenantID)
	}
	query += ` GROUP BY tenant_id`

	start := time.Now()
	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scope rows: %w", err)
	}
	defer rows.Close()

	result := make(map[string]domain.MetricSet)
	for rows.Next() {
		var (
			tenantID string
			set      domain.MetricSet
		)
		if err := rows.Scan(
			&tenantID,
			&set.ProductionCents,
			&set.CollectionsCents,
			&set.AppointmentsTotal,
			&set.AppointmentsCompleted,
			&set.NewPatients,
			&set.RatingSum,
			&set.RatingCount,
		); err != nil {
			return nil, fmt.Errorf("scan scope row: %w", err)
		}
		result[tenantID] = set
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scope rows: %w", err)
	}

	duration := time.Since(start)
	if r.logger != nil && duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration, sel.TenantID)
	}

	return result, nil
}
