// Package metrics defines the aggregated KPI value objects produced by the
// metrics aggregator and the port it reads rows through.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/clarident/clarident-go/internal/domain/scope"
)

var (
	// ErrInsufficientData means the period has zero qualifying rows for the
	// scope. Not an abort condition; the caller decides how to render it.
	ErrInsufficientData = errors.New("no qualifying rows for scope and period")

	// ErrAggregationTimeout means the cross-tenant fan-in exceeded its hard
	// timeout. Recoverable once via the stale-cache fallback.
	ErrAggregationTimeout = errors.New("aggregation query timed out")
)

// MetricSet holds the accumulated counters for one tenant (or the system-wide
// totals). Monetary values are integer minor units; rating is carried as an
// integer numerator/denominator pair so cross-tenant averages stay weighted
// by volume. Percentages are derived only at presentation time.
type MetricSet struct {
	ProductionCents       int64 `json:"productionCents"`
	CollectionsCents      int64 `json:"collectionsCents"`
	AppointmentsTotal     int64 `json:"appointmentsTotal"`
	AppointmentsCompleted int64 `json:"appointmentsCompleted"`
	NewPatients           int64 `json:"newPatients"`
	RatingSum             int64 `json:"ratingSum"`
	RatingCount           int64 `json:"ratingCount"`
}

// Add accumulates other into m.
func (m *MetricSet) Add(other MetricSet) {
	m.ProductionCents += other.ProductionCents
	m.CollectionsCents += other.CollectionsCents
	m.AppointmentsTotal += other.AppointmentsTotal
	m.AppointmentsCompleted += other.AppointmentsCompleted
	m.NewPatients += other.NewPatients
	m.RatingSum += other.RatingSum
	m.RatingCount += other.RatingCount
}

// AvgRating derives the volume-weighted average rating, or 0 when no ratings
// were recorded.
func (m MetricSet) AvgRating() float64 {
	if m.RatingCount == 0 {
		return 0
	}
	return float64(m.RatingSum) / float64(m.RatingCount)
}

// CompletionRate derives the completed-appointment ratio, or 0 when the
// period booked no appointments.
func (m MetricSet) CompletionRate() float64 {
	if m.AppointmentsTotal == 0 {
		return 0
	}
	return float64(m.AppointmentsCompleted) / float64(m.AppointmentsTotal)
}

// Trend is the period-over-period change of one metric. Undefined when the
// previous period's value was zero.
type Trend struct {
	Pct     float64 `json:"pct"`
	Defined bool    `json:"defined"`
}

// TrendOf computes (current - previous) / previous.
func TrendOf(current, previous int64) Trend {
	if previous == 0 {
		return Trend{}
	}
	return Trend{Pct: float64(current-previous) / float64(previous), Defined: true}
}

// TrendOfFloat is TrendOf for metrics derived at presentation time, like the
// weighted average rating.
func TrendOfFloat(current, previous float64) Trend {
	if previous == 0 {
		return Trend{}
	}
	return Trend{Pct: (current - previous) / previous, Defined: true}
}

// Aggregated is the immutable result of one aggregation pass. Superseded, not
// mutated, on recomputation; value semantics make concurrent reads safe.
type Aggregated struct {
	Scope      scope.Selection      `json:"scope"`
	Period     Period               `json:"period"`
	Totals     MetricSet            `json:"totals"`
	Breakdown  map[string]MetricSet `json:"breakdown"`
	Trends     map[string]Trend     `json:"trends,omitempty"`
	ComputedAt time.Time            `json:"computedAt"`
	Stale      bool                 `json:"stale,omitempty"`
}

// Repository reads grouped metric rows from the datastore. Implementations
// must issue exactly one query per call: for the cross-tenant scope the query
// groups by tenant rather than fanning out per tenant.
type Repository interface {
	// ScopeRows returns the per-tenant metric sets for the selection and
	// period. An empty map means no qualifying rows. Queries run on the
	// caller's bound connection so the storage engine's row policy applies.
	ScopeRows(ctx context.Context, sel scope.Selection, period Period) (map[string]MetricSet, error)
}
