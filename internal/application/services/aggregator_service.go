package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/clarident/clarident-go/internal/domain/metrics"
	"github.com/clarident/clarident-go/internal/domain/scope"
	"github.com/clarident/clarident-go/internal/infrastructure/caching"
	"github.com/clarident/clarident-go/internal/infrastructure/caching/interfaces"
	"github.com/clarident/clarident-go/internal/infrastructure/caching/types"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/logging"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/monitoring"
	"github.com/clarident/clarident-go/pkg/config"
)

// AggregatorService computes dashboard metrics for a scope and period, cache
// first. The repository is per-request: it wraps the request's bound
// connection, so the service never touches the datastore on its own.
type AggregatorService struct {
	cache  interfaces.Cache
	flight *caching.FlightLock
	logger *logging.ChanneledLogger
	clk    clock.Clock
}

// NewAggregatorService creates the aggregator service.
func NewAggregatorService(cache interfaces.Cache, logger *logging.ChanneledLogger, clk clock.Clock) *AggregatorService {
	if clk == nil {
		clk = clock.New()
	}
	return &AggregatorService{
		cache:  cache,
		flight: caching.NewFlightLock(),
		logger: logger,
		clk:    clk,
	}
}

// dashboardKey derives the cache key. Single-tenant keys share the tenant's
// prefix so InvalidateTenant can sweep them without enumerating periods.
func dashboardKey(sel scope.Selection, period metrics.Period) string {
	if sel.Kind == scope.KindSingle {
		return fmt.Sprintf("tenant:%s:dashboard:%s", sel.TenantID, period)
	}
	return fmt.Sprintf("dashboard:all:%s", period)
}

// Compute returns the aggregated metrics for the selection and period. The
// cross-tenant pass carries a hard timeout; on timeout the last cached result
// for that scope is served marked stale, if one exists.
func (s *AggregatorService) Compute(ctx context.Context, repo metrics.Repository, sel scope.Selection, period metrics.Period) (*metrics.Aggregated, error) {
	key := dashboardKey(sel, period)

	lookupStart := time.Now()
	if entry, found := s.cache.Get(ctx, key, types.TierMemory); found {
		if agg, err := decodeAggregated(entry.Payload); err == nil {
			s.logger.LogCacheOperation("get", key, string(entry.Tier), true, time.Since(lookupStart))
			return agg, nil
		}
		// Unreadable payloads are dropped and recomputed.
		s.cache.Invalidate(ctx, key)
	}

	computeCtx := ctx
	if sel.Kind == scope.KindAll {
		var cancel context.CancelFunc
		computeCtx, cancel = context.WithTimeout(ctx, config.AggregationTimeout)
		defer cancel()
	}

	start := time.Now()
	agg, err := s.computeFresh(computeCtx, repo, sel, period)
	monitoring.AggregationDuration.WithLabelValues(string(sel.Kind)).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return s.serveStale(ctx, key, sel)
		}
		return nil, err
	}

	// One writer per key is enough; concurrent losers still return their own
	// freshly computed copy.
	if s.flight.TryLock(key) {
		defer s.flight.Unlock(key)
		if payload, err := json.Marshal(agg); err == nil {
			s.cache.Set(ctx, key, payload, []types.Tier{types.TierMemory, types.TierDurable}, config.DashboardTTL)
		}
	}
	return agg, nil
}

// InvalidateTenant drops every cached result derived from the tenant's data,
// including the cross-tenant dashboards that fold it in. Called by
// data-mutation collaborators.
func (s *AggregatorService) InvalidateTenant(ctx context.Context, tenantID string) int {
	removed := s.cache.InvalidatePrefix(ctx, "tenant:"+tenantID)
	removed += s.cache.InvalidatePrefix(ctx, "dashboard:all")
	s.logger.Cache().Info("Tenant cache invalidated",
		"tenantId", tenantID,
		"entriesRemoved", removed,
	)
	return removed
}

func (s *AggregatorService) computeFresh(ctx context.Context, repo metrics.Repository, sel scope.Selection, period metrics.Period) (*metrics.Aggregated, error) {
	current, err := s.aggregate(ctx, repo, sel, period)
	if err != nil {
		return nil, err
	}

	previous, err := s.aggregate(ctx, repo, sel, period.Previous())
	if err != nil && !errors.Is(err, metrics.ErrInsufficientData) {
		return nil, err
	}
	var prevTotals metrics.MetricSet
	if previous != nil {
		prevTotals = previous.Totals
	}
	current.Trends = trendsOf(current.Totals, prevTotals)
	return current, nil
}

// aggregate runs the single grouped query and folds the rows into totals and
// a per-tenant breakdown.
func (s *AggregatorService) aggregate(ctx context.Context, repo metrics.Repository, sel scope.Selection, period metrics.Period) (*metrics.Aggregated, error) {
	rows, err := repo.ScopeRows(ctx, sel, period)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, context.DeadlineExceeded
		}
		return nil, fmt.Errorf("aggregate %s %s: %w", sel, period, err)
	}
	if len(rows) == 0 {
		return nil, metrics.ErrInsufficientData
	}

	var totals metrics.MetricSet
	for _, set := range rows {
		totals.Add(set)
	}
	return &metrics.Aggregated{
		Scope:      sel,
		Period:     period,
		Totals:     totals,
		Breakdown:  rows,
		ComputedAt: s.clk.Now().UTC(),
	}, nil
}

func trendsOf(current, previous metrics.MetricSet) map[string]metrics.Trend {
	return map[string]metrics.Trend{
		"production_cents":       metrics.TrendOf(current.ProductionCents, previous.ProductionCents),
		"collections_cents":      metrics.TrendOf(current.CollectionsCents, previous.CollectionsCents),
		"appointments_total":     metrics.TrendOf(current.AppointmentsTotal, previous.AppointmentsTotal),
		"appointments_completed": metrics.TrendOf(current.AppointmentsCompleted, previous.AppointmentsCompleted),
		"new_patients":           metrics.TrendOf(current.NewPatients, previous.NewPatients),
		"avg_rating":             metrics.TrendOfFloat(current.AvgRating(), previous.AvgRating()),
		"completion_rate":        metrics.TrendOfFloat(current.CompletionRate(), previous.CompletionRate()),
	}
}

// serveStale is the single internal fallback after a cross-tenant timeout.
// The datastore is not retried within the request.
func (s *AggregatorService) serveStale(ctx context.Context, key string, sel scope.Selection) (*metrics.Aggregated, error) {
	entry, found := s.cache.GetStale(ctx, key)
	if !found {
		return nil, metrics.ErrAggregationTimeout
	}
	agg, err := decodeAggregated(entry.Payload)
	if err != nil {
		s.cache.Invalidate(ctx, key)
		return nil, metrics.ErrAggregationTimeout
	}

	stale := *agg
	stale.Stale = true
	monitoring.AggregationStaleServesTotal.Inc()
	s.logger.Metrics().Warn("Aggregation timed out, serving cached result",
		"scope", sel.String(),
		"computedAt", agg.ComputedAt,
	)
	return &stale, nil
}

func decodeAggregated(payload []byte) (*metrics.Aggregated, error) {
	var agg metrics.Aggregated
	if err := json.Unmarshal(payload, &agg); err != nil {
		return nil, fmt.Errorf("decode aggregated metrics: %w", err)
	}
	return &agg, nil
}
