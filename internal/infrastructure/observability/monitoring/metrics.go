// Package monitoring defines and registers all custom Prometheus metrics for
// Clarident. It is the single source of truth for metric names, labels, and
// help strings.
//
// Metrics register with the default Prometheus registry via promauto; expose
// them with promhttp on /metrics.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clarident"

// ── Cache metrics ─────────────────────────────────────────────────────────────

// CacheEntries tracks the current number of live entries per tier.
// Label:
//   - tier: "memory", "durable", or "backup"
var CacheEntries = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_entries",
		Help:      "Current number of entries held by each cache tier.",
	},
	[]string{"tier"},
)

// CacheFillBreachesTotal counts cleanup passes that left a tier above its
// configured fill threshold after expired entries were removed. Growth is
// surfaced here rather than handled by evicting live data.
var CacheFillBreachesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_fill_breaches_total",
		Help:      "Cleanup passes that could not bring a tier under its fill threshold by expiry alone.",
	},
	[]string{"tier"},
)

// CacheRequestsTotal counts cache lookups.
// Labels:
//   - tier: tier that answered (or the preferred tier on a full miss)
//   - result: "hit", "miss", or "promoted" (hit in a non-preferred tier)
var CacheRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_requests_total",
		Help:      "Total cache lookups, labelled by answering tier and result.",
	},
	[]string{"tier", "result"},
)

// ── Scope metrics ─────────────────────────────────────────────────────────────

// ScopeSwitchesTotal counts scope switch attempts.
// Label:
//   - outcome: "accepted", "forbidden", "unknown_tenant", "rate_limited", "error"
var ScopeSwitchesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scope_switches_total",
		Help:      "Total scope switch attempts, labelled by outcome.",
	},
	[]string{"outcome"},
)

// SecurityDowngradesTotal counts binder fail-closed events. Any non-zero
// value deserves investigation: it means elevation could not be verified for
// a request that asked for the cross-tenant view.
var SecurityDowngradesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "security_downgrades_total",
		Help:      "Requests the session security binder bound to the restrictive fallback scope.",
	},
)

// ── Aggregation metrics ───────────────────────────────────────────────────────

// AggregationDuration measures one aggregation pass end-to-end.
// Label:
//   - scope: "single" or "all"
var AggregationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "aggregation_duration_seconds",
		Help:      "Duration of metrics aggregation from cache check to result.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"scope"},
)

// AggregationStaleServesTotal counts responses served from the stale-cache
// fallback after an aggregation timeout.
var AggregationStaleServesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "aggregation_stale_serves_total",
		Help:      "Aggregation responses served stale from cache after a timeout.",
	},
)
