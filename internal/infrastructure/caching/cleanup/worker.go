// Package cleanup provides background worker
package cleanup

import (
	"context"
	"fmt"
	"log"

	"github.com/benbjohnson/clock"

	"github.com/clarident/clarident-go/internal/infrastructure/caching/manager"
	"github.com/clarident/clarident-go/internal/infrastructure/caching/types"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/monitoring"
)

// Worker handles background cache cleanup operations. Each pass removes only
// logically-expired entries; unexpired entries are never evicted to make
// room. Tiers still over their fill threshold afterwards are surfaced as an
// operational metric instead.
type Worker struct {
	cache  *manager.Manager
	config *Config
	clock  clock.Clock
}

// NewWorker creates a new cleanup worker with injected configuration
func NewWorker(cache *manager.Manager, config *Config, clk clock.Clock) *Worker {
	return &Worker{
		cache:  cache,
		config: config,
		clock:  clk,
	}
}

// Start begins the cleanup worker routine, using the configured interval
func (w *Worker) Start(ctx context.Context) {
	ticker := w.clock.Ticker(w.config.CleanupInterval)
	defer ticker.Stop()

	log.Printf("Cache cleanup worker started (interval: %v, verbose: %v)",
		w.config.CleanupInterval, w.config.VerboseReporting)

	for {
		select {
		case <-ctx.Done():
			log.Println("Cache cleanup worker stopping...")
			return
		case <-ticker.C:
			w.PerformCleanup(ctx)
		}
	}
}

// PerformCleanup executes one expiry sweep across all tiers.
func (w *Worker) PerformCleanup(ctx context.Context) {
	start := w.clock.Now()
	reporter := NewReporter(w.cache)

	if w.config.VerboseReporting {
		reporter.LogStage("PERIODIC CACHE CLEANUP")
		fmt.Print(reporter.GenerateTierReport(ctx, w.config.FillThresholds))
	}

	var totalCleaned int
	for _, tier := range w.cache.Tiers() {
		select {
		case <-ctx.Done():
			return
		default:
			totalCleaned += w.cleanupTier(ctx, tier, reporter)
		}
	}

	duration := w.clock.Now().Sub(start)
	if totalCleaned > 0 {
		reporter.LogSuccess("Cache cleanup finished: %d expired entries removed in %v", totalCleaned, duration)
	} else if w.config.VerboseReporting {
		reporter.LogInfo("Cache cleanup completed - no expired items found (%v)", duration)
	}
}

// cleanupTier removes logically-expired entries from one tier and refreshes
// its occupancy gauge.
func (w *Worker) cleanupTier(ctx context.Context, tier types.Tier, reporter *Reporter) int {
	store, ok := w.cache.Store(tier)
	if !ok {
		return 0
	}

	keys, err := store.Keys(ctx)
	if err != nil {
		reporter.LogError(fmt.Sprintf("Cache cleanup failed to list %s tier keys", tier), err)
		return 0
	}

	now := w.clock.Now()
	cleaned := 0
	for _, key := range keys {
		entry, found, err := store.Get(ctx, key)
		if err != nil || !found {
			continue
		}
		if entry.Expired(now) {
			if err := store.Delete(ctx, key); err == nil {
				cleaned++
			}
		}
	}

	remaining, err := store.Len(ctx)
	if err != nil {
		return cleaned
	}
	monitoring.CacheEntries.WithLabelValues(string(tier)).Set(float64(remaining))

	if limit, ok := w.config.FillThresholds[tier]; ok && remaining > limit {
		monitoring.CacheFillBreachesTotal.WithLabelValues(string(tier)).Inc()
		reporter.LogWarning("%s tier still holds %d entries after expiry sweep (threshold %d); shorten TTLs",
			tier, remaining, limit)
	}

	return cleaned
}
