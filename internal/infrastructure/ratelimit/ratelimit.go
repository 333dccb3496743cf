// Package ratelimit throttles scope switches per principal.
//
// Fixed window: each principal gets at most limit switches per window,
// counted from the first switch in that window. Windows are independent
// per principal.
package ratelimit

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type window struct {
	start time.Time
	count int
}

// FixedWindow is a per-principal fixed-window counter.
type FixedWindow struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	period  time.Duration
	clk     clock.Clock
}

// NewFixedWindow creates a limiter allowing limit events per period. A nil
// clock falls back to the wall clock.
func NewFixedWindow(limit int, period time.Duration, clk clock.Clock) *FixedWindow {
	if clk == nil {
		clk = clock.New()
	}
	return &FixedWindow{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
		clk:     clk,
	}
}

// Allow consumes one slot for the principal and reports whether the event is
// within the limit. Denied events do not consume slots.
func (l *FixedWindow) Allow(principalID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clk.Now()
	w, ok := l.windows[principalID]
	if !ok || now.Sub(w.start) >= l.period {
		l.windows[principalID] = &window{start: now, count: 1}
		return true
	}
	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}

// Remaining reports how many slots the principal has left in the current
// window.
func (l *FixedWindow) Remaining(principalID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clk.Now()
	w, ok := l.windows[principalID]
	if !ok || now.Sub(w.start) >= l.period {
		return l.limit
	}
	if w.count >= l.limit {
		return 0
	}
	return l.limit - w.count
}

// Sweep drops windows that have fully elapsed. The cleanup worker calls this
// so idle principals do not accumulate.
func (l *FixedWindow) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clk.Now()
	removed := 0
	for id, w := range l.windows {
		if now.Sub(w.start) >= l.period {
			delete(l.windows, id)
			removed++
		}
	}
	return removed
}
