package heuristics

import (
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/xoelrdgz/pagewarden/internal/domain"
)

// maxTrackedTabs bounds every per-tab map; least recently used tabs go first.
const maxTrackedTabs = 10000

// GestureTracker remembers the last user gesture per tab.
//
// The window comes from the rule catalog through Configure unless an
// operator value was set with Pin.
type GestureTracker struct {
	mu       sync.Mutex // serializes Record against Prune
	windowMs atomic.Int64
	pinned   atomic.Bool
	last     *lru.Cache[domain.TabID, int64]
}

// NewGestureTracker creates a tracker.
//
// Parameters:
//   - window: How long a gesture counts as recent (default: 2s)
func NewGestureTracker(window time.Duration) *GestureTracker {
	if window <= 0 {
		window = 2 * time.Second
	}
	cache, _ := lru.New[domain.TabID, int64](maxTrackedTabs)
	g := &GestureTracker{last: cache}
	g.windowMs.Store(window.Milliseconds())
	return g
}

// Configure replaces the recency window unless it is pinned. Non-positive
// values are ignored.
func (g *GestureTracker) Configure(window time.Duration) {
	if window > 0 && !g.pinned.Load() {
		g.windowMs.Store(window.Milliseconds())
	}
}

// Pin fixes the window so later Configure calls leave it alone. A
// non-positive window releases the pin and keeps the current value until
// the next Configure.
func (g *GestureTracker) Pin(window time.Duration) {
	if window <= 0 {
		g.pinned.Store(false)
		return
	}
	g.windowMs.Store(window.Milliseconds())
	g.pinned.Store(true)
}

func (g *GestureTracker) Pinned() bool {
	return g.pinned.Load()
}

func (g *GestureTracker) Window() time.Duration {
	return time.Duration(g.windowMs.Load()) * time.Millisecond
}

// Record stores now as the tab's last gesture. Gestures without a tab are
// ignored.
func (g *GestureTracker) Record(tab domain.TabID, now time.Time) {
	if !tab.Valid() {
		return
	}
	g.mu.Lock()
	g.last.Add(tab, now.UnixMilli())
	g.mu.Unlock()
}

// NoRecentGesture reports whether more than the window has passed since the
// tab's last gesture. A tab that never produced a gesture always qualifies.
func (g *GestureTracker) NoRecentGesture(tab domain.TabID, now time.Time) bool {
	last, ok := g.last.Peek(tab)
	if !ok {
		return true
	}
	return now.UnixMilli()-last > g.windowMs.Load()
}

// Prune forgets gestures that are no longer recent. A gesture recorded
// while the prune runs is never dropped.
func (g *GestureTracker) Prune(now time.Time) {
	ms := now.UnixMilli()
	window := g.windowMs.Load()
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, tab := range g.last.Keys() {
		if last, ok := g.last.Peek(tab); ok && ms-last > window {
			g.last.Remove(tab)
		}
	}
}

func (g *GestureTracker) Len() int {
	return g.last.Len()
}
