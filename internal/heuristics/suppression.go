package heuristics

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/xoelrdgz/pagewarden/internal/domain"
)

// NotificationGate de-duplicates alerts per (tab, title).
//
// Keys are "<tab>|<title>" with "global" standing in for signals without a
// tab. An alert passes when no alert with the same key passed within the
// window; passing records the new time.
type NotificationGate struct {
	mu     sync.Mutex
	window time.Duration
	last   *lru.Cache[string, int64]
}

func NewNotificationGate(window time.Duration) *NotificationGate {
	if window <= 0 {
		window = 3 * time.Second
	}
	cache, _ := lru.New[string, int64](maxTrackedTabs)
	return &NotificationGate{window: window, last: cache}
}

// Configure replaces the window. Non-positive values are ignored.
func (g *NotificationGate) Configure(window time.Duration) {
	if window <= 0 {
		return
	}
	g.mu.Lock()
	g.window = window
	g.mu.Unlock()
}

func (g *NotificationGate) Window() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.window
}

func gateKey(tab domain.TabID, title string) string {
	return tab.Key() + "|" + title
}

// Allow reports whether an alert may be shown now and, if so, records it.
func (g *NotificationGate) Allow(tab domain.TabID, title string, now time.Time) bool {
	key := gateKey(tab, title)
	ms := now.UnixMilli()

	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.last.Peek(key); ok && ms-last < g.window.Milliseconds() {
		return false
	}
	g.last.Add(key, ms)
	return true
}

// Prune forgets keys whose window has elapsed.
func (g *NotificationGate) Prune(now time.Time) {
	ms := now.UnixMilli()
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, key := range g.last.Keys() {
		if last, ok := g.last.Peek(key); ok && ms-last >= g.window.Milliseconds() {
			g.last.Remove(key)
		}
	}
}

func (g *NotificationGate) Len() int {
	return g.last.Len()
}
