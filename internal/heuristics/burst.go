// Package heuristics holds the time-windowed state behind the behavioral
// rules: request bursts, user gestures, alert de-duplication and keyboard
// listener counting.
//
// Every component takes explicit timestamps so the owning Session can drive
// them from one injected Clock.
//
// Thread Safety: all exported methods are safe for concurrent access.
package heuristics

import (
	"strconv"
	"sync"
	"time"

	"github.com/xoelrdgz/pagewarden/internal/domain"
)

const globalScope = "global"

// BurstConfig configures the request burst detector.
type BurstConfig struct {
	Threshold int           // Requests in window to fire (default: 10)
	Window    time.Duration // Sliding window (default: 2s)
	PerTab    bool          // Track one window per tab instead of one global window
}

// DefaultBurstConfig returns the thresholds used by the built-in catalog.
func DefaultBurstConfig() BurstConfig {
	return BurstConfig{
		Threshold: 10,
		Window:    2 * time.Second,
	}
}

// BurstDetector keeps a sliding window of request timestamps per scope.
//
// Firing Rule:
//   - Each observation appends now, then drops every timestamp t with
//     now - t >= Window.
//   - Fires when the remaining count reaches Threshold.
//
// There is no cooldown: while the window stays full every further request
// fires again.
type BurstDetector struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	perTab    bool
	scopes    map[string][]int64 // scope -> unix millis, oldest first
}

// NewBurstDetector creates a burst detector.
//
// Parameters:
//   - config: Threshold and window (defaults applied when <= 0)
//
// Returns:
//   - BurstDetector with no recorded requests
func NewBurstDetector(config BurstConfig) *BurstDetector {
	if config.Threshold <= 0 {
		config.Threshold = 10
	}
	if config.Window <= 0 {
		config.Window = 2 * time.Second
	}
	return &BurstDetector{
		threshold: config.Threshold,
		window:    config.Window,
		perTab:    config.PerTab,
		scopes:    make(map[string][]int64),
	}
}

// Scope returns the window key a request from tab is counted under.
func (b *BurstDetector) Scope(tab domain.TabID) string {
	b.mu.Lock()
	perTab := b.perTab
	b.mu.Unlock()
	if !perTab || !tab.Valid() {
		return globalScope
	}
	return "tab:" + strconv.Itoa(int(tab))
}

// Observe records one request and evaluates the firing rule.
//
// Parameters:
//   - scope: Window key from Scope()
//   - now: Request time
//
// Returns:
//   - count: Requests inside the window, including this one
//   - fired: True when count >= threshold
func (b *BurstDetector) Observe(scope string, now time.Time) (count int, fired bool) {
	ms := now.UnixMilli()

	b.mu.Lock()
	defer b.mu.Unlock()

	window := append(b.scopes[scope], ms)
	window = pruneWindow(window, ms, b.window.Milliseconds())
	b.scopes[scope] = window

	return len(window), len(window) >= b.threshold
}

// Count returns the requests currently inside the scope's window without
// recording a new one.
func (b *BurstDetector) Count(scope string, now time.Time) int {
	ms := now.UnixMilli()
	b.mu.Lock()
	defer b.mu.Unlock()
	window := pruneWindow(b.scopes[scope], ms, b.window.Milliseconds())
	if len(window) == 0 {
		delete(b.scopes, scope)
		return 0
	}
	b.scopes[scope] = window
	return len(window)
}

// Prune drops expired timestamps from every scope and removes empty scopes.
// Called from the Session maintenance tick.
func (b *BurstDetector) Prune(now time.Time) {
	ms := now.UnixMilli()
	b.mu.Lock()
	defer b.mu.Unlock()
	for scope, window := range b.scopes {
		window = pruneWindow(window, ms, b.window.Milliseconds())
		if len(window) == 0 {
			delete(b.scopes, scope)
			continue
		}
		b.scopes[scope] = window
	}
}

// Configure swaps threshold and window, keeping recorded timestamps.
// Used when the rule catalog is reloaded.
func (b *BurstDetector) Configure(threshold int, window time.Duration) {
	if threshold <= 0 || window <= 0 {
		return
	}
	b.mu.Lock()
	b.threshold = threshold
	b.window = window
	b.mu.Unlock()
}

// SetPerTab switches between one global window and one window per tab.
// Windows recorded under the previous scoping are dropped.
func (b *BurstDetector) SetPerTab(perTab bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.perTab == perTab {
		return
	}
	b.perTab = perTab
	b.scopes = make(map[string][]int64)
}

func (b *BurstDetector) PerTab() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.perTab
}

func (b *BurstDetector) Threshold() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.threshold
}

func (b *BurstDetector) Window() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.window
}

// Scopes returns the number of tracked windows.
func (b *BurstDetector) Scopes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.scopes)
}

// pruneWindow keeps timestamps t with now - t < windowMs, preserving order.
func pruneWindow(window []int64, now, windowMs int64) []int64 {
	kept := window[:0]
	for _, t := range window {
		if now-t < windowMs {
			kept = append(kept, t)
		}
	}
	return kept
}
