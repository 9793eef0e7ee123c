package heuristics

import (
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/xoelrdgz/pagewarden/internal/domain"
)

// ListenerCounter counts keyboard listener registrations per tab.
type ListenerCounter struct {
	mu     sync.Mutex
	counts *lru.Cache[domain.TabID, int]
}

func NewListenerCounter() *ListenerCounter {
	cache, _ := lru.New[domain.TabID, int](maxTrackedTabs)
	return &ListenerCounter{counts: cache}
}

// IsKeyEvent reports whether eventType is keydown, keypress or keyup.
func IsKeyEvent(eventType string) bool {
	switch strings.ToLower(eventType) {
	case "keydown", "keypress", "keyup":
		return true
	}
	return false
}

// Add counts one registration of eventType on tab.
//
// Returns:
//   - The tab's running count of keyboard listeners
//   - false when eventType is not a keyboard event (nothing counted)
func (c *ListenerCounter) Add(tab domain.TabID, eventType string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	count, _ := c.counts.Peek(tab)
	if !IsKeyEvent(eventType) {
		return count, false
	}
	count++
	c.counts.Add(tab, count)
	return count, true
}

// Reset clears the tab's count, e.g. after it navigated to a new document.
func (c *ListenerCounter) Reset(tab domain.TabID) {
	c.counts.Remove(tab)
}

func (c *ListenerCounter) Len() int {
	return c.counts.Len()
}
