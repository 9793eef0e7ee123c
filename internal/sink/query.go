package sink

import (
	"sort"
	"strings"

	"github.com/xoelrdgz/pagewarden/internal/domain"
)

// Filter selects events. Zero values match everything; set fields combine
// with AND.
type Filter struct {
	Origin      string           // Exact origin, case-insensitive
	Category    domain.Category  // Exact category
	MinSeverity *domain.Severity // Severity at or above
	Limit       int              // Maximum results, <= 0 for all
}

func (f Filter) matches(e *domain.DetectionEvent) bool {
	if f.Origin != "" && !strings.EqualFold(e.Origin, f.Origin) {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.MinSeverity != nil && !e.Severity.AtLeast(*f.MinSeverity) {
		return false
	}
	return true
}

// Query returns matching events, most recent first.
func (l *EventLog) Query(f Filter) []*domain.DetectionEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	all := l.snapshotLocked()
	result := make([]*domain.DetectionEvent, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if !f.matches(all[i]) {
			continue
		}
		result = append(result, all[i])
		if f.Limit > 0 && len(result) == f.Limit {
			break
		}
	}
	return result
}

// Origins returns the distinct origins in the log, sorted.
func (l *EventLog) Origins() []string {
	seen := make(map[string]struct{})
	for _, e := range l.Snapshot() {
		seen[e.Origin] = struct{}{}
	}
	origins := make([]string, 0, len(seen))
	for o := range seen {
		origins = append(origins, o)
	}
	sort.Strings(origins)
	return origins
}

// OriginSummary counts one origin's events per category.
type OriginSummary struct {
	Origin   string                  `json:"origin"`
	Counts   map[domain.Category]int `json:"counts"`
	Total    int                     `json:"total"`
	Critical int                     `json:"critical"`
	LastSeen int64                   `json:"lastSeen"`
}

// Summary groups the log by origin, busiest origin first.
func (l *EventLog) Summary() []OriginSummary {
	byOrigin := make(map[string]*OriginSummary)
	for _, e := range l.Snapshot() {
		s, ok := byOrigin[e.Origin]
		if !ok {
			s = &OriginSummary{Origin: e.Origin, Counts: make(map[domain.Category]int, len(domain.AllCategories))}
			byOrigin[e.Origin] = s
		}
		s.Counts[e.Category]++
		s.Total++
		if e.Severity == domain.SeverityCritical {
			s.Critical++
		}
		if e.Time > s.LastSeen {
			s.LastSeen = e.Time
		}
	}

	result := make([]OriginSummary, 0, len(byOrigin))
	for _, s := range byOrigin {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Total != result[j].Total {
			return result[i].Total > result[j].Total
		}
		return result[i].Origin < result[j].Origin
	})
	return result
}

// CategoryCounts counts every event in the log by category.
func (l *EventLog) CategoryCounts() map[domain.Category]int {
	counts := make(map[domain.Category]int, len(domain.AllCategories))
	for _, c := range domain.AllCategories {
		counts[c] = 0
	}
	for _, e := range l.Snapshot() {
		counts[e.Category]++
	}
	return counts
}
