// Package classifier turns browser signals into detection events.
//
// The Classifier consults the rule catalog for patterns, categories and
// severities and the heuristics session for everything stateful (request
// bursts, gestures, key listeners). Entry points never panic and never return
// errors: malformed input yields fewer events, not failures.
package classifier

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/pagewarden/internal/domain"
	"github.com/xoelrdgz/pagewarden/internal/heuristics"
	"github.com/xoelrdgz/pagewarden/internal/ports"
	"github.com/xoelrdgz/pagewarden/internal/rules"
)

// Classifier evaluates signals against the active catalog.
//
// Thread Safety: Safe for concurrent use. Per-tab ordering is the caller's
// concern (the worker pool shards by tab).
type Classifier struct {
	catalog atomic.Pointer[rules.Catalog]
	session *heuristics.Session
	intel   ports.HostIntelligence
}

// New creates a classifier.
//
// Parameters:
//   - catalog: Active rule catalog (nil: built-in catalog)
//   - session: Heuristic state owner
//   - intel: Known-bad host source, may be nil
func New(catalog *rules.Catalog, session *heuristics.Session, intel ports.HostIntelligence) *Classifier {
	if catalog == nil {
		catalog = rules.Default()
	}
	c := &Classifier{
		session: session,
		intel:   intel,
	}
	c.SetCatalog(catalog)
	return c
}

// SetCatalog swaps the active catalog and applies its thresholds to the
// session heuristics. A gesture window pinned by the operator is kept.
func (c *Classifier) SetCatalog(catalog *rules.Catalog) {
	if catalog == nil {
		return
	}
	c.catalog.Store(catalog)

	if burst, ok := catalog.BurstThreshold(); ok {
		c.session.Burst.Configure(burst.Count, burst.Window)
	}
	if m, ok := thresholdOf(catalog, domain.TypeDownloadWithoutGesture); ok {
		c.session.Gestures.Configure(m.Window)
	}

	log.Debug().
		Str("version", catalog.Version()).
		Int("rules", catalog.Len()).
		Msg("Rule catalog activated")
}

func (c *Classifier) Catalog() *rules.Catalog {
	return c.catalog.Load()
}

func (c *Classifier) Session() *heuristics.Session {
	return c.session
}

// Classify dispatches a signal to its entry point. Signals are passed by
// value; anything else yields no events.
func (c *Classifier) Classify(sig domain.Signal) []*domain.DetectionEvent {
	switch s := sig.(type) {
	case domain.RequestSignal:
		return c.OnRequest(s)
	case domain.HeadersSignal:
		return c.OnResponseHeaders(s)
	case domain.PageSignal:
		return c.OnPageSignal(s)
	case domain.GestureSignal:
		c.OnGesture(s)
		return nil
	case domain.DOMSignal:
		return c.OnDOMObservation(s)
	default:
		return nil
	}
}

// OnGesture records a user gesture for the tab. Gestures never produce
// events.
func (c *Classifier) OnGesture(sig domain.GestureSignal) {
	c.session.Gestures.Record(sig.TabID, c.session.Now())
}

// emit builds an event from the rule bound to eventType. A type without a
// rule in the active catalog (disabled by a rules file) emits nothing.
func emit(catalog *rules.Catalog, now time.Time, rawURL, eventType, details string) *domain.DetectionEvent {
	rule, ok := catalog.ForType(eventType)
	if !ok {
		return nil
	}
	return domain.NewDetectionEvent(now, rawURL, rule.Type, rule.Category, rule.Severity, details, rule.ID)
}

func matches(catalog *rules.Catalog, eventType string, s rules.Subject) bool {
	rule, ok := catalog.ForType(eventType)
	return ok && rule.Matches(s)
}

func thresholdOf(catalog *rules.Catalog, eventType string) (*rules.ThresholdMatcher, bool) {
	rule, ok := catalog.ForType(eventType)
	if !ok {
		return nil, false
	}
	m, ok := rule.Matcher.(*rules.ThresholdMatcher)
	return m, ok
}

type eventList []*domain.DetectionEvent

func (l *eventList) add(event *domain.DetectionEvent) {
	if event != nil {
		*l = append(*l, event)
	}
}

// prefix returns the first n runes of s.
func prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func isHTTPS(rawURL string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(rawURL)), "https://")
}
