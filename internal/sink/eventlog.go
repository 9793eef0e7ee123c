// Package sink holds the bounded log of detection events.
//
// The EventLog is a fixed-size ring buffer: once full, each new event
// evicts the oldest one and survivors keep insertion order. An optional
// ports.EventStore mirrors the log to disk; store failures are logged and
// never reach the classifier.
//
// Thread Safety: All methods are safe for concurrent use.
package sink

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/pagewarden/internal/domain"
	"github.com/xoelrdgz/pagewarden/internal/ports"
)

// DefaultMaxEvents is the log capacity when none is configured.
const DefaultMaxEvents = 500

type Config struct {
	MaxEvents int              // Capacity (default: 500)
	Store     ports.EventStore // Durable mirror, may be nil
}

func DefaultConfig() Config {
	return Config{MaxEvents: DefaultMaxEvents}
}

// EventLog is the bounded, append-only event log.
type EventLog struct {
	events    []*domain.DetectionEvent // Ring buffer storage
	head      int                      // Next write position
	count     int                      // Current event count
	maxEvents int                      // Buffer capacity
	store     ports.EventStore
	mu        sync.RWMutex
	persistMu sync.Mutex // keeps store writes in ring order
}

// New creates an empty log.
//
// Parameters:
//   - config: Capacity and optional store
//
// Returns:
//   - EventLog ready for Record(); call Load() to restore stored events
func New(config Config) *EventLog {
	if config.MaxEvents <= 0 {
		config.MaxEvents = DefaultMaxEvents
	}
	return &EventLog{
		events:    make([]*domain.DetectionEvent, config.MaxEvents),
		maxEvents: config.MaxEvents,
		store:     config.Store,
	}
}

// Record appends an event, evicting the oldest one when the log is full.
func (l *EventLog) Record(event *domain.DetectionEvent) {
	if event == nil {
		return
	}

	l.persistMu.Lock()
	defer l.persistMu.Unlock()

	l.mu.Lock()
	l.events[l.head] = event
	l.head = (l.head + 1) % l.maxEvents
	if l.count < l.maxEvents {
		l.count++
	}
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.Append(event, l.maxEvents); err != nil {
			log.Warn().Err(err).Str("type", event.Type).Msg("Failed to persist detection event")
		}
	}
}

// Load replaces the in-memory log with the store contents. Without a store
// it does nothing.
func (l *EventLog) Load() error {
	if l.store == nil {
		return nil
	}
	l.persistMu.Lock()
	defer l.persistMu.Unlock()
	events, err := l.store.Load()
	if err != nil {
		return err
	}
	l.fill(events)
	log.Debug().Int("events", l.Len()).Msg("Event log restored from store")
	return nil
}

// Restore replaces the log with events (oldest first), keeping the newest
// when there are more than the capacity, and rewrites the store.
func (l *EventLog) Restore(events []*domain.DetectionEvent) error {
	l.persistMu.Lock()
	defer l.persistMu.Unlock()
	l.fill(events)
	if l.store == nil {
		return nil
	}
	return l.store.Replace(l.Snapshot())
}

func (l *EventLog) fill(events []*domain.DetectionEvent) {
	if len(events) > l.maxEvents {
		events = events[len(events)-l.maxEvents:]
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.events {
		l.events[i] = nil
	}
	l.count = 0
	for _, e := range events {
		if e == nil {
			continue
		}
		l.events[l.count] = e
		l.count++
	}
	l.head = l.count % l.maxEvents
}

// Snapshot returns a copy of the log, oldest first.
func (l *EventLog) Snapshot() []*domain.DetectionEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotLocked()
}

func (l *EventLog) snapshotLocked() []*domain.DetectionEvent {
	result := make([]*domain.DetectionEvent, l.count)
	if l.count == 0 {
		return result
	}

	start := 0
	if l.count == l.maxEvents {
		start = l.head
	}
	for i := 0; i < l.count; i++ {
		result[i] = l.events[(start+i)%l.maxEvents]
	}
	return result
}

// Latest returns the n most recent events, oldest first. n <= 0 returns
// all of them.
func (l *EventLog) Latest(n int) []*domain.DetectionEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > l.count {
		n = l.count
	}
	result := make([]*domain.DetectionEvent, n)
	for i := 0; i < n; i++ {
		idx := (l.head - n + i + l.maxEvents) % l.maxEvents
		result[i] = l.events[idx]
	}
	return result
}

func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

func (l *EventLog) Cap() int {
	return l.maxEvents
}

// Clear drops every event from memory and from the store.
func (l *EventLog) Clear() error {
	return l.Restore(nil)
}
