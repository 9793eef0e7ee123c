// Package ports defines the primary and secondary port interfaces following
// hexagonal architecture (ports and adapters pattern).
//
// This package contains interfaces that define the contract between the core
// classification logic and external infrastructure (signal sources, event
// storage, alert delivery, metrics).
//
// Design Principles:
//   - Interfaces are small and focused (Interface Segregation Principle)
//   - Dependencies flow inward (core domain has no external dependencies)
//   - Implementations provided by adapters in internal/adapters/
package ports

import (
	"context"

	"github.com/xoelrdgz/pagewarden/internal/domain"
)

// EventStore persists detection events beyond the process lifetime.
//
// Implementations:
//   - BoltStore: bbolt-backed bounded log
//
// Thread Safety: Implementations MUST be safe for concurrent calls.
type EventStore interface {
	// Append stores one event, evicting the oldest stored events so that at
	// most limit remain.
	//
	// Returns:
	//   - nil on success
	//   - Error if the write fails (the in-memory log is unaffected)
	Append(event *domain.DetectionEvent, limit int) error

	// Load returns stored events in insertion order.
	Load() ([]*domain.DetectionEvent, error)

	// Replace overwrites the stored log with events.
	Replace(events []*domain.DetectionEvent) error

	Close() error
}

// Notifier delivers user-facing alerts to the browser surface.
//
// Implementations:
//   - TabNotifier: per-tab receivers with active-tab fallback
//   - LogNotifier: console line per alert
//   - MultiNotifier: fan-out to several notifiers
//
// Thread Safety: Implementations MUST be safe for concurrent Deliver() calls.
type Notifier interface {
	// Deliver hands the alert to a receiver without blocking.
	//
	// Returns:
	//   - Delivered when a receiver accepted the alert
	//   - NoReceiver when nobody is listening for the tab
	//   - DeliveryFailed when the receiver could not accept it
	//
	// Delivery is best effort; callers log the outcome and never retry.
	Deliver(ctx context.Context, alert domain.Alert) domain.DeliveryOutcome
}

// EventSubscriber receives every recorded detection event.
// Used by the pipeline to notify interested components (TUI, metrics, JSON stream).
//
// Performance: Implementation should return quickly to avoid blocking
// workers. Use buffering for expensive operations.
type EventSubscriber interface {
	OnEvent(event *domain.DetectionEvent)
}

// MetricsCollector defines the interface for observability metric collection.
// Implemented by the Prometheus adapter.
//
// Thread Safety: All methods MUST be safe for concurrent calls.
type MetricsCollector interface {
	// IncrementSignals counts one processed signal of the given kind.
	IncrementSignals(kind domain.SignalKind)

	// IncrementDetections counts one recorded event.
	IncrementDetections(category domain.Category, severity domain.Severity)

	// IncrementAlerts counts one alert by delivery outcome, or as suppressed
	// when the notification gate held it back.
	IncrementAlerts(outcome string)

	// ObserveProcessingTime records classification latency in seconds.
	ObserveProcessingTime(seconds float64)

	// SetActiveWorkers updates the active worker gauge.
	SetActiveWorkers(count int)

	// SetStoredEvents updates the event log size gauge.
	SetStoredEvents(count int)
}
