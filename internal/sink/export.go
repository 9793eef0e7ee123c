package sink

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/xoelrdgz/pagewarden/internal/domain"
)

// DefaultExportName is the file name used when exporting without one.
const DefaultExportName = "web_intrusion_detector_report.json"

// Export writes the log as a pretty-printed JSON array, oldest first.
func (l *EventLog) Export(w io.Writer) error {
	return WriteEvents(w, l.Snapshot())
}

// WriteEvents writes events as a JSON array with two-space indentation.
func WriteEvents(w io.Writer, events []*domain.DetectionEvent) error {
	if events == nil {
		events = []*domain.DetectionEvent{}
	}
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode events: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write events: %w", err)
	}
	return nil
}

// ReadEvents decodes an exported JSON array. Every event is normalized;
// one invalid event rejects the whole file.
func ReadEvents(r io.Reader) ([]*domain.DetectionEvent, error) {
	var events []*domain.DetectionEvent
	if err := json.NewDecoder(r).Decode(&events); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}

	result := make([]*domain.DetectionEvent, 0, len(events))
	for i, e := range events {
		if e == nil {
			continue
		}
		if err := e.Normalize(); err != nil {
			return nil, fmt.Errorf("event #%d: %w", i, err)
		}
		result = append(result, e)
	}
	return result, nil
}

// Import replaces the log with an exported file's events.
//
// Returns:
//   - Number of events kept (at most the capacity)
//   - Error if the file is invalid (the log is unchanged) or the store
//     rewrite fails
func (l *EventLog) Import(r io.Reader) (int, error) {
	events, err := ReadEvents(r)
	if err != nil {
		return 0, err
	}
	if err := l.Restore(events); err != nil {
		return l.Len(), fmt.Errorf("failed to persist imported events: %w", err)
	}
	return l.Len(), nil
}
