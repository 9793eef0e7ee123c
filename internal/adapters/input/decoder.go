// Package input provides the signal sources for PageWarden.
//
// This package implements:
//   - JSONDecoder: Signal envelope decoder (JSONL lines, API bodies)
//   - FileTailer: Follows a JSONL signal file written by the browser hooks
//   - DemoGenerator: Synthetic browsing sessions for demos and load tests
package input

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xoelrdgz/pagewarden/internal/domain"
)

// MaxSignalLength bounds one encoded signal.
const MaxSignalLength = 64 * 1024

var ErrInvalidSignal = errors.New("invalid signal")

// Legacy message types sent by the in-page script.
const (
	legacyThreat  = "THREAT_DETECTED"
	legacyGesture = "USER_GESTURE"
)

// Envelope is the wire form of a signal.
type Envelope struct {
	Kind        string              `json:"kind,omitempty"`
	Type        string              `json:"type,omitempty"`
	URL         string              `json:"url,omitempty"`
	TabID       *int64              `json:"tabId,omitempty"`
	Headers     []domain.Header     `json:"headers,omitempty"`
	ThreatType  string              `json:"threatType,omitempty"`
	Details     string              `json:"details,omitempty"`
	Category    string              `json:"category,omitempty"`
	PageURL     string              `json:"pageUrl,omitempty"`
	Observation *domain.Observation `json:"observation,omitempty"`
}

func (e *Envelope) tab() domain.TabID {
	if e.TabID == nil {
		return 0
	}
	return domain.TabID(*e.TabID)
}

// pageURL prefers pageUrl and falls back to url.
func (e *Envelope) pageURL() string {
	if e.PageURL != "" {
		return e.PageURL
	}
	return e.URL
}

// JSONDecoder decodes signal envelopes.
//
// Accepted forms:
//   - {"kind": "request|headers|page|gesture|dom", ...}
//   - {"type": "THREAT_DETECTED", "threatType", "details", "category"}
//   - {"type": "USER_GESTURE"}
type JSONDecoder struct{}

func NewJSONDecoder() *JSONDecoder {
	return &JSONDecoder{}
}

func (d *JSONDecoder) Format() string {
	return "jsonl"
}

// Decode turns one record into a signal.
//
// Returns:
//   - nil, nil for a blank record
//   - Error wrapping ErrInvalidSignal for malformed or incomplete records
func (d *JSONDecoder) Decode(line []byte) (domain.Signal, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, nil
	}
	if len(line) > MaxSignalLength {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidSignal, len(line), MaxSignalLength)
	}

	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}
	return env.Signal()
}

// Signal converts the envelope into its signal variant.
func (e *Envelope) Signal() (domain.Signal, error) {
	kind := strings.ToLower(strings.TrimSpace(e.Kind))
	if kind == "" {
		switch e.Type {
		case legacyThreat:
			kind = string(domain.SignalPage)
		case legacyGesture:
			kind = string(domain.SignalGesture)
		case "":
			return nil, fmt.Errorf("%w: missing kind", ErrInvalidSignal)
		default:
			return nil, fmt.Errorf("%w: unknown message type %q", ErrInvalidSignal, e.Type)
		}
	}

	switch domain.SignalKind(kind) {
	case domain.SignalRequest:
		if e.URL == "" {
			return nil, fmt.Errorf("%w: request without url", ErrInvalidSignal)
		}
		return domain.RequestSignal{URL: e.URL, TabID: e.tab()}, nil
	case domain.SignalHeaders:
		if e.URL == "" {
			return nil, fmt.Errorf("%w: headers without url", ErrInvalidSignal)
		}
		return domain.HeadersSignal{URL: e.URL, TabID: e.tab(), Headers: e.Headers}, nil
	case domain.SignalPage:
		return domain.PageSignal{
			ThreatType: e.ThreatType,
			Details:    e.Details,
			Category:   e.Category,
			PageURL:    e.pageURL(),
			TabID:      e.tab(),
		}, nil
	case domain.SignalGesture:
		return domain.GestureSignal{TabID: e.tab()}, nil
	case domain.SignalDOM:
		if e.Observation == nil || e.Observation.Kind == "" {
			return nil, fmt.Errorf("%w: dom signal without observation", ErrInvalidSignal)
		}
		return domain.DOMSignal{Observation: *e.Observation, PageURL: e.pageURL(), TabID: e.tab()}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidSignal, e.Kind)
	}
}

// Encode is the inverse of Decode, used by the demo generator and tests.
func Encode(sig domain.Signal) ([]byte, error) {
	env := Envelope{Kind: string(sig.Kind())}
	if tab := int64(sig.Tab()); tab > 0 {
		env.TabID = &tab
	}

	switch s := sig.(type) {
	case domain.RequestSignal:
		env.URL = s.URL
	case domain.HeadersSignal:
		env.URL = s.URL
		env.Headers = s.Headers
	case domain.PageSignal:
		env.ThreatType = s.ThreatType
		env.Details = s.Details
		env.Category = s.Category
		env.PageURL = s.PageURL
	case domain.GestureSignal:
	case domain.DOMSignal:
		obs := s.Observation
		env.Observation = &obs
		env.PageURL = s.PageURL
	default:
		return nil, fmt.Errorf("%w: unsupported signal %T", ErrInvalidSignal, sig)
	}
	return json.Marshal(env)
}
