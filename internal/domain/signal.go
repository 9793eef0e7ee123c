package domain

import (
	"strconv"
	"strings"
)

type SignalKind string

const (
	SignalRequest SignalKind = "request"
	SignalHeaders SignalKind = "headers"
	SignalPage    SignalKind = "page"
	SignalGesture SignalKind = "gesture"
	SignalDOM     SignalKind = "dom"
)

// TabID identifies a browser tab. Values <= 0 mean the signal has no tab.
type TabID int

func (t TabID) Valid() bool {
	return t > 0
}

// Key is the tab component of per-tab state keys; "global" when absent.
func (t TabID) Key() string {
	if !t.Valid() {
		return "global"
	}
	return strconv.Itoa(int(t))
}

// Signal is one observation delivered by the browser hooks. The set of
// implementations is closed: RequestSignal, HeadersSignal, PageSignal,
// GestureSignal and DOMSignal.
type Signal interface {
	Kind() SignalKind
	Tab() TabID
	signal()
}

type RequestSignal struct {
	URL   string
	TabID TabID
}

func (RequestSignal) Kind() SignalKind { return SignalRequest }
func (s RequestSignal) Tab() TabID     { return s.TabID }
func (RequestSignal) signal()          {}

type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type HeadersSignal struct {
	URL     string
	TabID   TabID
	Headers []Header
}

func (HeadersSignal) Kind() SignalKind { return SignalHeaders }
func (s HeadersSignal) Tab() TabID     { return s.TabID }
func (HeadersSignal) signal()          {}

// Get returns the first header named name, matched case-insensitively.
func (s HeadersSignal) Get(name string) (string, bool) {
	for _, h := range s.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// Values returns every header named name in arrival order.
func (s HeadersSignal) Values(name string) []string {
	var values []string
	for _, h := range s.Headers {
		if strings.EqualFold(h.Name, name) {
			values = append(values, h.Value)
		}
	}
	return values
}

// PageSignal is a threat already recognised by in-page instrumentation.
type PageSignal struct {
	ThreatType string
	Details    string
	Category   string
	PageURL    string
	TabID      TabID
}

func (PageSignal) Kind() SignalKind { return SignalPage }
func (s PageSignal) Tab() TabID     { return s.TabID }
func (PageSignal) signal()          {}

type GestureSignal struct {
	TabID TabID
}

func (GestureSignal) Kind() SignalKind { return SignalGesture }
func (s GestureSignal) Tab() TabID     { return s.TabID }
func (GestureSignal) signal()          {}

type ObservationKind string

const (
	ObserveInlineScript   ObservationKind = "inline_script"
	ObserveAttribute      ObservationKind = "attribute"
	ObserveClipboardRead  ObservationKind = "clipboard_read"
	ObserveClipboardWrite ObservationKind = "clipboard_write"
	ObserveKeyListener    ObservationKind = "key_listener"
	ObserveMediaRequest   ObservationKind = "media_request"
	ObserveNavigation     ObservationKind = "navigation"
	ObserveFormSubmit     ObservationKind = "form_submit"
	ObserveSinkWrite      ObservationKind = "sink_write"
)

// Observation is a raw in-page event that still needs classification.
// Only the fields relevant to Kind are set.
type Observation struct {
	Kind ObservationKind `json:"kind"`

	// inline_script, sink_write
	Content string `json:"content,omitempty"`
	// sink_write: innerHTML, document.write, insertAdjacentHTML
	Sink string `json:"sink,omitempty"`
	// attribute
	Attribute string `json:"attribute,omitempty"`
	Value     string `json:"value,omitempty"`
	// key_listener
	EventType string `json:"eventType,omitempty"`
	// media_request
	Video bool `json:"video,omitempty"`
	Audio bool `json:"audio,omitempty"`
	// navigation
	Target         string `json:"target,omitempty"`
	SinceLastClick int64  `json:"sinceLastClickMs,omitempty"`
	// form_submit
	Action      string `json:"action,omitempty"`
	HasPassword bool   `json:"hasPassword,omitempty"`
}

type DOMSignal struct {
	Observation Observation
	PageURL     string
	TabID       TabID
}

func (DOMSignal) Kind() SignalKind { return SignalDOM }
func (s DOMSignal) Tab() TabID     { return s.TabID }
func (DOMSignal) signal()          {}
