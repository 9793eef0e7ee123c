package domain

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// UnknownOrigin is recorded when the event URL cannot be parsed.
	UnknownOrigin = "unknown"

	MaxDetailsLength = 1024

	// DisplayDetailsLength is the width of the details column in reports.
	DisplayDetailsLength = 120
)

// RuleRef serializes as JSON null when empty.
type RuleRef string

func (r RuleRef) MarshalJSON() ([]byte, error) {
	if r == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(r))
}

func (r *RuleRef) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = RuleRef(s)
	return nil
}

// DetectionEvent is the immutable record of one rule firing.
type DetectionEvent struct {
	Time     int64    `json:"time"`
	URL      string   `json:"url"`
	Origin   string   `json:"origin"`
	Type     string   `json:"type"`
	Category Category `json:"category"`
	Severity Severity `json:"severity"`
	Details  string   `json:"details"`
	RuleID   RuleRef  `json:"ruleId"`
}

func NewDetectionEvent(now time.Time, rawURL, eventType string, category Category, severity Severity, details string, ruleID string) *DetectionEvent {
	return &DetectionEvent{
		Time:     now.UnixMilli(),
		URL:      rawURL,
		Origin:   OriginOf(rawURL),
		Type:     eventType,
		Category: category,
		Severity: severity,
		Details:  clampDetails(details),
		RuleID:   RuleRef(ruleID),
	}
}

func (e *DetectionEvent) Timestamp() time.Time {
	return time.UnixMilli(e.Time)
}

func (e *DetectionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func (e *DetectionEvent) ToJSONPretty() ([]byte, error) {
	return json.MarshalIndent(e, "", "  ")
}

// Normalize checks an event read back from storage or an export file,
// filling a missing origin and clamping details.
func (e *DetectionEvent) Normalize() error {
	if !e.Category.Valid() {
		return fmt.Errorf("event %s: unknown category %q", e.Type, e.Category)
	}
	if e.Origin == "" {
		e.Origin = OriginOf(e.URL)
	}
	e.Details = clampDetails(e.Details)
	return nil
}

// DisplayDetails shortens details to the report column width.
func (e *DetectionEvent) DisplayDetails() string {
	return TruncateDisplay(e.Details, DisplayDetailsLength)
}

// TruncateDisplay keeps s when it fits in width runes and otherwise
// cuts it to width-3 runes followed by "...".
func TruncateDisplay(s string, width int) string {
	if width <= 3 || utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width-3]) + "..."
}

// OriginOf returns scheme://host[:port] for rawURL, omitting default
// ports, or UnknownOrigin when the URL has no usable scheme and host.
func OriginOf(rawURL string) string {
	if rawURL == "" {
		return UnknownOrigin
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return UnknownOrigin
	}
	host := u.Hostname()
	if host == "" {
		return UnknownOrigin
	}
	scheme := strings.ToLower(u.Scheme)
	host = strings.ToLower(host)
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	port := u.Port()
	if port == "" || isDefaultPort(scheme, port) {
		return scheme + "://" + host
	}
	return scheme + "://" + host + ":" + port
}

func isDefaultPort(scheme, port string) bool {
	switch scheme {
	case "http", "ws":
		return port == "80"
	case "https", "wss":
		return port == "443"
	}
	return false
}

func clampDetails(details string) string {
	if len(details) <= MaxDetailsLength {
		return details
	}
	cut := MaxDetailsLength
	for cut > 0 && !utf8.RuneStart(details[cut]) {
		cut--
	}
	return details[:cut]
}
