package domain

import (
	"encoding/json"
	"fmt"
)

// Alert is the user-facing notification derived from a detection event.
type Alert struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Category Category `json:"category"`
	Type     string   `json:"type"`
	URL      string   `json:"url"`
	TabID    TabID    `json:"tabId"`
}

func (a *Alert) ToJSON() ([]byte, error) {
	return json.Marshal(a)
}

// Line renders the alert for console output.
func (a *Alert) Line() string {
	return fmt.Sprintf("%s[%s]\033[0m %s: %s", a.Severity.Color(), a.Severity, a.Title, a.Message)
}

// DeliveryOutcome reports what happened to an alert handed to a notifier.
type DeliveryOutcome int

const (
	Delivered DeliveryOutcome = iota
	NoReceiver
	DeliveryFailed
)

func (o DeliveryOutcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case NoReceiver:
		return "no_receiver"
	case DeliveryFailed:
		return "failed"
	default:
		return "unknown"
	}
}
