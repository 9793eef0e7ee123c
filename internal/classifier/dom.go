package classifier

import (
	"fmt"
	"strings"

	"github.com/xoelrdgz/pagewarden/internal/domain"
	"github.com/xoelrdgz/pagewarden/internal/rules"
)

// inlineHandlers are the attributes whose values are scanned for script.
var inlineHandlers = map[string]bool{
	"onload":      true,
	"onerror":     true,
	"onclick":     true,
	"onmouseover": true,
	"onfocus":     true,
	"onblur":      true,
}

// sinkTypes maps DOM write sinks to runtime XSS event types.
var sinkTypes = map[string]string{
	"innerhtml":          domain.TypeRuntimeXSSInnerHTML,
	"outerhtml":          domain.TypeRuntimeXSSInnerHTML,
	"document.write":     domain.TypeRuntimeXSSDocWrite,
	"document.writeln":   domain.TypeRuntimeXSSDocWrite,
	"insertadjacenthtml": domain.TypeRuntimeXSSAdjacent,
}

const (
	scriptExcerptLength    = 100
	clipboardExcerptLength = 50
)

// OnDOMObservation classifies a raw in-page observation. Recognised
// observations become page signals and go through OnPageSignal, so they
// share its category and severity resolution.
func (c *Classifier) OnDOMObservation(sig domain.DOMSignal) []*domain.DetectionEvent {
	catalog := c.Catalog()
	obs := sig.Observation

	page := func(threatType, details string) []*domain.DetectionEvent {
		if _, ok := catalog.ForType(threatType); !ok {
			return nil
		}
		return c.OnPageSignal(domain.PageSignal{
			ThreatType: threatType,
			Details:    details,
			PageURL:    sig.PageURL,
			TabID:      sig.TabID,
		})
	}

	switch obs.Kind {
	case domain.ObserveInlineScript:
		if matches(catalog, domain.TypeInlineScript, rules.Subject{Text: obs.Content}) {
			return page(domain.TypeInlineScript, prefix(obs.Content, scriptExcerptLength))
		}

	case domain.ObserveAttribute:
		attr := strings.ToLower(obs.Attribute)
		if inlineHandlers[attr] && matches(catalog, domain.TypeSuspiciousAttribute, rules.Subject{Text: obs.Value}) {
			return page(domain.TypeSuspiciousAttribute, fmt.Sprintf("%s=%q", attr, obs.Value))
		}

	case domain.ObserveClipboardRead:
		return page(domain.TypeClipboardTheft, "Page attempted to read clipboard data")

	case domain.ObserveClipboardWrite:
		return page(domain.TypeClipboardManipulation,
			"Page attempted to modify clipboard: "+prefix(obs.Content, clipboardExcerptLength)+"...")

	case domain.ObserveKeyListener:
		count, counted := c.session.Listeners.Add(sig.TabID, obs.EventType)
		if !counted {
			return nil
		}
		if m, ok := thresholdOf(catalog, domain.TypeKeylogger); ok && m.Match(rules.Subject{Count: count}) {
			return page(domain.TypeKeylogger,
				fmt.Sprintf("Multiple keyboard event listeners detected (%d total)", count))
		}

	case domain.ObserveMediaRequest:
		var events []*domain.DetectionEvent
		if obs.Video {
			events = append(events, page(domain.TypeCameraAccess, "Page is requesting camera access")...)
		}
		if obs.Audio {
			events = append(events, page(domain.TypeMicrophoneAccess, "Page is requesting microphone access")...)
		}
		return events

	case domain.ObserveNavigation:
		c.session.Listeners.Reset(sig.TabID)
		m, ok := thresholdOf(catalog, domain.TypeAutoRedirectBlocked)
		if ok && obs.SinceLastClick > m.Window.Milliseconds() {
			target := obs.Target
			if target == "" {
				target = sig.PageURL
			}
			return page(domain.TypeAutoRedirectBlocked, "Automatic redirect detected: "+target)
		}

	case domain.ObserveFormSubmit:
		if !obs.HasPassword {
			return nil
		}
		target, reasons := EvaluateFormTarget(sig.PageURL, obs.Action)
		if len(reasons) > 0 {
			return page(domain.TypeCredentialHijacking,
				fmt.Sprintf("Login form attempted to send credentials to %s (%s)", target, strings.Join(reasons, "; ")))
		}

	case domain.ObserveSinkWrite:
		threatType, ok := sinkTypes[strings.ToLower(obs.Sink)]
		if ok && matches(catalog, threatType, rules.Subject{Text: obs.Content}) {
			return page(threatType, obs.Sink+": "+prefix(obs.Content, scriptExcerptLength))
		}
	}

	return nil
}
