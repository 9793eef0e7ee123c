package classifier

import (
	"fmt"

	"github.com/xoelrdgz/pagewarden/internal/domain"
	"github.com/xoelrdgz/pagewarden/internal/rules"
)

// OnResponseHeaders classifies one response.
//
// MIME checks run only when a Content-Type header is present and emit at
// most one event: an executable mismatch takes precedence over a general
// one. Header presence rules fire independently of each other, and every
// Set-Cookie value is checked on its own.
func (c *Classifier) OnResponseHeaders(sig domain.HeadersSignal) []*domain.DetectionEvent {
	now := c.session.Now()
	catalog := c.Catalog()
	https := isHTTPS(sig.URL)

	var events eventList

	if contentType, ok := sig.Get("Content-Type"); ok && contentType != "" {
		events.add(c.checkMIME(catalog, sig.URL, contentType))
	}

	for _, rule := range catalog.ForTarget(rules.TargetHeader) {
		switch m := rule.Matcher.(type) {
		case *rules.HeaderPresenceMatcher:
			finding := m.Check(sig.Headers, https)
			if finding.Fired {
				events.add(domain.NewDetectionEvent(now, sig.URL, rule.Type, rule.Category, rule.Severity,
					headerDetails(m, finding), rule.ID))
			}
		case *rules.CookieFlagMatcher:
			for _, setCookie := range sig.Values("Set-Cookie") {
				finding := m.Inspect(setCookie)
				if !finding.Sensitive || len(finding.Missing) == 0 {
					continue
				}
				details := fmt.Sprintf("Cookie '%s' missing %s flag(s)", finding.Name, finding.MissingFlags())
				events.add(domain.NewDetectionEvent(now, sig.URL, rule.Type, rule.Category, rule.Severity,
					details, rule.ID))
			}
		}
	}

	return events
}

func (c *Classifier) checkMIME(catalog *rules.Catalog, rawURL, contentType string) *domain.DetectionEvent {
	now := c.session.Now()
	mediaType := rules.MediaType(contentType)
	ext := rules.Extension(rawURL)
	subject := rules.Subject{ContentType: mediaType, Extension: ext}

	if matches(catalog, domain.TypeMIMEMismatchExecutable, subject) {
		return emit(catalog, now, rawURL, domain.TypeMIMEMismatchExecutable,
			fmt.Sprintf("Content-Type=%s, ext=.%s", mediaType, ext))
	}
	if matches(catalog, domain.TypeMIMEMismatchGeneral, subject) {
		return emit(catalog, now, rawURL, domain.TypeMIMEMismatchGeneral,
			fmt.Sprintf("Expected=%s, actual=%s, ext=.%s", rules.ExpectedMIME[ext], mediaType, ext))
	}
	return nil
}

func headerDetails(m *rules.HeaderPresenceMatcher, f rules.HeaderFinding) string {
	switch {
	case f.Present:
		return fmt.Sprintf("%s='%s' considered weak", m.Header, f.Value)
	case m.HTTPSOnly:
		return fmt.Sprintf("HTTPS response without %s header", m.Header)
	default:
		return fmt.Sprintf("Missing %s header", m.Header)
	}
}
