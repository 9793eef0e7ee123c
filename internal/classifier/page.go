package classifier

import (
	"strings"

	"github.com/xoelrdgz/pagewarden/internal/domain"
)

// OnPageSignal records a threat already recognised by in-page
// instrumentation. It emits at most one event, attributed to the page URL.
//
// Category resolution: the signal's own category when it names a known
// one, otherwise the catalog rule for the type, otherwise a fixed lookup.
// Severity comes from the rule, or the fixed lookup for unknown types.
func (c *Classifier) OnPageSignal(sig domain.PageSignal) []*domain.DetectionEvent {
	if strings.TrimSpace(sig.ThreatType) == "" {
		return nil
	}

	rule, hasRule := c.Catalog().ForType(sig.ThreatType)

	category, err := domain.ParseCategory(sig.Category)
	if err != nil {
		if hasRule {
			category = rule.Category
		} else {
			category = CategoryFor(sig.ThreatType)
		}
	}

	severity := SeverityFor(sig.ThreatType)
	ruleID := ""
	if hasRule {
		severity = rule.Severity
		ruleID = rule.ID
	}

	event := domain.NewDetectionEvent(c.session.Now(), sig.PageURL, sig.ThreatType, category, severity, sig.Details, ruleID)
	return []*domain.DetectionEvent{event}
}

// CategoryFor is the fixed category lookup for page-reported threat types.
func CategoryFor(threatType string) domain.Category {
	switch {
	case threatType == domain.TypeInlineScript, threatType == domain.TypeSuspiciousAttribute:
		return domain.CategoryInjection
	case strings.HasPrefix(threatType, "RUNTIME_XSS"):
		return domain.CategoryXSS
	case threatType == domain.TypeCredentialHijacking:
		return domain.CategorySensitiveDataExposure
	default:
		return domain.CategoryClientSideAttacks
	}
}

// SeverityFor is the fixed severity lookup for page-reported threat types.
func SeverityFor(threatType string) domain.Severity {
	switch threatType {
	case domain.TypeClipboardTheft, domain.TypeClipboardManipulation,
		domain.TypeKeylogger, domain.TypeCredentialHijacking:
		return domain.SeverityCritical
	default:
		return domain.SeverityWarning
	}
}
