package classifier

import (
	"net/url"
	"strings"
)

const (
	ReasonCrossDomain = "cross-domain target"
	ReasonDowngrade   = "HTTPS page submitting over HTTP"
)

// EvaluateFormTarget decides whether a password form submission leaks
// credentials.
//
// The action is resolved against the page URL; an empty action submits to
// the page itself. The submission is flagged when the target host differs
// from the page host (localhost excepted) and, independently, when an HTTPS
// page submits to an HTTP target.
//
// Returns:
//   - target: Resolved target host, or the raw action when it cannot be resolved
//   - reasons: Zero, one or both of ReasonCrossDomain and ReasonDowngrade
func EvaluateFormTarget(pageURL, action string) (target string, reasons []string) {
	page, err := url.Parse(pageURL)
	if err != nil || page.Host == "" {
		return action, nil
	}
	resolved, err := page.Parse(strings.TrimSpace(action))
	if err != nil {
		return action, nil
	}

	pageHost := strings.ToLower(page.Hostname())
	targetHost := strings.ToLower(resolved.Hostname())

	if targetHost != "" && targetHost != pageHost && targetHost != "localhost" {
		reasons = append(reasons, ReasonCrossDomain)
	}
	if strings.EqualFold(page.Scheme, "https") && strings.EqualFold(resolved.Scheme, "http") {
		reasons = append(reasons, ReasonDowngrade)
	}

	return targetHost, reasons
}
