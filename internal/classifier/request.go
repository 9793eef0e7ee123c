package classifier

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/xoelrdgz/pagewarden/internal/domain"
	"github.com/xoelrdgz/pagewarden/internal/rules"
)

// OnRequest classifies an outgoing request URL.
//
// Checks run in a fixed order: SQL injection, redirect parameter, URL
// keywords, known-bad host, download checks, request burst. Download checks
// apply only to URLs that look like an executable or a double-extension file;
// each of them (double extension, missing gesture, plain HTTP, executable)
// emits its own event.
//
// Returns:
//   - Events in check order, possibly empty
func (c *Classifier) OnRequest(sig domain.RequestSignal) []*domain.DetectionEvent {
	now := c.session.Now()
	catalog := c.Catalog()
	subject := rules.Subject{Text: sig.URL}

	var events eventList

	if matches(catalog, domain.TypeSQLiURLPattern, subject) {
		events.add(emit(catalog, now, sig.URL, domain.TypeSQLiURLPattern, sig.URL))
	}
	if matches(catalog, domain.TypeRedirectSuspicious, subject) {
		events.add(emit(catalog, now, sig.URL, domain.TypeRedirectSuspicious, sig.URL))
	}
	if keywords := findKeywords(catalog, sig.URL); len(keywords) > 0 {
		events.add(emit(catalog, now, sig.URL, domain.TypeSuspiciousURLKeyword,
			"URL contains: "+strings.Join(keywords, ", ")))
	}
	if details, hit := c.checkHost(sig.URL); hit {
		events.add(emit(catalog, now, sig.URL, domain.TypeKnownMaliciousHost, details))
	}

	executable := matches(catalog, domain.TypeMalwareExecutableDownload, subject)
	doubleExt := matches(catalog, domain.TypeMalwareDoubleExtension, subject)
	if executable || doubleExt {
		if doubleExt {
			events.add(emit(catalog, now, sig.URL, domain.TypeMalwareDoubleExtension, sig.URL))
		}
		if _, ok := catalog.ForType(domain.TypeDownloadWithoutGesture); ok &&
			c.session.Gestures.NoRecentGesture(sig.TabID, now) {
			events.add(emit(catalog, now, sig.URL, domain.TypeDownloadWithoutGesture, sig.URL))
		}
		if matches(catalog, domain.TypeDownloadInsecureHTTP, subject) {
			events.add(emit(catalog, now, sig.URL, domain.TypeDownloadInsecureHTTP, sig.URL))
		}
		if executable {
			events.add(emit(catalog, now, sig.URL, domain.TypeMalwareExecutableDownload, sig.URL))
		}
	}

	if _, ok := catalog.ForType(domain.TypeSpamRequestBurst); ok {
		burst := c.session.Burst
		count, fired := burst.Observe(burst.Scope(sig.TabID), now)
		if fired {
			events.add(emit(catalog, now, sig.URL, domain.TypeSpamRequestBurst,
				fmt.Sprintf("%d requests in %dms", count, burst.Window().Milliseconds())))
		}
	}

	return events
}

func findKeywords(catalog *rules.Catalog, rawURL string) []string {
	rule, ok := catalog.ForType(domain.TypeSuspiciousURLKeyword)
	if !ok {
		return nil
	}
	if m, ok := rule.Matcher.(*rules.SubstringMatcher); ok {
		return m.Find(rawURL)
	}
	if rule.Matches(rules.Subject{Text: rawURL}) {
		return []string{rule.Type}
	}
	return nil
}

func (c *Classifier) checkHost(rawURL string) (string, bool) {
	if c.intel == nil {
		return "", false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" || !c.intel.IsKnownMalicious(host) {
		return "", false
	}

	info, ok := c.intel.Lookup(host)
	if !ok || info.Source == "" {
		return fmt.Sprintf("Host %s is on the blocklist", host), true
	}
	return fmt.Sprintf("Host %s is on the blocklist (%s: %s)", host, info.Source, info.Host), true
}
