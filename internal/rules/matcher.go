package rules

import (
	"regexp"
	"strings"
	"time"

	"github.com/xoelrdgz/pagewarden/internal/domain"
	"github.com/xoelrdgz/pagewarden/pkg/ahocorasick"
)

// Subject carries the inputs a matcher may inspect. Each matcher reads only
// the fields relevant to it.
type Subject struct {
	Text        string          // URL, script body, attribute value, Set-Cookie value, threat type
	Count       int             // Observed count for threshold matchers
	HTTPS       bool            // Response was served over HTTPS
	Headers     []domain.Header // Response headers
	ContentType string          // Lowercased media type without parameters
	Extension   string          // Lowercased URL path extension without the dot
}

// Matcher decides whether a rule applies to a subject.
type Matcher interface {
	Kind() string
	Match(s Subject) bool
}

const (
	KindRegex     = "regex"
	KindSubstring = "substring"
	KindThreshold = "threshold"
	KindHeader    = "header"
	KindCookie    = "cookie"
	KindMIME      = "mime"
	KindSignal    = "signal"
)

// RegexMatcher matches Subject.Text against a compiled pattern.
type RegexMatcher struct {
	Pattern *regexp.Regexp
}

func (m *RegexMatcher) Kind() string { return KindRegex }

func (m *RegexMatcher) Match(s Subject) bool {
	return m.Pattern.MatchString(s.Text)
}

// SubstringMatcher finds any of a keyword set in Subject.Text,
// case-insensitively, in one pass.
type SubstringMatcher struct {
	patterns  []string
	automaton *ahocorasick.Matcher
}

func NewSubstringMatcher(patterns []string) *SubstringMatcher {
	return &SubstringMatcher{
		patterns:  patterns,
		automaton: ahocorasick.New(patterns),
	}
}

func (m *SubstringMatcher) Kind() string { return KindSubstring }

func (m *SubstringMatcher) Match(s Subject) bool {
	return m.automaton.Match(s.Text)
}

// Find returns the keywords present in text.
func (m *SubstringMatcher) Find(text string) []string {
	return m.automaton.MatchedPatterns(text)
}

// ThresholdMatcher fires when Subject.Count reaches Count. Window is the
// time span the caller counts over; zero means the count is not windowed.
type ThresholdMatcher struct {
	Count  int
	Window time.Duration
}

func (m *ThresholdMatcher) Kind() string { return KindThreshold }

func (m *ThresholdMatcher) Match(s Subject) bool {
	return s.Count >= m.Count
}

// HeaderFinding is the outcome of a header presence check.
type HeaderFinding struct {
	Fired   bool
	Present bool
	Value   string // Lowercased header value when present
}

// HeaderPresenceMatcher fires when a response header is missing or, when
// Strong is set, holds none of the strong values.
type HeaderPresenceMatcher struct {
	Header    string
	HTTPSOnly bool
	Strong    []string
}

func (m *HeaderPresenceMatcher) Kind() string { return KindHeader }

func (m *HeaderPresenceMatcher) Match(s Subject) bool {
	return m.Check(s.Headers, s.HTTPS).Fired
}

func (m *HeaderPresenceMatcher) Check(headers []domain.Header, https bool) HeaderFinding {
	if m.HTTPSOnly && !https {
		return HeaderFinding{}
	}
	for _, h := range headers {
		if !strings.EqualFold(h.Name, m.Header) {
			continue
		}
		value := strings.ToLower(h.Value)
		finding := HeaderFinding{Present: true, Value: value}
		if len(m.Strong) == 0 {
			return finding
		}
		for _, strong := range m.Strong {
			if strings.Contains(value, strong) {
				return finding
			}
		}
		finding.Fired = true
		return finding
	}
	return HeaderFinding{Fired: true}
}

// CookieFinding describes one Set-Cookie value.
type CookieFinding struct {
	Name      string
	Sensitive bool
	Missing   []string
}

// MissingFlags renders the missing attributes the way reports show them,
// e.g. "HttpOnly and Secure".
func (f CookieFinding) MissingFlags() string {
	return strings.Join(f.Missing, " and ")
}

// CookieFlagMatcher fires for cookies whose name contains one of Markers and
// that lack any attribute in Required.
type CookieFlagMatcher struct {
	Markers  []string
	Required []string
}

func (m *CookieFlagMatcher) Kind() string { return KindCookie }

func (m *CookieFlagMatcher) Match(s Subject) bool {
	f := m.Inspect(s.Text)
	return f.Sensitive && len(f.Missing) > 0
}

// Inspect parses a Set-Cookie value. Attribute names are compared
// case-insensitively; the cookie value itself is never treated as an
// attribute.
func (m *CookieFlagMatcher) Inspect(setCookie string) CookieFinding {
	parts := strings.Split(setCookie, ";")
	name := strings.TrimSpace(parts[0])
	if eq := strings.Index(name, "="); eq >= 0 {
		name = strings.TrimSpace(name[:eq])
	}

	finding := CookieFinding{Name: name}
	lowerName := strings.ToLower(name)
	for _, marker := range m.Markers {
		if strings.Contains(lowerName, strings.ToLower(marker)) {
			finding.Sensitive = true
			break
		}
	}
	if !finding.Sensitive {
		return finding
	}

	present := make(map[string]bool, len(parts))
	for _, attr := range parts[1:] {
		attr = strings.TrimSpace(attr)
		if eq := strings.Index(attr, "="); eq >= 0 {
			attr = attr[:eq]
		}
		present[strings.ToLower(strings.TrimSpace(attr))] = true
	}
	for _, req := range m.Required {
		if !present[strings.ToLower(req)] {
			finding.Missing = append(finding.Missing, req)
		}
	}
	return finding
}

// SignalMatcher matches page-reported threat types by name.
type SignalMatcher struct {
	Kinds []string
}

func (m *SignalMatcher) Kind() string { return KindSignal }

func (m *SignalMatcher) Match(s Subject) bool {
	for _, k := range m.Kinds {
		if strings.EqualFold(k, s.Text) {
			return true
		}
	}
	return false
}
