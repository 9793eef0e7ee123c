// Package rules holds the versioned detection rule catalog.
//
// A Catalog is built once from definitions and never mutated; reloading a
// rules file produces a new Catalog that callers swap in atomically. Loading
// is all-or-nothing: one bad definition rejects the whole set.
package rules

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xoelrdgz/pagewarden/internal/domain"
)

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrUnknownSeverity = errors.New("unknown severity")
	ErrUnknownMatcher  = errors.New("unknown matcher kind")
	ErrDuplicateRule   = errors.New("duplicate rule")
	ErrInvalidRule     = errors.New("invalid rule")
)

// Target is the kind of input a rule inspects.
type Target string

const (
	TargetURL      Target = "url"
	TargetHeader   Target = "header"
	TargetDOM      Target = "dom"
	TargetBehavior Target = "behavior"
	TargetPage     Target = "page"
)

func (t Target) valid() bool {
	switch t {
	case TargetURL, TargetHeader, TargetDOM, TargetBehavior, TargetPage:
		return true
	}
	return false
}

// Rule is one compiled, immutable catalog entry.
type Rule struct {
	ID          string
	Type        string
	Target      Target
	Category    domain.Category
	Severity    domain.Severity
	Description string
	Matcher     Matcher
}

func (r *Rule) Matches(s Subject) bool {
	return r.Matcher.Match(s)
}

// Definition is the serialized form of a rule, as found in rule files.
type Definition struct {
	ID          string    `yaml:"id" json:"id"`
	Type        string    `yaml:"type" json:"type"`
	Target      string    `yaml:"target" json:"target"`
	Category    string    `yaml:"category" json:"category"`
	Severity    string    `yaml:"severity" json:"severity"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Disabled    bool      `yaml:"disabled,omitempty" json:"disabled,omitempty"`
	Match       MatchSpec `yaml:"match" json:"match"`
}

// MatchSpec selects and parameterizes a matcher. Only the fields of the
// chosen kind are read.
type MatchSpec struct {
	Kind          string   `yaml:"kind" json:"kind"`
	Pattern       string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	CaseSensitive bool     `yaml:"case_sensitive,omitempty" json:"case_sensitive,omitempty"`
	Patterns      []string `yaml:"patterns,omitempty" json:"patterns,omitempty"`
	Count         int      `yaml:"count,omitempty" json:"count,omitempty"`
	WindowMs      int64    `yaml:"window_ms,omitempty" json:"window_ms,omitempty"`
	Header        string   `yaml:"header,omitempty" json:"header,omitempty"`
	HTTPSOnly     bool     `yaml:"https_only,omitempty" json:"https_only,omitempty"`
	Strong        []string `yaml:"strong,omitempty" json:"strong,omitempty"`
	Markers       []string `yaml:"markers,omitempty" json:"markers,omitempty"`
	Required      []string `yaml:"required,omitempty" json:"required,omitempty"`
	Mode          string   `yaml:"mode,omitempty" json:"mode,omitempty"`
	Kinds         []string `yaml:"kinds,omitempty" json:"kinds,omitempty"`
}

// File is the layout of a YAML rules file.
type File struct {
	Version string       `yaml:"version"`
	Rules   []Definition `yaml:"rules"`
}

// MatchResult is one row of Catalog.Match output.
type MatchResult struct {
	RuleID  string
	Type    string
	Matched bool
}

// Catalog is an immutable, versioned set of rules with stable IDs.
type Catalog struct {
	version  string
	rules    []*Rule
	byID     map[string]*Rule
	byType   map[string]*Rule
	byTarget map[Target][]*Rule
}

// Load compiles definitions into a catalog.
//
// Parameters:
//   - version: Catalog version label
//   - defs: Rule definitions in evaluation order
//
// Returns:
//   - Catalog on success
//   - Error wrapping ErrUnknownCategory, ErrUnknownSeverity,
//     ErrUnknownMatcher, ErrDuplicateRule or ErrInvalidRule; no partial
//     catalog is returned
func Load(version string, defs []Definition) (*Catalog, error) {
	c := &Catalog{
		version:  version,
		rules:    make([]*Rule, 0, len(defs)),
		byID:     make(map[string]*Rule, len(defs)),
		byType:   make(map[string]*Rule, len(defs)),
		byTarget: make(map[Target][]*Rule),
	}

	for i, def := range defs {
		if def.Disabled {
			continue
		}
		rule, err := compile(def)
		if err != nil {
			return nil, fmt.Errorf("rule #%d (%s): %w", i, def.ID, err)
		}
		if _, exists := c.byID[rule.ID]; exists {
			return nil, fmt.Errorf("rule %s: %w: id already defined", rule.ID, ErrDuplicateRule)
		}
		if other, exists := c.byType[rule.Type]; exists {
			return nil, fmt.Errorf("rule %s: %w: type %s already bound to %s", rule.ID, ErrDuplicateRule, rule.Type, other.ID)
		}
		c.rules = append(c.rules, rule)
		c.byID[rule.ID] = rule
		c.byType[rule.Type] = rule
		c.byTarget[rule.Target] = append(c.byTarget[rule.Target], rule)
	}

	return c, nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Load(DefaultVersion, DefaultDefinitions())
	if err != nil {
		panic(fmt.Sprintf("built-in rule catalog: %v", err))
	}
	return c
}

// Parse reads a YAML rules file body and merges it over the built-in
// definitions: entries with a built-in ID replace it, new IDs are appended.
// A replacement with disabled set removes the built-in rule.
func Parse(data []byte) (*Catalog, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}

	defs := DefaultDefinitions()
	index := make(map[string]int, len(defs))
	for i, def := range defs {
		index[def.ID] = i
	}
	for _, def := range file.Rules {
		if i, ok := index[def.ID]; ok {
			defs[i] = def
			continue
		}
		index[def.ID] = len(defs)
		defs = append(defs, def)
	}

	version := file.Version
	if version == "" {
		version = DefaultVersion + "+local"
	}
	return Load(version, defs)
}

// LoadFile reads a YAML rules file. An empty path yields the built-in
// catalog.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Load(DefaultVersion, DefaultDefinitions())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return Parse(data)
}

func compile(def Definition) (*Rule, error) {
	if def.ID == "" || def.Type == "" {
		return nil, fmt.Errorf("%w: id and type are required", ErrInvalidRule)
	}
	target := Target(def.Target)
	if !target.valid() {
		return nil, fmt.Errorf("%w: unknown target %q", ErrInvalidRule, def.Target)
	}
	category, err := domain.ParseCategory(def.Category)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, def.Category)
	}
	severity, err := domain.ParseSeverity(def.Severity)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSeverity, def.Severity)
	}
	matcher, err := compileMatcher(def.Match)
	if err != nil {
		return nil, err
	}
	return &Rule{
		ID:          def.ID,
		Type:        def.Type,
		Target:      target,
		Category:    category,
		Severity:    severity,
		Description: def.Description,
		Matcher:     matcher,
	}, nil
}

func compileMatcher(spec MatchSpec) (Matcher, error) {
	switch spec.Kind {
	case KindRegex:
		if spec.Pattern == "" {
			return nil, fmt.Errorf("%w: regex matcher needs a pattern", ErrInvalidRule)
		}
		pattern := spec.Pattern
		if !spec.CaseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		return &RegexMatcher{Pattern: re}, nil
	case KindSubstring:
		if len(spec.Patterns) == 0 {
			return nil, fmt.Errorf("%w: substring matcher needs patterns", ErrInvalidRule)
		}
		return NewSubstringMatcher(spec.Patterns), nil
	case KindThreshold:
		if spec.Count <= 0 || spec.WindowMs < 0 {
			return nil, fmt.Errorf("%w: threshold matcher needs a positive count", ErrInvalidRule)
		}
		return &ThresholdMatcher{Count: spec.Count, Window: time.Duration(spec.WindowMs) * time.Millisecond}, nil
	case KindHeader:
		if spec.Header == "" {
			return nil, fmt.Errorf("%w: header matcher needs a header name", ErrInvalidRule)
		}
		return &HeaderPresenceMatcher{Header: spec.Header, HTTPSOnly: spec.HTTPSOnly, Strong: spec.Strong}, nil
	case KindCookie:
		if len(spec.Markers) == 0 || len(spec.Required) == 0 {
			return nil, fmt.Errorf("%w: cookie matcher needs markers and required flags", ErrInvalidRule)
		}
		return &CookieFlagMatcher{Markers: spec.Markers, Required: spec.Required}, nil
	case KindMIME:
		if spec.Mode != MIMEModeExecutable && spec.Mode != MIMEModeGeneral {
			return nil, fmt.Errorf("%w: mime mode %q", ErrInvalidRule, spec.Mode)
		}
		return &MIMEMatcher{Mode: spec.Mode}, nil
	case KindSignal:
		if len(spec.Kinds) == 0 {
			return nil, fmt.Errorf("%w: signal matcher needs kinds", ErrInvalidRule)
		}
		return &SignalMatcher{Kinds: spec.Kinds}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMatcher, spec.Kind)
	}
}

func (c *Catalog) Version() string {
	return c.version
}

func (c *Catalog) Len() int {
	return len(c.rules)
}

// Rules returns the rules in evaluation order.
func (c *Catalog) Rules() []*Rule {
	out := make([]*Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

func (c *Catalog) ByID(id string) (*Rule, bool) {
	r, ok := c.byID[id]
	return r, ok
}

// ForType returns the rule that emits events of eventType.
func (c *Catalog) ForType(eventType string) (*Rule, bool) {
	r, ok := c.byType[eventType]
	return r, ok
}

func (c *Catalog) ForTarget(target Target) []*Rule {
	return c.byTarget[target]
}

// Match evaluates every rule of target against s.
func (c *Catalog) Match(target Target, s Subject) []MatchResult {
	rules := c.byTarget[target]
	results := make([]MatchResult, 0, len(rules))
	for _, r := range rules {
		results = append(results, MatchResult{
			RuleID:  r.ID,
			Type:    r.Type,
			Matched: r.Matcher.Match(s),
		})
	}
	return results
}

// BurstThreshold returns the threshold matcher of the request burst rule.
func (c *Catalog) BurstThreshold() (*ThresholdMatcher, bool) {
	r, ok := c.byType[domain.TypeSpamRequestBurst]
	if !ok {
		return nil, false
	}
	m, ok := r.Matcher.(*ThresholdMatcher)
	return m, ok
}
