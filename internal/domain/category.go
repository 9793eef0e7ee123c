package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Category is the closed set of detection categories.
type Category string

const (
	CategoryInjection             Category = "INJECTION"
	CategoryXSS                   Category = "XSS"
	CategoryMisconfiguration      Category = "MISCONFIGURATION"
	CategorySensitiveDataExposure Category = "SENSITIVE_DATA_EXPOSURE"
	CategoryClientSideAttacks     Category = "CLIENT_SIDE_ATTACKS"
)

// AllCategories lists every category in display order.
var AllCategories = []Category{
	CategoryInjection,
	CategoryXSS,
	CategoryMisconfiguration,
	CategorySensitiveDataExposure,
	CategoryClientSideAttacks,
}

// ParseCategory accepts any casing of a known category name.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if c.Valid() {
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

func (c *Category) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParseCategory(str)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Severity is ordered: info < warning < critical.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return SeverityInfo, nil
	case "warning":
		return SeverityWarning, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return SeverityInfo, fmt.Errorf("unknown severity %q", s)
	}
}

func (s Severity) AtLeast(min Severity) bool {
	return s >= min
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParseSeverity(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Color returns the ANSI escape used by console outputs.
func (s Severity) Color() string {
	switch s {
	case SeverityCritical:
		return "\033[31m"
	case SeverityWarning:
		return "\033[33m"
	case SeverityInfo:
		return "\033[36m"
	default:
		return "\033[0m"
	}
}
