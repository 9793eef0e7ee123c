// Package sanitize makes untrusted page data safe to print in a terminal.
//
// URLs, header values and script excerpts come straight from the pages
// being watched, so anything that reaches the TUI or the query output goes
// through here first: escape sequences cannot repaint the screen and
// bidirectional overrides cannot reorder what the operator reads.
package sanitize

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// String makes s terminal-safe and truncates it to at most maxLen bytes
// on a rune boundary, marking the cut with "...". maxLen <= 0 disables
// truncation.
func String(s string, maxLen int) string {
	s = Terminal(s)
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return cut(s, maxLen)
	}
	return cut(s, maxLen-3) + "..."
}

// cut returns the longest prefix of s that is at most n bytes and ends on
// a rune boundary.
func cut(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Terminal replaces control characters with visible markers:
//   - ESC and a following CSI sequence become "[ESC]"
//   - tab and newline become a space
//   - CR, other C0/C1 controls and DEL become "[CR]", "[CTRL]", "[DEL]"
//   - bidirectional embedding and override characters become "[BIDI]"
//   - zero-width characters are dropped
func Terminal(s string) string {
	if clean(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)

	for i := 0; i < len(s); {
		if s[i] == 0x1B {
			i = skipEscape(s, i)
			b.WriteString("[ESC]")
			continue
		}

		r, size := utf8.DecodeRuneInString(s[i:])
		i += size

		switch {
		case r == '\t' || r == '\n':
			b.WriteByte(' ')
		case r == '\r':
			b.WriteString("[CR]")
		case r == 0x7F:
			b.WriteString("[DEL]")
		case r < 0x20 || (r >= 0x80 && r <= 0x9F):
			b.WriteString("[CTRL]")
		case isBidi(r):
			b.WriteString("[BIDI]")
		case isZeroWidth(r):
		case r == utf8.RuneError && size == 1:
			b.WriteRune(unicode.ReplacementChar)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func clean(s string) bool {
	for _, r := range s {
		if r < 0x20 || (r >= 0x7F && r <= 0x9F) || isBidi(r) || isZeroWidth(r) || r == utf8.RuneError {
			return false
		}
	}
	return true
}

// skipEscape returns the index after the escape at s[i], consuming a CSI
// sequence when one follows.
func skipEscape(s string, i int) int {
	i++
	if i >= len(s) || s[i] != '[' {
		return i
	}
	i++
	for i < len(s) && !isCSITerminator(s[i]) {
		i++
	}
	if i < len(s) {
		i++
	}
	return i
}

func isCSITerminator(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '@' || c == '`'
}

func isBidi(r rune) bool {
	return (r >= 0x202A && r <= 0x202E) || (r >= 0x2066 && r <= 0x2069) || r == 0x200E || r == 0x200F
}

func isZeroWidth(r rune) bool {
	return (r >= 0x200B && r <= 0x200D) || r == 0xFEFF
}

// URL renders a page URL for display: credentials are dropped and the
// result is terminal-safe and at most maxLen bytes.
func URL(raw string, maxLen int) string {
	if u, err := url.Parse(raw); err == nil && u.User != nil {
		u.User = nil
		raw = u.String()
	}
	return String(raw, maxLen)
}

// Origin keeps only the characters valid in a scheme://host[:port] origin.
func Origin(origin string) string {
	var b strings.Builder
	b.Grow(len(origin))

	for _, r := range origin {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) ||
			strings.ContainsRune(":/.-_[]", r)) {
			b.WriteRune(r)
		}
	}

	if b.Len() == 0 {
		return "[INVALID]"
	}
	return b.String()
}
