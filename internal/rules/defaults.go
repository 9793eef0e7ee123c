package rules

import "github.com/xoelrdgz/pagewarden/internal/domain"

const DefaultVersion = "1.0.0"

const runtimeXSSPattern = `<script|javascript:|on\w+\s*=|<iframe|eval\(`

// DefaultDefinitions returns the built-in rule set. IDs are stable across
// releases; rule files override entries by ID.
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			ID:          "WID-001",
			Type:        domain.TypeSQLiURLPattern,
			Target:      string(TargetURL),
			Category:    "INJECTION",
			Severity:    "critical",
			Description: "SQL metacharacters or keywords in a request URL",
			Match:       MatchSpec{Kind: KindRegex, Pattern: `('|--|%27|OR 1=1|UNION SELECT|SELECT \* FROM|DROP TABLE|INSERT INTO)`},
		},
		{
			ID:          "WID-002",
			Type:        domain.TypeRedirectSuspicious,
			Target:      string(TargetURL),
			Category:    "CLIENT_SIDE_ATTACKS",
			Severity:    "warning",
			Description: "Redirect-style query parameter",
			Match:       MatchSpec{Kind: KindRegex, Pattern: `(redirect|goto|location|weird|suspicious|malicious)=`},
		},
		{
			ID:          "WID-003",
			Type:        domain.TypeMalwareExecutableDownload,
			Target:      string(TargetURL),
			Category:    "CLIENT_SIDE_ATTACKS",
			Severity:    "warning",
			Description: "Request for an executable or archive file",
			Match:       MatchSpec{Kind: KindRegex, Pattern: `\.(exe|zip|bat|scr|cmd|pif|js|vbs)$`},
		},
		{
			ID:          "WID-004",
			Type:        domain.TypeMalwareDoubleExtension,
			Target:      string(TargetURL),
			Category:    "MISCONFIGURATION",
			Severity:    "warning",
			Description: "Document extension followed by an executable extension",
			Match:       MatchSpec{Kind: KindRegex, Pattern: `\.(?:pdf|docx?|xlsx?|pptx?|txt|rtf|png|jpe?g|gif|bmp|zip)\.(exe|scr|pif|bat|cmd|js|vbs|jar|iso)$`},
		},
		{
			ID:          "WID-005",
			Type:        domain.TypeDownloadWithoutGesture,
			Target:      string(TargetBehavior),
			Category:    "CLIENT_SIDE_ATTACKS",
			Severity:    "warning",
			Description: "Download requested without a user gesture inside the window",
			Match:       MatchSpec{Kind: KindThreshold, Count: 1, WindowMs: 2000},
		},
		{
			ID:          "WID-006",
			Type:        domain.TypeDownloadInsecureHTTP,
			Target:      string(TargetURL),
			Category:    "MISCONFIGURATION",
			Severity:    "warning",
			Description: "Download over plain HTTP",
			Match:       MatchSpec{Kind: KindRegex, Pattern: `^http://`},
		},
		{
			ID:          "WID-007",
			Type:        domain.TypeSpamRequestBurst,
			Target:      string(TargetBehavior),
			Category:    "CLIENT_SIDE_ATTACKS",
			Severity:    "warning",
			Description: "Request burst above threshold inside the window",
			Match:       MatchSpec{Kind: KindThreshold, Count: 10, WindowMs: 2000},
		},
		{
			ID:          "WID-008",
			Type:        domain.TypeSuspiciousURLKeyword,
			Target:      string(TargetURL),
			Category:    "CLIENT_SIDE_ATTACKS",
			Severity:    "warning",
			Description: "Malware-related keyword in a request URL",
			Match:       MatchSpec{Kind: KindSubstring, Patterns: []string{"malware", "virus", "exploit", "payload", "phishing", "evil-server"}},
		},
		{
			ID:          "WID-009",
			Type:        domain.TypeKnownMaliciousHost,
			Target:      string(TargetPage),
			Category:    "CLIENT_SIDE_ATTACKS",
			Severity:    "critical",
			Description: "Request to a host on the blocklist",
			Match:       MatchSpec{Kind: KindSignal, Kinds: []string{domain.TypeKnownMaliciousHost}},
		},
		{
			ID:          "WID-010",
			Type:        domain.TypeMIMEMismatchExecutable,
			Target:      string(TargetHeader),
			Category:    "MISCONFIGURATION",
			Severity:    "critical",
			Description: "Document content type served under an executable extension",
			Match:       MatchSpec{Kind: KindMIME, Mode: MIMEModeExecutable},
		},
		{
			ID:          "WID-011",
			Type:        domain.TypeMIMEMismatchGeneral,
			Target:      string(TargetHeader),
			Category:    "MISCONFIGURATION",
			Severity:    "warning",
			Description: "Content type does not match the file extension",
			Match:       MatchSpec{Kind: KindMIME, Mode: MIMEModeGeneral},
		},
		{
			ID:          "WID-012",
			Type:        domain.TypeHeaderMissingCSP,
			Target:      string(TargetHeader),
			Category:    "MISCONFIGURATION",
			Severity:    "warning",
			Description: "HTTPS response without Content-Security-Policy",
			Match:       MatchSpec{Kind: KindHeader, Header: "Content-Security-Policy", HTTPSOnly: true},
		},
		{
			ID:          "WID-013",
			Type:        domain.TypeHeaderMissingHSTS,
			Target:      string(TargetHeader),
			Category:    "MISCONFIGURATION",
			Severity:    "warning",
			Description: "HTTPS response without Strict-Transport-Security",
			Match:       MatchSpec{Kind: KindHeader, Header: "Strict-Transport-Security", HTTPSOnly: true},
		},
		{
			ID:          "WID-014",
			Type:        domain.TypeHeaderWeakReferrer,
			Target:      string(TargetHeader),
			Category:    "MISCONFIGURATION",
			Severity:    "warning",
			Description: "Missing or weak Referrer-Policy",
			Match: MatchSpec{
				Kind:   KindHeader,
				Header: "Referrer-Policy",
				Strong: []string{"no-referrer", "same-origin", "strict-origin", "strict-origin-when-cross-origin"},
			},
		},
		{
			ID:          "WID-015",
			Type:        domain.TypeHeaderMissingXFO,
			Target:      string(TargetHeader),
			Category:    "MISCONFIGURATION",
			Severity:    "warning",
			Description: "Missing X-Frame-Options",
			Match:       MatchSpec{Kind: KindHeader, Header: "X-Frame-Options"},
		},
		{
			ID:          "WID-016",
			Type:        domain.TypeCookieWeakSensitive,
			Target:      string(TargetHeader),
			Category:    "SENSITIVE_DATA_EXPOSURE",
			Severity:    "warning",
			Description: "Session-like cookie without HttpOnly or Secure",
			Match: MatchSpec{
				Kind:     KindCookie,
				Markers:  []string{"session", "auth", "token", "jwt"},
				Required: []string{"HttpOnly", "Secure"},
			},
		},
		{
			ID:          "WID-020",
			Type:        domain.TypeInlineScript,
			Target:      string(TargetDOM),
			Category:    "INJECTION",
			Severity:    "warning",
			Description: "Inline script with injection markers",
			Match:       MatchSpec{Kind: KindRegex, Pattern: `(alert\(|eval\(|document\.write|innerHTML.*script|new Function)`},
		},
		{
			ID:          "WID-021",
			Type:        domain.TypeSuspiciousAttribute,
			Target:      string(TargetDOM),
			Category:    "INJECTION",
			Severity:    "warning",
			Description: "Inline event handler running script",
			Match:       MatchSpec{Kind: KindRegex, Pattern: `javascript:|eval|new Function`},
		},
		{
			ID:          "WID-022",
			Type:        domain.TypeClipboardTheft,
			Target:      string(TargetPage),
			Category:    "CLIENT_SIDE_ATTACKS",
			Severity:    "critical",
			Description: "Page read the clipboard",
			Match:       MatchSpec{Kind: KindSignal, Kinds: []string{domain.TypeClipboardTheft}},
		},
		{
			ID:          "WID-023",
			Type:        domain.TypeClipboardManipulation,
			Target:      string(TargetPage),
			Category:    "CLIENT_SIDE_ATTACKS",
			Severity:    "critical",
			Description: "Page overwrote the clipboard",
			Match:       MatchSpec{Kind: KindSignal, Kinds: []string{domain.TypeClipboardManipulation}},
		},
		{
			ID:          "WID-024",
			Type:        domain.TypeKeylogger,
			Target:      string(TargetBehavior),
			Category:    "CLIENT_SIDE_ATTACKS",
			Severity:    "critical",
			Description: "Several keyboard listeners registered by one page",
			Match:       MatchSpec{Kind: KindThreshold, Count: 2},
		},
		{
			ID:          "WID-025",
			Type:        domain.TypeCameraAccess,
			Target:      string(TargetPage),
			Category:    "CLIENT_SIDE_ATTACKS",
			Severity:    "warning",
			Description: "Page requested the camera",
			Match:       MatchSpec{Kind: KindSignal, Kinds: []string{domain.TypeCameraAccess}},
		},
		{
			ID:          "WID-026",
			Type:        domain.TypeMicrophoneAccess,
			Target:      string(TargetPage),
			Category:    "CLIENT_SIDE_ATTACKS",
			Severity:    "warning",
			Description: "Page requested the microphone",
			Match:       MatchSpec{Kind: KindSignal, Kinds: []string{domain.TypeMicrophoneAccess}},
		},
		{
			ID:          "WID-027",
			Type:        domain.TypeAutoRedirectBlocked,
			Target:      string(TargetBehavior),
			Category:    "CLIENT_SIDE_ATTACKS",
			Severity:    "warning",
			Description: "Navigation later than the click grace window",
			Match:       MatchSpec{Kind: KindThreshold, Count: 1, WindowMs: 500},
		},
		{
			ID:          "WID-028",
			Type:        domain.TypeCredentialHijacking,
			Target:      string(TargetPage),
			Category:    "SENSITIVE_DATA_EXPOSURE",
			Severity:    "critical",
			Description: "Password form posting cross-domain or downgrading to HTTP",
			Match:       MatchSpec{Kind: KindSignal, Kinds: []string{domain.TypeCredentialHijacking}},
		},
		{
			ID:          "WID-029",
			Type:        domain.TypeRuntimeXSSInnerHTML,
			Target:      string(TargetDOM),
			Category:    "XSS",
			Severity:    "warning",
			Description: "Script-bearing markup written through innerHTML",
			Match:       MatchSpec{Kind: KindRegex, Pattern: runtimeXSSPattern},
		},
		{
			ID:          "WID-030",
			Type:        domain.TypeRuntimeXSSDocWrite,
			Target:      string(TargetDOM),
			Category:    "XSS",
			Severity:    "warning",
			Description: "Script-bearing markup written through document.write",
			Match:       MatchSpec{Kind: KindRegex, Pattern: runtimeXSSPattern},
		},
		{
			ID:          "WID-031",
			Type:        domain.TypeRuntimeXSSAdjacent,
			Target:      string(TargetDOM),
			Category:    "XSS",
			Severity:    "warning",
			Description: "Script-bearing markup written through insertAdjacentHTML",
			Match:       MatchSpec{Kind: KindRegex, Pattern: runtimeXSSPattern},
		},
	}
}
