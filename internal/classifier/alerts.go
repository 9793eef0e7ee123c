package classifier

import (
	"strings"

	"github.com/xoelrdgz/pagewarden/internal/domain"
)

const (
	shortURLLength = 50
	longURLLength  = 90
)

type alertText struct {
	title   string
	message func(e *domain.DetectionEvent) string
}

func fixed(message string) func(*domain.DetectionEvent) string {
	return func(*domain.DetectionEvent) string { return message }
}

func withURL(lead string, n int) func(*domain.DetectionEvent) string {
	return func(e *domain.DetectionEvent) string {
		return lead + prefix(e.URL, n) + "..."
	}
}

func withDetails(lead string) func(*domain.DetectionEvent) string {
	return func(e *domain.DetectionEvent) string { return lead + e.Details }
}

var alertTexts = map[string]alertText{
	domain.TypeSQLiURLPattern: {
		title: "🛡️ SQL Injection Detected",
		message: func(e *domain.DetectionEvent) string {
			return "SQL Injection attack detected!\nSuspicious URL: " + e.URL +
				"\n\nThis request has been logged and monitored."
		},
	},
	domain.TypeRedirectSuspicious:        {"Suspicious Redirect", withURL("Redirect detected: ", shortURLLength)},
	domain.TypeMalwareDoubleExtension:    {"Double Extension Detected", withURL("Suspicious filename pattern: ", longURLLength)},
	domain.TypeDownloadWithoutGesture:    {"Download Without User Gesture", withURL("File requested without a recent click: ", longURLLength)},
	domain.TypeDownloadInsecureHTTP:      {"Insecure Download", withURL("HTTP download detected: ", longURLLength)},
	domain.TypeMalwareExecutableDownload: {"Suspicious Download", withURL("Potential malware file: ", longURLLength)},
	domain.TypeSpamRequestBurst:          {"Spam Requests Detected", withDetails("")},
	domain.TypeSuspiciousURLKeyword:      {"Suspicious URL Keyword", withDetails("")},
	domain.TypeKnownMaliciousHost:        {"🚨 Known Malicious Host", withDetails("")},

	domain.TypeMIMEMismatchExecutable: {"🚨 MIME Type Mismatch Alert", func(e *domain.DetectionEvent) string {
		return "Suspicious file detected!\n" + e.Details + "\n\nThis could be a malware attempt!"
	}},
	domain.TypeMIMEMismatchGeneral: {"🚨 MIME Type Mismatch Alert", withDetails("File extension doesn't match content type!\n")},
	domain.TypeHeaderMissingCSP: {"Missing Content-Security-Policy",
		fixed("Response over HTTPS has no CSP header, XSS protection weakened.")},
	domain.TypeHeaderMissingHSTS: {"Missing Strict-Transport-Security",
		fixed("HTTPS response has no HSTS header, vulnerable to downgrade/MITM.")},
	domain.TypeHeaderMissingXFO: {"Missing X-Frame-Options",
		fixed("No X-Frame-Options header, page may be vulnerable to clickjacking.")},
	domain.TypeCookieWeakSensitive: {"Weak Sensitive Cookie", func(e *domain.DetectionEvent) string {
		return "Sensitive c" + strings.TrimPrefix(e.Details, "C") + "."
	}},

	domain.TypeClipboardTheft:        {"🚨 Clipboard Stealing Detected", fixed("This page is attempting to read your clipboard data!")},
	domain.TypeClipboardManipulation: {"🚨 Clipboard Data Manipulation", fixed("This page is attempting to modify your clipboard!")},
	domain.TypeKeylogger:             {"🚨 Keylogger Alert", fixed("This page has installed multiple keyboard listeners, possible keylogger!")},
	domain.TypeCameraAccess:          {"🚨 Camera Access Request", fixed("This page is requesting access to your camera!")},
	domain.TypeMicrophoneAccess:      {"🚨 Microphone Access Request", fixed("This page is requesting access to your microphone!")},
	domain.TypeAutoRedirectBlocked:   {"🚨 Auto-Redirect Blocked", withDetails("Redirect was attempted but was blocked!\n")},
	domain.TypeCredentialHijacking: {"🚨 Credential Hijacking Blocked", func(e *domain.DetectionEvent) string {
		return "Login form tried to send credentials to third-party domain!\n" + e.Details +
			"\n\nForm submission was blocked!"
	}},
}

// AlertFor derives the user-facing alert for an event. Types without a
// dedicated text get "<type> Detected" with the event details as message.
func AlertFor(event *domain.DetectionEvent, tab domain.TabID) domain.Alert {
	alert := domain.Alert{
		Severity: event.Severity,
		Category: event.Category,
		Type:     event.Type,
		URL:      event.URL,
		TabID:    tab,
	}

	if event.Type == domain.TypeHeaderWeakReferrer {
		if strings.HasPrefix(event.Details, "Missing") {
			alert.Title = "Missing Referrer-Policy"
			alert.Message = "No Referrer-Policy header, sensitive URLs may leak via Referer."
		} else {
			alert.Title = "Weak Referrer-Policy"
			alert.Message = event.Details + ", may leak more data than necessary."
		}
		return alert
	}

	if text, ok := alertTexts[event.Type]; ok {
		alert.Title = text.title
		alert.Message = text.message(event)
		return alert
	}

	alert.Title = event.Type + " Detected"
	alert.Message = event.Details
	return alert
}

// DownloadAlerts returns the extra "Suspicious Download" alert owed to each
// double-extension download that produced no executable-download event.
// Every risky download raises that alert; the executable event only
// covers the extensions the executable rule lists.
func DownloadAlerts(events []*domain.DetectionEvent, tab domain.TabID) []domain.Alert {
	executable := make(map[string]bool)
	for _, e := range events {
		if e.Type == domain.TypeMalwareExecutableDownload {
			executable[e.URL] = true
		}
	}

	text := alertTexts[domain.TypeMalwareExecutableDownload]
	var alerts []domain.Alert
	for _, e := range events {
		if e.Type != domain.TypeMalwareDoubleExtension || executable[e.URL] {
			continue
		}
		executable[e.URL] = true
		alerts = append(alerts, domain.Alert{
			Title:    text.title,
			Message:  text.message(e),
			Severity: e.Severity,
			Category: e.Category,
			Type:     e.Type,
			URL:      e.URL,
			TabID:    tab,
		})
	}
	return alerts
}
