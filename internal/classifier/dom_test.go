package classifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/pagewarden/internal/domain"
)

const pageURL = "https://bank.test/login"

func observe(c *Classifier, tab domain.TabID, obs domain.Observation) []*domain.DetectionEvent {
	return c.OnDOMObservation(domain.DOMSignal{Observation: obs, PageURL: pageURL, TabID: tab})
}

func TestOnDOMObservation_InlineScript(t *testing.T) {
	c, _ := newTestClassifier(t)

	body := "eval(atob('" + strings.Repeat("A", 200) + "'))"
	events := observe(c, 1, domain.Observation{Kind: domain.ObserveInlineScript, Content: body})
	require.Len(t, events, 1)
	assert.Equal(t, domain.TypeInlineScript, events[0].Type)
	assert.Equal(t, domain.CategoryInjection, events[0].Category)
	assert.Equal(t, body[:100], events[0].Details)
	assert.Equal(t, pageURL, events[0].URL)

	assert.Empty(t, observe(c, 1, domain.Observation{Kind: domain.ObserveInlineScript, Content: "console.log(1)"}))
}

func TestOnDOMObservation_Attribute(t *testing.T) {
	c, _ := newTestClassifier(t)

	events := observe(c, 1, domain.Observation{Kind: domain.ObserveAttribute, Attribute: "onError", Value: "eval(x)"})
	require.Len(t, events, 1)
	assert.Equal(t, `onerror="eval(x)"`, events[0].Details)

	assert.Empty(t, observe(c, 1, domain.Observation{Kind: domain.ObserveAttribute, Attribute: "href", Value: "javascript:void(0)"}),
		"only inline event handlers are scanned")
	assert.Empty(t, observe(c, 1, domain.Observation{Kind: domain.ObserveAttribute, Attribute: "onclick", Value: "toggle()"}))
}

func TestOnDOMObservation_Clipboard(t *testing.T) {
	c, _ := newTestClassifier(t)

	read := observe(c, 1, domain.Observation{Kind: domain.ObserveClipboardRead})
	require.Len(t, read, 1)
	assert.Equal(t, domain.SeverityCritical, read[0].Severity)
	assert.Equal(t, "Page attempted to read clipboard data", read[0].Details)

	write := observe(c, 1, domain.Observation{Kind: domain.ObserveClipboardWrite, Content: strings.Repeat("w", 60)})
	require.Len(t, write, 1)
	assert.Equal(t, domain.TypeClipboardManipulation, write[0].Type)
	assert.Equal(t, "Page attempted to modify clipboard: "+strings.Repeat("w", 50)+"...", write[0].Details)
}

func TestOnDOMObservation_Keylogger(t *testing.T) {
	c, _ := newTestClassifier(t)
	tab := domain.TabID(2)

	assert.Empty(t, observe(c, tab, domain.Observation{Kind: domain.ObserveKeyListener, EventType: "keydown"}))
	assert.Empty(t, observe(c, tab, domain.Observation{Kind: domain.ObserveKeyListener, EventType: "click"}))

	events := observe(c, tab, domain.Observation{Kind: domain.ObserveKeyListener, EventType: "keyup"})
	require.Len(t, events, 1)
	assert.Equal(t, domain.TypeKeylogger, events[0].Type)
	assert.Equal(t, "Multiple keyboard event listeners detected (2 total)", events[0].Details)

	assert.Empty(t, observe(c, domain.TabID(3), domain.Observation{Kind: domain.ObserveKeyListener, EventType: "keypress"}),
		"listeners are counted per tab")

	observe(c, tab, domain.Observation{Kind: domain.ObserveNavigation})
	assert.Empty(t, observe(c, tab, domain.Observation{Kind: domain.ObserveKeyListener, EventType: "keydown"}),
		"navigation starts a new count")
}

func TestOnDOMObservation_Media(t *testing.T) {
	c, _ := newTestClassifier(t)

	events := observe(c, 1, domain.Observation{Kind: domain.ObserveMediaRequest, Video: true, Audio: true})
	assert.Equal(t, []string{domain.TypeCameraAccess, domain.TypeMicrophoneAccess}, types(events))

	events = observe(c, 1, domain.Observation{Kind: domain.ObserveMediaRequest, Audio: true})
	assert.Equal(t, []string{domain.TypeMicrophoneAccess}, types(events))
}

func TestOnDOMObservation_AutoRedirect(t *testing.T) {
	c, _ := newTestClassifier(t)

	assert.Empty(t, observe(c, 1, domain.Observation{Kind: domain.ObserveNavigation, Target: "https://x.test", SinceLastClick: 500}))

	events := observe(c, 1, domain.Observation{Kind: domain.ObserveNavigation, Target: "https://x.test", SinceLastClick: 501})
	require.Len(t, events, 1)
	assert.Equal(t, "Automatic redirect detected: https://x.test", events[0].Details)
}

func TestOnDOMObservation_CredentialHijack(t *testing.T) {
	c, _ := newTestClassifier(t)

	events := observe(c, 1, domain.Observation{Kind: domain.ObserveFormSubmit, Action: "http://collector.evil/steal", HasPassword: true})
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, domain.TypeCredentialHijacking, e.Type)
	assert.Equal(t, domain.SeverityCritical, e.Severity)
	assert.Equal(t, domain.CategorySensitiveDataExposure, e.Category)
	assert.Contains(t, e.Details, "collector.evil")
	assert.Contains(t, e.Details, ReasonCrossDomain)
	assert.Contains(t, e.Details, ReasonDowngrade)

	assert.Empty(t, observe(c, 1, domain.Observation{Kind: domain.ObserveFormSubmit, Action: "/session", HasPassword: true}))
	assert.Empty(t, observe(c, 1, domain.Observation{Kind: domain.ObserveFormSubmit, Action: "https://other.test/"}),
		"forms without a password field are ignored")
}

func TestOnDOMObservation_SinkWrite(t *testing.T) {
	c, _ := newTestClassifier(t)

	tests := []struct {
		sink     string
		expected string
	}{
		{"innerHTML", domain.TypeRuntimeXSSInnerHTML},
		{"document.write", domain.TypeRuntimeXSSDocWrite},
		{"insertAdjacentHTML", domain.TypeRuntimeXSSAdjacent},
	}

	for _, tc := range tests {
		events := observe(c, 1, domain.Observation{Kind: domain.ObserveSinkWrite, Sink: tc.sink, Content: "<img src=x onerror=alert(1)>"})
		require.Len(t, events, 1, tc.sink)
		assert.Equal(t, tc.expected, events[0].Type)
		assert.Equal(t, domain.CategoryXSS, events[0].Category)
	}

	assert.Empty(t, observe(c, 1, domain.Observation{Kind: domain.ObserveSinkWrite, Sink: "innerHTML", Content: "<b>ok</b>"}))
	assert.Empty(t, observe(c, 1, domain.Observation{Kind: domain.ObserveSinkWrite, Sink: "textContent", Content: "<script>"}))
}

func TestEvaluateFormTarget(t *testing.T) {
	tests := []struct {
		name    string
		page    string
		action  string
		target  string
		reasons []string
	}{
		{"same origin relative", "https://bank.test/login", "/auth", "bank.test", nil},
		{"empty action", "https://bank.test/login", "", "bank.test", nil},
		{"cross domain", "https://bank.test/login", "https://evil.test/c", "evil.test", []string{ReasonCrossDomain}},
		{"downgrade same host", "https://bank.test/login", "http://bank.test/c", "bank.test", []string{ReasonDowngrade}},
		{"both", "https://bank.test/login", "http://evil.test/c", "evil.test", []string{ReasonCrossDomain, ReasonDowngrade}},
		{"localhost allowed", "http://bank.test/login", "http://localhost:8080/c", "localhost", nil},
		{"http page to http", "http://bank.test/login", "http://bank.test/c", "bank.test", nil},
		{"bad page url", "not a url", "https://evil.test", "https://evil.test", nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			target, reasons := EvaluateFormTarget(tc.page, tc.action)
			assert.Equal(t, tc.target, target)
			assert.Equal(t, tc.reasons, reasons)
		})
	}
}

func TestAlertFor(t *testing.T) {
	c, _ := newTestClassifier(t)

	sqli := c.OnRequest(domain.RequestSignal{URL: "https://a.test/?id=1'--", TabID: 5})[0]
	alert := AlertFor(sqli, 5)
	assert.Equal(t, "🛡️ SQL Injection Detected", alert.Title)
	assert.Contains(t, alert.Message, "https://a.test/?id=1'--")
	assert.Equal(t, domain.SeverityCritical, alert.Severity)
	assert.Equal(t, domain.TabID(5), alert.TabID)

	long := "https://a.test/?redirect=" + strings.Repeat("x", 80)
	redirect := c.OnRequest(domain.RequestSignal{URL: long})[0]
	alert = AlertFor(redirect, 0)
	assert.Equal(t, "Suspicious Redirect", alert.Title)
	assert.Equal(t, "Redirect detected: "+long[:50]+"...", alert.Message)

	headers := c.OnResponseHeaders(domain.HeadersSignal{URL: "http://a.test/", Headers: []domain.Header{
		{Name: "Referrer-Policy", Value: "unsafe-url"},
		{Name: "Set-Cookie", Value: "session=1"},
	}})
	require.Len(t, headers, 3)
	assert.Equal(t, "Weak Referrer-Policy", AlertFor(headers[0], 0).Title)
	assert.Equal(t, "Missing X-Frame-Options", AlertFor(headers[1], 0).Title)
	assert.Equal(t, "Sensitive cookie 'session' missing HttpOnly and Secure flag(s).", AlertFor(headers[2], 0).Message)

	missing := c.OnResponseHeaders(domain.HeadersSignal{URL: "http://a.test/", Headers: []domain.Header{{Name: "X-Frame-Options", Value: "DENY"}}})
	require.Len(t, missing, 1)
	assert.Equal(t, "Missing Referrer-Policy", AlertFor(missing[0], 0).Title)

	custom := c.OnPageSignal(domain.PageSignal{ThreatType: "FINGERPRINTING", Details: "canvas read"})[0]
	alert = AlertFor(custom, 0)
	assert.Equal(t, "FINGERPRINTING Detected", alert.Title)
	assert.Equal(t, "canvas read", alert.Message)
}

func TestDownloadAlerts(t *testing.T) {
	c, _ := newTestClassifier(t)

	doubleOnly := c.OnRequest(domain.RequestSignal{URL: "https://files.test/invoice.pdf.jar", TabID: 4})
	require.Equal(t, []string{domain.TypeMalwareDoubleExtension, domain.TypeDownloadWithoutGesture}, types(doubleOnly))
	alerts := DownloadAlerts(doubleOnly, 4)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Suspicious Download", alerts[0].Title)
	assert.Equal(t, "Potential malware file: https://files.test/invoice.pdf.jar...", alerts[0].Message)
	assert.Equal(t, domain.TypeMalwareDoubleExtension, alerts[0].Type)
	assert.Equal(t, domain.TabID(4), alerts[0].TabID)

	both := c.OnRequest(domain.RequestSignal{URL: "https://files.test/invoice.pdf.exe", TabID: 4})
	assert.Contains(t, types(both), domain.TypeMalwareExecutableDownload)
	assert.Empty(t, DownloadAlerts(both, 4), "executable event already carries the alert")

	assert.Empty(t, DownloadAlerts(nil, 0))
}
