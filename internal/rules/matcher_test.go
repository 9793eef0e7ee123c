package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xoelrdgz/pagewarden/internal/domain"
)

func ruleFor(t *testing.T, eventType string) *Rule {
	t.Helper()
	r, ok := Default().ForType(eventType)
	if !ok {
		t.Fatalf("no rule for %s", eventType)
	}
	return r
}

func TestURLRegexRules(t *testing.T) {
	tests := []struct {
		eventType string
		url       string
		expected  bool
	}{
		{domain.TypeSQLiURLPattern, "https://shop.test/p?id=1' OR 1=1--", true},
		{domain.TypeSQLiURLPattern, "https://shop.test/p?q=union select", true},
		{domain.TypeSQLiURLPattern, "https://shop.test/p?q=%27", true},
		{domain.TypeSQLiURLPattern, "https://shop.test/p?id=42", false},
		{domain.TypeRedirectSuspicious, "https://a.test/?goto=https://b.test", true},
		{domain.TypeRedirectSuspicious, "https://a.test/?Redirect=x", true},
		{domain.TypeRedirectSuspicious, "https://a.test/location/list", false},
		{domain.TypeMalwareExecutableDownload, "http://x.test/setup.EXE", true},
		{domain.TypeMalwareExecutableDownload, "http://x.test/setup.exe?v=1", false},
		{domain.TypeMalwareDoubleExtension, "https://x.test/invoice.pdf.exe", true},
		{domain.TypeMalwareDoubleExtension, "https://x.test/photo.JPEG.scr", true},
		{domain.TypeMalwareDoubleExtension, "https://x.test/invoice.exe", false},
		{domain.TypeDownloadInsecureHTTP, "http://x.test/a.zip", true},
		{domain.TypeDownloadInsecureHTTP, "https://x.test/a.zip", false},
	}

	for _, tc := range tests {
		r := ruleFor(t, tc.eventType)
		assert.Equal(t, tc.expected, r.Matches(Subject{Text: tc.url}), "%s %s", tc.eventType, tc.url)
	}
}

func TestSubstringMatcherFind(t *testing.T) {
	m := ruleFor(t, domain.TypeSuspiciousURLKeyword).Matcher.(*SubstringMatcher)

	assert.True(t, m.Match(Subject{Text: "https://evil-server.test/"}))
	assert.Equal(t, []string{"exploit", "payload"}, m.Find("https://x.test/Exploit/payload"))
	assert.Nil(t, m.Find("https://x.test/"))
}

func TestThresholdMatcher(t *testing.T) {
	m := &ThresholdMatcher{Count: 2}
	assert.False(t, m.Match(Subject{Count: 1}))
	assert.True(t, m.Match(Subject{Count: 2}))
	assert.True(t, m.Match(Subject{Count: 5}))
}

func TestHeaderPresenceMatcher(t *testing.T) {
	csp := ruleFor(t, domain.TypeHeaderMissingCSP).Matcher.(*HeaderPresenceMatcher)
	referrer := ruleFor(t, domain.TypeHeaderWeakReferrer).Matcher.(*HeaderPresenceMatcher)

	none := []domain.Header{{Name: "Content-Type", Value: "text/html"}}
	assert.True(t, csp.Check(none, true).Fired)
	assert.False(t, csp.Check(none, false).Fired, "CSP only checked over HTTPS")

	withCSP := []domain.Header{{Name: "content-security-policy", Value: "default-src 'self'"}}
	assert.False(t, csp.Check(withCSP, true).Fired)

	missing := referrer.Check(none, false)
	assert.True(t, missing.Fired)
	assert.False(t, missing.Present)

	weak := referrer.Check([]domain.Header{{Name: "Referrer-Policy", Value: "Unsafe-URL"}}, false)
	assert.True(t, weak.Fired)
	assert.True(t, weak.Present)
	assert.Equal(t, "unsafe-url", weak.Value)

	strong := referrer.Check([]domain.Header{{Name: "Referrer-Policy", Value: "strict-origin-when-cross-origin"}}, false)
	assert.False(t, strong.Fired)

	assert.True(t, referrer.Match(Subject{Headers: none}))
}

func TestCookieFlagMatcher(t *testing.T) {
	m := ruleFor(t, domain.TypeCookieWeakSensitive).Matcher.(*CookieFlagMatcher)

	tests := []struct {
		setCookie string
		name      string
		sensitive bool
		missing   string
	}{
		{"sessionid=abc; Path=/", "sessionid", true, "HttpOnly and Secure"},
		{"auth_token=abc; Secure", "auth_token", true, "HttpOnly"},
		{"JWT=abc; HttpOnly", "JWT", true, "Secure"},
		{"session=abc; HttpOnly; Secure; SameSite=Lax", "session", true, ""},
		{"theme=dark", "theme", false, ""},
		{"authz=secure; SameSite=Strict", "authz", true, "HttpOnly and Secure"},
	}

	for _, tc := range tests {
		f := m.Inspect(tc.setCookie)
		assert.Equal(t, tc.name, f.Name, tc.setCookie)
		assert.Equal(t, tc.sensitive, f.Sensitive, tc.setCookie)
		assert.Equal(t, tc.missing, f.MissingFlags(), tc.setCookie)
		assert.Equal(t, tc.sensitive && tc.missing != "", m.Match(Subject{Text: tc.setCookie}), tc.setCookie)
	}
}

func TestMIMEMatcher(t *testing.T) {
	executable := &MIMEMatcher{Mode: MIMEModeExecutable}
	general := &MIMEMatcher{Mode: MIMEModeGeneral}

	fired, _ := executable.Check("application/pdf", "exe")
	assert.True(t, fired)
	fired, _ = executable.Check("text/html", "exe")
	assert.False(t, fired)

	fired, expected := general.Check("text/html", "png")
	assert.True(t, fired)
	assert.Equal(t, "image/png", expected)

	fired, _ = general.Check("image/png", "png")
	assert.False(t, fired)
	fired, _ = general.Check("text/html", "unknownext")
	assert.False(t, fired)
	fired, _ = general.Check("", "png")
	assert.False(t, fired)

	assert.True(t, general.Match(Subject{ContentType: "text/plain", Extension: "pdf"}))
}

func TestMediaTypeAndExtension(t *testing.T) {
	assert.Equal(t, "application/pdf", MediaType("Application/PDF; charset=binary"))
	assert.Equal(t, "", MediaType(""))

	assert.Equal(t, "exe", Extension("https://x.test/files/report.EXE?dl=1"))
	assert.Equal(t, "gz", Extension("https://x.test/a.tar.gz"))
	assert.Equal(t, "", Extension("https://x.test/files/"))
	assert.Equal(t, "", Extension("https://x.test/dir.d/readme"))
	assert.Equal(t, "", Extension("http://%zz"))
}

func TestSignalMatcher(t *testing.T) {
	m := &SignalMatcher{Kinds: []string{domain.TypeClipboardTheft}}
	assert.True(t, m.Match(Subject{Text: "clipboard_theft"}))
	assert.False(t, m.Match(Subject{Text: "KEYLOGGER"}))
}

func TestDOMRegexRules(t *testing.T) {
	inline := ruleFor(t, domain.TypeInlineScript)
	assert.True(t, inline.Matches(Subject{Text: "el.innerHTML = '<script>x</script>'"}))
	assert.True(t, inline.Matches(Subject{Text: "EVAL(atob(p))"}))
	assert.False(t, inline.Matches(Subject{Text: "console.log('ready')"}))

	xss := ruleFor(t, domain.TypeRuntimeXSSInnerHTML)
	assert.True(t, xss.Matches(Subject{Text: `<img src=x onerror = "steal()">`}))
	assert.False(t, xss.Matches(Subject{Text: "<b>hello</b>"}))
}
