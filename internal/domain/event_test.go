package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOriginOf(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://example.com/login?x=1", "https://example.com"},
		{"HTTPS://Example.COM:443/a", "https://example.com"},
		{"http://example.com:80/", "http://example.com"},
		{"http://localhost:8080/item", "http://localhost:8080"},
		{"http://[::1]:3000/", "http://[::1]:3000"},
		{"", UnknownOrigin},
		{"not a url", UnknownOrigin},
		{"/relative/path", UnknownOrigin},
		{"http://%zz", UnknownOrigin},
		{"data:text/html,hello", UnknownOrigin},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, OriginOf(tc.url), tc.url)
	}
}

func TestNewDetectionEvent(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_123)
	event := NewDetectionEvent(now, "https://shop.test/p?id=1'", TypeSQLiURLPattern,
		CategoryInjection, SeverityCritical, "https://shop.test/p?id=1'", "WID-001")

	assert.Equal(t, int64(1_700_000_000_123), event.Time)
	assert.Equal(t, "https://shop.test", event.Origin)
	assert.Equal(t, CategoryInjection, event.Category)
	assert.Equal(t, SeverityCritical, event.Severity)
	assert.Equal(t, RuleRef("WID-001"), event.RuleID)
	assert.True(t, event.Timestamp().Equal(now))
}

func TestDetectionEventDetailsClamped(t *testing.T) {
	event := NewDetectionEvent(time.Now(), "", TypeInlineScript, CategoryInjection,
		SeverityWarning, strings.Repeat("é", MaxDetailsLength), "")

	assert.LessOrEqual(t, len(event.Details), MaxDetailsLength)
	assert.True(t, strings.HasPrefix(strings.Repeat("é", MaxDetailsLength), event.Details))
	assert.Equal(t, UnknownOrigin, event.Origin)
}

func TestDetectionEventJSONFields(t *testing.T) {
	event := NewDetectionEvent(time.UnixMilli(42), "http://a.test/x", TypeKeylogger,
		CategoryClientSideAttacks, SeverityCritical, "3 listeners", "")

	data, err := event.ToJSON()
	require.NoError(t, err)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &parsed))

	assert.Len(t, parsed, 8)
	assert.Equal(t, float64(42), parsed["time"])
	assert.Equal(t, "http://a.test/x", parsed["url"])
	assert.Equal(t, "http://a.test", parsed["origin"])
	assert.Equal(t, "KEYLOGGER", parsed["type"])
	assert.Equal(t, "CLIENT_SIDE_ATTACKS", parsed["category"])
	assert.Equal(t, "critical", parsed["severity"])
	assert.Equal(t, "3 listeners", parsed["details"])
	assert.Nil(t, parsed["ruleId"])
	assert.Contains(t, parsed, "ruleId")
}

func TestDetectionEventRoundTrip(t *testing.T) {
	original := NewDetectionEvent(time.UnixMilli(99), "https://b.test/", TypeHeaderMissingCSP,
		CategoryMisconfiguration, SeverityWarning, "HTTPS response without Content-Security-Policy header", "WID-012")

	data, err := original.ToJSONPretty()
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"time\": 99")

	var decoded DetectionEvent
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, *original, decoded)
}

func TestDetectionEventRejectsUnknownCategory(t *testing.T) {
	var decoded DetectionEvent
	err := json.Unmarshal([]byte(`{"category":"PHISHING","severity":"warning"}`), &decoded)
	assert.Error(t, err)
}

func TestDisplayDetails(t *testing.T) {
	short := &DetectionEvent{Details: strings.Repeat("a", DisplayDetailsLength)}
	assert.Equal(t, short.Details, short.DisplayDetails())

	long := &DetectionEvent{Details: strings.Repeat("b", DisplayDetailsLength+1)}
	display := long.DisplayDetails()
	assert.Equal(t, strings.Repeat("b", 117)+"...", display)
}

func TestDetectionEvent_Normalize(t *testing.T) {
	e := &DetectionEvent{URL: "https://a.test/x", Type: "T", Category: CategoryXSS, Details: strings.Repeat("d", 2000)}
	require.NoError(t, e.Normalize())
	assert.Equal(t, "https://a.test", e.Origin)
	assert.Len(t, e.Details, MaxDetailsLength)

	bad := &DetectionEvent{Type: "T"}
	assert.Error(t, bad.Normalize())
}
