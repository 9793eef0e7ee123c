package input

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/pagewarden/internal/domain"
)

func TestJSONDecoder_Decode(t *testing.T) {
	d := NewJSONDecoder()

	tests := []struct {
		name string
		line string
		want domain.Signal
	}{
		{
			name: "request",
			line: `{"kind":"request","url":"https://a.example/x","tabId":3}`,
			want: domain.RequestSignal{URL: "https://a.example/x", TabID: 3},
		},
		{
			name: "request without tab",
			line: `{"kind":"request","url":"https://a.example/x","tabId":null}`,
			want: domain.RequestSignal{URL: "https://a.example/x"},
		},
		{
			name: "headers",
			line: `{"kind":"headers","url":"https://a.example/","tabId":1,"headers":[{"name":"X-Frame-Options","value":"DENY"}]}`,
			want: domain.HeadersSignal{
				URL:     "https://a.example/",
				TabID:   1,
				Headers: []domain.Header{{Name: "X-Frame-Options", Value: "DENY"}},
			},
		},
		{
			name: "page",
			line: `{"kind":"page","threatType":"KEYLOGGER","details":"2 listeners","pageUrl":"https://a.example/login","tabId":7}`,
			want: domain.PageSignal{ThreatType: "KEYLOGGER", Details: "2 listeners", PageURL: "https://a.example/login", TabID: 7},
		},
		{
			name: "legacy threat message",
			line: `{"type":"THREAT_DETECTED","threatType":"CAMERA_ACCESS","details":"video","category":"privacy","url":"https://a.example/"}`,
			want: domain.PageSignal{ThreatType: "CAMERA_ACCESS", Details: "video", Category: "privacy", PageURL: "https://a.example/"},
		},
		{
			name: "legacy gesture message",
			line: `{"type":"USER_GESTURE","tabId":2}`,
			want: domain.GestureSignal{TabID: 2},
		},
		{
			name: "dom",
			line: `{"kind":"dom","pageUrl":"https://a.example/","tabId":4,"observation":{"kind":"navigation","target":"https://b.example/","sinceLastClickMs":120}}`,
			want: domain.DOMSignal{
				Observation: domain.Observation{Kind: domain.ObserveNavigation, Target: "https://b.example/", SinceLastClick: 120},
				PageURL:     "https://a.example/",
				TabID:       4,
			},
		},
		{
			name: "kind is case insensitive",
			line: `{"kind":"Gesture","tabId":9}`,
			want: domain.GestureSignal{TabID: 9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Decode([]byte(tt.line))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJSONDecoder_Blank(t *testing.T) {
	sig, err := NewJSONDecoder().Decode([]byte("   \n"))
	assert.NoError(t, err)
	assert.Nil(t, sig)
}

func TestJSONDecoder_Rejects(t *testing.T) {
	d := NewJSONDecoder()

	tests := []struct {
		name string
		line string
	}{
		{"not json", `kind=request`},
		{"missing kind", `{"url":"https://a.example/"}`},
		{"unknown kind", `{"kind":"telemetry"}`},
		{"unknown legacy type", `{"type":"PING"}`},
		{"request without url", `{"kind":"request","tabId":1}`},
		{"headers without url", `{"kind":"headers","headers":[]}`},
		{"dom without observation", `{"kind":"dom","pageUrl":"https://a.example/"}`},
		{"dom with empty observation", `{"kind":"dom","observation":{}}`},
		{"oversized", `{"kind":"request","url":"https://a.example/?q=` + strings.Repeat("a", MaxSignalLength) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := d.Decode([]byte(tt.line))
			assert.ErrorIs(t, err, ErrInvalidSignal)
			assert.Nil(t, sig)
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	d := NewJSONDecoder()
	signals := []domain.Signal{
		domain.RequestSignal{URL: "https://a.example/x", TabID: 1},
		domain.HeadersSignal{URL: "https://a.example/", TabID: 2, Headers: []domain.Header{{Name: "A", Value: "b"}}},
		domain.PageSignal{ThreatType: "CLIPBOARD_THEFT", Details: "read", PageURL: "https://a.example/", TabID: 3},
		domain.GestureSignal{TabID: 4},
		domain.DOMSignal{Observation: domain.Observation{Kind: domain.ObserveKeyListener, EventType: "keydown"}, PageURL: "https://a.example/", TabID: 5},
	}

	for _, sig := range signals {
		data, err := Encode(sig)
		require.NoError(t, err)
		got, err := d.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, sig, got)
	}
}

func TestJSONDecoder_Format(t *testing.T) {
	assert.Equal(t, "jsonl", NewJSONDecoder().Format())
}
