package output

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/pagewarden/internal/adapters/input"
	"github.com/xoelrdgz/pagewarden/internal/domain"
	"github.com/xoelrdgz/pagewarden/internal/sink"
)

type apiFixture struct {
	api      *API
	events   *sink.EventLog
	notifier *TabNotifier

	mu        sync.Mutex
	submitted []domain.Signal
	accept    bool
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	f := &apiFixture{
		events:   sink.New(sink.Config{MaxEvents: 50}),
		notifier: NewTabNotifier(4),
		accept:   true,
	}
	f.api = NewAPI(APIOptions{
		Events:   f.events,
		Decoder:  input.NewJSONDecoder(),
		Notifier: f.notifier,
		Health:   NewHealthChecker(&stubPool{running: true, capacity: 10, probeOK: true}, DefaultHealthCheckerConfig()),
		Submit: func(sig domain.Signal) bool {
			f.mu.Lock()
			defer f.mu.Unlock()
			if !f.accept {
				return false
			}
			f.submitted = append(f.submitted, sig)
			return true
		},
	})
	return f
}

func (f *apiFixture) do(method, target string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.api.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) seed() {
	f.events.Record(domain.NewDetectionEvent(epoch, "https://a.example/x", domain.TypeSQLiURLPattern,
		domain.CategoryInjection, domain.SeverityCritical, "sqli", "WID-001"))
	f.events.Record(domain.NewDetectionEvent(epoch.Add(time.Second), "https://b.example/", domain.TypeHeaderMissingXFO,
		domain.CategoryMisconfiguration, domain.SeverityInfo, "xfo", "WID-015"))
	f.events.Record(domain.NewDetectionEvent(epoch.Add(2*time.Second), "https://a.example/y", domain.TypeInlineScript,
		domain.CategoryXSS, domain.SeverityWarning, "script", "WID-020"))
}

func TestAPI_ListEvents(t *testing.T) {
	f := newAPIFixture(t)
	f.seed()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"all most recent first", "", []string{"script", "xfo", "sqli"}},
		{"origin", "?origin=https://A.example", []string{"script", "sqli"}},
		{"category", "?category=xss", []string{"script"}},
		{"min severity", "?severity=warning", []string{"script", "sqli"}},
		{"limit", "?limit=1", []string{"script"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodGet, "/api/events"+tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code)

			var events []domain.DetectionEvent
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
			var details []string
			for _, e := range events {
				details = append(details, e.Details)
			}
			assert.Equal(t, tt.want, details)
		})
	}
}

func TestAPI_ListEventsBadFilter(t *testing.T) {
	f := newAPIFixture(t)
	for _, q := range []string{"?category=nope", "?severity=loud", "?limit=x"} {
		rec := f.do(http.MethodGet, "/api/events"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestAPI_SummaryAndOrigins(t *testing.T) {
	f := newAPIFixture(t)
	f.seed()

	rec := f.do(http.MethodGet, "/api/origins", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var origins []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &origins))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, origins)

	rec = f.do(http.MethodGet, "/api/events/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary struct {
		Origins    []sink.OriginSummary `json:"origins"`
		Categories map[string]int       `json:"categories"`
		Total      int                  `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Categories["XSS"])
	assert.Equal(t, 0, summary.Categories["CLIENT_SIDE_ATTACKS"])
	require.Len(t, summary.Origins, 2)
	assert.Equal(t, "https://a.example", summary.Origins[0].Origin)
}

func TestAPI_ExportImportClear(t *testing.T) {
	f := newAPIFixture(t)
	f.seed()

	rec := f.do(http.MethodGet, "/api/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), sink.DefaultExportName)
	exported := rec.Body.String()
	assert.True(t, strings.HasPrefix(exported, "[\n  {"))

	rec = f.do(http.MethodDelete, "/api/events", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, f.events.Len())

	rec = f.do(http.MethodPost, "/api/import", exported)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"imported": 3}`, rec.Body.String())
	assert.Equal(t, 3, f.events.Len())

	rec = f.do(http.MethodPost, "/api/import", `[{"category":"NOPE"}]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 3, f.events.Len())
}

func TestAPI_IngestSignal(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodPost, "/api/signals", `{"kind":"request","url":"https://a.example/","tabId":4}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"kind":"request"}`, rec.Body.String())
	require.Len(t, f.submitted, 1)
	assert.Equal(t, domain.RequestSignal{URL: "https://a.example/", TabID: 4}, f.submitted[0])

	rec = f.do(http.MethodPost, "/api/signals", `{"kind":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/signals", "  ")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	f.accept = false
	rec = f.do(http.MethodPost, "/api/signals", `{"type":"USER_GESTURE","tabId":4}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAPI_SetActiveTab(t *testing.T) {
	f := newAPIFixture(t)
	r := f.notifier.Register(7)
	defer f.notifier.Unregister(r)

	rec := f.do(http.MethodPut, "/api/tabs/active", `{"tabId": 7}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, domain.Delivered, f.notifier.Deliver(context.Background(), testAlert(99)))

	rec = f.do(http.MethodPut, "/api/tabs/active", `{"tabId": "x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Ready(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"HEALTHY"`)
}

func TestAPI_AlertStream(t *testing.T) {
	f := newAPIFixture(t)
	server := httptest.NewServer(f.api.Handler())
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/alerts/3", nil)
	require.NoError(t, err)

	respCh := make(chan *http.Response, 1)
	go func() {
		resp, err := server.Client().Do(req)
		if err == nil {
			respCh <- resp
		}
	}()

	require.Eventually(t, func() bool { return f.notifier.Receivers() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, domain.Delivered, f.notifier.Deliver(context.Background(), testAlert(3)))

	var resp *http.Response
	select {
	case resp = <-respCh:
	case <-time.After(5 * time.Second):
		t.Fatal("no response from alert stream")
	}
	defer resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Receiver-ID"))

	reader := bufio.NewReader(resp.Body)
	var frame bytes.Buffer
	for !strings.Contains(frame.String(), "data:") {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		frame.WriteString(line)
	}
	assert.Contains(t, frame.String(), "event:alert")
	assert.Contains(t, frame.String(), `"title":"🛡️ SQL Injection Detected"`)

	cancel()
	require.Eventually(t, func() bool { return f.notifier.Receivers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestAPI_AlertStreamBadTab(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(http.MethodGet, "/api/alerts/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
