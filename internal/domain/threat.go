package domain

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event types emitted by the classifier.
const (
	TypeSQLiURLPattern            = "SQLI_URL_PATTERN"
	TypeRedirectSuspicious        = "REDIRECT_SUSPICIOUS"
	TypeMalwareExecutableDownload = "MALWARE_EXECUTABLE_DOWNLOAD"
	TypeMalwareDoubleExtension    = "MALWARE_DOUBLE_EXTENSION"
	TypeDownloadWithoutGesture    = "DOWNLOAD_WITHOUT_USER_GESTURE"
	TypeDownloadInsecureHTTP      = "DOWNLOAD_INSECURE_HTTP"
	TypeSpamRequestBurst          = "SPAM_REQUEST_BURST"
	TypeSuspiciousURLKeyword      = "SUSPICIOUS_URL_KEYWORD"
	TypeKnownMaliciousHost        = "KNOWN_MALICIOUS_HOST"

	TypeMIMEMismatchExecutable = "MIME_MISMATCH_EXECUTABLE"
	TypeMIMEMismatchGeneral    = "MIME_MISMATCH_GENERAL"
	TypeHeaderMissingCSP       = "HEADER_MISSING_CSP"
	TypeHeaderMissingHSTS      = "HEADER_MISSING_HSTS"
	TypeHeaderWeakReferrer     = "HEADER_WEAK_REFERRER_POLICY"
	TypeHeaderMissingXFO       = "HEADER_MISSING_XFO"
	TypeCookieWeakSensitive    = "COOKIE_WEAK_SENSITIVE"

	TypeInlineScript          = "INLINE_SCRIPT"
	TypeSuspiciousAttribute   = "SUSPICIOUS_ATTRIBUTE"
	TypeClipboardTheft        = "CLIPBOARD_THEFT"
	TypeClipboardManipulation = "CLIPBOARD_MANIPULATION"
	TypeKeylogger             = "KEYLOGGER"
	TypeCameraAccess          = "CAMERA_ACCESS"
	TypeMicrophoneAccess      = "MICROPHONE_ACCESS"
	TypeAutoRedirectBlocked   = "AUTO_REDIRECT_BLOCKED"
	TypeCredentialHijacking   = "CREDENTIAL_HIJACKING_BLOCKED"
	TypeRuntimeXSSInnerHTML   = "RUNTIME_XSS_INNERHTML"
	TypeRuntimeXSSDocWrite    = "RUNTIME_XSS_DOCUMENT_WRITE"
	TypeRuntimeXSSAdjacent    = "RUNTIME_XSS_INSERT_ADJACENT_HTML"
)

type MetricsSnapshot struct {
	TotalSignals     int64
	TotalEvents      int64
	SuppressedAlerts int64
	DeliveredAlerts  int64
	SignalsPerSecond float64
	ActiveWorkers    int
	EventsByCategory map[Category]int64
	Uptime           time.Duration
	StartTime        time.Time
}

// AnalysisMetrics aggregates counters for the status bar and the API.
type AnalysisMetrics struct {
	totalSignals     atomic.Int64
	totalEvents      atomic.Int64
	suppressedAlerts atomic.Int64
	deliveredAlerts  atomic.Int64
	SignalsPerSecond float64
	ActiveWorkers    int
	StartTime        time.Time

	byCategory map[Category]int64
	mu         sync.RWMutex
}

func NewAnalysisMetrics() *AnalysisMetrics {
	return &AnalysisMetrics{
		StartTime:  time.Now(),
		byCategory: make(map[Category]int64, len(AllCategories)),
	}
}

func (m *AnalysisMetrics) IncrementSignals() {
	m.totalSignals.Add(1)
}

func (m *AnalysisMetrics) RecordEvent(category Category) {
	m.totalEvents.Add(1)
	m.mu.Lock()
	m.byCategory[category]++
	m.mu.Unlock()
}

func (m *AnalysisMetrics) RecordAlert(suppressed bool) {
	if suppressed {
		m.suppressedAlerts.Add(1)
		return
	}
	m.deliveredAlerts.Add(1)
}

func (m *AnalysisMetrics) TotalSignals() int64 {
	return m.totalSignals.Load()
}

func (m *AnalysisMetrics) GetSnapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byCategory := make(map[Category]int64, len(m.byCategory))
	for c, n := range m.byCategory {
		byCategory[c] = n
	}
	return MetricsSnapshot{
		TotalSignals:     m.totalSignals.Load(),
		TotalEvents:      m.totalEvents.Load(),
		SuppressedAlerts: m.suppressedAlerts.Load(),
		DeliveredAlerts:  m.deliveredAlerts.Load(),
		SignalsPerSecond: m.SignalsPerSecond,
		ActiveWorkers:    m.ActiveWorkers,
		EventsByCategory: byCategory,
		Uptime:           time.Since(m.StartTime),
		StartTime:        m.StartTime,
	}
}

func (m *AnalysisMetrics) UpdateSPS(sps float64) {
	m.mu.Lock()
	m.SignalsPerSecond = sps
	m.mu.Unlock()
}

func (m *AnalysisMetrics) SetActiveWorkers(count int) {
	m.mu.Lock()
	m.ActiveWorkers = count
	m.mu.Unlock()
}

// HostInfo is the blocklist entry for a known-bad host.
type HostInfo struct {
	Host        string    `json:"host"`
	Source      string    `json:"source"`
	Categories  []string  `json:"categories,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}
