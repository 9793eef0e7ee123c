package sink

import (
	"bytes"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/pagewarden/internal/domain"
)

var epoch = time.UnixMilli(1_700_000_000_000)

func event(i int, rawURL string, category domain.Category, severity domain.Severity) *domain.DetectionEvent {
	return domain.NewDetectionEvent(epoch.Add(time.Duration(i)*time.Second), rawURL,
		fmt.Sprintf("TYPE_%d", i), category, severity, fmt.Sprintf("details %d", i), "")
}

type memoryStore struct {
	mu       sync.Mutex
	events   []*domain.DetectionEvent
	failNext bool
	yield    bool // widens the gap between the ring write and the store write
}

func (s *memoryStore) Append(e *domain.DetectionEvent, limit int) error {
	if s.yield {
		runtime.Gosched()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return errors.New("disk full")
	}
	s.events = append(s.events, e)
	if len(s.events) > limit {
		s.events = s.events[len(s.events)-limit:]
	}
	return nil
}

func (s *memoryStore) Load() ([]*domain.DetectionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.DetectionEvent(nil), s.events...), nil
}

func (s *memoryStore) Replace(events []*domain.DetectionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append([]*domain.DetectionEvent(nil), events...)
	return nil
}

func (s *memoryStore) Close() error { return nil }

func TestEventLog_CapEvictsOldest(t *testing.T) {
	log := New(Config{MaxEvents: 500})

	for i := 0; i < 501; i++ {
		log.Record(event(i, "https://a.test/", domain.CategoryXSS, domain.SeverityWarning))
	}

	assert.Equal(t, 500, log.Len())
	snapshot := log.Snapshot()
	require.Len(t, snapshot, 500)
	assert.Equal(t, "TYPE_1", snapshot[0].Type, "first event evicted")
	assert.Equal(t, "TYPE_500", snapshot[499].Type)
	for i := 1; i < len(snapshot); i++ {
		assert.Less(t, snapshot[i-1].Time, snapshot[i].Time)
	}
}

func TestEventLog_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultMaxEvents, New(Config{}).Cap())
}

func TestEventLog_Latest(t *testing.T) {
	log := New(Config{MaxEvents: 3})
	for i := 0; i < 5; i++ {
		log.Record(event(i, "https://a.test/", domain.CategoryXSS, domain.SeverityInfo))
	}

	latest := log.Latest(2)
	require.Len(t, latest, 2)
	assert.Equal(t, "TYPE_3", latest[0].Type)
	assert.Equal(t, "TYPE_4", latest[1].Type)
	assert.Len(t, log.Latest(0), 3)
	assert.Len(t, log.Latest(10), 3)

	log.Record(nil)
	assert.Equal(t, 3, log.Len())
}

func TestEventLog_Query(t *testing.T) {
	log := New(DefaultConfig())
	log.Record(event(0, "https://a.test/1", domain.CategoryInjection, domain.SeverityCritical))
	log.Record(event(1, "https://b.test/1", domain.CategoryMisconfiguration, domain.SeverityWarning))
	log.Record(event(2, "https://a.test/2", domain.CategoryMisconfiguration, domain.SeverityInfo))
	log.Record(event(3, "https://A.test/3", domain.CategoryInjection, domain.SeverityWarning))

	all := log.Query(Filter{})
	require.Len(t, all, 4)
	assert.Equal(t, "TYPE_3", all[0].Type, "most recent first")

	byOrigin := log.Query(Filter{Origin: "https://A.TEST"})
	assert.Len(t, byOrigin, 3)

	warning := domain.SeverityWarning
	filtered := log.Query(Filter{Origin: "https://a.test", Category: domain.CategoryInjection, MinSeverity: &warning})
	require.Len(t, filtered, 2)
	assert.Equal(t, "TYPE_3", filtered[0].Type)
	assert.Equal(t, "TYPE_0", filtered[1].Type)

	limited := log.Query(Filter{Limit: 1})
	require.Len(t, limited, 1)
	assert.Equal(t, "TYPE_3", limited[0].Type)

	assert.Empty(t, log.Query(Filter{Category: domain.CategoryXSS}))
}

func TestEventLog_OriginsAndSummary(t *testing.T) {
	log := New(DefaultConfig())
	log.Record(event(0, "https://a.test/1", domain.CategoryInjection, domain.SeverityCritical))
	log.Record(event(1, "https://b.test/1", domain.CategoryMisconfiguration, domain.SeverityWarning))
	log.Record(event(2, "https://a.test/2", domain.CategoryMisconfiguration, domain.SeverityWarning))
	log.Record(event(3, "not a url", domain.CategoryXSS, domain.SeverityWarning))

	assert.Equal(t, []string{"https://a.test", "https://b.test", domain.UnknownOrigin}, log.Origins())

	summary := log.Summary()
	require.Len(t, summary, 3)
	assert.Equal(t, "https://a.test", summary[0].Origin)
	assert.Equal(t, 2, summary[0].Total)
	assert.Equal(t, 1, summary[0].Critical)
	assert.Equal(t, 1, summary[0].Counts[domain.CategoryInjection])
	assert.Equal(t, 1, summary[0].Counts[domain.CategoryMisconfiguration])
	assert.Equal(t, epoch.Add(2*time.Second).UnixMilli(), summary[0].LastSeen)

	counts := log.CategoryCounts()
	assert.Equal(t, 2, counts[domain.CategoryMisconfiguration])
	assert.Equal(t, 0, counts[domain.CategorySensitiveDataExposure])
}

func TestEventLog_ExportImportRoundTrip(t *testing.T) {
	source := New(DefaultConfig())
	source.Record(event(0, "https://a.test/?q=1'", domain.CategoryInjection, domain.SeverityCritical))
	withRule := domain.NewDetectionEvent(epoch, "https://b.test/", domain.TypeHeaderMissingXFO,
		domain.CategoryMisconfiguration, domain.SeverityWarning, "Missing X-Frame-Options header", "WID-015")
	source.Record(withRule)

	var buf bytes.Buffer
	require.NoError(t, source.Export(&buf))
	assert.True(t, strings.HasPrefix(buf.String(), "[\n  {\n    \"time\""), "two-space indentation")
	assert.Contains(t, buf.String(), `"ruleId": null`)
	assert.Contains(t, buf.String(), `"ruleId": "WID-015"`)

	target := New(DefaultConfig())
	n, err := target.Import(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, source.Snapshot(), target.Snapshot())
}

func TestEventLog_ImportKeepsNewest(t *testing.T) {
	var events []*domain.DetectionEvent
	for i := 0; i < 5; i++ {
		events = append(events, event(i, "https://a.test/", domain.CategoryXSS, domain.SeverityInfo))
	}
	var buf bytes.Buffer
	require.NoError(t, WriteEvents(&buf, events))

	log := New(Config{MaxEvents: 3})
	n, err := log.Import(&buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "TYPE_2", log.Snapshot()[0].Type)

	log.Record(event(9, "https://a.test/", domain.CategoryXSS, domain.SeverityInfo))
	snapshot := log.Snapshot()
	assert.Equal(t, "TYPE_3", snapshot[0].Type)
	assert.Equal(t, "TYPE_9", snapshot[2].Type)
}

func TestEventLog_ImportRejectsInvalid(t *testing.T) {
	log := New(DefaultConfig())
	log.Record(event(0, "https://a.test/", domain.CategoryXSS, domain.SeverityInfo))

	_, err := log.Import(strings.NewReader(`[{"time":1,"url":"x","type":"T","category":"PHISHING","severity":"info","details":"","ruleId":null}]`))
	assert.Error(t, err)
	_, err = log.Import(strings.NewReader(`{"not":"an array"}`))
	assert.Error(t, err)
	assert.Equal(t, 1, log.Len(), "failed import leaves the log unchanged")

	n, err := log.Import(strings.NewReader(`[{"time":1,"url":"https://z.test/p","type":"T","category":"XSS","severity":"info","details":"d","ruleId":null}]`))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "https://z.test", log.Snapshot()[0].Origin, "missing origin derived from url")
}

func TestEventLog_Store(t *testing.T) {
	store := &memoryStore{}
	log := New(Config{MaxEvents: 2, Store: store})

	for i := 0; i < 3; i++ {
		log.Record(event(i, "https://a.test/", domain.CategoryXSS, domain.SeverityInfo))
	}
	stored, _ := store.Load()
	require.Len(t, stored, 2)
	assert.Equal(t, "TYPE_1", stored[0].Type)

	store.failNext = true
	log.Record(event(3, "https://a.test/", domain.CategoryXSS, domain.SeverityInfo))
	assert.Equal(t, "TYPE_3", log.Snapshot()[1].Type, "store failure does not block recording")

	restored := New(Config{MaxEvents: 2, Store: store})
	require.NoError(t, restored.Load())
	assert.Equal(t, 2, restored.Len())

	require.NoError(t, restored.Clear())
	assert.Equal(t, 0, restored.Len())
	stored, _ = store.Load()
	assert.Empty(t, stored)
}

func TestEventLog_ConcurrentRecord(t *testing.T) {
	log := New(Config{MaxEvents: 100})
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				log.Record(event(w*50+i, "https://a.test/", domain.CategoryXSS, domain.SeverityInfo))
				_ = log.Query(Filter{Limit: 5})
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 100, log.Len())
}

func TestEventLog_StoreMatchesLogUnderConcurrency(t *testing.T) {
	store := &memoryStore{yield: true}
	log := New(Config{MaxEvents: 50, Store: store})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 40; i++ {
				log.Record(event(w*40+i, "https://a.test/", domain.CategoryXSS, domain.SeverityInfo))
				if w == 0 && i == 20 {
					assert.NoError(t, log.Restore(log.Latest(10)))
				}
			}
		}(w)
	}
	wg.Wait()

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, log.Snapshot(), stored, "store keeps the same events in the same order")
}
