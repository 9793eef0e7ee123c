package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/pagewarden/internal/classifier"
	"github.com/xoelrdgz/pagewarden/internal/domain"
	"github.com/xoelrdgz/pagewarden/internal/ports"
	"github.com/xoelrdgz/pagewarden/internal/sink"
)

// Pipeline runs one signal through classification, recording and alert
// delivery.
//
// For every event: record it in the log, notify subscribers, derive the
// alert, pass it through the session's notification gate and hand it to
// the notifier. Double-extension downloads also raise the generic
// "Suspicious Download" alert. A suppressed or undelivered alert never
// affects the recorded event.
//
// Thread Safety: Safe for concurrent Process() calls.
type Pipeline struct {
	classifier *classifier.Classifier
	events     *sink.EventLog
	notifier   ports.Notifier
	metrics    *domain.AnalysisMetrics

	collector   ports.MetricsCollector
	observers   []ports.ProcessingObserver
	subscribers []ports.EventSubscriber
	mu          sync.RWMutex
}

// NewPipeline wires the core components.
//
// Parameters:
//   - c: Classifier owning the heuristics session
//   - events: Event log receiving every event
//   - notifier: Alert destination (nil: alerts are gated and dropped)
//   - metrics: Runtime counters (nil: a fresh set is created)
func NewPipeline(c *classifier.Classifier, events *sink.EventLog, notifier ports.Notifier, metrics *domain.AnalysisMetrics) *Pipeline {
	if metrics == nil {
		metrics = domain.NewAnalysisMetrics()
	}
	return &Pipeline{
		classifier: c,
		events:     events,
		notifier:   notifier,
		metrics:    metrics,
	}
}

func (p *Pipeline) SetCollector(collector ports.MetricsCollector) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.collector = collector
}

func (p *Pipeline) AddProcessingObserver(observer ports.ProcessingObserver) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// AddSubscriber registers a callback for every recorded event.
func (p *Pipeline) AddSubscriber(sub ports.EventSubscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, sub)
}

// Process classifies sig and handles the resulting events.
//
// Returns:
//   - Events recorded for the signal, possibly empty
func (p *Pipeline) Process(ctx context.Context, sig domain.Signal) []*domain.DetectionEvent {
	if sig == nil {
		return nil
	}
	start := time.Now()

	events := p.classifier.Classify(sig)

	p.mu.RLock()
	collector := p.collector
	observers := p.observers
	subscribers := p.subscribers
	p.mu.RUnlock()

	p.metrics.IncrementSignals()
	if collector != nil {
		collector.IncrementSignals(sig.Kind())
	}

	for _, event := range events {
		p.events.Record(event)
		p.metrics.RecordEvent(event.Category)
		if collector != nil {
			collector.IncrementDetections(event.Category, event.Severity)
		}
		for _, sub := range subscribers {
			sub.OnEvent(event)
		}
		p.deliver(ctx, classifier.AlertFor(event, sig.Tab()), collector)
	}
	for _, alert := range classifier.DownloadAlerts(events, sig.Tab()) {
		p.deliver(ctx, alert, collector)
	}

	result := "clean"
	if len(events) > 0 {
		result = "detected"
	}
	for _, obs := range observers {
		obs.IncrementSignalsByResult(result)
	}
	if collector != nil {
		collector.ObserveProcessingTime(time.Since(start).Seconds())
		collector.SetStoredEvents(p.events.Len())
	}

	return events
}

func (p *Pipeline) handle(ctx context.Context, sig domain.Signal) {
	p.Process(ctx, sig)
}

func (p *Pipeline) deliver(ctx context.Context, alert domain.Alert, collector ports.MetricsCollector) {
	session := p.classifier.Session()
	tab := alert.TabID

	if !session.Gate.Allow(tab, alert.Title, session.Now()) {
		p.metrics.RecordAlert(true)
		if collector != nil {
			collector.IncrementAlerts("suppressed")
		}
		log.Debug().
			Str("title", alert.Title).
			Str("tab", tab.Key()).
			Msg("Alert suppressed by notification window")
		return
	}
	p.metrics.RecordAlert(false)

	if p.notifier == nil {
		return
	}

	outcome := p.notifier.Deliver(ctx, alert)
	if collector != nil {
		collector.IncrementAlerts(outcome.String())
	}
	switch outcome {
	case domain.Delivered:
	case domain.NoReceiver:
		log.Debug().Str("title", alert.Title).Str("tab", tab.Key()).Msg("No receiver for alert")
	default:
		log.Warn().Str("title", alert.Title).Str("tab", tab.Key()).Str("outcome", outcome.String()).Msg("Alert delivery failed")
	}
}

func (p *Pipeline) Classifier() *classifier.Classifier {
	return p.classifier
}

func (p *Pipeline) Events() *sink.EventLog {
	return p.events
}

func (p *Pipeline) Metrics() *domain.AnalysisMetrics {
	return p.metrics
}
