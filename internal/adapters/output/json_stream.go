// Package output provides the outbound adapters for PageWarden.
//
// This package implements:
//   - BoltStore: Durable event log (bbolt)
//   - TabNotifier, LogNotifier, MultiNotifier: Alert delivery
//   - JSONEventWriter: Buffered JSON line stream of detection events
//   - PrometheusMetrics: Metrics collector and /metrics server
//   - API: Reporting and ingest HTTP API (gin)
//   - HealthChecker: Pipeline liveness probe
//
// Thread Safety: All implementations are safe for concurrent use.
package output

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/pagewarden/internal/domain"
)

const (
	streamBufferSize    = 64 * 1024
	streamFlushInterval = time.Second
)

// JSONEventWriter streams detection events as JSON, one document per event.
// Output is buffered and flushed once per second, on Flush and on Close.
type JSONEventWriter struct {
	mu   sync.Mutex
	buf  *bufio.Writer
	enc  *json.Encoder
	file *os.File // nil unless writing to a file

	done      chan struct{}
	flusher   sync.WaitGroup
	closeOnce sync.Once
}

type JSONEventWriterConfig struct {
	FilePath string // Appended to, created 0600; ignored when Stdout is set
	Stdout   bool
	Pretty   bool // Indent each document
}

// NewJSONEventWriter opens the configured destination. With neither
// Stdout nor FilePath set, events are encoded and discarded.
func NewJSONEventWriter(config JSONEventWriterConfig) (*JSONEventWriter, error) {
	switch {
	case config.Stdout:
		return newJSONEventWriter(os.Stdout, nil, config.Pretty), nil
	case config.FilePath != "":
		f, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, err
		}
		return newJSONEventWriter(f, f, config.Pretty), nil
	default:
		return newJSONEventWriter(io.Discard, nil, config.Pretty), nil
	}
}

func newJSONEventWriter(dst io.Writer, file *os.File, pretty bool) *JSONEventWriter {
	w := &JSONEventWriter{
		buf:  bufio.NewWriterSize(dst, streamBufferSize),
		file: file,
		done: make(chan struct{}),
	}
	w.enc = json.NewEncoder(w.buf)
	if pretty {
		w.enc.SetIndent("", "  ")
	}

	w.flusher.Add(1)
	go w.flushLoop()
	return w
}

func (w *JSONEventWriter) flushLoop() {
	defer w.flusher.Done()
	ticker := time.NewTicker(streamFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			if err := w.Flush(); err != nil {
				log.Warn().Err(err).Msg("Failed to flush event stream")
			}
		}
	}
}

func (w *JSONEventWriter) Write(event *domain.DetectionEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(event)
}

// OnEvent implements ports.EventSubscriber.
func (w *JSONEventWriter) OnEvent(event *domain.DetectionEvent) {
	if err := w.Write(event); err != nil {
		log.Warn().Err(err).Str("type", event.Type).Msg("Failed to write event to stream")
	}
}

// Flush pushes buffered events out and syncs the file, if any.
func (w *JSONEventWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *JSONEventWriter) flushLocked() error {
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

// Close stops the flush loop, flushes and closes the file. Idempotent.
func (w *JSONEventWriter) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.flusher.Wait()

		w.mu.Lock()
		defer w.mu.Unlock()
		err = w.flushLocked()
		if w.file != nil {
			if cerr := w.file.Close(); err == nil {
				err = cerr
			}
		}
	})
	return err
}
