package app

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/pagewarden/internal/domain"
)

// SignalEncoder renders a signal as one JSON line. The input adapter's
// envelope encoder makes the overflow file replayable with --file --full.
type SignalEncoder func(domain.Signal) ([]byte, error)

// encodeTagged is the fallback encoder: the Go form of the signal under
// its kind.
func encodeTagged(sig domain.Signal) ([]byte, error) {
	return json.Marshal(struct {
		Kind   domain.SignalKind `json:"kind"`
		Signal domain.Signal     `json:"signal"`
	}{sig.Kind(), sig})
}

// spillFile is an append-only JSONL file. Lines are flushed and synced
// every syncEvery writes; 1 syncs each line.
type spillFile struct {
	path      string
	file      *os.File
	buf       *bufio.Writer
	syncEvery int64
	lines     atomic.Int64
	mu        sync.Mutex
}

func openSpillFile(path string, bufSize int, syncEvery int64) (*spillFile, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &spillFile{
		path:      path,
		file:      file,
		buf:       bufio.NewWriterSize(file, bufSize),
		syncEvery: max(syncEvery, 1),
	}, nil
}

func (f *spillFile) appendLine(line []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.buf.Write(line); err != nil {
		return err
	}
	if err := f.buf.WriteByte('\n'); err != nil {
		return err
	}
	if f.lines.Add(1)%f.syncEvery == 0 {
		return f.syncLocked()
	}
	return nil
}

func (f *spillFile) syncLocked() error {
	if err := f.buf.Flush(); err != nil {
		return err
	}
	return f.file.Sync()
}

func (f *spillFile) close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.buf.Flush(); err != nil {
		f.file.Close()
		return err
	}
	return f.file.Close()
}

// OverflowWriter receives signals the worker queues could not take.
type OverflowWriter struct {
	out    *spillFile
	encode SignalEncoder
}

// NewOverflowWriter opens path for appending.
//
// Parameters:
//   - path: Overflow file
//   - encode: Line encoder (nil: kind-tagged Go form)
func NewOverflowWriter(path string, encode SignalEncoder) (*OverflowWriter, error) {
	out, err := openSpillFile(path, 64*1024, 100)
	if err != nil {
		return nil, err
	}
	if encode == nil {
		encode = encodeTagged
	}
	log.Info().Str("path", path).Msg("Overflow writer initialized")
	return &OverflowWriter{out: out, encode: encode}, nil
}

func (w *OverflowWriter) WriteSignal(sig domain.Signal) error {
	line, err := w.encode(sig)
	if err != nil {
		return fmt.Errorf("failed to encode %s signal: %w", sig.Kind(), err)
	}
	return w.out.appendLine(line)
}

func (w *OverflowWriter) Count() int64 {
	return w.out.lines.Load()
}

func (w *OverflowWriter) Flush() error {
	w.out.mu.Lock()
	defer w.out.mu.Unlock()
	return w.out.syncLocked()
}

func (w *OverflowWriter) Close() error {
	if n := w.Count(); n > 0 {
		log.Warn().
			Int64("overflow_count", n).
			Str("path", w.out.path).
			Msg("Overflow file contains unprocessed signals")
	}
	return w.out.close()
}

// QuarantineEntry is one line of the quarantine file.
type QuarantineEntry struct {
	Timestamp  time.Time       `json:"timestamp"`
	WorkerID   int             `json:"worker_id"`
	PanicError string          `json:"panic_error"`
	Kind       string          `json:"kind,omitempty"`
	TabID      domain.TabID    `json:"tab_id,omitempty"`
	Signal     json.RawMessage `json:"signal"`
}

// QuarantineWriter records signals that crashed a worker. Every entry is
// synced before the worker restarts.
type QuarantineWriter struct {
	out    *spillFile
	encode SignalEncoder
}

func NewQuarantineWriter(path string, encode SignalEncoder) (*QuarantineWriter, error) {
	out, err := openSpillFile(path, 16*1024, 1)
	if err != nil {
		return nil, err
	}
	if encode == nil {
		encode = func(sig domain.Signal) ([]byte, error) { return json.Marshal(sig) }
	}
	log.Info().Str("path", path).Msg("Quarantine writer initialized for toxic messages")
	return &QuarantineWriter{out: out, encode: encode}, nil
}

func panicMessage(r interface{}) string {
	switch v := r.(type) {
	case nil:
		return "unknown panic"
	case error:
		return v.Error()
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (w *QuarantineWriter) WriteToxicMessage(workerID int, panicErr interface{}, sig domain.Signal) error {
	entry := QuarantineEntry{
		Timestamp:  time.Now(),
		WorkerID:   workerID,
		PanicError: panicMessage(panicErr),
		Signal:     json.RawMessage(`null`),
	}
	if sig != nil {
		entry.Kind = string(sig.Kind())
		entry.TabID = sig.Tab()
		if data, err := w.encode(sig); err == nil {
			entry.Signal = data
		} else {
			entry.Signal = json.RawMessage(`{"error":"failed to serialize signal"}`)
		}
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := w.out.appendLine(line); err != nil {
		return err
	}

	log.Warn().
		Int("worker_id", workerID).
		Str("panic", entry.PanicError).
		Int64("quarantine_count", w.Count()).
		Msg("Toxic message quarantined")
	return nil
}

func (w *QuarantineWriter) Count() int64 {
	return w.out.lines.Load()
}

func (w *QuarantineWriter) Close() error {
	if n := w.Count(); n > 0 {
		log.Warn().
			Int64("toxic_count", n).
			Str("path", w.out.path).
			Msg("Quarantine file contains toxic messages requiring analysis")
	}
	return w.out.close()
}
