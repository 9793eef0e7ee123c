package input

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/nxadm/tail"
	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/pagewarden/internal/domain"
	"github.com/xoelrdgz/pagewarden/internal/ports"
)

// FileTailer follows a JSONL signal file written by the browser hooks.
// Undecodable lines are counted and skipped; the file may not exist yet
// and may be rotated.
type FileTailer struct {
	path          string
	decoder       ports.SignalDecoder
	bufferSize    int
	fromBeginning bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	skipped atomic.Int64
}

// NewFileTailer follows path from its current end.
//
// Parameters:
//   - path: JSONL file, created later if missing
//   - decoder: Line decoder (nil: JSONDecoder)
//   - bufferSize: Signal channel size (default: 1000)
func NewFileTailer(path string, decoder ports.SignalDecoder, bufferSize int) *FileTailer {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if decoder == nil {
		decoder = NewJSONDecoder()
	}
	return &FileTailer{path: path, decoder: decoder, bufferSize: bufferSize}
}

// NewFileTailerFull replays the file from the start before following it.
func NewFileTailerFull(path string, decoder ports.SignalDecoder, bufferSize int) *FileTailer {
	t := NewFileTailer(path, decoder, bufferSize)
	t.fromBeginning = true
	return t
}

func (t *FileTailer) SetFromBeginning(fromBeginning bool) {
	t.fromBeginning = fromBeginning
}

// Start implements ports.SignalSource. Calling it on a running tailer
// returns closed channels.
func (t *FileTailer) Start(ctx context.Context) (<-chan domain.Signal, <-chan error) {
	signals := make(chan domain.Signal, t.bufferSize)
	errs := make(chan error, 10)

	t.mu.Lock()
	if t.cancel != nil {
		t.mu.Unlock()
		close(signals)
		close(errs)
		return signals, errs
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel, t.done = cancel, done
	t.mu.Unlock()

	go func() {
		defer close(done)
		defer close(signals)
		defer close(errs)
		t.follow(ctx, signals, errs)
	}()

	return signals, errs
}

func (t *FileTailer) follow(ctx context.Context, signals chan<- domain.Signal, errs chan<- error) {
	whence := io.SeekEnd
	if t.fromBeginning {
		whence = io.SeekStart
	}

	tf, err := tail.TailFile(t.path, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Location: &tail.SeekInfo{Whence: whence},
		Logger:   tail.DiscardingLogger,
	})
	if err != nil {
		log.Error().Err(err).Str("file", t.path).Msg("Failed to tail signal file")
		errs <- err
		return
	}
	defer tf.Cleanup()
	defer tf.Stop()

	log.Info().Str("file", t.path).Str("format", t.decoder.Format()).Msg("Following signal file")

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-tf.Lines:
			if !ok {
				log.Info().Str("file", t.path).Msg("Signal file closed")
				return
			}
			if line.Err != nil {
				select {
				case errs <- line.Err:
				default:
					log.Warn().Err(line.Err).Msg("Dropping tail error, error channel full")
				}
				continue
			}

			sig, err := t.decoder.Decode([]byte(line.Text))
			if err != nil {
				t.skipped.Add(1)
				log.Debug().Err(err).Int("length", len(line.Text)).Msg("Skipping undecodable signal line")
				continue
			}
			if sig == nil {
				continue
			}

			select {
			case signals <- sig:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Stop ends the tail and waits for the reader goroutine. Idempotent.
func (t *FileTailer) Stop() error {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (t *FileTailer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

// DecodeErrors returns the number of lines that failed to decode.
func (t *FileTailer) DecodeErrors() int64 {
	return t.skipped.Load()
}
