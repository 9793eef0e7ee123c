// Package app wires signal sources, the classifier pipeline and the
// concurrent worker pool.
//
// The WorkerPool shards signals by tab: every signal of one tab goes to the
// same worker, so per-tab heuristics see that tab's signals in arrival
// order. It includes resilience features like backpressure, overflow to
// disk and quarantine of signals that crash a worker.
package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/pagewarden/internal/domain"
)

// Handler processes one signal. The pipeline's Process method is the
// production handler.
type Handler func(ctx context.Context, sig domain.Signal)

// ToxicMessage represents a signal that caused a worker panic.
type ToxicMessage struct {
	Signal    domain.Signal
	PanicErr  interface{}
	Timestamp time.Time
	WorkerID  int
}

// WorkerPool manages tab-sharded signal processing.
//
// Features:
//   - One input queue per worker, chosen by tab ID
//   - Backpressure with configurable timeouts
//   - Overflow to disk when a queue saturates
//   - Quarantine and DLQ for signals causing panics
//   - Automatic worker restart on panic
//
// Thread Safety: All public methods are safe for concurrent access.
type WorkerPool struct {
	workerCount int
	queues      []chan domain.Signal
	handler     Handler
	metrics     *domain.AnalysisMetrics
	bufferSize  int

	submitTimeout time.Duration

	dlqChan    chan *ToxicMessage
	dlqEnabled bool

	overflow        *OverflowWriter
	overflowSignals atomic.Int64
	processed       atomic.Int64

	quarantine *QuarantineWriter

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
	running  bool
	mu       sync.RWMutex
}

// WorkerPoolConfig defines worker pool configuration options.
type WorkerPoolConfig struct {
	WorkerCount    int           // Number of worker goroutines (default: 8)
	BufferSize     int           // Per-worker queue size (default: 1024)
	SubmitTimeout  time.Duration // Backpressure timeout (default: 100ms)
	EnableDLQ      bool          // Enable Dead Letter Queue
	DLQSize        int           // DLQ channel buffer (default: 100)
	OverflowPath   string        // Path for overflow file (empty disables)
	QuarantinePath string        // Path for quarantine file (empty disables)
	Encoder        SignalEncoder // Overflow and quarantine line format (default: kind-tagged JSON)
}

func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount:   8,
		BufferSize:    1024,
		SubmitTimeout: 100 * time.Millisecond,
		EnableDLQ:     true,
		DLQSize:       100,
	}
}

// NewWorkerPool creates a configured worker pool.
//
// Parameters:
//   - config: Pool configuration options
//   - handler: Function applied to every signal
//   - metrics: Runtime metrics collector, may be nil
//
// Returns:
//   - Configured WorkerPool ready for Start()
func NewWorkerPool(config WorkerPoolConfig, handler Handler, metrics *domain.AnalysisMetrics) *WorkerPool {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 4
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 1024
	}
	if config.DLQSize <= 0 {
		config.DLQSize = 100
	}
	if config.SubmitTimeout <= 0 {
		config.SubmitTimeout = 100 * time.Millisecond
	}

	wp := &WorkerPool{
		workerCount:   config.WorkerCount,
		queues:        make([]chan domain.Signal, config.WorkerCount),
		handler:       handler,
		metrics:       metrics,
		bufferSize:    config.BufferSize,
		submitTimeout: config.SubmitTimeout,
		dlqEnabled:    config.EnableDLQ,
		stopChan:      make(chan struct{}),
	}
	for i := range wp.queues {
		wp.queues[i] = make(chan domain.Signal, config.BufferSize)
	}

	if config.EnableDLQ {
		wp.dlqChan = make(chan *ToxicMessage, config.DLQSize)
	}

	if config.OverflowPath != "" {
		overflow, err := NewOverflowWriter(config.OverflowPath, config.Encoder)
		if err != nil {
			log.Error().Err(err).Str("path", config.OverflowPath).Msg("Failed to create overflow writer")
		} else {
			wp.overflow = overflow
		}
	}

	if config.QuarantinePath != "" {
		quarantine, err := NewQuarantineWriter(config.QuarantinePath, config.Encoder)
		if err != nil {
			log.Error().Err(err).Str("path", config.QuarantinePath).Msg("Failed to create quarantine writer")
		} else {
			wp.quarantine = quarantine
		}
	}

	return wp
}

// Start launches one goroutine per shard. Idempotent.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.mu.Lock()
	if wp.running {
		wp.mu.Unlock()
		return
	}
	wp.running = true
	wp.mu.Unlock()

	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}

	if wp.metrics != nil {
		wp.metrics.SetActiveWorkers(wp.workerCount)
	}

	log.Info().
		Int("workers", wp.workerCount).
		Int("queue_size", wp.bufferSize).
		Bool("dlq", wp.dlqEnabled).
		Msg("Worker pool started")
}

// Shard returns the worker index for a tab. Signals without a tab share
// shard 0.
func (wp *WorkerPool) Shard(tab domain.TabID) int {
	if !tab.Valid() {
		return 0
	}
	return int(tab) % wp.workerCount
}

// worker drains one shard queue. A panic is recovered, the signal is
// quarantined and the worker restarts on the same queue.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	var current domain.Signal

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Int("worker_id", id).
				Msg("Worker panic recovered")

			if wp.quarantine != nil {
				if err := wp.quarantine.WriteToxicMessage(id, r, current); err != nil {
					log.Error().Err(err).Int("worker_id", id).Msg("Failed to quarantine toxic message")
				}
			}

			if wp.dlqEnabled && current != nil {
				select {
				case wp.dlqChan <- &ToxicMessage{
					Signal:    current,
					PanicErr:  r,
					Timestamp: time.Now(),
					WorkerID:  id,
				}:
					log.Debug().Int("worker_id", id).Msg("Toxic message sent to DLQ")
				default:
					log.Warn().Int("worker_id", id).Msg("DLQ full, toxic message only in quarantine file")
				}
			}

			wp.wg.Add(1)
			go wp.worker(ctx, id)
		}
	}()

	queue := wp.queues[id]
	for {
		select {
		case <-ctx.Done():
			log.Debug().Int("worker_id", id).Msg("Worker stopped (context cancelled)")
			return
		case <-wp.stopChan:
			wp.drain(ctx, id, queue, &current)
			return
		case sig := <-queue:
			current = sig
			wp.handler(ctx, sig)
			wp.processed.Add(1)
			current = nil
		}
	}
}

// drain processes what is left in the queue after Stop.
func (wp *WorkerPool) drain(ctx context.Context, id int, queue chan domain.Signal, current *domain.Signal) {
	for {
		select {
		case sig := <-queue:
			*current = sig
			wp.handler(ctx, sig)
			wp.processed.Add(1)
			*current = nil
		default:
			log.Debug().Int("worker_id", id).Msg("Worker stopped (stop signal)")
			return
		}
	}
}

// Submit queues a signal on its tab's shard. Queues are never closed, so a
// submit racing with Stop is safe; such a signal may stay unprocessed.
//
// Returns:
//   - true if queued (directly, after a backpressure wait, or to overflow)
//   - false if the pool is not running or every fallback failed
func (wp *WorkerPool) Submit(sig domain.Signal) bool {
	if !wp.IsRunning() || sig == nil {
		return false
	}

	queue := wp.queues[wp.Shard(sig.Tab())]

	select {
	case queue <- sig:
		return true
	default:
	}

	timer := time.NewTimer(wp.submitTimeout)
	defer timer.Stop()
	select {
	case queue <- sig:
		return true
	case <-timer.C:
	}

	if wp.overflow != nil {
		if err := wp.overflow.WriteSignal(sig); err != nil {
			log.Error().Err(err).Msg("Failed to write signal to overflow")
			return false
		}
		wp.overflowSignals.Add(1)
		return true
	}
	return false
}

// SubmitBlocking blocks until the signal is queued or ctx is cancelled.
func (wp *WorkerPool) SubmitBlocking(ctx context.Context, sig domain.Signal) bool {
	if !wp.IsRunning() || sig == nil {
		return false
	}

	select {
	case wp.queues[wp.Shard(sig.Tab())] <- sig:
		return true
	case <-ctx.Done():
		return false
	case <-wp.stopChan:
		return false
	}
}

// DLQ returns the Dead Letter Queue channel.
func (wp *WorkerPool) DLQ() <-chan *ToxicMessage {
	return wp.dlqChan
}

func (wp *WorkerPool) OverflowSignals() int64 {
	return wp.overflowSignals.Load()
}

func (wp *WorkerPool) Processed() int64 {
	return wp.processed.Load()
}

func (wp *WorkerPool) QuarantinedCount() int64 {
	if wp.quarantine == nil {
		return 0
	}
	return wp.quarantine.Count()
}

// Stop drains the queues, waits for workers and closes the writers.
// Idempotent.
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		wp.mu.Lock()
		wp.running = false
		wp.mu.Unlock()

		close(wp.stopChan)
		wp.wg.Wait()

		if wp.dlqChan != nil {
			close(wp.dlqChan)
		}

		if wp.overflow != nil {
			if err := wp.overflow.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close overflow writer")
			}
		}

		if wp.quarantine != nil {
			if err := wp.quarantine.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close quarantine writer")
			}
		}

		if wp.metrics != nil {
			wp.metrics.SetActiveWorkers(0)
		}

		if overflowed := wp.overflowSignals.Load(); overflowed > 0 {
			log.Warn().Int64("overflow_signals", overflowed).Msg("Worker pool stopped with signals in overflow file")
		} else {
			log.Info().Int64("processed", wp.processed.Load()).Msg("Worker pool stopped")
		}
	})
}

func (wp *WorkerPool) IsRunning() bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	return wp.running
}

// QueueLength returns the signals waiting across all shards.
func (wp *WorkerPool) QueueLength() int {
	total := 0
	for _, q := range wp.queues {
		total += len(q)
	}
	return total
}

// QueueCapacity returns the combined capacity of all shard queues.
func (wp *WorkerPool) QueueCapacity() int {
	return wp.bufferSize * wp.workerCount
}

// QueueUtilization returns the fullest shard's fill level in percent.
func (wp *WorkerPool) QueueUtilization() float64 {
	if wp.bufferSize == 0 {
		return 0
	}
	fullest := 0
	for _, q := range wp.queues {
		if n := len(q); n > fullest {
			fullest = n
		}
	}
	return float64(fullest) / float64(wp.bufferSize) * 100
}

// Probe round-trips a gesture signal without a tab through shard 0.
// Gestures without a tab change no state.
func (wp *WorkerPool) Probe(ctx context.Context) bool {
	return wp.SubmitBlocking(ctx, domain.GestureSignal{})
}
