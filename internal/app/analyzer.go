package app

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/pagewarden/internal/domain"
	"github.com/xoelrdgz/pagewarden/internal/ports"
)

const rateInterval = time.Second

// Analyzer feeds a signal source into the worker pool, starts session
// maintenance and keeps the signals-per-second gauge current. Push sources
// such as the reporting API use Submit instead of a source.
type Analyzer struct {
	source   ports.SignalSource
	pipeline *Pipeline

	mu      sync.RWMutex
	pool    *WorkerPool
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewAnalyzer creates an analyzer with the default worker configuration.
//
// Parameters:
//   - source: Signal source, may be nil when signals arrive only via Submit
//   - pipeline: Classification pipeline run by every worker
func NewAnalyzer(source ports.SignalSource, pipeline *Pipeline) *Analyzer {
	return &Analyzer{
		source:   source,
		pipeline: pipeline,
		pool:     NewWorkerPool(DefaultWorkerPoolConfig(), pipeline.handle, pipeline.Metrics()),
	}
}

// SetWorkerConfig replaces the worker pool. Ignored once started.
func (a *Analyzer) SetWorkerConfig(config WorkerPoolConfig) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		log.Warn().Msg("Cannot change worker config while running")
		return
	}
	a.pool = NewWorkerPool(config, a.pipeline.handle, a.pipeline.Metrics())
}

// Start launches the workers, session maintenance, the source reader and
// the throughput meter. Idempotent.
func (a *Analyzer) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return nil
	}
	a.running = true

	ctx, a.cancel = context.WithCancel(ctx)
	session := a.pipeline.Classifier().Session()

	a.pool.Start(ctx)
	session.StartMaintenance(ctx)

	if a.source != nil {
		signals, errs := a.source.Start(ctx)
		a.spawn(func() { a.forward(ctx, signals, errs) })
	}
	a.spawn(func() { a.meter(ctx) })

	log.Info().
		Str("session", session.ID).
		Str("rules_version", a.pipeline.Classifier().Catalog().Version()).
		Bool("source", a.source != nil).
		Msg("Analyzer started")
	return nil
}

func (a *Analyzer) spawn(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

// forward moves signals from the source into the pool, blocking while the
// tab's shard is full.
func (a *Analyzer) forward(ctx context.Context, signals <-chan domain.Signal, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Warn().Err(err).Msg("Error reading signals")
		case sig, ok := <-signals:
			if !ok {
				log.Info().Msg("Signal source exhausted")
				return
			}
			if !a.pool.SubmitBlocking(ctx, sig) {
				log.Warn().Str("kind", string(sig.Kind())).Msg("Failed to submit signal to worker pool")
			}
		}
	}
}

// meter samples the signal counter once per interval.
func (a *Analyzer) meter(ctx context.Context) {
	metrics := a.pipeline.Metrics()
	ticker := time.NewTicker(rateInterval)
	defer ticker.Stop()

	last, lastAt := metrics.TotalSignals(), time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			total := metrics.TotalSignals()
			if elapsed := now.Sub(lastAt).Seconds(); elapsed > 0 {
				metrics.UpdateSPS(float64(total-last) / elapsed)
			}
			last, lastAt = total, now
		}
	}
}

// Submit queues a signal from a push source such as the reporting API.
func (a *Analyzer) Submit(sig domain.Signal) bool {
	return a.WorkerPool().Submit(sig)
}

// Stop shuts the source down, drains the workers and ends maintenance.
// Idempotent.
func (a *Analyzer) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	a.mu.Unlock()

	log.Info().Msg("Stopping analyzer gracefully...")

	if a.source != nil {
		if err := a.source.Stop(); err != nil {
			log.Error().Err(err).Msg("Error stopping signal source")
		}
	}
	a.pool.Stop()
	a.cancel()
	a.pipeline.Classifier().Session().Stop()
	a.wg.Wait()

	log.Info().Msg("Analyzer stopped")
}

func (a *Analyzer) Metrics() domain.MetricsSnapshot {
	return a.pipeline.Metrics().GetSnapshot()
}

func (a *Analyzer) Pipeline() *Pipeline { return a.pipeline }

func (a *Analyzer) WorkerPool() *WorkerPool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.pool
}

func (a *Analyzer) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running
}

// WaitForSignal blocks until SIGINT or SIGTERM, then stops the analyzer.
func (a *Analyzer) WaitForSignal() {
	awaitShutdown()
	a.Stop()
}

func awaitShutdown() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(ch)

	log.Info().Str("signal", (<-ch).String()).Msg("Received shutdown signal")
}

// Run starts the analyzer and blocks until a shutdown signal.
func (a *Analyzer) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	a.WaitForSignal()
	return nil
}
