package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/pagewarden/internal/domain"
)

type chanSource struct {
	signals chan domain.Signal
	errs    chan error
	stopped bool
}

func newChanSource() *chanSource {
	return &chanSource{signals: make(chan domain.Signal, 16), errs: make(chan error, 1)}
}

func (s *chanSource) Start(context.Context) (<-chan domain.Signal, <-chan error) {
	return s.signals, s.errs
}

func (s *chanSource) Stop() error {
	s.stopped = true
	return nil
}

func TestAnalyzer_ForwardsSourceSignals(t *testing.T) {
	p, _ := newTestPipeline(t, &stubNotifier{})
	src := newChanSource()
	a := NewAnalyzer(src, p)
	a.SetWorkerConfig(WorkerPoolConfig{WorkerCount: 2, BufferSize: 8})

	require.NoError(t, a.Start(context.Background()))
	assert.True(t, a.IsRunning())

	src.errs <- errors.New("bad line")
	src.signals <- domain.RequestSignal{URL: sqliURL, TabID: 1}
	src.signals <- domain.RequestSignal{URL: "https://example.com/", TabID: 2}

	require.Eventually(t, func() bool {
		snap := a.Metrics()
		return snap.TotalSignals == 2 && snap.TotalEvents == 1
	}, 2*time.Second, 10*time.Millisecond)

	a.Stop()
	assert.False(t, a.IsRunning())
	assert.True(t, src.stopped)
	a.Stop()
}

func TestAnalyzer_SubmitWithoutSource(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	a := NewAnalyzer(nil, p)

	assert.False(t, a.Submit(domain.RequestSignal{URL: sqliURL, TabID: 1}), "not started")

	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()
	require.NoError(t, a.Start(context.Background()), "second start is a no-op")

	assert.True(t, a.Submit(domain.RequestSignal{URL: sqliURL, TabID: 1}))
	require.Eventually(t, func() bool {
		return p.Events().Len() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAnalyzer_WorkerConfigFrozenWhileRunning(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	a := NewAnalyzer(nil, p)
	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	pool := a.WorkerPool()
	a.SetWorkerConfig(WorkerPoolConfig{WorkerCount: 1})
	assert.Same(t, pool, a.WorkerPool())
}
