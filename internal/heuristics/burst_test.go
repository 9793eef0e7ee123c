package heuristics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xoelrdgz/pagewarden/internal/domain"
)

var epoch = time.UnixMilli(1_700_000_000_000)

func TestBurstDetector_FiresAtThreshold(t *testing.T) {
	detector := NewBurstDetector(DefaultBurstConfig())
	now := epoch

	for i := 0; i < 9; i++ {
		count, fired := detector.Observe(globalScope, now)
		assert.Equal(t, i+1, count)
		assert.False(t, fired, "Request %d should not trigger", i+1)
		now = now.Add(100 * time.Millisecond)
	}

	count, fired := detector.Observe(globalScope, now)
	assert.Equal(t, 10, count)
	assert.True(t, fired)
}

func TestBurstDetector_RefiresWhileWindowFull(t *testing.T) {
	detector := NewBurstDetector(DefaultBurstConfig())

	for i := 0; i < 10; i++ {
		detector.Observe(globalScope, epoch.Add(time.Duration(i)*10*time.Millisecond))
	}

	// 1s after the tenth request every earlier request is still inside 2s.
	count, fired := detector.Observe(globalScope, epoch.Add(90*time.Millisecond+time.Second))
	assert.Equal(t, 11, count)
	assert.True(t, fired)
}

func TestBurstDetector_IdleGapResets(t *testing.T) {
	detector := NewBurstDetector(DefaultBurstConfig())

	for i := 0; i < 12; i++ {
		detector.Observe(globalScope, epoch.Add(time.Duration(i)*time.Millisecond))
	}

	count, fired := detector.Observe(globalScope, epoch.Add(3011*time.Millisecond))
	assert.Equal(t, 1, count)
	assert.False(t, fired)
}

func TestBurstDetector_WindowBoundaryIsExclusive(t *testing.T) {
	detector := NewBurstDetector(BurstConfig{Threshold: 2, Window: 2 * time.Second})

	detector.Observe(globalScope, epoch)
	count, fired := detector.Observe(globalScope, epoch.Add(2*time.Second))
	assert.Equal(t, 1, count, "timestamp exactly one window old is dropped")
	assert.False(t, fired)

	count, fired = detector.Observe(globalScope, epoch.Add(2*time.Second+1999*time.Millisecond))
	assert.Equal(t, 2, count)
	assert.True(t, fired)
}

func TestBurstDetector_Scopes(t *testing.T) {
	global := NewBurstDetector(DefaultBurstConfig())
	assert.Equal(t, "global", global.Scope(domain.TabID(4)))
	assert.Equal(t, "global", global.Scope(domain.TabID(0)))

	perTab := NewBurstDetector(BurstConfig{Threshold: 3, Window: time.Second, PerTab: true})
	assert.Equal(t, "tab:4", perTab.Scope(domain.TabID(4)))
	assert.Equal(t, "global", perTab.Scope(domain.TabID(-1)))

	for i := 0; i < 2; i++ {
		perTab.Observe("tab:1", epoch)
		perTab.Observe("tab:2", epoch)
	}
	_, fired := perTab.Observe("tab:1", epoch)
	assert.True(t, fired)
	assert.Equal(t, 2, perTab.Count("tab:2", epoch))
}

func TestBurstDetector_Prune(t *testing.T) {
	detector := NewBurstDetector(DefaultBurstConfig())
	detector.Observe("a", epoch)
	detector.Observe("b", epoch.Add(1500*time.Millisecond))
	assert.Equal(t, 2, detector.Scopes())

	detector.Prune(epoch.Add(2500 * time.Millisecond))
	assert.Equal(t, 1, detector.Scopes())
	assert.Equal(t, 1, detector.Count("b", epoch.Add(2500*time.Millisecond)))

	detector.Prune(epoch.Add(10 * time.Second))
	assert.Equal(t, 0, detector.Scopes())
}

func TestBurstDetector_Configure(t *testing.T) {
	detector := NewBurstDetector(BurstConfig{})
	assert.Equal(t, 10, detector.Threshold())
	assert.Equal(t, 2*time.Second, detector.Window())

	detector.Configure(3, 500*time.Millisecond)
	assert.Equal(t, 3, detector.Threshold())
	assert.Equal(t, 500*time.Millisecond, detector.Window())

	detector.Configure(0, time.Second)
	assert.Equal(t, 3, detector.Threshold(), "invalid values are ignored")
}

func TestBurstDetector_SetPerTab(t *testing.T) {
	detector := NewBurstDetector(BurstConfig{Threshold: 3, Window: time.Second})
	assert.Equal(t, globalScope, detector.Scope(domain.TabID(4)))
	detector.Observe(globalScope, epoch)

	detector.SetPerTab(true)
	assert.True(t, detector.PerTab())
	assert.Equal(t, "tab:4", detector.Scope(domain.TabID(4)))
	assert.Equal(t, 0, detector.Scopes(), "switching scoping drops old windows")

	detector.Observe("tab:4", epoch)
	detector.SetPerTab(true)
	assert.Equal(t, 1, detector.Scopes(), "no change keeps windows")
}
