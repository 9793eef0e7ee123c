package bloomfilter

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_NoFalseNegatives(t *testing.T) {
	f := New(1000, 0.01)
	hosts := []string{"evil-server.example", "cdn.badscripts.example", "tracker.example.net", "a.b.c.d.example"}

	for _, h := range hosts {
		f.Add(h)
	}
	for _, h := range hosts {
		assert.True(t, f.Test(h), "added host %s must test positive", h)
	}
	assert.Equal(t, uint64(len(hosts)), f.Count())
}

func TestFilter_FalsePositiveRateNearTarget(t *testing.T) {
	f := New(5000, 0.01)
	for i := 0; i < 5000; i++ {
		f.Add(fmt.Sprintf("listed-%d.example", i))
	}

	positives := 0
	const probes = 20000
	for i := 0; i < probes; i++ {
		if f.Test(fmt.Sprintf("clean-%d.example", i)) {
			positives++
		}
	}
	rate := float64(positives) / probes
	assert.Less(t, rate, 0.03, "observed false positive rate %.4f", rate)
	assert.InDelta(t, 0.01, f.EstimatedFPRate(), 0.01)
}

func TestFilter_Defaults(t *testing.T) {
	f := New(0, 2)
	require.NotNil(t, f)
	assert.Greater(t, f.m, uint64(0))
	assert.GreaterOrEqual(t, f.k, uint64(1))
	assert.False(t, f.Test("anything"))
}

func TestFilter_FillRatio(t *testing.T) {
	f := New(100, 0.01)
	assert.Zero(t, f.FillRatio())

	for i := 0; i < 100; i++ {
		f.Add(fmt.Sprintf("h%d", i))
	}
	ratio := f.FillRatio()
	assert.Greater(t, ratio, 0.3)
	assert.Less(t, ratio, 0.7)
}

func TestFilter_CloneIsIndependent(t *testing.T) {
	f := New(100, 0.01)
	f.Add("shared.example")

	c := f.Clone()
	c.Add("clone-only.example")

	assert.True(t, c.Test("shared.example"))
	assert.True(t, c.Test("clone-only.example"))
	assert.Equal(t, uint64(2), c.Count())
	assert.Equal(t, uint64(1), f.Count())
}

func TestFilter_Reset(t *testing.T) {
	f := New(100, 0.01)
	f.Add("x.example")
	f.Reset()

	assert.False(t, f.Test("x.example"))
	assert.Zero(t, f.Count())
	assert.Zero(t, f.FillRatio())
}

func TestFilter_ConcurrentAdd(t *testing.T) {
	f := New(10000, 0.01)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				f.Add(fmt.Sprintf("w%d-%d", w, i))
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < 8; w++ {
		for i := 0; i < 500; i++ {
			require.True(t, f.Test(fmt.Sprintf("w%d-%d", w, i)))
		}
	}
	assert.Equal(t, uint64(4000), f.Count())
}

func BenchmarkFilter_Test(b *testing.B) {
	f := New(10000, 0.01)
	for i := 0; i < 10000; i++ {
		f.Add(fmt.Sprintf("listed-%d.example", i))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Test("shop.example")
	}
}
