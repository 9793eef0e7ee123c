// Package bloomfilter is a fixed-size Bloom filter over string keys.
//
// Test answers "definitely absent" or "possibly present". The host
// blocklist uses it as a pre-check in front of its exact map, so most
// lookups for clean hosts never touch the map.
//
// Thread Safety: Add and Test are lock-free. Bits are only ever set, so a
// concurrent Test sees the filter either before or after an Add.
package bloomfilter

import (
	"hash/maphash"
	"math"
	"math/bits"
	"sync/atomic"
)

var seed = maphash.MakeSeed()

// Filter sizes itself on construction:
//   - m = -n*ln(p) / (ln 2)^2  bits
//   - k = (m/n) * ln 2        probes per key
type Filter struct {
	words []atomic.Uint64
	m     uint64
	k     uint64
	added atomic.Uint64
}

// New returns a filter for about expected keys at false positive rate
// fpRate.
//
// Parameters:
//   - expected: Planned number of keys (default: 1000 when 0)
//   - fpRate: Target false positive rate in (0, 1) (default: 0.01)
func New(expected uint, fpRate float64) *Filter {
	if expected == 0 {
		expected = 1000
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = 0.01
	}

	n := float64(expected)
	m := uint64(math.Ceil(-n * math.Log(fpRate) / (math.Ln2 * math.Ln2)))
	k := uint64(math.Max(1, math.Round(float64(m)/n*math.Ln2)))

	return &Filter{
		words: make([]atomic.Uint64, (m+63)/64),
		m:     m,
		k:     k,
	}
}

// probes derives the k bit positions of key by double hashing.
func (f *Filter) probes(key string, visit func(pos uint64) bool) {
	sum := maphash.String(seed, key)
	h1 := sum
	h2 := bits.RotateLeft64(sum, 32) | 1
	for i := uint64(0); i < f.k; i++ {
		if !visit((h1 + i*h2) % f.m) {
			return
		}
	}
}

func (f *Filter) Add(key string) {
	f.probes(key, func(pos uint64) bool {
		word := &f.words[pos/64]
		mask := uint64(1) << (pos % 64)
		for {
			old := word.Load()
			if old&mask != 0 || word.CompareAndSwap(old, old|mask) {
				return true
			}
		}
	})
	f.added.Add(1)
}

// Test reports whether key may have been added. False is definitive.
func (f *Filter) Test(key string) bool {
	present := true
	f.probes(key, func(pos uint64) bool {
		if f.words[pos/64].Load()&(uint64(1)<<(pos%64)) == 0 {
			present = false
		}
		return present
	})
	return present
}

// Count returns the number of Add calls, duplicates included.
func (f *Filter) Count() uint64 {
	return f.added.Load()
}

// FillRatio is the fraction of bits set. Above about 0.5 the false
// positive rate climbs past the sizing target.
func (f *Filter) FillRatio() float64 {
	var set int
	for i := range f.words {
		set += bits.OnesCount64(f.words[i].Load())
	}
	return float64(set) / float64(f.m)
}

// EstimatedFPRate is FillRatio^k.
func (f *Filter) EstimatedFPRate() float64 {
	return math.Pow(f.FillRatio(), float64(f.k))
}

// Clone returns an independent copy with the same bits and sizing.
func (f *Filter) Clone() *Filter {
	c := &Filter{
		words: make([]atomic.Uint64, len(f.words)),
		m:     f.m,
		k:     f.k,
	}
	for i := range f.words {
		c.words[i].Store(f.words[i].Load())
	}
	c.added.Store(f.added.Load())
	return c
}

// Reset clears every bit. Not atomic with respect to concurrent Adds.
func (f *Filter) Reset() {
	for i := range f.words {
		f.words[i].Store(0)
	}
	f.added.Store(0)
}
