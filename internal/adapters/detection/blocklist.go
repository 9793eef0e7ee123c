// Package detection implements known-bad host intelligence for PageWarden.
//
// This file provides host reputation checking against a local blocklist
// with a Bloom filter pre-check for fast negative lookups and atomic pointer
// swaps for zero-downtime reloads.
//
// Architecture:
//   - Bloom filter: O(1) probabilistic membership test (fast negative)
//   - HashMap: Exact host entry lookup after Bloom positive
//   - Atomic pointer: Reload without locks in the hot path
//
// File Format (text):
//   - One host per line, optionally "host,source" or "host,source,cat1;cat2"
//   - A leading "*." is accepted and ignored; parent domains always match
//   - Lines starting with # are comments
//
// File Format (.json): an array of {"host", "source", "categories"} objects.
//
// Thread Safety: All methods are safe for concurrent access.
package detection

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/pagewarden/internal/domain"
	"github.com/xoelrdgz/pagewarden/pkg/bloomfilter"
)

// blocklistData is replaced atomically on reload.
type blocklistData struct {
	bloom *bloomfilter.Filter
	hosts map[string]*domain.HostInfo
}

// HostBlocklist implements ports.HostIntelligence.
//
// Lookup Flow:
//  1. Normalize the host and walk it and each parent domain
//  2. Check the Bloom filter for each candidate
//  3. Confirm Bloom positives in the exact map
type HostBlocklist struct {
	data      atomic.Pointer[blocklistData]
	filepath  string
	bloomSize uint
	fpRate    float64
	loadMu    sync.Mutex
}

type BlocklistConfig struct {
	Filepath          string  // Empty disables file loading
	BloomSize         uint    // Expected number of hosts
	FalsePositiveRate float64 // Bloom filter FP rate (e.g., 0.01 = 1%)
}

// DefaultBlocklistConfig sizes the filter for 10K hosts at 1% false
// positives.
func DefaultBlocklistConfig() BlocklistConfig {
	return BlocklistConfig{
		BloomSize:         10000,
		FalsePositiveRate: 0.01,
	}
}

// NewHostBlocklist creates an empty blocklist. Call Load to populate it.
func NewHostBlocklist(config BlocklistConfig) *HostBlocklist {
	if config.BloomSize == 0 {
		config.BloomSize = 10000
	}
	if config.FalsePositiveRate <= 0 || config.FalsePositiveRate >= 1 {
		config.FalsePositiveRate = 0.01
	}

	b := &HostBlocklist{
		filepath:  config.Filepath,
		bloomSize: config.BloomSize,
		fpRate:    config.FalsePositiveRate,
	}
	b.data.Store(b.newData(0))
	return b
}

func (b *HostBlocklist) newData(n int) *blocklistData {
	size := b.bloomSize
	if uint(n) > size {
		size = uint(n)
	}
	return &blocklistData{
		bloom: bloomfilter.New(size, b.fpRate),
		hosts: make(map[string]*domain.HostInfo, n),
	}
}

// SetFilepath changes the file read by the next Load.
func (b *HostBlocklist) SetFilepath(path string) {
	b.loadMu.Lock()
	defer b.loadMu.Unlock()
	b.filepath = path
}

// NormalizeHost lowercases host and strips a port, trailing dot and
// wildcard prefix.
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	host = strings.TrimPrefix(host, "*.")
	host = strings.TrimSuffix(host, ".")
	return host
}

// Load reads the blocklist from the configured file.
//
// Returns:
//   - nil on success, including a missing file (empty list) or empty path
//   - Error if the file cannot be read or parsed (previous data retained)
func (b *HostBlocklist) Load(ctx context.Context) error {
	b.loadMu.Lock()
	defer b.loadMu.Unlock()

	if b.filepath == "" {
		return nil
	}

	cleanPath := filepath.Clean(b.filepath)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path traversal detected in blocklist path: %q", b.filepath)
	}

	file, err := os.Open(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("file", b.filepath).Msg("Blocklist file not found, starting with empty list")
			return nil
		}
		return err
	}
	defer file.Close()

	var entries []*domain.HostInfo
	if strings.EqualFold(filepath.Ext(cleanPath), ".json") {
		entries, err = parseJSONBlocklist(file)
	} else {
		entries, err = parseTextBlocklist(ctx, file)
	}
	if err != nil {
		return fmt.Errorf("failed to parse blocklist %s: %w", b.filepath, err)
	}

	data := b.newData(len(entries))
	now := time.Now()
	for _, info := range entries {
		if info.LastUpdated.IsZero() {
			info.LastUpdated = now
		}
		data.bloom.Add(info.Host)
		data.hosts[info.Host] = info
	}
	b.data.Store(data)

	log.Info().Int("count", len(data.hosts)).Str("file", b.filepath).Msg("Loaded host blocklist (zero-downtime)")
	return nil
}

func parseTextBlocklist(ctx context.Context, r io.Reader) ([]*domain.HostInfo, error) {
	var entries []*domain.HostInfo
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		host := NormalizeHost(parts[0])
		if host == "" {
			continue
		}
		info := &domain.HostInfo{Host: host, Source: "local"}
		if len(parts) >= 2 && strings.TrimSpace(parts[1]) != "" {
			info.Source = strings.TrimSpace(parts[1])
		}
		if len(parts) >= 3 {
			for _, c := range strings.Split(parts[2], ";") {
				if c = strings.TrimSpace(c); c != "" {
					info.Categories = append(info.Categories, c)
				}
			}
		}
		entries = append(entries, info)
	}
	return entries, scanner.Err()
}

func parseJSONBlocklist(r io.Reader) ([]*domain.HostInfo, error) {
	var raw []*domain.HostInfo
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, err
	}
	entries := raw[:0]
	for _, info := range raw {
		if info == nil {
			continue
		}
		info.Host = NormalizeHost(info.Host)
		if info.Host == "" {
			continue
		}
		if info.Source == "" {
			info.Source = "local"
		}
		entries = append(entries, info)
	}
	return entries, nil
}

// match walks host and its parent domains, most specific first.
func (d *blocklistData) match(host string) (*domain.HostInfo, bool) {
	for candidate := host; candidate != ""; {
		if d.bloom.Test(candidate) {
			if info, ok := d.hosts[candidate]; ok {
				return info, true
			}
		}
		i := strings.IndexByte(candidate, '.')
		if i < 0 {
			break
		}
		candidate = candidate[i+1:]
	}
	return nil, false
}

// IsKnownMalicious reports whether host or one of its parent domains is
// listed. Lock-free.
func (b *HostBlocklist) IsKnownMalicious(host string) bool {
	host = NormalizeHost(host)
	if host == "" {
		return false
	}
	_, ok := b.data.Load().match(host)
	return ok
}

// Lookup returns the most specific listed entry for host.
func (b *HostBlocklist) Lookup(host string) (*domain.HostInfo, bool) {
	host = NormalizeHost(host)
	if host == "" {
		return nil, false
	}
	return b.data.Load().match(host)
}

func (b *HostBlocklist) Count() int {
	return len(b.data.Load().hosts)
}

// Add lists a host at runtime.
//
// Thread Safety: Serialized with Load; the host map is copied on write.
func (b *HostBlocklist) Add(info domain.HostInfo) {
	info.Host = NormalizeHost(info.Host)
	if info.Host == "" {
		return
	}
	if info.Source == "" {
		info.Source = "local"
	}
	if info.LastUpdated.IsZero() {
		info.LastUpdated = time.Now()
	}

	b.loadMu.Lock()
	defer b.loadMu.Unlock()

	old := b.data.Load()
	hosts := make(map[string]*domain.HostInfo, len(old.hosts)+1)
	for k, v := range old.hosts {
		hosts[k] = v
	}
	hosts[info.Host] = &info

	bloom := old.bloom.Clone()
	bloom.Add(info.Host)

	b.data.Store(&blocklistData{bloom: bloom, hosts: hosts})
}
