// Package ports defines the detection-side interfaces.
package ports

import (
	"context"

	"github.com/xoelrdgz/pagewarden/internal/domain"
)

// HostIntelligence defines the interface for known-bad host lookups.
//
// Implementations:
//   - HostBlocklist: Bloom filter pre-check plus exact map, atomically reloaded
//
// Thread Safety: All methods MUST be safe for concurrent access.
type HostIntelligence interface {
	// IsKnownMalicious reports whether host, or a parent domain of it, is
	// listed.
	//
	// Parameters:
	//   - host: Lowercased hostname without port
	IsKnownMalicious(host string) bool

	// Lookup returns the blocklist entry matching host.
	Lookup(host string) (*domain.HostInfo, bool)

	// Load refreshes the list from its source.
	//
	// Returns:
	//   - nil on success
	//   - Error if load fails (previous data retained)
	Load(ctx context.Context) error

	Count() int
}
