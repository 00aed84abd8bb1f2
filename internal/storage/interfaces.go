// Package storage provides composable snapshot-persistence interfaces for the
// Strata memory tiers.
//
// The interfaces are small and focused so backends can be implemented
// independently and composed as needed. Persistence is a snapshot contract:
// each tier hands the backend its full current state on every mutating call,
// and reads it back once at startup. Load failures are never fatal; a
// missing or corrupt store loads as empty.
package storage

import (
	"errors"

	"github.com/strataml/strata/pkg/types"
)

// ErrInvalidInput indicates a malformed argument to a storage operation.
var ErrInvalidInput = errors.New("storage: invalid input")

// ItemStore persists long-term memory snapshots keyed by item ID.
type ItemStore interface {
	// SaveItems writes the full item map, replacing any previous snapshot.
	SaveItems(items map[string]*types.MemoryItem) error

	// LoadItems reads the last snapshot. A missing or corrupt snapshot
	// returns an empty map and no error.
	LoadItems() (map[string]*types.MemoryItem, error)
}

// TraceStore persists the episodic trace list in order.
type TraceStore interface {
	// SaveTraces writes the full trace list, replacing any previous snapshot.
	SaveTraces(traces []*types.EpisodicTrace) error

	// LoadTraces reads the last snapshot. A missing or corrupt snapshot
	// returns an empty slice and no error.
	LoadTraces() ([]*types.EpisodicTrace, error)
}

// SnapshotStore combines both tiers' persistence plus resource cleanup.
type SnapshotStore interface {
	ItemStore
	TraceStore
	Close() error
}
