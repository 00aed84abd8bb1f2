// Package jsonfile implements the snapshot persistence contract over two JSON
// files in a caller-supplied directory: a flat map keyed by item ID for
// long-term memory, and a JSON array for episodic traces.
package jsonfile

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/strataml/strata/pkg/types"
)

const (
	// ItemsFile is the long-term memory snapshot file name.
	ItemsFile = "long_term_memory.json"

	// TracesFile is the episodic trace snapshot file name.
	TracesFile = "episodic_traces.json"
)

// Store persists memory snapshots as JSON files under a directory.
// Each instance should own its directory exclusively; concurrent writers
// must be serialized externally.
type Store struct {
	dir        string
	itemsPath  string
	tracesPath string
}

// New creates the directory if needed and returns a store rooted at dir.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("jsonfile: directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("jsonfile: failed to create %s: %w", dir, err)
	}
	return &Store{
		dir:        dir,
		itemsPath:  filepath.Join(dir, ItemsFile),
		tracesPath: filepath.Join(dir, TracesFile),
	}, nil
}

// Dir returns the directory this store writes into.
func (s *Store) Dir() string { return s.dir }

// SaveItems writes the full item map as an indented JSON object keyed by ID.
func (s *Store) SaveItems(items map[string]*types.MemoryItem) error {
	return writeJSON(s.itemsPath, items, true)
}

// LoadItems reads the item snapshot. Missing or corrupt files load as an
// empty map, never an error.
func (s *Store) LoadItems() (map[string]*types.MemoryItem, error) {
	items := make(map[string]*types.MemoryItem)
	if !readJSON(s.itemsPath, &items) {
		return make(map[string]*types.MemoryItem), nil
	}
	return items, nil
}

// SaveTraces writes the full trace list as a JSON array.
func (s *Store) SaveTraces(traces []*types.EpisodicTrace) error {
	return writeJSON(s.tracesPath, traces, false)
}

// LoadTraces reads the trace snapshot. Missing or corrupt files load as an
// empty slice, never an error.
func (s *Store) LoadTraces() ([]*types.EpisodicTrace, error) {
	var traces []*types.EpisodicTrace
	if !readJSON(s.tracesPath, &traces) {
		return nil, nil
	}
	return traces, nil
}

// Close is a no-op for file-backed storage.
func (s *Store) Close() error { return nil }

// writeJSON marshals v and replaces path atomically via temp-file + rename,
// so a crash mid-write never leaves a truncated snapshot behind.
func writeJSON(path string, v any, indent bool) error {
	var (
		data []byte
		err  error
	)
	if indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("jsonfile: marshal %s: %w", filepath.Base(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("jsonfile: write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("jsonfile: replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// readJSON reads path into v. Returns false when the file is missing or
// cannot be parsed; corrupt snapshots are logged and treated as empty.
func readJSON(path string, v any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("jsonfile: read %s: %v (starting empty)", filepath.Base(path), err)
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Printf("jsonfile: parse %s: %v (starting empty)", filepath.Base(path), err)
		return false
	}
	return true
}
