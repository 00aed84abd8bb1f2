// Package sqlite implements the snapshot persistence contract over a
// single-file SQLite database. Rows carry the same JSON document shape as the
// jsonfile backend, so the two stay interchangeable behind the storage
// interfaces.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/strataml/strata/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS memory_items (
	id   TEXT PRIMARY KEY,
	data TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS episodic_traces (
	position INTEGER PRIMARY KEY AUTOINCREMENT,
	data     TEXT NOT NULL
);
`

// Store persists memory snapshots in a SQLite database.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and prepares the schema.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: database path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	// SQLite supports one concurrent writer; a single connection serialises
	// writes and avoids SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// SaveItems replaces the item snapshot in a single transaction.
func (s *Store) SaveItems(items map[string]*types.MemoryItem) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM memory_items"); err != nil {
		return fmt.Errorf("sqlite: clear items: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO memory_items (id, data) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("sqlite: prepare: %w", err)
	}
	defer stmt.Close()

	for id, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("sqlite: marshal item %s: %w", id, err)
		}
		if _, err := stmt.Exec(id, string(data)); err != nil {
			return fmt.Errorf("sqlite: insert item %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// LoadItems reads the item snapshot. Query or decode failures load as empty.
func (s *Store) LoadItems() (map[string]*types.MemoryItem, error) {
	items := make(map[string]*types.MemoryItem)

	rows, err := s.db.Query("SELECT id, data FROM memory_items")
	if err != nil {
		log.Printf("sqlite: load items: %v (starting empty)", err)
		return items, nil
	}
	defer rows.Close()

	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			log.Printf("sqlite: scan item: %v (starting empty)", err)
			return make(map[string]*types.MemoryItem), nil
		}
		var item types.MemoryItem
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			log.Printf("sqlite: decode item %s: %v (skipping)", id, err)
			continue
		}
		items[id] = &item
	}
	if err := rows.Err(); err != nil {
		log.Printf("sqlite: iterate items: %v (starting empty)", err)
		return make(map[string]*types.MemoryItem), nil
	}

	return items, nil
}

// SaveTraces replaces the trace snapshot in a single transaction, keeping
// the original ordering via the autoincrement position column.
func (s *Store) SaveTraces(traces []*types.EpisodicTrace) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM episodic_traces"); err != nil {
		return fmt.Errorf("sqlite: clear traces: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO episodic_traces (data) VALUES (?)")
	if err != nil {
		return fmt.Errorf("sqlite: prepare: %w", err)
	}
	defer stmt.Close()

	for _, tr := range traces {
		data, err := json.Marshal(tr)
		if err != nil {
			return fmt.Errorf("sqlite: marshal trace %s: %w", tr.TraceID, err)
		}
		if _, err := stmt.Exec(string(data)); err != nil {
			return fmt.Errorf("sqlite: insert trace %s: %w", tr.TraceID, err)
		}
	}

	return tx.Commit()
}

// LoadTraces reads the trace snapshot in recorded order.
func (s *Store) LoadTraces() ([]*types.EpisodicTrace, error) {
	rows, err := s.db.Query("SELECT data FROM episodic_traces ORDER BY position")
	if err != nil {
		log.Printf("sqlite: load traces: %v (starting empty)", err)
		return nil, nil
	}
	defer rows.Close()

	var traces []*types.EpisodicTrace
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			log.Printf("sqlite: scan trace: %v (starting empty)", err)
			return nil, nil
		}
		var tr types.EpisodicTrace
		if err := json.Unmarshal([]byte(data), &tr); err != nil {
			log.Printf("sqlite: decode trace: %v (skipping)", err)
			continue
		}
		traces = append(traces, &tr)
	}
	if err := rows.Err(); err != nil {
		log.Printf("sqlite: iterate traces: %v (starting empty)", err)
		return nil, nil
	}

	return traces, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
