package tier

import (
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/strataml/strata/internal/similarity"
	"github.com/strataml/strata/internal/storage"
	"github.com/strataml/strata/pkg/types"
)

const (
	// dedupThreshold is the word-overlap similarity above which a new item
	// counts as a near-duplicate of an existing active item.
	dedupThreshold = 0.8

	// pruneDecayThreshold is the hard decay floor below which items are
	// pruned. Distinct from the 0.5 soft "needs verification" floor; the
	// two-stage policy lets items degrade gracefully before removal.
	pruneDecayThreshold = 0.25
)

// QueryFilter is a conjunctive filter over the long-term store. Zero values
// mean "no constraint" for the enum fields.
type QueryFilter struct {
	Category      types.MemoryCategory
	Scope         types.MemoryScope
	Status        types.MemoryStatus
	MinConfidence float64
	MaxAgeHours   float64 // 0 = unbounded
}

// LongTermMemory is the curated tier: deduplicated, decaying, contradiction-
// aware storage of durable claims. Snapshots are persisted through an
// optional storage.ItemStore on every mutation; persistence failures are
// logged and never propagate.
type LongTermMemory struct {
	items map[string]*types.MemoryItem
	store storage.ItemStore
	deny  *DenyList
	sim   similarity.Scorer
}

// NewLongTermMemory creates a store with the default deny-list and
// word-overlap similarity. store may be nil for an in-memory-only tier;
// otherwise the last snapshot is loaded (missing/corrupt loads as empty).
func NewLongTermMemory(store storage.ItemStore) *LongTermMemory {
	return NewLongTermMemoryWithDenyList(store, DefaultDenyList())
}

// NewLongTermMemoryWithDenyList creates a store with a custom deny-list.
func NewLongTermMemoryWithDenyList(store storage.ItemStore, deny *DenyList) *LongTermMemory {
	ltm := &LongTermMemory{
		items: make(map[string]*types.MemoryItem),
		store: store,
		deny:  deny,
		sim:   similarity.WordOverlap{},
	}
	if store != nil {
		if loaded, err := store.LoadItems(); err == nil && loaded != nil {
			ltm.items = loaded
		}
	}
	return ltm
}

// SetSimilarity swaps the similarity scorer used for dedup.
func (l *LongTermMemory) SetSimilarity(s similarity.Scorer) {
	if s != nil {
		l.sim = s
	}
}

// Store inserts an item if it passes the deny-list and dedup filters.
// A near-duplicate (over 0.8 overlap with an existing active item) bumps the
// existing item's access accounting instead, and Store reports false.
func (l *LongTermMemory) Store(item *types.MemoryItem) bool {
	if item == nil || l.deny.Blocked(item.Content) {
		return false
	}

	for _, existing := range l.items {
		if existing.Status != types.StatusActive {
			continue
		}
		if l.sim.Score(item.Content, existing.Content) > dedupThreshold {
			existing.Touch(time.Now())
			l.persist()
			return false
		}
	}

	l.items[item.ID] = item
	l.persist()
	return true
}

// Get retrieves an item by ID, recording the access.
func (l *LongTermMemory) Get(id string) (*types.MemoryItem, bool) {
	item, ok := l.items[id]
	if !ok {
		return nil, false
	}
	item.Touch(time.Now())
	return item, true
}

// Peek retrieves an item by ID without touching access accounting.
func (l *LongTermMemory) Peek(id string) (*types.MemoryItem, bool) {
	item, ok := l.items[id]
	return item, ok
}

// Query returns all items matching the conjunctive filter, ordered by
// creation time descending (newest first) for deterministic results.
func (l *LongTermMemory) Query(f QueryFilter) []*types.MemoryItem {
	now := time.Now()
	var results []*types.MemoryItem
	for _, item := range l.items {
		if f.Category != "" && item.Category != f.Category {
			continue
		}
		if f.Scope != "" && item.Scope != f.Scope {
			continue
		}
		if f.Status != "" && item.Status != f.Status {
			continue
		}
		if item.Confidence < f.MinConfidence {
			continue
		}
		if f.MaxAgeHours > 0 && item.AgeHoursAt(now) > f.MaxAgeHours {
			continue
		}
		results = append(results, item)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Timestamp.Equal(results[j].Timestamp) {
			return results[i].ID < results[j].ID
		}
		return results[i].Timestamp.After(results[j].Timestamp)
	})
	return results
}

// MarkContested flags an item as contradicted by newer evidence and appends
// the reason to its evidence refs. The item is retained.
func (l *LongTermMemory) MarkContested(id, reason string) {
	item, ok := l.items[id]
	if !ok {
		return
	}
	item.Status = types.StatusContested
	item.EvidenceRefs = append(item.EvidenceRefs, fmt.Sprintf("contested: %s", reason))
	l.persist()
}

// AdjustConfidence scales an item's confidence by factor (used to demote
// contested items pending verification).
func (l *LongTermMemory) AdjustConfidence(id string, factor float64) {
	item, ok := l.items[id]
	if !ok {
		return
	}
	item.Confidence *= factor
	l.persist()
}

// Supersede freezes oldID as superseded and inserts newItem linked to it.
// Both items are retained for audit.
func (l *LongTermMemory) Supersede(oldID string, newItem *types.MemoryItem) {
	old, ok := l.items[oldID]
	if !ok {
		return
	}
	old.Status = types.StatusSuperseded
	newItem.Supersedes = oldID
	l.items[newItem.ID] = newItem
	l.persist()
}

// PruneExpired removes items whose decay factor has fallen below 0.25,
// marking them expired and returning them so the caller can offer them to
// the episodic archive.
func (l *LongTermMemory) PruneExpired() []*types.MemoryItem {
	now := time.Now()
	var expired []*types.MemoryItem
	for id, item := range l.items {
		if item.DecayFactorAt(now) < pruneDecayThreshold {
			item.Status = types.StatusExpired
			expired = append(expired, item)
			delete(l.items, id)
		}
	}
	l.persist()
	return expired
}

// Len returns the total number of stored items, any status.
func (l *LongTermMemory) Len() int {
	return len(l.items)
}

// ActiveCount returns the number of active items.
func (l *LongTermMemory) ActiveCount() int {
	n := 0
	for _, item := range l.items {
		if item.Status == types.StatusActive {
			n++
		}
	}
	return n
}

// persist snapshots the store. Failures are logged, never propagated; a
// broken disk must not block the owning agent.
func (l *LongTermMemory) persist() {
	if l.store == nil {
		return
	}
	if err := l.store.SaveItems(l.items); err != nil {
		log.Printf("tier: long-term persist failed: %v", err)
	}
}
