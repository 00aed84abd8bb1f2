package tier

import (
	"github.com/strataml/strata/pkg/types"
)

// ThreeTier aggregates the three memory tiers behind one handle. Each tier is
// exclusively owned by the aggregate; callers route through it.
type ThreeTier struct {
	Working  *WorkingContext
	LongTerm *LongTermMemory
	Episodic *EpisodicTraces
}

// NewThreeTier wires the tiers together. Nil tiers get in-memory defaults.
func NewThreeTier(working *WorkingContext, longTerm *LongTermMemory, episodic *EpisodicTraces) *ThreeTier {
	if working == nil {
		working = NewWorkingContext(DefaultWorkingItems)
	}
	if longTerm == nil {
		longTerm = NewLongTermMemory(nil)
	}
	if episodic == nil {
		episodic = NewEpisodicTraces(DefaultMaxTraces, nil)
	}
	return &ThreeTier{Working: working, LongTerm: longTerm, Episodic: episodic}
}

// AddWorking appends to the working context.
func (t *ThreeTier) AddWorking(content, source string) {
	t.Working.Add(content, source)
}

// StoreParams carries the fields for a long-term store request. Zero values
// take the MemoryItem defaults (project scope, confidence 0.8).
type StoreParams struct {
	Content      string
	Category     types.MemoryCategory
	Source       string
	Confidence   float64
	Scope        types.MemoryScope
	EvidenceRefs []string
}

// StoreLongTerm builds an item from params and stores it.
// Returns the item ID and true when stored, "" and false when rejected.
func (t *ThreeTier) StoreLongTerm(p StoreParams) (string, bool) {
	item := types.NewMemoryItem(p.Content, p.Category)
	if p.Source != "" {
		item.Source = p.Source
	}
	if p.Confidence > 0 {
		item.Confidence = p.Confidence
	}
	if p.Scope != "" {
		item.Scope = p.Scope
	}
	item.EvidenceRefs = p.EvidenceRefs

	if t.LongTerm.Store(item) {
		return item.ID, true
	}
	return "", false
}

// RecordEvent appends an episodic trace.
func (t *ThreeTier) RecordEvent(eventType, summary string, metadata map[string]any) string {
	return t.Episodic.Record(eventType, summary, metadata)
}
