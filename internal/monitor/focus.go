package monitor

import (
	"github.com/strataml/strata/internal/state"
	"github.com/strataml/strata/internal/tier"
	"github.com/strataml/strata/pkg/types"
)

// DefaultConsolidateEvery is the decision count between consolidation
// passes. The cadence is counter-based, not wall-clock based, so idle agents
// never churn.
const DefaultConsolidateEvery = 20

// FocusManager couples the state's rotating focus window to the episodic
// tier: decisions evicted by rotation are archived as traces instead of
// vanishing. It also counts operations so its owner knows when a
// consolidation pass is due.
type FocusManager struct {
	agent            *state.AgentState
	episodic         *tier.EpisodicTraces
	consolidateEvery int
	operations       int
	pendingArchived  int
}

// NewFocusManager wires the focus window to the episodic archive.
// Non-positive consolidateEvery falls back to DefaultConsolidateEvery.
func NewFocusManager(agent *state.AgentState, episodic *tier.EpisodicTraces, consolidateEvery int) *FocusManager {
	if consolidateEvery <= 0 {
		consolidateEvery = DefaultConsolidateEvery
	}
	return &FocusManager{agent: agent, episodic: episodic, consolidateEvery: consolidateEvery}
}

// RecordDecision appends a decision to the focus window and archives any
// entries the rotation evicted. Returns true when enough decisions have
// accumulated that the owner should run a consolidation pass.
func (f *FocusManager) RecordDecision(decision, rationale string) bool {
	evicted := f.agent.AddToFocus(decision, rationale)
	f.archive(evicted)
	f.operations++
	return f.operations >= f.consolidateEvery
}

// Trim shrinks the focus window to n entries, archiving the overflow.
func (f *FocusManager) Trim(n int) {
	f.archive(f.agent.TrimFocus(n))
}

// Consolidate reports how many decisions were archived since the last call
// and resets both the archival and operation counters.
func (f *FocusManager) Consolidate() int {
	f.operations = 0
	archived := f.pendingArchived
	f.pendingArchived = 0
	return archived
}

func (f *FocusManager) archive(entries []state.FocusEntry) {
	for _, e := range entries {
		summary := e.Decision
		if e.Rationale != "" {
			summary += " (rationale: " + e.Rationale + ")"
		}
		if f.episodic != nil {
			f.episodic.Record(types.EventDecisionArchive, summary, map[string]any{
				"decided_at": e.Timestamp,
			})
		}
		f.pendingArchived++
	}
}
