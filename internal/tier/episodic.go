package tier

import (
	"log"
	"strings"

	"github.com/strataml/strata/internal/storage"
	"github.com/strataml/strata/pkg/types"
)

// DefaultMaxTraces bounds the episodic ring.
const DefaultMaxTraces = 1000

// EpisodicTraces is the diagnostic tier: a bounded, append-only log of
// compressed event records. Oldest traces are evicted silently. Traces are
// never retrieved for reasoning, only keyword diagnostics.
type EpisodicTraces struct {
	maxTraces int
	traces    []*types.EpisodicTrace
	store     storage.TraceStore
}

// NewEpisodicTraces creates a trace log holding up to maxTraces entries.
// store may be nil; otherwise the last snapshot is loaded best-effort.
func NewEpisodicTraces(maxTraces int, store storage.TraceStore) *EpisodicTraces {
	if maxTraces <= 0 {
		maxTraces = DefaultMaxTraces
	}
	et := &EpisodicTraces{maxTraces: maxTraces, store: store}
	if store != nil {
		if loaded, err := store.LoadTraces(); err == nil && len(loaded) > 0 {
			if len(loaded) > maxTraces {
				loaded = loaded[len(loaded)-maxTraces:]
			}
			et.traces = loaded
		}
	}
	return et
}

// Record appends a compressed event trace and returns its ID.
func (e *EpisodicTraces) Record(eventType, summary string, metadata map[string]any) string {
	tr := types.NewEpisodicTrace(eventType, summary, metadata)
	e.traces = append(e.traces, tr)
	if len(e.traces) > e.maxTraces {
		e.traces = e.traces[len(e.traces)-e.maxTraces:]
	}
	e.persist()
	return tr.TraceID
}

// GetRecent returns the last n traces, optionally filtered by event type.
func (e *EpisodicTraces) GetRecent(n int, eventType string) []*types.EpisodicTrace {
	traces := e.traces
	if eventType != "" {
		filtered := make([]*types.EpisodicTrace, 0, len(traces))
		for _, tr := range traces {
			if tr.EventType == eventType {
				filtered = append(filtered, tr)
			}
		}
		traces = filtered
	}
	if len(traces) > n {
		traces = traces[len(traces)-n:]
	}
	return append([]*types.EpisodicTrace(nil), traces...)
}

// Diagnose returns traces whose summary contains keyword (case-insensitive).
func (e *EpisodicTraces) Diagnose(keyword string) []*types.EpisodicTrace {
	kw := strings.ToLower(keyword)
	var matches []*types.EpisodicTrace
	for _, tr := range e.traces {
		if strings.Contains(strings.ToLower(tr.Summary), kw) {
			matches = append(matches, tr)
		}
	}
	return matches
}

// Len returns the number of retained traces.
func (e *EpisodicTraces) Len() int {
	return len(e.traces)
}

func (e *EpisodicTraces) persist() {
	if e.store == nil {
		return
	}
	if err := e.store.SaveTraces(e.traces); err != nil {
		log.Printf("tier: episodic persist failed: %v", err)
	}
}
