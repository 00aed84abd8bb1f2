// Package tier implements the three memory tiers: ephemeral working context,
// curated long-term memory with decay, and bounded episodic traces.
package tier

import (
	"time"
)

const (
	// DefaultWorkingItems is the working-context ring capacity.
	DefaultWorkingItems = 20

	// maxWorkingContentLen truncates long entries; raw logs belong in
	// episodic traces, not the working context.
	maxWorkingContentLen = 500

	// maxConstraints is the sliding window of recent user constraints.
	maxConstraints = 5

	// maxToolOutputs is the sliding window of summarized tool outputs.
	maxToolOutputs = 5

	// maxToolSummaryLen bounds each stored tool-output summary.
	maxToolSummaryLen = 200

	// windowRecentItems is how many ring entries a context window exposes.
	windowRecentItems = 10

	truncationNote = "... [truncated, see episodic trace]"
)

// WorkingItem is one entry in the working-context ring.
type WorkingItem struct {
	Content   string    `json:"content"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// ToolOutput is a summarized (never raw) tool result.
type ToolOutput struct {
	Tool      string    `json:"tool"`
	Summary   string    `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
}

// Window is a read-only snapshot of the current working context.
type Window struct {
	CurrentTask string        `json:"current_task,omitempty"`
	Constraints []string      `json:"user_constraints"`
	RecentItems []WorkingItem `json:"recent_items"`
	ToolOutputs []ToolOutput  `json:"tool_outputs"`
}

// WorkingContext is the ephemeral tier: a bounded ring of recent context for
// the current task. It is intentionally lossy and always overwritten; there
// is no persistence, which is what keeps stale context from rotting in place.
type WorkingContext struct {
	maxItems    int
	items       []WorkingItem
	currentTask string
	constraints []string
	toolOutputs []ToolOutput
}

// NewWorkingContext creates a working context holding up to maxItems entries.
// Non-positive capacities fall back to the default of 20.
func NewWorkingContext(maxItems int) *WorkingContext {
	if maxItems <= 0 {
		maxItems = DefaultWorkingItems
	}
	return &WorkingContext{maxItems: maxItems}
}

// Add appends an entry, truncating oversized content and evicting the oldest
// entry beyond capacity.
func (w *WorkingContext) Add(content, source string) {
	if len(content) > maxWorkingContentLen {
		content = content[:maxWorkingContentLen] + truncationNote
	}
	w.items = append(w.items, WorkingItem{
		Content:   content,
		Source:    source,
		Timestamp: time.Now(),
	})
	if len(w.items) > w.maxItems {
		w.items = w.items[len(w.items)-w.maxItems:]
	}
}

// SetTask records the current task focus.
func (w *WorkingContext) SetTask(task string) {
	w.currentTask = task
}

// AddConstraint records a user constraint, keeping only the last 5.
func (w *WorkingContext) AddConstraint(constraint string) {
	w.constraints = append(w.constraints, constraint)
	if len(w.constraints) > maxConstraints {
		w.constraints = w.constraints[len(w.constraints)-maxConstraints:]
	}
}

// AddToolOutput records a summarized tool output (200-char cap), keeping only
// the last 5.
func (w *WorkingContext) AddToolOutput(tool, summary string) {
	if len(summary) > maxToolSummaryLen {
		summary = summary[:maxToolSummaryLen]
	}
	w.toolOutputs = append(w.toolOutputs, ToolOutput{
		Tool:      tool,
		Summary:   summary,
		Timestamp: time.Now(),
	})
	if len(w.toolOutputs) > maxToolOutputs {
		w.toolOutputs = w.toolOutputs[len(w.toolOutputs)-maxToolOutputs:]
	}
}

// ContextWindow returns a read-only snapshot: the current task, constraints,
// last 10 ring entries, and tool outputs.
func (w *WorkingContext) ContextWindow() Window {
	recent := w.items
	if len(recent) > windowRecentItems {
		recent = recent[len(recent)-windowRecentItems:]
	}
	return Window{
		CurrentTask: w.currentTask,
		Constraints: append([]string(nil), w.constraints...),
		RecentItems: append([]WorkingItem(nil), recent...),
		ToolOutputs: append([]ToolOutput(nil), w.toolOutputs...),
	}
}

// Len returns the number of entries currently in the ring.
func (w *WorkingContext) Len() int {
	return len(w.items)
}

// Clear resets all fields. Called between tasks.
func (w *WorkingContext) Clear() {
	w.items = nil
	w.currentTask = ""
	w.constraints = nil
	w.toolOutputs = nil
}
