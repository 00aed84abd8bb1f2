package types

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Common episodic event types. Event types are free-form strings; these are
// the ones the system itself emits.
const (
	EventToolCall        = "tool_call"
	EventDecision        = "decision"
	EventError           = "error"
	EventStateChange     = "state_change"
	EventTaskStart       = "task_start"
	EventTaskComplete    = "task_complete"
	EventDecisionArchive = "decision_archived"
	EventMemoryExpired   = "memory_expired"
)

// maxTraceSummaryLen bounds the compressed summary of a trace.
const maxTraceSummaryLen = 300

// EpisodicTrace is a compressed event record kept for diagnostics and replay.
// Traces are append-only and never retrieved for reasoning.
type EpisodicTrace struct {
	TraceID   string         `json:"trace_id"`
	EventType string         `json:"event_type"`
	Summary   string         `json:"summary"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewEpisodicTrace builds a trace with a deterministic ID and a summary
// compressed to 300 characters.
func NewEpisodicTrace(eventType, summary string, metadata map[string]any) *EpisodicTrace {
	now := time.Now()
	if len(summary) > maxTraceSummaryLen {
		summary = summary[:maxTraceSummaryLen]
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &EpisodicTrace{
		TraceID:   TraceID(eventType, summary, now),
		EventType: eventType,
		Summary:   summary,
		Timestamp: now,
		Metadata:  metadata,
	}
}

// TraceID derives a trace identity from event type, summary, and timestamp.
func TraceID(eventType, summary string, ts time.Time) string {
	sum := sha256.Sum256([]byte(eventType + summary + ts.Format(time.RFC3339Nano)))
	return hex.EncodeToString(sum[:])[:8]
}
