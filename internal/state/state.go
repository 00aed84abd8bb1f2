// Package state implements the explicit agent-state object: goals,
// constraints, assumptions, open questions, environment flags, the rotating
// focus window, and the versioned policy that drives retrieval thresholds.
//
// State is what an agent UPDATES; memory is what it RETRIEVES. All mutation
// goes through methods that bump the version counter; the fields are
// unexported precisely so nothing can bypass the staleness accounting.
package state

import (
	"fmt"
	"strings"
	"time"
)

// PolicyVersion is the adaptive behavior mode derived from quality signals.
type PolicyVersion string

const (
	PolicyNormal       PolicyVersion = "normal"
	PolicyConservative PolicyVersion = "conservative" // Tighter retrieval, more verification
	PolicyAggressive   PolicyVersion = "aggressive"   // More exploration, less verification
)

// Valid reports whether p is a known policy.
func (p PolicyVersion) Valid() bool {
	switch p {
	case PolicyNormal, PolicyConservative, PolicyAggressive:
		return true
	}
	return false
}

// QualitySignal identifies one of the counters that drive policy escalation.
type QualitySignal string

const (
	SignalUserCorrection      QualitySignal = "user_correction"
	SignalToolRetry           QualitySignal = "tool_retry"
	SignalVerificationFailure QualitySignal = "verification_failure"
)

// escalationThreshold is the combined quality-signal count at which the
// policy escalates to conservative.
const escalationThreshold = 3

// assumptionMaxAgeHours is how long an unverified assumption survives
// consolidation.
const assumptionMaxAgeHours = 24

// DefaultFocusWindowSize bounds the rotating decision log.
const DefaultFocusWindowSize = 10

// Assumption is an explicit working assumption with confidence and source.
type Assumption struct {
	Content    string    `json:"content"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	Created    time.Time `json:"created"`
	Verified   bool      `json:"verified"`
}

// OpenQuestion is an unresolved question that may need user clarification.
type OpenQuestion struct {
	Question   string    `json:"question"`
	Context    string    `json:"context,omitempty"`
	Priority   int       `json:"priority"` // 1=low, 2=medium, 3=high
	Created    time.Time `json:"created"`
	Resolved   bool      `json:"resolved"`
	Resolution string    `json:"resolution,omitempty"`
}

// FocusEntry is one decision in the rotating focus window.
type FocusEntry struct {
	Decision  string    `json:"decision"`
	Rationale string    `json:"rationale"`
	Timestamp time.Time `json:"timestamp"`
}

// ConsolidationReport summarizes a state consolidation pass.
type ConsolidationReport struct {
	PrunedQuestions    int `json:"pruned"`
	ExpiredAssumptions int `json:"expired"`
}

// AgentState is the mutable control-plane object, distinct from retrievable
// memory. It is shared by reference with retrieval (read) and the monitors
// (read/write through methods).
type AgentState struct {
	goals           []string
	constraints     []string
	assumptions     []*Assumption
	openQuestions   []*OpenQuestion
	environment     map[string]any
	policy          PolicyVersion
	focusWindow     []FocusEntry
	focusWindowSize int

	version     int
	lastUpdated time.Time

	userCorrections      int
	toolRetries          int
	verificationFailures int
}

// New creates an agent state with the given focus-window size.
func New(focusWindowSize int) *AgentState {
	if focusWindowSize <= 0 {
		focusWindowSize = DefaultFocusWindowSize
	}
	return &AgentState{
		environment:     make(map[string]any),
		policy:          PolicyNormal,
		focusWindowSize: focusWindowSize,
		lastUpdated:     time.Now(),
	}
}

// SetGoal inserts a goal at the given priority position (0 = highest).
// Duplicate goals are ignored.
func (s *AgentState) SetGoal(goal string, priority int) {
	for _, g := range s.goals {
		if g == goal {
			return
		}
	}
	if priority < 0 {
		priority = 0
	}
	if priority > len(s.goals) {
		priority = len(s.goals)
	}
	s.goals = append(s.goals[:priority], append([]string{goal}, s.goals[priority:]...)...)
	s.bump()
}

// CompleteGoal removes a goal. Returns true when the goal existed.
func (s *AgentState) CompleteGoal(goal string) bool {
	for i, g := range s.goals {
		if g == goal {
			s.goals = append(s.goals[:i], s.goals[i+1:]...)
			s.bump()
			return true
		}
	}
	return false
}

// AddConstraint records a hard constraint. Duplicates are ignored.
func (s *AgentState) AddConstraint(constraint string) {
	for _, c := range s.constraints {
		if c == constraint {
			return
		}
	}
	s.constraints = append(s.constraints, constraint)
	s.bump()
}

// AddAssumption records a working assumption. A duplicate (same content)
// merges confidence via max instead of inserting twice.
func (s *AgentState) AddAssumption(content string, confidence float64, source string) {
	for _, a := range s.assumptions {
		if a.Content == content {
			if confidence > a.Confidence {
				a.Confidence = confidence
			}
			return
		}
	}
	s.assumptions = append(s.assumptions, &Assumption{
		Content:    content,
		Confidence: confidence,
		Source:     source,
		Created:    time.Now(),
	})
	s.bump()
}

// VerifyAssumption marks an assumption verified. Returns true when found.
func (s *AgentState) VerifyAssumption(content string) bool {
	for _, a := range s.assumptions {
		if a.Content == content {
			a.Verified = true
			s.bump()
			return true
		}
	}
	return false
}

// InvalidateAssumption removes an assumption. Returns true when found.
func (s *AgentState) InvalidateAssumption(content string) bool {
	for i, a := range s.assumptions {
		if a.Content == content {
			s.assumptions = append(s.assumptions[:i], s.assumptions[i+1:]...)
			s.bump()
			return true
		}
	}
	return false
}

// AddQuestion records an open question.
func (s *AgentState) AddQuestion(question, context string, priority int) {
	s.openQuestions = append(s.openQuestions, &OpenQuestion{
		Question: question,
		Context:  context,
		Priority: priority,
		Created:  time.Now(),
	})
	s.bump()
}

// ResolveQuestion marks a question resolved. Returns true when found.
func (s *AgentState) ResolveQuestion(question, resolution string) bool {
	for _, q := range s.openQuestions {
		if q.Question == question {
			q.Resolved = true
			q.Resolution = resolution
			s.bump()
			return true
		}
	}
	return false
}

// SetEnvFlag sets an environment flag.
func (s *AgentState) SetEnvFlag(key string, value any) {
	s.environment[key] = value
	s.bump()
}

// AddToFocus appends a decision to the rotating focus window and returns the
// entries evicted by rotation so the caller can archive them.
func (s *AgentState) AddToFocus(decision, rationale string) []FocusEntry {
	s.focusWindow = append(s.focusWindow, FocusEntry{
		Decision:  decision,
		Rationale: rationale,
		Timestamp: time.Now(),
	})
	var evicted []FocusEntry
	if len(s.focusWindow) > s.focusWindowSize {
		cut := len(s.focusWindow) - s.focusWindowSize
		evicted = append([]FocusEntry(nil), s.focusWindow[:cut]...)
		s.focusWindow = s.focusWindow[cut:]
	}
	s.bump()
	return evicted
}

// TrimFocus shrinks the focus window to at most n entries, returning the
// overflow (oldest first).
func (s *AgentState) TrimFocus(n int) []FocusEntry {
	if n < 0 || len(s.focusWindow) <= n {
		return nil
	}
	cut := len(s.focusWindow) - n
	evicted := append([]FocusEntry(nil), s.focusWindow[:cut]...)
	s.focusWindow = s.focusWindow[cut:]
	s.bump()
	return evicted
}

// RecordQualitySignal increments the matching counter and re-evaluates the
// escalation threshold. Unknown signal kinds are ignored.
func (s *AgentState) RecordQualitySignal(kind QualitySignal) {
	switch kind {
	case SignalUserCorrection:
		s.userCorrections++
	case SignalToolRetry:
		s.toolRetries++
	case SignalVerificationFailure:
		s.verificationFailures++
	default:
		return
	}
	if s.QualitySignalTotal() >= escalationThreshold {
		s.EscalatePolicy("quality signal threshold reached")
	}
}

// EscalatePolicy switches to the conservative policy. This is the single
// authoritative escalation path: both the counter threshold and the drift
// monitor's window heuristic land here. Idempotent; returns true when the
// policy actually changed.
func (s *AgentState) EscalatePolicy(reason string) bool {
	_ = reason
	if s.policy == PolicyConservative {
		return false
	}
	s.policy = PolicyConservative
	s.bump()
	return true
}

// ResetQualitySignals zeroes the counters and demotes a conservative policy
// back to normal. Called on successful task completion.
func (s *AgentState) ResetQualitySignals() {
	s.userCorrections = 0
	s.toolRetries = 0
	s.verificationFailures = 0
	if s.policy == PolicyConservative {
		s.policy = PolicyNormal
		s.bump()
	}
}

// QualitySignalTotal returns the combined quality-issue count.
func (s *AgentState) QualitySignalTotal() int {
	return s.userCorrections + s.toolRetries + s.verificationFailures
}

// Consolidate removes resolved questions and expires unverified assumptions
// older than 24 hours, returning a change-count report.
func (s *AgentState) Consolidate() ConsolidationReport {
	var report ConsolidationReport

	kept := s.openQuestions[:0]
	for _, q := range s.openQuestions {
		if q.Resolved {
			report.PrunedQuestions++
			continue
		}
		kept = append(kept, q)
	}
	s.openQuestions = kept

	now := time.Now()
	keptAssumptions := s.assumptions[:0]
	for _, a := range s.assumptions {
		if !a.Verified && now.Sub(a.Created).Hours() > assumptionMaxAgeHours {
			report.ExpiredAssumptions++
			continue
		}
		keptAssumptions = append(keptAssumptions, a)
	}
	s.assumptions = keptAssumptions

	s.bump()
	return report
}

// Summary produces a deterministic plain-text digest of the state. This is a
// counting digest for UI/debugging, not the anti-drift summary generator.
func (s *AgentState) Summary() string {
	verified := 0
	for _, a := range s.assumptions {
		if a.Verified {
			verified++
		}
	}
	unresolved := 0
	for _, q := range s.openQuestions {
		if !q.Resolved {
			unresolved++
		}
	}

	lines := []string{
		fmt.Sprintf("=== Agent State (v%d) ===", s.version),
		fmt.Sprintf("Policy: %s", s.policy),
		fmt.Sprintf("Goals: %d", len(s.goals)),
		fmt.Sprintf("Constraints: %d", len(s.constraints)),
		fmt.Sprintf("Assumptions: %d (%d verified)", len(s.assumptions), verified),
		fmt.Sprintf("Open Questions: %d", unresolved),
		fmt.Sprintf("Focus Window: %d decisions", len(s.focusWindow)),
	}
	return strings.Join(lines, "\n")
}

// Accessors. Slices are copied so callers cannot mutate state out-of-band.

// Goals returns the ordered goal list (index 0 = highest priority).
func (s *AgentState) Goals() []string { return append([]string(nil), s.goals...) }

// TopGoal returns the highest-priority goal, or "" when none is set.
func (s *AgentState) TopGoal() string {
	if len(s.goals) == 0 {
		return ""
	}
	return s.goals[0]
}

// Constraints returns the hard-constraint list.
func (s *AgentState) Constraints() []string { return append([]string(nil), s.constraints...) }

// Assumptions returns copies of the current assumptions.
func (s *AgentState) Assumptions() []Assumption {
	out := make([]Assumption, len(s.assumptions))
	for i, a := range s.assumptions {
		out[i] = *a
	}
	return out
}

// OpenQuestions returns copies of the current questions (resolved included).
func (s *AgentState) OpenQuestions() []OpenQuestion {
	out := make([]OpenQuestion, len(s.openQuestions))
	for i, q := range s.openQuestions {
		out[i] = *q
	}
	return out
}

// UnresolvedQuestions returns copies of the questions still open.
func (s *AgentState) UnresolvedQuestions() []OpenQuestion {
	var out []OpenQuestion
	for _, q := range s.openQuestions {
		if !q.Resolved {
			out = append(out, *q)
		}
	}
	return out
}

// EnvFlag returns an environment flag value.
func (s *AgentState) EnvFlag(key string) (any, bool) {
	v, ok := s.environment[key]
	return v, ok
}

// Policy returns the current policy version.
func (s *AgentState) Policy() PolicyVersion { return s.policy }

// FocusWindow returns a copy of the rotating decision log.
func (s *AgentState) FocusWindow() []FocusEntry {
	return append([]FocusEntry(nil), s.focusWindow...)
}

// FocusWindowSize returns the configured window bound.
func (s *AgentState) FocusWindowSize() int { return s.focusWindowSize }

// Version returns the monotonic mutation counter.
func (s *AgentState) Version() int { return s.version }

// LastUpdated returns the timestamp of the most recent mutation.
func (s *AgentState) LastUpdated() time.Time { return s.lastUpdated }

func (s *AgentState) bump() {
	s.version++
	s.lastUpdated = time.Now()
}
