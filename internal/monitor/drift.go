package monitor

import (
	"log"
	"time"

	"github.com/strataml/strata/internal/state"
	"github.com/strataml/strata/internal/tier"
	"github.com/strataml/strata/pkg/types"
)

// SignalKind identifies a drift signal.
type SignalKind string

const (
	SignalUserCorrection      SignalKind = "user_correction"
	SignalToolRetry           SignalKind = "tool_retry"
	SignalVerificationFailure SignalKind = "verification_failure"
	SignalContradiction       SignalKind = "contradiction"
	SignalHallucinationFlag   SignalKind = "hallucination_flag"
	SignalLoopDetected        SignalKind = "loop_detected"
)

// signalSeverity is the default weight per signal kind; callers with more
// context can override it per signal.
var signalSeverity = map[SignalKind]int{
	SignalUserCorrection:      2,
	SignalToolRetry:           1,
	SignalVerificationFailure: 2,
	SignalContradiction:       1,
	SignalHallucinationFlag:   3,
	SignalLoopDetected:        3,
}

const (
	// driftWindowSize is how many recent signals the monitor considers.
	driftWindowSize = 20

	// driftAlertThreshold is the windowed severity at which health flips
	// to degraded.
	driftAlertThreshold = 3
)

// Signal is one recorded drift observation.
type Signal struct {
	Kind      SignalKind `json:"kind"`
	Detail    string     `json:"detail"`
	Severity  int        `json:"severity"`
	Timestamp time.Time  `json:"timestamp"`
}

// HealthReport summarizes the monitor's windowed view.
type HealthReport struct {
	Healthy  bool               `json:"healthy"`
	Severity int                `json:"severity"`
	Counts   map[SignalKind]int `json:"counts"`
}

// DriftMonitor watches a sliding window of quality signals and escalates the
// agent's policy when the window looks pathological. It never mutates state
// directly; escalation always goes through AgentState.EscalatePolicy, and
// user-correction and tool-retry signals are forwarded to the state's own
// quality counters so both paths stay consistent.
type DriftMonitor struct {
	agent    *state.AgentState
	episodic *tier.EpisodicTraces
	window   []Signal
}

// NewDriftMonitor creates a monitor over the given state. episodic may be
// nil; alerts are then only logged.
func NewDriftMonitor(agent *state.AgentState, episodic *tier.EpisodicTraces) *DriftMonitor {
	return &DriftMonitor{agent: agent, episodic: episodic}
}

// Record ingests a signal at its kind's default severity and re-evaluates
// the window immediately. Returns true when the window triggered a policy
// escalation.
func (m *DriftMonitor) Record(kind SignalKind, detail string) bool {
	return m.RecordWithSeverity(kind, detail, 0)
}

// RecordWithSeverity ingests a signal with a caller-supplied severity (1-3).
// Non-positive severities fall back to the kind's default weight.
func (m *DriftMonitor) RecordWithSeverity(kind SignalKind, detail string, severity int) bool {
	def, ok := signalSeverity[kind]
	if !ok {
		return false
	}
	if severity <= 0 {
		severity = def
	}
	m.window = append(m.window, Signal{
		Kind:      kind,
		Detail:    detail,
		Severity:  severity,
		Timestamp: time.Now(),
	})
	if len(m.window) > driftWindowSize {
		m.window = m.window[len(m.window)-driftWindowSize:]
	}

	switch kind {
	case SignalUserCorrection:
		m.agent.RecordQualitySignal(state.SignalUserCorrection)
	case SignalToolRetry:
		m.agent.RecordQualitySignal(state.SignalToolRetry)
	case SignalVerificationFailure:
		m.agent.RecordQualitySignal(state.SignalVerificationFailure)
	}

	if reason, drifting := m.evaluate(); drifting {
		if m.agent.EscalatePolicy(reason) {
			log.Printf("monitor: drift detected, policy escalated: %s", reason)
			if m.episodic != nil {
				m.episodic.Record(types.EventStateChange, "policy escalated to conservative: "+reason, map[string]any{
					"trigger": string(kind),
				})
			}
			return true
		}
	}
	return false
}

// evaluate applies the drift heuristics to the current window.
func (m *DriftMonitor) evaluate() (string, bool) {
	counts := m.counts()
	switch {
	case counts[SignalUserCorrection] >= 2:
		return "repeated user corrections", true
	case counts[SignalLoopDetected] >= 1:
		return "behavioral loop detected", true
	case counts[SignalContradiction] >= 2:
		return "repeated contradictions", true
	case m.severity() >= 2*driftAlertThreshold:
		return "accumulated quality signals", true
	}
	return "", false
}

// Health reports the windowed severity against the alert threshold.
func (m *DriftMonitor) Health() HealthReport {
	sev := m.severity()
	return HealthReport{
		Healthy:  sev < driftAlertThreshold,
		Severity: sev,
		Counts:   m.counts(),
	}
}

// Reset clears the window. Called alongside the state's quality-signal reset
// on successful task completion.
func (m *DriftMonitor) Reset() {
	m.window = nil
}

// Window returns a copy of the current signal window, oldest first.
func (m *DriftMonitor) Window() []Signal {
	return append([]Signal(nil), m.window...)
}

func (m *DriftMonitor) severity() int {
	total := 0
	for _, s := range m.window {
		total += s.Severity
	}
	return total
}

func (m *DriftMonitor) counts() map[SignalKind]int {
	counts := make(map[SignalKind]int)
	for _, s := range m.window {
		counts[s.Kind]++
	}
	return counts
}
