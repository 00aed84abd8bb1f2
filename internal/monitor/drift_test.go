package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strataml/strata/internal/state"
	"github.com/strataml/strata/internal/tier"
	"github.com/strataml/strata/pkg/types"
)

func TestTwoUserCorrectionsEscalate(t *testing.T) {
	agent := state.New(10)
	m := NewDriftMonitor(agent, nil)

	assert.False(t, m.Record(SignalUserCorrection, "wrong region"))
	assert.Equal(t, state.PolicyNormal, agent.Policy())

	assert.True(t, m.Record(SignalUserCorrection, "wrong port"))
	assert.Equal(t, state.PolicyConservative, agent.Policy())
}

func TestSingleLoopEscalates(t *testing.T) {
	agent := state.New(10)
	m := NewDriftMonitor(agent, nil)

	assert.True(t, m.Record(SignalLoopDetected, "same tool call 4x"))
	assert.Equal(t, state.PolicyConservative, agent.Policy())
}

func TestTwoContradictionsEscalate(t *testing.T) {
	agent := state.New(10)
	m := NewDriftMonitor(agent, nil)

	assert.False(t, m.Record(SignalContradiction, "port mismatch"))
	assert.True(t, m.Record(SignalContradiction, "region mismatch"))
	assert.Equal(t, state.PolicyConservative, agent.Policy())

	// Contradictions are severity 1, so the window stays under the
	// degraded threshold even though the policy escalated.
	assert.True(t, m.Health().Healthy)
	assert.Equal(t, 2, m.Health().Severity)
}

func TestCallerSeverityOverridesDefault(t *testing.T) {
	agent := state.New(10)
	m := NewDriftMonitor(agent, nil)

	m.RecordWithSeverity(SignalToolRetry, "same call repeated", 3)
	assert.Equal(t, 3, m.Health().Severity)
	assert.False(t, m.Health().Healthy)

	// Non-positive severities fall back to the kind default.
	m.RecordWithSeverity(SignalToolRetry, "another retry", 0)
	assert.Equal(t, 4, m.Health().Severity)
}

func TestSeverityAccumulationEscalates(t *testing.T) {
	agent := state.New(10)
	m := NewDriftMonitor(agent, nil)

	// Retries are severity 1. The forwarded quality counters hit 3 first
	// and escalate through the state's own path.
	for i := 0; i < 6; i++ {
		m.Record(SignalToolRetry, "timeout")
	}
	assert.Equal(t, state.PolicyConservative, agent.Policy())
}

func TestSignalsForwardToStateCounters(t *testing.T) {
	agent := state.New(10)
	m := NewDriftMonitor(agent, nil)

	m.Record(SignalToolRetry, "flaky network")
	m.Record(SignalVerificationFailure, "stale fact")
	assert.Equal(t, 2, agent.QualitySignalTotal())

	// Pure drift signals do not touch the state counters.
	m.Record(SignalHallucinationFlag, "cited missing file")
	assert.Equal(t, 2, agent.QualitySignalTotal())
}

func TestHealthReport(t *testing.T) {
	agent := state.New(10)
	m := NewDriftMonitor(agent, nil)

	assert.True(t, m.Health().Healthy)

	m.Record(SignalToolRetry, "retry one")
	assert.True(t, m.Health().Healthy, "severity 1 is under the threshold")

	m.Record(SignalUserCorrection, "fix")
	h := m.Health()
	assert.False(t, h.Healthy)
	assert.Equal(t, 3, h.Severity)
	assert.Equal(t, 1, h.Counts[SignalUserCorrection])
}

func TestUnknownSignalIgnored(t *testing.T) {
	agent := state.New(10)
	m := NewDriftMonitor(agent, nil)

	assert.False(t, m.Record(SignalKind("cosmic_ray"), "bit flip"))
	assert.Empty(t, m.Window())
}

func TestResetClearsWindow(t *testing.T) {
	agent := state.New(10)
	m := NewDriftMonitor(agent, nil)
	m.Record(SignalUserCorrection, "one")
	m.Record(SignalUserCorrection, "two")

	m.Reset()
	agent.ResetQualitySignals()
	assert.True(t, m.Health().Healthy)
	assert.Empty(t, m.Window())
	assert.Equal(t, state.PolicyNormal, agent.Policy())
}

func TestWindowIsBounded(t *testing.T) {
	agent := state.New(10)
	m := NewDriftMonitor(agent, nil)
	for i := 0; i < 30; i++ {
		m.Record(SignalToolRetry, "retry")
	}
	assert.Len(t, m.Window(), driftWindowSize)
}

func TestEscalationTracedToEpisodic(t *testing.T) {
	agent := state.New(10)
	episodic := tier.NewEpisodicTraces(100, nil)
	m := NewDriftMonitor(agent, episodic)

	m.Record(SignalLoopDetected, "stuck")

	traces := episodic.GetRecent(5, types.EventStateChange)
	require.Len(t, traces, 1)
	assert.Contains(t, traces[0].Summary, "conservative")
}
