package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoalPriorityOrdering(t *testing.T) {
	s := New(10)
	s.SetGoal("write report", 0)
	s.SetGoal("gather data", 0)
	s.SetGoal("publish", 5)

	assert.Equal(t, []string{"gather data", "write report", "publish"}, s.Goals())
	assert.Equal(t, "gather data", s.TopGoal())

	assert.True(t, s.CompleteGoal("gather data"))
	assert.False(t, s.CompleteGoal("gather data"))
	assert.Equal(t, "write report", s.TopGoal())
}

func TestDuplicateGoalIgnored(t *testing.T) {
	s := New(10)
	s.SetGoal("ship v1", 0)
	v := s.Version()
	s.SetGoal("ship v1", 0)

	assert.Len(t, s.Goals(), 1)
	assert.Equal(t, v, s.Version(), "no-op should not bump the version")
}

func TestAssumptionDedupMergesConfidence(t *testing.T) {
	s := New(10)
	s.AddAssumption("API supports pagination", 0.6, "inferred")
	s.AddAssumption("API supports pagination", 0.9, "verified_tool:healthcheck")
	s.AddAssumption("API supports pagination", 0.4, "inferred")

	got := s.Assumptions()
	require.Len(t, got, 1)
	assert.InDelta(t, 0.9, got[0].Confidence, 1e-9)
}

func TestAssumptionVerifyAndInvalidate(t *testing.T) {
	s := New(10)
	s.AddAssumption("db is reachable", 0.7, "inferred")

	assert.True(t, s.VerifyAssumption("db is reachable"))
	assert.True(t, s.Assumptions()[0].Verified)
	assert.False(t, s.VerifyAssumption("nonexistent"))

	assert.True(t, s.InvalidateAssumption("db is reachable"))
	assert.Empty(t, s.Assumptions())
}

func TestQuestionLifecycle(t *testing.T) {
	s := New(10)
	s.AddQuestion("which region?", "deploy planning", 2)
	s.AddQuestion("budget cap?", "", 3)

	assert.Len(t, s.UnresolvedQuestions(), 2)
	assert.True(t, s.ResolveQuestion("which region?", "us-east"))
	assert.Len(t, s.UnresolvedQuestions(), 1)
	assert.Equal(t, "budget cap?", s.UnresolvedQuestions()[0].Question)
}

func TestFocusWindowRotationReturnsEvicted(t *testing.T) {
	s := New(3)
	require.Empty(t, s.AddToFocus("d1", "r1"))
	require.Empty(t, s.AddToFocus("d2", "r2"))
	require.Empty(t, s.AddToFocus("d3", "r3"))

	evicted := s.AddToFocus("d4", "r4")
	require.Len(t, evicted, 1)
	assert.Equal(t, "d1", evicted[0].Decision)

	window := s.FocusWindow()
	require.Len(t, window, 3)
	assert.Equal(t, "d2", window[0].Decision)
	assert.Equal(t, "d4", window[2].Decision)
}

func TestTrimFocus(t *testing.T) {
	s := New(10)
	for _, d := range []string{"a", "b", "c", "d"} {
		s.AddToFocus(d, "")
	}

	evicted := s.TrimFocus(2)
	require.Len(t, evicted, 2)
	assert.Equal(t, "a", evicted[0].Decision)
	assert.Equal(t, "b", evicted[1].Decision)
	assert.Len(t, s.FocusWindow(), 2)

	assert.Nil(t, s.TrimFocus(5), "trim above current size is a no-op")
}

func TestQualitySignalEscalation(t *testing.T) {
	s := New(10)
	assert.Equal(t, PolicyNormal, s.Policy())

	s.RecordQualitySignal(SignalUserCorrection)
	s.RecordQualitySignal(SignalToolRetry)
	assert.Equal(t, PolicyNormal, s.Policy())

	s.RecordQualitySignal(SignalVerificationFailure)
	assert.Equal(t, PolicyConservative, s.Policy())
	assert.Equal(t, 3, s.QualitySignalTotal())
}

func TestResetQualitySignals(t *testing.T) {
	s := New(10)
	for i := 0; i < 3; i++ {
		s.RecordQualitySignal(SignalUserCorrection)
	}
	require.Equal(t, PolicyConservative, s.Policy())

	s.ResetQualitySignals()
	assert.Equal(t, PolicyNormal, s.Policy())
	assert.Zero(t, s.QualitySignalTotal())
}

func TestEscalateIdempotent(t *testing.T) {
	s := New(10)
	assert.True(t, s.EscalatePolicy("drift"))
	v := s.Version()
	assert.False(t, s.EscalatePolicy("drift again"))
	assert.Equal(t, v, s.Version())
}

func TestConsolidateCountsPrunedQuestions(t *testing.T) {
	s := New(10)
	s.AddQuestion("q1", "", 1)
	s.AddQuestion("q2", "", 1)
	s.AddQuestion("q3", "", 1)
	s.ResolveQuestion("q1", "answered")
	s.ResolveQuestion("q3", "answered")

	report := s.Consolidate()
	assert.Equal(t, 2, report.PrunedQuestions)
	assert.Len(t, s.OpenQuestions(), 1)
}

func TestConsolidateExpiresStaleAssumptions(t *testing.T) {
	s := New(10)
	s.AddAssumption("fresh unverified", 0.5, "inferred")
	s.AddAssumption("stale unverified", 0.5, "inferred")
	s.AddAssumption("stale verified", 0.5, "user_input")
	s.VerifyAssumption("stale verified")

	// Backdate the stale ones past the 24h expiry.
	for _, a := range s.assumptions {
		if a.Content == "stale unverified" || a.Content == "stale verified" {
			a.Created = time.Now().Add(-30 * time.Hour)
		}
	}

	report := s.Consolidate()
	assert.Equal(t, 1, report.ExpiredAssumptions)

	contents := make([]string, 0, len(s.assumptions))
	for _, a := range s.Assumptions() {
		contents = append(contents, a.Content)
	}
	assert.ElementsMatch(t, []string{"fresh unverified", "stale verified"}, contents)
}

func TestSummaryDigest(t *testing.T) {
	s := New(10)
	s.SetGoal("ship", 0)
	s.AddConstraint("no downtime")
	s.AddAssumption("cache warm", 0.8, "inferred")
	s.VerifyAssumption("cache warm")
	s.AddQuestion("rollback plan?", "", 2)
	s.AddToFocus("use blue-green", "safer")

	got := s.Summary()
	assert.Contains(t, got, "=== Agent State (v")
	assert.Contains(t, got, "Policy: normal")
	assert.Contains(t, got, "Goals: 1")
	assert.Contains(t, got, "Assumptions: 1 (1 verified)")
	assert.Contains(t, got, "Open Questions: 1")
	assert.Contains(t, got, "Focus Window: 1 decisions")
}

func TestVersionBumpsOnMutation(t *testing.T) {
	s := New(10)
	v := s.Version()
	s.SetEnvFlag("region", "us-east")
	assert.Greater(t, s.Version(), v)

	_, ok := s.EnvFlag("region")
	assert.True(t, ok)
}
